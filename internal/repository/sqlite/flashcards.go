// Package sqlite provides the embedded store for flashcards and their
// append-only review history.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"notarium/internal/domain"
	"notarium/internal/domain/models"
	"notarium/internal/domain/repositories"
)

// FlashcardRepository implements repositories.FlashcardRepository on SQLite.
type FlashcardRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ repositories.FlashcardRepository = (*FlashcardRepository)(nil)

// Open opens (creating if needed) the flashcard database at dbPath with WAL
// mode and applies the schema.
func Open(dbPath string, logger *slog.Logger) (*FlashcardRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	_, err = db.Exec(`
		PRAGMA synchronous = NORMAL;
		PRAGMA foreign_keys = ON;

		CREATE TABLE IF NOT EXISTS cards (
			id TEXT PRIMARY KEY,
			deck_id TEXT NOT NULL,
			front TEXT NOT NULL,
			back TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'active',
			interval REAL NOT NULL DEFAULT 0,
			ease_factor REAL NOT NULL DEFAULT 2.5,
			due_date TIMESTAMP NOT NULL,
			review_count INTEGER NOT NULL DEFAULT 0,
			last_review_date TIMESTAMP,
			streak INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL,
			modified_at TIMESTAMP NOT NULL
		);
		CREATE TABLE IF NOT EXISTS review_history (
			id TEXT PRIMARY KEY,
			card_id TEXT NOT NULL REFERENCES cards(id),
			previous_interval REAL NOT NULL,
			new_interval REAL NOT NULL,
			performance TEXT NOT NULL,
			reviewed_at TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_cards_due ON cards(deck_id, status, due_date);
		CREATE INDEX IF NOT EXISTS idx_history_card ON review_history(card_id);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("setup database: %w", err)
	}

	return &FlashcardRepository{db: db, logger: logger}, nil
}

// Close releases the underlying database handle.
func (r *FlashcardRepository) Close() error {
	return r.db.Close()
}

// GetCard retrieves a card by id.
func (r *FlashcardRepository) GetCard(ctx context.Context, id string) (*models.Flashcard, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, deck_id, front, back, status,
		       interval, ease_factor, due_date, review_count, last_review_date, streak,
		       created_at, modified_at
		FROM cards WHERE id = ?
	`, id)

	card, err := scanCard(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("card %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get card: %w", err)
	}
	return card, nil
}

// InsertCard stores a new card.
func (r *FlashcardRepository) InsertCard(ctx context.Context, card *models.Flashcard) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cards (id, deck_id, front, back, status,
			interval, ease_factor, due_date, review_count, last_review_date, streak,
			created_at, modified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		card.ID, card.DeckID, card.Front, card.Back, card.Status,
		card.State.Interval, card.State.EaseFactor, card.State.DueDate,
		card.State.ReviewCount, card.State.LastReviewDate, card.State.Streak,
		card.CreatedAt, card.ModifiedAt,
	)
	if err != nil {
		return fmt.Errorf("insert card: %w", err)
	}
	return nil
}

// UpdateCardState persists the post-review scheduling state and the history
// entry in one transaction.
func (r *FlashcardRepository) UpdateCardState(ctx context.Context, cardID string, state models.ReviewState, entry models.ReviewHistoryEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin review update: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE cards
		SET interval = ?, ease_factor = ?, due_date = ?,
		    review_count = ?, last_review_date = ?, streak = ?, modified_at = ?
		WHERE id = ?
	`,
		state.Interval, state.EaseFactor, state.DueDate,
		state.ReviewCount, state.LastReviewDate, state.Streak, time.Now(),
		cardID,
	)
	if err != nil {
		return fmt.Errorf("update card state: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update card state: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("card %s: %w", cardID, domain.ErrNotFound)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO review_history (id, card_id, previous_interval, new_interval, performance, reviewed_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		entry.ID, entry.CardID, entry.PreviousInterval, entry.NewInterval, entry.Performance, entry.ReviewedAt,
	)
	if err != nil {
		return fmt.Errorf("insert review history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit review update: %w", err)
	}
	return nil
}

// DueCards returns active cards due at or before now, soonest-due first.
func (r *FlashcardRepository) DueCards(ctx context.Context, deckID string, now time.Time, limit int) ([]models.Flashcard, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, deck_id, front, back, status,
		       interval, ease_factor, due_date, review_count, last_review_date, streak,
		       created_at, modified_at
		FROM cards
		WHERE deck_id = ? AND status = ? AND due_date <= ?
		ORDER BY due_date ASC
		LIMIT ?
	`, deckID, models.CardStatusActive, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list due cards: %w", err)
	}
	defer rows.Close()

	cards := make([]models.Flashcard, 0)
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		cards = append(cards, *card)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate due cards: %w", err)
	}
	return cards, nil
}

// ReviewHistory returns a card's history entries, oldest first.
func (r *FlashcardRepository) ReviewHistory(ctx context.Context, cardID string) ([]models.ReviewHistoryEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, card_id, previous_interval, new_interval, performance, reviewed_at
		FROM review_history
		WHERE card_id = ?
		ORDER BY reviewed_at ASC
	`, cardID)
	if err != nil {
		return nil, fmt.Errorf("list review history: %w", err)
	}
	defer rows.Close()

	entries := make([]models.ReviewHistoryEntry, 0)
	for rows.Next() {
		var entry models.ReviewHistoryEntry
		err := rows.Scan(&entry.ID, &entry.CardID, &entry.PreviousInterval, &entry.NewInterval, &entry.Performance, &entry.ReviewedAt)
		if err != nil {
			return nil, fmt.Errorf("scan review history: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate review history: %w", err)
	}
	return entries, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCard(row rowScanner) (*models.Flashcard, error) {
	var card models.Flashcard
	var lastReview sql.NullTime
	err := row.Scan(
		&card.ID, &card.DeckID, &card.Front, &card.Back, &card.Status,
		&card.State.Interval, &card.State.EaseFactor, &card.State.DueDate,
		&card.State.ReviewCount, &lastReview, &card.State.Streak,
		&card.CreatedAt, &card.ModifiedAt,
	)
	if err != nil {
		return nil, err
	}
	if lastReview.Valid {
		card.State.LastReviewDate = &lastReview.Time
	}
	return &card, nil
}
