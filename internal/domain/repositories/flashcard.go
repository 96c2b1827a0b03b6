package repositories

import (
	"context"
	"time"

	"notarium/internal/domain/models"
)

// FlashcardRepository handles flashcard data access.
type FlashcardRepository interface {
	GetCard(ctx context.Context, id string) (*models.Flashcard, error)
	InsertCard(ctx context.Context, card *models.Flashcard) error

	// UpdateCardState persists a card's scheduling state together with the
	// review-history entry produced by the same review. Both are applied in
	// one transaction; a failed review never leaves a dangling history row.
	UpdateCardState(ctx context.Context, cardID string, state models.ReviewState, entry models.ReviewHistoryEntry) error

	// DueCards returns active cards in the deck with DueDate <= now,
	// ordered by DueDate ascending (soonest-due first), capped at limit.
	DueCards(ctx context.Context, deckID string, now time.Time, limit int) ([]models.Flashcard, error)

	// ReviewHistory returns a card's history entries, oldest first.
	ReviewHistory(ctx context.Context, cardID string) ([]models.ReviewHistoryEntry, error)
}
