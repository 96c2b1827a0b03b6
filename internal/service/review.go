// Package service holds the application services layered over the domain
// repositories.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"notarium/internal/domain"
	"notarium/internal/domain/models"
	"notarium/internal/domain/repositories"
	"notarium/internal/scheduler"
)

// DefaultDueLimit caps a due-card fetch when the caller does not specify one.
const DefaultDueLimit = 20

// ReviewService applies reviews to flashcards: it runs the SM-2 scheduler
// over the card's current state and persists the new state together with
// the history entry.
type ReviewService struct {
	cards    repositories.FlashcardRepository
	logger   *slog.Logger
	now      func() time.Time
	dueLimit int
}

// ReviewResult reports the outcome of a completed review.
type ReviewResult struct {
	Card        *models.Flashcard         `json:"card"`
	History     models.ReviewHistoryEntry `json:"history"`
	Performance models.Performance        `json:"performance"`
}

// ReviewOption customizes a ReviewService.
type ReviewOption func(*ReviewService)

// WithClock injects the time source. Tests use a fixed clock.
func WithClock(now func() time.Time) ReviewOption {
	return func(s *ReviewService) { s.now = now }
}

// WithDueLimit overrides the default due-card fetch cap.
func WithDueLimit(limit int) ReviewOption {
	return func(s *ReviewService) {
		if limit > 0 {
			s.dueLimit = limit
		}
	}
}

// NewReviewService creates a review service.
func NewReviewService(cards repositories.FlashcardRepository, logger *slog.Logger, opts ...ReviewOption) *ReviewService {
	s := &ReviewService{
		cards:    cards,
		logger:   logger,
		now:      time.Now,
		dueLimit: DefaultDueLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateCard stores a new active card due for immediate review.
func (s *ReviewService) CreateCard(ctx context.Context, req models.CreateCardRequest) (*models.Flashcard, error) {
	err := validation.ValidateStruct(&req,
		validation.Field(&req.DeckID, validation.Required),
		validation.Field(&req.Front, validation.Required),
		validation.Field(&req.Back, validation.Required),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	now := s.now()
	card := &models.Flashcard{
		ID:         uuid.NewString(),
		DeckID:     req.DeckID,
		Front:      req.Front,
		Back:       req.Back,
		Status:     models.CardStatusActive,
		State:      scheduler.NewState(now),
		CreatedAt:  now,
		ModifiedAt: now,
	}
	if err := s.cards.InsertCard(ctx, card); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}

	s.logger.Info("card created", "card_id", card.ID, "deck_id", card.DeckID)
	return card, nil
}

// ReviewCard applies one review of the given quality (0-5) to the card and
// returns its updated state along with the recorded history entry.
func (s *ReviewService) ReviewCard(ctx context.Context, cardID string, quality int) (*ReviewResult, error) {
	card, err := s.cards.GetCard(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if card.Status != models.CardStatusActive {
		return nil, fmt.Errorf("%w: card %s is %s", domain.ErrValidation, cardID, card.Status)
	}

	now := s.now()
	newState, err := scheduler.Schedule(card.State, quality, now)
	if err != nil {
		return nil, err
	}
	entry := scheduler.RecordReview(cardID, card.State.Interval, newState.Interval, quality, now)

	if err := s.cards.UpdateCardState(ctx, cardID, newState, entry); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}

	card.State = newState
	card.ModifiedAt = now

	s.logger.Info("card reviewed",
		"card_id", cardID,
		"quality", quality,
		"performance", entry.Performance,
		"interval", newState.Interval,
		"ease_factor", newState.EaseFactor,
		"streak", newState.Streak,
	)

	return &ReviewResult{
		Card:        card,
		History:     entry,
		Performance: entry.Performance,
	}, nil
}

// DueCards returns the deck's active cards due at or before now, ordered
// soonest-due first and capped at limit.
func (s *ReviewService) DueCards(ctx context.Context, deckID string, limit int) ([]models.Flashcard, error) {
	if limit <= 0 {
		limit = s.dueLimit
	}
	cards, err := s.cards.DueCards(ctx, deckID, s.now(), limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}
	return cards, nil
}

// ReviewHistory returns a card's append-only review history, oldest first.
func (s *ReviewService) ReviewHistory(ctx context.Context, cardID string) ([]models.ReviewHistoryEntry, error) {
	entries, err := s.cards.ReviewHistory(ctx, cardID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}
	return entries, nil
}
