// Package scheduler implements the SM-2 spaced-repetition algorithm as a
// pure transformation over per-card scheduling state. It holds no state of
// its own; time is an explicit parameter so scheduling is deterministic.
package scheduler

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"notarium/internal/domain"
	"notarium/internal/domain/models"
)

const (
	// MinQuality and MaxQuality bound the 0-5 review quality rating.
	MinQuality = 0
	MaxQuality = 5

	// SuccessQuality is the threshold for a "remembered" response.
	SuccessQuality = 3

	// MinEaseFactor is the hard floor below which SM-2 degenerates.
	MinEaseFactor = 1.3

	// InitialEaseFactor is the ease assigned to a fresh card.
	InitialEaseFactor = 2.5
)

// NewState returns the scheduling state for a card that has never been
// reviewed: zero interval, initial ease, due immediately.
func NewState(now time.Time) models.ReviewState {
	return models.ReviewState{
		Interval:   0,
		EaseFactor: InitialEaseFactor,
		DueDate:    now,
	}
}

// Schedule applies one review of the given quality to the current state.
//
// A remembered response (quality >= 3) multiplies the interval by the ease
// factor; a forgotten one resets it to one day. Ease adjusts by the
// canonical SM-2 delta and never drops below 1.3. The new due date anchors
// to now, not to the previous due date, so a late review does not compound
// delay into future scheduling.
func Schedule(current models.ReviewState, quality int, now time.Time) (models.ReviewState, error) {
	if quality < MinQuality || quality > MaxQuality {
		return models.ReviewState{}, fmt.Errorf("%w: quality must be between %d and %d, got %d",
			domain.ErrValidation, MinQuality, MaxQuality, quality)
	}

	var interval float64
	if quality >= SuccessQuality {
		interval = current.Interval * current.EaseFactor
	} else {
		interval = 1
	}

	miss := float64(MaxQuality - quality)
	ease := math.Max(MinEaseFactor, current.EaseFactor+(0.1-miss*(0.08+miss*0.02)))

	streak := 0
	if quality >= SuccessQuality {
		streak = current.Streak + 1
	}

	reviewed := now
	return models.ReviewState{
		Interval:       interval,
		EaseFactor:     ease,
		DueDate:        now.Add(time.Duration(interval * float64(24*time.Hour))),
		ReviewCount:    current.ReviewCount + 1,
		LastReviewDate: &reviewed,
		Streak:         streak,
	}, nil
}

// PerformanceForQuality buckets a quality rating for history entries:
// >=4 easy, ==3 good, ==2 hard, <2 again.
func PerformanceForQuality(quality int) models.Performance {
	switch {
	case quality >= 4:
		return models.PerformanceEasy
	case quality == 3:
		return models.PerformanceGood
	case quality == 2:
		return models.PerformanceHard
	default:
		return models.PerformanceAgain
	}
}

// RecordReview builds the append-only history entry for a completed review.
func RecordReview(cardID string, previousInterval, newInterval float64, quality int, reviewedAt time.Time) models.ReviewHistoryEntry {
	return models.ReviewHistoryEntry{
		ID:               uuid.NewString(),
		CardID:           cardID,
		PreviousInterval: previousInterval,
		NewInterval:      newInterval,
		Performance:      PerformanceForQuality(quality),
		ReviewedAt:       reviewedAt,
	}
}
