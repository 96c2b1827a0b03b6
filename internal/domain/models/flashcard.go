package models

import (
	"time"
)

// Card statuses
const (
	CardStatusActive    = "active"
	CardStatusSuspended = "suspended"
)

// Performance buckets a 0-5 review quality for history entries.
type Performance string

const (
	PerformanceEasy  Performance = "easy"  // quality >= 4
	PerformanceGood  Performance = "good"  // quality == 3
	PerformanceHard  Performance = "hard"  // quality == 2
	PerformanceAgain Performance = "again" // quality < 2
)

// ReviewState is the per-card SM-2 scheduling record. Interval is measured
// in days; EaseFactor never drops below 1.3.
type ReviewState struct {
	Interval       float64    `json:"interval" db:"interval"`
	EaseFactor     float64    `json:"ease_factor" db:"ease_factor"`
	DueDate        time.Time  `json:"due_date" db:"due_date"`
	ReviewCount    int        `json:"review_count" db:"review_count"`
	LastReviewDate *time.Time `json:"last_review_date,omitempty" db:"last_review_date"`
	Streak         int        `json:"streak" db:"streak"`
}

// Flashcard is a reviewable card belonging to a deck.
type Flashcard struct {
	ID         string      `json:"id" db:"id"`
	DeckID     string      `json:"deck_id" db:"deck_id"`
	Front      string      `json:"front" db:"front"`
	Back       string      `json:"back" db:"back"`
	Status     string      `json:"status" db:"status"`
	State      ReviewState `json:"state"`
	CreatedAt  time.Time   `json:"created_at" db:"created_at"`
	ModifiedAt time.Time   `json:"modified_at" db:"modified_at"`
}

// CreateCardRequest is the payload for creating a flashcard.
type CreateCardRequest struct {
	DeckID string `json:"deck_id"`
	Front  string `json:"front"`
	Back   string `json:"back"`
}

// ReviewHistoryEntry records a single completed review. Entries are
// append-only and never mutated.
type ReviewHistoryEntry struct {
	ID               string      `json:"id" db:"id"`
	CardID           string      `json:"card_id" db:"card_id"`
	PreviousInterval float64     `json:"previous_interval" db:"previous_interval"`
	NewInterval      float64     `json:"new_interval" db:"new_interval"`
	Performance      Performance `json:"performance" db:"performance"`
	ReviewedAt       time.Time   `json:"reviewed_at" db:"reviewed_at"`
}
