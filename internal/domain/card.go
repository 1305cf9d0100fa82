package domain

import "time"

// Card is a flashcard together with its scheduling state.
// Nil LastReview means the card was never reviewed; nil NextReview means it is due now.
type Card struct {
	ID          string     `json:"id"`
	Owner       string     `json:"owner"`
	Deck        string     `json:"deck"`
	Front       string     `json:"front"`
	Back        string     `json:"back"`
	SourceID    int64      `json:"source_id,omitempty"` // 0 when created through the API.
	EaseFactor  float64    `json:"ease_factor"`
	Interval    int        `json:"interval"`
	Repetitions int        `json:"repetitions"`
	LastReview  *time.Time `json:"last_review"`
	NextReview  *time.Time `json:"next_review"`
	Version     int64      `json:"version"`
}

// ReviewLog records a single grading of a card.
// Quality uses the 0..3 scale: 0 Fail, 1 Hard, 2 Good, 3 Easy.
type ReviewLog struct {
	ID         int64     `json:"id"`
	CardID     string    `json:"card_id"`
	Owner      string    `json:"owner"`
	Quality    int       `json:"quality"`
	ReviewedAt time.Time `json:"reviewed_at"`
	Interval   int       `json:"interval"`
	EaseFactor float64   `json:"ease_factor"`
}

// Source is a directory or git repository that decks are imported from.
type Source struct {
	ID          int64      `json:"id"`
	Owner       string     `json:"owner"`
	Path        string     `json:"path"`
	Type        string     `json:"type"` // "local" or "git"
	LastScanned *time.Time `json:"last_scanned"`
}

// Source types.
const (
	SourceLocal = "local"
	SourceGit   = "git"
)
