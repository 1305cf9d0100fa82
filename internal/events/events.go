// Package events publishes review activity for downstream consumers such as
// achievement or notification services.
package events

import (
	"context"
	"time"
)

// DefaultSubject is where card reviews are published unless configured otherwise.
const DefaultSubject = "knol.card.reviewed"

// CardReviewed is emitted after a graded card has been saved.
type CardReviewed struct {
	CardID     string    `json:"card_id"`
	Owner      string    `json:"owner"`
	Deck       string    `json:"deck"`
	Quality    int       `json:"quality"`
	Interval   int       `json:"interval"`
	EaseFactor float64   `json:"ease_factor"`
	ReviewedAt time.Time `json:"reviewed_at"`
	NextReview time.Time `json:"next_review"`
}

type Publisher interface {
	Publish(ctx context.Context, ev CardReviewed) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, CardReviewed) error { return nil }
func (Nop) Close() error                                { return nil }
