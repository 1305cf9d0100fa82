package srs

import (
	"fmt"
	"math"
	"time"

	"github.com/conorfennell/knolstudy/internal/domain"
)

const (
	MinEaseFactor     = 1.3
	InitialEaseFactor = 2.5
	InitialInterval   = 1
	// MaxInterval caps the interval at roughly a century so that
	// now.AddDate never overflows for cards graded Easy for decades.
	MaxInterval = 36500
)

// NewCard returns a never-reviewed card, due immediately.
func NewCard(id, owner, deck, front, back string) domain.Card {
	return domain.Card{
		ID:          id,
		Owner:       owner,
		Deck:        deck,
		Front:       front,
		Back:        back,
		EaseFactor:  InitialEaseFactor,
		Interval:    InitialInterval,
		Repetitions: 0,
	}
}

// CheckState verifies the scheduling fields of a stored card.
// A violation means the stored row is corrupt; it is reported, never repaired.
func CheckState(card domain.Card) error {
	switch {
	case math.IsNaN(card.EaseFactor) || math.IsInf(card.EaseFactor, 0) || card.EaseFactor < MinEaseFactor:
		return fmt.Errorf("%w: card %s: ease factor %v below %v", ErrInvalidCardState, card.ID, card.EaseFactor, MinEaseFactor)
	case card.Interval < 1:
		return fmt.Errorf("%w: card %s: interval %d below 1", ErrInvalidCardState, card.ID, card.Interval)
	case card.Repetitions < 0:
		return fmt.Errorf("%w: card %s: negative repetitions %d", ErrInvalidCardState, card.ID, card.Repetitions)
	}
	return nil
}

// Grade computes the scheduling state that follows a review of card with
// quality q at now. The input card is not mutated; only EaseFactor,
// Interval, Repetitions, LastReview and NextReview differ in the result.
//
// Fail and Hard both reset the card to interval 1 with zero repetitions.
// Good and Easy advance it through the 1, 6, interval*ease progression.
func Grade(card domain.Card, q Quality, now time.Time) (domain.Card, error) {
	delta, ok := q.easeDelta()
	if !ok {
		return domain.Card{}, fmt.Errorf("%w: %d", ErrInvalidQuality, int(q))
	}
	if err := CheckState(card); err != nil {
		return domain.Card{}, err
	}

	ease := math.Max(card.EaseFactor+delta, MinEaseFactor)

	interval, reps := InitialInterval, 0
	if q.Passed() {
		switch card.Repetitions {
		case 0:
			interval = 1
		case 1:
			interval = 6
		default:
			interval = nextInterval(card.Interval, ease)
		}
		reps = card.Repetitions + 1
	}

	last := now
	next := now.AddDate(0, 0, interval)

	out := card
	out.EaseFactor = ease
	out.Interval = interval
	out.Repetitions = reps
	out.LastReview = &last
	out.NextReview = &next
	return out, nil
}

// Preview returns the state card would move to under each grade.
func Preview(card domain.Card, now time.Time) (map[Quality]domain.Card, error) {
	if err := CheckState(card); err != nil {
		return nil, err
	}
	out := make(map[Quality]domain.Card, len(Qualities))
	for _, q := range Qualities {
		c, err := Grade(card, q, now)
		if err != nil {
			return nil, err
		}
		out[q] = c
	}
	return out, nil
}

func nextInterval(prev int, ease float64) int {
	v := math.Round(float64(prev) * ease)
	if v > MaxInterval {
		return MaxInterval
	}
	return max(int(v), 1)
}
