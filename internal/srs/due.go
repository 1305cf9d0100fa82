package srs

import (
	"iter"
	"slices"
	"time"

	"github.com/conorfennell/knolstudy/internal/domain"
)

// IsDue reports whether card should be reviewed at now.
// A card without NextReview has never been scheduled and is always due.
func IsDue(card domain.Card, now time.Time) bool {
	return card.NextReview == nil || !card.NextReview.After(now)
}

// SelectDue yields the due cards ordered for a review queue: earliest
// NextReview first, never-scheduled cards ahead of everything, ties in
// input order. The sequence can be ranged over any number of times and
// never modifies cards.
func SelectDue(cards []domain.Card, now time.Time) iter.Seq[domain.Card] {
	return func(yield func(domain.Card) bool) {
		idx := make([]int, 0, len(cards))
		for i := range cards {
			if IsDue(cards[i], now) {
				idx = append(idx, i)
			}
		}
		slices.SortStableFunc(idx, func(a, b int) int {
			return compareNextReview(cards[a].NextReview, cards[b].NextReview)
		})
		for _, i := range idx {
			if !yield(cards[i]) {
				return
			}
		}
	}
}

// compareNextReview orders nil before any instant.
func compareNextReview(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	default:
		return a.Compare(*b)
	}
}

// Take collects at most limit values from seq. A limit <= 0 collects all.
func Take[T any](seq iter.Seq[T], limit int) []T {
	var out []T
	for v := range seq {
		out = append(out, v)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
