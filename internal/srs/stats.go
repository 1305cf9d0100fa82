package srs

import (
	"cmp"
	"math"
	"slices"
	"time"

	"github.com/conorfennell/knolstudy/internal/domain"
)

// DefaultAccuracy is reported when no card has been reviewed yet.
const DefaultAccuracy = 50.0

// DeckStat summarizes one deck.
type DeckStat struct {
	Deck       string     `json:"deck"`
	Total      int        `json:"total"`
	Due        int        `json:"due"`
	New        int        `json:"new"`
	LastReview *time.Time `json:"last_review"`
}

// Summary is the dashboard view over all of an owner's cards.
type Summary struct {
	TotalCards      int     `json:"total_cards"`
	DueCards        int     `json:"due_cards"`
	AverageAccuracy float64 `json:"average_accuracy"`
	Streak          int     `json:"streak"`
}

// DeckStats groups cards by deck name and returns one DeckStat per deck,
// sorted by name.
func DeckStats(cards []domain.Card, now time.Time) []DeckStat {
	byDeck := make(map[string]*DeckStat)
	for _, c := range cards {
		st, ok := byDeck[c.Deck]
		if !ok {
			st = &DeckStat{Deck: c.Deck}
			byDeck[c.Deck] = st
		}
		st.add(c, now)
	}

	out := make([]DeckStat, 0, len(byDeck))
	for _, st := range byDeck {
		out = append(out, *st)
	}
	slices.SortFunc(out, func(a, b DeckStat) int { return cmp.Compare(a.Deck, b.Deck) })
	return out
}

// StatForDeck summarizes the cards of a single deck. Cards from other decks
// are ignored, so an empty or unknown deck yields a zero DeckStat.
func StatForDeck(deck string, cards []domain.Card, now time.Time) DeckStat {
	st := DeckStat{Deck: deck}
	for _, c := range cards {
		if c.Deck == deck {
			st.add(c, now)
		}
	}
	return st
}

func (st *DeckStat) add(c domain.Card, now time.Time) {
	st.Total++
	if IsDue(c, now) {
		st.Due++
	}
	if c.LastReview == nil {
		st.New++
		return
	}
	if st.LastReview == nil || c.LastReview.After(*st.LastReview) {
		t := *c.LastReview
		st.LastReview = &t
	}
}

// Accuracy estimates recall performance from the average ease factor of the
// reviewed cards, scaled so that MinEaseFactor maps to 0 and
// InitialEaseFactor to 100. Ease only drifts down on Fail and Hard, so this
// is a proxy for how often a deck is failed, not a measured pass rate.
func Accuracy(cards []domain.Card) float64 {
	var sum float64
	var n int
	for _, c := range cards {
		if c.LastReview == nil {
			continue
		}
		sum += c.EaseFactor
		n++
	}
	if n == 0 {
		return DefaultAccuracy
	}
	avg := sum / float64(n)
	pct := (avg - MinEaseFactor) / (InitialEaseFactor - MinEaseFactor) * 100
	return math.Min(math.Max(pct, 0), 100)
}

type civilDate struct {
	year  int
	month time.Month
	day   int
}

func dateOf(t time.Time) civilDate {
	y, m, d := t.Date()
	return civilDate{y, m, d}
}

// Streak counts consecutive calendar days, ending today, on which at least
// one card was last reviewed. Days follow now's location. A day without
// reviews ends the walk, so the streak is 0 until something is reviewed today.
func Streak(cards []domain.Card, now time.Time) int {
	loc := now.Location()
	days := make(map[civilDate]struct{})
	for _, c := range cards {
		if c.LastReview != nil {
			days[dateOf(c.LastReview.In(loc))] = struct{}{}
		}
	}
	if len(days) == 0 {
		return 0
	}

	// Walk at noon so DST transitions never skip or repeat a date.
	y, m, d := now.Date()
	day := time.Date(y, m, d, 12, 0, 0, 0, loc)
	streak := 0
	for {
		if _, ok := days[dateOf(day)]; !ok {
			return streak
		}
		streak++
		day = day.AddDate(0, 0, -1)
	}
}

// AggregateStats builds the dashboard summary for cards at now.
func AggregateStats(cards []domain.Card, now time.Time) Summary {
	due := 0
	for _, c := range cards {
		if IsDue(c, now) {
			due++
		}
	}
	return Summary{
		TotalCards:      len(cards),
		DueCards:        due,
		AverageAccuracy: Accuracy(cards),
		Streak:          Streak(cards, now),
	}
}
