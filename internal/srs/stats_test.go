package srs

import (
	"testing"
	"time"

	"github.com/conorfennell/knolstudy/internal/domain"
)

func TestStatForEmptyDeck(t *testing.T) {
	st := StatForDeck("go", nil, t0)
	want := DeckStat{Deck: "go"}
	if st != want {
		t.Errorf("StatForDeck = %+v, want %+v", st, want)
	}
	if got := DeckStats(nil, t0); len(got) != 0 {
		t.Errorf("DeckStats(nil) = %v, want empty", got)
	}
}

func TestAggregateStatsEmpty(t *testing.T) {
	got := AggregateStats(nil, t0)
	want := Summary{TotalCards: 0, DueCards: 0, AverageAccuracy: 50, Streak: 0}
	if got != want {
		t.Errorf("AggregateStats = %+v, want %+v", got, want)
	}
}

func TestDeckStats(t *testing.T) {
	recent := t0.Add(-2 * time.Hour)
	older := t0.AddDate(0, 0, -4)
	cards := []domain.Card{
		{ID: "1", Deck: "spanish"},
		{ID: "2", Deck: "go", LastReview: at(older), NextReview: at(older.AddDate(0, 0, 1))},
		{ID: "3", Deck: "go", LastReview: at(recent), NextReview: at(recent.AddDate(0, 0, 6))},
		{ID: "4", Deck: "go"},
	}

	stats := DeckStats(cards, t0)
	if len(stats) != 2 {
		t.Fatalf("Expected 2 decks, but got %d", len(stats))
	}
	if stats[0].Deck != "go" || stats[1].Deck != "spanish" {
		t.Fatalf("decks = %q, %q; want sorted go, spanish", stats[0].Deck, stats[1].Deck)
	}

	g := stats[0]
	if g.Total != 3 || g.Due != 2 || g.New != 1 {
		t.Errorf("go stats = %+v, want total 3, due 2, new 1", g)
	}
	if g.LastReview == nil || !g.LastReview.Equal(recent) {
		t.Errorf("go LastReview = %v, want %v", g.LastReview, recent)
	}

	s := stats[1]
	if s.Total != 1 || s.Due != 1 || s.New != 1 || s.LastReview != nil {
		t.Errorf("spanish stats = %+v", s)
	}

	if single := StatForDeck("go", cards, t0); single.Total != 3 || single.Due != 2 {
		t.Errorf("StatForDeck(go) = %+v", single)
	}
}

func TestAccuracy(t *testing.T) {
	testCases := []struct {
		name  string
		cards []domain.Card
		want  float64
	}{
		{"nothing reviewed", []domain.Card{{EaseFactor: 1.3}}, 50},
		{"all at initial ease", []domain.Card{{EaseFactor: 2.5, LastReview: at(t0)}}, 100},
		{"all at floor", []domain.Card{{EaseFactor: 1.3, LastReview: at(t0)}}, 0},
		{"midpoint", []domain.Card{{EaseFactor: 1.9, LastReview: at(t0)}}, 50},
		{"above initial clamps", []domain.Card{{EaseFactor: 3.1, LastReview: at(t0)}}, 100},
		{
			"unreviewed cards ignored",
			[]domain.Card{{EaseFactor: 1.3}, {EaseFactor: 1.3}, {EaseFactor: 2.5, LastReview: at(t0)}},
			100,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assertFloat(t, "Accuracy", Accuracy(tc.cards), tc.want)
		})
	}
}

func TestStreak(t *testing.T) {
	now := time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)
	reviewed := func(ts ...time.Time) []domain.Card {
		var cards []domain.Card
		for _, r := range ts {
			cards = append(cards, domain.Card{LastReview: at(r)})
		}
		return cards
	}

	testCases := []struct {
		name  string
		cards []domain.Card
		want  int
	}{
		{"no reviews", nil, 0},
		{"today and yesterday", reviewed(now.Add(-time.Hour), now.AddDate(0, 0, -1)), 2},
		{"only two days ago", reviewed(now.AddDate(0, 0, -2)), 0},
		{"yesterday but not today", reviewed(now.AddDate(0, 0, -1)), 0},
		{"late last night counts as yesterday", reviewed(now, time.Date(2025, 6, 14, 23, 59, 0, 0, time.UTC)), 2},
		{"gap stops the walk", reviewed(now, now.AddDate(0, 0, -1), now.AddDate(0, 0, -3)), 2},
		{"many cards same day", reviewed(now, now.Add(-time.Minute), now.Add(-2*time.Minute)), 1},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Streak(tc.cards, now); got != tc.want {
				t.Errorf("Streak = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestStreakUsesLocalCalendarDay(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*3600)
	now := time.Date(2025, 6, 15, 8, 0, 0, 0, tokyo)
	// 2025-06-14 20:00 UTC is already 2025-06-15 05:00 in Tokyo.
	cards := []domain.Card{{LastReview: at(time.Date(2025, 6, 14, 20, 0, 0, 0, time.UTC))}}
	if got := Streak(cards, now); got != 1 {
		t.Errorf("Streak = %d, want 1", got)
	}
}

func TestAggregateStats(t *testing.T) {
	cards := []domain.Card{
		{ID: "1", EaseFactor: 2.5},
		{ID: "2", EaseFactor: 1.9, LastReview: at(t0.Add(-time.Hour)), NextReview: at(t0.AddDate(0, 0, 1))},
		{ID: "3", EaseFactor: 2.5, LastReview: at(t0.AddDate(0, 0, -1)), NextReview: at(t0.Add(-time.Minute))},
	}
	got := AggregateStats(cards, t0)
	if got.TotalCards != 3 || got.DueCards != 2 || got.Streak != 2 {
		t.Errorf("AggregateStats = %+v", got)
	}
	assertFloat(t, "AverageAccuracy", got.AverageAccuracy, 75)
}
