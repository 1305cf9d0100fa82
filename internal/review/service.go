// Package review drives study sessions: it loads cards from a Store, runs
// them through the srs engine and writes the results back.
package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/conorfennell/knolstudy/internal/domain"
	"github.com/conorfennell/knolstudy/internal/events"
	"github.com/conorfennell/knolstudy/internal/srs"
	"github.com/conorfennell/knolstudy/internal/storage"
)

// ErrConflict is returned when a card kept changing under concurrent
// reviews for every allowed attempt.
var ErrConflict = errors.New("review: card was modified concurrently")

// Store is the persistence the service needs. storage.DB and pgstore.Store
// both satisfy it.
type Store interface {
	InsertCard(ctx context.Context, card domain.Card) error
	LoadCard(ctx context.Context, id string) (domain.Card, error)
	LoadCardsForDeck(ctx context.Context, owner, deck string) ([]domain.Card, error)
	LoadCardsForOwner(ctx context.Context, owner string) ([]domain.Card, error)
	RecordReview(ctx context.Context, card *domain.Card, entry domain.ReviewLog) error
	ReviewLogForCard(ctx context.Context, cardID string) ([]domain.ReviewLog, error)
	DeleteCard(ctx context.Context, id string) error
}

// Options configures a Service. Zero values fall back to defaults.
type Options struct {
	MaxAttempts int              // compare-and-swap attempts per review; zero → 3
	QueueLimit  int              // default study queue size; zero → 20
	Publisher   events.Publisher // nil → events.Nop
	Now         func() time.Time // nil → time.Now
	Logger      *slog.Logger     // nil → slog.Default()
}

type Service struct {
	store       Store
	events      events.Publisher
	now         func() time.Time
	log         *slog.Logger
	maxAttempts int
	queueLimit  int
}

func NewService(store Store, opts Options) *Service {
	s := &Service{
		store:       store,
		events:      opts.Publisher,
		now:         opts.Now,
		log:         opts.Logger,
		maxAttempts: opts.MaxAttempts,
		queueLimit:  opts.QueueLimit,
	}
	if s.events == nil {
		s.events = events.Nop{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = 3
	}
	if s.queueLimit <= 0 {
		s.queueLimit = 20
	}
	s.log = s.log.With("component", "review")
	return s
}

// loadOwned loads a card and hides cards of other owners behind not-found.
func (s *Service) loadOwned(ctx context.Context, owner, id string) (domain.Card, error) {
	card, err := s.store.LoadCard(ctx, id)
	if err != nil {
		return domain.Card{}, err
	}
	if card.Owner != owner {
		return domain.Card{}, fmt.Errorf("%w: %s", storage.ErrCardNotFound, id)
	}
	return card, nil
}

// Review grades a card and persists the result. Lost compare-and-swap races
// are retried against a fresh copy of the card.
func (s *Service) Review(ctx context.Context, owner, cardID string, q srs.Quality) (domain.Card, error) {
	if !q.IsValid() {
		return domain.Card{}, fmt.Errorf("%w: %d", srs.ErrInvalidQuality, int(q))
	}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return domain.Card{}, err
		}
		card, err := s.loadOwned(ctx, owner, cardID)
		if err != nil {
			return domain.Card{}, err
		}

		now := s.now()
		graded, err := srs.Grade(card, q, now)
		if err != nil {
			if errors.Is(err, srs.ErrInvalidCardState) {
				s.log.Error("refusing to grade corrupt card", "card_id", cardID, "error", err)
			}
			return domain.Card{}, err
		}

		entry := domain.ReviewLog{
			CardID:     graded.ID,
			Owner:      graded.Owner,
			Quality:    int(q),
			ReviewedAt: now,
			Interval:   graded.Interval,
			EaseFactor: graded.EaseFactor,
		}
		err = s.store.RecordReview(ctx, &graded, entry)
		if errors.Is(err, storage.ErrVersionConflict) {
			s.log.Warn("review lost a concurrent update, retrying", "card_id", cardID, "attempt", attempt)
			continue
		}
		if err != nil {
			return domain.Card{}, fmt.Errorf("failed to record review of card %s: %w", cardID, err)
		}

		s.publish(ctx, graded, q)
		s.log.Debug("card reviewed", "card_id", cardID, "quality", q, "interval", graded.Interval)
		return graded, nil
	}
	return domain.Card{}, fmt.Errorf("%w: card %s after %d attempts", ErrConflict, cardID, s.maxAttempts)
}

func (s *Service) publish(ctx context.Context, card domain.Card, q srs.Quality) {
	ev := events.CardReviewed{
		CardID:     card.ID,
		Owner:      card.Owner,
		Deck:       card.Deck,
		Quality:    int(q),
		Interval:   card.Interval,
		EaseFactor: card.EaseFactor,
		ReviewedAt: *card.LastReview,
		NextReview: *card.NextReview,
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.Warn("failed to publish review event", "card_id", card.ID, "error", err)
	}
}

// Preview shows where each grade would move the card, without saving.
func (s *Service) Preview(ctx context.Context, owner, cardID string) (map[srs.Quality]domain.Card, error) {
	card, err := s.loadOwned(ctx, owner, cardID)
	if err != nil {
		return nil, err
	}
	return srs.Preview(card, s.now())
}

// Card returns one of owner's cards.
func (s *Service) Card(ctx context.Context, owner, cardID string) (domain.Card, error) {
	return s.loadOwned(ctx, owner, cardID)
}

// History returns the card's review log, oldest first.
func (s *Service) History(ctx context.Context, owner, cardID string) ([]domain.ReviewLog, error) {
	if _, err := s.loadOwned(ctx, owner, cardID); err != nil {
		return nil, err
	}
	return s.store.ReviewLogForCard(ctx, cardID)
}

func (s *Service) cards(ctx context.Context, owner, deck string) ([]domain.Card, error) {
	if deck == "" {
		return s.store.LoadCardsForOwner(ctx, owner)
	}
	return s.store.LoadCardsForDeck(ctx, owner, deck)
}

// StudyQueue returns up to limit due cards in review order. An empty deck
// draws from all of owner's decks; limit <= 0 uses the configured default.
func (s *Service) StudyQueue(ctx context.Context, owner, deck string, limit int) ([]domain.Card, error) {
	cards, err := s.cards(ctx, owner, deck)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = s.queueLimit
	}
	queue := srs.Take(srs.SelectDue(cards, s.now()), limit)
	if queue == nil {
		queue = []domain.Card{}
	}
	return queue, nil
}

// Decks summarizes every deck owner has.
func (s *Service) Decks(ctx context.Context, owner string) ([]srs.DeckStat, error) {
	cards, err := s.store.LoadCardsForOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	return srs.DeckStats(cards, s.now()), nil
}

// Deck summarizes a single deck; unknown decks report zero counts.
func (s *Service) Deck(ctx context.Context, owner, deck string) (srs.DeckStat, error) {
	cards, err := s.store.LoadCardsForDeck(ctx, owner, deck)
	if err != nil {
		return srs.DeckStat{}, err
	}
	return srs.StatForDeck(deck, cards, s.now()), nil
}

// Summary is the dashboard view across all of owner's cards.
func (s *Service) Summary(ctx context.Context, owner string) (srs.Summary, error) {
	cards, err := s.store.LoadCardsForOwner(ctx, owner)
	if err != nil {
		return srs.Summary{}, err
	}
	return srs.AggregateStats(cards, s.now()), nil
}

// CreateCard adds a new, immediately due card to owner's deck.
func (s *Service) CreateCard(ctx context.Context, owner, deck, front, back string) (domain.Card, error) {
	card := srs.NewCard(uuid.NewString(), owner, deck, front, back)
	if err := s.store.InsertCard(ctx, card); err != nil {
		return domain.Card{}, err
	}
	card.Version = 1
	return card, nil
}

// DeleteCard removes one of owner's cards.
func (s *Service) DeleteCard(ctx context.Context, owner, cardID string) error {
	if _, err := s.loadOwned(ctx, owner, cardID); err != nil {
		return err
	}
	return s.store.DeleteCard(ctx, cardID)
}
