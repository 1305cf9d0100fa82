package sync

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/conorfennell/knolstudy/internal/knol"
	"github.com/conorfennell/knolstudy/internal/srs"
	"github.com/conorfennell/knolstudy/internal/storage"
)

var t0 = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

func newTestSyncer(t *testing.T) (*Syncer, *storage.DB) {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "knol.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	s := NewSyncer(db, slog.New(slog.NewTextHandler(io.Discard, nil)), filepath.Join(t.TempDir(), "repos"))
	s.now = func() time.Time { return t0 }
	return s, db
}

func writeNote(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestRunImportsAndReconciles(t *testing.T) {
	ctx := context.Background()
	s, db := newTestSyncer(t)
	notes := t.TempDir()
	writeNote(t, notes, "go.md", "Q: What is a goroutine?\nA: A lightweight thread.\n---\nQ: What is a channel?\nA: A typed conduit.\n")
	writeNote(t, notes, "readme.txt", "Q: ignored\nA: not markdown\n")

	src, err := s.AddSource(ctx, "ann", notes)
	if err != nil {
		t.Fatalf("AddSource: %v", err)
	}

	report, err := s.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report != (Report{Sources: 1, Added: 2}) {
		t.Errorf("first Report = %+v", report)
	}

	id := knol.Hash("ann", "What is a goroutine?", "A lightweight thread.")
	card, err := db.LoadCard(ctx, id)
	if err != nil {
		t.Fatalf("LoadCard: %v", err)
	}
	if card.Deck != "go" || card.SourceID != src.ID || card.EaseFactor != srs.InitialEaseFactor {
		t.Errorf("imported card = %+v", card)
	}

	// Scheduling state survives a re-sync.
	graded, err := srs.Grade(card, srs.Good, t0)
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if err := db.SaveCard(ctx, &graded); err != nil {
		t.Fatalf("SaveCard: %v", err)
	}

	writeNote(t, notes, "go.md", "D: golang\nQ: What is a goroutine?\nA: A lightweight thread.\n")
	report, err = s.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report != (Report{Sources: 1, Moved: 1, Removed: 1}) {
		t.Errorf("second Report = %+v", report)
	}

	card, err = db.LoadCard(ctx, id)
	if err != nil {
		t.Fatalf("LoadCard after re-sync: %v", err)
	}
	if card.Deck != "golang" || card.Repetitions != 1 || card.NextReview == nil {
		t.Errorf("re-synced card lost state: %+v", card)
	}

	channel := knol.Hash("ann", "What is a channel?", "A typed conduit.")
	if _, err := db.LoadCard(ctx, channel); !errors.Is(err, storage.ErrCardNotFound) {
		t.Errorf("orphaned card error = %v, want ErrCardNotFound", err)
	}

	sources, err := db.GetAllSources(ctx)
	if err != nil {
		t.Fatalf("GetAllSources: %v", err)
	}
	if sources[0].LastScanned == nil || !sources[0].LastScanned.Equal(t0) {
		t.Errorf("LastScanned = %v, want %v", sources[0].LastScanned, t0)
	}
}

func TestRunKeepsOwnersApart(t *testing.T) {
	ctx := context.Background()
	s, db := newTestSyncer(t)
	notes := t.TempDir()
	writeNote(t, notes, "shared.md", "Q: same\nA: card\n")

	for _, owner := range []string{"ann", "bob"} {
		if _, err := s.AddSource(ctx, owner, notes); err != nil {
			t.Fatalf("AddSource(%s): %v", owner, err)
		}
	}
	report, err := s.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Added != 2 {
		t.Errorf("Expected 2 cards added, but got %d", report.Added)
	}
	for _, owner := range []string{"ann", "bob"} {
		cards, err := db.LoadCardsForOwner(ctx, owner)
		if err != nil {
			t.Fatalf("LoadCardsForOwner: %v", err)
		}
		if len(cards) != 1 {
			t.Errorf("Expected 1 card for %s, but got %d", owner, len(cards))
		}
	}
}

func TestRunCountsFailedSources(t *testing.T) {
	ctx := context.Background()
	s, db := newTestSyncer(t)
	if _, err := db.InsertSource(ctx, "ann", filepath.Join(t.TempDir(), "gone"), "local"); err != nil {
		t.Fatalf("InsertSource: %v", err)
	}

	report, err := s.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report != (Report{Sources: 1, Failed: 1}) {
		t.Errorf("Report = %+v", report)
	}
}

func TestRunWithoutSources(t *testing.T) {
	s, _ := newTestSyncer(t)
	report, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report != (Report{}) {
		t.Errorf("Report = %+v, want zero", report)
	}
}

func TestAddSource(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSyncer(t)

	src, err := s.AddSource(ctx, "ann", "https://github.com/conorfennell/notes.git")
	if err != nil {
		t.Fatalf("AddSource: %v", err)
	}
	if src.Type != "git" || src.Owner != "ann" {
		t.Errorf("git source = %+v", src)
	}

	if _, err := s.AddSource(ctx, "ann", "https://github.com/conorfennell/notes.git"); !errors.Is(err, storage.ErrDuplicate) {
		t.Errorf("duplicate AddSource error = %v, want ErrDuplicate", err)
	}

	if _, err := s.AddSource(ctx, "ann", filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("Expected an error for a missing directory, but got nil")
	}
}

func TestRemoveSource(t *testing.T) {
	ctx := context.Background()
	s, db := newTestSyncer(t)
	notes := t.TempDir()
	writeNote(t, notes, "go.md", "Q: What is a goroutine?\nA: A lightweight thread.\n")
	if _, err := s.AddSource(ctx, "ann", notes); err != nil {
		t.Fatalf("AddSource: %v", err)
	}
	if _, err := s.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if err := s.RemoveSource(ctx, "bob", notes); !errors.Is(err, storage.ErrSourceNotFound) {
		t.Errorf("RemoveSource for other owner error = %v, want ErrSourceNotFound", err)
	}
	if err := s.RemoveSource(ctx, "ann", notes); err != nil {
		t.Fatalf("RemoveSource: %v", err)
	}
	cards, err := db.LoadCardsForOwner(ctx, "ann")
	if err != nil {
		t.Fatalf("LoadCardsForOwner: %v", err)
	}
	if len(cards) != 0 {
		t.Errorf("Expected the source's cards to be removed, but %d remain", len(cards))
	}
}
