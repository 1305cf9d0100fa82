// Package sync imports cards from markdown sources into the card store and
// removes cards whose notes have disappeared.
package sync

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/conorfennell/knolstudy/internal/domain"
	"github.com/conorfennell/knolstudy/internal/gitsource"
	"github.com/conorfennell/knolstudy/internal/knol"
	"github.com/conorfennell/knolstudy/internal/parser"
	"github.com/conorfennell/knolstudy/internal/srs"
	"github.com/conorfennell/knolstudy/internal/storage"
)

// Store is the persistence a Syncer needs.
type Store interface {
	InsertSource(ctx context.Context, owner, path, sourceType string) (int64, error)
	FindSourceByPath(ctx context.Context, owner, path string) (domain.Source, error)
	GetAllSources(ctx context.Context) ([]domain.Source, error)
	DeleteSource(ctx context.Context, id int64) error
	UpdateSourceLastScanned(ctx context.Context, sourceID int64, at time.Time) error

	InsertCard(ctx context.Context, card domain.Card) error
	LoadCard(ctx context.Context, id string) (domain.Card, error)
	SaveCard(ctx context.Context, card *domain.Card) error
	GetCardsBySourceID(ctx context.Context, sourceID int64) ([]domain.Card, error)
	DeleteCard(ctx context.Context, id string) error
}

// Report sums up one sync run.
type Report struct {
	Sources int `json:"sources"`
	Added   int `json:"added"`
	Moved   int `json:"moved"` // cards whose deck changed
	Removed int `json:"removed"`
	Failed  int `json:"failed"` // sources that could not be reconciled
}

type Syncer struct {
	store    Store
	log      *slog.Logger
	reposDir string
	now      func() time.Time
}

// NewSyncer returns a Syncer that clones git sources under reposDir.
func NewSyncer(store Store, log *slog.Logger, reposDir string) *Syncer {
	if log == nil {
		log = slog.Default()
	}
	return &Syncer{
		store:    store,
		log:      log.With("component", "sync"),
		reposDir: reposDir,
		now:      time.Now,
	}
}

// AddSource registers a local directory or git URL for owner. Local paths
// are stored absolute.
func (s *Syncer) AddSource(ctx context.Context, owner, path string) (domain.Source, error) {
	sourceType := domain.SourceLocal
	if gitsource.IsRemote(path) {
		sourceType = domain.SourceGit
	} else {
		abs, err := filepath.Abs(path)
		if err != nil {
			return domain.Source{}, fmt.Errorf("failed to resolve %s: %w", path, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return domain.Source{}, fmt.Errorf("failed to add source %s: %w", path, err)
		}
		if !info.IsDir() {
			return domain.Source{}, fmt.Errorf("failed to add source %s: not a directory", path)
		}
		path = abs
	}

	if _, err := s.store.InsertSource(ctx, owner, path, sourceType); err != nil {
		return domain.Source{}, err
	}
	return s.store.FindSourceByPath(ctx, owner, path)
}

// RemoveSource unregisters owner's source at path. Its cards go with it.
func (s *Syncer) RemoveSource(ctx context.Context, owner, path string) error {
	if !gitsource.IsRemote(path) {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
	}
	src, err := s.store.FindSourceByPath(ctx, owner, path)
	if err != nil {
		return err
	}
	if err := s.store.DeleteSource(ctx, src.ID); err != nil {
		return err
	}
	s.log.Info("removed source", "id", src.ID, "path", src.Path)
	return nil
}

// Run reconciles every configured source. A failing source is logged and
// counted; only errors that stop the whole run are returned.
func (s *Syncer) Run(ctx context.Context) (Report, error) {
	var report Report
	s.log.Info("starting sync")

	sources, err := s.store.GetAllSources(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to get sources: %w", err)
	}
	if len(sources) == 0 {
		s.log.Info("no sources configured, add one with: knol add-source <path/or/url.git>")
		return report, nil
	}

	for _, source := range sources {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Sources++
		s.log.Info("syncing source", "id", source.ID, "type", source.Type, "path", source.Path)

		dir := source.Path
		if source.Type == domain.SourceGit {
			dir, err = s.fetch(ctx, source.Path)
			if err != nil {
				s.log.Error("failed to sync git source", "url", source.Path, "error", err)
				report.Failed++
				continue
			}
		}

		if err := s.reconcile(ctx, source, dir, &report); err != nil {
			s.log.Error("failed to reconcile source", "id", source.ID, "path", dir, "error", err)
			report.Failed++
		}
	}

	s.log.Info("sync complete",
		"sources", report.Sources,
		"added", report.Added,
		"moved", report.Moved,
		"removed", report.Removed,
		"failed", report.Failed,
	)
	return report, nil
}

func (s *Syncer) fetch(ctx context.Context, repoURL string) (string, error) {
	local, err := gitsource.LocalPath(s.reposDir, repoURL)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(local), 0o755); err != nil {
		return "", fmt.Errorf("failed to create repos directory: %w", err)
	}
	if err := gitsource.Sync(ctx, s.log, repoURL, local); err != nil {
		return "", err
	}
	return local, nil
}

func (s *Syncer) reconcile(ctx context.Context, source domain.Source, dir string, report *Report) error {
	found := make(map[string]bool)
	var parseErrors int

	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(d.Name()), ".md") {
			return nil
		}

		entries, err := parser.ParseFile(path)
		if err != nil {
			s.log.Warn("failed to parse file", "path", path, "error", err)
			parseErrors++
			return nil
		}
		for _, e := range entries {
			id := knol.Hash(source.Owner, e.Front(), e.Back())
			found[id] = true
			if err := s.upsert(ctx, source, id, e, report); err != nil {
				return err
			}
		}
		return nil
	})
	if walkErr != nil {
		return fmt.Errorf("failed to walk %s: %w", dir, walkErr)
	}

	// A file that failed to parse may still hold cards, so nothing is
	// removed until every file parses again.
	if parseErrors == 0 {
		existing, err := s.store.GetCardsBySourceID(ctx, source.ID)
		if err != nil {
			return err
		}
		for _, c := range existing {
			if found[c.ID] {
				continue
			}
			s.log.Info("removing orphaned card", "card_id", c.ID, "deck", c.Deck)
			if err := s.store.DeleteCard(ctx, c.ID); err != nil && !errors.Is(err, storage.ErrCardNotFound) {
				s.log.Warn("failed to delete orphaned card", "card_id", c.ID, "error", err)
				continue
			}
			report.Removed++
		}
	}

	if err := s.store.UpdateSourceLastScanned(ctx, source.ID, s.now()); err != nil {
		s.log.Warn("failed to update last scanned", "source_id", source.ID, "error", err)
	}
	return nil
}

// upsert inserts an unseen card, or moves a known card of this source to the
// deck its note now names. Scheduling state of known cards is never touched.
func (s *Syncer) upsert(ctx context.Context, source domain.Source, id string, e parser.Entry, report *Report) error {
	existing, err := s.store.LoadCard(ctx, id)
	switch {
	case errors.Is(err, storage.ErrCardNotFound):
		card := srs.NewCard(id, source.Owner, e.Deck, e.Front(), e.Back())
		card.SourceID = source.ID
		if err := s.store.InsertCard(ctx, card); err != nil {
			if errors.Is(err, storage.ErrDuplicate) {
				return nil
			}
			return err
		}
		s.log.Debug("added card", "card_id", id, "deck", e.Deck)
		report.Added++
		return nil
	case err != nil:
		return err
	}

	if existing.SourceID != source.ID || existing.Deck == e.Deck {
		return nil
	}
	existing.Deck = e.Deck
	if err := s.store.SaveCard(ctx, &existing); err != nil {
		if errors.Is(err, storage.ErrVersionConflict) {
			s.log.Warn("card changed during sync, deck move skipped", "card_id", id)
			return nil
		}
		return err
	}
	report.Moved++
	return nil
}
