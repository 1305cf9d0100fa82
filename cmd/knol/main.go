package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/conorfennell/knolstudy/internal/config"
	"github.com/conorfennell/knolstudy/internal/events"
	"github.com/conorfennell/knolstudy/internal/review"
	"github.com/conorfennell/knolstudy/internal/storage"
	"github.com/conorfennell/knolstudy/internal/storage/pgstore"
	"github.com/conorfennell/knolstudy/internal/sync"
	"github.com/conorfennell/knolstudy/internal/web"
)

const usage = `usage: knol <command> [flags]

commands:
  serve                       run the HTTP API
  sync                        import cards from all sources
  add-source --owner <name> <path|git-url>
                              register a notes directory or git repository
  remove-source --owner <name> <path|git-url>
                              unregister a source and delete its cards
  stats --owner <name>        print study statistics

run "knol <command> --help" for the flags of a command.
`

// store is everything the commands need from a storage backend.
type store interface {
	review.Store
	sync.Store
	Ping(ctx context.Context) error
	Close() error
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "knol: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd string, args []string) error {
	flags := pflag.NewFlagSet(cmd, pflag.ContinueOnError)
	config.RegisterFlags(flags)
	owner := flags.String("owner", "", "owner whose cards the command works on")

	switch cmd {
	case "serve", "sync", "add-source", "remove-source", "stats":
	case "help", "-h", "--help":
		fmt.Print(usage)
		return nil
	default:
		return fmt.Errorf("unknown command %q\n\n%s", cmd, usage)
	}

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load(flags, "")
	if err != nil {
		return err
	}
	log := config.NewLogger(cfg.Log, os.Stderr)
	slog.SetDefault(log)

	db, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer db.Close()
	log.Info("storage opened", "driver", cfg.Storage.Driver)

	syncer := sync.NewSyncer(db, log, cfg.Sync.ReposDir)

	switch cmd {
	case "serve":
		return serve(ctx, cfg, db, syncer, log)

	case "sync":
		report, err := syncer.Run(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Synced %d sources: %d added, %d moved, %d removed, %d failed.\n",
			report.Sources, report.Added, report.Moved, report.Removed, report.Failed)
		return nil

	case "add-source":
		if *owner == "" || flags.NArg() != 1 {
			return errors.New("usage: knol add-source --owner <name> <path|git-url>")
		}
		src, err := syncer.AddSource(ctx, *owner, flags.Arg(0))
		if err != nil {
			return err
		}
		fmt.Printf("Added %s source %d: %s\n", src.Type, src.ID, src.Path)
		return nil

	case "remove-source":
		if *owner == "" || flags.NArg() != 1 {
			return errors.New("usage: knol remove-source --owner <name> <path|git-url>")
		}
		if err := syncer.RemoveSource(ctx, *owner, flags.Arg(0)); err != nil {
			return err
		}
		fmt.Printf("Removed source %s\n", flags.Arg(0))
		return nil

	case "stats":
		if *owner == "" {
			return errors.New("usage: knol stats --owner <name>")
		}
		svc := review.NewService(db, review.Options{Logger: log})
		sum, err := svc.Summary(ctx, *owner)
		if err != nil {
			return err
		}
		decks, err := svc.Decks(ctx, *owner)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"summary": sum, "decks": decks})
	}
	return nil
}

func openStore(ctx context.Context, c config.StorageConfig) (store, error) {
	if c.Driver == "postgres" {
		s, err := pgstore.Open(ctx, c.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	db, err := storage.Open(c.DSN)
	if err != nil {
		return nil, err
	}
	return db, nil
}

func serve(ctx context.Context, cfg config.Config, db store, syncer *sync.Syncer, log *slog.Logger) error {
	var publisher events.Publisher = events.Nop{}
	if cfg.NATS.URL != "" {
		p, err := events.ConnectNATS(cfg.NATS.URL, cfg.NATS.Token, cfg.NATS.Subject)
		if err != nil {
			return err
		}
		publisher = p
		log.Info("publishing review events", "url", cfg.NATS.URL, "subject", cfg.NATS.Subject)
	}
	defer publisher.Close()

	svc := review.NewService(db, review.Options{
		MaxAttempts: cfg.Review.MaxAttempts,
		QueueLimit:  cfg.Review.QueueLimit,
		Publisher:   publisher,
		Logger:      log,
	})
	handler := web.NewServer(svc, syncer, db, log, web.Options{
		RateLimit:      cfg.Server.RateLimit,
		RequestTimeout: cfg.Server.RequestTimeout,
	})

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	log.Info("server stopped")
	return nil
}
