package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/conorfennell/knolstudy/internal/domain"
	"modernc.org/sqlite" // Registers the sqlite driver
	sqlite3 "modernc.org/sqlite/lib"
)

// DB represents a wrapper around the SQL database connection.
type DB struct {
	conn *sql.DB
}

// Open creates a new database connection and ensures the schema is up to date.
func Open(dsn string) (*DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows a single writer; one connection also keeps the
	// per-connection pragmas below in force for every statement.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply sqlite pragma %q: %w", stmt, err)
		}
	}

	// Execute the schema to create tables if they don't exist.
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &DB{conn: db}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks that the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

const cardColumns = `id, owner, deck, front, back, ease_factor, interval_days, repetitions,
	last_review, next_review, version, source_id`

type scanner interface {
	Scan(dest ...any) error
}

func scanCard(s scanner) (domain.Card, error) {
	var (
		c          domain.Card
		lastReview sql.NullTime
		nextReview sql.NullTime
		sourceID   sql.NullInt64
	)
	err := s.Scan(
		&c.ID,
		&c.Owner,
		&c.Deck,
		&c.Front,
		&c.Back,
		&c.EaseFactor,
		&c.Interval,
		&c.Repetitions,
		&lastReview,
		&nextReview,
		&c.Version,
		&sourceID,
	)
	if err != nil {
		return domain.Card{}, err
	}
	c.LastReview = timePtr(lastReview)
	c.NextReview = timePtr(nextReview)
	c.SourceID = sourceID.Int64
	return c, nil
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func nullSourceID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY || se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}

// InsertCard inserts a new card with version 1.
func (db *DB) InsertCard(ctx context.Context, card domain.Card) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO cards (id, owner, deck, front, back, ease_factor, interval_days, repetitions,
			last_review, next_review, version, source_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?)
	`,
		card.ID,
		card.Owner,
		card.Deck,
		card.Front,
		card.Back,
		card.EaseFactor,
		card.Interval,
		card.Repetitions,
		nullTime(card.LastReview),
		nullTime(card.NextReview),
		nullSourceID(card.SourceID),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: card %s", ErrDuplicate, card.ID)
		}
		return fmt.Errorf("failed to insert card %s: %w", card.ID, err)
	}
	return nil
}

// LoadCard retrieves a card by id.
func (db *DB) LoadCard(ctx context.Context, id string) (domain.Card, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+cardColumns+` FROM cards WHERE id = ?`, id)
	c, err := scanCard(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Card{}, fmt.Errorf("%w: %s", ErrCardNotFound, id)
		}
		return domain.Card{}, fmt.Errorf("failed to load card %s: %w", id, err)
	}
	return c, nil
}

// LoadCardsForDeck retrieves every card of one owner's deck.
func (db *DB) LoadCardsForDeck(ctx context.Context, owner, deck string) ([]domain.Card, error) {
	return db.queryCards(ctx, `SELECT `+cardColumns+` FROM cards WHERE owner = ? AND deck = ? ORDER BY id`, owner, deck)
}

// LoadCardsForOwner retrieves every card belonging to owner.
func (db *DB) LoadCardsForOwner(ctx context.Context, owner string) ([]domain.Card, error) {
	return db.queryCards(ctx, `SELECT `+cardColumns+` FROM cards WHERE owner = ? ORDER BY deck, id`, owner)
}

// GetCardsBySourceID retrieves all cards imported from a source.
func (db *DB) GetCardsBySourceID(ctx context.Context, sourceID int64) ([]domain.Card, error) {
	return db.queryCards(ctx, `SELECT `+cardColumns+` FROM cards WHERE source_id = ? ORDER BY id`, sourceID)
}

func (db *DB) queryCards(ctx context.Context, query string, args ...any) ([]domain.Card, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cards: %w", err)
	}
	defer rows.Close()

	var cards []domain.Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card row: %w", err)
		}
		cards = append(cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate card rows: %w", err)
	}
	return cards, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SaveCard writes card back if its Version still matches the stored row,
// then advances card.Version. A stale Version yields ErrVersionConflict.
func (db *DB) SaveCard(ctx context.Context, card *domain.Card) error {
	return saveCard(ctx, db.conn, card)
}

func saveCard(ctx context.Context, ex execer, card *domain.Card) error {
	res, err := ex.ExecContext(ctx, `
		UPDATE cards
		SET deck = ?, front = ?, back = ?, ease_factor = ?, interval_days = ?, repetitions = ?,
			last_review = ?, next_review = ?, version = version + 1
		WHERE id = ? AND version = ?
	`,
		card.Deck,
		card.Front,
		card.Back,
		card.EaseFactor,
		card.Interval,
		card.Repetitions,
		nullTime(card.LastReview),
		nullTime(card.NextReview),
		card.ID,
		card.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to save card %s: %w", card.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to save card %s: %w", card.ID, err)
	}
	if n == 0 {
		var exists int
		err := ex.QueryRowContext(ctx, `SELECT 1 FROM cards WHERE id = ?`, card.ID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrCardNotFound, card.ID)
		}
		if err != nil {
			return fmt.Errorf("failed to save card %s: %w", card.ID, err)
		}
		return fmt.Errorf("%w: %s at version %d", ErrVersionConflict, card.ID, card.Version)
	}
	card.Version++
	return nil
}

// RecordReview saves a graded card and appends its review log entry in one
// transaction. It fails with ErrVersionConflict exactly like SaveCard.
func (db *DB) RecordReview(ctx context.Context, card *domain.Card, entry domain.ReviewLog) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin review transaction: %w", err)
	}
	defer tx.Rollback()

	version := card.Version
	if err := saveCard(ctx, tx, card); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO review_log (card_id, owner, quality, reviewed_at, interval_days, ease_factor)
		VALUES (?, ?, ?, ?, ?, ?)
	`, entry.CardID, entry.Owner, entry.Quality, entry.ReviewedAt.UTC(), entry.Interval, entry.EaseFactor)
	if err != nil {
		card.Version = version
		return fmt.Errorf("failed to insert review log for card %s: %w", entry.CardID, err)
	}
	if err := tx.Commit(); err != nil {
		card.Version = version
		return fmt.Errorf("failed to commit review for card %s: %w", entry.CardID, err)
	}
	return nil
}

// ReviewLogForCard returns a card's review history, oldest first.
func (db *DB) ReviewLogForCard(ctx context.Context, cardID string) ([]domain.ReviewLog, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, card_id, owner, quality, reviewed_at, interval_days, ease_factor
		FROM review_log WHERE card_id = ? ORDER BY reviewed_at, id
	`, cardID)
	if err != nil {
		return nil, fmt.Errorf("failed to get review log for card %s: %w", cardID, err)
	}
	defer rows.Close()

	var logs []domain.ReviewLog
	for rows.Next() {
		var l domain.ReviewLog
		if err := rows.Scan(&l.ID, &l.CardID, &l.Owner, &l.Quality, &l.ReviewedAt, &l.Interval, &l.EaseFactor); err != nil {
			return nil, fmt.Errorf("failed to scan review log row for card %s: %w", cardID, err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// DeleteCard removes a card and its review history.
func (db *DB) DeleteCard(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM cards WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete card %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrCardNotFound, id)
	}
	return nil
}

// InsertSource inserts a new source path into the database and returns its ID.
func (db *DB) InsertSource(ctx context.Context, owner, path, sourceType string) (int64, error) {
	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO sources (owner, path, type)
		VALUES (?, ?, ?)
	`, owner, path, sourceType)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: source %s", ErrDuplicate, path)
		}
		return 0, fmt.Errorf("failed to insert source %s: %w", path, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for source %s: %w", path, err)
	}
	return id, nil
}

const sourceColumns = `id, owner, path, type, last_scanned`

func scanSource(s scanner) (domain.Source, error) {
	var (
		src         domain.Source
		lastScanned sql.NullTime
	)
	if err := s.Scan(&src.ID, &src.Owner, &src.Path, &src.Type, &lastScanned); err != nil {
		return domain.Source{}, err
	}
	src.LastScanned = timePtr(lastScanned)
	return src, nil
}

// FindSourceByPath retrieves one owner's source by its path.
func (db *DB) FindSourceByPath(ctx context.Context, owner, path string) (domain.Source, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+sourceColumns+` FROM sources WHERE owner = ? AND path = ?`, owner, path)
	src, err := scanSource(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Source{}, fmt.Errorf("%w: %s", ErrSourceNotFound, path)
		}
		return domain.Source{}, fmt.Errorf("failed to find source by path %s: %w", path, err)
	}
	return src, nil
}

// GetAllSources retrieves all stored sources from the database.
func (db *DB) GetAllSources(ctx context.Context) ([]domain.Source, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT `+sourceColumns+` FROM sources ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to get all sources: %w", err)
	}
	defer rows.Close()

	var sources []domain.Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source row: %w", err)
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

// DeleteSource removes a source and, through the foreign key, its cards.
func (db *DB) DeleteSource(ctx context.Context, id int64) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM sources WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete source %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %d", ErrSourceNotFound, id)
	}
	return nil
}

// UpdateSourceLastScanned updates the last_scanned timestamp for a source.
func (db *DB) UpdateSourceLastScanned(ctx context.Context, sourceID int64, at time.Time) error {
	_, err := db.conn.ExecContext(ctx, `
		UPDATE sources
		SET last_scanned = ?
		WHERE id = ?
	`, at.UTC(), sourceID)
	if err != nil {
		return fmt.Errorf("failed to update last scanned for source ID %d: %w", sourceID, err)
	}
	return nil
}
