// Package audit journals dispatch cycles to SQLite.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"chatrouter/internal/dispatch"
	"chatrouter/internal/domain"
)

// Entry is one journaled listener outcome.
type Entry struct {
	CycleID   string
	EventID   string
	Component string
	Author    string
	Listener  string
	Priority  int
	Status    string
	Error     string
	Duration  time.Duration
	At        time.Time
}

// Store is a dispatch.Observer that persists cycles.
type Store struct {
	db          *sql.DB
	logger      *slog.Logger
	matchedOnly bool
}

type Option func(*Store)

// WithMatchedOnly drops skipped outcomes, and cycles where nothing matched
// or faulted.
func WithMatchedOnly(v bool) Option {
	return func(s *Store) { s.matchedOnly = v }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// Open opens or creates the journal at dbPath.
func Open(ctx context.Context, dbPath string, opts ...Option) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(s)
	}

	if err := RunMigrations(ctx, db, s.logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// ObserveCycle records c, logging instead of returning failures.
func (s *Store) ObserveCycle(ctx context.Context, c dispatch.Cycle) {
	if err := s.Record(context.WithoutCancel(ctx), c); err != nil {
		s.logger.Error("audit record failed", "cycle", c.ID, "err", err)
	}
}

// Record writes c and its outcomes in one transaction.
func (s *Store) Record(ctx context.Context, c dispatch.Cycle) error {
	outcomes := c.Outcomes
	if s.matchedOnly {
		outcomes = make([]dispatch.Outcome, 0, len(c.Outcomes))
		for _, o := range c.Outcomes {
			if o.Status != dispatch.StatusSkipped {
				outcomes = append(outcomes, o)
			}
		}
		if len(outcomes) == 0 {
			return nil
		}
	}

	author, _, err := domain.AuthorID(ctx, c.Event)
	if err != nil {
		author = ""
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO cycles (id, event_id, component, bot_id, author, started_at, duration_us)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Event.ID(), c.Event.Component(), c.Event.BotID(), author,
		c.Started.UnixMilli(), c.Duration.Microseconds(),
	); err != nil {
		return fmt.Errorf("insert cycle: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO outcomes (cycle_id, listener, priority, status, error, duration_us)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, o := range outcomes {
		var errText sql.NullString
		if o.Err != nil {
			errText = sql.NullString{String: o.Err.Error(), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, c.ID, o.Listener.Name, o.Listener.Priority,
			o.Status.String(), errText, o.Duration.Microseconds()); err != nil {
			return fmt.Errorf("insert outcome: %w", err)
		}
	}
	return tx.Commit()
}

// Recent returns up to limit outcomes, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.event_id, c.component, c.author, o.listener, o.priority, o.status,
		        COALESCE(o.error, ''), o.duration_us, c.started_at
		 FROM outcomes o JOIN cycles c ON c.id = o.cycle_id
		 ORDER BY c.started_at DESC, o.id DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e          Entry
			durationUS int64
			startedMS  int64
		)
		if err := rows.Scan(&e.CycleID, &e.EventID, &e.Component, &e.Author, &e.Listener, &e.Priority,
			&e.Status, &e.Error, &durationUS, &startedMS); err != nil {
			return nil, err
		}
		e.Duration = time.Duration(durationUS) * time.Microsecond
		e.At = time.UnixMilli(startedMS)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Prune deletes cycles started before cutoff and returns how many were removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	ms := cutoff.UnixMilli()
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM outcomes WHERE cycle_id IN (SELECT id FROM cycles WHERE started_at < ?)`, ms); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM cycles WHERE started_at < ?`, ms)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, tx.Commit()
}

// RunRetention prunes entries older than retention every interval until ctx
// is done. A zero retention keeps everything.
func (s *Store) RunRetention(ctx context.Context, retention, interval time.Duration) {
	if retention <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		n, err := s.Prune(ctx, time.Now().Add(-retention))
		if err != nil {
			s.logger.Warn("audit prune failed", "err", err)
		} else if n > 0 {
			s.logger.Info("audit entries pruned", "cycles", n)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
