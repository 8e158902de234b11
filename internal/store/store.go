package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tigawanna/pomodoro-panda/internal/logging"
)

const currentVersion = 3

type Store struct {
	db      *sql.DB
	now     func() time.Time
	blocked atomic.Bool

	// faultAfterInsert, when set, runs inside CompleteOneUnit between the
	// completed-record insert and the active-task update.
	faultAfterInsert func() error
}

// Option configures a Store.
type Option func(*Store)

// WithNow replaces the clock used for collision suffixes and "today" filters.
func WithNow(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New opens (or creates) the SQLite database at dbPath and runs migrations.
func New(dbPath string, opts ...Option) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(1)

	// Configure pragmas.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// NewMemory creates an in-memory store for testing.
func NewMemory(opts ...Option) (*Store, error) {
	return New(":memory:", opts...)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Blocked reports whether the store closed itself after detecting a schema
// version it does not understand. The process must be restarted.
func (s *Store) Blocked() bool {
	return s.blocked.Load()
}

func (s *Store) block(found int) error {
	if s.blocked.CompareAndSwap(false, true) {
		logging.Error("store", "schema version %d does not match %d; closing", found, currentVersion)
		s.db.Close()
	}
	return fmt.Errorf("%w: found version %d, want %d", ErrSchemaBlocked, found, currentVersion)
}

func (s *Store) migrate(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classifyMigration(err)
	}
	defer tx.Rollback()

	var version int
	if err := tx.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return classifyMigration(fmt.Errorf("read user_version: %w", err))
	}

	if version > currentVersion {
		tx.Rollback()
		return s.block(version)
	}
	if version == currentVersion {
		return nil
	}

	steps := []func(context.Context, *sql.Tx) error{migrateV1, migrateV2, migrateV3}
	for v := version; v < currentVersion; v++ {
		if err := steps[v](ctx, tx); err != nil {
			return classifyMigration(fmt.Errorf("migrate to v%d: %w", v+1, err))
		}
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", currentVersion)); err != nil {
		return classifyMigration(err)
	}
	if err := tx.Commit(); err != nil {
		return classifyMigration(err)
	}
	logging.Info("store", "migrated schema from v%d to v%d", version, currentVersion)
	return nil
}

func migrateV1(ctx context.Context, tx *sql.Tx) error {
	const ddl = `
	CREATE TABLE IF NOT EXISTS active_tasks (
		id          TEXT PRIMARY KEY,
		category    TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL,
		completed   INTEGER NOT NULL DEFAULT 0,
		pomodoros   INTEGER NOT NULL DEFAULT 1,
		sort_order  INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_active_order ON active_tasks(sort_order);
	`
	_, err := tx.ExecContext(ctx, ddl)
	return err
}

func migrateV2(ctx context.Context, tx *sql.Tx) error {
	const ddl = `
	CREATE TABLE IF NOT EXISTS completed_tasks (
		id          TEXT PRIMARY KEY,
		source_id   TEXT NOT NULL DEFAULT '',
		category    TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL,
		end_time    INTEGER NOT NULL,
		duration    INTEGER NOT NULL DEFAULT 0,
		completed   INTEGER NOT NULL DEFAULT 1,
		pomodoros   INTEGER NOT NULL DEFAULT 1
	);

	CREATE INDEX IF NOT EXISTS idx_completed_end ON completed_tasks(end_time);
	`
	_, err := tx.ExecContext(ctx, ddl)
	return err
}

func migrateV3(ctx context.Context, tx *sql.Tx) error {
	const ddl = `
	CREATE TABLE IF NOT EXISTS settings (
		id    TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := tx.ExecContext(ctx, ddl)
	return err
}

// withTx runs fn inside a write transaction after confirming the schema is
// still the one this build migrated to. Engine failures are reported as
// ErrTransactionAborted; store sentinels pass through unchanged.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	if s.blocked.Load() {
		return ErrSchemaBlocked
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return aborted(err)
	}
	defer tx.Rollback()

	var version int
	if err := tx.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return aborted(err)
	}
	if version != currentVersion {
		tx.Rollback()
		return s.block(version)
	}

	if err := fn(tx); err != nil {
		if isSentinel(err) {
			return err
		}
		return aborted(err)
	}
	if err := tx.Commit(); err != nil {
		return aborted(err)
	}
	return nil
}

// read guards read-only queries against a store that has been blocked.
func (s *Store) read() error {
	if s.blocked.Load() {
		return ErrSchemaBlocked
	}
	return nil
}

// DefaultDBPath returns ~/.config/pomodoro-panda/pomodoro.db
func DefaultDBPath() (string, error) {
	cfg, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cfg, "pomodoro-panda", "pomodoro.db"), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
