package store

import (
	"errors"
	"fmt"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	ErrDuplicateKey       = errors.New("duplicate key")
	ErrNotFound           = errors.New("not found")
	ErrTaskNotFound       = fmt.Errorf("task %w", ErrNotFound)
	ErrTransactionAborted = errors.New("transaction aborted")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrSchemaBlocked      = errors.New("schema changed by another process; restart required")
)

var sentinels = []error{
	ErrDuplicateKey,
	ErrNotFound,
	ErrTransactionAborted,
	ErrInvalidArgument,
	ErrSchemaBlocked,
}

func isSentinel(err error) bool {
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return true
		}
	}
	return false
}

func aborted(err error) error {
	return fmt.Errorf("%w: %w", ErrTransactionAborted, err)
}

func sqliteCode(err error) (int, bool) {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code(), true
	}
	return 0, false
}

// isConstraint reports a primary-key or unique violation.
func isConstraint(err error) bool {
	code, ok := sqliteCode(err)
	if !ok {
		return false
	}
	switch code {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return true
	}
	return code == sqlite3.SQLITE_CONSTRAINT
}

func isBusy(err error) bool {
	code, ok := sqliteCode(err)
	if !ok {
		return false
	}
	switch code & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	}
	return false
}

// classifyMigration maps a lock held by another connection to ErrSchemaBlocked.
func classifyMigration(err error) error {
	if isBusy(err) {
		return fmt.Errorf("%w: %w", ErrSchemaBlocked, err)
	}
	return err
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
