package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
)

func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", invalid("setting key is empty")
	}
	if err := s.read(); err != nil {
		return "", err
	}
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE id = ?`, key).Scan(&value)
	if isNoRows(err) {
		return "", fmt.Errorf("get setting %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("get setting %q: %w", key, err)
	}
	return value, nil
}

func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	if key == "" {
		return invalid("setting key is empty")
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO settings (id, value) VALUES (?, ?) ON CONFLICT(id) DO UPDATE SET value = excluded.value`,
			key, value,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}
	return nil
}

// DeleteSetting removes key; a missing key is not an error.
func (s *Store) DeleteSetting(ctx context.Context, key string) error {
	if key == "" {
		return invalid("setting key is empty")
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM settings WHERE id = ?`, key)
		return err
	})
	if err != nil {
		return fmt.Errorf("delete setting %q: %w", key, err)
	}
	return nil
}

func (s *Store) AllSettings(ctx context.Context) ([]Setting, error) {
	if err := s.read(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, value FROM settings ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	var settings []Setting
	for rows.Next() {
		var s Setting
		if err := rows.Scan(&s.Key, &s.Value); err != nil {
			return nil, err
		}
		settings = append(settings, s)
	}
	return settings, rows.Err()
}

// GetBool returns def when key is unset.
func (s *Store) GetBool(ctx context.Context, key string, def bool) (bool, error) {
	v, err := s.GetSetting(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return def, nil
		}
		return def, err
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("setting %q: %w: %q is not a bool", key, ErrInvalidArgument, v)
	}
	return b, nil
}

func (s *Store) SetBool(ctx context.Context, key string, v bool) error {
	return s.SetSetting(ctx, key, strconv.FormatBool(v))
}

// GetInt64 returns def when key is unset.
func (s *Store) GetInt64(ctx context.Context, key string, def int64) (int64, error) {
	v, err := s.GetSetting(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return def, nil
		}
		return def, err
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def, fmt.Errorf("setting %q: %w: %q is not an integer", key, ErrInvalidArgument, v)
	}
	return n, nil
}

// txBool reads a boolean setting inside an open transaction.
func txBool(ctx context.Context, tx *sql.Tx, key string, def bool) (bool, error) {
	var v string
	err := tx.QueryRowContext(ctx, `SELECT value FROM settings WHERE id = ?`, key).Scan(&v)
	if isNoRows(err) {
		return def, nil
	}
	if err != nil {
		return def, err
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, nil
	}
	return b, nil
}
