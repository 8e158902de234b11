package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/tigawanna/pomodoro-panda/internal/settings"
)

const taskColumns = `id, category, description, completed, pomodoros, sort_order`

func scanTask(row scanner) (Task, error) {
	var t Task
	var completed int
	if err := row.Scan(&t.ID, &t.Category, &t.Description, &completed, &t.Pomodoros, &t.Order); err != nil {
		return Task{}, err
	}
	t.Completed = completed == 1
	return t, nil
}

func validateTask(t Task) error {
	if t.ID == "" {
		return invalid("task id is empty")
	}
	if t.Pomodoros < 0 {
		return invalid("task %s: pomodoros must not be negative", t.ID)
	}
	return nil
}

// AddActive inserts t. An Order of OrderUnset places it after the last task.
func (s *Store) AddActive(ctx context.Context, t Task) (Task, error) {
	if err := validateTask(t); err != nil {
		return Task{}, err
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		t, err = insertActive(ctx, tx, t)
		return err
	})
	if err != nil {
		return Task{}, fmt.Errorf("add task %s: %w", t.ID, err)
	}
	return t, nil
}

func insertActive(ctx context.Context, tx *sql.Tx, t Task) (Task, error) {
	if t.Order == OrderUnset {
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(sort_order), -1) + 1 FROM active_tasks`,
		).Scan(&t.Order); err != nil {
			return Task{}, err
		}
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO active_tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.Category, t.Description, boolInt(t.Completed), t.Pomodoros, t.Order,
	)
	if isConstraint(err) {
		return Task{}, fmt.Errorf("%w: task %s", ErrDuplicateKey, t.ID)
	}
	return t, err
}

// AddTask creates a task with a fresh id. It goes to the top of the list
// unless the add_tasks_to_bottom setting is true.
func (s *Store) AddTask(ctx context.Context, category, description string, pomodoros int) (Task, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return Task{}, invalid("description is empty")
	}
	if pomodoros < 1 {
		return Task{}, invalid("pomodoros must be at least 1, got %d", pomodoros)
	}

	t := Task{
		ID:          uuid.NewString(),
		Category:    strings.TrimSpace(category),
		Description: description,
		Pomodoros:   pomodoros,
		Order:       OrderUnset,
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		bottom, err := txBool(ctx, tx, settings.KeyAddTasksToBottom, false)
		if err != nil {
			return err
		}
		if !bottom {
			if _, err := tx.ExecContext(ctx, `UPDATE active_tasks SET sort_order = sort_order + 1`); err != nil {
				return err
			}
			t.Order = 0
		}
		t, err = insertActive(ctx, tx, t)
		return err
	})
	if err != nil {
		return Task{}, fmt.Errorf("add task: %w", err)
	}
	return t, nil
}

// RepeatTask queues more work for category/description: an existing active
// task with the same text gains pomodoros, otherwise a new task is added.
func (s *Store) RepeatTask(ctx context.Context, category, description string, pomodoros int) (Task, error) {
	if pomodoros < 1 {
		return Task{}, invalid("pomodoros must be at least 1, got %d", pomodoros)
	}

	var found Task
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			`SELECT `+taskColumns+` FROM active_tasks
			 WHERE category = ? AND description = ?
			 ORDER BY sort_order LIMIT 1`,
			category, description,
		)
		t, err := scanTask(row)
		if isNoRows(err) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		t.Pomodoros += pomodoros
		_, err = tx.ExecContext(ctx, `UPDATE active_tasks SET pomodoros = ? WHERE id = ?`, t.Pomodoros, t.ID)
		found = t
		return err
	})
	switch {
	case err == nil:
		return found, nil
	case errors.Is(err, ErrNotFound):
		return s.AddTask(ctx, category, description, pomodoros)
	default:
		return Task{}, fmt.Errorf("repeat task: %w", err)
	}
}

// ListActive returns all active tasks by ascending order, ties broken by
// insertion order.
func (s *Store) ListActive(ctx context.Context) ([]Task, error) {
	if err := s.read(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM active_tasks ORDER BY sort_order, rowid`,
	)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (s *Store) GetActive(ctx context.Context, id string) (Task, error) {
	if err := s.read(); err != nil {
		return Task{}, err
	}
	t, err := scanTask(s.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM active_tasks WHERE id = ?`, id,
	))
	if isNoRows(err) {
		return Task{}, fmt.Errorf("get task %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Task{}, fmt.Errorf("get task %s: %w", id, err)
	}
	return t, nil
}

// UpdateActive writes t, inserting it when absent. An Order of OrderUnset
// keeps the stored position of an existing task.
func (s *Store) UpdateActive(ctx context.Context, t Task) (Task, error) {
	if err := validateTask(t); err != nil {
		return Task{}, err
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE active_tasks
			 SET category = ?, description = ?, completed = ?, pomodoros = ?,
			     sort_order = CASE WHEN ? < 0 THEN sort_order ELSE ? END
			 WHERE id = ?`,
			t.Category, t.Description, boolInt(t.Completed), t.Pomodoros, t.Order, t.Order, t.ID,
		)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			t, err = insertActive(ctx, tx, t)
			return err
		}
		if t.Order == OrderUnset {
			return tx.QueryRowContext(ctx, `SELECT sort_order FROM active_tasks WHERE id = ?`, t.ID).Scan(&t.Order)
		}
		return nil
	})
	if err != nil {
		return Task{}, fmt.Errorf("update task %s: %w", t.ID, err)
	}
	return t, nil
}

// UpdatePomodoros sets the remaining work units of a task.
func (s *Store) UpdatePomodoros(ctx context.Context, id string, n int) error {
	if n < 1 {
		return invalid("pomodoros must be at least 1, got %d", n)
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE active_tasks SET pomodoros = ? WHERE id = ?`, n, id)
		if err != nil {
			return err
		}
		if rows, _ := res.RowsAffected(); rows == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("update pomodoros %s: %w", id, err)
	}
	return nil
}

// ReorderActive replaces the whole active list with tasks, giving each the
// order of its index. An empty slice clears the list.
func (s *Store) ReorderActive(ctx context.Context, tasks []Task) error {
	seen := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		if err := validateTask(t); err != nil {
			return err
		}
		if seen[t.ID] {
			return fmt.Errorf("reorder: %w: task %s appears twice", ErrDuplicateKey, t.ID)
		}
		seen[t.ID] = true
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM active_tasks`); err != nil {
			return err
		}
		for i, t := range tasks {
			t.Order = i
			if _, err := insertActive(ctx, tx, t); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("reorder tasks: %w", err)
	}
	return nil
}

// DeleteActive removes a task if present and compacts the remaining orders
// to 0..n-1.
func (s *Store) DeleteActive(ctx context.Context, id string) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM active_tasks WHERE id = ?`, id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil
		}
		return compactOrder(ctx, tx)
	})
	if err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	return nil
}

func compactOrder(ctx context.Context, tx *sql.Tx) error {
	rows, err := tx.QueryContext(ctx, `SELECT id FROM active_tasks ORDER BY sort_order, rowid`)
	if err != nil {
		return err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for i, id := range ids {
		if _, err := tx.ExecContext(ctx, `UPDATE active_tasks SET sort_order = ? WHERE id = ?`, i, id); err != nil {
			return err
		}
	}
	return nil
}
