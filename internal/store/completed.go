package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const completedColumns = `id, source_id, category, description, end_time, duration, completed, pomodoros`

func scanCompleted(row scanner) (CompletedTask, error) {
	var c CompletedTask
	var endMs, durMs int64
	var completed int
	if err := row.Scan(&c.ID, &c.SourceID, &c.Category, &c.Description, &endMs, &durMs, &completed, &c.Pomodoros); err != nil {
		return CompletedTask{}, err
	}
	c.EndTime = time.UnixMilli(endMs)
	c.Duration = time.Duration(durMs) * time.Millisecond
	c.Completed = completed == 1
	return c, nil
}

// TodayFilter selects records that ended on now's local calendar day.
func TodayFilter(now time.Time) CompletedFilter {
	y, m, d := now.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	return CompletedFilter{Since: start, Until: start.AddDate(0, 0, 1)}
}

func (f CompletedFilter) where() (string, []any) {
	clause := ` WHERE 1=1`
	var args []any
	if !f.Since.IsZero() {
		clause += ` AND end_time >= ?`
		args = append(args, f.Since.UnixMilli())
	}
	if !f.Until.IsZero() {
		clause += ` AND end_time < ?`
		args = append(args, f.Until.UnixMilli())
	}
	return clause, args
}

// ListCompleted returns completed records newest first.
func (s *Store) ListCompleted(ctx context.Context, f CompletedFilter) ([]CompletedTask, error) {
	if err := s.read(); err != nil {
		return nil, err
	}
	where, args := f.where()
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+completedColumns+` FROM completed_tasks`+where+` ORDER BY end_time DESC, rowid DESC`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("list completed: %w", err)
	}
	defer rows.Close()

	records := []CompletedTask{}
	for rows.Next() {
		c, err := scanCompleted(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, c)
	}
	return records, rows.Err()
}

func (s *Store) GetCompleted(ctx context.Context, id string) (CompletedTask, error) {
	if err := s.read(); err != nil {
		return CompletedTask{}, err
	}
	c, err := scanCompleted(s.db.QueryRowContext(ctx,
		`SELECT `+completedColumns+` FROM completed_tasks WHERE id = ?`, id,
	))
	if isNoRows(err) {
		return CompletedTask{}, fmt.Errorf("get completed %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return CompletedTask{}, fmt.Errorf("get completed %s: %w", id, err)
	}
	return c, nil
}

// CompleteOneUnit moves one pomodoro of the active task into the completed
// log in a single transaction: rec is inserted, and the task loses one
// pomodoro or is removed when none remain. If rec.ID is already taken, the
// record is stored under a timestamp-suffixed id. The stored record is
// returned.
func (s *Store) CompleteOneUnit(ctx context.Context, activeTaskID string, rec CompletedTask) (CompletedTask, error) {
	if activeTaskID == "" {
		return CompletedTask{}, invalid("active task id is empty")
	}
	if rec.ID == "" {
		return CompletedTask{}, invalid("completed record id is empty")
	}
	if rec.SourceID == "" {
		rec.SourceID = activeTaskID
	}
	if rec.Pomodoros < 1 {
		rec.Pomodoros = 1
	}
	rec.Completed = true

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		task, err := scanTask(tx.QueryRowContext(ctx,
			`SELECT `+taskColumns+` FROM active_tasks WHERE id = ?`, activeTaskID,
		))
		if isNoRows(err) {
			return fmt.Errorf("%w: %s", ErrTaskNotFound, activeTaskID)
		}
		if err != nil {
			return err
		}

		rec.ID, err = s.freeCompletedID(ctx, tx, rec.ID)
		if err != nil {
			return err
		}
		if err := insertCompleted(ctx, tx, rec); err != nil {
			return err
		}

		if s.faultAfterInsert != nil {
			if err := s.faultAfterInsert(); err != nil {
				return err
			}
		}

		if task.Pomodoros-1 >= 1 {
			_, err = tx.ExecContext(ctx, `UPDATE active_tasks SET pomodoros = ? WHERE id = ?`, task.Pomodoros-1, task.ID)
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM active_tasks WHERE id = ?`, task.ID); err != nil {
			return err
		}
		return compactOrder(ctx, tx)
	})
	if err != nil {
		return CompletedTask{}, fmt.Errorf("complete %s: %w", activeTaskID, err)
	}
	return rec, nil
}

// freeCompletedID returns id, or id suffixed with the current time in
// milliseconds when id is already stored.
func (s *Store) freeCompletedID(ctx context.Context, tx *sql.Tx, id string) (string, error) {
	candidate := id
	ms := s.now().UnixMilli()
	for n := 0; ; n++ {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM completed_tasks WHERE id = ?`, candidate).Scan(&exists)
		if err != nil {
			return "", err
		}
		if exists == 0 {
			return candidate, nil
		}
		if n == 0 {
			candidate = fmt.Sprintf("%s-%d", id, ms)
		} else {
			candidate = fmt.Sprintf("%s-%d-%d", id, ms, n)
		}
	}
}

func insertCompleted(ctx context.Context, tx *sql.Tx, c CompletedTask) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO completed_tasks (`+completedColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.SourceID, c.Category, c.Description, c.EndTime.UnixMilli(),
		c.Duration.Milliseconds(), boolInt(c.Completed), c.Pomodoros,
	)
	if isConstraint(err) {
		return fmt.Errorf("%w: completed %s", ErrDuplicateKey, c.ID)
	}
	return err
}

// UpdateCompleted edits the category, description and duration of an
// existing record. EndTime is never rewritten.
func (s *Store) UpdateCompleted(ctx context.Context, c CompletedTask) error {
	if c.ID == "" {
		return invalid("completed record id is empty")
	}
	if c.Duration < 0 {
		return invalid("duration must not be negative")
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE completed_tasks SET category = ?, description = ?, duration = ? WHERE id = ?`,
			c.Category, c.Description, c.Duration.Milliseconds(), c.ID,
		)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("update completed %s: %w", c.ID, err)
	}
	return nil
}

// DeleteCompleted removes a record; a missing id is not an error.
func (s *Store) DeleteCompleted(ctx context.Context, id string) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM completed_tasks WHERE id = ?`, id)
		return err
	})
	if err != nil {
		return fmt.Errorf("delete completed %s: %w", id, err)
	}
	return nil
}

func (s *Store) CompletedStats(ctx context.Context, f CompletedFilter) (CompletedSummary, error) {
	if err := s.read(); err != nil {
		return CompletedSummary{}, err
	}
	where, args := f.where()
	var sum CompletedSummary
	var totalMs int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(duration), 0) FROM completed_tasks`+where, args...,
	).Scan(&sum.Count, &totalMs)
	if err != nil {
		return CompletedSummary{}, fmt.Errorf("completed stats: %w", err)
	}
	sum.Total = time.Duration(totalMs) * time.Millisecond
	return sum, nil
}

// DailyPomodoros counts pomodoros per local day in [from, to), including
// days with none.
func (s *Store) DailyPomodoros(ctx context.Context, from, to time.Time) ([]DailyCount, error) {
	records, err := s.ListCompleted(ctx, CompletedFilter{Since: from, Until: to})
	if err != nil {
		return nil, fmt.Errorf("daily pomodoros: %w", err)
	}

	counts := make(map[string]int)
	for _, r := range records {
		counts[r.EndTime.In(from.Location()).Format("2006-01-02")] += r.Pomodoros
	}

	var days []DailyCount
	y, m, d := from.Date()
	for day := time.Date(y, m, d, 0, 0, 0, 0, from.Location()); day.Before(to); day = day.AddDate(0, 0, 1) {
		key := day.Format("2006-01-02")
		days = append(days, DailyCount{Date: key, Pomodoros: counts[key]})
	}
	return days, nil
}
