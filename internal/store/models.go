package store

import "time"

// OrderUnset asks the store to place a task after the current last one.
const OrderUnset = -1

// Task is an entry in the ordered active list. Pomodoros counts the work
// units still to be done.
type Task struct {
	ID          string
	Category    string
	Description string
	Completed   bool
	Pomodoros   int
	Order       int
}

// CompletedTask is one finished pomodoro in the append-only history.
type CompletedTask struct {
	ID          string
	SourceID    string // active task the unit was taken from, if known
	Category    string
	Description string
	EndTime     time.Time
	Duration    time.Duration
	Completed   bool
	Pomodoros   int
}

type Setting struct {
	Key   string
	Value string
}

// CompletedFilter bounds ListCompleted by end time. Zero values are open.
type CompletedFilter struct {
	Since time.Time
	Until time.Time
}

// CompletedSummary aggregates the completed history.
type CompletedSummary struct {
	Count int
	Total time.Duration
}

// DailyCount is the number of pomodoros finished on one local day.
type DailyCount struct {
	Date      string // 2006-01-02
	Pomodoros int
}
