// Package estimate projects when each queued task will be finished if the
// list is worked through in order.
package estimate

import (
	"time"

	"github.com/tigawanna/pomodoro-panda/internal/settings"
	"github.com/tigawanna/pomodoro-panda/internal/store"
)

// Estimate is the projection for one task.
type Estimate struct {
	TaskID      string
	Remaining   time.Duration // work and trailing break attributed to the task
	CompletesAt time.Time
}

// Completion walks tasks in order. The active task counts the live
// remaining time for its current pomodoro when the timer is running; every
// other pomodoro counts a full work duration. A short break follows every
// task except the last.
func Completion(tasks []store.Task, activeTaskID string, remaining time.Duration, running bool, s settings.Settings, now time.Time) []Estimate {
	out := make([]Estimate, 0, len(tasks))
	at := now
	for i, t := range tasks {
		n := max(t.Pomodoros, 1)
		d := time.Duration(n) * s.Work
		if t.ID == activeTaskID && running {
			d = remaining + time.Duration(n-1)*s.Work
		}
		if i < len(tasks)-1 {
			d += s.Break
		}
		at = at.Add(d)
		out = append(out, Estimate{TaskID: t.ID, Remaining: d, CompletesAt: at})
	}
	return out
}

// ByID indexes estimates by task id.
func ByID(es []Estimate) map[string]Estimate {
	m := make(map[string]Estimate, len(es))
	for _, e := range es {
		m[e.TaskID] = e
	}
	return m
}
