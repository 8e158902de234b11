// Package completion connects the timer to the task store: when a work
// session ends, one pomodoro of the active task is moved into the completed
// log and the timer advances to its next phase.
package completion

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/tigawanna/pomodoro-panda/internal/clock"
	"github.com/tigawanna/pomodoro-panda/internal/logging"
	"github.com/tigawanna/pomodoro-panda/internal/store"
	"github.com/tigawanna/pomodoro-panda/internal/timer"
)

// Store is the part of the task store the bridge writes to.
type Store interface {
	GetActive(ctx context.Context, id string) (store.Task, error)
	CompleteOneUnit(ctx context.Context, activeTaskID string, rec store.CompletedTask) (store.CompletedTask, error)
}

// Notifier is told about finished phases. Its errors are logged and
// otherwise ignored.
type Notifier interface {
	NotifyPhaseComplete(phase timer.Phase) error
}

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

// Notification is a transient user-facing message.
type Notification struct {
	Message  string
	Severity Severity
}

// Event is emitted after every completion has been handled.
type Event struct {
	Phase        timer.Phase
	Record       *store.CompletedTask // nil for breaks and failures
	Err          error
	Notification Notification
}

type subscriber struct {
	id int
	fn func(Event)
}

type Bridge struct {
	timer    *timer.Timer
	store    Store
	clock    clock.Clock
	notifier Notifier
	detach   func()

	mu   sync.Mutex
	next int
	subs []subscriber
}

// New attaches a bridge to t. notifier may be nil.
func New(t *timer.Timer, st Store, c clock.Clock, notifier Notifier) *Bridge {
	b := &Bridge{timer: t, store: st, clock: c, notifier: notifier}
	b.detach = t.OnCompletion(b.handle)
	return b
}

// Close detaches the bridge from the timer.
func (b *Bridge) Close() {
	b.detach()
}

// Subscribe registers fn for completion events.
func (b *Bridge) Subscribe(fn func(Event)) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	id := b.next
	b.subs = append(b.subs, subscriber{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, s := range b.subs {
				if s.id == id {
					b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
					return
				}
			}
		})
	}
}

func (b *Bridge) emit(ev Event) {
	b.mu.Lock()
	fns := make([]func(Event), len(b.subs))
	for i, s := range b.subs {
		fns[i] = s.fn
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

func (b *Bridge) handle(c timer.Completion) {
	phase := c.State.Phase
	if b.notifier != nil {
		if err := b.notifier.NotifyPhaseComplete(phase); err != nil {
			logging.Debug("completion", "notifier: %v", err)
		}
	}

	if phase.IsBreak() {
		b.timer.SwitchTimer()
		b.emit(Event{
			Phase:        phase,
			Notification: Notification{Message: phase.String() + " over. Time to focus.", Severity: SeverityInfo},
		})
		return
	}

	task := c.State.ActiveTask
	if task == nil {
		// Work phases cannot start without a task.
		logging.Warn("completion", "work completion without an active task")
		b.timer.SwitchTimer()
		return
	}

	work := b.timer.Duration(timer.PhaseWork)
	spent := work
	if c.Early {
		spent = work - c.Remaining
	}
	rec := Record(task.ID, task.Category, task.Description, c.At, spent)

	stored, err := b.store.CompleteOneUnit(context.Background(), task.ID, rec)

	// The session time has elapsed whether or not bookkeeping succeeded.
	b.timer.SwitchTimer()

	if err != nil {
		logging.Error("completion", "complete %s: %v", task.ID, err)
		b.emit(Event{Phase: phase, Err: err, Notification: failure(err)})
		return
	}
	logging.Info("completion", "recorded %s (%s)", stored.ID, spent)
	b.emit(Event{
		Phase:        phase,
		Record:       &stored,
		Notification: Notification{Message: "Pomodoro complete: " + logging.Truncate(task.Description, 40), Severity: SeveritySuccess},
	})
}

// MarkDone completes one pomodoro of taskID. When taskID is the task the
// running or paused work session belongs to, the session is ended early and
// the time spent so far is recorded; otherwise a full work duration is
// recorded and the timer is left alone.
func (b *Bridge) MarkDone(ctx context.Context, taskID string) error {
	st := b.timer.State()
	if st.Phase == timer.PhaseWork && st.Started && !st.Completed && st.ActiveTaskID() == taskID {
		b.timer.CompleteEarly()
		return nil
	}

	task, err := b.store.GetActive(ctx, taskID)
	if err != nil {
		b.emit(Event{Phase: timer.PhaseWork, Err: err, Notification: failure(err)})
		return fmt.Errorf("mark done: %w", err)
	}
	rec := Record(task.ID, task.Category, task.Description, b.clock.Now(), b.timer.Duration(timer.PhaseWork))
	stored, err := b.store.CompleteOneUnit(ctx, task.ID, rec)
	if err != nil {
		b.emit(Event{Phase: timer.PhaseWork, Err: err, Notification: failure(err)})
		return fmt.Errorf("mark done: %w", err)
	}
	b.emit(Event{
		Phase:        timer.PhaseWork,
		Record:       &stored,
		Notification: Notification{Message: "Marked done: " + logging.Truncate(task.Description, 40), Severity: SeveritySuccess},
	})
	return nil
}

// Record builds the completed-log entry for one pomodoro of a task.
func Record(taskID, category, description string, end time.Time, spent time.Duration) store.CompletedTask {
	return store.CompletedTask{
		ID:          "completed-" + taskID + "-" + strconv.FormatInt(end.UnixMilli(), 10),
		SourceID:    taskID,
		Category:    category,
		Description: description,
		EndTime:     end,
		Duration:    max(spent, 0),
		Completed:   true,
		Pomodoros:   1,
	}
}

func failure(err error) Notification {
	msg := "Could not save the completed pomodoro."
	switch {
	case errors.Is(err, store.ErrTaskNotFound):
		msg = "The task was removed before the session ended; nothing was recorded."
	case errors.Is(err, store.ErrNotFound):
		msg = "That task no longer exists."
	case errors.Is(err, store.ErrSchemaBlocked):
		msg = "The database was upgraded elsewhere. Restart to continue."
	}
	return Notification{Message: msg, Severity: SeverityError}
}
