// Package timer implements the pomodoro state machine: work, short break and
// long break phases, each of which can be started, paused, resumed, reset or
// completed. Remaining time is always derived from the wall clock so that
// late or skipped wake-ups never cause drift.
package timer

import (
	"sync"
	"time"

	"github.com/tigawanna/pomodoro-panda/internal/clock"
	"github.com/tigawanna/pomodoro-panda/internal/logging"
	"github.com/tigawanna/pomodoro-panda/internal/settings"
)

// DefaultTickInterval is how often a running timer re-evaluates itself.
const DefaultTickInterval = time.Second

// Options contains runtime knobs that are not user settings.
type Options struct {
	TickInterval time.Duration
}

type stateObserver struct {
	id int
	fn func(State)
}

type completionObserver struct {
	id int
	fn func(Completion)
}

// Timer is safe for concurrent use. Observers are invoked after the internal
// lock is released, on the goroutine that caused the change.
type Timer struct {
	mu       sync.Mutex
	clock    clock.Clock
	settings settings.Settings
	options  Options
	state    State

	// gen is bumped on every cancel; a wake-up carrying an older
	// generation is stale and must do nothing.
	gen  uint64
	wake clock.Token

	nextObserver int
	observers    []stateObserver
	completions  []completionObserver
}

// New creates a timer in the not-started WORK phase. Invalid settings are
// replaced by settings.Default.
func New(s settings.Settings, c clock.Clock, options Options) *Timer {
	if err := s.Validate(); err != nil {
		logging.Warn("timer", "invalid settings, using defaults: %v", err)
		s = settings.Default()
	}
	if options.TickInterval <= 0 {
		options.TickInterval = DefaultTickInterval
	}
	return &Timer{
		clock:    c,
		settings: s,
		options:  options,
		state: State{
			Phase:     PhaseWork,
			Remaining: s.Work,
		},
	}
}

// Settings returns the settings the timer was built with.
func (t *Timer) Settings() settings.Settings {
	return t.settings
}

// State returns a snapshot of the current state.
func (t *Timer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Duration returns the configured length of phase p.
func (t *Timer) Duration(p Phase) time.Duration {
	switch p {
	case PhaseBreak:
		return t.settings.Break
	case PhaseLongBreak:
		return t.settings.LongBreak
	default:
		return t.settings.Work
	}
}

// Subscribe registers fn to receive every state change. The returned
// function unregisters it.
func (t *Timer) Subscribe(fn func(State)) (unsubscribe func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextObserver++
	id := t.nextObserver
	t.observers = append(t.observers, stateObserver{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			for i, o := range t.observers {
				if o.id == id {
					t.observers = append(t.observers[:i:i], t.observers[i+1:]...)
					return
				}
			}
		})
	}
}

// OnCompletion registers fn to run whenever a phase completes.
func (t *Timer) OnCompletion(fn func(Completion)) (unregister func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextObserver++
	id := t.nextObserver
	t.completions = append(t.completions, completionObserver{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			for i, o := range t.completions {
				if o.id == id {
					t.completions = append(t.completions[:i:i], t.completions[i+1:]...)
					return
				}
			}
		})
	}
}

// Start begins counting down the current phase. It is a no-op unless the
// timer is not started or paused. A WORK phase needs a task; breaks ignore
// the argument.
func (t *Timer) Start(task *TaskRef) {
	t.start(task, false)
}

// Resume continues a paused phase. In WORK the task may be omitted, in which
// case the previously active task is kept.
func (t *Timer) Resume(task *TaskRef) {
	t.start(task, true)
}

func (t *Timer) start(task *TaskRef, reuse bool) {
	t.mu.Lock()
	act := t.state.Activity()
	if act != NotStarted && act != Paused {
		t.mu.Unlock()
		return
	}

	if t.state.Phase == PhaseWork {
		if task == nil && reuse && act == Paused {
			task = t.state.ActiveTask
		}
		if task == nil || task.ID == "" {
			t.mu.Unlock()
			logging.Debug("timer", "start ignored: work phase without a task")
			return
		}
		ref := *task
		t.state.ActiveTask = &ref
	} else {
		t.state.ActiveTask = nil
	}

	now := t.clock.Now()
	t.state.StartedAt = now
	t.state.ExpectedEnd = now.Add(t.state.Remaining)
	t.state.Running = true
	t.state.Started = true
	t.state.Completed = false
	t.scheduleLocked(now)
	snap, observers := t.state, t.stateObserversLocked()
	t.mu.Unlock()

	logging.Debug("timer", "%s started, %s remaining", snap.Phase, snap.Remaining)
	notifyState(observers, snap)
}

// Pause freezes the remaining time at its last computed value.
func (t *Timer) Pause() {
	t.mu.Lock()
	if !t.state.Running {
		t.mu.Unlock()
		return
	}
	t.cancelLocked()
	t.state.Running = false
	t.state.StartedAt = time.Time{}
	t.state.ExpectedEnd = time.Time{}
	snap, observers := t.state, t.stateObserversLocked()
	t.mu.Unlock()

	notifyState(observers, snap)
}

// Sync re-evaluates a running timer immediately instead of waiting for the
// next wake-up, e.g. after the terminal regains focus.
func (t *Timer) Sync() {
	t.mu.Lock()
	gen := t.gen
	t.mu.Unlock()
	t.tick(gen)
}

func (t *Timer) tick(gen uint64) {
	t.mu.Lock()
	if gen != t.gen || !t.state.Running {
		t.mu.Unlock()
		return
	}

	now := t.clock.Now()
	remaining := t.state.ExpectedEnd.Sub(now)
	if remaining <= 0 {
		before := t.state
		t.cancelLocked()
		t.state.Completed = true
		t.state.Running = false
		t.state.Remaining = 0
		t.state.StartedAt = time.Time{}
		t.state.ExpectedEnd = time.Time{}
		snap := t.state
		observers, completions := t.stateObserversLocked(), t.completionObserversLocked()
		t.mu.Unlock()

		logging.Info("timer", "%s phase complete", before.Phase)
		notifyState(observers, snap)
		notifyCompletion(completions, Completion{State: before, At: now})
		return
	}

	// A clock that stepped backwards must not rewind the display.
	if remaining < t.state.Remaining {
		t.state.Remaining = remaining
	}
	t.scheduleLocked(now)
	snap, observers := t.state, t.stateObserversLocked()
	t.mu.Unlock()

	notifyState(observers, snap)
}

// CompleteEarly marks the current WORK session done before the countdown
// reaches zero. It requires a started WORK phase with an active task.
func (t *Timer) CompleteEarly() {
	t.mu.Lock()
	if t.state.Phase != PhaseWork || !t.state.Started || t.state.Completed || t.state.ActiveTask == nil {
		t.mu.Unlock()
		return
	}

	now := t.clock.Now()
	remaining := t.state.Remaining
	if t.state.Running {
		remaining = max(t.state.ExpectedEnd.Sub(now), 0)
	}
	before := t.state
	before.Remaining = remaining

	t.cancelLocked()
	t.state.Completed = true
	t.state.Running = false
	t.state.Remaining = 0
	t.state.StartedAt = time.Time{}
	t.state.ExpectedEnd = time.Time{}
	snap := t.state
	observers, completions := t.stateObserversLocked(), t.completionObserversLocked()
	t.mu.Unlock()

	notifyState(observers, snap)
	notifyCompletion(completions, Completion{State: before, At: now, Early: true, Remaining: remaining})
}

// SwitchTimer advances to the next phase: WORK goes to a short break, or a
// long break every SessionsUntilLongBreak sessions; breaks go back to WORK.
func (t *Timer) SwitchTimer() {
	t.mu.Lock()
	t.switchLocked()
	snap, observers := t.state, t.stateObserversLocked()
	t.mu.Unlock()

	logging.Debug("timer", "switched to %s (sessions=%d)", snap.Phase, snap.SessionsCompleted)
	notifyState(observers, snap)
}

// Skip forfeits the current break and moves to WORK. It does nothing during
// a WORK phase.
func (t *Timer) Skip() {
	t.mu.Lock()
	if !t.state.Phase.IsBreak() {
		t.mu.Unlock()
		return
	}
	t.switchLocked()
	snap, observers := t.state, t.stateObserversLocked()
	t.mu.Unlock()

	notifyState(observers, snap)
}

// Reset discards progress in the current phase without advancing the
// session counter.
func (t *Timer) Reset() {
	t.mu.Lock()
	t.cancelLocked()
	t.clearLocked()
	t.state.Remaining = t.Duration(t.state.Phase)
	snap, observers := t.state, t.stateObserversLocked()
	t.mu.Unlock()

	notifyState(observers, snap)
}

// Close cancels any pending wake-up. The timer stays usable.
func (t *Timer) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelLocked()
}

func (t *Timer) switchLocked() {
	t.cancelLocked()
	if t.state.Phase == PhaseWork {
		t.state.SessionsCompleted++
		if t.state.SessionsCompleted%t.settings.SessionsUntilLongBreak == 0 {
			t.state.Phase = PhaseLongBreak
		} else {
			t.state.Phase = PhaseBreak
		}
	} else {
		t.state.Phase = PhaseWork
	}
	t.clearLocked()
	t.state.Remaining = t.Duration(t.state.Phase)
}

func (t *Timer) clearLocked() {
	t.state.Running = false
	t.state.Started = false
	t.state.Completed = false
	t.state.ActiveTask = nil
	t.state.StartedAt = time.Time{}
	t.state.ExpectedEnd = time.Time{}
}

func (t *Timer) cancelLocked() {
	t.gen++
	if t.wake != 0 {
		t.clock.Cancel(t.wake)
		t.wake = 0
	}
}

func (t *Timer) scheduleLocked(now time.Time) {
	t.cancelLocked()
	gen := t.gen
	next := now.Add(t.options.TickInterval)
	if t.state.ExpectedEnd.Before(next) {
		next = t.state.ExpectedEnd
	}
	t.wake = t.clock.Schedule(next, func() { t.tick(gen) })
}

func (t *Timer) stateObserversLocked() []func(State) {
	fns := make([]func(State), len(t.observers))
	for i, o := range t.observers {
		fns[i] = o.fn
	}
	return fns
}

func (t *Timer) completionObserversLocked() []func(Completion) {
	fns := make([]func(Completion), len(t.completions))
	for i, o := range t.completions {
		fns[i] = o.fn
	}
	return fns
}

func notifyState(fns []func(State), s State) {
	for _, fn := range fns {
		fn(s)
	}
}

func notifyCompletion(fns []func(Completion), c Completion) {
	for _, fn := range fns {
		fn(c)
	}
}
