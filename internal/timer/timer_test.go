package timer

import (
	"testing"
	"time"

	"github.com/tigawanna/pomodoro-panda/internal/clock"
	"github.com/tigawanna/pomodoro-panda/internal/settings"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

var task = &TaskRef{ID: "t1", Category: "Work", Description: "Write spec"}

func newTestTimer(t *testing.T) (*Timer, *clock.Fake) {
	t.Helper()
	c := clock.NewFake(epoch)
	tm := New(settings.Default(), c, Options{})
	t.Cleanup(tm.Close)
	return tm, c
}

func checkInvariants(t *testing.T, s State) {
	t.Helper()
	if s.Running && (s.StartedAt.IsZero() || s.ExpectedEnd.IsZero()) {
		t.Fatalf("running timer must have start and end times: %+v", s)
	}
	if !s.Running && !s.Started && !s.StartedAt.IsZero() {
		t.Fatalf("unstarted timer must not have a start time: %+v", s)
	}
	if s.Remaining < 0 {
		t.Fatalf("remaining went negative: %v", s.Remaining)
	}
}

// ============================================================
// Start / pause / resume
// ============================================================

func TestInitialState(t *testing.T) {
	tm, _ := newTestTimer(t)
	s := tm.State()
	if s.Phase != PhaseWork {
		t.Fatalf("expected WORK, got %s", s.Phase)
	}
	if s.Activity() != NotStarted {
		t.Fatalf("expected not started, got %s", s.Activity())
	}
	if s.Remaining != 25*time.Minute {
		t.Fatalf("expected full work duration, got %v", s.Remaining)
	}
	checkInvariants(t, s)
}

func TestStartWorkWithoutTaskIsNoop(t *testing.T) {
	tm, c := newTestTimer(t)
	tm.Start(nil)
	if tm.State().Running {
		t.Fatal("work phase must not start without a task")
	}
	tm.Start(&TaskRef{})
	if tm.State().Running {
		t.Fatal("work phase must not start with an empty task id")
	}
	if c.Pending() != 0 {
		t.Fatal("nothing should be scheduled")
	}
}

func TestStartSetsTimes(t *testing.T) {
	tm, c := newTestTimer(t)
	tm.Start(task)
	s := tm.State()
	if !s.Running || !s.Started {
		t.Fatal("timer should be running and started")
	}
	if !s.StartedAt.Equal(epoch) {
		t.Fatalf("StartedAt = %v, want %v", s.StartedAt, epoch)
	}
	if !s.ExpectedEnd.Equal(epoch.Add(25 * time.Minute)) {
		t.Fatalf("ExpectedEnd = %v", s.ExpectedEnd)
	}
	if s.ActiveTaskID() != "t1" {
		t.Fatalf("active task = %q", s.ActiveTaskID())
	}
	if c.Pending() != 1 {
		t.Fatalf("expected one scheduled wake-up, got %d", c.Pending())
	}
	checkInvariants(t, s)
}

func TestStartWhileRunningIsNoop(t *testing.T) {
	tm, c := newTestTimer(t)
	tm.Start(task)
	c.Advance(10 * time.Second)
	tm.Start(&TaskRef{ID: "other"})
	s := tm.State()
	if s.ActiveTaskID() != "t1" {
		t.Fatal("second start must not replace the active task")
	}
	if c.Pending() != 1 {
		t.Fatalf("expected one scheduled wake-up, got %d", c.Pending())
	}
}

func TestStartCopiesTask(t *testing.T) {
	tm, _ := newTestTimer(t)
	ref := &TaskRef{ID: "mut", Description: "before"}
	tm.Start(ref)
	ref.Description = "after"
	if tm.State().ActiveTask.Description != "before" {
		t.Fatal("timer must keep its own copy of the task")
	}
}

func TestPauseFreezesRemaining(t *testing.T) {
	tm, c := newTestTimer(t)
	tm.Start(task)
	c.Advance(3 * time.Second)
	tm.Pause()

	s := tm.State()
	if s.Running {
		t.Fatal("timer should be paused")
	}
	if s.Activity() != Paused {
		t.Fatalf("expected paused activity, got %s", s.Activity())
	}
	if s.Remaining != 25*time.Minute-3*time.Second {
		t.Fatalf("remaining = %v", s.Remaining)
	}
	if !s.StartedAt.IsZero() || !s.ExpectedEnd.IsZero() {
		t.Fatal("pause must clear time fields")
	}
	if c.Pending() != 0 {
		t.Fatal("pause must cancel the wake-up")
	}

	c.Advance(time.Hour)
	if tm.State().Remaining != s.Remaining {
		t.Fatal("remaining changed while paused")
	}
	checkInvariants(t, tm.State())
}

func TestPauseWhenNotRunningIsNoop(t *testing.T) {
	tm, _ := newTestTimer(t)
	before := tm.State()
	tm.Pause()
	if tm.State() != before {
		t.Fatal("pause on idle timer should change nothing")
	}
}

func TestResumeReusesActiveTask(t *testing.T) {
	tm, c := newTestTimer(t)
	tm.Start(task)
	c.Advance(5 * time.Second)
	tm.Pause()
	c.Advance(time.Minute)
	tm.Resume(nil)

	s := tm.State()
	if !s.Running {
		t.Fatal("resume should restart the countdown")
	}
	if s.ActiveTaskID() != "t1" {
		t.Fatalf("resume should keep task t1, got %q", s.ActiveTaskID())
	}
	want := c.Now().Add(25*time.Minute - 5*time.Second)
	if !s.ExpectedEnd.Equal(want) {
		t.Fatalf("ExpectedEnd = %v, want %v", s.ExpectedEnd, want)
	}
}

func TestStartFromPausedNeedsTask(t *testing.T) {
	tm, c := newTestTimer(t)
	tm.Start(task)
	c.Advance(time.Second)
	tm.Pause()
	tm.Start(nil)
	if tm.State().Running {
		t.Fatal("Start (unlike Resume) requires a task in WORK")
	}
}

// ============================================================
// Ticking
// ============================================================

func TestRemainingMonotonicAcrossTicks(t *testing.T) {
	tm, c := newTestTimer(t)
	tm.Start(task)
	prev := tm.State().Remaining
	for i := 0; i < 90; i++ {
		c.Advance(time.Second)
		s := tm.State()
		if s.Remaining > prev {
			t.Fatalf("remaining increased at step %d: %v > %v", i, s.Remaining, prev)
		}
		checkInvariants(t, s)
		prev = s.Remaining
	}
	if prev != 25*time.Minute-90*time.Second {
		t.Fatalf("remaining = %v", prev)
	}
}

func TestSkippedTicksSelfCorrect(t *testing.T) {
	tm, c := newTestTimer(t)
	tm.Start(task)
	c.Advance(time.Second)
	before := tm.State().Remaining

	// Simulate a suspended process: ten minutes pass without any callback.
	c.Jump(10 * time.Minute)
	c.Fire()

	after := tm.State().Remaining
	if after > before {
		t.Fatal("remaining rewound after a jump")
	}
	if after != 25*time.Minute-time.Second-10*time.Minute {
		t.Fatalf("remaining = %v, want wall-clock derived value", after)
	}
}

func TestClockSteppingBackDoesNotRewind(t *testing.T) {
	tm, c := newTestTimer(t)
	tm.Start(task)
	c.Advance(10 * time.Second)
	before := tm.State().Remaining

	c.Set(c.Now().Add(-5 * time.Second))
	tm.Sync()
	if tm.State().Remaining > before {
		t.Fatalf("remaining rewound: %v > %v", tm.State().Remaining, before)
	}
}

func TestSyncRecomputesImmediately(t *testing.T) {
	tm, c := newTestTimer(t)
	tm.Start(task)
	c.Jump(2 * time.Minute)
	tm.Sync()
	if got := tm.State().Remaining; got != 23*time.Minute {
		t.Fatalf("remaining = %v, want 23m", got)
	}
}

func TestCompletionFiresOnceWithPreMutationSnapshot(t *testing.T) {
	tm, c := newTestTimer(t)
	var got []Completion
	tm.OnCompletion(func(cp Completion) { got = append(got, cp) })

	tm.Start(task)
	c.Advance(25 * time.Minute)

	if len(got) != 1 {
		t.Fatalf("expected one completion, got %d", len(got))
	}
	cp := got[0]
	if !cp.State.Running || cp.State.Completed {
		t.Fatalf("snapshot should predate completion: %+v", cp.State)
	}
	if cp.State.ActiveTaskID() != "t1" || cp.State.Phase != PhaseWork {
		t.Fatalf("snapshot lost context: %+v", cp.State)
	}
	if cp.Early {
		t.Fatal("natural completion must not be early")
	}

	s := tm.State()
	if s.Running || !s.Completed || s.Remaining != 0 {
		t.Fatalf("unexpected post-completion state: %+v", s)
	}
	if s.Activity() != Completed {
		t.Fatalf("activity = %s", s.Activity())
	}

	c.Advance(time.Hour)
	tm.Sync()
	if len(got) != 1 {
		t.Fatal("completion must not fire twice")
	}
	if c.Pending() != 0 {
		t.Fatal("no wake-ups should remain after completion")
	}
}

func TestCompletionAfterLongSuspension(t *testing.T) {
	tm, c := newTestTimer(t)
	fired := 0
	tm.OnCompletion(func(Completion) { fired++ })
	tm.Start(task)
	c.Jump(3 * time.Hour)
	c.Fire()
	if fired != 1 {
		t.Fatalf("expected exactly one completion, got %d", fired)
	}
	if tm.State().Remaining != 0 {
		t.Fatal("remaining must clamp at zero")
	}
}

func TestStaleWakeupIsNoop(t *testing.T) {
	tm, c := newTestTimer(t)
	fired := 0
	tm.OnCompletion(func(Completion) { fired++ })

	tm.Start(task)
	tm.Pause()
	tm.Resume(nil)
	tm.Pause()
	tm.Resume(nil)
	if c.Pending() != 1 {
		t.Fatalf("restarts must leave a single wake-up, got %d", c.Pending())
	}

	c.Advance(25 * time.Minute)
	if fired != 1 {
		t.Fatalf("expected one completion, got %d", fired)
	}
}

func TestStaleGenerationIgnored(t *testing.T) {
	tm, c := newTestTimer(t)
	tm.Start(task)
	gen := tm.gen
	tm.Pause()
	c.Advance(25 * time.Minute)
	// An in-flight callback from the first run must not resurrect it.
	tm.tick(gen)
	if tm.State().Running || tm.State().Completed {
		t.Fatal("stale generation changed the timer")
	}
}

// ============================================================
// Phase transitions
// ============================================================

func TestPhaseCycling(t *testing.T) {
	tm, _ := newTestTimer(t)
	var phases []Phase
	phases = append(phases, tm.State().Phase)
	for i := 0; i < 7; i++ {
		tm.SwitchTimer()
		phases = append(phases, tm.State().Phase)
	}
	want := []Phase{PhaseWork, PhaseBreak, PhaseWork, PhaseBreak, PhaseWork, PhaseBreak, PhaseWork, PhaseLongBreak}
	for i := range want {
		if phases[i] != want[i] {
			t.Fatalf("phase %d = %s, want %s (all: %v)", i, phases[i], want[i], phases)
		}
	}
	if tm.State().SessionsCompleted != 4 {
		t.Fatalf("sessions = %d, want 4", tm.State().SessionsCompleted)
	}
	if tm.State().Remaining != 15*time.Minute {
		t.Fatalf("long break should be 15m, got %v", tm.State().Remaining)
	}
}

func TestSwitchClearsRunState(t *testing.T) {
	tm, c := newTestTimer(t)
	tm.Start(task)
	c.Advance(time.Minute)
	tm.SwitchTimer()

	s := tm.State()
	if s.Phase != PhaseBreak || s.Running || s.Started || s.ActiveTask != nil {
		t.Fatalf("unexpected state after switch: %+v", s)
	}
	if s.Remaining != 5*time.Minute {
		t.Fatalf("remaining = %v", s.Remaining)
	}
	if c.Pending() != 0 {
		t.Fatal("switch must cancel the wake-up")
	}
	checkInvariants(t, s)
}

func TestBreakStartsWithoutTask(t *testing.T) {
	tm, c := newTestTimer(t)
	tm.SwitchTimer()
	tm.Start(task)
	s := tm.State()
	if !s.Running {
		t.Fatal("break should start")
	}
	if s.ActiveTask != nil {
		t.Fatal("breaks carry no task")
	}
	c.Advance(5 * time.Minute)
	if !tm.State().Completed {
		t.Fatal("break should complete after its duration")
	}
}

func TestSkipOnlyDuringBreaks(t *testing.T) {
	tm, _ := newTestTimer(t)
	fired := 0
	tm.OnCompletion(func(Completion) { fired++ })

	tm.Skip()
	if tm.State().Phase != PhaseWork {
		t.Fatal("skip must be ignored during WORK")
	}

	tm.SwitchTimer()
	tm.Start(nil)
	tm.Skip()
	s := tm.State()
	if s.Phase != PhaseWork || s.Running {
		t.Fatalf("skip should move to idle WORK: %+v", s)
	}
	if s.SessionsCompleted != 1 {
		t.Fatalf("skip must not count a session, got %d", s.SessionsCompleted)
	}
	if fired != 0 {
		t.Fatal("skipping a break must not fire completion")
	}
}

func TestResetKeepsPhaseAndSessions(t *testing.T) {
	tm, c := newTestTimer(t)
	tm.SwitchTimer()
	tm.SwitchTimer()
	tm.Start(task)
	c.Advance(7 * time.Minute)
	tm.Reset()

	s := tm.State()
	if s.Phase != PhaseWork || s.SessionsCompleted != 1 {
		t.Fatalf("reset changed phase or sessions: %+v", s)
	}
	if s.Remaining != 25*time.Minute || s.Running || s.Started || s.ActiveTask != nil {
		t.Fatalf("reset should restore a fresh phase: %+v", s)
	}
	if c.Pending() != 0 {
		t.Fatal("reset must cancel the wake-up")
	}
}

// ============================================================
// Early completion
// ============================================================

func TestCompleteEarly(t *testing.T) {
	tm, c := newTestTimer(t)
	var got Completion
	tm.OnCompletion(func(cp Completion) { got = cp })
	tm.Start(task)
	c.Advance(10 * time.Minute)
	tm.CompleteEarly()

	if !got.Early {
		t.Fatal("expected early completion")
	}
	if got.Remaining != 15*time.Minute {
		t.Fatalf("remaining at marking = %v, want 15m", got.Remaining)
	}
	if got.State.ActiveTaskID() != "t1" {
		t.Fatal("snapshot should carry the task")
	}
	if !tm.State().Completed || c.Pending() != 0 {
		t.Fatal("timer should be completed with no wake-ups")
	}
}

func TestCompleteEarlyWhilePaused(t *testing.T) {
	tm, c := newTestTimer(t)
	var got Completion
	tm.OnCompletion(func(cp Completion) { got = cp })
	tm.Start(task)
	c.Advance(4 * time.Second)
	tm.Pause()
	tm.CompleteEarly()
	if got.Remaining != 25*time.Minute-4*time.Second {
		t.Fatalf("remaining = %v", got.Remaining)
	}
}

func TestCompleteEarlyIgnoredWhenIdleOrBreak(t *testing.T) {
	tm, _ := newTestTimer(t)
	fired := 0
	tm.OnCompletion(func(Completion) { fired++ })
	tm.CompleteEarly()
	tm.SwitchTimer()
	tm.Start(nil)
	tm.CompleteEarly()
	if fired != 0 {
		t.Fatalf("expected no completions, got %d", fired)
	}
}

// ============================================================
// Observers
// ============================================================

func TestSubscribeAndUnsubscribe(t *testing.T) {
	tm, c := newTestTimer(t)
	var a, b int
	unsubA := tm.Subscribe(func(State) { a++ })
	tm.Subscribe(func(State) { b++ })

	tm.Start(task)
	c.Advance(time.Second)
	if a != 2 || b != 2 {
		t.Fatalf("expected 2 notifications each, got a=%d b=%d", a, b)
	}

	unsubA()
	unsubA()
	tm.Pause()
	if a != 2 || b != 3 {
		t.Fatalf("unsubscribed observer still notified: a=%d b=%d", a, b)
	}
}

func TestCompletionObserverCanSwitch(t *testing.T) {
	tm, c := newTestTimer(t)
	tm.OnCompletion(func(Completion) { tm.SwitchTimer() })
	tm.Start(task)
	c.Advance(25 * time.Minute)
	s := tm.State()
	if s.Phase != PhaseBreak || s.Completed {
		t.Fatalf("observer should be able to re-enter the timer: %+v", s)
	}
}

func TestInvalidSettingsFallBack(t *testing.T) {
	bad := settings.Default()
	bad.SessionsUntilLongBreak = 0
	tm := New(bad, clock.NewFake(epoch), Options{})
	if tm.Settings() != settings.Default() {
		t.Fatal("invalid settings should be replaced by defaults")
	}
}

func TestTickIntervalBoundsWakeups(t *testing.T) {
	c := clock.NewFake(epoch)
	s := settings.Default()
	s.Work = 2500 * time.Millisecond
	tm := New(s, c, Options{TickInterval: time.Second})
	ticks := 0
	tm.Subscribe(func(State) { ticks++ })
	tm.Start(task)
	c.Advance(3 * time.Second)
	// start, 1s, 2s, 2.5s completion
	if ticks != 4 {
		t.Fatalf("expected 4 notifications, got %d", ticks)
	}
}
