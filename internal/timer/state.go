package timer

import "time"

// Phase is the kind of session the timer is counting down.
type Phase string

const (
	PhaseWork      Phase = "work"
	PhaseBreak     Phase = "break"
	PhaseLongBreak Phase = "long_break"
)

var phaseNames = map[Phase]string{
	PhaseWork:      "WORK",
	PhaseBreak:     "SHORT BREAK",
	PhaseLongBreak: "LONG BREAK",
}

func (p Phase) String() string {
	if n, ok := phaseNames[p]; ok {
		return n
	}
	return string(p)
}

// IsBreak reports whether p is a short or long break.
func (p Phase) IsBreak() bool {
	return p == PhaseBreak || p == PhaseLongBreak
}

// Activity is the run state within a phase.
type Activity int

const (
	NotStarted Activity = iota
	Running
	Paused
	Completed
)

func (a Activity) String() string {
	switch a {
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Completed:
		return "completed"
	default:
		return "not started"
	}
}

// TaskRef is the timer's copy of the task being worked on.
type TaskRef struct {
	ID          string
	Category    string
	Description string
}

// State is a point-in-time copy of the timer. ActiveTask is shared between
// copies and must be treated as read-only.
type State struct {
	Phase             Phase
	Remaining         time.Duration
	Running           bool
	Started           bool
	ActiveTask        *TaskRef
	StartedAt         time.Time // zero unless running
	ExpectedEnd       time.Time // zero unless running
	SessionsCompleted int
	Completed         bool
}

// Activity derives the run state from the flags.
func (s State) Activity() Activity {
	switch {
	case s.Running:
		return Running
	case s.Completed:
		return Completed
	case s.Started:
		return Paused
	default:
		return NotStarted
	}
}

// ActiveTaskID returns the active task id or "" when there is none.
func (s State) ActiveTaskID() string {
	if s.ActiveTask == nil {
		return ""
	}
	return s.ActiveTask.ID
}

// Completion describes a phase that reached zero or was marked done early.
type Completion struct {
	// State is the timer as it was immediately before completion was applied.
	State State
	At    time.Time
	Early bool
	// Remaining is the time left when an early completion was requested.
	Remaining time.Duration
}
