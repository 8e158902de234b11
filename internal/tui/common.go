package tui

import (
	"fmt"
	"time"

	"github.com/tigawanna/pomodoro-panda/internal/completion"
	"github.com/tigawanna/pomodoro-panda/internal/settings"
	"github.com/tigawanna/pomodoro-panda/internal/store"
)

// viewState represents the currently active view.
type viewState int

const (
	viewTimer viewState = iota
	viewTasks
	viewHistory
	viewStats
	viewSettings
)

var viewNames = []string{"Timer", "Tasks", "History", "Stats", "Settings"}

// noticeTTL is how long a transient notification stays on screen.
const noticeTTL = 4 * time.Second

// --- Messages ---

// timerChangedMsg is sent whenever the timer publishes a new state. Views
// read the state from the timer itself.
type timerChangedMsg struct{}

type completionMsg struct {
	event completion.Event
}

type tasksDataMsg struct {
	tasks []store.Task
	err   error
}

type reorderFailedMsg struct {
	previous []store.Task
	err      error
}

type historyDataMsg struct {
	records []store.CompletedTask
	err     error
}

type statsDataMsg struct {
	days    []store.DailyCount
	summary store.CompletedSummary
	err     error
}

type settingsDataMsg struct {
	settings settings.Settings
	bottom   bool
	err      error
}

type noticeMsg struct {
	text     string
	severity completion.Severity
}

type clearNoticeMsg struct {
	id int
}

type exportDoneMsg struct {
	path string
}

func errorNotice(format string, args ...any) noticeMsg {
	return noticeMsg{text: fmt.Sprintf(format, args...), severity: completion.SeverityError}
}

func infoNotice(format string, args ...any) noticeMsg {
	return noticeMsg{text: fmt.Sprintf(format, args...), severity: completion.SeverityInfo}
}

// --- Helpers ---

func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// formatClock renders a countdown as MM:SS, rounding partial seconds up so
// the display reaches 00:00 only when the phase is over.
func formatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int((d + time.Second - 1) / time.Second)
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}

func formatMinutes(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	return fmt.Sprintf("%dm", int(d.Minutes()))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
