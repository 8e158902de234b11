package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/tigawanna/pomodoro-panda/internal/completion"
	"github.com/tigawanna/pomodoro-panda/internal/logging"
	"github.com/tigawanna/pomodoro-panda/internal/store"
	"github.com/tigawanna/pomodoro-panda/internal/timer"
)

type timerModel struct {
	timer  *timer.Timer
	bridge *completion.Bridge
	width  int
	height int

	state timer.State
	queue []store.Task
	bar   progress.Model
}

func newTimerModel(t *timer.Timer, b *completion.Bridge) timerModel {
	return timerModel{
		timer:  t,
		bridge: b,
		state:  t.State(),
		bar:    progress.New(progress.WithSolidFill(string(colorPrimary)), progress.WithoutPercentage()),
	}
}

func (m *timerModel) setSize(w, h int) {
	m.width = w
	m.height = h
	m.bar.Width = max(w-16, 10)
}

// sync re-reads the timer snapshot.
func (m *timerModel) sync() {
	m.state = m.timer.State()
}

func (m *timerModel) setQueue(tasks []store.Task) {
	m.queue = tasks
}

// next returns the task a new WORK session would be started with.
func (m timerModel) next() *store.Task {
	if len(m.queue) == 0 {
		return nil
	}
	return &m.queue[0]
}

func (m timerModel) update(msg tea.Msg) (timerModel, tea.Cmd) {
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch {
	case key.Matches(km, keys.Start):
		return m.startOrResume()
	case key.Matches(km, keys.Pause):
		if m.state.Running {
			m.timer.Pause()
			m.sync()
			return m, nil
		}
		return m.startOrResume()
	case key.Matches(km, keys.Reset):
		m.timer.Reset()
	case key.Matches(km, keys.Skip):
		if !m.state.Phase.IsBreak() {
			return m, func() tea.Msg { return infoNotice("Only breaks can be skipped") }
		}
		m.timer.Skip()
	case key.Matches(km, keys.Next):
		m.timer.SwitchTimer()
	case key.Matches(km, keys.Done):
		id := m.state.ActiveTaskID()
		if id == "" || m.state.Phase != timer.PhaseWork {
			return m, func() tea.Msg { return infoNotice("No work session in progress") }
		}
		return m, markDone(m.bridge, id)
	}
	m.sync()
	return m, nil
}

func (m timerModel) startOrResume() (timerModel, tea.Cmd) {
	switch m.state.Activity() {
	case timer.Running:
		return m, nil
	case timer.Paused:
		m.timer.Resume(nil)
	case timer.Completed:
		m.timer.SwitchTimer()
		m.sync()
		return m.startOrResume()
	default:
		if m.state.Phase == timer.PhaseWork {
			t := m.next()
			if t == nil {
				return m, func() tea.Msg { return infoNotice("Add a task before starting a work session") }
			}
			m.timer.Start(taskRef(*t))
		} else {
			m.timer.Start(nil)
		}
	}
	m.sync()
	return m, nil
}

func taskRef(t store.Task) *timer.TaskRef {
	return &timer.TaskRef{ID: t.ID, Category: t.Category, Description: t.Description}
}

// markDone runs off the event loop. The bridge reports success and failure
// alike as a completion event.
func markDone(b *completion.Bridge, taskID string) tea.Cmd {
	return func() tea.Msg {
		if err := b.MarkDone(context.Background(), taskID); err != nil {
			logging.Debug("tui", "mark done %s: %v", taskID, err)
		}
		return nil
	}
}

func (m timerModel) view() string {
	w := m.width - 4
	st := m.state
	style := phaseStyle(st.Phase)

	title := titleStyle.Render("Pomodoro Timer")
	phaseLabel := style.Render(st.Phase.String())

	timeDisplay := style.Width(w - 6).Align(lipgloss.Center).Render(formatClock(st.Remaining))

	var status string
	switch st.Activity() {
	case timer.Running:
		status = successStyle.Render("running")
	case timer.Paused:
		status = warningStyle.Render("paused")
	case timer.Completed:
		status = successStyle.Render("done")
	default:
		status = mutedStyle.Render("ready")
	}

	total := m.timer.Duration(st.Phase)
	pct := 0.0
	if total > 0 {
		pct = 1 - float64(st.Remaining)/float64(total)
	}
	m.bar.FullColor = string(phaseColor(st.Phase))
	bar := m.bar.ViewAs(min(max(pct, 0), 1))

	content := lipgloss.JoinVertical(lipgloss.Center,
		title,
		"",
		timeDisplay,
		phaseLabel+"  "+status,
		"",
		bar,
		"",
		m.renderSessions(),
		"",
		m.renderTask(),
	)

	return panelStyle.Width(w).Render(
		lipgloss.JoinVertical(lipgloss.Center, content, "", mutedStyle.Render(m.controls())),
	)
}

func (m timerModel) renderTask() string {
	st := m.state
	if st.Phase.IsBreak() {
		return mutedStyle.Render("Take a break")
	}
	if st.ActiveTask != nil {
		return categoryStyle.Render(st.ActiveTask.Category) + "  " + normalItemStyle.Render(st.ActiveTask.Description)
	}
	if t := m.next(); t != nil {
		return mutedStyle.Render("Next: ") + categoryStyle.Render(t.Category) + "  " + normalItemStyle.Render(t.Description)
	}
	return mutedStyle.Render("No tasks queued. Press 2 to add one.")
}

// renderSessions draws one dot per work session in the current long-break
// cycle.
func (m timerModel) renderSessions() string {
	n := m.timer.Settings().SessionsUntilLongBreak
	done := m.state.SessionsCompleted % n
	var parts []string
	for i := 0; i < n; i++ {
		switch {
		case i < done:
			parts = append(parts, successStyle.Render("●"))
		case i == done && m.state.Phase == timer.PhaseWork && m.state.Started:
			parts = append(parts, phaseStyle(timer.PhaseWork).Render("◐"))
		default:
			parts = append(parts, mutedStyle.Render("○"))
		}
	}
	counter := mutedStyle.Render(fmt.Sprintf("  %d completed", m.state.SessionsCompleted))
	return strings.Join(parts, " ") + counter
}

func (m timerModel) controls() string {
	switch m.state.Activity() {
	case timer.Running:
		if m.state.Phase.IsBreak() {
			return "space: pause  x: skip break  r: reset"
		}
		return "space: pause  c: mark done  r: reset"
	case timer.Paused:
		return "space: resume  r: reset  N: next phase"
	default:
		if m.state.Phase.IsBreak() {
			return "s: start break  x: skip break"
		}
		return "s: start  N: next phase  q: quit"
	}
}
