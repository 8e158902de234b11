package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/tigawanna/pomodoro-panda/internal/clock"
	"github.com/tigawanna/pomodoro-panda/internal/completion"
	"github.com/tigawanna/pomodoro-panda/internal/export"
	"github.com/tigawanna/pomodoro-panda/internal/store"
	"github.com/tigawanna/pomodoro-panda/internal/timer"
)

// Deps are the long-lived services the interface drives.
type Deps struct {
	Store  *store.Store
	Timer  *timer.Timer
	Bridge *completion.Bridge
	Clock  clock.Clock

	// ExportDir is where exports are written. Empty means the home directory.
	ExportDir string
}

// App is the root Bubble Tea model.
type App struct {
	deps   Deps
	width  int
	height int

	activeView    viewState
	showHelp      bool
	exportPicking bool
	exportCursor  int

	timer    timerModel
	tasks    tasksModel
	history  historyModel
	stats    statsModel
	settings settingsModel

	help     help.Model
	notice   noticeMsg
	noticeID int
}

func NewApp(d Deps) App {
	h := help.New()
	h.ShowAll = false

	return App{
		deps:       d,
		activeView: viewTimer,
		timer:      newTimerModel(d.Timer, d.Bridge),
		tasks:      newTasksModel(d.Store, d.Timer, d.Bridge, d.Clock),
		history:    newHistoryModel(d.Store, d.Clock),
		stats:      newStatsModel(d.Store, d.Clock),
		settings:   newSettingsModel(d.Store, d.Timer),
		help:       h,
	}
}

func (a App) Init() tea.Cmd {
	return tea.Batch(
		a.tasks.refresh(),
		a.history.refresh(),
	)
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.help.Width = msg.Width
		contentHeight := a.height - 4 // header + footer
		a.timer.setSize(a.width, contentHeight)
		a.tasks.setSize(a.width, contentHeight)
		a.history.setSize(a.width, contentHeight)
		a.stats.setSize(a.width, contentHeight)
		a.settings.setSize(a.width, contentHeight)
		return a, nil

	case tea.FocusMsg:
		// Timers may have been throttled while the terminal was in the
		// background.
		a.deps.Timer.Sync()
		return a, nil

	case tea.KeyMsg:
		if a.exportPicking {
			return a.updateExportPicker(msg)
		}

		// If a child view is capturing input (e.g. form), delegate first.
		if a.isFormActive() {
			return a.updateActiveView(msg)
		}

		switch {
		case key.Matches(msg, keys.Export):
			a.exportPicking = true
			a.exportCursor = 0
			return a, nil
		case key.Matches(msg, keys.Quit):
			return a, tea.Quit
		case key.Matches(msg, keys.Help):
			a.showHelp = !a.showHelp
			a.help.ShowAll = a.showHelp
			return a, nil
		case key.Matches(msg, keys.Tab1):
			return a.switchView(viewTimer)
		case key.Matches(msg, keys.Tab2):
			return a.switchView(viewTasks)
		case key.Matches(msg, keys.Tab3):
			return a.switchView(viewHistory)
		case key.Matches(msg, keys.Tab4):
			return a.switchView(viewStats)
		case key.Matches(msg, keys.Tab5):
			return a.switchView(viewSettings)
		case key.Matches(msg, keys.Tab):
			return a.switchView((a.activeView + 1) % viewState(len(viewNames)))
		}

	case timerChangedMsg:
		a.timer.sync()
		a.tasks.sync()
		return a, nil

	case completionMsg:
		a.timer.sync()
		cmds := []tea.Cmd{a.showNotice(noticeMsg{
			text:     msg.event.Notification.Message,
			severity: msg.event.Notification.Severity,
		})}
		if msg.event.Phase == timer.PhaseWork {
			cmds = append(cmds, a.tasks.refresh(), a.history.refresh())
			if a.activeView == viewStats {
				cmds = append(cmds, a.stats.refresh())
			}
		}
		return a, tea.Batch(cmds...)

	case tasksDataMsg:
		if msg.err != nil {
			return a, a.showNotice(errorNotice("Could not load tasks: %v", msg.err))
		}
		a.tasks.setTasks(msg.tasks)
		a.timer.setQueue(msg.tasks)
		return a, nil

	case reorderFailedMsg:
		a.tasks.setTasks(msg.previous)
		a.timer.setQueue(msg.previous)
		return a, a.showNotice(errorNotice("Could not reorder tasks: %v", msg.err))

	case historyDataMsg:
		if msg.err != nil {
			return a, a.showNotice(errorNotice("Could not load history: %v", msg.err))
		}
		a.history.records = msg.records
		a.history.clampCursor()
		return a, nil

	case statsDataMsg:
		if msg.err != nil {
			return a, a.showNotice(errorNotice("Could not load stats: %v", msg.err))
		}
		a.stats.setData(msg.days, msg.summary)
		return a, nil

	case settingsDataMsg:
		if msg.err != nil {
			return a, a.showNotice(errorNotice("Could not load settings: %v", msg.err))
		}
		a.settings.current = msg.settings
		a.settings.bottom = msg.bottom
		return a, nil

	case noticeMsg:
		return a, a.showNotice(msg)

	case clearNoticeMsg:
		if msg.id == a.noticeID {
			a.notice = noticeMsg{}
		}
		return a, nil

	case exportDoneMsg:
		a.exportPicking = false
		return a, a.showNotice(noticeMsg{text: "Exported to " + msg.path, severity: completion.SeveritySuccess})
	}

	return a.updateActiveView(msg)
}

// showNotice replaces the current notification and schedules its removal.
func (a *App) showNotice(n noticeMsg) tea.Cmd {
	if n.text == "" {
		return nil
	}
	a.noticeID++
	a.notice = n
	id := a.noticeID
	return tea.Tick(noticeTTL, func(_ time.Time) tea.Msg {
		return clearNoticeMsg{id: id}
	})
}

func (a App) switchView(v viewState) (tea.Model, tea.Cmd) {
	a.activeView = v
	return a, a.refreshCurrentView()
}

func (a App) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch a.activeView {
	case viewTimer:
		a.timer, cmd = a.timer.update(msg)
	case viewTasks:
		a.tasks, cmd = a.tasks.update(msg)
	case viewHistory:
		a.history, cmd = a.history.update(msg)
	case viewStats:
		a.stats, cmd = a.stats.update(msg)
	case viewSettings:
		a.settings, cmd = a.settings.update(msg)
	}
	return a, cmd
}

func (a App) isFormActive() bool {
	switch a.activeView {
	case viewTasks:
		return a.tasks.formActive
	case viewHistory:
		return a.history.formActive
	case viewSettings:
		return a.settings.formActive
	}
	return false
}

func (a App) refreshCurrentView() tea.Cmd {
	switch a.activeView {
	case viewTasks:
		return a.tasks.refresh()
	case viewHistory:
		return a.history.refresh()
	case viewStats:
		return a.stats.refresh()
	case viewSettings:
		return a.settings.refresh()
	}
	return nil
}

func (a App) View() string {
	if a.width == 0 {
		return "Loading..."
	}

	header := a.renderHeader()
	footer := a.renderFooter()

	var content string
	switch a.activeView {
	case viewTimer:
		content = a.timer.view()
	case viewTasks:
		content = a.tasks.view()
	case viewHistory:
		content = a.history.view()
	case viewStats:
		content = a.stats.view()
	case viewSettings:
		content = a.settings.view()
	}

	headerHeight := lipgloss.Height(header)
	footerHeight := lipgloss.Height(footer)
	contentHeight := a.height - headerHeight - footerHeight
	if contentHeight < 1 {
		contentHeight = 1
	}

	if a.exportPicking {
		content = a.renderExportPicker()
	}

	content = lipgloss.NewStyle().
		Width(a.width).
		Height(contentHeight).
		Render(content)

	return lipgloss.JoinVertical(lipgloss.Left, header, content, footer)
}

func (a App) renderHeader() string {
	var tabs []string
	for i, name := range viewNames {
		if viewState(i) == a.activeView {
			tabs = append(tabs, activeTabStyle.Render(name))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(name))
		}
	}

	tabRow := lipgloss.JoinHorizontal(lipgloss.Bottom, tabs...)

	title := lipgloss.NewStyle().Bold(true).Foreground(colorPrimary).Render("pomodoro-panda")
	gap := a.width - lipgloss.Width(title) - lipgloss.Width(tabRow) - 4
	if gap < 1 {
		gap = 1
	}
	spacer := lipgloss.NewStyle().Width(gap).Render("")

	return headerStyle.Render(
		lipgloss.JoinHorizontal(lipgloss.Bottom, title, spacer, tabRow),
	)
}

func (a App) renderFooter() string {
	helpView := a.help.View(keys)

	notice := ""
	if a.notice.text != "" {
		notice = noticeStyle(a.notice.severity).Render(" " + a.notice.text)
	}

	// Countdown indicator, visible from every view.
	timerInfo := ""
	st := a.deps.Timer.State()
	switch st.Activity() {
	case timer.Running:
		timerInfo = phaseStyle(st.Phase).Render(" ● " + formatClock(st.Remaining))
	case timer.Paused:
		timerInfo = warningStyle.Render(" ⏸ " + formatClock(st.Remaining))
	}

	left := footerStyle.Render(helpView)
	right := timerInfo + notice

	gap := a.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	spacer := lipgloss.NewStyle().Width(gap).Render("")

	return lipgloss.JoinHorizontal(lipgloss.Bottom, left, spacer, right)
}

func (a App) renderExportPicker() string {
	title := titleStyle.Render("Export Completed Pomodoros")
	var rows []string
	rows = append(rows, title)
	rows = append(rows, "")
	for i, f := range export.Formats {
		cursor := "  "
		style := normalItemStyle
		if i == a.exportCursor {
			cursor = "> "
			style = selectedItemStyle
		}
		rows = append(rows, style.Render(cursor+strings.ToUpper(f)))
	}
	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  enter: export  esc: cancel"))

	w := a.width - 4
	return activePanelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (a App) updateExportPicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Up):
		if a.exportCursor > 0 {
			a.exportCursor--
		}
	case key.Matches(msg, keys.Down):
		if a.exportCursor < len(export.Formats)-1 {
			a.exportCursor++
		}
	case key.Matches(msg, keys.Enter):
		a.exportPicking = false
		return a, a.doExport(export.Formats[a.exportCursor])
	case key.Matches(msg, keys.Back):
		a.exportPicking = false
	}
	return a, nil
}

func (a App) doExport(format string) tea.Cmd {
	st := a.deps.Store
	dir := a.deps.ExportDir
	now := a.deps.Clock.Now()
	return func() tea.Msg {
		records, err := st.ListCompleted(context.Background(), store.CompletedFilter{})
		if err != nil {
			return errorNotice("Export error: %v", err)
		}

		if dir == "" {
			dir, _ = os.UserHomeDir()
		}
		name := fmt.Sprintf("pomodoro-export-%s.%s", now.Format("2006-01-02"), format)
		path := filepath.Join(dir, name)
		if err := export.Write(format, records, path); err != nil {
			return errorNotice("%s export error: %v", strings.ToUpper(format), err)
		}
		return exportDoneMsg{path: path}
	}
}
