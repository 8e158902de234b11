package tui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/tigawanna/pomodoro-panda/internal/completion"
	"github.com/tigawanna/pomodoro-panda/internal/settings"
	"github.com/tigawanna/pomodoro-panda/internal/store"
	"github.com/tigawanna/pomodoro-panda/internal/timer"
)

type settingsModel struct {
	store  *store.Store
	timer  *timer.Timer
	width  int
	height int

	current settings.Settings
	bottom  bool

	formActive bool
	form       *huh.Form

	// Form values as pointers (survive value copies)
	workMin      *string
	breakMin     *string
	longBreakMin *string
	sessions     *string
	addToBottom  *bool
}

func newSettingsModel(s *store.Store, t *timer.Timer) settingsModel {
	w, b, lb, n := "", "", "", ""
	bottom := false
	return settingsModel{
		store:        s,
		timer:        t,
		current:      t.Settings(),
		workMin:      &w,
		breakMin:     &b,
		longBreakMin: &lb,
		sessions:     &n,
		addToBottom:  &bottom,
	}
}

func (s *settingsModel) setSize(w, h int) {
	s.width = w
	s.height = h
}

func (s settingsModel) refresh() tea.Cmd {
	st := s.store
	return func() tea.Msg {
		ctx := context.Background()
		loaded, err := settings.Load(ctx, st)
		if err != nil {
			return settingsDataMsg{settings: loaded, err: err}
		}
		bottom, err := st.GetBool(ctx, settings.KeyAddTasksToBottom, false)
		return settingsDataMsg{settings: loaded, bottom: bottom, err: err}
	}
}

func (s settingsModel) update(msg tea.Msg) (settingsModel, tea.Cmd) {
	if s.formActive && s.form != nil {
		return s.updateForm(msg)
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, keys.Enter), key.Matches(msg, keys.Edit):
			return s.showForm()
		}
	}
	return s, nil
}

func (s settingsModel) showForm() (settingsModel, tea.Cmd) {
	*s.workMin = durationToMin(s.current.Work)
	*s.breakMin = durationToMin(s.current.Break)
	*s.longBreakMin = durationToMin(s.current.LongBreak)
	*s.sessions = strconv.Itoa(s.current.SessionsUntilLongBreak)
	*s.addToBottom = s.bottom

	validMinutes := func(v string) error {
		_, err := minToDuration(v)
		return err
	}

	s.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Work (min)").Validate(validMinutes).Value(s.workMin),
			huh.NewInput().Title("Short break (min)").Validate(validMinutes).Value(s.breakMin),
			huh.NewInput().Title("Long break (min)").Validate(validMinutes).Value(s.longBreakMin),
			huh.NewInput().Title("Pomodoros before long break").
				Validate(func(v string) error {
					_, err := parsePomodoros(v)
					return err
				}).
				Value(s.sessions),
		).Title("Timer"),
		huh.NewGroup(
			huh.NewConfirm().Title("Add new tasks to the bottom of the list?").
				Affirmative("Bottom").
				Negative("Top").
				Value(s.addToBottom),
		).Title("Tasks"),
	).WithShowHelp(true).WithShowErrors(true)

	s.formActive = true
	return s, s.form.Init()
}

func (s settingsModel) updateForm(msg tea.Msg) (settingsModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			s.formActive = false
			s.form = nil
			return s, nil
		}
	}

	form, cmd := s.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		s.form = f
	}

	if s.form.State == huh.StateCompleted {
		s.formActive = false
		next, err := s.formSettings()
		if err != nil {
			return s, func() tea.Msg { return errorNotice("Invalid settings: %v", err) }
		}
		return s, tea.Sequence(s.save(next, *s.addToBottom), s.refresh())
	}

	return s, cmd
}

func (s settingsModel) formSettings() (settings.Settings, error) {
	var next settings.Settings
	var err error
	if next.Work, err = minToDuration(*s.workMin); err != nil {
		return next, fmt.Errorf("work: %w", err)
	}
	if next.Break, err = minToDuration(*s.breakMin); err != nil {
		return next, fmt.Errorf("short break: %w", err)
	}
	if next.LongBreak, err = minToDuration(*s.longBreakMin); err != nil {
		return next, fmt.Errorf("long break: %w", err)
	}
	if next.SessionsUntilLongBreak, err = parsePomodoros(*s.sessions); err != nil {
		return next, fmt.Errorf("sessions: %w", err)
	}
	return next, next.Validate()
}

func (s settingsModel) save(next settings.Settings, bottom bool) tea.Cmd {
	st := s.store
	applied := s.timer.Settings()
	return func() tea.Msg {
		ctx := context.Background()
		if err := settings.Save(ctx, st, next); err != nil {
			return errorNotice("Could not save settings: %v", err)
		}
		if err := st.SetBool(ctx, settings.KeyAddTasksToBottom, bottom); err != nil {
			return errorNotice("Could not save settings: %v", err)
		}
		if next != applied {
			return noticeMsg{text: "Settings saved. New durations apply after restart.", severity: completion.SeveritySuccess}
		}
		return noticeMsg{text: "Settings saved.", severity: completion.SeveritySuccess}
	}
}

func (s settingsModel) view() string {
	w := s.width - 4
	title := titleStyle.Render("Settings")

	if s.formActive && s.form != nil {
		return panelStyle.Width(w).Render(
			lipgloss.JoinVertical(lipgloss.Left, title, "", s.form.View()),
		)
	}

	placement := "top"
	if s.bottom {
		placement = "bottom"
	}
	values := []struct{ label, value string }{
		{"Work", durationToMin(s.current.Work) + " min"},
		{"Short break", durationToMin(s.current.Break) + " min"},
		{"Long break", durationToMin(s.current.LongBreak) + " min"},
		{"Long break every", fmt.Sprintf("%d pomodoros", s.current.SessionsUntilLongBreak)},
		{"New tasks go to", placement},
	}

	var rows []string
	rows = append(rows, title)
	rows = append(rows, "")
	for _, v := range values {
		label := lipgloss.NewStyle().Width(24).Render(v.label)
		rows = append(rows, fmt.Sprintf("  %s %s", label, highlightStyle.Render(v.value)))
	}
	if s.current != s.timer.Settings() {
		rows = append(rows, "")
		rows = append(rows, warningStyle.Render("  The running timer keeps its durations until restart."))
	}
	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("Press enter to edit settings"))

	return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func durationToMin(d time.Duration) string {
	if d%time.Minute == 0 {
		return strconv.Itoa(int(d / time.Minute))
	}
	return strconv.FormatFloat(d.Minutes(), 'f', -1, 64)
}

func minToDuration(s string) (time.Duration, error) {
	mins, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, errors.New("enter a number of minutes")
	}
	if mins <= 0 {
		return 0, errors.New("must be positive")
	}
	return time.Duration(mins * float64(time.Minute)), nil
}
