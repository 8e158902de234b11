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
	"github.com/tigawanna/pomodoro-panda/internal/clock"
	"github.com/tigawanna/pomodoro-panda/internal/completion"
	"github.com/tigawanna/pomodoro-panda/internal/store"
)

type historyModel struct {
	store  *store.Store
	clock  clock.Clock
	width  int
	height int

	records []store.CompletedTask
	cursor  int
	showAll bool

	formActive bool
	form       *huh.Form
	editing    store.CompletedTask

	// Form field pointers (survive value copies)
	formCategory    *string
	formDescription *string
	formDuration    *string
}

func newHistoryModel(s *store.Store, c clock.Clock) historyModel {
	cat, desc, dur := "", "", ""
	return historyModel{
		store:           s,
		clock:           c,
		formCategory:    &cat,
		formDescription: &desc,
		formDuration:    &dur,
	}
}

func (h *historyModel) setSize(w, ht int) {
	h.width = w
	h.height = ht
}

func (h *historyModel) clampCursor() {
	if h.cursor >= len(h.records) {
		h.cursor = max(0, len(h.records)-1)
	}
}

func (h historyModel) filter() store.CompletedFilter {
	if h.showAll {
		return store.CompletedFilter{}
	}
	return store.TodayFilter(h.clock.Now())
}

func (h historyModel) refresh() tea.Cmd {
	s, f := h.store, h.filter()
	return func() tea.Msg {
		records, err := s.ListCompleted(context.Background(), f)
		return historyDataMsg{records: records, err: err}
	}
}

func (h historyModel) selected() (store.CompletedTask, bool) {
	if h.cursor < 0 || h.cursor >= len(h.records) {
		return store.CompletedTask{}, false
	}
	return h.records[h.cursor], true
}

func (h historyModel) update(msg tea.Msg) (historyModel, tea.Cmd) {
	if h.formActive && h.form != nil {
		return h.updateForm(msg)
	}

	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return h, nil
	}

	switch {
	case key.Matches(km, keys.Up):
		if h.cursor > 0 {
			h.cursor--
		}
	case key.Matches(km, keys.Down):
		if h.cursor < len(h.records)-1 {
			h.cursor++
		}
	case key.Matches(km, keys.ToggleAll):
		h.showAll = !h.showAll
		h.cursor = 0
		return h, h.refresh()
	case key.Matches(km, keys.Edit):
		if r, ok := h.selected(); ok {
			return h.showEditForm(r)
		}
	case key.Matches(km, keys.Delete):
		if r, ok := h.selected(); ok {
			s := h.store
			return h, tea.Sequence(func() tea.Msg {
				if err := s.DeleteCompleted(context.Background(), r.ID); err != nil {
					return errorNotice("Could not delete record: %v", err)
				}
				return nil
			}, h.refresh())
		}
	case key.Matches(km, keys.Repeat):
		if r, ok := h.selected(); ok {
			s := h.store
			return h, tea.Sequence(func() tea.Msg {
				if _, err := s.RepeatTask(context.Background(), r.Category, r.Description, 1); err != nil {
					return errorNotice("Could not queue task: %v", err)
				}
				return noticeMsg{text: "Queued again: " + truncate(r.Description, 40), severity: completion.SeveritySuccess}
			}, loadTasks(s))
		}
	}
	return h, nil
}

func (h historyModel) showEditForm(r store.CompletedTask) (historyModel, tea.Cmd) {
	h.editing = r
	*h.formCategory = r.Category
	*h.formDescription = r.Description
	*h.formDuration = strconv.Itoa(int(r.Duration.Round(time.Minute).Minutes()))

	h.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Category").Validate(required("category")).Value(h.formCategory),
			huh.NewInput().Title("Description").Validate(required("description")).Value(h.formDescription),
			huh.NewInput().Title("Duration (min or e.g. 1h5m)").
				Validate(func(s string) error {
					_, err := parseSpent(s)
					return err
				}).
				Value(h.formDuration),
		),
	).WithShowHelp(true).WithShowErrors(true)

	h.formActive = true
	return h, h.form.Init()
}

// parseSpent accepts whole minutes or a Go duration string.
func parseSpent(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 {
			return 0, errors.New("duration cannot be negative")
		}
		return time.Duration(n) * time.Minute, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, errors.New("enter minutes or a duration like 25m")
	}
	if d < 0 {
		return 0, errors.New("duration cannot be negative")
	}
	return d, nil
}

func (h historyModel) updateForm(msg tea.Msg) (historyModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			h.formActive = false
			h.form = nil
			return h, nil
		}
	}

	form, cmd := h.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		h.form = f
	}

	if h.form.State == huh.StateCompleted {
		h.formActive = false
		spent, err := parseSpent(*h.formDuration)
		if err != nil {
			return h, func() tea.Msg { return errorNotice("Invalid duration: %v", err) }
		}
		r := h.editing
		r.Category = strings.TrimSpace(*h.formCategory)
		r.Description = strings.TrimSpace(*h.formDescription)
		r.Duration = spent
		s := h.store
		return h, tea.Sequence(func() tea.Msg {
			if err := s.UpdateCompleted(context.Background(), r); err != nil {
				return errorNotice("Could not update record: %v", err)
			}
			return nil
		}, h.refresh())
	}

	return h, cmd
}

func (h historyModel) view() string {
	w := h.width - 4

	if h.formActive && h.form != nil {
		content := lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render("Edit Record"), "", h.form.View())
		return panelStyle.Width(w).Render(content)
	}

	scope := "Today"
	if h.showAll {
		scope = "All time"
	}
	var total time.Duration
	for _, r := range h.records {
		total += r.Duration
	}
	title := lipgloss.JoinHorizontal(lipgloss.Bottom,
		titleStyle.Render("History"), "  ",
		subtitleStyle.Render(fmt.Sprintf("%s · %d pomodoros · %s", scope, len(h.records), formatDuration(total))),
	)

	if len(h.records) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			title,
			"",
			mutedStyle.Render("Nothing completed yet."),
			"",
			mutedStyle.Render("  a: today/all"),
		)
		return panelStyle.Width(w).Render(content)
	}

	var rows []string
	rows = append(rows, title)
	rows = append(rows, "")

	// Leave room for the title, hints and panel chrome.
	visible := max(h.height-10, 3)
	start := 0
	if h.cursor >= visible {
		start = h.cursor - visible + 1
	}
	end := min(start+visible, len(h.records))

	for i := start; i < end; i++ {
		r := h.records[i]
		cursor := "  "
		style := normalItemStyle
		if i == h.cursor {
			cursor = "> "
			style = selectedItemStyle
		}
		when := r.EndTime.Format("15:04")
		if h.showAll {
			when = r.EndTime.Format("Jan 02 15:04")
		}
		row := style.Render(cursor) +
			mutedStyle.Render(fmt.Sprintf("%-13s", when)) +
			categoryStyle.Render(fmt.Sprintf("%-12s ", truncate(r.Category, 12))) +
			style.Render(fmt.Sprintf("%-36s ", truncate(r.Description, 36))) +
			highlightStyle.Render(formatMinutes(r.Duration))
		rows = append(rows, row)
	}

	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  a: today/all  e: edit  d: delete  R: repeat  E: export"))

	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}
