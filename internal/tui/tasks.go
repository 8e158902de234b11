package tui

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/tigawanna/pomodoro-panda/internal/clock"
	"github.com/tigawanna/pomodoro-panda/internal/completion"
	"github.com/tigawanna/pomodoro-panda/internal/estimate"
	"github.com/tigawanna/pomodoro-panda/internal/store"
	"github.com/tigawanna/pomodoro-panda/internal/timer"
)

var defaultCategories = []string{"Work", "Study", "Personal", "Exercise", "Reading"}

type tasksModel struct {
	store  *store.Store
	timer  *timer.Timer
	bridge *completion.Bridge
	clock  clock.Clock
	width  int
	height int

	tasks  []store.Task
	cursor int
	state  timer.State

	formActive bool
	form       *huh.Form
	formType   string // "new", "edit"
	editing    store.Task

	// Form field pointers (survive value copies)
	formCategory    *string
	formDescription *string
	formPomodoros   *string
}

func newTasksModel(s *store.Store, t *timer.Timer, b *completion.Bridge, c clock.Clock) tasksModel {
	cat, desc, n := "", "", ""
	return tasksModel{
		store:           s,
		timer:           t,
		bridge:          b,
		clock:           c,
		state:           t.State(),
		formCategory:    &cat,
		formDescription: &desc,
		formPomodoros:   &n,
	}
}

func (m *tasksModel) setSize(w, h int) {
	m.width = w
	m.height = h
}

func (m *tasksModel) sync() {
	m.state = m.timer.State()
}

func (m *tasksModel) setTasks(tasks []store.Task) {
	m.tasks = tasks
	if m.cursor >= len(m.tasks) {
		m.cursor = max(0, len(m.tasks)-1)
	}
}

func (m tasksModel) refresh() tea.Cmd {
	return loadTasks(m.store)
}

func loadTasks(s *store.Store) tea.Cmd {
	return func() tea.Msg {
		tasks, err := s.ListActive(context.Background())
		return tasksDataMsg{tasks: tasks, err: err}
	}
}

// storeCmd runs op off the event loop and reloads the list afterwards.
func (m tasksModel) storeCmd(what string, op func(ctx context.Context) error) tea.Cmd {
	s := m.store
	return func() tea.Msg {
		ctx := context.Background()
		if err := op(ctx); err != nil {
			return errorNotice("Could not %s: %v", what, err)
		}
		tasks, err := s.ListActive(ctx)
		return tasksDataMsg{tasks: tasks, err: err}
	}
}

func (m tasksModel) selected() (store.Task, bool) {
	if m.cursor < 0 || m.cursor >= len(m.tasks) {
		return store.Task{}, false
	}
	return m.tasks[m.cursor], true
}

func (m tasksModel) update(msg tea.Msg) (tasksModel, tea.Cmd) {
	if m.formActive && m.form != nil {
		return m.updateForm(msg)
	}

	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch {
	case key.Matches(km, keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(km, keys.Down):
		if m.cursor < len(m.tasks)-1 {
			m.cursor++
		}
	case key.Matches(km, keys.New):
		return m.showTaskForm(nil)
	case key.Matches(km, keys.Edit):
		if t, ok := m.selected(); ok {
			return m.showTaskForm(&t)
		}
	case key.Matches(km, keys.Delete):
		if t, ok := m.selected(); ok {
			return m, m.storeCmd("delete task", func(ctx context.Context) error {
				return m.store.DeleteActive(ctx, t.ID)
			})
		}
	case key.Matches(km, keys.More), key.Matches(km, keys.Less):
		if t, ok := m.selected(); ok {
			n := t.Pomodoros + 1
			if key.Matches(km, keys.Less) {
				n = t.Pomodoros - 1
			}
			if n < 1 {
				return m, nil
			}
			return m, m.storeCmd("update pomodoros", func(ctx context.Context) error {
				return m.store.UpdatePomodoros(ctx, t.ID, n)
			})
		}
	case key.Matches(km, keys.MoveUp):
		return m.move(m.cursor, m.cursor-1)
	case key.Matches(km, keys.MoveDown):
		return m.move(m.cursor, m.cursor+1)
	case key.Matches(km, keys.Start), key.Matches(km, keys.Enter):
		return m.startSelected()
	case key.Matches(km, keys.Done):
		if t, ok := m.selected(); ok {
			return m, markDone(m.bridge, t.ID)
		}
	}
	return m, nil
}

// move reorders the list locally and persists it in the background. A
// failed write restores the previous order.
func (m tasksModel) move(from, to int) (tasksModel, tea.Cmd) {
	if from < 0 || from >= len(m.tasks) || to < 0 || to >= len(m.tasks) || from == to {
		return m, nil
	}
	previous := m.tasks
	m.tasks = moveTask(m.tasks, from, to)
	m.cursor = to
	return m, reorder(m.store, previous, m.tasks)
}

func reorder(s *store.Store, previous, next []store.Task) tea.Cmd {
	return func() tea.Msg {
		if err := s.ReorderActive(context.Background(), next); err != nil {
			return reorderFailedMsg{previous: previous, err: err}
		}
		return tasksDataMsg{tasks: next}
	}
}

// moveTask returns a copy of tasks with the item at from moved to index to
// and orders renumbered from zero.
func moveTask(tasks []store.Task, from, to int) []store.Task {
	out := slices.Clone(tasks)
	t := out[from]
	out = slices.Delete(out, from, from+1)
	out = slices.Insert(out, to, t)
	for i := range out {
		out[i].Order = i
	}
	return out
}

// startSelected moves the selected task to the head of the queue and begins
// a work session on it.
func (m tasksModel) startSelected() (tasksModel, tea.Cmd) {
	t, ok := m.selected()
	if !ok {
		return m, nil
	}
	st := m.timer.State()
	if st.Phase != timer.PhaseWork {
		return m, func() tea.Msg { return infoNotice("Finish or skip the break first") }
	}
	if st.Activity() != timer.NotStarted {
		return m, func() tea.Msg { return infoNotice("A work session is already in progress") }
	}

	var cmd tea.Cmd
	if m.cursor != 0 {
		m, cmd = m.move(m.cursor, 0)
	}
	m.timer.Start(taskRef(t))
	m.sync()
	return m, cmd
}

func (m tasksModel) categories() []string {
	seen := map[string]bool{}
	var out []string
	for _, c := range defaultCategories {
		seen[c] = true
		out = append(out, c)
	}
	for _, t := range m.tasks {
		if !seen[t.Category] {
			seen[t.Category] = true
			out = append(out, t.Category)
		}
	}
	return out
}

func (m tasksModel) showTaskForm(t *store.Task) (tasksModel, tea.Cmd) {
	if t == nil {
		m.formType = "new"
		m.editing = store.Task{}
		*m.formCategory = ""
		*m.formDescription = ""
		*m.formPomodoros = "1"
	} else {
		m.formType = "edit"
		m.editing = *t
		*m.formCategory = t.Category
		*m.formDescription = t.Description
		*m.formPomodoros = strconv.Itoa(t.Pomodoros)
	}

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Category").
				Suggestions(m.categories()).
				Validate(required("category")).
				Value(m.formCategory),
			huh.NewInput().Title("Description").
				Validate(required("description")).
				Value(m.formDescription),
			huh.NewInput().Title("Pomodoros").
				Validate(func(s string) error {
					_, err := parsePomodoros(s)
					return err
				}).
				Value(m.formPomodoros),
		),
	).WithShowHelp(true).WithShowErrors(true)

	m.formActive = true
	return m, m.form.Init()
}

func required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

func parsePomodoros(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, errors.New("enter a whole number")
	}
	if n < 1 {
		return 0, errors.New("at least one pomodoro")
	}
	return n, nil
}

func (m tasksModel) updateForm(msg tea.Msg) (tasksModel, tea.Cmd) {
	// Check for escape to cancel form
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			m.formActive = false
			m.form = nil
			return m, nil
		}
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		m.formActive = false
		category := strings.TrimSpace(*m.formCategory)
		description := strings.TrimSpace(*m.formDescription)
		n, err := parsePomodoros(*m.formPomodoros)
		if err != nil {
			return m, func() tea.Msg { return errorNotice("Invalid pomodoros: %v", err) }
		}

		switch m.formType {
		case "new":
			return m, m.storeCmd("add task", func(ctx context.Context) error {
				_, err := m.store.AddTask(ctx, category, description, n)
				return err
			})
		case "edit":
			t := m.editing
			t.Category = category
			t.Description = description
			t.Pomodoros = n
			t.Order = store.OrderUnset
			return m, m.storeCmd("update task", func(ctx context.Context) error {
				_, err := m.store.UpdateActive(ctx, t)
				return err
			})
		}
	}

	return m, cmd
}

func (m tasksModel) view() string {
	w := m.width - 4

	if m.formActive && m.form != nil {
		title := titleStyle.Render("New Task")
		if m.formType == "edit" {
			title = titleStyle.Render("Edit Task")
		}
		content := lipgloss.JoinVertical(lipgloss.Left, title, "", m.form.View())
		return panelStyle.Width(w).Render(content)
	}

	title := titleStyle.Render("Tasks")
	if len(m.tasks) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			title,
			"",
			mutedStyle.Render("No tasks yet. Press n to add one."),
		)
		return panelStyle.Width(w).Render(content)
	}

	activeID := ""
	if m.state.Phase == timer.PhaseWork {
		activeID = m.state.ActiveTaskID()
	}
	estimates := estimate.ByID(estimate.Completion(
		m.tasks, activeID, m.state.Remaining, m.state.Running, m.timer.Settings(), m.clock.Now(),
	))

	var rows []string
	rows = append(rows, title)
	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render(fmt.Sprintf("  %-2s %-12s %-36s %-6s %s", "", "Category", "Description", "Left", "Done by")))

	descWidth := 36
	for i, t := range m.tasks {
		cursor := "  "
		style := normalItemStyle
		if i == m.cursor {
			cursor = "> "
			style = selectedItemStyle
		}
		marker := "  "
		if t.ID == activeID {
			marker = phaseStyle(timer.PhaseWork).Render("▶ ")
		}
		eta := ""
		if e, ok := estimates[t.ID]; ok {
			eta = e.CompletesAt.Format("15:04")
		}
		row := style.Render(cursor) + marker +
			categoryStyle.Render(fmt.Sprintf("%-12s ", truncate(t.Category, 12))) +
			style.Render(fmt.Sprintf("%-36s ", truncate(t.Description, descWidth))) +
			highlightStyle.Render(fmt.Sprintf("%-6s ", fmt.Sprintf("×%d", t.Pomodoros))) +
			mutedStyle.Render(eta)
		rows = append(rows, row)
	}

	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  n: new  e: edit  d: delete  +/-: pomodoros  K/J: move  s: start  c: mark done"))

	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}
