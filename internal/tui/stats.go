package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/tigawanna/pomodoro-panda/internal/clock"
	"github.com/tigawanna/pomodoro-panda/internal/store"
)

const statsDays = 7

type statsModel struct {
	store  *store.Store
	clock  clock.Clock
	width  int
	height int

	offset  int // weeks back from the current one
	days    []store.DailyCount
	summary store.CompletedSummary
	chart   barchart.Model
}

func newStatsModel(s *store.Store, c clock.Clock) statsModel {
	return statsModel{
		store: s,
		clock: c,
		chart: barchart.New(60, 12),
	}
}

func (m *statsModel) setSize(w, h int) {
	m.width = w
	m.height = h
	m.buildChart()
}

func (m *statsModel) setData(days []store.DailyCount, summary store.CompletedSummary) {
	m.days = days
	m.summary = summary
	m.buildChart()
}

// dateRange returns the local-day window ending today, shifted back by offset
// weeks.
func (m statsModel) dateRange() (from, to time.Time) {
	now := m.clock.Now().Local()
	y, mo, d := now.Date()
	to = time.Date(y, mo, d, 0, 0, 0, 0, time.Local).AddDate(0, 0, 1-statsDays*m.offset)
	from = to.AddDate(0, 0, -statsDays)
	return from, to
}

func (m statsModel) refresh() tea.Cmd {
	s := m.store
	from, to := m.dateRange()
	return func() tea.Msg {
		ctx := context.Background()
		days, err := s.DailyPomodoros(ctx, from, to)
		if err != nil {
			return statsDataMsg{err: err}
		}
		summary, err := s.CompletedStats(ctx, store.CompletedFilter{Since: from, Until: to})
		return statsDataMsg{days: days, summary: summary, err: err}
	}
}

func (m statsModel) update(msg tea.Msg) (statsModel, tea.Cmd) {
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch {
	case key.Matches(km, keys.Left):
		m.offset++
		return m, m.refresh()
	case key.Matches(km, keys.Right):
		if m.offset > 0 {
			m.offset--
			return m, m.refresh()
		}
	}
	return m, nil
}

func (m *statsModel) buildChart() {
	chartWidth := m.width - 8
	if chartWidth < 20 {
		chartWidth = 20
	}
	chartHeight := 12
	if m.height > 30 {
		chartHeight = 16
	}

	m.chart = barchart.New(chartWidth, chartHeight)

	var bars []barchart.BarData
	for _, d := range m.days {
		label := d.Date
		if t, err := time.ParseInLocation("2006-01-02", d.Date, time.Local); err == nil {
			label = t.Format("Mon 02")
		}
		style := lipgloss.NewStyle().Foreground(colorPrimary)
		if d.Pomodoros == 0 {
			style = lipgloss.NewStyle().Foreground(colorSubtle)
		}
		bars = append(bars, barchart.BarData{
			Label: label,
			Values: []barchart.BarValue{{
				Name:  "Pomodoros",
				Value: float64(d.Pomodoros),
				Style: style,
			}},
		})
	}

	m.chart.PushAll(bars)
	m.chart.Draw()
}

func (m statsModel) view() string {
	w := m.width - 4

	from, to := m.dateRange()
	dateLabel := mutedStyle.Render(fmt.Sprintf("%s to %s", from.Format("Jan 02"), to.AddDate(0, 0, -1).Format("Jan 02, 2006")))
	header := lipgloss.JoinHorizontal(lipgloss.Bottom, titleStyle.Render("Stats"), "  ", dateLabel)

	best, bestDay := 0, ""
	for _, d := range m.days {
		if d.Pomodoros > best {
			best, bestDay = d.Pomodoros, d.Date
		}
	}

	var summary []string
	summary = append(summary, fmt.Sprintf("  %s %s",
		lipgloss.NewStyle().Width(18).Render("Pomodoros"),
		highlightStyle.Render(fmt.Sprintf("%d", m.summary.Count))))
	summary = append(summary, fmt.Sprintf("  %s %s",
		lipgloss.NewStyle().Width(18).Render("Focused time"),
		highlightStyle.Render(formatDuration(m.summary.Total))))
	if best > 0 {
		summary = append(summary, fmt.Sprintf("  %s %s",
			lipgloss.NewStyle().Width(18).Render("Best day"),
			highlightStyle.Render(fmt.Sprintf("%s (%d)", bestDay, best))))
	}

	nav := mutedStyle.Render("  ←/→: previous/next week")

	return panelStyle.Width(w).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			header, "", m.chart.View(), "", strings.Join(summary, "\n"), "", nav,
		),
	)
}
