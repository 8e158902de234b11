package commands

import (
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/tigawanna/pomodoro-panda/internal/clock"
	"github.com/tigawanna/pomodoro-panda/internal/completion"
	"github.com/tigawanna/pomodoro-panda/internal/logging"
	"github.com/tigawanna/pomodoro-panda/internal/notify"
	"github.com/tigawanna/pomodoro-panda/internal/settings"
	"github.com/tigawanna/pomodoro-panda/internal/store"
	"github.com/tigawanna/pomodoro-panda/internal/timer"
	"github.com/tigawanna/pomodoro-panda/internal/tui"
)

func runTUI(cmd *cobra.Command, _ []string) error {
	if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	f, err := tea.LogToFile(cfg.LogFile, "")
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	st, err := store.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database %s: %w", cfg.DBPath, err)
	}
	defer st.Close()

	ctx := cmd.Context()
	s, err := settings.Load(ctx, st)
	if err != nil {
		logging.Warn("settings", "%v; using defaults", err)
	}

	c := clock.New()
	t := timer.New(s, c, timer.Options{TickInterval: cfg.TickInterval})
	defer t.Close()

	// The bell goes to stderr so it never interleaves with frames on stdout.
	bridge := completion.New(t, st, c, notify.NewBell(os.Stderr, !cfg.Bell))
	defer bridge.Close()

	return tui.Run(ctx, tui.Deps{Store: st, Timer: t, Bridge: bridge, Clock: c})
}
