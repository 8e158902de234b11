package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/tigawanna/pomodoro-panda/internal/settings"
	"github.com/tigawanna/pomodoro-panda/internal/store"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change timer durations and task placement",
	Long: `Show the timer settings, or change them with flags:

  pomodoro settings --work 50m --break 10m --sessions 3
  pomodoro settings --bottom=true

Changes apply the next time the timer starts.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, st *store.Store) error {
			s, err := settings.Load(ctx, st)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v; showing defaults\n", err)
			}

			changed := false
			flags := cmd.Flags()
			if flags.Changed("work") {
				s.Work, _ = flags.GetDuration("work")
				changed = true
			}
			if flags.Changed("break") {
				s.Break, _ = flags.GetDuration("break")
				changed = true
			}
			if flags.Changed("long-break") {
				s.LongBreak, _ = flags.GetDuration("long-break")
				changed = true
			}
			if flags.Changed("sessions") {
				s.SessionsUntilLongBreak, _ = flags.GetInt("sessions")
				changed = true
			}
			if changed {
				if err := settings.Save(ctx, st, s); err != nil {
					return err
				}
			}
			if flags.Changed("bottom") {
				bottom, _ := flags.GetBool("bottom")
				if err := st.SetBool(ctx, settings.KeyAddTasksToBottom, bottom); err != nil {
					return err
				}
			}

			bottom, err := st.GetBool(ctx, settings.KeyAddTasksToBottom, false)
			if err != nil {
				return err
			}
			printSettings(cmd.OutOrStdout(), s, bottom)
			return nil
		})
	},
}

func printSettings(w io.Writer, s settings.Settings, bottom bool) {
	placement := "top"
	if bottom {
		placement = "bottom"
	}
	fmt.Fprintf(w, "%-28s %s\n", "work", s.Work)
	fmt.Fprintf(w, "%-28s %s\n", "break", s.Break)
	fmt.Fprintf(w, "%-28s %s\n", "long break", s.LongBreak)
	fmt.Fprintf(w, "%-28s %d\n", "sessions until long break", s.SessionsUntilLongBreak)
	fmt.Fprintf(w, "%-28s %s\n", "new tasks go to", placement)
}

func init() {
	def := settings.Default()
	settingsCmd.Flags().Duration("work", def.Work, "work session length")
	settingsCmd.Flags().Duration("break", def.Break, "short break length")
	settingsCmd.Flags().Duration("long-break", def.LongBreak, "long break length")
	settingsCmd.Flags().Int("sessions", def.SessionsUntilLongBreak, "work sessions before a long break")
	settingsCmd.Flags().Bool("bottom", false, "add new tasks to the bottom of the queue")
}
