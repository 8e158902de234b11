package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tigawanna/pomodoro-panda/internal/clock"
	"github.com/tigawanna/pomodoro-panda/internal/completion"
	"github.com/tigawanna/pomodoro-panda/internal/estimate"
	"github.com/tigawanna/pomodoro-panda/internal/logging"
	"github.com/tigawanna/pomodoro-panda/internal/settings"
	"github.com/tigawanna/pomodoro-panda/internal/store"
	"github.com/tigawanna/pomodoro-panda/internal/timer"
)

// shortIDLen is how much of a task id the list shows and accepts.
const shortIDLen = 8

var errAmbiguousID = errors.New("ambiguous task id")

var addCmd = &cobra.Command{
	Use:   "add [category] [description]",
	Short: "Add a task to the queue",
	Long: `Add a task to the queue. New tasks go to the top of the list unless the
add_tasks_to_bottom setting is on.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		pomodoros, _ := cmd.Flags().GetInt("pomodoros")
		category := args[0]
		description := strings.Join(args[1:], " ")
		return withStore(cmd, func(ctx context.Context, st *store.Store) error {
			task, err := st.AddTask(ctx, category, description, pomodoros)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s: [%s] %s ×%d\n", shortID(task.ID), task.Category, task.Description, task.Pomodoros)
			return nil
		})
	},
}

var repeatCmd = &cobra.Command{
	Use:   "repeat [category] [description]",
	Short: "Queue a task again, adding pomodoros to a matching task if one exists",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		pomodoros, _ := cmd.Flags().GetInt("pomodoros")
		return withStore(cmd, func(ctx context.Context, st *store.Store) error {
			task, err := st.RepeatTask(ctx, args[0], strings.Join(args[1:], " "), pomodoros)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Queued %s: [%s] %s ×%d\n", shortID(task.ID), task.Category, task.Description, task.Pomodoros)
			return nil
		})
	},
}

var listCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List queued tasks with estimated completion times",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, st *store.Store) error {
			tasks, err := st.ListActive(ctx)
			if err != nil {
				return err
			}
			s, err := settings.Load(ctx, st)
			if err != nil {
				logging.Warn("settings", "%v; using defaults", err)
			}
			printTasks(cmd.OutOrStdout(), tasks, s, clock.New())
			return nil
		})
	},
}

func printTasks(w io.Writer, tasks []store.Task, s settings.Settings, c clock.Clock) {
	if len(tasks) == 0 {
		fmt.Fprintln(w, "No tasks queued. Use 'pomodoro add <category> <description>' to add one.")
		return
	}

	estimates := estimate.ByID(estimate.Completion(tasks, "", 0, false, s, c.Now()))

	fmt.Fprintf(w, "%-3s %-8s %-14s %-40s %-5s %s\n", "#", "ID", "CATEGORY", "DESCRIPTION", "POMS", "DONE BY")
	fmt.Fprintln(w, strings.Repeat("-", 82))
	for i, t := range tasks {
		fmt.Fprintf(w, "%-3d %-8s %-14s %-40s %-5d %s\n",
			i+1,
			shortID(t.ID),
			logging.Truncate(t.Category, 14),
			logging.Truncate(t.Description, 40),
			t.Pomodoros,
			estimates[t.ID].CompletesAt.Format("15:04"),
		)
	}
}

var editCmd = &cobra.Command{
	Use:   "edit [task-id]",
	Short: "Change a task's category, description or pomodoros",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, st *store.Store) error {
			task, err := findTask(ctx, st, args[0])
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("category") {
				task.Category, _ = cmd.Flags().GetString("category")
			}
			if cmd.Flags().Changed("description") {
				task.Description, _ = cmd.Flags().GetString("description")
			}
			if cmd.Flags().Changed("pomodoros") {
				task.Pomodoros, _ = cmd.Flags().GetInt("pomodoros")
			}
			task.Order = store.OrderUnset
			updated, err := st.UpdateActive(ctx, task)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s: [%s] %s ×%d\n", shortID(updated.ID), updated.Category, updated.Description, updated.Pomodoros)
			return nil
		})
	},
}

var moveCmd = &cobra.Command{
	Use:   "mv [task-id] [position]",
	Short: "Move a task to a position in the queue (1 is the top)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		pos, err := strconv.Atoi(args[1])
		if err != nil || pos < 1 {
			return fmt.Errorf("invalid position %q", args[1])
		}
		return withStore(cmd, func(ctx context.Context, st *store.Store) error {
			task, err := findTask(ctx, st, args[0])
			if err != nil {
				return err
			}
			tasks, err := st.ListActive(ctx)
			if err != nil {
				return err
			}
			from := slices.IndexFunc(tasks, func(t store.Task) bool { return t.ID == task.ID })
			to := min(pos, len(tasks)) - 1
			tasks = slices.Delete(tasks, from, from+1)
			tasks = slices.Insert(tasks, to, task)
			if err := st.ReorderActive(ctx, tasks); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Moved %s to position %d\n", shortID(task.ID), to+1)
			return nil
		})
	},
}

var doneCmd = &cobra.Command{
	Use:   "done [task-id]",
	Short: "Record one pomodoro of a task as completed",
	Long: `Record one full work session of a task in the history. The task loses one
pomodoro and leaves the queue when none remain.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, st *store.Store) error {
			task, err := findTask(ctx, st, args[0])
			if err != nil {
				return err
			}
			s, err := settings.Load(ctx, st)
			if err != nil {
				logging.Warn("settings", "%v; using defaults", err)
			}

			c := clock.New()
			t := timer.New(s, c, timer.Options{})
			defer t.Close()
			bridge := completion.New(t, st, c, nil)
			defer bridge.Close()

			var recorded *store.CompletedTask
			bridge.Subscribe(func(ev completion.Event) { recorded = ev.Record })
			if err := bridge.MarkDone(ctx, task.ID); err != nil {
				return err
			}
			if recorded != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Completed one pomodoro of %s (%s)\n", task.Description, recorded.Duration)
			}
			if task.Pomodoros > 1 {
				fmt.Fprintf(cmd.OutOrStdout(), "%d pomodoros left\n", task.Pomodoros-1)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Task finished and removed from the queue")
			}
			return nil
		})
	},
}

var rmCmd = &cobra.Command{
	Use:     "rm [task-id]",
	Aliases: []string{"delete"},
	Short:   "Remove a task from the queue",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, st *store.Store) error {
			task, err := findTask(ctx, st, args[0])
			if err != nil {
				return err
			}
			if err := st.DeleteActive(ctx, task.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s: %s\n", shortID(task.ID), task.Description)
			return nil
		})
	},
}

// findTask resolves a full id or a unique id prefix.
func findTask(ctx context.Context, st *store.Store, ref string) (store.Task, error) {
	if ref == "" {
		return store.Task{}, fmt.Errorf("%w: empty task id", store.ErrInvalidArgument)
	}
	tasks, err := st.ListActive(ctx)
	if err != nil {
		return store.Task{}, err
	}
	var matches []store.Task
	for _, t := range tasks {
		if t.ID == ref {
			return t, nil
		}
		if strings.HasPrefix(t.ID, ref) {
			matches = append(matches, t)
		}
	}
	switch len(matches) {
	case 0:
		return store.Task{}, fmt.Errorf("%w: %s", store.ErrTaskNotFound, ref)
	case 1:
		return matches[0], nil
	default:
		return store.Task{}, fmt.Errorf("%w: %s matches %d tasks", errAmbiguousID, ref, len(matches))
	}
}

func shortID(id string) string {
	if len(id) <= shortIDLen {
		return id
	}
	return id[:shortIDLen]
}

func init() {
	addCmd.Flags().IntP("pomodoros", "p", 1, "number of pomodoros")
	repeatCmd.Flags().IntP("pomodoros", "p", 1, "number of pomodoros to add")
	editCmd.Flags().StringP("category", "c", "", "new category")
	editCmd.Flags().StringP("description", "d", "", "new description")
	editCmd.Flags().IntP("pomodoros", "p", 1, "new number of pomodoros")
}
