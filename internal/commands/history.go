package commands

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/tigawanna/pomodoro-panda/internal/export"
	"github.com/tigawanna/pomodoro-panda/internal/logging"
	"github.com/tigawanna/pomodoro-panda/internal/store"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show completed pomodoros (today by default)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, err := historyFilter(cmd)
		if err != nil {
			return err
		}
		return withStore(cmd, func(ctx context.Context, st *store.Store) error {
			records, err := st.ListCompleted(ctx, filter)
			if err != nil {
				return err
			}
			printHistory(cmd.OutOrStdout(), records)
			return nil
		})
	},
}

func historyFilter(cmd *cobra.Command) (store.CompletedFilter, error) {
	if since, _ := cmd.Flags().GetString("since"); since != "" {
		from, err := time.ParseInLocation("2006-01-02", since, time.Local)
		if err != nil {
			return store.CompletedFilter{}, fmt.Errorf("invalid --since %q: want YYYY-MM-DD", since)
		}
		return store.CompletedFilter{Since: from}, nil
	}
	if all, _ := cmd.Flags().GetBool("all"); all {
		return store.CompletedFilter{}, nil
	}
	return store.TodayFilter(time.Now()), nil
}

func printHistory(w io.Writer, records []store.CompletedTask) {
	if len(records) == 0 {
		fmt.Fprintln(w, "Nothing completed in this period.")
		return
	}

	var total time.Duration
	fmt.Fprintf(w, "%-16s %-14s %-40s %s\n", "ENDED", "CATEGORY", "DESCRIPTION", "DURATION")
	fmt.Fprintln(w, strings.Repeat("-", 82))
	for _, r := range records {
		total += r.Duration
		fmt.Fprintf(w, "%-16s %-14s %-40s %s\n",
			r.EndTime.Local().Format("2006-01-02 15:04"),
			logging.Truncate(r.Category, 14),
			logging.Truncate(r.Description, 40),
			r.Duration.Round(time.Second),
		)
	}
	fmt.Fprintf(w, "\n%d pomodoros, %s focused\n", len(records), total.Round(time.Second))
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show pomodoro totals and a daily breakdown",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		days, _ := cmd.Flags().GetInt("days")
		if days < 1 {
			return fmt.Errorf("--days must be at least 1")
		}
		return withStore(cmd, func(ctx context.Context, st *store.Store) error {
			now := time.Now()
			today, err := st.CompletedStats(ctx, store.TodayFilter(now))
			if err != nil {
				return err
			}
			all, err := st.CompletedStats(ctx, store.CompletedFilter{})
			if err != nil {
				return err
			}
			to := store.TodayFilter(now).Until
			daily, err := st.DailyPomodoros(ctx, to.AddDate(0, 0, -days), to)
			if err != nil {
				return err
			}
			printStats(cmd.OutOrStdout(), today, all, daily)
			return nil
		})
	},
}

func printStats(w io.Writer, today, all store.CompletedSummary, daily []store.DailyCount) {
	fmt.Fprintf(w, "Today:    %d pomodoros, %s\n", today.Count, today.Total.Round(time.Second))
	fmt.Fprintf(w, "All time: %d pomodoros, %s\n\n", all.Count, all.Total.Round(time.Second))
	for _, d := range daily {
		fmt.Fprintf(w, "%s %3d %s\n", d.Date, d.Pomodoros, strings.Repeat("■", d.Pomodoros))
	}
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export completed pomodoros to CSV or JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		format = strings.ToLower(format)
		path, _ := cmd.Flags().GetString("output")
		if path == "" {
			path = fmt.Sprintf("pomodoro-export-%s.%s", time.Now().Format("2006-01-02"), format)
		}
		filter, err := historyFilter(cmd)
		if err != nil {
			return err
		}
		return withStore(cmd, func(ctx context.Context, st *store.Store) error {
			records, err := st.ListCompleted(ctx, filter)
			if err != nil {
				return err
			}
			if err := export.Write(format, records, path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d records to %s\n", len(records), path)
			return nil
		})
	},
}

func init() {
	historyCmd.Flags().Bool("all", false, "show the whole history")
	historyCmd.Flags().String("since", "", "show records ending on or after this date (YYYY-MM-DD)")
	statsCmd.Flags().Int("days", 7, "number of days in the breakdown")
	exportCmd.Flags().StringP("format", "f", "csv", "export format: "+strings.Join(export.Formats, ", "))
	exportCmd.Flags().StringP("output", "o", "", "output file (default pomodoro-export-<date>.<format>)")
	exportCmd.Flags().Bool("all", true, "export the whole history")
	exportCmd.Flags().String("since", "", "export records ending on or after this date (YYYY-MM-DD)")
}
