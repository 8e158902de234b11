// Package commands defines the pomodoro command line. Running it without a
// subcommand opens the interactive timer.
package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/tigawanna/pomodoro-panda/internal/config"
	"github.com/tigawanna/pomodoro-panda/internal/logging"
	"github.com/tigawanna/pomodoro-panda/internal/store"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// cfg is resolved once per invocation before any command runs.
var cfg config.Config

var rootCmd = &cobra.Command{
	Use:   "pomodoro",
	Short: "A terminal pomodoro timer with a task queue",
	Long: `pomodoro-panda runs pomodoro work sessions against a queue of tasks.
Every finished session moves one pomodoro of the current task into the
completed history.

Run without arguments to open the interactive timer.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	RunE:              runTUI,
}

// setup loads .env files, the config file and the environment, then applies
// command-line overrides.
func setup(cmd *cobra.Command, _ []string) error {
	config.LoadDotEnv()

	path, _ := cmd.Flags().GetString("config")
	loaded, err := config.Load(path)
	if err != nil {
		return err
	}
	cfg = loaded

	if db, _ := cmd.Flags().GetString("db"); db != "" {
		cfg.DBPath = db
	}
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		cfg.Debug = true
	}
	logging.SetDebug(cfg.Debug)

	// Plain commands only log when debugging; the TUI logs to a file.
	if cfg.Debug {
		logging.SetOutput(os.Stderr)
	} else {
		logging.SetOutput(io.Discard)
	}
	return nil
}

// withStore opens the configured database for the duration of fn.
func withStore(cmd *cobra.Command, fn func(ctx context.Context, st *store.Store) error) error {
	st, err := store.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database %s: %w", cfg.DBPath, err)
	}
	defer st.Close()
	return fn(cmd.Context(), st)
}

// SetVersion sets the version information
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "path to the database file")
	rootCmd.PersistentFlags().String("config", "", "path to config.yaml")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(moveCmd)
	rootCmd.AddCommand(repeatCmd)
	rootCmd.AddCommand(doneCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
