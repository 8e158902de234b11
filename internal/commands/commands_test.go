package commands

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/tigawanna/pomodoro-panda/internal/config"
	"github.com/tigawanna/pomodoro-panda/internal/store"
)

// resetFlags restores every flag in the tree to its default, since the
// command tree is shared across test runs.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

type harness struct {
	dir    string
	dbPath string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("HOME", dir)
	t.Setenv(config.EnvDBPath, "")
	t.Setenv(config.EnvLogFile, "")
	t.Setenv(config.EnvDebug, "")
	return &harness{dir: dir, dbPath: filepath.Join(dir, "test.db")}
}

func (h *harness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--db", h.dbPath}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func (h *harness) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := h.run(t, args...)
	if err != nil {
		t.Fatalf("%v: %v\n%s", args, err, out)
	}
	return out
}

// tasks opens the database directly to inspect the queue.
func (h *harness) tasks(t *testing.T) []store.Task {
	t.Helper()
	st, err := store.New(h.dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	tasks, err := st.ListActive(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return tasks
}

func descriptions(tasks []store.Task) string {
	var out []string
	for _, t := range tasks {
		out = append(out, t.Description)
	}
	return strings.Join(out, ",")
}

// ============================================================
// Tasks
// ============================================================

func TestAddAndList(t *testing.T) {
	h := newHarness(t)
	out := h.mustRun(t, "add", "Work", "write", "the", "report", "-p", "2")
	if !strings.Contains(out, "write the report ×2") {
		t.Fatalf("unexpected add output %q", out)
	}
	h.mustRun(t, "add", "Home", "laundry")

	out = h.mustRun(t, "ls")
	if !strings.Contains(out, "write the report") || !strings.Contains(out, "laundry") {
		t.Fatalf("list missing tasks:\n%s", out)
	}
	if got := descriptions(h.tasks(t)); got != "laundry,write the report" {
		t.Fatalf("new tasks should go to the top, got %s", got)
	}
}

func TestAddToBottomSetting(t *testing.T) {
	h := newHarness(t)
	h.mustRun(t, "settings", "--bottom=true")
	h.mustRun(t, "add", "Work", "first")
	h.mustRun(t, "add", "Work", "second")
	if got := descriptions(h.tasks(t)); got != "first,second" {
		t.Fatalf("got %s", got)
	}
}

func TestAddRejectsZeroPomodoros(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, "add", "Work", "nothing", "-p", "0")
	if !errors.Is(err, store.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestListEmpty(t *testing.T) {
	h := newHarness(t)
	if out := h.mustRun(t, "ls"); !strings.Contains(out, "No tasks queued") {
		t.Fatalf("got %q", out)
	}
}

func TestDoneDecrementsThenRemoves(t *testing.T) {
	h := newHarness(t)
	h.mustRun(t, "add", "Work", "review", "-p", "2")
	id := h.tasks(t)[0].ID

	out := h.mustRun(t, "done", id[:6])
	if !strings.Contains(out, "1 pomodoros left") {
		t.Fatalf("unexpected output %q", out)
	}
	if tasks := h.tasks(t); len(tasks) != 1 || tasks[0].Pomodoros != 1 {
		t.Fatalf("expected one pomodoro left, got %+v", tasks)
	}

	out = h.mustRun(t, "done", id)
	if !strings.Contains(out, "removed from the queue") {
		t.Fatalf("unexpected output %q", out)
	}
	if len(h.tasks(t)) != 0 {
		t.Fatal("task should be gone")
	}

	out = h.mustRun(t, "history", "--all")
	if strings.Count(out, "review") != 2 || !strings.Contains(out, "2 pomodoros") {
		t.Fatalf("history should list both records:\n%s", out)
	}
}

func TestDoneUnknownTask(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, "done", "nope")
	if !errors.Is(err, store.ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestEditMoveRemove(t *testing.T) {
	h := newHarness(t)
	h.mustRun(t, "settings", "--bottom=true")
	for _, d := range []string{"a", "b", "c"} {
		h.mustRun(t, "add", "Work", d)
	}
	tasks := h.tasks(t)

	h.mustRun(t, "edit", tasks[1].ID, "-d", "bee", "-p", "3")
	tasks = h.tasks(t)
	if tasks[1].Description != "bee" || tasks[1].Pomodoros != 3 || tasks[1].Category != "Work" {
		t.Fatalf("edit not applied in place: %+v", tasks[1])
	}

	h.mustRun(t, "mv", tasks[2].ID, "1")
	if got := descriptions(h.tasks(t)); got != "c,a,bee" {
		t.Fatalf("after move got %s", got)
	}
	h.mustRun(t, "mv", tasks[2].ID, "99")
	if got := descriptions(h.tasks(t)); got != "a,bee,c" {
		t.Fatalf("position past the end should clamp, got %s", got)
	}

	h.mustRun(t, "rm", tasks[0].ID)
	tasks = h.tasks(t)
	if got := descriptions(tasks); got != "bee,c" {
		t.Fatalf("after rm got %s", got)
	}
	for i, task := range tasks {
		if task.Order != i {
			t.Fatalf("orders not compacted: %+v", tasks)
		}
	}
}

func TestMoveInvalidPosition(t *testing.T) {
	h := newHarness(t)
	if _, err := h.run(t, "mv", "x", "0"); err == nil {
		t.Fatal("position 0 should be rejected")
	}
}

func TestRepeatAddsToExisting(t *testing.T) {
	h := newHarness(t)
	h.mustRun(t, "add", "Work", "standup")
	h.mustRun(t, "repeat", "Work", "standup", "-p", "2")
	tasks := h.tasks(t)
	if len(tasks) != 1 || tasks[0].Pomodoros != 3 {
		t.Fatalf("expected a single task with 3 pomodoros, got %+v", tasks)
	}
}

func TestFindTaskPrefix(t *testing.T) {
	st, err := store.NewMemory()
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	ctx := context.Background()
	for _, id := range []string{"abc1", "abc2", "xyz"} {
		if _, err := st.AddActive(ctx, store.Task{ID: id, Category: "c", Description: id, Pomodoros: 1, Order: store.OrderUnset}); err != nil {
			t.Fatal(err)
		}
	}

	if task, err := findTask(ctx, st, "x"); err != nil || task.ID != "xyz" {
		t.Fatalf("prefix lookup = %v, %v", task.ID, err)
	}
	if task, err := findTask(ctx, st, "abc1"); err != nil || task.ID != "abc1" {
		t.Fatalf("exact lookup = %v, %v", task.ID, err)
	}
	if _, err := findTask(ctx, st, "abc"); !errors.Is(err, errAmbiguousID) {
		t.Fatalf("expected ambiguity, got %v", err)
	}
	if _, err := findTask(ctx, st, ""); !errors.Is(err, store.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestShortID(t *testing.T) {
	if got := shortID("0123456789"); got != "01234567" {
		t.Fatalf("got %q", got)
	}
	if got := shortID("abc"); got != "abc" {
		t.Fatalf("got %q", got)
	}
}

// ============================================================
// History, stats & export
// ============================================================

func TestHistoryEmptyAndBadSince(t *testing.T) {
	h := newHarness(t)
	if out := h.mustRun(t, "history"); !strings.Contains(out, "Nothing completed") {
		t.Fatalf("got %q", out)
	}
	if _, err := h.run(t, "history", "--since", "yesterday"); err == nil {
		t.Fatal("invalid --since should fail")
	}
}

func TestStats(t *testing.T) {
	h := newHarness(t)
	h.mustRun(t, "add", "Work", "focus")
	h.mustRun(t, "done", h.tasks(t)[0].ID)

	out := h.mustRun(t, "stats", "--days", "3")
	if !strings.Contains(out, "Today:    1 pomodoros, 25m0s") || !strings.Contains(out, "All time: 1 pomodoros") {
		t.Fatalf("unexpected stats:\n%s", out)
	}
	if strings.Count(out, "■") != 1 {
		t.Fatalf("expected one bar segment:\n%s", out)
	}
	if _, err := h.run(t, "stats", "--days", "0"); err == nil {
		t.Fatal("--days 0 should fail")
	}
}

func TestExport(t *testing.T) {
	h := newHarness(t)
	h.mustRun(t, "add", "Work", "export me")
	h.mustRun(t, "done", h.tasks(t)[0].ID)

	path := filepath.Join(h.dir, "out.json")
	out := h.mustRun(t, "export", "-f", "JSON", "-o", path)
	if !strings.Contains(out, "Exported 1 records") {
		t.Fatalf("unexpected output %q", out)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "export me") {
		t.Fatal("export missing record")
	}

	if _, err := h.run(t, "export", "-f", "xml", "-o", filepath.Join(h.dir, "out.xml")); err == nil {
		t.Fatal("unknown format should fail")
	}
}

// ============================================================
// Settings, config & version
// ============================================================

func TestSettingsShowAndChange(t *testing.T) {
	h := newHarness(t)
	out := h.mustRun(t, "settings")
	if !strings.Contains(out, "25m0s") || !strings.Contains(out, "top") {
		t.Fatalf("unexpected defaults:\n%s", out)
	}

	out = h.mustRun(t, "settings", "--work", "50m", "--sessions", "2")
	if !strings.Contains(out, "50m0s") {
		t.Fatalf("work not updated:\n%s", out)
	}
	out = h.mustRun(t, "settings")
	if !strings.Contains(out, "50m0s") || !strings.Contains(out, "sessions until long break    2") {
		t.Fatalf("settings not persisted:\n%s", out)
	}

	if _, err := h.run(t, "settings", "--break", "0s"); err == nil {
		t.Fatal("zero break should be rejected")
	}
}

func TestConfigShowInitPath(t *testing.T) {
	h := newHarness(t)
	out := h.mustRun(t, "config")
	if !strings.Contains(out, "db_path: "+h.dbPath) {
		t.Fatalf("config should reflect --db:\n%s", out)
	}

	path := filepath.Join(h.dir, "conf", "config.yaml")
	h.mustRun(t, "--config", path, "config", "init")
	if _, err := os.Stat(path); err != nil {
		t.Fatal(err)
	}
	if _, err := h.run(t, "--config", path, "config", "init"); err == nil {
		t.Fatal("init should refuse to overwrite")
	}
	h.mustRun(t, "--config", path, "config", "init", "--force")

	if out := h.mustRun(t, "--config", path, "config", "path"); strings.TrimSpace(out) != path {
		t.Fatalf("config path = %q", out)
	}
}

func TestVersion(t *testing.T) {
	h := newHarness(t)
	SetVersion("1.2.3", "abc", "today")
	t.Cleanup(func() { SetVersion("dev", "none", "unknown") })
	if out := h.mustRun(t, "version"); !strings.Contains(out, "1.2.3") {
		t.Fatalf("got %q", out)
	}
}
