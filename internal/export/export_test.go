package export

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tigawanna/pomodoro-panda/internal/store"
)

func sampleData() []store.CompletedTask {
	end := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return []store.CompletedTask{
		{
			ID:          "completed-a-1",
			SourceID:    "a",
			Category:    "Work",
			Description: "Write spec",
			EndTime:     end,
			Duration:    25 * time.Minute,
			Completed:   true,
			Pomodoros:   1,
		},
		{
			ID:          "completed-b-1",
			Category:    "Home",
			Description: "Laundry",
			EndTime:     end.Add(-time.Hour),
			Duration:    90*time.Minute + time.Second,
			Completed:   true,
			Pomodoros:   1,
		},
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("invalid csv: %v", err)
	}
	return records
}

func readJSON(t *testing.T, path string) jsonExport {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var result jsonExport
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	return result
}

// ============================================================
// CSV
// ============================================================

func TestToCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.csv")
	if err := ToCSV(sampleData(), path); err != nil {
		t.Fatalf("ToCSV: %v", err)
	}

	records := readCSV(t, path)
	if len(records) != 3 {
		t.Fatalf("expected 3 rows (1 header + 2 data), got %d", len(records))
	}
	for i, h := range csvHeader {
		if records[0][i] != h {
			t.Fatalf("header[%d] = %q, want %q", i, records[0][i], h)
		}
	}

	row := records[1]
	if row[0] != "completed-a-1" || row[1] != "Work" || row[2] != "Write spec" {
		t.Fatalf("unexpected row %v", row)
	}
	if row[4] != "1500000" {
		t.Fatalf("Duration (ms) = %q, want 1500000", row[4])
	}
	if row[5] != "00:25:00" {
		t.Fatalf("Duration = %q, want 00:25:00", row[5])
	}
	if row[7] != "a" {
		t.Fatalf("Source Task = %q, want a", row[7])
	}
	if records[2][5] != "01:30:01" {
		t.Fatalf("Duration = %q, want 01:30:01", records[2][5])
	}
}

func TestToCSVEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	if err := ToCSV(nil, path); err != nil {
		t.Fatal(err)
	}
	if records := readCSV(t, path); len(records) != 1 {
		t.Fatalf("expected 1 row (header only), got %d", len(records))
	}
}

func TestToCSVBadPath(t *testing.T) {
	if err := ToCSV(nil, "/nonexistent/dir/file.csv"); err == nil {
		t.Fatal("expected error for bad path")
	}
}

func TestToCSVSpecialCharacters(t *testing.T) {
	recs := sampleData()[:1]
	recs[0].Description = `notes with "quotes" and, commas`
	path := filepath.Join(t.TempDir(), "special.csv")
	if err := ToCSV(recs, path); err != nil {
		t.Fatal(err)
	}
	records := readCSV(t, path)
	if records[1][2] != `notes with "quotes" and, commas` {
		t.Fatalf("description mangled: %q", records[1][2])
	}
}

// ============================================================
// JSON
// ============================================================

func TestToJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.json")
	if err := ToJSON(sampleData(), path); err != nil {
		t.Fatalf("ToJSON: %v", err)
	}

	result := readJSON(t, path)
	if result.Count != 2 || len(result.Records) != 2 {
		t.Fatalf("count = %d, records = %d, want 2", result.Count, len(result.Records))
	}
	if _, err := time.Parse(time.RFC3339, result.ExportedAt); err != nil {
		t.Fatalf("exported_at is not valid RFC3339: %q", result.ExportedAt)
	}
	if result.Total != "01:55:01" {
		t.Fatalf("total = %q, want 01:55:01", result.Total)
	}

	r := result.Records[0]
	if r.ID != "completed-a-1" || r.DurationMs != 1500000 || r.Pomodoros != 1 {
		t.Fatalf("unexpected record %+v", r)
	}
	if r.EndTimeMs != sampleData()[0].EndTime.UnixMilli() {
		t.Fatalf("end_time_ms = %d", r.EndTimeMs)
	}
	if _, err := time.Parse(time.RFC3339, r.EndTime); err != nil {
		t.Fatalf("end_time is not valid RFC3339: %q", r.EndTime)
	}
	if result.Records[1].SourceID != "" {
		t.Fatal("missing source id should be omitted")
	}
}

func TestToJSONEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json")
	if err := ToJSON(nil, path); err != nil {
		t.Fatal(err)
	}
	result := readJSON(t, path)
	if result.Count != 0 {
		t.Fatalf("count = %d, want 0", result.Count)
	}
	if result.Records != nil {
		t.Fatal("records should be null for empty export")
	}
}

func TestToJSONBadPath(t *testing.T) {
	if err := ToJSON(nil, "/nonexistent/dir/file.json"); err == nil {
		t.Fatal("expected error for bad path")
	}
}

func TestToJSONPrettyPrinted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pretty.json")
	ToJSON(nil, path)

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "\n  ") {
		t.Fatal("JSON should be pretty-printed")
	}
}

// ============================================================
// Write
// ============================================================

func TestWriteDispatchesByFormat(t *testing.T) {
	dir := t.TempDir()
	if err := Write("CSV", sampleData(), filepath.Join(dir, "a.csv")); err != nil {
		t.Fatal(err)
	}
	if err := Write("json", sampleData(), filepath.Join(dir, "a.json")); err != nil {
		t.Fatal(err)
	}
	if err := Write("xml", sampleData(), filepath.Join(dir, "a.xml")); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

// ============================================================
// formatDuration (internal helper)
// ============================================================

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "00:00:00"},
		{time.Second, "00:00:01"},
		{999 * time.Millisecond, "00:00:00"},
		{time.Minute, "00:01:00"},
		{time.Hour, "01:00:00"},
		{time.Hour + time.Minute + time.Second, "01:01:01"},
		{24 * time.Hour, "24:00:00"},
	}

	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
