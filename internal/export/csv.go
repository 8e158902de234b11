package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/tigawanna/pomodoro-panda/internal/store"
)

var csvHeader = []string{"ID", "Category", "Description", "Ended", "Duration (ms)", "Duration", "Pomodoros", "Source Task"}

func ToCSV(records []store.CompletedTask, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write(csvHeader); err != nil {
		return err
	}

	for _, r := range records {
		row := []string{
			r.ID,
			r.Category,
			r.Description,
			r.EndTime.Local().Format(time.RFC3339),
			strconv.FormatInt(r.Duration.Milliseconds(), 10),
			formatDuration(r.Duration),
			strconv.Itoa(r.Pomodoros),
			r.SourceID,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	return w.Error()
}

func formatDuration(d time.Duration) string {
	secs := int64(d / time.Second)
	h := secs / 3600
	m := (secs % 3600) / 60
	s := secs % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
