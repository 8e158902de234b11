package export

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/tigawanna/pomodoro-panda/internal/store"
)

type jsonExport struct {
	ExportedAt string       `json:"exported_at"`
	Count      int          `json:"count"`
	Total      string       `json:"total"`
	Records    []jsonRecord `json:"records"`
}

type jsonRecord struct {
	ID          string `json:"id"`
	Category    string `json:"category"`
	Description string `json:"description"`
	EndTime     string `json:"end_time"`
	EndTimeMs   int64  `json:"end_time_ms"`
	DurationMs  int64  `json:"duration_ms"`
	Duration    string `json:"duration"`
	Pomodoros   int    `json:"pomodoros"`
	SourceID    string `json:"source_id,omitempty"`
}

func ToJSON(records []store.CompletedTask, path string) error {
	export := jsonExport{
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Count:      len(records),
	}

	var total time.Duration
	for _, r := range records {
		total += r.Duration
		export.Records = append(export.Records, jsonRecord{
			ID:          r.ID,
			Category:    r.Category,
			Description: r.Description,
			EndTime:     r.EndTime.Local().Format(time.RFC3339),
			EndTimeMs:   r.EndTime.UnixMilli(),
			DurationMs:  r.Duration.Milliseconds(),
			Duration:    formatDuration(r.Duration),
			Pomodoros:   r.Pomodoros,
			SourceID:    r.SourceID,
		})
	}
	export.Total = formatDuration(total)

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write json file: %w", err)
	}
	return nil
}
