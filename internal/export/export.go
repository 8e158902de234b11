// Package export writes the completed-pomodoro history to CSV or JSON files.
package export

import (
	"fmt"
	"strings"

	"github.com/tigawanna/pomodoro-panda/internal/store"
)

// Formats lists the accepted values for Write.
var Formats = []string{"csv", "json"}

// Write exports records to path in the named format.
func Write(format string, records []store.CompletedTask, path string) error {
	switch strings.ToLower(format) {
	case "csv":
		return ToCSV(records, path)
	case "json":
		return ToJSON(records, path)
	default:
		return fmt.Errorf("unknown export format %q (want one of %s)", format, strings.Join(Formats, ", "))
	}
}
