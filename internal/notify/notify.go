// Package notify tells the user that a timer phase finished.
package notify

import (
	"fmt"
	"io"

	"github.com/tigawanna/pomodoro-panda/internal/timer"
)

// Bell rings the terminal bell. It is safe to use while the TUI owns the
// screen since BEL does not move the cursor.
type Bell struct {
	w     io.Writer
	quiet bool
}

// NewBell returns a Bell writing to w. A quiet bell does nothing.
func NewBell(w io.Writer, quiet bool) *Bell {
	return &Bell{w: w, quiet: quiet}
}

func (b *Bell) NotifyPhaseComplete(phase timer.Phase) error {
	if b.quiet || b.w == nil {
		return nil
	}
	if _, err := io.WriteString(b.w, "\a"); err != nil {
		return fmt.Errorf("ring bell for %s: %w", phase, err)
	}
	return nil
}
