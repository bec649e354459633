package model

import (
	"fmt"
	"time"
)

// Window is a half-open time interval: Start is inclusive, End is exclusive.
// All window arithmetic in gridwatch follows this convention; a record with
// timestamp equal to End belongs to the next window.
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow creates a Window. Start must be strictly before End.
func NewWindow(start, end time.Time) (Window, error) {
	if !start.Before(end) {
		return Window{}, fmt.Errorf("window start %s must be before end %s", start, end)
	}
	return Window{Start: start, End: end}, nil
}

// Contains reports whether t falls inside the window ([Start, End)).
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Overlaps reports whether the two windows share any instant.
func (w Window) Overlaps(other Window) bool {
	return w.Start.Before(other.End) && other.Start.Before(w.End)
}

// Intersect clamps the window to other. The boolean result is false when the
// windows do not overlap at all.
func (w Window) Intersect(other Window) (Window, bool) {
	if !w.Overlaps(other) {
		return Window{}, false
	}
	out := w
	if other.Start.After(out.Start) {
		out.Start = other.Start
	}
	if other.End.Before(out.End) {
		out.End = other.End
	}
	return out, true
}

// Duration returns the length of the window.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// IsZero reports whether the window is the zero value.
func (w Window) IsZero() bool {
	return w.Start.IsZero() && w.End.IsZero()
}

// String renders the window in a compact log-friendly form.
func (w Window) String() string {
	return fmt.Sprintf("[%s, %s)", w.Start.Format("2006-01-02 15:04"), w.End.Format("2006-01-02 15:04"))
}
