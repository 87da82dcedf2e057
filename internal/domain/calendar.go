package domain

import "time"

// CalendarEvent is a busy span on the user's calendar.
// Events missing either bound are malformed and ignored by free-time detection.
type CalendarEvent struct {
	Title string    `json:"title,omitempty"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Valid reports whether both bounds are present.
func (e CalendarEvent) Valid() bool {
	return !e.Start.IsZero() && !e.End.IsZero()
}

// FreeSlot is a contiguous span of calendar time containing no scheduled event.
type FreeSlot struct {
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	DurationMinutes int       `json:"durationMinutes"`
}
