// Package calendar finds free windows in a day of calendar events.
package calendar

import (
	"sort"
	"time"

	"github.com/i474232898/venue-context-aggregation/internal/domain"
)

// DefaultMinGap is the shortest window worth suggesting anything for.
const DefaultMinGap = 60 * time.Minute

// EndOfDay returns 23:59:59.999 on t's calendar day in t's location.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), t.Location())
}

// StartOfDay returns midnight on t's calendar day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Detect returns the gaps between events within [now, endOfDay) lasting at
// least minGap. Events missing a bound are ignored; overlapping events are
// absorbed. Slots come back sorted and non-overlapping.
func Detect(events []domain.CalendarEvent, now, endOfDay time.Time, minGap time.Duration) []domain.FreeSlot {
	busy := make([]domain.CalendarEvent, 0, len(events))
	for _, e := range events {
		if e.Valid() {
			busy = append(busy, e)
		}
	}
	sort.SliceStable(busy, func(i, j int) bool {
		return busy[i].Start.Before(busy[j].Start)
	})

	slots := make([]domain.FreeSlot, 0)
	emit := func(start, end time.Time) {
		if end.After(endOfDay) {
			end = endOfDay
		}
		if !start.Before(end) {
			return
		}
		d := end.Sub(start)
		if d < minGap {
			return
		}
		slots = append(slots, domain.FreeSlot{
			Start:           start,
			End:             end,
			DurationMinutes: int(d / time.Minute),
		})
	}

	cursor := now
	for _, e := range busy {
		if cursor.Before(e.Start) {
			emit(cursor, e.Start)
		}
		if e.End.After(cursor) {
			cursor = e.End
		}
	}
	emit(cursor, endOfDay)

	return slots
}
