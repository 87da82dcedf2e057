package calendar

import (
	"fmt"

	"github.com/i474232898/venue-context-aggregation/internal/domain"
)

// TimeContext describes a free slot in the slot's own location.
func TimeContext(slot *domain.FreeSlot) string {
	if slot == nil {
		return ""
	}
	msg := fmt.Sprintf("You have %d minutes free starting at %s.", slot.DurationMinutes, slot.Start.Format("15:04"))
	switch h := slot.Start.Hour(); {
	case h >= 11 && h <= 14:
		msg += " Perfect lunch time!"
	case h >= 15 && h <= 17:
		msg += " Great for an afternoon break!"
	case h >= 18:
		msg += " Evening relaxation time!"
	}
	return msg
}

// TimeAdvice suggests an activity size for the slot length.
func TimeAdvice(slot *domain.FreeSlot) string {
	switch {
	case slot == nil:
		return ""
	case slot.DurationMinutes < 90:
		return "Perfect time for a quick coffee or snack!"
	case slot.DurationMinutes > 180:
		return "You have plenty of time - consider trying something new!"
	default:
		return "Great duration for a relaxing activity!"
	}
}
