package weather

import (
	"fmt"
	"math"

	"github.com/i474232898/venue-context-aggregation/internal/domain"
)

// Context is a one-line description of the conditions for a suggestion message.
func Context(w *domain.WeatherSnapshot) string {
	if w == nil {
		return ""
	}
	t := math.Round(w.TemperatureC)
	switch {
	case w.Condition == domain.ConditionRain:
		return fmt.Sprintf("It's raining (%.0f°C) - perfect for cozy indoor activities!", t)
	case w.Condition == domain.ConditionClear && t > 20:
		return fmt.Sprintf("Beautiful sunny weather (%.0f°C) - great for outdoor experiences!", t)
	case t < 10:
		return fmt.Sprintf("It's quite cold (%.0f°C) - time for warm, comfortable places!", t)
	default:
		return fmt.Sprintf("Pleasant %.0f°C weather with %s.", t, w.Description)
	}
}

// Advice is a short tip matching the conditions.
func Advice(w *domain.WeatherSnapshot) string {
	switch {
	case w == nil:
		return ""
	case w.Condition == domain.ConditionRain:
		return "Bring an umbrella and enjoy indoor activities!"
	case w.TemperatureC > 25:
		return "Stay cool and hydrated - perfect for air-conditioned venues!"
	case w.Condition == domain.ConditionClear:
		return "Great weather for exploring outdoor spots!"
	default:
		return "Dress appropriately for the weather!"
	}
}
