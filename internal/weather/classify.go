package weather

import (
	"strings"
	"time"

	"github.com/i474232898/venue-context-aggregation/internal/common"
	"github.com/i474232898/venue-context-aggregation/internal/domain"
)

// Classification is the venue categories and search query suited to the
// weather during a free slot.
type Classification struct {
	Categories []string `json:"categories"`
	Query      string   `json:"query"`
}

const (
	quickSlot   = 90 * time.Minute
	leisureSlot = 180 * time.Minute
)

// Classify maps a weather snapshot and free slot onto candidate venue
// categories. A nil snapshot yields an empty classification; a nil slot skips
// the duration adjustment.
func Classify(w *domain.WeatherSnapshot, slot *domain.FreeSlot) Classification {
	if w == nil {
		return Classification{Categories: []string{}}
	}

	var out Classification
	switch w.Condition {
	case domain.ConditionRain, domain.ConditionStorm:
		out.Categories = []string{"museum", "cafe", "mall", "library", "bookstore"}
		out.Query = "indoor activities"
	case domain.ConditionClear, domain.ConditionCloudy:
		switch t := w.TemperatureC; {
		case t > 25:
			out.Categories = []string{"air-conditioned cafe", "indoor restaurant", "shopping center"}
			out.Query = "cool indoor places"
		case t > 15:
			out.Categories = []string{"park", "outdoor restaurant", "rooftop bar", "trail"}
			out.Query = "outdoor activities"
		default:
			out.Categories = []string{"warm cafe", "cozy restaurant", "indoor market"}
			out.Query = "warm indoor places"
		}
	default:
		out.Categories = []string{}
	}

	if slot == nil {
		return out
	}

	d := time.Duration(slot.DurationMinutes) * time.Minute
	switch {
	case d < quickSlot:
		quick := make([]string, 0, len(out.Categories))
		for _, c := range out.Categories {
			if common.HasAny(strings.ToLower(c), "cafe", "coffee", "quick") {
				quick = append(quick, c)
			}
		}
		out.Categories = quick
	case d > leisureSlot:
		out.Categories = append(out.Categories, "shopping center", "entertainment complex", "spa")
	}
	return out
}
