package weather

import (
	"time"

	"github.com/i474232898/venue-context-aggregation/internal/domain"
)

// NearestPoint returns the forecast entry closest to t. Ties go to the
// earliest entry in the series.
func NearestPoint(series domain.Forecast, t time.Time) (domain.WeatherSnapshot, bool) {
	if len(series) == 0 {
		return domain.WeatherSnapshot{}, false
	}
	best := series[0]
	bestDiff := absDuration(best.Timestamp.Sub(t))
	for _, p := range series[1:] {
		if d := absDuration(p.Timestamp.Sub(t)); d < bestDiff {
			best, bestDiff = p, d
		}
	}
	return best, true
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
