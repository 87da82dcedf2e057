package weather

import (
	"time"

	"github.com/i474232898/venue-context-aggregation/internal/domain"
)

// AggregateReadings combines multiple provider readings into a single WeatherSnapshot.
// Numeric fields are averaged; conditions are selected by majority (first seen if tied).
func AggregateReadings(readings []ProviderReading) domain.WeatherSnapshot {
	if len(readings) == 0 {
		return domain.WeatherSnapshot{
			Timestamp: time.Now().UTC(),
			Condition: domain.ConditionUnknown,
		}
	}

	var (
		sumTemp     float64
		sumHumidity float64
		sumWind     float64
		sumPressure float64
		sumPrecip   float64
	)

	conditionCounts := make(map[domain.Condition]int)
	conditionOrder := make([]domain.Condition, 0, len(readings))
	descriptions := make(map[domain.Condition]string)
	providers := make([]domain.ProviderContribution, 0, len(readings))
	var newestTS time.Time

	for _, r := range readings {
		sumTemp += r.TemperatureC
		sumHumidity += r.HumidityPct
		sumWind += r.WindSpeedMS
		sumPressure += r.PressureHpa
		sumPrecip += r.PrecipMm

		if conditionCounts[r.Condition] == 0 {
			conditionOrder = append(conditionOrder, r.Condition)
		}
		conditionCounts[r.Condition]++
		if descriptions[r.Condition] == "" {
			descriptions[r.Condition] = r.Description
		}

		if r.Timestamp.After(newestTS) {
			newestTS = r.Timestamp
		}

		providers = append(providers, domain.ProviderContribution{
			ProviderName: r.ProviderName,
			Timestamp:    r.Timestamp,
		})
	}

	n := float64(len(readings))

	// Pick majority condition.
	bestCond := domain.ConditionUnknown
	bestCount := 0
	for _, cond := range conditionOrder {
		if count := conditionCounts[cond]; count > bestCount {
			bestCount = count
			bestCond = cond
		}
	}

	if newestTS.IsZero() {
		newestTS = time.Now().UTC()
	}

	return domain.WeatherSnapshot{
		Timestamp:    newestTS.UTC(),
		Condition:    bestCond,
		Description:  descriptions[bestCond],
		TemperatureC: sumTemp / n,
		HumidityPct:  sumHumidity / n,
		WindSpeedMS:  sumWind / n,
		PressureHpa:  sumPressure / n,
		PrecipMM:     sumPrecip / n,
		Providers:    providers,
	}
}

// snapshotFromReading converts one forecast point without averaging.
func snapshotFromReading(r ProviderReading) domain.WeatherSnapshot {
	return domain.WeatherSnapshot{
		Timestamp:    r.Timestamp.UTC(),
		Condition:    r.Condition,
		Description:  r.Description,
		TemperatureC: r.TemperatureC,
		HumidityPct:  r.HumidityPct,
		WindSpeedMS:  r.WindSpeedMS,
		PressureHpa:  r.PressureHpa,
		PrecipMM:     r.PrecipMm,
		Providers: []domain.ProviderContribution{{
			ProviderName: r.ProviderName,
			Timestamp:    r.Timestamp.UTC(),
		}},
	}
}
