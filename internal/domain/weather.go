package domain

import "time"

// Condition represents a normalized high-level weather condition.
type Condition string

const (
	ConditionUnknown Condition = "unknown"
	ConditionClear   Condition = "clear"
	ConditionCloudy  Condition = "cloudy"
	ConditionRain    Condition = "rain"
	ConditionSnow    Condition = "snow"
	ConditionStorm   Condition = "thunderstorm"
	ConditionMist    Condition = "mist"
)

// WeatherSnapshot is the normalized, aggregated weather view at a point in time.
type WeatherSnapshot struct {
	Timestamp    time.Time `json:"timestamp"` // always UTC
	Condition    Condition `json:"condition"`
	Description  string    `json:"description,omitempty"`
	TemperatureC float64   `json:"temperatureC"`
	HumidityPct  float64   `json:"humidityPercent"`
	WindSpeedMS  float64   `json:"windSpeed"`
	PressureHpa  float64   `json:"pressureHpa,omitempty"`
	PrecipMM     float64   `json:"precipMm,omitempty"`

	// Providers contributing to this snapshot.
	Providers []ProviderContribution `json:"providers,omitempty"`
}

// Forecast is a time series of snapshots ordered by Timestamp ascending.
type Forecast []WeatherSnapshot

// ProviderContribution describes data coming from a single provider used in aggregation.
type ProviderContribution struct {
	ProviderName string    `json:"provider"`
	Timestamp    time.Time `json:"timestamp"`
}
