package weather

import (
	"context"
	"time"

	"github.com/i474232898/venue-context-aggregation/internal/domain"
)

// ProviderReading represents a single provider's normalized reading
// that can be aggregated into a WeatherSnapshot.
type ProviderReading struct {
	ProviderName string
	Timestamp    time.Time

	TemperatureC float64
	HumidityPct  float64
	WindSpeedMS  float64
	PressureHpa  float64
	PrecipMm     float64
	Condition    domain.Condition
	Description  string
}

// Provider abstracts a current-conditions source (OpenWeatherMap, WeatherAPI, Open-Meteo).
type Provider interface {
	Name() string
	Fetch(ctx context.Context, loc domain.Location) (ProviderReading, error)
}

// ForecastProvider is implemented by providers that also return a time series.
// Readings are ordered by Timestamp ascending.
type ForecastProvider interface {
	FetchForecast(ctx context.Context, loc domain.Location) ([]ProviderReading, error)
}
