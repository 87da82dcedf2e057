package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/i474232898/venue-context-aggregation/internal/domain"
	"github.com/i474232898/venue-context-aggregation/internal/weather"
)

const DefaultOpenMeteoURL = "https://api.open-meteo.com"

// OpenMeteoProvider needs no credential and is always enabled.
type OpenMeteoProvider struct {
	name    string
	baseURL string
	ep      *endpoint
}

func NewOpenMeteoProvider(httpCfg HTTPClientConfig, baseURL string) *OpenMeteoProvider {
	if baseURL == "" {
		baseURL = DefaultOpenMeteoURL
	}
	return &OpenMeteoProvider{
		name:    "openmeteo",
		baseURL: strings.TrimRight(baseURL, "/"),
		ep:      newEndpoint("openmeteo", httpCfg),
	}
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

func (p *OpenMeteoProvider) get(ctx context.Context, loc domain.Location, extra url.Values, out any) error {
	values := url.Values{}
	values.Set("latitude", formatCoord(loc.Lat))
	values.Set("longitude", formatCoord(loc.Lng))
	values.Set("timezone", "UTC")
	for k, v := range extra {
		values[k] = v
	}
	return p.ep.getJSON(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/v1/forecast?"+values.Encode(), nil)
	}, out)
}

func (p *OpenMeteoProvider) Fetch(ctx context.Context, loc domain.Location) (weather.ProviderReading, error) {
	var payload struct {
		CurrentWeather struct {
			Temperature float64 `json:"temperature"`
			WindSpeed   float64 `json:"windspeed"`
			Time        string  `json:"time"`
			WeatherCode int     `json:"weathercode"`
		} `json:"current_weather"`
	}
	if err := p.get(ctx, loc, url.Values{"current_weather": {"true"}, "windspeed_unit": {"ms"}}, &payload); err != nil {
		return weather.ProviderReading{}, err
	}

	ts, err := parseOpenMeteoTime(payload.CurrentWeather.Time)
	if err != nil {
		ts = time.Now().UTC()
	}

	cond := mapOpenMeteoCondition(payload.CurrentWeather.WeatherCode)
	return weather.ProviderReading{
		ProviderName: p.name,
		Timestamp:    ts,
		TemperatureC: payload.CurrentWeather.Temperature,
		// current_weather carries no humidity or pressure.
		WindSpeedMS: payload.CurrentWeather.WindSpeed,
		Condition:   cond,
		Description: string(cond),
	}, nil
}

// FetchForecast returns the hourly series.
func (p *OpenMeteoProvider) FetchForecast(ctx context.Context, loc domain.Location) ([]weather.ProviderReading, error) {
	var payload struct {
		Hourly struct {
			Time        []string  `json:"time"`
			Temperature []float64 `json:"temperature_2m"`
			Humidity    []float64 `json:"relative_humidity_2m"`
			WindSpeed   []float64 `json:"wind_speed_10m"`
			Precip      []float64 `json:"precipitation"`
			WeatherCode []int     `json:"weather_code"`
		} `json:"hourly"`
	}
	extra := url.Values{
		"hourly":         {"temperature_2m,relative_humidity_2m,wind_speed_10m,precipitation,weather_code"},
		"windspeed_unit": {"ms"},
		"forecast_days":  {"2"},
	}
	if err := p.get(ctx, loc, extra, &payload); err != nil {
		return nil, err
	}

	h := payload.Hourly
	at := func(s []float64, i int) float64 {
		if i < len(s) {
			return s[i]
		}
		return 0
	}
	out := make([]weather.ProviderReading, 0, len(h.Time))
	for i, raw := range h.Time {
		ts, err := parseOpenMeteoTime(raw)
		if err != nil {
			return nil, fmt.Errorf("openmeteo: %w: bad time %q", domain.ErrUpstream, raw)
		}
		cond := domain.ConditionUnknown
		if i < len(h.WeatherCode) {
			cond = mapOpenMeteoCondition(h.WeatherCode[i])
		}
		out = append(out, weather.ProviderReading{
			ProviderName: p.name,
			Timestamp:    ts,
			TemperatureC: at(h.Temperature, i),
			HumidityPct:  at(h.Humidity, i),
			WindSpeedMS:  at(h.WindSpeed, i),
			PrecipMm:     at(h.Precip, i),
			Condition:    cond,
			Description:  string(cond),
		})
	}
	return out, nil
}

// parseOpenMeteoTime reads the ISO8601 minute form the API returns in UTC.
func parseOpenMeteoTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.ParseInLocation("2006-01-02T15:04", s, time.UTC)
}

func mapOpenMeteoCondition(code int) domain.Condition {
	switch {
	case code == 0:
		return domain.ConditionClear
	case code >= 1 && code <= 3:
		return domain.ConditionCloudy
	case code == 45 || code == 48:
		return domain.ConditionMist
	case (code >= 51 && code <= 67) || (code >= 80 && code <= 82):
		return domain.ConditionRain
	case (code >= 71 && code <= 77) || code == 85 || code == 86:
		return domain.ConditionSnow
	case code >= 95:
		return domain.ConditionStorm
	default:
		return domain.ConditionUnknown
	}
}
