package providers

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/i474232898/venue-context-aggregation/internal/domain"
	"github.com/i474232898/venue-context-aggregation/internal/weather"
)

const DefaultOpenWeatherURL = "https://api.openweathermap.org"

// OpenWeatherProvider implements weather.Provider and weather.ForecastProvider
// for OpenWeatherMap.
type OpenWeatherProvider struct {
	name    string
	apiKey  string
	baseURL string
	ep      *endpoint
}

func NewOpenWeatherProvider(httpCfg HTTPClientConfig, apiKey, baseURL string) *OpenWeatherProvider {
	if baseURL == "" {
		baseURL = DefaultOpenWeatherURL
	}
	return &OpenWeatherProvider{
		name:    "openweathermap",
		apiKey:  strings.TrimSpace(apiKey),
		baseURL: strings.TrimRight(baseURL, "/"),
		ep:      newEndpoint("openweathermap", httpCfg),
	}
}

func (p *OpenWeatherProvider) Name() string {
	return p.name
}

type owmCondition struct {
	Main        string `json:"main"`
	Description string `json:"description"`
}

type owmReading struct {
	Dt   int64 `json:"dt"`
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity float64 `json:"humidity"`
		Pressure float64 `json:"pressure"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Rain struct {
		OneH   float64 `json:"1h"`
		ThreeH float64 `json:"3h"`
	} `json:"rain"`
	Weather []owmCondition `json:"weather"`
}

func (r owmReading) reading(name string) weather.ProviderReading {
	ts := time.Unix(r.Dt, 0).UTC()
	if r.Dt == 0 {
		ts = time.Now().UTC()
	}

	precip := r.Rain.OneH
	if precip == 0 {
		precip = r.Rain.ThreeH
	}

	out := weather.ProviderReading{
		ProviderName: name,
		Timestamp:    ts,
		TemperatureC: r.Main.Temp,
		HumidityPct:  r.Main.Humidity,
		WindSpeedMS:  r.Wind.Speed,
		PressureHpa:  r.Main.Pressure,
		PrecipMm:     precip,
		Condition:    domain.ConditionUnknown,
	}
	if len(r.Weather) > 0 {
		out.Condition = mapOpenWeatherCondition(r.Weather[0].Main)
		out.Description = r.Weather[0].Description
	}
	return out
}

func (p *OpenWeatherProvider) get(ctx context.Context, path string, loc domain.Location, out any) error {
	if p.apiKey == "" {
		return missingCredential(p.name)
	}
	values := url.Values{}
	values.Set("lat", formatCoord(loc.Lat))
	values.Set("lon", formatCoord(loc.Lng))
	values.Set("appid", p.apiKey)
	values.Set("units", "metric")

	return p.ep.getJSON(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path+"?"+values.Encode(), nil)
	}, out)
}

func (p *OpenWeatherProvider) Fetch(ctx context.Context, loc domain.Location) (weather.ProviderReading, error) {
	var payload owmReading
	if err := p.get(ctx, "/data/2.5/weather", loc, &payload); err != nil {
		return weather.ProviderReading{}, err
	}
	return payload.reading(p.name), nil
}

// FetchForecast returns the 3-hourly five day forecast.
func (p *OpenWeatherProvider) FetchForecast(ctx context.Context, loc domain.Location) ([]weather.ProviderReading, error) {
	var payload struct {
		List []owmReading `json:"list"`
	}
	if err := p.get(ctx, "/data/2.5/forecast", loc, &payload); err != nil {
		return nil, err
	}
	out := make([]weather.ProviderReading, 0, len(payload.List))
	for _, r := range payload.List {
		out = append(out, r.reading(p.name))
	}
	return out, nil
}

func mapOpenWeatherCondition(main string) domain.Condition {
	switch main {
	case "Clear":
		return domain.ConditionClear
	case "Clouds":
		return domain.ConditionCloudy
	case "Rain", "Drizzle":
		return domain.ConditionRain
	case "Snow":
		return domain.ConditionSnow
	case "Thunderstorm":
		return domain.ConditionStorm
	case "Mist", "Fog", "Haze", "Smoke", "Dust":
		return domain.ConditionMist
	default:
		return domain.ConditionUnknown
	}
}
