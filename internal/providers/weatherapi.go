package providers

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/i474232898/venue-context-aggregation/internal/domain"
	"github.com/i474232898/venue-context-aggregation/internal/weather"
)

const DefaultWeatherAPIURL = "https://api.weatherapi.com"

// WeatherAPIProvider implements weather.Provider for WeatherAPI.com.
type WeatherAPIProvider struct {
	name    string
	apiKey  string
	baseURL string
	ep      *endpoint
}

func NewWeatherAPIProvider(httpCfg HTTPClientConfig, apiKey, baseURL string) *WeatherAPIProvider {
	if baseURL == "" {
		baseURL = DefaultWeatherAPIURL
	}
	return &WeatherAPIProvider{
		name:    "weatherapi",
		apiKey:  strings.TrimSpace(apiKey),
		baseURL: strings.TrimRight(baseURL, "/"),
		ep:      newEndpoint("weatherapi", httpCfg),
	}
}

func (p *WeatherAPIProvider) Name() string {
	return p.name
}

func (p *WeatherAPIProvider) Fetch(ctx context.Context, loc domain.Location) (weather.ProviderReading, error) {
	if p.apiKey == "" {
		return weather.ProviderReading{}, missingCredential(p.name)
	}

	values := url.Values{}
	values.Set("key", p.apiKey)
	values.Set("q", formatCoord(loc.Lat)+","+formatCoord(loc.Lng))

	var payload struct {
		Current struct {
			LastUpdatedEpoch int64   `json:"last_updated_epoch"`
			TempC            float64 `json:"temp_c"`
			Humidity         float64 `json:"humidity"`
			WindKph          float64 `json:"wind_kph"`
			PressureMb       float64 `json:"pressure_mb"`
			PrecipMm         float64 `json:"precip_mm"`
			Condition        struct {
				Text string `json:"text"`
			} `json:"condition"`
		} `json:"current"`
	}
	err := p.ep.getJSON(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/v1/current.json?"+values.Encode(), nil)
	}, &payload)
	if err != nil {
		return weather.ProviderReading{}, err
	}

	ts := time.Unix(payload.Current.LastUpdatedEpoch, 0).UTC()
	if payload.Current.LastUpdatedEpoch == 0 {
		ts = time.Now().UTC()
	}

	return weather.ProviderReading{
		ProviderName: p.name,
		Timestamp:    ts,
		TemperatureC: payload.Current.TempC,
		HumidityPct:  payload.Current.Humidity,
		WindSpeedMS:  payload.Current.WindKph / 3.6,
		PressureHpa:  payload.Current.PressureMb,
		PrecipMm:     payload.Current.PrecipMm,
		Condition:    mapWeatherAPICondition(payload.Current.Condition.Text),
		Description:  strings.ToLower(payload.Current.Condition.Text),
	}, nil
}

func mapWeatherAPICondition(text string) domain.Condition {
	t := strings.ToLower(text)
	has := func(sub ...string) bool {
		for _, s := range sub {
			if strings.Contains(t, s) {
				return true
			}
		}
		return false
	}
	switch {
	case t == "":
		return domain.ConditionUnknown
	case has("thunder", "storm"):
		return domain.ConditionStorm
	case has("rain", "shower", "drizzle"):
		return domain.ConditionRain
	case has("snow", "sleet", "blizzard", "ice pellets"):
		return domain.ConditionSnow
	case has("mist", "fog"):
		return domain.ConditionMist
	case has("cloud", "overcast"):
		return domain.ConditionCloudy
	case has("sunny", "clear"):
		return domain.ConditionClear
	default:
		return domain.ConditionUnknown
	}
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
