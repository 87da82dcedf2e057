package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/i474232898/venue-context-aggregation/internal/common"
	"github.com/i474232898/venue-context-aggregation/internal/logging"
)

var apiVersionPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

type FoursquareConfig struct {
	ServiceKey   string
	PlacesHost   string
	FallbackHost string
	APIVersion   string
	PersonalKey  string
	PersonalHost string
}

type AppConfig struct {
	Port              string
	HTTPTimeout       time.Duration
	CacheMaxEntries   int
	RatingConcurrency int
	ProviderRPS       float64

	Foursquare FoursquareConfig

	GoogleMapsAPIKey  string
	MapboxKey         string
	OpenWeatherAPIKey string
	WeatherAPIKey     string
	TomTomAPIKey      string

	// TrafficProvider is "tomtom" or "google".
	TrafficProvider string
	// LocationNameProvider is "hybrid", "google" or "fsq".
	LocationNameProvider string
	LocationCityRadiusM  int

	CalendarICSURL string

	WatchFile        string
	Watch            []WatchLocation
	PrefetchInterval time.Duration

	Log logging.Config
}

// Load reads configuration from a .env file, if present, and the
// environment. Credentials are read once here.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		logging.Debug().Err(err).Msg("no .env file loaded")
	}
	cfg := &AppConfig{}

	cfg.Port = getenvDefault("PORT", "8080")

	var err error
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", 8*time.Second); err != nil {
		return nil, err
	}
	if cfg.PrefetchInterval, err = getenvDuration("PREFETCH_INTERVAL", 15*time.Minute); err != nil {
		return nil, err
	}
	cfg.CacheMaxEntries = getenvInt("CACHE_MAX_ENTRIES", 10_000)
	cfg.RatingConcurrency = getenvInt("RATING_CONCURRENCY", 10)
	if cfg.RatingConcurrency < 1 {
		return nil, fmt.Errorf("invalid RATING_CONCURRENCY: must be at least 1")
	}
	cfg.ProviderRPS = getenvFloat("PROVIDER_RPS", 10)

	cfg.Foursquare = FoursquareConfig{
		PlacesHost:   getenvDefault("FOURSQUARE_PLACES_HOST", "https://places-api.foursquare.com"),
		FallbackHost: getenvDefault("FOURSQUARE_FALLBACK_HOST", "https://api.foursquare.com/v3"),
		APIVersion:   strings.TrimSpace(os.Getenv("FOURSQUARE_API_VERSION")),
		PersonalKey:  strings.TrimSpace(os.Getenv("FOURSQUARE_PERSONALIZATION_SERVICE_KEY")),
		PersonalHost: getenvDefault("FOURSQUARE_PERSONALIZATION_HOST", "https://places-api.foursquare.com"),
	}
	cfg.Foursquare.ServiceKey = firstEnv("FOURSQUARE_SERVICE_KEY", "FSQ_SERVICE_KEY", "FOURSQUARE_PLACES_KEY", "FOURSQUARE_API_KEY", "FSQ_API_KEY")
	if v := cfg.Foursquare.APIVersion; v != "" && !apiVersionPattern.MatchString(v) {
		return nil, fmt.Errorf("invalid FOURSQUARE_API_VERSION %q: expected YYYY-MM-DD", v)
	}

	cfg.GoogleMapsAPIKey = strings.TrimSpace(os.Getenv("GOOGLE_MAPS_API_KEY"))
	cfg.MapboxKey = strings.TrimSpace(os.Getenv("MAPBOX_KEY"))
	cfg.OpenWeatherAPIKey = firstEnv("WEATHER_API_KEY", "OPENWEATHER_API_KEY")
	cfg.WeatherAPIKey = strings.TrimSpace(os.Getenv("WEATHERAPI_API_KEY"))
	cfg.TomTomAPIKey = strings.TrimSpace(os.Getenv("TOMTOM_API_KEY"))

	cfg.TrafficProvider = strings.ToLower(getenvDefault("TRAFFIC_PROVIDER", "tomtom"))
	if cfg.TrafficProvider != "tomtom" && cfg.TrafficProvider != "google" {
		return nil, fmt.Errorf("invalid TRAFFIC_PROVIDER %q: expected tomtom or google", cfg.TrafficProvider)
	}
	cfg.LocationNameProvider = strings.ToLower(getenvDefault("LOCATION_NAME_PROVIDER", "hybrid"))
	cfg.LocationCityRadiusM = getenvInt("LOCATION_CITY_RADIUS_M", 5000)

	cfg.CalendarICSURL = strings.TrimSpace(os.Getenv("CALENDAR_ICS_URL"))

	cfg.WatchFile = strings.TrimSpace(os.Getenv("WATCH_FILE"))
	if cfg.WatchFile != "" {
		watch, err := LoadWatchFile(cfg.WatchFile)
		if err != nil {
			return nil, err
		}
		cfg.Watch = watch
	}

	cfg.Log = logging.Config{
		Level:  getenvDefault("LOG_LEVEL", "info"),
		Format: getenvDefault("LOG_FORMAT", "json"),
	}

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

// firstEnv returns the first non-empty value among keys.
func firstEnv(keys ...string) string {
	values := make([]string, len(keys))
	for i, k := range keys {
		values[i] = os.Getenv(k)
	}
	return common.FirstNonEmpty(values...)
}
