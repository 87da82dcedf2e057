// Package app wires configuration into a ready pipeline.
package app

import (
	"github.com/i474232898/venue-context-aggregation/internal/cache"
	"github.com/i474232898/venue-context-aggregation/internal/calendar"
	"github.com/i474232898/venue-context-aggregation/internal/clock"
	"github.com/i474232898/venue-context-aggregation/internal/config"
	"github.com/i474232898/venue-context-aggregation/internal/geo"
	"github.com/i474232898/venue-context-aggregation/internal/logging"
	"github.com/i474232898/venue-context-aggregation/internal/pipeline"
	"github.com/i474232898/venue-context-aggregation/internal/providers"
	"github.com/i474232898/venue-context-aggregation/internal/timezone"
	"github.com/i474232898/venue-context-aggregation/internal/traffic"
	"github.com/i474232898/venue-context-aggregation/internal/travel"
	"github.com/i474232898/venue-context-aggregation/internal/venue"
	"github.com/i474232898/venue-context-aggregation/internal/weather"
)

// App holds the process-wide collaborators.
type App struct {
	Config   *config.AppConfig
	Cache    *cache.Cache
	Pipeline *pipeline.Service
}

// New builds every provider and service from cfg. Optional providers whose
// credential is missing are left nil.
func New(cfg *config.AppConfig, clk clock.Clock) *App {
	if clk == nil {
		clk = clock.NewSystem()
	}
	httpCfg := providers.HTTPClientConfig{
		Client:            providers.NewHTTPClient(cfg.HTTPTimeout),
		RequestsPerSecond: cfg.ProviderRPS,
	}
	c := cache.New(cfg.CacheMaxEntries, clk)

	fsq := cfg.Foursquare
	places := providers.NewFoursquarePlaces(httpCfg, fsq.ServiceKey, fsq.APIVersion, fsq.PlacesHost, fsq.FallbackHost)
	personal := providers.NewFoursquarePersonalization(httpCfg, fsq.PersonalKey, fsq.APIVersion, fsq.PersonalHost)
	google := providers.NewGoogleMaps(httpCfg, cfg.GoogleMapsAPIKey, "")

	venueNS := c.Namespace("venue", venue.CacheTTL)
	gateway := venue.NewGateway(places, personal, venueNS)
	ratings := venue.CachedRatings(places, venueNS)

	var geocoder geo.ReverseGeocoder
	if cfg.GoogleMapsAPIKey != "" {
		geocoder = google
	}
	resolver := geo.NewResolver(geo.ParseMode(cfg.LocationNameProvider), geocoder, places, c.Namespace("geo", geo.CacheTTL), cfg.LocationCityRadiusM)

	var (
		primary, secondary travel.MatrixProvider
		maps               pipeline.MapRenderer
	)
	if cfg.GoogleMapsAPIKey != "" {
		primary = google
	}
	if cfg.MapboxKey != "" {
		mapbox := providers.NewMapbox(httpCfg, cfg.MapboxKey, "")
		secondary, maps = mapbox, mapbox
	}
	enricher := travel.NewEnricher(primary, secondary, c.Namespace("travel", travel.CacheTTL))

	weatherProviders := []weather.Provider{}
	if cfg.OpenWeatherAPIKey != "" {
		weatherProviders = append(weatherProviders, providers.NewOpenWeatherProvider(httpCfg, cfg.OpenWeatherAPIKey, ""))
	}
	if cfg.WeatherAPIKey != "" {
		weatherProviders = append(weatherProviders, providers.NewWeatherAPIProvider(httpCfg, cfg.WeatherAPIKey, ""))
	}
	weatherProviders = append(weatherProviders, providers.NewOpenMeteoProvider(httpCfg, ""))
	weatherSvc := weather.NewService(weatherProviders,
		c.Namespace("weather", weather.CurrentTTL),
		c.Namespace("forecast", weather.ForecastTTL))

	var trafficProvider traffic.Provider
	switch {
	case cfg.TrafficProvider == "google" && cfg.GoogleMapsAPIKey != "":
		trafficProvider = providers.NewGoogleTraffic(google)
	case cfg.TrafficProvider == "tomtom" && cfg.TomTomAPIKey != "":
		trafficProvider = providers.NewTomTom(httpCfg, cfg.TomTomAPIKey, "")
	}
	trafficSvc := traffic.NewService(trafficProvider, c.Namespace("traffic", traffic.CacheTTL))

	var tzProviders []timezone.Provider
	if cfg.GoogleMapsAPIKey != "" {
		tzProviders = append(tzProviders, google)
	}
	tzProviders = append(tzProviders, providers.NewWorldTime(httpCfg, ""))
	tzSvc := timezone.NewService(tzProviders, c.Namespace("timezone", timezone.CacheTTL), clk)

	var feed calendar.FeedSource
	if cfg.CalendarICSURL != "" {
		feed = providers.NewICSFeed(httpCfg, cfg.CalendarICSURL)
	}
	calendarSvc := calendar.NewService(providers.NewGoogleCalendar(httpCfg, ""), feed, calendar.DefaultMinGap)

	logging.Info().
		Bool("personalization", personal.Enabled()).
		Bool("google", cfg.GoogleMapsAPIKey != "").
		Bool("mapbox", secondary != nil).
		Int("weather_providers", len(weatherProviders)).
		Bool("traffic", trafficProvider != nil).
		Bool("ics_feed", feed != nil).
		Str("geo_mode", string(geo.ParseMode(cfg.LocationNameProvider))).
		Msg("providers configured")

	svc := pipeline.New(pipeline.Deps{
		Geo:      resolver,
		Venues:   gateway,
		Ratings:  ratings,
		Travel:   enricher,
		Weather:  weatherSvc,
		Timezone: tzSvc,
		Traffic:  trafficSvc,
		Calendar: calendarSvc,
		Maps:     maps,
		Clock:    clk,
	}, pipeline.Options{RatingConcurrency: cfg.RatingConcurrency})

	return &App{Config: cfg, Cache: c, Pipeline: svc}
}
