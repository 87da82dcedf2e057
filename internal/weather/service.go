package weather

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/i474232898/venue-context-aggregation/internal/cache"
	"github.com/i474232898/venue-context-aggregation/internal/domain"
	"github.com/i474232898/venue-context-aggregation/internal/logging"
)

const (
	CurrentTTL  = 30 * time.Second
	ForecastTTL = 10 * time.Minute
)

var (
	errNoProviders = errors.New("no weather providers configured")
	errNoReadings  = errors.New("no successful provider readings")
)

// Service fans out to weather providers and caches the aggregated result.
type Service struct {
	providers []Provider
	current   *cache.Namespace
	forecast  *cache.Namespace
}

// NewService creates a new Service. Nil namespaces disable caching.
func NewService(providers []Provider, current, forecast *cache.Namespace) *Service {
	return &Service{
		providers: providers,
		current:   current,
		forecast:  forecast,
	}
}

// Current fetches current conditions from all providers concurrently and
// aggregates the successful readings.
func (s *Service) Current(ctx context.Context, loc domain.Location) (*domain.WeatherSnapshot, error) {
	return cache.Fetch(ctx, s.current, loc.Key(4), func(ctx context.Context) (*domain.WeatherSnapshot, error) {
		return s.fetchCurrent(ctx, loc)
	})
}

func (s *Service) fetchCurrent(ctx context.Context, loc domain.Location) (*domain.WeatherSnapshot, error) {
	if len(s.providers) == 0 {
		return nil, fmt.Errorf("%w: %w", domain.ErrMissingCredential, errNoProviders)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		readings = make([]ProviderReading, len(s.providers))
		ok       = make([]bool, len(s.providers))
		lastErr  error
	)

	for i, p := range s.providers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			r, err := p.Fetch(ctx, loc)
			if err != nil {
				// Log and continue; partial success is still a snapshot.
				logging.Ctx(ctx).Debug().Err(err).Str("provider", p.Name()).Str("location", loc.Key(4)).Msg("weather provider fetch failed")
				mu.Lock()
				lastErr = err
				mu.Unlock()
				return
			}
			readings[i], ok[i] = r, true
		}()
	}
	wg.Wait()

	// Keep provider order so aggregation ties are deterministic.
	got := make([]ProviderReading, 0, len(readings))
	for i, r := range readings {
		if ok[i] {
			got = append(got, r)
		}
	}
	if len(got) == 0 {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrUpstream, errNoReadings)
	}

	snapshot := AggregateReadings(got)
	return &snapshot, nil
}

// Forecast returns the time series of the first forecast-capable provider
// that succeeds, in configuration order.
func (s *Service) Forecast(ctx context.Context, loc domain.Location) (domain.Forecast, error) {
	return cache.Fetch(ctx, s.forecast, loc.Key(3), func(ctx context.Context) (domain.Forecast, error) {
		return s.fetchForecast(ctx, loc)
	})
}

func (s *Service) fetchForecast(ctx context.Context, loc domain.Location) (domain.Forecast, error) {
	lastErr := fmt.Errorf("%w: no forecast provider configured", domain.ErrMissingCredential)
	for _, p := range s.providers {
		fp, ok := p.(ForecastProvider)
		if !ok {
			continue
		}
		readings, err := fp.FetchForecast(ctx, loc)
		if err != nil {
			logging.Ctx(ctx).Debug().Err(err).Str("provider", p.Name()).Msg("weather forecast failed")
			lastErr = err
			continue
		}
		if len(readings) == 0 {
			lastErr = fmt.Errorf("%s: %w: empty forecast", p.Name(), domain.ErrUpstream)
			continue
		}

		series := make(domain.Forecast, 0, len(readings))
		for _, r := range readings {
			series = append(series, snapshotFromReading(r))
		}
		return series, nil
	}
	return nil, lastErr
}

// ForecastAt returns the forecast point nearest to t.
func (s *Service) ForecastAt(ctx context.Context, loc domain.Location, t time.Time) (*domain.WeatherSnapshot, error) {
	series, err := s.Forecast(ctx, loc)
	if err != nil {
		return nil, err
	}
	point, ok := NearestPoint(series, t)
	if !ok {
		return nil, fmt.Errorf("%w: empty forecast", domain.ErrUpstream)
	}
	return &point, nil
}
