package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/i474232898/venue-context-aggregation/internal/config"
	"github.com/i474232898/venue-context-aggregation/internal/logging"
	"github.com/i474232898/venue-context-aggregation/internal/pipeline"
)

const (
	defaultInterval = 15 * time.Minute
	jobTimeout      = 30 * time.Second
)

// ContextBuilder builds the context bundle for one location.
type ContextBuilder interface {
	Context(ctx context.Context, req pipeline.ContextRequest) (pipeline.Bundle, error)
}

// Scheduler periodically warms the caches for the watched locations by
// building their context bundles.
type Scheduler struct {
	scheduler *gocron.Scheduler
	builder   ContextBuilder
	locations []config.WatchLocation
	interval  time.Duration
}

// New creates a new Scheduler.
func New(locations []config.WatchLocation, interval time.Duration, builder ContextBuilder) *Scheduler {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		builder:   builder,
		locations: locations,
		interval:  interval,
	}
}

// Start schedules the prefetch job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if len(s.locations) == 0 {
		logging.Info().Msg("scheduler: no watched locations; nothing to schedule")
		return nil
	}

	_, err := s.scheduler.Every(s.interval).Do(s.RunOnce)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	logging.Info().Int("locations", len(s.locations)).Dur("interval", s.interval).Msg("scheduler started")
	return nil
}

// RunOnce prefetches every watched location once and waits for all of them.
func (s *Scheduler) RunOnce() {
	start := time.Now()
	var wg sync.WaitGroup
	for _, w := range s.locations {
		wg.Add(1)
		go func() {
			defer wg.Done()

			ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
			defer cancel()

			loc := w.Location()
			b, err := s.builder.Context(ctx, pipeline.ContextRequest{Location: &loc, Query: w.Query})
			if err != nil {
				logging.Warn().Err(err).Str("location", w.Name).Msg("scheduler: prefetch failed")
				return
			}
			logging.Debug().
				Str("location", w.Name).
				Int("places", len(b.Places)).
				Bool("weather", b.Weather != nil).
				Msg("scheduler: prefetched")
		}()
	}
	wg.Wait()
	logging.Info().Int("locations", len(s.locations)).Dur("took", time.Since(start)).Msg("scheduler: prefetch completed")
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
