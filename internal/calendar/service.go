package calendar

import (
	"context"
	"time"

	"github.com/i474232898/venue-context-aggregation/internal/domain"
	"github.com/i474232898/venue-context-aggregation/internal/logging"
	"github.com/i474232898/venue-context-aggregation/internal/metrics"
)

// TokenSource reads events from a calendar the caller authorizes with an access token.
type TokenSource interface {
	Events(ctx context.Context, accessToken string, from, to time.Time) ([]domain.CalendarEvent, error)
}

// FeedSource reads events from a calendar configured for the process.
type FeedSource interface {
	Events(ctx context.Context, from, to time.Time) ([]domain.CalendarEvent, error)
}

// Service picks an event source for a request and derives free slots.
type Service struct {
	tokenSource TokenSource
	feed        FeedSource
	minGap      time.Duration
}

// NewService builds a Service. Either source may be nil.
func NewService(tokenSource TokenSource, feed FeedSource, minGap time.Duration) *Service {
	if minGap <= 0 {
		minGap = DefaultMinGap
	}
	return &Service{tokenSource: tokenSource, feed: feed, minGap: minGap}
}

// EventsToday returns the events between now's midnight and end of day.
// The token source is preferred when a token is supplied; failures fall
// through to the feed and finally to no events.
func (s *Service) EventsToday(ctx context.Context, accessToken string, now time.Time) []domain.CalendarEvent {
	if s == nil {
		return nil
	}
	from, to := StartOfDay(now), EndOfDay(now)

	if accessToken != "" && s.tokenSource != nil {
		events, err := s.tokenSource.Events(ctx, accessToken, from, to)
		if err == nil {
			return events
		}
		metrics.RecordDegraded("calendar")
		logging.Ctx(ctx).Warn().Err(err).Str("signal", "calendar").Str("provider", "google").Msg("signal degraded")
	}

	if s.feed != nil {
		events, err := s.feed.Events(ctx, from, to)
		if err == nil {
			return events
		}
		metrics.RecordDegraded("calendar")
		logging.Ctx(ctx).Warn().Err(err).Str("signal", "calendar").Str("provider", "ics").Msg("signal degraded")
	}
	return nil
}

// FreeSlotsToday returns the free windows left in now's day.
func (s *Service) FreeSlotsToday(ctx context.Context, accessToken string, now time.Time) []domain.FreeSlot {
	minGap := DefaultMinGap
	if s != nil {
		minGap = s.minGap
	}
	return Detect(s.EventsToday(ctx, accessToken, now), now, EndOfDay(now), minGap)
}
