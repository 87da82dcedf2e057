// Package traffic reports road congestion near a coordinate.
package traffic

import (
	"context"
	"time"

	"github.com/i474232898/venue-context-aggregation/internal/cache"
	"github.com/i474232898/venue-context-aggregation/internal/domain"
	"github.com/i474232898/venue-context-aggregation/internal/logging"
	"github.com/i474232898/venue-context-aggregation/internal/metrics"
)

const CacheTTL = 60 * time.Second

// Level buckets a congestion ratio.
type Level string

const (
	LevelNone     Level = "None"
	LevelModerate Level = "Moderate"
	LevelHigh     Level = "High"
)

// LevelFor maps a congestion ratio: below 0.10 is None, below 0.35 Moderate.
func LevelFor(ratio float64) Level {
	switch {
	case ratio < 0.10:
		return LevelNone
	case ratio < 0.35:
		return LevelModerate
	default:
		return LevelHigh
	}
}

// Report is the traffic signal of the context bundle.
type Report struct {
	Provider   string  `json:"provider"`
	Level      Level   `json:"level"`
	Summary    string  `json:"summary"`
	Congestion float64 `json:"congestion"`

	CurrentSpeed  *float64 `json:"speed,omitempty"`
	FreeFlowSpeed *float64 `json:"freeFlow,omitempty"`
	Confidence    *float64 `json:"confidence,omitempty"`

	DurationSeconds          *float64 `json:"duration,omitempty"`
	DurationInTrafficSeconds *float64 `json:"durationTraffic,omitempty"`
}

// FromSpeeds builds a report from flow speeds: congestion = 1 - current/freeFlow.
// ok is false when the speeds cannot yield a ratio.
func FromSpeeds(provider string, current, freeFlow float64, confidence *float64) (*Report, bool) {
	if freeFlow <= 0 {
		return nil, false
	}
	c := clamp01(1 - current/freeFlow)
	lvl := LevelFor(c)
	return &Report{
		Provider:      provider,
		Level:         lvl,
		Summary:       string(lvl),
		Congestion:    c,
		CurrentSpeed:  domain.Float(current),
		FreeFlowSpeed: domain.Float(freeFlow),
		Confidence:    confidence,
	}, true
}

// FromDurations builds a report from a trip timed with and without traffic:
// ratio = (inTraffic - base) / base, floored at zero.
func FromDurations(provider string, base, inTraffic float64) (*Report, bool) {
	if base <= 0 || inTraffic <= 0 {
		return nil, false
	}
	ratio := (inTraffic - base) / max(base, 1)
	if ratio < 0 {
		ratio = 0
	}
	lvl := LevelFor(ratio)
	return &Report{
		Provider:                 provider,
		Level:                    lvl,
		Summary:                  string(lvl),
		Congestion:               clamp01(ratio),
		DurationSeconds:          domain.Float(base),
		DurationInTrafficSeconds: domain.Float(inTraffic),
	}, true
}

func clamp01(v float64) float64 {
	return max(0, min(1, v))
}

// Provider measures traffic around a point.
type Provider interface {
	Name() string
	Traffic(ctx context.Context, loc domain.Location) (*Report, error)
}

// Service caches the configured provider.
type Service struct {
	provider Provider
	cache    *cache.Namespace
}

func NewService(provider Provider, ns *cache.Namespace) *Service {
	return &Service{provider: provider, cache: ns}
}

// Get returns the traffic report for loc, or nil when unavailable.
func (s *Service) Get(ctx context.Context, loc domain.Location) *Report {
	if s == nil || s.provider == nil {
		return nil
	}
	r, err := cache.Fetch(ctx, s.cache, loc.Key(4), func(ctx context.Context) (*Report, error) {
		return s.provider.Traffic(ctx, loc)
	})
	if err != nil {
		metrics.RecordDegraded("traffic")
		logging.Ctx(ctx).Warn().Err(err).Str("signal", "traffic").Str("provider", s.provider.Name()).Str("kind", domain.Classify(err)).Msg("signal degraded")
		return nil
	}
	return r
}
