// Package timezone resolves the local time at a coordinate.
package timezone

import (
	"context"
	"time"

	"github.com/i474232898/venue-context-aggregation/internal/cache"
	"github.com/i474232898/venue-context-aggregation/internal/clock"
	"github.com/i474232898/venue-context-aggregation/internal/domain"
	"github.com/i474232898/venue-context-aggregation/internal/logging"
	"github.com/i474232898/venue-context-aggregation/internal/metrics"
)

const CacheTTL = 30 * time.Minute

// Zone is what a provider knows about the zone at a point.
type Zone struct {
	Provider     string
	ID           string
	Name         string
	RawOffsetSec int
	DstOffsetSec int
}

// Info is the timezone signal of the context bundle.
type Info struct {
	Provider     string    `json:"provider"`
	TimezoneID   string    `json:"timezoneId"`
	TimezoneName string    `json:"timezoneName"`
	RawOffset    int       `json:"rawOffset"`
	DstOffset    int       `json:"dstOffset"`
	LocalTime    time.Time `json:"localTime"`
	MinutesOfDay int       `json:"minutesOfDay"`
}

// Location returns the IANA location when known, else a fixed offset zone.
func (i Info) Location() *time.Location {
	if i.TimezoneID != "" {
		if loc, err := time.LoadLocation(i.TimezoneID); err == nil {
			return loc
		}
	}
	return time.FixedZone(i.TimezoneName, i.RawOffset+i.DstOffset)
}

// Provider looks up the zone at loc for instant at.
type Provider interface {
	Name() string
	Lookup(ctx context.Context, loc domain.Location, at time.Time) (Zone, error)
}

var utcZone = Zone{Provider: "fallback", ID: "UTC", Name: "Coordinated Universal Time"}

// Service tries providers in order and falls back to UTC.
type Service struct {
	providers []Provider
	cache     *cache.Namespace
	clock     clock.Clock
}

func NewService(providers []Provider, ns *cache.Namespace, clk clock.Clock) *Service {
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &Service{providers: providers, cache: ns, clock: clk}
}

// Get never fails. Zones are cached; local time is computed on every call.
func (s *Service) Get(ctx context.Context, loc domain.Location) Info {
	z, _ := cache.Fetch(ctx, s.cache, loc.Key(3), func(ctx context.Context) (Zone, error) {
		return s.lookup(ctx, loc), nil
	})
	return infoAt(z, s.clock.Now())
}

func (s *Service) lookup(ctx context.Context, loc domain.Location) Zone {
	for _, p := range s.providers {
		z, err := p.Lookup(ctx, loc, s.clock.Now())
		if err == nil {
			return z
		}
		metrics.RecordDegraded("timezone")
		logging.Ctx(ctx).Warn().Err(err).Str("signal", "timezone").Str("provider", p.Name()).Msg("signal degraded")
	}
	return utcZone
}

func infoAt(z Zone, now time.Time) Info {
	offset := time.Duration(z.RawOffsetSec+z.DstOffsetSec) * time.Second
	local := now.UTC().Add(offset)
	return Info{
		Provider:     z.Provider,
		TimezoneID:   z.ID,
		TimezoneName: z.Name,
		RawOffset:    z.RawOffsetSec,
		DstOffset:    z.DstOffsetSec,
		LocalTime:    now.In(time.FixedZone(z.ID, z.RawOffsetSec+z.DstOffsetSec)),
		MinutesOfDay: local.Hour()*60 + local.Minute(),
	}
}
