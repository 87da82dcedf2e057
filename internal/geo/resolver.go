// Package geo resolves coordinates to a human-readable place identity.
package geo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/i474232898/venue-context-aggregation/internal/cache"
	"github.com/i474232898/venue-context-aggregation/internal/domain"
	"github.com/i474232898/venue-context-aggregation/internal/logging"
	"github.com/i474232898/venue-context-aggregation/internal/metrics"
)

// Mode selects the cascade order.
type Mode string

const (
	// ModeHybrid asks the reverse geocoder first and falls back to venue density.
	ModeHybrid Mode = "hybrid"
	// ModeGoogle uses the reverse geocoder only.
	ModeGoogle Mode = "google"
	// ModeFSQ votes on venue density first and asks the geocoder last.
	ModeFSQ Mode = "fsq"
)

// ParseMode maps a config string onto a Mode, defaulting to hybrid.
func ParseMode(s string) Mode {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeGoogle:
		return ModeGoogle
	case ModeFSQ:
		return ModeFSQ
	default:
		return ModeHybrid
	}
}

// CacheTTL is how long a resolved identity is reused for the same coordinates.
const CacheTTL = 30 * time.Minute

const (
	DefaultRadiusMeters = 5000
	venuePoolLimit      = 30
	landmarkRadius      = 5000
	landmarkLimit       = 5
)

// Civic landmarks queried in order when the venue pool exposes no city.
var landmarkQueries = []string{"city hall", "municipal office", "police station", "post office", "downtown"}

// AddressComponent is one administrative part of a reverse-geocoding result.
type AddressComponent struct {
	LongName  string
	ShortName string
	Types     []string
}

// AddressResult is one reverse-geocoding result.
type AddressResult struct {
	FormattedAddress string
	Components       []AddressComponent
}

// ReverseGeocoder is the primary geocoding provider. localityOnly biases
// results toward locality-level granularity.
type ReverseGeocoder interface {
	ReverseGeocode(ctx context.Context, loc domain.Location, localityOnly bool) ([]AddressResult, error)
}

// NearbyVenue is the slice of a venue search result the cascade needs.
type NearbyVenue struct {
	Name           string
	City           string
	Region         string
	Country        string
	DistanceMeters *float64
}

// VenueFinder searches venues around a coordinate.
type VenueFinder interface {
	NearbyVenues(ctx context.Context, loc domain.Location, query string, radiusMeters, limit int) ([]NearbyVenue, error)
}

// Resolver runs the geocoding fallback cascade.
type Resolver struct {
	mode     Mode
	geocoder ReverseGeocoder
	venues   VenueFinder
	cache    *cache.Namespace
	radius   int
}

// NewResolver builds a Resolver. Either provider may be nil; the steps that
// need it are skipped.
func NewResolver(mode Mode, geocoder ReverseGeocoder, venues VenueFinder, ns *cache.Namespace, radiusMeters int) *Resolver {
	if radiusMeters <= 0 {
		radiusMeters = DefaultRadiusMeters
	}
	return &Resolver{
		mode:     mode,
		geocoder: geocoder,
		venues:   venues,
		cache:    ns,
		radius:   radiusMeters,
	}
}

// Resolve returns the place identity for loc, or nil when nothing is known.
// It never fails; every step degrades to the next one.
func (r *Resolver) Resolve(ctx context.Context, loc domain.Location) *domain.GeoIdentity {
	if r == nil || !loc.Valid() {
		return nil
	}
	key := string(r.mode) + ":" + loc.Key(5)
	id, _ := cache.Fetch(ctx, r.cache, key, func(ctx context.Context) (*domain.GeoIdentity, error) {
		var a attempt
		id := r.resolve(ctx, loc, &a)
		if a.transient {
			return id, errTransient
		}
		return id, nil
	})
	return id
}

// errTransient keeps an identity shaped by a failing provider out of the cache.
var errTransient = errors.New("geo: provider failure during resolution")

// attempt records whether a provider failed during one resolution. A missing
// credential is permanent and does not count.
type attempt struct {
	transient bool
}

func (a *attempt) fail(ctx context.Context, err error) {
	degrade(ctx, "geocode", err)
	if !errors.Is(err, domain.ErrMissingCredential) {
		a.transient = true
	}
}

func (r *Resolver) resolve(ctx context.Context, loc domain.Location, a *attempt) *domain.GeoIdentity {
	var id domain.GeoIdentity

	switch r.mode {
	case ModeGoogle:
		id.Fill(r.fromGeocoder(ctx, loc, a))
	case ModeFSQ:
		id.Fill(r.fromVenueDensity(ctx, loc, a))
		if id.Name == "" {
			id.Name = id.City
		}
		id.Fill(r.fromGeocoder(ctx, loc, a))
	default:
		primary := r.fromGeocoder(ctx, loc, a)
		coarse := ""
		if primary.City != "" && strings.EqualFold(primary.City, primary.Region) {
			coarse, primary.City = primary.City, ""
		}
		id.Fill(primary)
		if id.City == "" {
			id.Fill(r.fromVenueDensity(ctx, loc, a))
		}
		if id.City == "" {
			id.City = coarse
		}
		if id.Name == "" {
			id.Name = id.City
		}
	}

	if id.Empty() {
		return nil
	}
	return &id
}

// fromGeocoder covers the locality-biased query and the unbiased retry.
func (r *Resolver) fromGeocoder(ctx context.Context, loc domain.Location, a *attempt) domain.GeoIdentity {
	if r.geocoder == nil {
		return domain.GeoIdentity{}
	}

	var out domain.GeoIdentity
	results, err := r.geocoder.ReverseGeocode(ctx, loc, true)
	if err != nil {
		a.fail(ctx, err)
	} else {
		out = identityFromResults(results)
		if out.City != "" {
			return out
		}
	}

	results, err = r.geocoder.ReverseGeocode(ctx, loc, false)
	if err != nil {
		a.fail(ctx, err)
		return out
	}
	out.Fill(identityFromResults(results))
	return out
}

// fromVenueDensity covers the nearest-venue, majority-city and landmark steps.
func (r *Resolver) fromVenueDensity(ctx context.Context, loc domain.Location, a *attempt) domain.GeoIdentity {
	if r.venues == nil {
		return domain.GeoIdentity{}
	}

	var out domain.GeoIdentity
	pool, err := r.venues.NearbyVenues(ctx, loc, "", r.radius, venuePoolLimit)
	if err != nil {
		a.fail(ctx, err)
	}

	if v, ok := closestWithCity(pool); ok {
		out.Fill(domain.GeoIdentity{City: v.City, Region: v.Region, Country: v.Country})
		return out
	}
	if city := majorityCity(pool); city != "" {
		out.City = city
		return out
	}

	for _, q := range landmarkQueries {
		found, err := r.venues.NearbyVenues(ctx, loc, q, landmarkRadius, landmarkLimit)
		if err != nil {
			a.fail(ctx, err)
			continue
		}
		for _, v := range found {
			if strings.TrimSpace(v.City) == "" {
				continue
			}
			out.Fill(domain.GeoIdentity{City: v.City, Region: v.Region, Country: v.Country})
			return out
		}
	}
	return out
}

// Priority order of address component types used for the display name.
var nameGranularities = [][]string{
	{"locality"},
	{"postal_town"},
	{"administrative_area_level_3"},
	{"administrative_area_level_2"},
	{"sublocality", "sublocality_level_1"},
	{"neighborhood"},
	{"colloquial_area"},
}

func identityFromResults(results []AddressResult) domain.GeoIdentity {
	if len(results) == 0 {
		return domain.GeoIdentity{}
	}

	var out domain.GeoIdentity
	for _, types := range nameGranularities {
		if out.Name != "" {
			break
		}
		for _, res := range results {
			if c, ok := pickComponent(res.Components, types...); ok && c.LongName != "" {
				out.Name = c.LongName
				break
			}
		}
	}
	if out.Name == "" {
		out.Name = results[0].FormattedAddress
	}

	head := results[0].Components
	if c, ok := pickComponent(head, "administrative_area_level_1"); ok {
		out.Region = c.ShortName
	}
	if c, ok := pickComponent(head, "country"); ok {
		out.Country = c.ShortName
	}

	for _, res := range results {
		if c, ok := pickComponent(res.Components, "locality", "postal_town"); ok && c.LongName != "" {
			out.City = c.LongName
			break
		}
	}
	if out.City == "" {
		out.City = out.Name
	}
	return out
}

// pickComponent returns the first component carrying any of types, trying
// types in order.
func pickComponent(components []AddressComponent, types ...string) (AddressComponent, bool) {
	for _, t := range types {
		for _, c := range components {
			for _, ct := range c.Types {
				if ct == t {
					return c, true
				}
			}
		}
	}
	return AddressComponent{}, false
}

// closestWithCity picks the venue with a city nearest by reported distance.
// Venues without a distance rank last; ties go to the first encountered.
func closestWithCity(pool []NearbyVenue) (NearbyVenue, bool) {
	const unknownDistance = 1e9

	var (
		best     NearbyVenue
		bestDist float64
		found    bool
	)
	for _, v := range pool {
		if strings.TrimSpace(v.City) == "" {
			continue
		}
		d := unknownDistance
		if v.DistanceMeters != nil {
			d = *v.DistanceMeters
		}
		if !found || d < bestDist {
			best, bestDist, found = v, d, true
		}
	}
	return best, found
}

func majorityCity(pool []NearbyVenue) string {
	counts := make(map[string]int)
	order := make([]string, 0)
	for _, v := range pool {
		c := strings.TrimSpace(v.City)
		if c == "" {
			continue
		}
		if counts[c] == 0 {
			order = append(order, c)
		}
		counts[c]++
	}

	best, max := "", 0
	for _, c := range order {
		if counts[c] > max {
			best, max = c, counts[c]
		}
	}
	return best
}

func degrade(ctx context.Context, signal string, err error) {
	metrics.RecordDegraded(signal)
	logging.Ctx(ctx).Warn().Err(err).Str("signal", signal).Str("kind", domain.Classify(err)).Msg("signal degraded")
}
