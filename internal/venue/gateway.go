// Package venue searches places through the base and personalized providers
// and merges their results.
package venue

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/i474232898/venue-context-aggregation/internal/cache"
	"github.com/i474232898/venue-context-aggregation/internal/domain"
	"github.com/i474232898/venue-context-aggregation/internal/logging"
	"github.com/i474232898/venue-context-aggregation/internal/metrics"
)

// CacheTTL applies to search results and venue details.
const CacheTTL = 60 * time.Second

// SearchParams are the inputs of one venue search.
type SearchParams struct {
	Query        string
	Location     *domain.Location
	RadiusMeters int
	Categories   []string
	Limit        int
}

// Key canonicalizes the parameters for caching: the query is trimmed and
// lowercased, coordinates rounded, and categories sorted.
func (p SearchParams) Key() string {
	ll := "-"
	if p.Location != nil {
		ll = p.Location.Key(4)
	}
	cats := make([]string, 0, len(p.Categories))
	for _, c := range p.Categories {
		if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
			cats = append(cats, c)
		}
	}
	sort.Strings(cats)
	return fmt.Sprintf("%s|%s|%d|%s|%d",
		strings.ToLower(strings.TrimSpace(p.Query)), ll, p.RadiusMeters, strings.Join(cats, ","), p.Limit)
}

// Searcher is the base places search provider.
type Searcher interface {
	Search(ctx context.Context, p SearchParams) ([]domain.VenueCandidate, error)
}

// Personalizer is the optional personalized recommendation provider.
type Personalizer interface {
	// Enabled reports whether a personalization credential is configured.
	Enabled() bool
	Recommend(ctx context.Context, userID string, p SearchParams) ([]domain.VenueCandidate, error)
}

// Results holds both search branches.
type Results struct {
	Base         []domain.VenueCandidate
	Personalized []domain.VenueCandidate
}

// Gateway runs the base and personalized searches.
type Gateway struct {
	base     Searcher
	personal Personalizer
	cache    *cache.Namespace
}

// NewGateway builds a Gateway. personal may be nil.
func NewGateway(base Searcher, personal Personalizer, ns *cache.Namespace) *Gateway {
	return &Gateway{base: base, personal: personal, cache: ns}
}

// Search runs the base search and, when a personalization credential and a
// location are both present, the personalized search in parallel. Only a
// missing base credential is returned as an error; every other failure
// leaves that branch empty.
func (g *Gateway) Search(ctx context.Context, userID string, p SearchParams) (Results, error) {
	var (
		wg      sync.WaitGroup
		out     Results
		baseErr error
	)

	if g.personalized(p) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out.Personalized = g.searchPersonalized(ctx, userID, p)
		}()
	}

	out.Base, baseErr = g.searchBase(ctx, p)
	wg.Wait()

	if out.Personalized == nil {
		out.Personalized = []domain.VenueCandidate{}
	}
	return out, baseErr
}

// SearchBase runs only the base search with the same degrade policy as Search.
func (g *Gateway) SearchBase(ctx context.Context, p SearchParams) ([]domain.VenueCandidate, error) {
	return g.searchBase(ctx, p)
}

func (g *Gateway) personalized(p SearchParams) bool {
	return g.personal != nil && g.personal.Enabled() && p.Location != nil
}

func (g *Gateway) searchBase(ctx context.Context, p SearchParams) ([]domain.VenueCandidate, error) {
	if g.base == nil {
		return nil, fmt.Errorf("places search: %w", domain.ErrMissingCredential)
	}
	list, err := cache.Fetch(ctx, g.cache, "base|"+p.Key(), func(ctx context.Context) ([]domain.VenueCandidate, error) {
		return g.base.Search(ctx, p)
	})
	if err != nil {
		if errors.Is(err, domain.ErrMissingCredential) {
			return nil, err
		}
		degrade(ctx, "places", err)
		return []domain.VenueCandidate{}, nil
	}
	return tag(list, domain.SourceBase), nil
}

func (g *Gateway) searchPersonalized(ctx context.Context, userID string, p SearchParams) []domain.VenueCandidate {
	key := "personal|" + userID + "|" + p.Key()
	list, err := cache.Fetch(ctx, g.cache, key, func(ctx context.Context) ([]domain.VenueCandidate, error) {
		return g.personal.Recommend(ctx, userID, p)
	})
	if err != nil {
		degrade(ctx, "personalization", err)
		return []domain.VenueCandidate{}
	}
	return tag(list, domain.SourcePersonalized)
}

// tag copies list, stamping the source. Cached slices are never mutated.
func tag(list []domain.VenueCandidate, source string) []domain.VenueCandidate {
	out := make([]domain.VenueCandidate, len(list))
	for i, v := range list {
		v.Source = source
		out[i] = v
	}
	return out
}

func degrade(ctx context.Context, signal string, err error) {
	metrics.RecordDegraded(signal)
	logging.Ctx(ctx).Warn().Err(err).Str("signal", signal).Str("kind", domain.Classify(err)).Msg("signal degraded")
}
