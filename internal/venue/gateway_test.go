package venue

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/i474232898/venue-context-aggregation/internal/cache"
	"github.com/i474232898/venue-context-aggregation/internal/domain"
)

type stubSearcher struct {
	list  []domain.VenueCandidate
	err   error
	calls atomic.Int32
}

func (s *stubSearcher) Search(context.Context, SearchParams) ([]domain.VenueCandidate, error) {
	s.calls.Add(1)
	return s.list, s.err
}

type stubPersonalizer struct {
	enabled bool
	list    []domain.VenueCandidate
	err     error
	calls   atomic.Int32
}

func (s *stubPersonalizer) Enabled() bool { return s.enabled }

func (s *stubPersonalizer) Recommend(context.Context, string, SearchParams) ([]domain.VenueCandidate, error) {
	s.calls.Add(1)
	return s.list, s.err
}

var here = &domain.Location{Lat: 51.5072, Lng: -0.1276}

func TestSearchWithoutPersonalizationCredential(t *testing.T) {
	base := &stubSearcher{list: []domain.VenueCandidate{{ID: "a", Name: "A"}}}
	pers := &stubPersonalizer{enabled: false}
	g := NewGateway(base, pers, nil)

	res, err := g.Search(context.Background(), "u1", SearchParams{Query: "sights", Location: here})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Base) != 1 || res.Base[0].Source != domain.SourceBase {
		t.Fatalf("unexpected base results %+v", res.Base)
	}
	if res.Personalized == nil || len(res.Personalized) != 0 {
		t.Fatalf("expected empty personalized list, got %+v", res.Personalized)
	}
	if pers.calls.Load() != 0 {
		t.Fatal("personalizer must not be called without a credential")
	}
}

func TestSearchPersonalizedNeedsLocation(t *testing.T) {
	pers := &stubPersonalizer{enabled: true, list: []domain.VenueCandidate{{ID: "p"}}}
	g := NewGateway(&stubSearcher{}, pers, nil)

	res, _ := g.Search(context.Background(), "u1", SearchParams{Query: "sights"})
	if len(res.Personalized) != 0 || pers.calls.Load() != 0 {
		t.Fatalf("personalized search needs a location, got %+v", res.Personalized)
	}

	res, _ = g.Search(context.Background(), "u1", SearchParams{Query: "sights", Location: here})
	if len(res.Personalized) != 1 || res.Personalized[0].Source != domain.SourcePersonalized {
		t.Fatalf("expected personalized results, got %+v", res.Personalized)
	}
}

func TestSearchDegradesUpstreamFailures(t *testing.T) {
	base := &stubSearcher{err: fmt.Errorf("fsq: %w", domain.ErrRateLimited)}
	pers := &stubPersonalizer{enabled: true, err: errors.New("boom")}
	g := NewGateway(base, pers, nil)

	res, err := g.Search(context.Background(), "", SearchParams{Location: here})
	if err != nil {
		t.Fatalf("rate limiting should degrade, got %v", err)
	}
	if len(res.Base) != 0 || len(res.Personalized) != 0 {
		t.Fatalf("expected empty results, got %+v", res)
	}
}

func TestSearchMissingBaseCredentialIsReturned(t *testing.T) {
	g := NewGateway(&stubSearcher{err: fmt.Errorf("fsq: %w", domain.ErrMissingCredential)}, nil, nil)
	if _, err := g.Search(context.Background(), "", SearchParams{}); !errors.Is(err, domain.ErrMissingCredential) {
		t.Fatalf("expected missing credential, got %v", err)
	}

	g = NewGateway(nil, nil, nil)
	if _, err := g.SearchBase(context.Background(), SearchParams{}); !errors.Is(err, domain.ErrMissingCredential) {
		t.Fatalf("expected missing credential without a searcher, got %v", err)
	}
}

func TestSearchCachedByCanonicalParams(t *testing.T) {
	base := &stubSearcher{list: []domain.VenueCandidate{{ID: "a"}}}
	g := NewGateway(base, nil, cache.New(10, nil).Namespace("venue", CacheTTL))

	p1 := SearchParams{Query: "Coffee ", Location: here, Categories: []string{"b", "a"}, Limit: 5}
	p2 := SearchParams{Query: "coffee", Location: here, Categories: []string{"a", "b"}, Limit: 5}
	if _, err := g.SearchBase(context.Background(), p1); err != nil {
		t.Fatal(err)
	}
	if _, err := g.SearchBase(context.Background(), p2); err != nil {
		t.Fatal(err)
	}
	if n := base.calls.Load(); n != 1 {
		t.Fatalf("expected one upstream search, got %d", n)
	}
	if p1.Key() != p2.Key() {
		t.Fatalf("keys differ: %q vs %q", p1.Key(), p2.Key())
	}
}
