package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/i474232898/venue-context-aggregation/internal/config"
	"github.com/i474232898/venue-context-aggregation/internal/pipeline"
)

type recordingBuilder struct {
	mu    sync.Mutex
	calls []pipeline.ContextRequest
	fail  string
}

func (r *recordingBuilder) Context(ctx context.Context, req pipeline.ContextRequest) (pipeline.Bundle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, req)
	if _, ok := ctx.Deadline(); !ok {
		return pipeline.Bundle{}, errors.New("missing deadline")
	}
	if req.Query == r.fail {
		return pipeline.Bundle{}, errors.New("boom")
	}
	return pipeline.Bundle{}, nil
}

func TestRunOnceVisitsEveryLocation(t *testing.T) {
	b := &recordingBuilder{fail: "bars"}
	s := New([]config.WatchLocation{
		{Name: "Tel Aviv", Lat: 32.0853, Lng: 34.7818, Query: "coffee"},
		{Name: "Berlin", Lat: 52.52, Lng: 13.405, Query: "bars"},
	}, time.Minute, b)

	s.RunOnce()

	if len(b.calls) != 2 {
		t.Fatalf("expected 2 prefetches, got %d", len(b.calls))
	}
	seen := map[string]bool{}
	for _, c := range b.calls {
		if c.Location == nil {
			t.Fatal("expected a location on every request")
		}
		seen[c.Query] = true
	}
	if !seen["coffee"] || !seen["bars"] {
		t.Fatalf("unexpected queries: %v", seen)
	}
}

func TestStartWithoutLocations(t *testing.T) {
	s := New(nil, 0, &recordingBuilder{})
	if err := s.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.interval != defaultInterval {
		t.Fatalf("expected default interval, got %v", s.interval)
	}
	s.Stop()
}
