package calendar

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/i474232898/venue-context-aggregation/internal/domain"
)

func at(h, m int) time.Time {
	return time.Date(2025, 3, 14, h, m, 0, 0, time.UTC)
}

func TestDetectTwoMeetings(t *testing.T) {
	events := []domain.CalendarEvent{
		{Start: at(11, 0), End: at(12, 0)},
		{Start: at(9, 0), End: at(10, 0)},
	}
	now := at(8, 30)
	eod := EndOfDay(now)

	slots := Detect(events, now, eod, 60*time.Minute)
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %d: %+v", len(slots), slots)
	}
	if !slots[0].Start.Equal(at(10, 0)) || !slots[0].End.Equal(at(11, 0)) || slots[0].DurationMinutes != 60 {
		t.Fatalf("unexpected first slot %+v", slots[0])
	}
	if !slots[1].Start.Equal(at(12, 0)) || !slots[1].End.Equal(eod) {
		t.Fatalf("unexpected second slot %+v", slots[1])
	}
	if slots[1].DurationMinutes != 719 {
		t.Fatalf("expected 719 minutes until end of day, got %d", slots[1].DurationMinutes)
	}
}

func TestDetectNoEvents(t *testing.T) {
	now := at(20, 0)
	slots := Detect(nil, now, EndOfDay(now), 60*time.Minute)
	if len(slots) != 1 || !slots[0].Start.Equal(now) {
		t.Fatalf("expected one slot covering the rest of the day, got %+v", slots)
	}

	late := at(23, 30)
	if slots := Detect(nil, late, EndOfDay(late), 60*time.Minute); len(slots) != 0 {
		t.Fatalf("expected no slot shorter than the minimum, got %+v", slots)
	}
}

func TestDetectFullyBooked(t *testing.T) {
	now := at(8, 0)
	events := []domain.CalendarEvent{{Start: at(7, 0), End: EndOfDay(now)}}
	if slots := Detect(events, now, EndOfDay(now), time.Minute); len(slots) != 0 {
		t.Fatalf("expected no free time, got %+v", slots)
	}
}

func TestDetectOverlappingAndMalformed(t *testing.T) {
	now := at(8, 0)
	events := []domain.CalendarEvent{
		{Start: at(9, 0), End: at(12, 0)},
		{Start: at(10, 0), End: at(11, 0)},
		{Start: at(13, 0)},
		{End: at(15, 0)},
	}
	slots := Detect(events, now, at(14, 0), 30*time.Minute)
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %+v", slots)
	}
	if !slots[1].Start.Equal(at(12, 0)) || !slots[1].End.Equal(at(14, 0)) {
		t.Fatalf("overlap should be absorbed, got %+v", slots[1])
	}
}

func TestDetectSlotsSortedAndDisjoint(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	now := at(6, 0)
	eod := EndOfDay(now)

	for round := 0; round < 200; round++ {
		var events []domain.CalendarEvent
		n := rng.Intn(12)
		for i := 0; i < n; i++ {
			start := now.Add(time.Duration(rng.Intn(18*60)) * time.Minute).Add(-2 * time.Hour)
			events = append(events, domain.CalendarEvent{
				Start: start,
				End:   start.Add(time.Duration(rng.Intn(180)+1) * time.Minute),
			})
		}

		slots := Detect(events, now, eod, time.Duration(rng.Intn(90))*time.Minute)
		for i, s := range slots {
			if s.Start.Before(now) || s.End.After(eod) || !s.Start.Before(s.End) {
				t.Fatalf("round %d: slot out of bounds %+v", round, s)
			}
			if i > 0 && s.Start.Before(slots[i-1].End) {
				t.Fatalf("round %d: overlapping slots %+v and %+v", round, slots[i-1], s)
			}
			for _, e := range events {
				if s.Start.Before(e.End) && e.Start.Before(s.End) {
					t.Fatalf("round %d: slot %+v overlaps event %+v", round, s, e)
				}
			}
		}
	}
}

type stubToken struct {
	events []domain.CalendarEvent
	err    error
	token  string
}

func (s *stubToken) Events(_ context.Context, token string, _, _ time.Time) ([]domain.CalendarEvent, error) {
	s.token = token
	return s.events, s.err
}

type stubFeed struct {
	events []domain.CalendarEvent
	err    error
	calls  int
}

func (s *stubFeed) Events(context.Context, time.Time, time.Time) ([]domain.CalendarEvent, error) {
	s.calls++
	return s.events, s.err
}

func TestServicePrefersTokenSource(t *testing.T) {
	tok := &stubToken{events: []domain.CalendarEvent{{Start: at(9, 0), End: at(10, 0)}}}
	feed := &stubFeed{}
	svc := NewService(tok, feed, 0)

	events := svc.EventsToday(context.Background(), "abc", at(8, 0))
	if len(events) != 1 || tok.token != "abc" {
		t.Fatalf("expected token source events, got %+v", events)
	}
	if feed.calls != 0 {
		t.Fatal("feed should not be consulted")
	}
}

func TestServiceFallsBackToFeed(t *testing.T) {
	tok := &stubToken{err: errors.New("401")}
	feed := &stubFeed{events: []domain.CalendarEvent{{Start: at(9, 0), End: at(10, 0)}}}
	svc := NewService(tok, feed, 0)

	slots := svc.FreeSlotsToday(context.Background(), "expired", at(8, 0))
	if feed.calls != 1 {
		t.Fatalf("expected feed fallback, got %d calls", feed.calls)
	}
	if len(slots) != 1 || !slots[0].Start.Equal(at(10, 0)) {
		t.Fatalf("unexpected slots %+v", slots)
	}
}

func TestServiceWithoutSources(t *testing.T) {
	var svc *Service
	slots := svc.FreeSlotsToday(context.Background(), "", at(22, 0))
	if len(slots) != 1 {
		t.Fatalf("expected whole remaining day, got %+v", slots)
	}
}
