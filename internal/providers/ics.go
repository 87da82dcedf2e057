package providers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"github.com/i474232898/venue-context-aggregation/internal/domain"
	"github.com/i474232898/venue-context-aggregation/internal/logging"
)

// maxICSBody caps the feed size read into memory.
const maxICSBody = 4 << 20

// ICSFeed reads a subscribed iCalendar feed and expands recurring events
// into concrete occurrences.
type ICSFeed struct {
	url string
	ep  *endpoint
}

func NewICSFeed(httpCfg HTTPClientConfig, feedURL string) *ICSFeed {
	return &ICSFeed{url: strings.TrimSpace(feedURL), ep: newEndpoint("ics", httpCfg)}
}

// Events implements calendar.FeedSource. Only occurrences overlapping
// [from, to] are returned.
func (f *ICSFeed) Events(ctx context.Context, from, to time.Time) ([]domain.CalendarEvent, error) {
	if f.url == "" {
		return nil, missingCredential("ics")
	}

	resp, err := f.ep.do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "text/calendar")
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxICSBody))
	if err != nil {
		return nil, fmt.Errorf("ics: %w: %v", domain.ErrUpstream, err)
	}
	return ParseICSEvents(ctx, string(body), from, to)
}

// ParseICSEvents parses an iCalendar payload and returns the occurrences
// overlapping [from, to]. All-day events are placed in from's location.
func ParseICSEvents(ctx context.Context, body string, from, to time.Time) ([]domain.CalendarEvent, error) {
	cal, err := ical.ParseCalendar(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ics: parse: %w: %v", domain.ErrUpstream, err)
	}

	var out []domain.CalendarEvent
	for _, ve := range cal.Events() {
		occ, err := expandVEvent(ve, from, to)
		if err != nil {
			logging.Ctx(ctx).Debug().Err(err).Msg("skipping unreadable VEVENT")
			continue
		}
		out = append(out, occ...)
	}
	return out, nil
}

func expandVEvent(ve *ical.VEvent, from, to time.Time) ([]domain.CalendarEvent, error) {
	var title string
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		title = p.Value
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return nil, fmt.Errorf("dtstart: %w", err)
	}
	end, err := ve.GetEndAt()
	if err != nil {
		end = start
	}

	allDay := false
	if p := ve.GetProperty(ical.ComponentPropertyDtStart); p != nil {
		if vs := p.ICalParameters["VALUE"]; len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
			allDay = true
		}
		if !strings.Contains(p.Value, "T") {
			allDay = true
		}
	}
	if allDay {
		loc := from.Location()
		start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
		if !end.After(start) {
			end = start.Add(24 * time.Hour)
		} else {
			end = time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, loc)
		}
	}
	duration := end.Sub(start)

	rp := ve.GetProperty(ical.ComponentPropertyRrule)
	if rp == nil || rp.Value == "" {
		if overlaps(start, end, from, to) {
			return []domain.CalendarEvent{{Title: title, Start: start, End: end}}, nil
		}
		return nil, nil
	}

	r, err := rrule.StrToRRule(rp.Value)
	if err != nil {
		return nil, fmt.Errorf("rrule %q: %w", rp.Value, err)
	}
	r.DTStart(start)

	var set rrule.Set
	set.RRule(r)
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			if t, ok := parseICSTime(strings.TrimSpace(part), start.Location()); ok {
				set.ExDate(t)
			}
		}
	}

	var out []domain.CalendarEvent
	// Widen by one duration so occurrences starting before from but still
	// running are included.
	for _, s := range set.Between(from.Add(-duration), to, true) {
		e := s.Add(duration)
		if overlaps(s, e, from, to) {
			out = append(out, domain.CalendarEvent{Title: title, Start: s, End: e})
		}
	}
	return out, nil
}

func parseICSTime(v string, loc *time.Location) (time.Time, bool) {
	if v == "" {
		return time.Time{}, false
	}
	var (
		t   time.Time
		err error
	)
	switch {
	case strings.HasSuffix(v, "Z"):
		t, err = time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		t, err = time.ParseInLocation("20060102T150405", v, loc)
	default:
		t, err = time.ParseInLocation("20060102", v, loc)
	}
	return t, err == nil
}

func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aEnd.After(bStart) && aStart.Before(bEnd)
}
