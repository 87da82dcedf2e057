package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/i474232898/venue-context-aggregation/internal/domain"
	"github.com/i474232898/venue-context-aggregation/internal/pipeline"
	"github.com/i474232898/venue-context-aggregation/internal/traffic"
)

var (
	heading = color.New(color.Bold)
	muted   = color.New(color.FgHiBlack)
	good    = color.New(color.FgGreen)
	warn    = color.New(color.FgYellow)
	bad     = color.New(color.FgRed)
)

func printRecommendations(w io.Writer, recs []domain.RankedRecommendation) {
	if len(recs) == 0 {
		muted.Fprintln(w, "no venues found")
		return
	}
	for i, r := range recs {
		heading.Fprintf(w, "%2d. %s", i+1, r.Name)
		fmt.Fprintf(w, "  %s\n", scoreColor(r.FinalScore).Sprintf("%.3f", r.FinalScore))

		var details []string
		if len(r.Categories) > 0 {
			details = append(details, strings.Join(r.Categories, ", "))
		}
		if r.Rating != nil {
			details = append(details, fmt.Sprintf("rating %.1f", *r.Rating))
		}
		if r.Travel != nil {
			eta := fmt.Sprintf("%.1f km, %.0f min", r.Travel.DistanceKm, r.Travel.EtaMinutes)
			if r.Travel.Estimated {
				eta += " (est.)"
			}
			details = append(details, eta)
		}
		if r.Source == domain.SourcePersonalized {
			details = append(details, "for you")
		}
		if len(details) > 0 {
			muted.Fprintf(w, "    %s\n", strings.Join(details, " | "))
		}
	}
}

func printBundle(w io.Writer, b pipeline.Bundle) {
	heading.Fprintln(w, placeName(b.Location))
	if b.Timezone.TimezoneID != "" {
		fmt.Fprintf(w, "  time      %s (%s)\n", b.Timezone.LocalTime.Format("15:04"), b.Timezone.TimezoneID)
	}
	if b.Weather != nil {
		fmt.Fprintf(w, "  weather   %s, %.1f°C\n", b.Weather.Condition, b.Weather.TemperatureC)
	} else {
		muted.Fprintln(w, "  weather   unavailable")
	}
	if b.Traffic != nil {
		fmt.Fprintf(w, "  traffic   %s\n", trafficColor(b.Traffic.Level).Sprint(b.Traffic.Summary))
	}
	if len(b.Suggestion.Categories) > 0 {
		fmt.Fprintf(w, "  suggest   %s\n", b.Suggestion.Query)
	}
	for _, s := range b.FreeSlots {
		good.Fprintf(w, "  free      %s-%s (%d min)\n", s.Start.Format("15:04"), s.End.Format("15:04"), s.DurationMinutes)
	}
	for _, p := range b.Places {
		fmt.Fprintf(w, "  - %s\n", p.Name)
	}
}

func printSuggestion(w io.Writer, s pipeline.Suggestion) {
	heading.Fprintln(w, s.Message)
	if s.Context != nil {
		if s.Context.WeatherAdvice != "" {
			muted.Fprintf(w, "  %s\n", s.Context.WeatherAdvice)
		}
		if s.Context.TimeAdvice != "" {
			muted.Fprintf(w, "  %s\n", s.Context.TimeAdvice)
		}
	}
	printRecommendations(w, s.Recommendations)
}

func placeName(v pipeline.LocationView) string {
	var parts []string
	for _, p := range []string{v.Name, v.City, v.Country} {
		if p != "" && (len(parts) == 0 || parts[len(parts)-1] != p) {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return fmt.Sprintf("%.4f, %.4f", v.Lat, v.Lng)
	}
	return strings.Join(parts, ", ")
}

func scoreColor(score float64) *color.Color {
	switch {
	case score >= 0.7:
		return good
	case score >= 0.4:
		return warn
	default:
		return muted
	}
}

func trafficColor(l traffic.Level) *color.Color {
	switch l {
	case traffic.LevelHigh:
		return bad
	case traffic.LevelModerate:
		return warn
	default:
		return good
	}
}
