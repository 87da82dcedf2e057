package weather

import (
	"reflect"
	"testing"

	"github.com/i474232898/venue-context-aggregation/internal/domain"
)

func snap(c domain.Condition, temp float64) *domain.WeatherSnapshot {
	return &domain.WeatherSnapshot{Condition: c, TemperatureC: temp}
}

func slot(minutes int) *domain.FreeSlot {
	return &domain.FreeSlot{DurationMinutes: minutes}
}

func TestClassifyRuleTable(t *testing.T) {
	tests := []struct {
		name  string
		w     *domain.WeatherSnapshot
		query string
		cats  []string
	}{
		{"rain", snap(domain.ConditionRain, 30), "indoor activities", []string{"museum", "cafe", "mall", "library", "bookstore"}},
		{"storm", snap(domain.ConditionStorm, 5), "indoor activities", []string{"museum", "cafe", "mall", "library", "bookstore"}},
		{"hot clear", snap(domain.ConditionClear, 30), "cool indoor places", []string{"air-conditioned cafe", "indoor restaurant", "shopping center"}},
		{"mild cloudy", snap(domain.ConditionCloudy, 20), "outdoor activities", []string{"park", "outdoor restaurant", "rooftop bar", "trail"}},
		{"upper bound", snap(domain.ConditionClear, 25), "outdoor activities", []string{"park", "outdoor restaurant", "rooftop bar", "trail"}},
		{"cold clear", snap(domain.ConditionClear, 8), "warm indoor places", []string{"warm cafe", "cozy restaurant", "indoor market"}},
		{"snow", snap(domain.ConditionSnow, -2), "", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.w, slot(120))
			if got.Query != tt.query {
				t.Fatalf("query = %q, want %q", got.Query, tt.query)
			}
			if !reflect.DeepEqual(got.Categories, tt.cats) {
				t.Fatalf("categories = %v, want %v", got.Categories, tt.cats)
			}
		})
	}
}

func TestClassifyRainIncludesMuseumAndCafe(t *testing.T) {
	got := Classify(snap(domain.ConditionRain, 12), nil)
	if got.Query != "indoor activities" {
		t.Fatalf("unexpected query %q", got.Query)
	}
	var museum, cafe bool
	for _, c := range got.Categories {
		museum = museum || c == "museum"
		cafe = cafe || c == "cafe"
	}
	if !museum || !cafe {
		t.Fatalf("expected museum and cafe in %v", got.Categories)
	}
}

func TestClassifyShortSlotKeepsQuickService(t *testing.T) {
	got := Classify(snap(domain.ConditionRain, 12), slot(45))
	if !reflect.DeepEqual(got.Categories, []string{"cafe"}) {
		t.Fatalf("expected only cafe, got %v", got.Categories)
	}

	got = Classify(snap(domain.ConditionClear, 20), slot(45))
	if len(got.Categories) != 0 {
		t.Fatalf("outdoor list has no quick-service entry, got %v", got.Categories)
	}
}

func TestClassifyLongSlotAddsLeisure(t *testing.T) {
	got := Classify(snap(domain.ConditionClear, 30), slot(240))
	want := []string{"air-conditioned cafe", "indoor restaurant", "shopping center", "shopping center", "entertainment complex", "spa"}
	if !reflect.DeepEqual(got.Categories, want) {
		t.Fatalf("categories = %v, want %v", got.Categories, want)
	}
}

func TestClassifyNilWeather(t *testing.T) {
	got := Classify(nil, slot(60))
	if got.Query != "" || len(got.Categories) != 0 {
		t.Fatalf("expected empty classification, got %+v", got)
	}
}
