package common

import "testing"

func TestHasAny(t *testing.T) {
	if !HasAny("warm cafe", "coffee", "cafe") {
		t.Fatal("expected match on cafe")
	}
	if HasAny("park", "cafe", "quick") {
		t.Fatal("unexpected match")
	}
	if HasAny("anything") {
		t.Fatal("no substrings should never match")
	}
}

func TestFirstNonEmpty(t *testing.T) {
	if got := FirstNonEmpty("", "  ", " key ", "other"); got != "key" {
		t.Fatalf("expected key, got %q", got)
	}
	if got := FirstNonEmpty("", ""); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}
