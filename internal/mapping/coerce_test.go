package mapping

import (
	"testing"
)

func TestCoerceTimestamps(t *testing.T) {
	cases := []struct {
		in   any
		want any
	}{
		{"2026-03-15T10:30:00Z", "2026-03-15T10:30:00Z"},
		{"2026-03-15 10:30:00", "2026-03-15T10:30:00Z"},
		{"2026-03-15", "2026-03-15T00:00:00Z"},
		{"not a date", "not a date"}, // passthrough, never an error
		{42.0, 42.0},
	}
	for _, tc := range cases {
		if got := Coerce("close_date", tc.in); got != tc.want {
			t.Errorf("Coerce(close_date, %v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestCoerceDateMarkerWinsOverAmount(t *testing.T) {
	// amount_updated_at names a timestamp, not a decimal
	got := Coerce("amount_updated_at", "2026-01-02")
	if got != "2026-01-02T00:00:00Z" {
		t.Errorf("got %v, want timestamp coercion", got)
	}
}

func TestCoerceDecimals(t *testing.T) {
	cases := []struct {
		in   any
		want any
	}{
		{"125000.50", 125000.50},
		{"$1,250,000", 1250000.0},
		{125000, 125000.0},
		{"  99.9 ", 99.9},
		{"twelve", nil},
		{"", nil},
		{true, nil},
	}
	for _, tc := range cases {
		if got := Coerce("amount", tc.in); got != tc.want {
			t.Errorf("Coerce(amount, %v) = %v, want %v", tc.in, got, tc.want)
		}
	}
	if got := Coerce("annual_revenue", "2500000"); got != 2500000.0 {
		t.Errorf("annual_revenue = %v", got)
	}
}

func TestCoerceProbability(t *testing.T) {
	cases := []struct {
		in   any
		want any
	}{
		{"60", 60.0},
		{75.5, 75.5},
		{0, 0.0},
		{100, 100.0},
		{"101", nil},
		{-1, nil},
		{"high", nil},
	}
	for _, tc := range cases {
		if got := Coerce("probability", tc.in); got != tc.want {
			t.Errorf("Coerce(probability, %v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestCoerceIntegers(t *testing.T) {
	cases := []struct {
		in   any
		want any
	}{
		{"250", int64(250)},
		{250.0, int64(250)},
		{"many", nil},
	}
	for _, tc := range cases {
		if got := Coerce("employees", tc.in); got != tc.want {
			t.Errorf("Coerce(employees, %v) = %v, want %v", tc.in, got, tc.want)
		}
	}
	if got := Coerce("seat_count", "12"); got != int64(12) {
		t.Errorf("seat_count = %v", got)
	}
}

func TestCoerceDefaultTrimsStrings(t *testing.T) {
	if got := Coerce("name", "  Acme Corp  "); got != "Acme Corp" {
		t.Errorf("got %q", got)
	}
	if got := Coerce("name", 7); got != 7 {
		t.Errorf("non-strings pass through, got %v", got)
	}
}
