package timecode

import (
	"math"
	"testing"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"0", 0},
		{"45", 45},
		{"1:30", 90},
		{"01:05", 65},
		{"1:02:03", 3723},
		{"99:59:59", 359999},
		{" 2:00 ", 120},
		{"90:00", 5400},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseClock(tt.in)
			if err != nil {
				t.Fatalf("ParseClock(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseClock(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseClock_Invalid(t *testing.T) {
	tests := []string{"", "abc", "1:2:3:4", "1:xx", "-5"}

	for _, in := range tests {
		t.Run(in, func(t *testing.T) {
			if _, err := ParseClock(in); err == nil {
				t.Errorf("ParseClock(%q) should fail", in)
			}
		})
	}
}

func TestFormatClock(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "00:00:00"},
		{59, "00:00:59"},
		{61, "00:01:01"},
		{3723, "01:02:03"},
		{3723.9, "01:02:03"},
		{359999, "99:59:59"},
		{-1, "00:00:00"},
		{math.NaN(), "00:00:00"},
	}

	for _, tt := range tests {
		if got := FormatClock(tt.in); got != tt.want {
			t.Errorf("FormatClock(%v) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

// ParseClock(FormatClock(s)) == s must hold for every whole second up to 99:59:59.
func TestClockRoundTrip(t *testing.T) {
	for s := int64(0); s <= 359999; s++ {
		formatted := FormatClock(float64(s))
		parsed, err := ParseClock(formatted)
		if err != nil {
			t.Fatalf("ParseClock(%q) error = %v", formatted, err)
		}
		if parsed != float64(s) {
			t.Fatalf("round trip failed for %d: formatted %q parsed %v", s, formatted, parsed)
		}
	}
}
