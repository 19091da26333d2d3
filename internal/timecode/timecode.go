// Package timecode converts between clock-style time strings and seconds.
package timecode

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var ErrInvalidClock = errors.New("invalid clock value")

// ParseClock converts "SS", "MM:SS" or "HH:MM:SS" into seconds.
// Each colon-separated group must be numeric and the result non-negative.
func ParseClock(text string) (float64, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, fmt.Errorf("%w: empty string", ErrInvalidClock)
	}

	parts := strings.Split(text, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("%w: %q has more than 3 groups", ErrInvalidClock, text)
	}

	var seconds float64
	for _, part := range parts {
		n, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not numeric", ErrInvalidClock, part)
		}
		seconds = seconds*60 + n
	}

	if seconds < 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return 0, fmt.Errorf("%w: %q is negative", ErrInvalidClock, text)
	}
	return seconds, nil
}

// FormatClock renders seconds as zero-padded "HH:MM:SS".
// Fractional seconds are floored; NaN and negative values render as "00:00:00".
func FormatClock(totalSeconds float64) string {
	if math.IsNaN(totalSeconds) || totalSeconds < 0 {
		return "00:00:00"
	}
	whole := int64(math.Floor(totalSeconds))
	hours := whole / 3600
	minutes := (whole % 3600) / 60
	seconds := whole % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}
