package ui

import "testing"

func TestStatusLabel(t *testing.T) {
	tests := []struct {
		running, paused bool
		want            string
	}{
		{false, false, "Idle"},
		{true, false, "Cutting"},
		{false, true, "Paused"},
		// a paused queue finishing its batch still shows as cutting
		{true, true, "Cutting"},
	}
	for _, tt := range tests {
		if got := statusLabel(tt.running, tt.paused); got != tt.want {
			t.Errorf("statusLabel(%v, %v) = %q, want %q", tt.running, tt.paused, got, tt.want)
		}
	}
}
