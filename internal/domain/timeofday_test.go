package domain

import (
	"testing"
	"time"
)

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in      string
		want    TimeOfDay
		wantErr bool
	}{
		{"09:20", TimeOfDay{9, 20, 0}, false},
		{"15:15:30", TimeOfDay{15, 15, 30}, false},
		{"24:00", TimeOfDay{}, true},
		{"9:20", TimeOfDay{}, true},
		{"garbage", TimeOfDay{}, true},
	}

	for _, tt := range tests {
		got, err := ParseTimeOfDay(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseTimeOfDay(%q): expected error, got %v", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseTimeOfDay(%q) failed: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseTimeOfDay(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestTimeOfDay_ReachedBy(t *testing.T) {
	exit := TimeOfDay{15, 15, 0}

	before := time.Date(2025, time.June, 5, 15, 14, 59, 0, time.UTC)
	if exit.ReachedBy(before) {
		t.Errorf("15:14:59 should not reach 15:15:00")
	}

	at := time.Date(2025, time.June, 5, 15, 15, 0, 0, time.UTC)
	if !exit.ReachedBy(at) {
		t.Errorf("15:15:00 should reach 15:15:00")
	}

	after := time.Date(2025, time.June, 5, 15, 15, 1, 0, time.UTC)
	if !exit.ReachedBy(after) {
		t.Errorf("15:15:01 should reach 15:15:00")
	}
}
