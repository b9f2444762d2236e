package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOTPRequired(t *testing.T) {
	tests := []struct {
		name     string
		date     string
		timezone string
		now      time.Time
		want     bool
	}{
		{"day before start", "01-06-2025", "", time.Date(2025, 5, 31, 23, 59, 0, 0, time.UTC), false},
		{"start day", "01-06-2025", "", time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), true},
		{"after start", "01-06-2025", "UTC", time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC), true},
		{"unset is required", "", "", time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), true},
		{"unparsable is required", "2025-06-01", "", time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), true},
		{"impossible date is required", "31-02-2025", "", time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), true},
		// 22:30 UTC on 31 May is already 1 June in Berlin (UTC+2).
		{"zone ahead of utc", "01-06-2025", "Europe/Berlin", time.Date(2025, 5, 31, 22, 30, 0, 0, time.UTC), true},
		// 02:00 UTC on 1 June is still 31 May in New York.
		{"zone behind utc", "01-06-2025", "America/New_York", time.Date(2025, 6, 1, 2, 0, 0, 0, time.UTC), false},
		{"unknown zone uses utc", "01-06-2025", "Mars/Olympus", time.Date(2025, 5, 31, 12, 0, 0, 0, time.UTC), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OTPRequired(tt.date, tt.timezone, tt.now))
		})
	}
}
