package auth

import (
	"strings"
	"time"
	_ "time/tzdata" // OTP_TIMEZONE must resolve on hosts without a zoneinfo database
)

// OTPDateLayout is the DD-MM-YYYY layout of OTP_START_DATE.
const OTPDateLayout = "02-01-2006"

// OTPRequired reports whether the passcode step applies at now: true from
// startDate (inclusive, in timezone) onward. An empty or unparsable date
// means required. An unknown timezone falls back to UTC.
func OTPRequired(startDate, timezone string, now time.Time) bool {
	startDate = strings.TrimSpace(startDate)
	if startDate == "" {
		return true
	}

	loc := time.UTC
	if tz := strings.TrimSpace(timezone); tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		}
	}

	start, err := time.ParseInLocation(OTPDateLayout, startDate, loc)
	if err != nil {
		return true
	}

	y, m, d := now.In(loc).Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, loc)
	return !today.Before(start)
}
