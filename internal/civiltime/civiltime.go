// Package civiltime converts wall-clock strings entered in Indian Standard
// Time into absolute instants. The offset is fixed and never read from the
// host's local zone.
package civiltime

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Offset is the fixed UTC offset of civil input (UTC+5:30).
const Offset = 5*time.Hour + 30*time.Minute

var ErrInvalidTimeFormat = errors.New("invalid time format")

var zone = time.FixedZone("IST", int(Offset/time.Second))

// Resolve parses "YYYY-MM-DDTHH:MM" (an optional ":SS" is tolerated) as
// civil time at Offset and returns the UTC instant.
func Resolve(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	date, clock, ok := strings.Cut(s, "T")
	if !ok {
		return time.Time{}, invalid(s, "missing 'T' separator")
	}

	dp := strings.Split(date, "-")
	if len(dp) != 3 {
		return time.Time{}, invalid(s, "date must be YYYY-MM-DD")
	}
	tp := strings.Split(clock, ":")
	if len(tp) != 2 && len(tp) != 3 {
		return time.Time{}, invalid(s, "time must be HH:MM")
	}

	year, err := field(dp[0], 4)
	if err != nil {
		return time.Time{}, invalid(s, "year "+err.Error())
	}
	month, err := field(dp[1], 2)
	if err != nil {
		return time.Time{}, invalid(s, "month "+err.Error())
	}
	day, err := field(dp[2], 2)
	if err != nil {
		return time.Time{}, invalid(s, "day "+err.Error())
	}
	hour, err := field(tp[0], 2)
	if err != nil {
		return time.Time{}, invalid(s, "hour "+err.Error())
	}
	minute, err := field(tp[1], 2)
	if err != nil {
		return time.Time{}, invalid(s, "minute "+err.Error())
	}
	sec := 0
	if len(tp) == 3 {
		if sec, err = field(tp[2], 2); err != nil {
			return time.Time{}, invalid(s, "second "+err.Error())
		}
	}

	switch {
	case month < 1 || month > 12:
		return time.Time{}, invalid(s, "month out of range")
	case day < 1 || day > daysIn(year, time.Month(month)):
		return time.Time{}, invalid(s, "day out of range")
	case hour > 23:
		return time.Time{}, invalid(s, "hour out of range")
	case minute > 59:
		return time.Time{}, invalid(s, "minute out of range")
	case sec > 59:
		return time.Time{}, invalid(s, "second out of range")
	}

	asUTC := time.Date(year, time.Month(month), day, hour, minute, sec, 0, time.UTC)
	return asUTC.Add(-Offset), nil
}

// Format renders an instant as civil time at Offset, e.g. "2025-06-20T23:00".
func Format(t time.Time) string {
	return t.In(zone).Format("2006-01-02T15:04")
}

func field(s string, width int) (int, error) {
	if len(s) != width {
		return 0, fmt.Errorf("must have %d digits", width)
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, errors.New("must be numeric")
		}
	}
	return strconv.Atoi(s)
}

func daysIn(year int, m time.Month) int {
	return time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func invalid(s, reason string) error {
	return fmt.Errorf("%w: %q: %s", ErrInvalidTimeFormat, s, reason)
}
