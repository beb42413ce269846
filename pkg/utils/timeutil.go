package utils

import (
	"encoding/json"
	"math"
	"strconv"
	"time"
)

// NewYork is the US equity/options exchange time zone.
var NewYork *time.Location

func init() {
	var err error
	NewYork, err = time.LoadLocation("America/New_York")
	if err != nil {
		// Fallback: fixed EST if the tz database is not available.
		NewYork = time.FixedZone("EST", -5*60*60)
	}
}

// NowNY returns the current time in New York.
func NowNY() time.Time {
	return time.Now().In(NewYork)
}

// TodayNY returns the current New York trading-day date as "2006-01-02".
func TodayNY() string {
	return NowNY().Format("2006-01-02")
}

// DateNY formats a time as an ISO date in New York.
func DateNY(t time.Time) string {
	return t.In(NewYork).Format("2006-01-02")
}

// ParseDate parses an ISO "2006-01-02" date as UTC midnight.
func ParseDate(dateStr string) (time.Time, error) {
	return time.Parse("2006-01-02", dateStr)
}

// MarketOpenTime returns the regular-session open (9:30 AM ET) for a date.
func MarketOpenTime(date time.Time) time.Time {
	d := date.In(NewYork)
	return time.Date(d.Year(), d.Month(), d.Day(), 9, 30, 0, 0, NewYork)
}

// MarketCloseTime returns the regular-session close (4:00 PM ET) for a date.
func MarketCloseTime(date time.Time) time.Time {
	d := date.In(NewYork)
	return time.Date(d.Year(), d.Month(), d.Day(), 16, 0, 0, 0, NewYork)
}

// IsMarketOpen checks if the US equity regular session is currently open.
func IsMarketOpen() bool {
	return IsMarketOpenAt(NowNY())
}

// IsMarketOpenAt checks if the regular session would be open at t.
// Weekends only; exchange holidays are not tracked here.
func IsMarketOpenAt(t time.Time) bool {
	t = t.In(NewYork)
	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		return false
	}
	open := MarketOpenTime(t)
	close := MarketCloseTime(t)
	return !t.Before(open) && !t.After(close)
}

// MarketStatus returns a human-readable market status string.
func MarketStatus() string {
	now := NowNY()

	if now.Weekday() == time.Saturday || now.Weekday() == time.Sunday {
		return "CLOSED (Weekend)"
	}

	open := MarketOpenTime(now)
	close := MarketCloseTime(now)

	switch {
	case now.Before(open):
		return "PRE-MARKET"
	case !now.After(close):
		return "OPEN"
	default:
		return "CLOSED"
	}
}

// FormatDateTimeNY formats a time as "2006-01-02 15:04:05 ET".
func FormatDateTimeNY(t time.Time) string {
	return t.In(NewYork).Format("2006-01-02 15:04:05 ET")
}

// nsFloor is the smallest epoch value treated as nanoseconds. A millisecond
// epoch of 1e15 would be the year 33658, so anything that large can only be
// a nanosecond timestamp.
const nsFloor = 1e15

// EpochMillis normalizes a vendor epoch timestamp to milliseconds.
// Vendors mix nanosecond and millisecond scales, and some emit integers
// wider than int64 as strings; those are parsed through float64.
// Returns false for empty or unparseable values.
func EpochMillis(n json.Number) (int64, bool) {
	s := n.String()
	if s == "" {
		return 0, false
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		if v <= 0 {
			return 0, false
		}
		if v >= nsFloor {
			return v / 1_000_000, true
		}
		return v, true
	}
	// Big-integer-like or scientific-notation input.
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return 0, false
	}
	if f >= nsFloor {
		f /= 1e6
	}
	return int64(f), true
}
