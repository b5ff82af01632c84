package utils

import (
	"time"
	_ "time/tzdata" // embedded zone database for minimal containers
)

// DefaultMarketTimezone is the zone US equity sessions are quoted in.
const DefaultMarketTimezone = "America/New_York"

// DateLayout is the calendar date format used on the wire.
const DateLayout = "2006-01-02"

// LoadLocation resolves a timezone name, falling back to UTC when the name
// is empty or unknown.
func LoadLocation(name string) *time.Location {
	if name == "" {
		name = DefaultMarketTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ParseDay parses a YYYY-MM-DD date as midnight in loc.
func ParseDay(s string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, loc)
}

// DayBounds returns [start, end) of the calendar day containing t in loc.
func DayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	d := t.In(loc)
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

// FormatDate formats t as YYYY-MM-DD in loc.
func FormatDate(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DateLayout)
}

// MarketOpenTime returns the regular session open (9:30 AM) for the given date.
func MarketOpenTime(date time.Time, loc *time.Location) time.Time {
	d := date.In(loc)
	return time.Date(d.Year(), d.Month(), d.Day(), 9, 30, 0, 0, loc)
}

// MarketCloseTime returns the regular session close (4:00 PM) for the given date.
func MarketCloseTime(date time.Time, loc *time.Location) time.Time {
	d := date.In(loc)
	return time.Date(d.Year(), d.Month(), d.Day(), 16, 0, 0, 0, loc)
}

// PreMarketStart returns the extended-hours pre-market start (4:00 AM).
func PreMarketStart(date time.Time, loc *time.Location) time.Time {
	d := date.In(loc)
	return time.Date(d.Year(), d.Month(), d.Day(), 4, 0, 0, 0, loc)
}

// AfterHoursEnd returns the extended-hours session end (8:00 PM).
func AfterHoursEnd(date time.Time, loc *time.Location) time.Time {
	d := date.In(loc)
	return time.Date(d.Year(), d.Month(), d.Day(), 20, 0, 0, 0, loc)
}

// MarketStatus returns the session state for t. Exchange holidays are not tracked.
func MarketStatus(t time.Time, loc *time.Location) string {
	now := t.In(loc)

	if now.Weekday() == time.Saturday || now.Weekday() == time.Sunday {
		return "CLOSED (Weekend)"
	}

	switch {
	case now.Before(PreMarketStart(now, loc)):
		return "CLOSED"
	case now.Before(MarketOpenTime(now, loc)):
		return "PRE-MARKET"
	case now.Before(MarketCloseTime(now, loc)):
		return "OPEN"
	case now.Before(AfterHoursEnd(now, loc)):
		return "AFTER-HOURS"
	default:
		return "CLOSED"
	}
}
