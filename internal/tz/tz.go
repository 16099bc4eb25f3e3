// Package tz converts studio-local wall-clock values into absolute instants.
package tz

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"inkflow/internal/interval"
)

// ErrUnknownZone is returned for identifiers missing from the zone database.
var ErrUnknownZone = errors.New("unknown time zone")

const displayLayout = "Monday, January 2, 2006 at 3:04 PM MST"

var zones sync.Map // name -> *time.Location

// LoadLocation resolves an IANA zone name. An empty name means UTC.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	if loc, ok := zones.Load(name); ok {
		return loc.(*time.Location), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownZone, name)
	}
	zones.Store(name, loc)
	return loc, nil
}

// LocalToInstant converts a stored calendar date and wall-clock time at the
// given zone into the absolute instant it denotes. The wall clock is first
// read as if it were UTC, the zone offset in effect at that candidate is
// looked up, and the candidate is shifted back by that offset. When the
// shift crosses a DST transition the offset at the shifted instant is used
// instead, so the result always carries the offset of the appointment's own
// date.
func LocalToInstant(date, clock, zone string) (time.Time, error) {
	loc, err := LoadLocation(zone)
	if err != nil {
		return time.Time{}, err
	}
	day, err := interval.ParseDate(date)
	if err != nil {
		return time.Time{}, err
	}
	c, err := interval.ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}

	candidate := day.Add(time.Duration(c) * time.Minute)
	_, offset := candidate.In(loc).Zone()
	instant := candidate.Add(-time.Duration(offset) * time.Second)

	// A wall clock inside a spring-forward gap resolves with the offset before
	// the gap, as time.Date does: 02:30 on a New York change day is 01:30 EST.
	if _, actual := instant.In(loc).Zone(); actual != offset {
		instant = candidate.Add(-time.Duration(actual) * time.Second)
	}
	return instant.UTC(), nil
}

// FormatLocal renders a stored date and time for people, e.g.
// "Monday, January 5, 2026 at 2:00 PM EST". If the zone or values cannot
// be resolved it falls back to "2026-01-05 at 14:00 (zone)".
func FormatLocal(date, clock, zone string) string {
	if zone == "" {
		zone = "UTC"
	}
	instant, err := LocalToInstant(date, clock, zone)
	if err != nil {
		return fmt.Sprintf("%s at %s (%s)", date, clock, zone)
	}
	loc, _ := LoadLocation(zone)
	return instant.In(loc).Format(displayLayout)
}
