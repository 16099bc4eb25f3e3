// Package interval provides minute-of-day clocks, half-open spans and
// inclusive calendar date ranges.
package interval

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	// DateLayout is the calendar date format used by stored records.
	DateLayout = "2006-01-02"

	// Granularity is the smallest bookable duration step in minutes.
	Granularity = 30

	minutesPerDay = 24 * 60
)

var (
	ErrBadClock    = errors.New("invalid time of day")
	ErrBadDate     = errors.New("invalid calendar date")
	ErrBadDuration = errors.New("duration must be a positive multiple of half an hour")
	ErrEmptySpan   = errors.New("span end must be after start")
)

// Clock is a wall-clock time expressed as minutes after midnight.
// Values past 24:00 are allowed for spans that run over midnight.
type Clock int

// ParseClock parses "HH:MM" (a trailing ":SS" is accepted and ignored).
func ParseClock(s string) (Clock, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("%w: %q", ErrBadClock, s)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 24 {
		return 0, fmt.Errorf("%w: bad hour in %q", ErrBadClock, s)
	}

	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("%w: bad minute in %q", ErrBadClock, s)
	}

	if hour == 24 && minute != 0 {
		return 0, fmt.Errorf("%w: %q", ErrBadClock, s)
	}

	return Clock(hour*60 + minute), nil
}

// Hour returns the hour component.
func (c Clock) Hour() int { return int(c) / 60 }

// Minute returns the minute component.
func (c Clock) Minute() int { return int(c) % 60 }

// DayOffset returns how many whole days past the start day c falls on.
func (c Clock) DayOffset() int { return int(c) / minutesPerDay }

// InDay returns c folded into a single day.
func (c Clock) InDay() Clock { return c % minutesPerDay }

// String renders HH:MM without folding, so 25:00 stays 25:00.
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// Minutes converts a duration in hours to whole minutes, enforcing the
// half-hour granularity.
func Minutes(hours float64) (int, error) {
	if hours <= 0 || math.IsNaN(hours) || math.IsInf(hours, 0) {
		return 0, fmt.Errorf("%w: %v", ErrBadDuration, hours)
	}
	minutes := hours * 60
	if minutes != math.Trunc(minutes) || int(minutes)%Granularity != 0 {
		return 0, fmt.Errorf("%w: %v", ErrBadDuration, hours)
	}
	return int(minutes), nil
}

// Span is the half-open interval [Start, End).
type Span struct {
	Start Clock
	End   Clock
}

// SpanFor builds the span of a booking starting at start and lasting hours.
func SpanFor(start string, hours float64) (Span, error) {
	s, err := ParseClock(start)
	if err != nil {
		return Span{}, err
	}
	minutes, err := Minutes(hours)
	if err != nil {
		return Span{}, err
	}
	return Span{Start: s, End: s + Clock(minutes)}, nil
}

// ParseSpan parses a "from"/"to" pair of clocks.
func ParseSpan(from, to string) (Span, error) {
	s, err := ParseClock(from)
	if err != nil {
		return Span{}, err
	}
	e, err := ParseClock(to)
	if err != nil {
		return Span{}, err
	}
	if e <= s {
		return Span{}, fmt.Errorf("%w: %s-%s", ErrEmptySpan, from, to)
	}
	return Span{Start: s, End: e}, nil
}

// Overlaps reports whether the spans share any minute. Touching endpoints
// do not overlap.
func (s Span) Overlaps(o Span) bool {
	return s.Start < o.End && s.End > o.Start
}

// Intersection returns the shared part of two overlapping spans.
func (s Span) Intersection(o Span) (Span, bool) {
	if !s.Overlaps(o) {
		return Span{}, false
	}
	out := s
	if o.Start > out.Start {
		out.Start = o.Start
	}
	if o.End < out.End {
		out.End = o.End
	}
	return out, true
}

// Duration returns the span length.
func (s Span) Duration() time.Duration {
	return time.Duration(s.End-s.Start) * time.Minute
}

func (s Span) String() string {
	return s.Start.String() + "-" + s.End.String()
}

// ParseDate parses a YYYY-MM-DD calendar date. Longer timestamp strings are
// cut to their date part.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrBadDate, s)
	}
	return d, nil
}

// DateRange is an inclusive range of whole calendar days.
type DateRange struct {
	From time.Time
	To   time.Time
}

// ParseDateRange parses both bounds of an inclusive range.
func ParseDateRange(from, to string) (DateRange, error) {
	f, err := ParseDate(from)
	if err != nil {
		return DateRange{}, err
	}
	t, err := ParseDate(to)
	if err != nil {
		return DateRange{}, err
	}
	return DateRange{From: f, To: t}, nil
}

// Contains reports whether day falls on or between the range bounds,
// comparing calendar days only.
func (r DateRange) Contains(day time.Time) bool {
	d := truncateDay(day)
	return !d.Before(truncateDay(r.From)) && !d.After(truncateDay(r.To))
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
