package interval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    Clock
		wantErr bool
	}{
		{"00:00", 0, false},
		{"09:30", 570, false},
		{"14:00:00", 840, false},
		{"24:00", 1440, false},
		{"24:30", 0, true},
		{"9", 0, true},
		{"ab:00", 0, true},
		{"10:60", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseClock(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrBadClock)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClockString(t *testing.T) {
	assert.Equal(t, "09:05", Clock(545).String())
	assert.Equal(t, "25:00", Clock(1500).String())
	assert.Equal(t, 1, Clock(1500).DayOffset())
	assert.Equal(t, Clock(60), Clock(1500).InDay())
}

func TestMinutes(t *testing.T) {
	m, err := Minutes(1.5)
	require.NoError(t, err)
	assert.Equal(t, 90, m)

	m, err = Minutes(0.5)
	require.NoError(t, err)
	assert.Equal(t, 30, m)

	for _, bad := range []float64{0, -1, 0.25, 1.2} {
		_, err := Minutes(bad)
		assert.ErrorIs(t, err, ErrBadDuration, "hours=%v", bad)
	}
}

func TestSpanOverlaps(t *testing.T) {
	existing := Span{Start: 600, End: 720} // 10:00-12:00

	tests := []struct {
		name string
		span Span
		want bool
	}{
		{"ends when other starts", Span{Start: 540, End: 600}, false},
		{"starts when other ends", Span{Start: 720, End: 780}, false},
		{"straddles start", Span{Start: 570, End: 630}, true},
		{"inside", Span{Start: 630, End: 660}, true},
		{"covers", Span{Start: 540, End: 780}, true},
		{"disjoint", Span{Start: 800, End: 900}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.span.Overlaps(existing))
			assert.Equal(t, tt.want, existing.Overlaps(tt.span), "overlap must be symmetric")
		})
	}
}

func TestSpanIntersection(t *testing.T) {
	a, err := SpanFor("09:30", 1)
	require.NoError(t, err)
	b, err := SpanFor("10:00", 2)
	require.NoError(t, err)

	got, ok := a.Intersection(b)
	require.True(t, ok)
	assert.Equal(t, "10:00-10:30", got.String())
	assert.Equal(t, 30*time.Minute, got.Duration())

	_, ok = Span{Start: 0, End: 60}.Intersection(Span{Start: 60, End: 120})
	assert.False(t, ok)
}

func TestParseSpan(t *testing.T) {
	s, err := ParseSpan("09:00", "17:00")
	require.NoError(t, err)
	assert.Equal(t, Span{Start: 540, End: 1020}, s)

	_, err = ParseSpan("17:00", "09:00")
	assert.ErrorIs(t, err, ErrEmptySpan)
}

func TestDateRangeContains(t *testing.T) {
	r, err := ParseDateRange("2026-03-01", "2026-03-03")
	require.NoError(t, err)

	day := func(s string) time.Time {
		d, err := ParseDate(s)
		require.NoError(t, err)
		return d
	}

	assert.True(t, r.Contains(day("2026-03-01")))
	assert.True(t, r.Contains(day("2026-03-02")))
	assert.True(t, r.Contains(day("2026-03-03")))
	assert.False(t, r.Contains(day("2026-02-28")))
	assert.False(t, r.Contains(day("2026-03-04")))

	// Time of day never pushes a day out of the range.
	late := time.Date(2026, 3, 3, 23, 59, 0, 0, time.UTC)
	assert.True(t, r.Contains(late))
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2026-01-05T00:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC), d)

	_, err = ParseDate("05/01/2026")
	assert.ErrorIs(t, err, ErrBadDate)
}
