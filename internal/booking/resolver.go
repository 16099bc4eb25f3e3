// Package booking validates proposed appointments against an artist's
// calendar, their blocked windows and workstation capacity.
package booking

import (
	"errors"
	"fmt"
	"math"
	"time"

	"inkflow/internal/interval"
	"inkflow/internal/model"
)

// ErrInvalidProposal is returned when a proposal lacks the fields needed to
// evaluate it.
var ErrInvalidProposal = errors.New("invalid proposal")

// ConflictKind names the reason a proposal cannot be saved as is.
type ConflictKind string

const (
	ArtistBlocked      ConflictKind = "artist_blocked"
	ArtistDoubleBooked ConflictKind = "artist_double_booked"
	StationsFull       ConflictKind = "stations_full"
)

const stationsFullDetail = "All work stations at this location are booked for the selected time."

// Proposal is an appointment as the booking form would save it.
type Proposal struct {
	ArtistID      string
	LocationID    string
	Date          string
	StartTime     string
	DurationHours float64

	// ExcludeAppointmentID is the appointment being edited, if any.
	ExcludeAppointmentID string
	// CurrentWorkStationID is the station the edited appointment holds now.
	// When empty it is looked up in the snapshot.
	CurrentWorkStationID string
	// WorkStationID is the station the caller picked, if any.
	WorkStationID string
}

// Snapshot is the data the resolver reads. LocationNames labels conflict
// details and may be nil.
type Snapshot struct {
	Appointments   []model.Appointment
	Availabilities []model.Availability
	WorkStations   []model.WorkStation
	LocationNames  map[string]string
}

// Conflict describes one reason the proposal collides with existing data.
type Conflict struct {
	Kind   ConflictKind `json:"kind"`
	Detail string       `json:"detail"`
	// Window is the colliding block or appointment. Zero for StationsFull.
	Window         interval.Span `json:"-"`
	LocationID     string        `json:"location_id,omitempty"`
	AppointmentID  string        `json:"appointment_id,omitempty"`
	AvailabilityID string        `json:"availability_id,omitempty"`
}

// Result is the resolver outcome.
type Result struct {
	Conflicts []Conflict
	// Candidates are the stations the proposal may be assigned to. Only
	// filled when StationsChecked is true.
	Candidates      []model.WorkStation
	StationsChecked bool
	// AssignableWorkStationID echoes the requested station when it is one
	// of the candidates.
	AssignableWorkStationID string
}

// OK reports whether no conflict was found.
func (r Result) OK() bool {
	return len(r.Conflicts) == 0
}

// Has reports whether a conflict of the given kind was found.
func (r Result) Has(kind ConflictKind) bool {
	for _, c := range r.Conflicts {
		if c.Kind == kind {
			return true
		}
	}
	return false
}

// IsCandidate reports whether stationID may host the proposal.
func (r Result) IsCandidate(stationID string) bool {
	for _, ws := range r.Candidates {
		if ws.ID == stationID {
			return true
		}
	}
	return false
}

// Resolve checks a proposal against a snapshot. It performs no I/O and
// returns an error only for a malformed proposal; collisions are reported
// in the Result.
//
// A matching blocked window wins over a double booking, and only one of the
// two is reported. Station capacity is checked independently whenever a
// location is set, so StationsFull may accompany either.
func Resolve(p Proposal, snap Snapshot) (Result, error) {
	if p.ArtistID == "" {
		return Result{}, fmt.Errorf("%w: artist is required", ErrInvalidProposal)
	}
	day, err := interval.ParseDate(p.Date)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidProposal, err)
	}
	span, err := interval.SpanFor(p.StartTime, p.DurationHours)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidProposal, err)
	}

	var res Result
	if c, ok := findBlock(p, day, span, snap); ok {
		res.Conflicts = append(res.Conflicts, c)
	} else if c, ok := findDoubleBooking(p, day, span, snap); ok {
		res.Conflicts = append(res.Conflicts, c)
	}

	if p.LocationID != "" {
		res.StationsChecked = true
		res.Candidates = candidateStations(p, day, span, snap)
		if len(res.Candidates) == 0 {
			res.Conflicts = append(res.Conflicts, Conflict{
				Kind:       StationsFull,
				Detail:     stationsFullDetail,
				LocationID: p.LocationID,
			})
		} else if p.WorkStationID != "" && res.IsCandidate(p.WorkStationID) {
			res.AssignableWorkStationID = p.WorkStationID
		}
	}

	return res, nil
}

func findBlock(p Proposal, day time.Time, span interval.Span, snap Snapshot) (Conflict, bool) {
	for _, av := range snap.Availabilities {
		if !av.IsBlocked || av.ArtistID != p.ArtistID {
			continue
		}
		if av.LocationID != "" && av.LocationID != p.LocationID {
			continue
		}
		dates, err := interval.ParseDateRange(av.StartDate, av.EndDate)
		if err != nil || !dates.Contains(day) {
			continue
		}
		window, err := interval.ParseSpan(av.StartTime, av.EndTime)
		if err != nil || !span.Overlaps(window) {
			continue
		}

		where := "all locations"
		if av.LocationID != "" {
			where = snap.locationName(av.LocationID, "this location")
		}
		return Conflict{
			Kind:           ArtistBlocked,
			Detail:         fmt.Sprintf("This artist is unavailable from %s to %s at %s.", window.Start, window.End, where),
			Window:         window,
			LocationID:     av.LocationID,
			AvailabilityID: av.ID,
		}, true
	}
	return Conflict{}, false
}

func findDoubleBooking(p Proposal, day time.Time, span interval.Span, snap Snapshot) (Conflict, bool) {
	for i := range snap.Appointments {
		apt := &snap.Appointments[i]
		if apt.ArtistID != p.ArtistID || !occupiesDuring(apt, p, day, span) {
			continue
		}
		window, _ := spanOf(apt)
		return Conflict{
			Kind: ArtistDoubleBooked,
			Detail: fmt.Sprintf("This artist is already booked from %s to %s at %s.",
				window.Start, window.End, snap.locationName(apt.LocationID, "another location")),
			Window:        window,
			LocationID:    apt.LocationID,
			AppointmentID: apt.ID,
		}, true
	}
	return Conflict{}, false
}

func candidateStations(p Proposal, day time.Time, span interval.Span, snap Snapshot) []model.WorkStation {
	current := p.CurrentWorkStationID
	if current == "" && p.ExcludeAppointmentID != "" {
		for i := range snap.Appointments {
			if snap.Appointments[i].ID == p.ExcludeAppointmentID {
				current = snap.Appointments[i].WorkStationID
				break
			}
		}
	}

	occupied := make(map[string]bool)
	for i := range snap.Appointments {
		apt := &snap.Appointments[i]
		if !apt.HasStation() || apt.LocationID != p.LocationID {
			continue
		}
		if occupiesDuring(apt, p, day, span) {
			occupied[apt.WorkStationID] = true
		}
	}

	candidates := make([]model.WorkStation, 0, len(snap.WorkStations))
	for _, ws := range snap.WorkStations {
		if ws.LocationID != p.LocationID || !ws.Active() {
			continue
		}
		if occupied[ws.ID] && ws.ID != current {
			continue
		}
		candidates = append(candidates, ws)
	}
	return candidates
}

// occupiesDuring reports whether apt is a live appointment, other than the
// one being edited, on day whose interval overlaps span.
func occupiesDuring(apt *model.Appointment, p Proposal, day time.Time, span interval.Span) bool {
	if p.ExcludeAppointmentID != "" && apt.ID == p.ExcludeAppointmentID {
		return false
	}
	if !apt.Status.Occupies() {
		return false
	}
	d, err := interval.ParseDate(apt.Date)
	if err != nil || !d.Equal(day) {
		return false
	}
	window, ok := spanOf(apt)
	return ok && span.Overlaps(window)
}

// spanOf is lenient with stored records: durations are rounded to the
// minute rather than rejected for breaking half-hour granularity.
func spanOf(apt *model.Appointment) (interval.Span, bool) {
	start, err := interval.ParseClock(apt.StartTime)
	if err != nil {
		return interval.Span{}, false
	}
	minutes := int(math.Round(apt.DurationHours * 60))
	if minutes <= 0 {
		return interval.Span{}, false
	}
	return interval.Span{Start: start, End: start + interval.Clock(minutes)}, true
}

func (s Snapshot) locationName(id, fallback string) string {
	if name := s.LocationNames[id]; name != "" {
		return name
	}
	return fallback
}
