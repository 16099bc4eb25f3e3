package model

// WorkStationStatus is the operational state of a workstation.
type WorkStationStatus string

const (
	StationActive   WorkStationStatus = "active"
	StationInactive WorkStationStatus = "inactive"
)

// WorkStation is a bookable physical resource at a location.
type WorkStation struct {
	ID         string
	StudioID   string
	LocationID string
	Name       string
	Status     WorkStationStatus
}

// Active reports whether the station can take bookings.
func (w *WorkStation) Active() bool {
	return w.Status == StationActive
}

// Availability is an artist's declared open or blocked window.
// An empty LocationID applies to every location. StartDate and EndDate
// are inclusive calendar days; StartTime and EndTime bound a half-open
// daily interval.
type Availability struct {
	ID         string
	StudioID   string
	ArtistID   string
	LocationID string
	StartDate  string
	EndDate    string
	StartTime  string
	EndTime    string
	IsBlocked  bool
	Notes      string
}

// AvailabilityFilter selects availability windows. Zero fields do not constrain.
type AvailabilityFilter struct {
	StudioID    string
	ArtistID    string
	BlockedOnly bool
}

// WorkStationFilter selects workstations. Zero fields do not constrain.
type WorkStationFilter struct {
	StudioID   string
	LocationID string
	Status     WorkStationStatus
}
