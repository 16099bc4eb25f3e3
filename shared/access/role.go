package access

import "strings"

// Role is a studio member's permission level.
type Role int

const (
	RoleUnknown Role = iota
	RoleOwner
	RoleAdmin
	RoleFrontDesk
	RoleArtist
)

// ParseRole normalizes stored role strings such as "Front Desk",
// "front_desk" or "FrontDesk".
func ParseRole(s string) Role {
	normalized := strings.ToLower(strings.Join(strings.Fields(s), "_"))
	switch normalized {
	case "owner":
		return RoleOwner
	case "admin":
		return RoleAdmin
	case "front_desk", "frontdesk":
		return RoleFrontDesk
	case "artist":
		return RoleArtist
	}
	return RoleUnknown
}

func (r Role) String() string {
	switch r {
	case RoleOwner:
		return "owner"
	case RoleAdmin:
		return "admin"
	case RoleFrontDesk:
		return "front_desk"
	case RoleArtist:
		return "artist"
	}
	return "unknown"
}

// IsAdmin reports whether the role has administrative rights.
func (r Role) IsAdmin() bool {
	return r == RoleOwner || r == RoleAdmin
}

// IsStaff reports whether the role manages bookings for every artist.
func (r Role) IsStaff() bool {
	return r.IsAdmin() || r == RoleFrontDesk
}

// Actor is a resolved studio member acting on a request.
type Actor struct {
	UserID   string
	StudioID string
	Role     Role
	// ArtistID links an artist member to their bookable profile.
	ArtistID string
}

// Appointment is the slice of an appointment the permission rules need.
type Appointment struct {
	ArtistID  string
	Completed bool
}

// CanCreate reports whether the actor may book for the given artist.
func (a Actor) CanCreate(artistID string) bool {
	if a.Role.IsStaff() {
		return true
	}
	return a.Role == RoleArtist && a.ArtistID != "" && a.ArtistID == artistID
}

// CanEdit reports whether the actor may modify an existing appointment.
// Completed appointments are locked to everyone but admins.
func (a Actor) CanEdit(apt Appointment) bool {
	if apt.Completed {
		return a.Role.IsAdmin()
	}
	if a.Role.IsStaff() {
		return true
	}
	return a.ownsArtist(apt.ArtistID)
}

// CanChangeArtist reports whether the actor may reassign the artist.
func (a Actor) CanChangeArtist() bool {
	return a.Role.IsStaff()
}

// CanDelete reports whether the actor may remove the appointment record.
// Only staff delete; artists cancel instead.
func (a Actor) CanDelete(apt Appointment) bool {
	return !apt.Completed && a.Role.IsStaff()
}

// CanCancel reports whether the actor may mark the appointment cancelled.
func (a Actor) CanCancel(apt Appointment) bool {
	return !apt.Completed && a.CanEdit(apt)
}

// CancelsOnDelete reports whether a delete by this actor becomes a
// cancellation.
func (a Actor) CancelsOnDelete() bool {
	return a.Role == RoleArtist
}

// CanUnlock reports whether the actor may reopen a completed appointment.
func (a Actor) CanUnlock(apt Appointment) bool {
	return apt.Completed && a.Role.IsAdmin()
}

func (a Actor) ownsArtist(artistID string) bool {
	return a.Role == RoleArtist && a.ArtistID != "" && a.ArtistID == artistID
}
