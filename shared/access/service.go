// Package access resolves studio members into typed actors and checks
// their booking permissions.
package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// ErrMemberNotFound is returned when a user does not belong to the studio.
var ErrMemberNotFound = errors.New("member not found")

// Member is a stored studio membership.
type Member struct {
	UserID   string
	StudioID string
	Role     string
	ArtistID string
}

// MemberRepository provides access to studio memberships.
type MemberRepository interface {
	// GetMember returns the membership of userID in studioID or ErrMemberNotFound.
	GetMember(ctx context.Context, studioID, userID string) (*Member, error)
}

// Service resolves actors and enforces booking permissions.
type Service struct {
	members MemberRepository
	logger  zerolog.Logger
}

// NewService creates a new access control service.
func NewService(members MemberRepository, logger zerolog.Logger) *Service {
	return &Service{
		members: members,
		logger:  logger.With().Str("component", "access").Logger(),
	}
}

// Resolve loads the member once and returns the typed actor for the request.
func (s *Service) Resolve(ctx context.Context, studioID, userID string) (Actor, error) {
	if userID == "" {
		return Actor{}, &AccessDeniedError{Reason: "missing user"}
	}

	m, err := s.members.GetMember(ctx, studioID, userID)
	if err != nil {
		if errors.Is(err, ErrMemberNotFound) {
			s.logger.Info().
				Str("studio_id", studioID).
				Str("user_id", userID).
				Msg("access denied for non-member")
			return Actor{}, &AccessDeniedError{Reason: "not a member of this studio"}
		}
		return Actor{}, fmt.Errorf("loading member: %w", err)
	}

	role := ParseRole(m.Role)
	if role == RoleUnknown {
		return Actor{}, &AccessDeniedError{Reason: fmt.Sprintf("unknown role %q", m.Role)}
	}

	return Actor{
		UserID:   m.UserID,
		StudioID: m.StudioID,
		Role:     role,
		ArtistID: m.ArtistID,
	}, nil
}

// AuthorizeCreate checks that the actor may create a booking for artistID.
func (s *Service) AuthorizeCreate(actor Actor, artistID string) error {
	if !actor.CanCreate(artistID) {
		return s.deny(actor, "create", "artists may only book their own calendar")
	}
	return nil
}

// AuthorizeEdit checks that the actor may save changes from existing to next.
func (s *Service) AuthorizeEdit(actor Actor, existing Appointment, newArtistID string) error {
	if !actor.CanEdit(existing) {
		if existing.Completed {
			return s.deny(actor, "edit", "completed appointments are locked")
		}
		return s.deny(actor, "edit", "not allowed to edit this appointment")
	}
	if newArtistID != existing.ArtistID && !actor.CanChangeArtist() {
		return s.deny(actor, "edit", "not allowed to change the artist")
	}
	return nil
}

// AuthorizeDelete checks that the actor may delete the appointment.
func (s *Service) AuthorizeDelete(actor Actor, apt Appointment) error {
	if !actor.CanDelete(apt) {
		return s.deny(actor, "delete", "not allowed to delete this appointment")
	}
	return nil
}

// AuthorizeCancel checks that the actor may cancel the appointment.
func (s *Service) AuthorizeCancel(actor Actor, apt Appointment) error {
	if !actor.CanCancel(apt) {
		if apt.Completed {
			return s.deny(actor, "cancel", "completed appointments are locked")
		}
		return s.deny(actor, "cancel", "not allowed to cancel this appointment")
	}
	return nil
}

// AuthorizeUnlock checks that the actor may reopen a completed appointment.
func (s *Service) AuthorizeUnlock(actor Actor, apt Appointment) error {
	if !actor.CanUnlock(apt) {
		return s.deny(actor, "unlock", "only admins can unlock completed appointments")
	}
	return nil
}

func (s *Service) deny(actor Actor, action, reason string) error {
	s.logger.Info().
		Str("user_id", actor.UserID).
		Str("role", actor.Role.String()).
		Str("action", action).
		Str("reason", reason).
		Msg("access denied")
	return &AccessDeniedError{Reason: reason}
}

// AccessDeniedError is returned when user access is denied.
type AccessDeniedError struct {
	Reason string
}

func (e *AccessDeniedError) Error() string {
	return e.Reason
}

// IsAccessDenied checks if error is access denied.
func IsAccessDenied(err error) bool {
	var denied *AccessDeniedError
	return errors.As(err, &denied)
}
