package booking

import (
	"context"
	"errors"
	"fmt"

	"inkflow/internal/events"
	"inkflow/internal/metrics"
	"inkflow/internal/model"
	"inkflow/shared/access"

	"github.com/rs/zerolog"
)

var (
	// ErrStationRequired is returned when stations are free but none was picked.
	ErrStationRequired = errors.New("a work station must be selected")
	// ErrStationUnavailable is returned when the picked station is not free.
	ErrStationUnavailable = errors.New("selected work station is not available")
)

// Store is the tenant-scoped data layer the booking service reads and writes.
type Store interface {
	GetAppointment(ctx context.Context, studioID, id string) (*model.Appointment, error)
	FilterAppointments(ctx context.Context, f model.AppointmentFilter) ([]model.Appointment, error)
	FilterAvailabilities(ctx context.Context, f model.AvailabilityFilter) ([]model.Availability, error)
	FilterWorkStations(ctx context.Context, f model.WorkStationFilter) ([]model.WorkStation, error)
	ListLocations(ctx context.Context, studioID string) ([]model.Location, error)
	CreateAppointment(ctx context.Context, a *model.Appointment) error
	UpdateAppointment(ctx context.Context, a *model.Appointment) error
	DeleteAppointment(ctx context.Context, studioID, id string) error
}

// Publisher delivers appointment lifecycle events.
type Publisher interface {
	Publish(event events.Event) error
}

// Outcome is the result of a save. Appointment is nil when the proposal
// was rejected with conflicts.
type Outcome struct {
	Appointment *model.Appointment
	Result      Result
}

// Service validates and persists appointments. Validation and the write are
// not atomic: two concurrent saves can both pass validation.
type Service struct {
	store  Store
	access *access.Service
	events Publisher
	logger zerolog.Logger
}

// NewService creates a booking service. events may be nil.
func NewService(store Store, acl *access.Service, pub Publisher, logger zerolog.Logger) *Service {
	return &Service{
		store:  store,
		access: acl,
		events: pub,
		logger: logger.With().Str("component", "booking").Logger(),
	}
}

// Snapshot loads everything Resolve needs for a proposal in one studio.
func (s *Service) Snapshot(ctx context.Context, studioID string, p Proposal) (Snapshot, error) {
	appointments, err := s.store.FilterAppointments(ctx, model.AppointmentFilter{
		StudioID: studioID,
		Date:     p.Date,
	})
	if err != nil {
		return Snapshot{}, fmt.Errorf("load appointments: %w", err)
	}

	blocks, err := s.store.FilterAvailabilities(ctx, model.AvailabilityFilter{
		StudioID:    studioID,
		ArtistID:    p.ArtistID,
		BlockedOnly: true,
	})
	if err != nil {
		return Snapshot{}, fmt.Errorf("load availabilities: %w", err)
	}

	var stations []model.WorkStation
	if p.LocationID != "" {
		stations, err = s.store.FilterWorkStations(ctx, model.WorkStationFilter{
			StudioID:   studioID,
			LocationID: p.LocationID,
		})
		if err != nil {
			return Snapshot{}, fmt.Errorf("load work stations: %w", err)
		}
	}

	locations, err := s.store.ListLocations(ctx, studioID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load locations: %w", err)
	}
	names := make(map[string]string, len(locations))
	for _, l := range locations {
		names[l.ID] = l.Name
	}

	return Snapshot{
		Appointments:   appointments,
		Availabilities: blocks,
		WorkStations:   stations,
		LocationNames:  names,
	}, nil
}

// Validate resolves a proposal against the studio's current data.
func (s *Service) Validate(ctx context.Context, studioID string, p Proposal) (Result, error) {
	snap, err := s.Snapshot(ctx, studioID, p)
	if err != nil {
		return Result{}, err
	}
	res, err := Resolve(p, snap)
	if err != nil {
		return Result{}, err
	}
	for _, c := range res.Conflicts {
		metrics.IncBookingConflict(string(c.Kind))
	}
	return res, nil
}

// Save creates apt when it has no ID and updates it otherwise. Conflicts
// are returned in the Outcome with a nil error. A workstation is mandatory
// whenever at least one is free and must be one of the free ones.
// Cancelled and no-show appointments hold nothing and skip validation.
func (s *Service) Save(ctx context.Context, actor access.Actor, apt model.Appointment) (Outcome, error) {
	if apt.LocationID == "" {
		return Outcome{}, fmt.Errorf("%w: location is required", ErrInvalidProposal)
	}
	if apt.Status == "" {
		apt.Status = model.StatusScheduled
	}
	if !apt.Status.Valid() {
		return Outcome{}, fmt.Errorf("%w: unknown status %q", ErrInvalidProposal, apt.Status)
	}
	apt.StudioID = actor.StudioID

	creating := apt.ID == ""
	p := Proposal{
		ArtistID:      apt.ArtistID,
		LocationID:    apt.LocationID,
		Date:          apt.Date,
		StartTime:     apt.StartTime,
		DurationHours: apt.DurationHours,
		WorkStationID: apt.WorkStationID,
	}

	if creating {
		if err := s.access.AuthorizeCreate(actor, apt.ArtistID); err != nil {
			return Outcome{}, err
		}
	} else {
		existing, err := s.store.GetAppointment(ctx, actor.StudioID, apt.ID)
		if err != nil {
			return Outcome{}, err
		}
		if err := s.access.AuthorizeEdit(actor, guardOf(existing), apt.ArtistID); err != nil {
			return Outcome{}, err
		}
		p.ExcludeAppointmentID = existing.ID
		p.CurrentWorkStationID = existing.WorkStationID
		keepEmailFields(&apt, existing)
	}

	var res Result
	if apt.Status.Occupies() {
		var err error
		if res, err = s.Validate(ctx, actor.StudioID, p); err != nil {
			return Outcome{}, err
		}
	}
	if !res.OK() {
		s.logger.Info().
			Str("artist_id", apt.ArtistID).
			Str("date", apt.Date).
			Str("start", apt.StartTime).
			Int("conflicts", len(res.Conflicts)).
			Msg("booking rejected")
		return Outcome{Result: res}, nil
	}
	if err := checkStation(apt.WorkStationID, res); err != nil {
		return Outcome{Result: res}, err
	}

	eventType := events.AppointmentUpdated
	if creating {
		eventType = events.AppointmentCreated
		if err := s.store.CreateAppointment(ctx, &apt); err != nil {
			return Outcome{}, fmt.Errorf("create appointment: %w", err)
		}
		metrics.IncBookingSaved("create")
	} else {
		if err := s.store.UpdateAppointment(ctx, &apt); err != nil {
			return Outcome{}, fmt.Errorf("update appointment: %w", err)
		}
		metrics.IncBookingSaved("update")
	}

	s.logger.Info().
		Str("appointment_id", apt.ID).
		Str("artist_id", apt.ArtistID).
		Str("work_station_id", apt.WorkStationID).
		Str("event", eventType).
		Msg("appointment saved")

	if notifiesCustomer(apt.Status) {
		s.publish(eventType, actor, apt.ID)
	}
	return Outcome{Appointment: &apt, Result: res}, nil
}

// notifiesCustomer reports whether saving an appointment in this state is
// announced. Cancellations, no-shows and checkouts are silent.
func notifiesCustomer(status model.AppointmentStatus) bool {
	return status.Occupies() && status != model.StatusCompleted
}

// Delete removes an appointment the actor is allowed to delete. For artists
// it cancels the appointment instead; only staff remove records.
func (s *Service) Delete(ctx context.Context, actor access.Actor, id string) error {
	existing, err := s.store.GetAppointment(ctx, actor.StudioID, id)
	if err != nil {
		return err
	}
	if actor.CancelsOnDelete() {
		return s.cancel(ctx, actor, existing)
	}
	if err := s.access.AuthorizeDelete(actor, guardOf(existing)); err != nil {
		return err
	}
	if err := s.store.DeleteAppointment(ctx, actor.StudioID, id); err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	metrics.IncBookingSaved("delete")
	s.publish(events.AppointmentDeleted, actor, id)
	return nil
}

func (s *Service) cancel(ctx context.Context, actor access.Actor, existing *model.Appointment) error {
	if err := s.access.AuthorizeCancel(actor, guardOf(existing)); err != nil {
		return err
	}
	existing.Status = model.StatusCancelled
	if err := s.store.UpdateAppointment(ctx, existing); err != nil {
		return fmt.Errorf("cancel appointment: %w", err)
	}
	metrics.IncBookingSaved("cancel")
	s.logger.Info().
		Str("appointment_id", existing.ID).
		Str("user_id", actor.UserID).
		Msg("appointment cancelled")
	return nil
}

// Unlock reopens a completed appointment as scheduled.
func (s *Service) Unlock(ctx context.Context, actor access.Actor, id string) (*model.Appointment, error) {
	existing, err := s.store.GetAppointment(ctx, actor.StudioID, id)
	if err != nil {
		return nil, err
	}
	if err := s.access.AuthorizeUnlock(actor, guardOf(existing)); err != nil {
		return nil, err
	}
	existing.Status = model.StatusScheduled
	if err := s.store.UpdateAppointment(ctx, existing); err != nil {
		return nil, fmt.Errorf("unlock appointment: %w", err)
	}
	metrics.IncBookingSaved("unlock")
	return existing, nil
}

func (s *Service) publish(eventType string, actor access.Actor, appointmentID string) {
	if s.events == nil {
		return
	}
	ev, err := events.NewAppointmentEvent(eventType, events.AppointmentPayload{
		AppointmentID: appointmentID,
		StudioID:      actor.StudioID,
		ActorID:       actor.UserID,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("encode event")
		return
	}
	if err := s.events.Publish(ev); err != nil {
		s.logger.Error().Err(err).
			Str("appointment_id", appointmentID).
			Str("event", eventType).
			Msg("event handler failed")
	}
}

func checkStation(stationID string, res Result) error {
	if !res.StationsChecked {
		return nil
	}
	if stationID == "" {
		return ErrStationRequired
	}
	if !res.IsCandidate(stationID) {
		return ErrStationUnavailable
	}
	return nil
}

func guardOf(a *model.Appointment) access.Appointment {
	return access.Appointment{ArtistID: a.ArtistID, Completed: a.Status == model.StatusCompleted}
}

// keepEmailFields carries the scheduler-owned fields over an edit.
func keepEmailFields(dst, src *model.Appointment) {
	dst.EmailSendStatus = src.EmailSendStatus
	dst.EmailSendFailedReason = src.EmailSendFailedReason
	dst.EmailSentAt = src.EmailSentAt
	dst.ReminderSentAt = src.ReminderSentAt
	dst.ReminderMinutesBefore = src.ReminderMinutesBefore
	dst.CreatedAt = src.CreatedAt
}
