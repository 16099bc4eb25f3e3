package api

import (
	"errors"
	"net/http"

	"inkflow/internal/booking"
	"inkflow/internal/metrics"
	"inkflow/internal/model"
	"inkflow/shared/access"
)

// userHeader carries the authenticated member id set by the gateway.
const userHeader = "X-User-ID"

// ValidateRequest is the body of POST /api/v1/bookings/validate.
type ValidateRequest struct {
	StudioID      string  `json:"studio_id" validate:"required"`
	ArtistID      string  `json:"artist_id" validate:"required"`
	LocationID    string  `json:"location_id"`
	Date          string  `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime     string  `json:"start_time" validate:"required,datetime=15:04"`
	DurationHours float64 `json:"duration_hours" validate:"gt=0"`
	WorkStationID string  `json:"work_station_id"`
	AppointmentID string  `json:"appointment_id"`
}

// AppointmentRequest is the body of POST /api/v1/appointments. An empty ID
// creates a new appointment.
type AppointmentRequest struct {
	ID                string  `json:"id"`
	StudioID          string  `json:"studio_id" validate:"required"`
	ArtistID          string  `json:"artist_id" validate:"required"`
	LocationID        string  `json:"location_id" validate:"required"`
	WorkStationID     string  `json:"work_station_id"`
	CustomerID        string  `json:"customer_id"`
	ClientName        string  `json:"client_name"`
	ClientEmail       string  `json:"client_email" validate:"omitempty,email"`
	ClientPhone       string  `json:"client_phone"`
	Date              string  `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime         string  `json:"start_time" validate:"required,datetime=15:04"`
	DurationHours     float64 `json:"duration_hours" validate:"gt=0"`
	Status            string  `json:"status" validate:"omitempty,oneof=scheduled confirmed completed cancelled no_show"`
	DepositAmount     float64 `json:"deposit_amount" validate:"gte=0"`
	TotalEstimate     float64 `json:"total_estimate" validate:"gte=0"`
	ChargeAmount      float64 `json:"charge_amount" validate:"gte=0"`
	TaxAmount         float64 `json:"tax_amount" validate:"gte=0"`
	DesignDescription string  `json:"design_description"`
	Placement         string  `json:"placement"`
	Notes             string  `json:"notes"`
}

// StationResponse is a candidate workstation.
type StationResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ResolutionResponse reports the resolver outcome.
type ResolutionResponse struct {
	OK                      bool               `json:"ok"`
	Conflicts               []booking.Conflict `json:"conflicts"`
	StationsChecked         bool               `json:"stations_checked"`
	Candidates              []StationResponse  `json:"candidates"`
	AssignableWorkStationID string             `json:"assignable_work_station_id,omitempty"`
}

// AppointmentResponse is a saved appointment.
type AppointmentResponse struct {
	ID            string  `json:"id"`
	StudioID      string  `json:"studio_id"`
	ArtistID      string  `json:"artist_id"`
	LocationID    string  `json:"location_id"`
	WorkStationID string  `json:"work_station_id,omitempty"`
	CustomerID    string  `json:"customer_id,omitempty"`
	ClientName    string  `json:"client_name"`
	Date          string  `json:"date"`
	StartTime     string  `json:"start_time"`
	DurationHours float64 `json:"duration_hours"`
	Status        string  `json:"status"`
	EmailStatus   string  `json:"email_send_status,omitempty"`
}

func resolutionOf(res booking.Result) ResolutionResponse {
	out := ResolutionResponse{
		OK:                      res.OK(),
		Conflicts:               res.Conflicts,
		StationsChecked:         res.StationsChecked,
		Candidates:              make([]StationResponse, 0, len(res.Candidates)),
		AssignableWorkStationID: res.AssignableWorkStationID,
	}
	if out.Conflicts == nil {
		out.Conflicts = []booking.Conflict{}
	}
	for _, ws := range res.Candidates {
		out.Candidates = append(out.Candidates, StationResponse{ID: ws.ID, Name: ws.Name})
	}
	return out
}

func appointmentOf(a *model.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:            a.ID,
		StudioID:      a.StudioID,
		ArtistID:      a.ArtistID,
		LocationID:    a.LocationID,
		WorkStationID: a.WorkStationID,
		CustomerID:    a.CustomerID,
		ClientName:    a.ClientName,
		Date:          a.Date,
		StartTime:     a.StartTime,
		DurationHours: a.DurationHours,
		Status:        string(a.Status),
		EmailStatus:   string(a.EmailSendStatus),
	}
}

// handleValidateBooking runs the resolver without saving.
// POST /api/v1/bookings/validate
func (s *HTTPServer) handleValidateBooking(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("bookings_validate")

	var req ValidateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}
	if _, ok := s.resolveActor(w, r, req.StudioID); !ok {
		return
	}

	res, err := s.deps.Bookings.Validate(r.Context(), req.StudioID, booking.Proposal{
		ArtistID:             req.ArtistID,
		LocationID:           req.LocationID,
		Date:                 req.Date,
		StartTime:            req.StartTime,
		DurationHours:        req.DurationHours,
		ExcludeAppointmentID: req.AppointmentID,
		WorkStationID:        req.WorkStationID,
	})
	if err != nil {
		s.writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resolutionOf(res))
}

// handleSaveAppointment creates or updates an appointment.
// POST /api/v1/appointments
func (s *HTTPServer) handleSaveAppointment(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("appointments_save")

	var req AppointmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}
	actor, ok := s.resolveActor(w, r, req.StudioID)
	if !ok {
		return
	}

	out, err := s.deps.Bookings.Save(r.Context(), actor, model.Appointment{
		ID:                req.ID,
		StudioID:          req.StudioID,
		ArtistID:          req.ArtistID,
		LocationID:        req.LocationID,
		WorkStationID:     req.WorkStationID,
		CustomerID:        req.CustomerID,
		ClientName:        req.ClientName,
		ClientEmail:       req.ClientEmail,
		ClientPhone:       req.ClientPhone,
		Date:              req.Date,
		StartTime:         req.StartTime,
		DurationHours:     req.DurationHours,
		Status:            model.AppointmentStatus(req.Status),
		DepositAmount:     req.DepositAmount,
		TotalEstimate:     req.TotalEstimate,
		ChargeAmount:      req.ChargeAmount,
		TaxAmount:         req.TaxAmount,
		DesignDescription: req.DesignDescription,
		Placement:         req.Placement,
		Notes:             req.Notes,
	})
	if err != nil {
		if errors.Is(err, booking.ErrStationRequired) || errors.Is(err, booking.ErrStationUnavailable) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"error":      err.Error(),
				"resolution": resolutionOf(out.Result),
			})
			return
		}
		s.writeBookingError(w, err)
		return
	}
	if out.Appointment == nil {
		writeJSON(w, http.StatusConflict, resolutionOf(out.Result))
		return
	}

	status := http.StatusOK
	if req.ID == "" {
		status = http.StatusCreated
	}
	writeJSON(w, status, appointmentOf(out.Appointment))
}

// handleDeleteAppointment removes an appointment. Artists cancel instead.
// DELETE /api/v1/appointments/{id}?studio_id=...
func (s *HTTPServer) handleDeleteAppointment(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("appointments_delete")

	studioID := r.URL.Query().Get("studio_id")
	if studioID == "" {
		writeError(w, http.StatusBadRequest, "studio_id is required")
		return
	}
	actor, ok := s.resolveActor(w, r, studioID)
	if !ok {
		return
	}

	if err := s.deps.Bookings.Delete(r.Context(), actor, r.PathValue("id")); err != nil {
		s.writeBookingError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleUnlockAppointment reopens a completed appointment.
// POST /api/v1/appointments/{id}/unlock?studio_id=...
func (s *HTTPServer) handleUnlockAppointment(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("appointments_unlock")

	studioID := r.URL.Query().Get("studio_id")
	if studioID == "" {
		writeError(w, http.StatusBadRequest, "studio_id is required")
		return
	}
	actor, ok := s.resolveActor(w, r, studioID)
	if !ok {
		return
	}

	apt, err := s.deps.Bookings.Unlock(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		s.writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appointmentOf(apt))
}

func (s *HTTPServer) resolveActor(w http.ResponseWriter, r *http.Request, studioID string) (access.Actor, bool) {
	actor, err := s.deps.Actors.Resolve(r.Context(), studioID, r.Header.Get(userHeader))
	if err != nil {
		if access.IsAccessDenied(err) {
			writeError(w, http.StatusForbidden, err.Error())
			return access.Actor{}, false
		}
		s.logger.Error().Err(err).Str("studio_id", studioID).Msg("resolve actor failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return access.Actor{}, false
	}
	return actor, true
}

func (s *HTTPServer) writeBookingError(w http.ResponseWriter, err error) {
	switch {
	case access.IsAccessDenied(err):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, booking.ErrInvalidProposal):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, "Appointment not found")
	default:
		s.logger.Error().Err(err).Msg("booking request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
