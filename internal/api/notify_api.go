package api

import (
	"errors"
	"net/http"

	"inkflow/internal/metrics"
	"inkflow/internal/model"
	"inkflow/shared/reminders"
)

// NotifyRequest is the body of POST /api/v1/notify.
type NotifyRequest struct {
	AppointmentID string `json:"appointmentId" validate:"required"`
	EventType     string `json:"eventType" validate:"required"`
}

// handleNotify sends the email for one appointment event.
// POST /api/v1/notify
func (s *HTTPServer) handleNotify(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("notify")

	var req NotifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Missing appointmentId or eventType")
		return
	}
	if !secretEqual(r.Header.Get("apikey"), s.config.APIKey) {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	res, err := s.deps.Notifier.Notify(r.Context(), req.AppointmentID, reminders.EventType(req.EventType))
	if err != nil {
		if se, ok := reminders.IsSendError(err); ok {
			writeJSON(w, http.StatusBadGateway, map[string]string{
				"error":   "Mailjet send failed",
				"message": se.Reason,
			})
			return
		}
		switch {
		case errors.Is(err, reminders.ErrUnknownEvent):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, model.ErrNotFound):
			writeError(w, http.StatusNotFound, "Appointment not found")
		default:
			s.logger.Error().Err(err).Str("appointment_id", req.AppointmentID).Msg("notify failed")
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	if res.Skipped {
		writeJSON(w, http.StatusOK, map[string]any{"skipped": true, "reason": string(res.Reason)})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handleSweep runs one reminder sweep for the external cron.
// POST /api/v1/reminders/sweep
func (s *HTTPServer) handleSweep(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("reminders_sweep")

	if !secretEqual(bearerToken(r), s.config.CronSecret) {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	stats, err := s.deps.Sweeper.Trigger(r.Context())
	if err != nil {
		if errors.Is(err, reminders.ErrSweepLocked) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		s.logger.Error().Err(err).Msg("sweep failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "sent": stats.Sent})
}
