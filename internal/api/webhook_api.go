package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"inkflow/internal/metrics"
	"inkflow/internal/model"
)

// Mailjet event names that disable a customer's address.
var bounceEvents = map[string]bool{"bounce": true, "blocked": true, "spam": true}

const unsubEvent = "unsub"

// mailjetEvent is the subset of a Mailjet event callback we read. Raw keeps
// the full payload for the event log.
type mailjetEvent struct {
	Event          string          `json:"event"`
	Email          string          `json:"email"`
	Time           int64           `json:"time"`
	Reason         string          `json:"reason"`
	ErrorRelatedTo string          `json:"error_related_to"`
	Error          string          `json:"error"`
	Raw            json.RawMessage `json:"-"`
}

func (e *mailjetEvent) reason() string {
	switch {
	case e.Reason != "":
		return e.Reason
	case e.ErrorRelatedTo != "":
		return e.ErrorRelatedTo
	}
	return e.Error
}

func (e *mailjetEvent) occurredAt(now time.Time) time.Time {
	if e.Time > 0 {
		return time.Unix(e.Time, 0).UTC()
	}
	return now.UTC()
}

// handleMailjetWebhook records delivery events and flags bounced or
// unsubscribed customers. Mailjet posts a single object, or an array when
// event grouping is enabled.
// POST /api/v1/webhooks/mailjet?token=...
func (s *HTTPServer) handleMailjetWebhook(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("webhook_mailjet")

	if !secretEqual(r.URL.Query().Get("token"), s.config.WebhookSecret) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "Webhook error", http.StatusBadRequest)
		return
	}
	events, err := parseMailjetEvents(body)
	if err != nil {
		http.Error(w, "Webhook error", http.StatusBadRequest)
		return
	}
	for i := range events {
		if events[i].Event == "" || events[i].Email == "" {
			http.Error(w, "Missing event or email", http.StatusBadRequest)
			return
		}
	}

	for i := range events {
		if err := s.recordMailjetEvent(r, &events[i]); err != nil {
			s.logger.Error().Err(err).
				Str("event", events[i].Event).
				Str("email", events[i].Email).
				Msg("webhook event not recorded")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func parseMailjetEvents(body []byte) ([]mailjetEvent, error) {
	body = bytes.TrimSpace(body)
	var raws []json.RawMessage
	if len(body) > 0 && body[0] == '[' {
		if err := json.Unmarshal(body, &raws); err != nil {
			return nil, err
		}
	} else {
		raws = []json.RawMessage{body}
	}

	out := make([]mailjetEvent, 0, len(raws))
	for _, raw := range raws {
		var e mailjetEvent
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, err
		}
		e.Raw = raw
		out = append(out, e)
	}
	return out, nil
}

func (s *HTTPServer) recordMailjetEvent(r *http.Request, e *mailjetEvent) error {
	ctx := r.Context()
	at := e.occurredAt(s.now())
	reason := e.reason()
	metrics.IncEmailEvent(e.Event)

	switch {
	case bounceEvents[e.Event]:
		n, err := s.deps.Webhooks.MarkEmailBounced(ctx, e.Email, reason, at)
		if err != nil {
			return err
		}
		s.logger.Info().Str("event", e.Event).Int64("customers", n).Msg("email marked bounced")
	case e.Event == unsubEvent:
		n, err := s.deps.Webhooks.MarkEmailUnsubscribed(ctx, e.Email, at)
		if err != nil {
			return err
		}
		s.logger.Info().Int64("customers", n).Msg("email marked unsubscribed")
	}

	entry := &model.EmailEvent{
		Email:      e.Email,
		EventType:  e.Event,
		Reason:     reason,
		OccurredAt: at,
		Metadata:   e.Raw,
	}
	customer, err := s.deps.Webhooks.FindCustomerByEmail(ctx, e.Email)
	switch {
	case err == nil:
		entry.StudioID = customer.StudioID
		entry.CustomerID = customer.ID
	case !errors.Is(err, model.ErrNotFound):
		return fmt.Errorf("find customer: %w", err)
	}

	return s.deps.Webhooks.InsertEmailEvent(ctx, entry)
}
