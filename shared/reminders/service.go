package reminders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"inkflow/internal/model"
)

// ErrUnknownEvent is returned by Notify for an unsupported event type.
var ErrUnknownEvent = errors.New("unknown event type")

// Notifier sends the email for a single appointment event.
type Notifier interface {
	Notify(ctx context.Context, appointmentID string, event EventType) (NotifyResult, error)
}

// Sweeper scans for due reminders.
type Sweeper interface {
	Sweep(ctx context.Context, now time.Time) (SweepStats, error)
}

// NotifyResult is the outcome of Notify when no error occurred.
type NotifyResult struct {
	Sent    bool
	Skipped bool
	Reason  SkipReason
}

// SweepStats summarizes one sweep.
type SweepStats struct {
	Total    int
	Sent     int
	Skipped  int
	Failed   int
	Deferred int
	Errors   int
}

// Config holds configuration for the reminder service.
type Config struct {
	// From is the sender identity of every message. Its address also
	// stands in for studios without a contact email.
	From Address
}

// Service implements both scheduler entry points over a shared decision
// core.
type Service struct {
	config  Config
	store   AppointmentStore
	sender  *Sender
	metrics *Metrics
	logger  Logger
	now     func() time.Time
}

// NewService creates a new reminder service. metrics may be nil.
func NewService(config Config, store AppointmentStore, sender *Sender, metrics *Metrics, logger Logger) *Service {
	return &Service{
		config:  config,
		store:   store,
		sender:  sender,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// Notify handles a created, updated or reminder event for one appointment.
// A failed delivery is recorded and returned as a *SendError.
func (s *Service) Notify(ctx context.Context, appointmentID string, event EventType) (NotifyResult, error) {
	if !event.Valid() {
		return NotifyResult{}, fmt.Errorf("%w: %q", ErrUnknownEvent, event)
	}

	det, err := s.store.GetAppointmentDetails(ctx, appointmentID)
	if err != nil {
		return NotifyResult{}, err
	}

	now := s.now()
	d, err := Decide(Input{
		Event:       event,
		Trigger:     TriggerEvent,
		Appointment: &det.Appointment,
		Studio:      det.Studio,
		Customer:    det.Customer,
	}, now)
	if err != nil {
		return NotifyResult{}, err
	}

	if d.Action == ActionSkip {
		s.metrics.IncOutcome(TriggerEvent, event, string(d.Reason))
		if d.Reason.Recorded() {
			s.recordEmail(ctx, appointmentID, model.EmailDelivery{
				Status:       model.EmailSkipped,
				FailedReason: string(d.Reason),
			})
		}
		s.logger.Debug("email skipped",
			"appointment_id", appointmentID,
			"event", event,
			"reason", d.Reason)
		return NotifyResult{Skipped: true, Reason: d.Reason}, nil
	}

	msg, err := Compose(event, det, d.Recipient, s.config.From, now)
	if err != nil {
		return NotifyResult{}, err
	}

	if err := s.sender.SendWithRetry(ctx, msg); err != nil {
		se, ok := IsSendError(err)
		if !ok {
			return NotifyResult{}, err
		}
		s.metrics.IncOutcome(TriggerEvent, event, "failed")
		s.recordEmail(ctx, appointmentID, model.EmailDelivery{
			Status:       model.EmailFailed,
			FailedReason: se.Reason,
		})
		return NotifyResult{}, err
	}

	sentAt := s.now()
	minutes := d.ReminderMinutes
	s.metrics.IncOutcome(TriggerEvent, event, "sent")
	s.recordEmail(ctx, appointmentID, model.EmailDelivery{
		Status:                model.EmailSent,
		SentAt:                &sentAt,
		ReminderMinutesBefore: &minutes,
	})
	s.logger.Info("email sent",
		"appointment_id", appointmentID,
		"event", event,
		"to", d.Recipient)
	return NotifyResult{Sent: true}, nil
}

// Sweep evaluates every scheduled appointment that has not had its reminder
// outcome recorded. Every outcome other than a deferral or a plan skip sets
// reminder_sent_at, so an appointment is reminded at most once.
func (s *Service) Sweep(ctx context.Context, now time.Time) (SweepStats, error) {
	pending, err := s.store.ListPendingReminders(ctx)
	if err != nil {
		return SweepStats{}, fmt.Errorf("list pending reminders: %w", err)
	}

	stats := SweepStats{Total: len(pending)}
	s.metrics.SetPending(len(pending))

	for i := range pending {
		if err := ctx.Err(); err != nil {
			s.logger.Info("reminder sweep interrupted",
				"processed", i,
				"remaining", stats.Total-i)
			return stats, err
		}
		s.sweepOne(ctx, &pending[i], now, &stats)
	}

	s.logger.Info("reminder sweep finished",
		"total", stats.Total,
		"sent", stats.Sent,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
		"deferred", stats.Deferred,
		"errors", stats.Errors)
	return stats, nil
}

func (s *Service) sweepOne(ctx context.Context, det *model.AppointmentDetails, now time.Time, stats *SweepStats) {
	apt := &det.Appointment
	if apt.ReminderSentAt != nil || apt.Status != model.StatusScheduled {
		return
	}

	d, err := Decide(Input{
		Event:       EventReminder,
		Trigger:     TriggerSweep,
		Appointment: apt,
		Studio:      det.Studio,
		Customer:    det.Customer,
	}, now)
	if err != nil {
		stats.Errors++
		s.logger.Error("cannot evaluate reminder", "appointment_id", apt.ID, "error", err)
		return
	}

	switch d.Action {
	case ActionDefer:
		stats.Deferred++
		return

	case ActionSkip:
		stats.Skipped++
		s.metrics.IncOutcome(TriggerSweep, EventReminder, string(d.Reason))
		if !d.Reason.Recorded() {
			return
		}
		delivery := model.EmailDelivery{Status: model.EmailSkipped, FailedReason: string(d.Reason)}
		if d.Reason == SkipAppointmentPassed {
			minutes := d.ReminderMinutes
			delivery.ReminderMinutesBefore = &minutes
		}
		s.recordReminder(ctx, apt.ID, delivery)
		return
	}

	msg, err := Compose(EventReminder, det, d.Recipient, s.config.From, now)
	if err != nil {
		stats.Errors++
		s.logger.Error("cannot compose reminder", "appointment_id", apt.ID, "error", err)
		return
	}

	if err := s.sender.SendWithRetry(ctx, msg); err != nil {
		se, ok := IsSendError(err)
		if !ok {
			stats.Errors++
			s.logger.Error("reminder not sent", "appointment_id", apt.ID, "error", err)
			return
		}
		stats.Failed++
		s.metrics.IncOutcome(TriggerSweep, EventReminder, "failed")
		s.recordReminder(ctx, apt.ID, model.EmailDelivery{
			Status:       model.EmailFailed,
			FailedReason: se.Reason,
		})
		return
	}

	stats.Sent++
	sentAt := s.now()
	minutes := d.ReminderMinutes
	s.metrics.IncOutcome(TriggerSweep, EventReminder, "sent")
	s.recordReminder(ctx, apt.ID, model.EmailDelivery{
		Status:                model.EmailSent,
		SentAt:                &sentAt,
		ReminderMinutesBefore: &minutes,
	})
	s.logger.Info("reminder sent",
		"appointment_id", apt.ID,
		"to", d.Recipient,
		"starts_at", d.StartsAt)
}

// Delivery write failures are logged, never returned.
func (s *Service) recordEmail(ctx context.Context, id string, d model.EmailDelivery) {
	if err := s.store.RecordEmail(context.WithoutCancel(ctx), id, d); err != nil {
		s.logger.Error("failed to record email status",
			"appointment_id", id,
			"status", d.Status,
			"error", err)
	}
}

func (s *Service) recordReminder(ctx context.Context, id string, d model.EmailDelivery) {
	if err := s.store.RecordReminder(context.WithoutCancel(ctx), id, d, s.now()); err != nil {
		s.logger.Error("failed to record reminder status",
			"appointment_id", id,
			"status", d.Status,
			"error", err)
	}
}
