package reminders

import (
	"context"
	"time"

	"inkflow/internal/model"
)

// EventType selects which customer email is composed.
type EventType string

const (
	EventCreated  EventType = "created"
	EventUpdated  EventType = "updated"
	EventReminder EventType = "reminder"
)

// Valid reports whether e is a known event type.
func (e EventType) Valid() bool {
	switch e {
	case EventCreated, EventUpdated, EventReminder:
		return true
	}
	return false
}

// Trigger identifies which entry point is evaluating an appointment.
type Trigger int

const (
	// TriggerEvent is a direct notification after a create or edit.
	TriggerEvent Trigger = iota
	// TriggerSweep is the periodic reminder scan.
	TriggerSweep
)

// AppointmentStore provides the appointment reads and email-field writes the
// scheduler needs.
type AppointmentStore interface {
	// GetAppointmentDetails returns the appointment joined with its studio,
	// customer, location and artist. Returns model.ErrNotFound when missing.
	GetAppointmentDetails(ctx context.Context, appointmentID string) (*model.AppointmentDetails, error)

	// ListPendingReminders returns scheduled appointments across all studios
	// whose reminder_sent_at is still unset.
	ListPendingReminders(ctx context.Context) ([]model.AppointmentDetails, error)

	// RecordEmail overwrites the delivery fields without touching
	// reminder_sent_at.
	RecordEmail(ctx context.Context, appointmentID string, d model.EmailDelivery) error

	// RecordReminder overwrites the delivery fields and sets reminder_sent_at.
	RecordReminder(ctx context.Context, appointmentID string, d model.EmailDelivery, at time.Time) error
}

// Address is an email recipient or sender.
type Address struct {
	Email string
	Name  string
}

// Attachment is a file carried with a message.
type Attachment struct {
	ContentType string
	Filename    string
	Content     []byte
}

// Message is one outbound email.
type Message struct {
	From        Address
	To          Address
	Subject     string
	TextBody    string
	Attachments []Attachment
}

// MailSender delivers a message. The returned error text is stored as the
// failure reason.
type MailSender interface {
	Send(ctx context.Context, msg Message) error
}

// Locker serializes sweeps across processes.
type Locker interface {
	// TryLock returns false without error when another holder owns the lock.
	TryLock(ctx context.Context) (bool, error)
	Unlock(ctx context.Context) error
}

// Logger interface for logging.
type Logger interface {
	Info(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Debug(msg string, fields ...interface{})
}
