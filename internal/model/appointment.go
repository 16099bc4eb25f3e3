// Package model holds the studio booking records shared by the resolver,
// the reminder scheduler and the data store.
package model

import (
	"errors"
	"time"
)

// ErrNotFound is returned by stores when a record does not exist in the
// caller's studio.
var ErrNotFound = errors.New("record not found")

// AppointmentStatus is the lifecycle state of an appointment.
type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "scheduled"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusNoShow    AppointmentStatus = "no_show"
)

// Valid reports whether s is a known status.
func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// Occupies reports whether an appointment in this state holds the artist
// and its workstation. Cancelled and no-show appointments release both.
func (s AppointmentStatus) Occupies() bool {
	return s != StatusCancelled && s != StatusNoShow
}

// EmailStatus is the outcome of the last email attempt for an appointment.
type EmailStatus string

const (
	EmailNone    EmailStatus = ""
	EmailSent    EmailStatus = "sent"
	EmailFailed  EmailStatus = "failed"
	EmailSkipped EmailStatus = "skipped"
)

// Appointment is one booked interval for one artist at one location.
// Optional references (WorkStationID, CustomerID) are empty when unset.
type Appointment struct {
	ID            string
	StudioID      string
	ArtistID      string
	LocationID    string
	WorkStationID string
	CustomerID    string

	ClientName  string
	ClientEmail string
	ClientPhone string

	// Date is the studio-local calendar day (YYYY-MM-DD) and StartTime the
	// studio-local wall clock (HH:MM). Neither is an absolute instant.
	Date          string
	StartTime     string
	DurationHours float64
	Status        AppointmentStatus

	DepositAmount float64
	TotalEstimate float64
	ChargeAmount  float64
	TaxAmount     float64

	DesignDescription string
	Placement         string
	Notes             string

	EmailSendStatus       EmailStatus
	EmailSendFailedReason string
	EmailSentAt           *time.Time
	ReminderSentAt        *time.Time
	ReminderMinutesBefore *int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasStation reports whether a workstation is assigned.
func (a *Appointment) HasStation() bool {
	return a.WorkStationID != ""
}

// EmailDelivery is the full set of email fields written after an attempt.
// Writers overwrite every field rather than merging.
type EmailDelivery struct {
	Status                EmailStatus
	FailedReason          string
	SentAt                *time.Time
	ReminderMinutesBefore *int
}

// AppointmentDetails joins an appointment with the records the scheduler
// reads through it. Any of the joined records may be nil.
type AppointmentDetails struct {
	Appointment Appointment
	Studio      *Studio
	Customer    *Customer
	Location    *Location
	Artist      *Artist
}

// AppointmentFilter selects appointments. Zero fields do not constrain.
type AppointmentFilter struct {
	StudioID   string
	ArtistID   string
	LocationID string
	Date       string
	Statuses   []AppointmentStatus
}
