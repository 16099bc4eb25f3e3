package reminders

import (
	"fmt"
	"strings"
	"time"

	"inkflow/internal/model"
	"inkflow/internal/tz"
)

// Action is what the scheduler should do with an appointment right now.
type Action int

const (
	ActionSend Action = iota
	ActionSkip
	ActionDefer
)

func (a Action) String() string {
	switch a {
	case ActionSend:
		return "send"
	case ActionSkip:
		return "skip"
	case ActionDefer:
		return "defer"
	}
	return "unknown"
}

// SkipReason explains a skipped email. The values are stored verbatim in
// email_send_failed_reason.
type SkipReason string

const (
	SkipTierOrDisabled    SkipReason = "tier_or_disabled"
	SkipNoEmailAddress    SkipReason = "no_email_address"
	SkipEmailBounced      SkipReason = "email_bounced"
	SkipEmailUnsubscribed SkipReason = "email_unsubscribed"
	SkipEmailAlreadySent  SkipReason = "email_already_sent"
	SkipAppointmentPassed SkipReason = "appointment_passed"
)

// Recorded reports whether a skip is written back to the appointment.
// Plan and duplicate skips leave the record untouched so the appointment is
// evaluated again once the studio's settings change.
func (r SkipReason) Recorded() bool {
	return r != SkipTierOrDisabled && r != SkipEmailAlreadySent
}

// Input is everything Decide looks at.
type Input struct {
	Event       EventType
	Trigger     Trigger
	Appointment *model.Appointment
	Studio      *model.Studio
	Customer    *model.Customer
}

// Decision is the outcome of Decide.
type Decision struct {
	Action    Action
	Reason    SkipReason
	Recipient string

	// StartsAt and RemindAt are set for sweep decisions.
	StartsAt        time.Time
	RemindAt        time.Time
	ReminderMinutes int
}

func skip(reason SkipReason) Decision {
	return Decision{Action: ActionSkip, Reason: reason}
}

// Decide evaluates one appointment. It is pure; the error is only returned
// when the stored date, time or studio zone cannot be interpreted.
//
// Checks run in this order: duplicate confirmation (event trigger, created
// only), studio plan, reminder timing (sweep only), recipient.
func Decide(in Input, now time.Time) (Decision, error) {
	apt := in.Appointment
	if apt == nil {
		return Decision{}, fmt.Errorf("decide: nil appointment")
	}

	if in.Trigger == TriggerEvent && in.Event == EventCreated && apt.EmailSendStatus == model.EmailSent {
		return skip(SkipEmailAlreadySent), nil
	}

	if !in.Studio.EmailsEnabled() {
		return skip(SkipTierOrDisabled), nil
	}

	var d Decision
	d.ReminderMinutes = in.Studio.ReminderLead()

	if in.Trigger == TriggerSweep {
		startsAt, err := tz.LocalToInstant(apt.Date, apt.StartTime, in.Studio.Zone())
		if err != nil {
			return Decision{}, fmt.Errorf("decide %s: %w", apt.ID, err)
		}
		d.StartsAt = startsAt
		d.RemindAt = startsAt.Add(-time.Duration(d.ReminderMinutes) * time.Minute)

		if now.Before(d.RemindAt) {
			d.Action = ActionDefer
			return d, nil
		}
		if now.After(startsAt) {
			d.Action = ActionSkip
			d.Reason = SkipAppointmentPassed
			return d, nil
		}
	}

	d.Recipient = Recipient(apt, in.Customer)
	switch {
	case d.Recipient == "":
		d.Action, d.Reason = ActionSkip, SkipNoEmailAddress
	case in.Customer != nil && in.Customer.EmailBounced:
		d.Action, d.Reason = ActionSkip, SkipEmailBounced
	case in.Customer != nil && in.Customer.EmailUnsubscribed:
		d.Action, d.Reason = ActionSkip, SkipEmailUnsubscribed
	default:
		d.Action = ActionSend
	}
	return d, nil
}

// Recipient prefers the appointment's own address over the customer's.
func Recipient(apt *model.Appointment, c *model.Customer) string {
	if e := strings.TrimSpace(apt.ClientEmail); e != "" {
		return e
	}
	if c != nil {
		return strings.TrimSpace(c.Email)
	}
	return ""
}
