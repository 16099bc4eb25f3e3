package reminders

import (
	"fmt"
	"strings"
	"time"

	"inkflow/internal/ics"
	"inkflow/internal/model"
	"inkflow/internal/tz"
)

const (
	calendarContentType = "text/calendar; charset=utf-8"
	calendarFilename    = "appointment.ics"
)

// Subject returns the email subject for an event.
func Subject(event EventType, studioName string) string {
	switch event {
	case EventReminder:
		return "Appointment Reminder - " + studioName
	case EventUpdated:
		return "Appointment Update - " + studioName
	}
	return "Appointment Confirmation - " + studioName
}

// Body returns the plain-text email body for an event.
func Body(event EventType, customerName, dateTime, location, studioEmail string) string {
	var intro, outro string
	switch event {
	case EventReminder:
		intro = "This is an appointment reminder for " + customerName + "."
		outro = "Looking forward to seeing you there!\n\n"
	case EventUpdated:
		intro = "Your appointment details have been updated for " + customerName + "."
	default:
		intro = "This is a confirmation for " + customerName + "."
		outro = "Looking forward to seeing you there!\n\n"
	}
	return fmt.Sprintf("Hi There,\n\n%s\n\n%s\n%s\n\n%sIf you received this email in error, please contact %s.",
		intro, dateTime, location, outro, studioEmail)
}

// Compose builds the message for a Send decision. A calendar invite is
// attached to created and updated emails when the customer opted in.
func Compose(event EventType, det *model.AppointmentDetails, to string, from Address, now time.Time) (Message, error) {
	apt := &det.Appointment
	name := customerName(det)
	studioEmail := from.Email
	studioName := ""
	if det.Studio != nil {
		studioName = det.Studio.Name
		if det.Studio.StudioEmail != "" {
			studioEmail = det.Studio.StudioEmail
		}
	}

	locationText := "Location"
	if det.Location != nil && det.Location.Name != "" {
		locationText = det.Location.Name
	}

	msg := Message{
		From:    from,
		To:      Address{Email: to, Name: name},
		Subject: Subject(event, studioName),
		TextBody: Body(event, name,
			tz.FormatLocal(apt.Date, apt.StartTime, det.Studio.Zone()),
			locationText, studioEmail),
	}

	if (event == EventCreated || event == EventUpdated) && det.Customer != nil && det.Customer.SendCalendarInvites {
		invite, err := Invite(det, to, studioEmail).Render(now)
		if err != nil {
			return Message{}, fmt.Errorf("render invite: %w", err)
		}
		msg.Attachments = append(msg.Attachments, Attachment{
			ContentType: calendarContentType,
			Filename:    calendarFilename,
			Content:     invite,
		})
	}
	return msg, nil
}

// Invite maps an appointment onto a calendar invitation.
func Invite(det *model.AppointmentDetails, attendee, organizer string) ics.Invite {
	apt := &det.Appointment

	artist := "Artist"
	if det.Artist != nil && det.Artist.FullName != "" {
		artist = det.Artist.FullName
	}

	where := "Location"
	if l := det.Location; l != nil {
		switch {
		case l.Address != "" && l.City != "":
			where = l.Address + ", " + l.City
		case l.Address != "":
			where = l.Address
		case l.Name != "":
			where = l.Name
		}
	}

	attendeeName := strings.TrimSpace(apt.ClientName)
	if attendeeName == "" {
		attendeeName = "Customer"
	}

	var studioName string
	if det.Studio != nil {
		studioName = det.Studio.Name
	}

	return ics.Invite{
		AppointmentID:  apt.ID,
		Timezone:       det.Studio.Zone(),
		Date:           apt.Date,
		StartTime:      apt.StartTime,
		DurationHours:  apt.DurationHours,
		Summary:        "Appointment with " + artist,
		Description:    "Appointment at " + studioName,
		Location:       where,
		OrganizerName:  studioName,
		OrganizerEmail: organizer,
		AttendeeName:   attendeeName,
		AttendeeEmail:  attendee,
	}
}

func customerName(det *model.AppointmentDetails) string {
	if n := strings.TrimSpace(det.Appointment.ClientName); n != "" {
		return n
	}
	if det.Customer != nil && det.Customer.Name != "" {
		return det.Customer.Name
	}
	return "Customer"
}
