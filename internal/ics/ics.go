// Package ics renders single-event iCalendar invitations.
package ics

import (
	"fmt"
	"strings"
	"time"

	"inkflow/internal/interval"
)

const (
	prodID   = "-//InkFlow//Appointments//EN"
	uidHost  = "inkflow"
	crlf     = "\r\n"
	maxOctet = 75

	localLayout = "20060102T150405"
	utcLayout   = "20060102T150405Z"
)

// Invite describes one appointment as a calendar request. Date and
// StartTime are the studio-local values exactly as stored.
type Invite struct {
	AppointmentID string
	Timezone      string
	Date          string
	StartTime     string
	DurationHours float64

	Summary     string
	Description string
	Location    string

	OrganizerName  string
	OrganizerEmail string
	AttendeeName   string
	AttendeeEmail  string
}

// Render produces the VCALENDAR document. DTSTART and DTEND keep the
// stored wall-clock values under TZID; only DTSTAMP is in UTC.
func (inv Invite) Render(now time.Time) ([]byte, error) {
	start, end, err := inv.localBounds()
	if err != nil {
		return nil, err
	}
	zone := inv.Timezone
	if zone == "" {
		zone = "UTC"
	}

	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:" + prodID,
		"CALSCALE:GREGORIAN",
		"METHOD:REQUEST",
		"BEGIN:VEVENT",
		"UID:" + UID(inv.AppointmentID),
		"DTSTAMP:" + now.UTC().Format(utcLayout),
		"DTSTART;TZID=" + zone + ":" + start.Format(localLayout),
		"DTEND;TZID=" + zone + ":" + end.Format(localLayout),
		"SUMMARY:" + escapeText(inv.Summary),
		"DESCRIPTION:" + escapeText(inv.Description),
		"LOCATION:" + escapeText(inv.Location),
		"ORGANIZER;CN=" + paramValue(inv.OrganizerName) + ":mailto:" + inv.OrganizerEmail,
		"ATTENDEE;CN=" + paramValue(inv.AttendeeName) + ";RSVP=TRUE:mailto:" + inv.AttendeeEmail,
		"STATUS:CONFIRMED",
		"SEQUENCE:0",
		"END:VEVENT",
		"END:VCALENDAR",
	}

	var b strings.Builder
	for i, line := range lines {
		if i > 0 {
			b.WriteString(crlf)
		}
		b.WriteString(fold(line))
	}
	return []byte(b.String()), nil
}

// UID is the stable identifier of an appointment's calendar event.
func UID(appointmentID string) string {
	return appointmentID + "@" + uidHost
}

// localBounds returns start and end as naive wall-clock values carried in
// UTC. An end past midnight rolls onto the next calendar day.
func (inv Invite) localBounds() (time.Time, time.Time, error) {
	day, err := interval.ParseDate(inv.Date)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	hours := inv.DurationHours
	if hours <= 0 {
		hours = 1
	}
	span, err := interval.SpanFor(inv.StartTime, hours)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invite span: %w", err)
	}
	start := day.Add(time.Duration(span.Start) * time.Minute)
	end := day.Add(time.Duration(span.End) * time.Minute)
	return start, end, nil
}

var textEscaper = strings.NewReplacer(
	`\`, `\\`,
	";", `\;`,
	",", `\,`,
	"\r\n", `\n`,
	"\n", `\n`,
)

func escapeText(s string) string {
	return textEscaper.Replace(s)
}

// paramValue quotes parameter values that contain separators.
func paramValue(s string) string {
	s = strings.ReplaceAll(s, `"`, "'")
	if strings.ContainsAny(s, ":;,") {
		return `"` + s + `"`
	}
	return s
}

// fold splits lines longer than 75 octets, continuing with a single space.
// Multi-byte runes are never split.
func fold(line string) string {
	if len(line) <= maxOctet {
		return line
	}
	var b strings.Builder
	limit := maxOctet
	width := 0
	for _, r := range line {
		n := len(string(r))
		if width+n > limit {
			b.WriteString(crlf + " ")
			width = 1
			limit = maxOctet
		}
		b.WriteRune(r)
		width += n
	}
	return b.String()
}
