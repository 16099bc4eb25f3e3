package model

import "time"

const (
	// TierPlus is the only subscription tier that sends customer emails.
	TierPlus = "plus"

	// DefaultReminderMinutes is used when a studio has no lead time configured.
	DefaultReminderMinutes = 1440

	// DefaultTimezone is used when a studio has no zone configured.
	DefaultTimezone = "UTC"
)

// Studio is the tenant root.
type Studio struct {
	ID                    string
	Name                  string
	Timezone              string
	SubscriptionTier      string
	EmailRemindersEnabled bool
	ReminderMinutesBefore int
	StudioEmail           string
	CreatedAt             time.Time
}

// EmailsEnabled reports whether the studio's plan and settings allow customer emails.
func (s *Studio) EmailsEnabled() bool {
	return s != nil && s.SubscriptionTier == TierPlus && s.EmailRemindersEnabled
}

// ReminderLead returns the configured reminder lead time in minutes.
func (s *Studio) ReminderLead() int {
	if s == nil || s.ReminderMinutesBefore <= 0 {
		return DefaultReminderMinutes
	}
	return s.ReminderMinutesBefore
}

// Zone returns the studio's IANA zone name.
func (s *Studio) Zone() string {
	if s == nil || s.Timezone == "" {
		return DefaultTimezone
	}
	return s.Timezone
}

// Customer carries the delivery flags the scheduler must honor.
type Customer struct {
	ID                  string
	StudioID            string
	Name                string
	Email               string
	PhoneNumber         string
	EmailBounced        bool
	EmailBounceReason   string
	EmailBouncedAt      *time.Time
	EmailUnsubscribed   bool
	EmailUnsubscribedAt *time.Time
	SendCalendarInvites bool
	CreatedAt           time.Time
}

// Location is a physical studio site.
type Location struct {
	ID       string
	StudioID string
	Name     string
	Address  string
	City     string
}

// Artist is a bookable practitioner profile.
type Artist struct {
	ID       string
	StudioID string
	FullName string
	Email    string
}

// EmailEvent is one delivery event reported by the mail provider.
type EmailEvent struct {
	ID            string
	StudioID      string
	CustomerID    string
	AppointmentID string
	Email         string
	EventType     string
	Reason        string
	OccurredAt    time.Time
	Metadata      []byte
}
