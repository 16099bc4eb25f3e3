package reminders

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"inkflow/internal/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Debug(string, ...interface{}) {}

// memoryStore implements AppointmentStore for testing.
type memoryStore struct {
	mu   sync.Mutex
	byID map[string]*model.AppointmentDetails
}

func newMemoryStore(items ...model.AppointmentDetails) *memoryStore {
	s := &memoryStore{byID: make(map[string]*model.AppointmentDetails)}
	for i := range items {
		d := items[i]
		s.byID[d.Appointment.ID] = &d
	}
	return s
}

func (s *memoryStore) GetAppointmentDetails(_ context.Context, id string) (*model.AppointmentDetails, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.byID[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (s *memoryStore) ListPendingReminders(context.Context) ([]model.AppointmentDetails, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.AppointmentDetails
	for _, d := range s.byID {
		if d.Appointment.Status == model.StatusScheduled && d.Appointment.ReminderSentAt == nil {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Appointment.ID < out[j].Appointment.ID })
	return out, nil
}

func (s *memoryStore) RecordEmail(_ context.Context, id string, d model.EmailDelivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := &s.byID[id].Appointment
	a.EmailSendStatus = d.Status
	a.EmailSendFailedReason = d.FailedReason
	a.EmailSentAt = d.SentAt
	a.ReminderMinutesBefore = d.ReminderMinutesBefore
	return nil
}

func (s *memoryStore) RecordReminder(ctx context.Context, id string, d model.EmailDelivery, at time.Time) error {
	if err := s.RecordEmail(ctx, id, d); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[id].Appointment.ReminderSentAt = &at
	return nil
}

func (s *memoryStore) get(id string) model.Appointment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byID[id].Appointment
}

// recordingMailer captures messages and fails the first failures calls.
type recordingMailer struct {
	mu       sync.Mutex
	failures int
	calls    int
	sent     []Message
}

func (m *recordingMailer) Send(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.failures > 0 {
		m.failures--
		return errors.New(`{"ErrorMessage":"quota exceeded"}`)
	}
	m.sent = append(m.sent, msg)
	return nil
}

var sender = Address{Email: "noreply@inkflow.test", Name: "InkFlow"}

func plusStudio() *model.Studio {
	return &model.Studio{
		ID:                    "studio-1",
		Name:                  "Black Anchor",
		Timezone:              "America/New_York",
		SubscriptionTier:      model.TierPlus,
		EmailRemindersEnabled: true,
		ReminderMinutesBefore: 60,
		StudioEmail:           "hello@blackanchor.test",
	}
}

func details(id string) model.AppointmentDetails {
	return model.AppointmentDetails{
		Appointment: model.Appointment{
			ID:            id,
			StudioID:      "studio-1",
			ArtistID:      "artist-1",
			LocationID:    "loc-1",
			CustomerID:    "cust-1",
			ClientName:    "Sam Lee",
			Date:          "2026-03-08",
			StartTime:     "14:00",
			DurationHours: 2,
			Status:        model.StatusScheduled,
		},
		Studio:   plusStudio(),
		Customer: &model.Customer{ID: "cust-1", Name: "Samuel Lee", Email: "sam@example.test"},
		Location: &model.Location{ID: "loc-1", Name: "Downtown", Address: "12 Harbor St", City: "Portland"},
		Artist:   &model.Artist{ID: "artist-1", FullName: "Rosa Vega"},
	}
}

func newTestService(store AppointmentStore, mail MailSender) *Service {
	cfg := SenderConfig{
		RateLimiter: RateLimiterConfig{},
		Retry:       RetryConfig{Attempts: 2},
	}
	svc := NewService(Config{From: sender}, store, NewSender(mail, cfg, nil, nopLogger{}), nil, nopLogger{})
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func TestDecideEligibility(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		event  EventType
		mutate func(d *model.AppointmentDetails)
		action Action
		reason SkipReason
	}{
		{"plus studio sends", EventCreated, func(*model.AppointmentDetails) {}, ActionSend, ""},
		{"free tier", EventCreated, func(d *model.AppointmentDetails) { d.Studio.SubscriptionTier = "free" }, ActionSkip, SkipTierOrDisabled},
		{"reminders disabled", EventUpdated, func(d *model.AppointmentDetails) { d.Studio.EmailRemindersEnabled = false }, ActionSkip, SkipTierOrDisabled},
		{"missing studio", EventUpdated, func(d *model.AppointmentDetails) { d.Studio = nil }, ActionSkip, SkipTierOrDisabled},
		{"no address", EventCreated, func(d *model.AppointmentDetails) { d.Customer.Email = "  " }, ActionSkip, SkipNoEmailAddress},
		{"no customer no address", EventCreated, func(d *model.AppointmentDetails) { d.Customer = nil }, ActionSkip, SkipNoEmailAddress},
		{"bounced", EventCreated, func(d *model.AppointmentDetails) { d.Customer.EmailBounced = true }, ActionSkip, SkipEmailBounced},
		{"unsubscribed", EventReminder, func(d *model.AppointmentDetails) { d.Customer.EmailUnsubscribed = true }, ActionSkip, SkipEmailUnsubscribed},
		{"created twice", EventCreated, func(d *model.AppointmentDetails) { d.Appointment.EmailSendStatus = model.EmailSent }, ActionSkip, SkipEmailAlreadySent},
		{"duplicate check before plan", EventCreated, func(d *model.AppointmentDetails) {
			d.Appointment.EmailSendStatus = model.EmailSent
			d.Studio.SubscriptionTier = "free"
		}, ActionSkip, SkipEmailAlreadySent},
		{"updated may resend", EventUpdated, func(d *model.AppointmentDetails) { d.Appointment.EmailSendStatus = model.EmailSent }, ActionSend, ""},
		{"reminder may resend", EventReminder, func(d *model.AppointmentDetails) { d.Appointment.EmailSendStatus = model.EmailSent }, ActionSend, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := details("a1")
			tt.mutate(&d)
			got, err := Decide(Input{
				Event:       tt.event,
				Trigger:     TriggerEvent,
				Appointment: &d.Appointment,
				Studio:      d.Studio,
				Customer:    d.Customer,
			}, now)
			require.NoError(t, err)
			assert.Equal(t, tt.action, got.Action)
			assert.Equal(t, tt.reason, got.Reason)
		})
	}
}

func TestRecipientPrefersAppointmentAddress(t *testing.T) {
	d := details("a1")
	assert.Equal(t, "sam@example.test", Recipient(&d.Appointment, d.Customer))

	d.Appointment.ClientEmail = "  walkin@example.test "
	assert.Equal(t, "walkin@example.test", Recipient(&d.Appointment, d.Customer))
	assert.Equal(t, "walkin@example.test", Recipient(&d.Appointment, nil))
}

func TestDecideSweepAcrossDSTStart(t *testing.T) {
	// New York springs forward on 2026-03-08; 14:00 EDT is 18:00 UTC and a
	// 60 minute lead makes the reminder due at 17:00 UTC.
	d := details("a1")
	in := Input{
		Event:       EventReminder,
		Trigger:     TriggerSweep,
		Appointment: &d.Appointment,
		Studio:      d.Studio,
		Customer:    d.Customer,
	}

	tests := []struct {
		now    time.Time
		action Action
		reason SkipReason
	}{
		{time.Date(2026, 3, 8, 16, 59, 0, 0, time.UTC), ActionDefer, ""},
		{time.Date(2026, 3, 8, 17, 0, 0, 0, time.UTC), ActionSend, ""},
		{time.Date(2026, 3, 8, 18, 0, 0, 0, time.UTC), ActionSend, ""},
		{time.Date(2026, 3, 8, 18, 0, 1, 0, time.UTC), ActionSkip, SkipAppointmentPassed},
	}
	for _, tt := range tests {
		t.Run(tt.now.Format(time.RFC3339), func(t *testing.T) {
			got, err := Decide(in, tt.now)
			require.NoError(t, err)
			assert.Equal(t, tt.action, got.Action)
			assert.Equal(t, tt.reason, got.Reason)
			assert.Equal(t, time.Date(2026, 3, 8, 18, 0, 0, 0, time.UTC), got.StartsAt)
			assert.Equal(t, time.Date(2026, 3, 8, 17, 0, 0, 0, time.UTC), got.RemindAt)
		})
	}
}

func TestDecideSweepPassedBeforeRecipientChecks(t *testing.T) {
	d := details("a1")
	d.Customer.EmailBounced = true
	got, err := Decide(Input{
		Event:       EventReminder,
		Trigger:     TriggerSweep,
		Appointment: &d.Appointment,
		Studio:      d.Studio,
		Customer:    d.Customer,
	}, time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, SkipAppointmentPassed, got.Reason)
}

func TestDecideSweepBadZone(t *testing.T) {
	d := details("a1")
	d.Studio.Timezone = "Mars/Olympus"
	_, err := Decide(Input{
		Event:       EventReminder,
		Trigger:     TriggerSweep,
		Appointment: &d.Appointment,
		Studio:      d.Studio,
	}, time.Now())
	assert.Error(t, err)
}

func TestComposeBodies(t *testing.T) {
	d := details("a1")
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	msg, err := Compose(EventReminder, &d, "sam@example.test", sender, now)
	require.NoError(t, err)
	assert.Equal(t, "Appointment Reminder - Black Anchor", msg.Subject)
	assert.Equal(t, "Hi There,\n\nThis is an appointment reminder for Sam Lee.\n\n"+
		"Sunday, March 8, 2026 at 2:00 PM EDT\nDowntown\n\n"+
		"Looking forward to seeing you there!\n\n"+
		"If you received this email in error, please contact hello@blackanchor.test.", msg.TextBody)
	assert.Equal(t, Address{Email: "sam@example.test", Name: "Sam Lee"}, msg.To)
	assert.Equal(t, sender, msg.From)
	assert.Empty(t, msg.Attachments)

	msg, err = Compose(EventUpdated, &d, "sam@example.test", sender, now)
	require.NoError(t, err)
	assert.Equal(t, "Appointment Update - Black Anchor", msg.Subject)
	assert.True(t, strings.HasPrefix(msg.TextBody, "Hi There,\n\nYour appointment details have been updated for Sam Lee."))
	assert.NotContains(t, msg.TextBody, "Looking forward")

	d.Appointment.ClientName = ""
	d.Studio.StudioEmail = ""
	d.Location = nil
	msg, err = Compose(EventCreated, &d, "sam@example.test", sender, now)
	require.NoError(t, err)
	assert.Equal(t, "Appointment Confirmation - Black Anchor", msg.Subject)
	assert.Contains(t, msg.TextBody, "This is a confirmation for Samuel Lee.")
	assert.Contains(t, msg.TextBody, "\nLocation\n")
	assert.Contains(t, msg.TextBody, "please contact noreply@inkflow.test.")
}

func TestComposeCalendarInvite(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	d := details("a1")
	msg, err := Compose(EventCreated, &d, "sam@example.test", sender, now)
	require.NoError(t, err)
	assert.Empty(t, msg.Attachments, "customer has not opted in")

	d.Customer.SendCalendarInvites = true
	for _, event := range []EventType{EventCreated, EventUpdated} {
		msg, err = Compose(event, &d, "sam@example.test", sender, now)
		require.NoError(t, err)
		require.Len(t, msg.Attachments, 1)
		att := msg.Attachments[0]
		assert.Equal(t, "text/calendar; charset=utf-8", att.ContentType)
		assert.Equal(t, "appointment.ics", att.Filename)
		body := string(att.Content)
		assert.Contains(t, body, "\r\nDTSTART;TZID=America/New_York:20260308T140000\r\n")
		assert.Contains(t, body, "\r\nDTEND;TZID=America/New_York:20260308T160000\r\n")
		assert.Contains(t, body, "\r\nSUMMARY:Appointment with Rosa Vega\r\n")
		assert.Contains(t, body, "\r\nORGANIZER;CN=Black Anchor:mailto:hello@blackanchor.test\r\n")
		assert.Contains(t, body, "\r\nATTENDEE;CN=Sam Lee;RSVP=TRUE:mailto:sam@example.test\r\n")
	}

	msg, err = Compose(EventReminder, &d, "sam@example.test", sender, now)
	require.NoError(t, err)
	assert.Empty(t, msg.Attachments, "reminders never carry an invite")
}

func TestNotifyCreatedIsIdempotent(t *testing.T) {
	store := newMemoryStore(details("a1"))
	mail := &recordingMailer{}
	svc := newTestService(store, mail)
	ctx := context.Background()

	res, err := svc.Notify(ctx, "a1", EventCreated)
	require.NoError(t, err)
	assert.True(t, res.Sent)

	apt := store.get("a1")
	assert.Equal(t, model.EmailSent, apt.EmailSendStatus)
	require.NotNil(t, apt.EmailSentAt)
	require.NotNil(t, apt.ReminderMinutesBefore)
	assert.Equal(t, 60, *apt.ReminderMinutesBefore)
	assert.Nil(t, apt.ReminderSentAt, "event emails do not close the reminder gate")

	res, err = svc.Notify(ctx, "a1", EventCreated)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, SkipEmailAlreadySent, res.Reason)
	assert.Len(t, mail.sent, 1)

	res, err = svc.Notify(ctx, "a1", EventUpdated)
	require.NoError(t, err)
	assert.True(t, res.Sent)
	assert.Len(t, mail.sent, 2)
}

func TestNotifyRecordsSkips(t *testing.T) {
	d := details("a1")
	d.Customer.EmailBounced = true
	free := details("a2")
	free.Studio.SubscriptionTier = "free"

	store := newMemoryStore(d, free)
	mail := &recordingMailer{}
	svc := newTestService(store, mail)

	res, err := svc.Notify(context.Background(), "a1", EventCreated)
	require.NoError(t, err)
	assert.Equal(t, SkipEmailBounced, res.Reason)
	apt := store.get("a1")
	assert.Equal(t, model.EmailSkipped, apt.EmailSendStatus)
	assert.Equal(t, "email_bounced", apt.EmailSendFailedReason)

	res, err = svc.Notify(context.Background(), "a2", EventCreated)
	require.NoError(t, err)
	assert.Equal(t, SkipTierOrDisabled, res.Reason)
	assert.Equal(t, model.EmailNone, store.get("a2").EmailSendStatus, "plan skips are not written")

	assert.Zero(t, mail.calls)
}

func TestNotifyRetriesOnce(t *testing.T) {
	t.Run("second attempt succeeds", func(t *testing.T) {
		store := newMemoryStore(details("a1"))
		mail := &recordingMailer{failures: 1}
		svc := newTestService(store, mail)

		res, err := svc.Notify(context.Background(), "a1", EventCreated)
		require.NoError(t, err)
		assert.True(t, res.Sent)
		assert.Equal(t, 2, mail.calls)
	})

	t.Run("both attempts fail", func(t *testing.T) {
		store := newMemoryStore(details("a1"))
		mail := &recordingMailer{failures: 5}
		svc := newTestService(store, mail)

		_, err := svc.Notify(context.Background(), "a1", EventCreated)
		se, ok := IsSendError(err)
		require.True(t, ok)
		assert.Equal(t, `{"ErrorMessage":"quota exceeded"}`, se.Reason)
		assert.Equal(t, 2, mail.calls)

		apt := store.get("a1")
		assert.Equal(t, model.EmailFailed, apt.EmailSendStatus)
		assert.Equal(t, se.Reason, apt.EmailSendFailedReason)
		assert.Nil(t, apt.EmailSentAt)
		assert.Nil(t, apt.ReminderSentAt)
	})
}

func TestNotifyErrors(t *testing.T) {
	svc := newTestService(newMemoryStore(), &recordingMailer{})

	_, err := svc.Notify(context.Background(), "missing", EventCreated)
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = svc.Notify(context.Background(), "a1", EventType("cancelled"))
	assert.ErrorIs(t, err, ErrUnknownEvent)
}

func TestSweep(t *testing.T) {
	due := details("a-due")
	later := details("a-later")
	later.Appointment.Date = "2026-03-09"
	past := details("a-past")
	past.Appointment.StartTime = "09:00"
	bounced := details("a-bounced")
	bounced.Customer = &model.Customer{ID: "cust-2", Email: "gone@example.test", EmailBounced: true}
	free := details("a-free")
	free.Studio.SubscriptionTier = "free"
	cancelled := details("a-cancelled")
	cancelled.Appointment.Status = model.StatusCancelled

	store := newMemoryStore(due, later, past, bounced, free, cancelled)
	mail := &recordingMailer{}
	svc := newTestService(store, mail)
	now := time.Date(2026, 3, 8, 17, 30, 0, 0, time.UTC)

	stats, err := svc.Sweep(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Total)
	assert.Equal(t, 1, stats.Sent)
	assert.Equal(t, 1, stats.Deferred)
	assert.Equal(t, 3, stats.Skipped)

	require.Len(t, mail.sent, 1)
	assert.Equal(t, "Appointment Reminder - Black Anchor", mail.sent[0].Subject)

	apt := store.get("a-due")
	assert.Equal(t, model.EmailSent, apt.EmailSendStatus)
	assert.NotNil(t, apt.ReminderSentAt)

	apt = store.get("a-past")
	assert.Equal(t, model.EmailSkipped, apt.EmailSendStatus)
	assert.Equal(t, "appointment_passed", apt.EmailSendFailedReason)
	assert.NotNil(t, apt.ReminderSentAt)
	require.NotNil(t, apt.ReminderMinutesBefore)
	assert.Equal(t, 60, *apt.ReminderMinutesBefore)

	apt = store.get("a-bounced")
	assert.Equal(t, "email_bounced", apt.EmailSendFailedReason)
	assert.NotNil(t, apt.ReminderSentAt)

	assert.Nil(t, store.get("a-later").ReminderSentAt)
	assert.Nil(t, store.get("a-free").ReminderSentAt)

	// A second run never reconsiders recorded outcomes.
	stats, err = svc.Sweep(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Zero(t, stats.Sent)
	assert.Len(t, mail.sent, 1)
}

func TestSweepFailureClosesGate(t *testing.T) {
	store := newMemoryStore(details("a1"))
	mail := &recordingMailer{failures: 2}
	svc := newTestService(store, mail)
	now := time.Date(2026, 3, 8, 17, 30, 0, 0, time.UTC)

	stats, err := svc.Sweep(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)

	apt := store.get("a1")
	assert.Equal(t, model.EmailFailed, apt.EmailSendStatus)
	assert.NotNil(t, apt.ReminderSentAt)

	stats, err = svc.Sweep(context.Background(), now)
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
	assert.Equal(t, 2, mail.calls)
}

func TestSweepStopsOnCancelledContext(t *testing.T) {
	store := newMemoryStore(details("a1"), details("a2"))
	svc := newTestService(store, &recordingMailer{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stats, err := svc.Sweep(ctx, time.Date(2026, 3, 8, 17, 30, 0, 0, time.UTC))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, stats.Sent)
}

func TestRedisLocker(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	ctx := context.Background()

	first := NewRedisLocker(client, "", time.Minute)
	second := NewRedisLocker(client, "", time.Minute)

	ok, err := first.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = second.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, second.Unlock(ctx))
	assert.True(t, mr.Exists(DefaultLockKey), "only the holder releases the lock")

	require.NoError(t, first.Unlock(ctx))
	assert.False(t, mr.Exists(DefaultLockKey))

	ok, err = second.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(2 * time.Minute)
	ok, err = first.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok, "lease expires after its TTL")
}

type countingSweeper struct {
	mu   sync.Mutex
	runs []time.Time
}

func (c *countingSweeper) Sweep(_ context.Context, now time.Time) (SweepStats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runs = append(c.runs, now)
	return SweepStats{}, nil
}

func TestSchedulerRunNowHonorsLock(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	sweeper := &countingSweeper{}
	sched := NewScheduler(SchedulerConfig{Interval: time.Hour}, sweeper,
		NewRedisLocker(client, "", time.Minute), nil, nopLogger{})

	assert.True(t, sched.RunNow(context.Background()))
	assert.False(t, mr.Exists(DefaultLockKey), "lock is released after the sweep")

	holder := NewRedisLocker(client, "", time.Minute)
	ok, err := holder.TryLock(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	assert.False(t, sched.RunNow(context.Background()))
	assert.Len(t, sweeper.runs, 1)
	assert.False(t, sched.LastRun().IsZero())
}

func TestSchedulerTriggerReportsLock(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	sched := NewScheduler(SchedulerConfig{Interval: time.Hour}, &countingSweeper{},
		NewRedisLocker(client, "", time.Minute), nil, nopLogger{})

	_, err := sched.Trigger(context.Background())
	require.NoError(t, err)

	holder := NewRedisLocker(client, "", time.Minute)
	ok, err := holder.TryLock(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	_, err = sched.Trigger(context.Background())
	assert.ErrorIs(t, err, ErrSweepLocked)
}

func TestSchedulerStartStop(t *testing.T) {
	sweeper := &countingSweeper{}
	sched := NewScheduler(SchedulerConfig{Interval: time.Hour, RunOnStart: true}, sweeper, nil, nil, nopLogger{})

	done := make(chan struct{})
	go func() {
		sched.Start(context.Background())
		close(done)
	}()

	require.Eventually(t, func() bool {
		sweeper.mu.Lock()
		defer sweeper.mu.Unlock()
		return len(sweeper.runs) == 1
	}, time.Second, 10*time.Millisecond)

	sched.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.False(t, sched.IsRunning())
}
