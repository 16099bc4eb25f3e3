package audit

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"inkflow/internal/model"
	"inkflow/shared/reminders"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Debug(string, ...interface{}) {}

type fakeSource struct {
	studios      []model.Studio
	appointments map[string][]model.Appointment
	events       map[string][]model.EmailEvent
	failStudio   string

	gotFrom, gotTo string
}

func (f *fakeSource) ListStudios(context.Context) ([]model.Studio, error) {
	return f.studios, nil
}

func (f *fakeSource) ListAppointmentsBetween(_ context.Context, studioID, from, to string) ([]model.Appointment, error) {
	if studioID == f.failStudio {
		return nil, errors.New("disk on fire")
	}
	f.gotFrom, f.gotTo = from, to
	return f.appointments[studioID], nil
}

func (f *fakeSource) ListEmailEvents(_ context.Context, studioID string, _, _ time.Time) ([]model.EmailEvent, error) {
	return f.events[studioID], nil
}

type captureMailer struct {
	mu   sync.Mutex
	sent []reminders.Message
}

func (m *captureMailer) Send(_ context.Context, msg reminders.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

type mockCleaner struct {
	mock.Mock
}

func (m *mockCleaner) DeleteEmailEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func fixtureSource() *fakeSource {
	sentAt := time.Date(2026, 2, 9, 15, 0, 0, 0, time.UTC)
	lead := 1440
	return &fakeSource{
		studios: []model.Studio{
			{ID: "st-1", Name: "Black Anchor", StudioEmail: "desk@blackanchor.test"},
			{ID: "st-2", Name: "No Inbox"},
		},
		appointments: map[string][]model.Appointment{
			"st-1": {
				{
					ID: "apt-1", Date: "2026-02-10", StartTime: "14:00", DurationHours: 2.5,
					Status: model.StatusScheduled, ClientName: "Jo", ClientEmail: "jo@example.com",
					EmailSendStatus: model.EmailSent, ReminderSentAt: &sentAt, ReminderMinutesBefore: &lead,
				},
				{
					ID: "apt-2", Date: "2026-02-11", StartTime: "10:00", DurationHours: 1,
					Status: model.StatusScheduled, ClientName: "Sam",
					EmailSendStatus: model.EmailSkipped, EmailSendFailedReason: "no_email_address",
				},
			},
		},
		events: map[string][]model.EmailEvent{
			"st-1": {{
				ID: "ev-1", Email: "old@example.com", EventType: "bounce", Reason: "user unknown",
				OccurredAt: time.Date(2026, 2, 3, 8, 30, 0, 0, time.UTC),
			}},
		},
	}
}

func TestGenerateFilename(t *testing.T) {
	assert.Equal(t, "email_delivery_February_2026.xlsx",
		GenerateFilename(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)))
}

func TestPreviousMonth(t *testing.T) {
	from, to := PreviousMonth(time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), to)
}

func TestNextFirstOfMonth(t *testing.T) {
	got := nextFirstOfMonth(time.Date(2026, 12, 31, 23, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2027, 1, 1, 0, 1, 0, 0, time.UTC), got)
}

func TestBuildReport(t *testing.T) {
	src := fixtureSource()
	svc := NewService(nil, src, NewExcelizeWriter, &captureMailer{}, nil, nopLogger{})

	from := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	data, err := svc.BuildReport(context.Background(), "st-1", from, from.AddDate(0, 1, 0))
	require.NoError(t, err)
	assert.Equal(t, "2026-02-01", src.gotFrom)
	assert.Equal(t, "2026-02-28", src.gotTo)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Appointments", "Provider Events"}, f.GetSheetList())

	rows, err := f.GetRows("Appointments")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, appointmentColumns, rows[0])

	first := rows[1]
	require.Len(t, first, len(appointmentColumns))
	assert.Equal(t, "2026-02-10", first[0])
	assert.Equal(t, "2.5", first[2])
	assert.Equal(t, "sent", first[6])
	assert.Equal(t, "", first[8])
	assert.Equal(t, "2026-02-09 15:00:00 UTC", first[9])
	assert.Equal(t, "1440", first[10])

	assert.Equal(t, "no_email_address", rows[2][7])

	events, err := f.GetRows("Provider Events")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, []string{"2026-02-03 08:30:00 UTC", "old@example.com", "bounce", "user unknown"}, events[1])
}

func TestExportMonthMailsStudiosWithAddress(t *testing.T) {
	mailer := &captureMailer{}
	from := reminders.Address{Email: "reports@inkflow.test", Name: "InkFlow"}
	svc := NewService(&Config{From: from}, fixtureSource(), NewExcelizeWriter, mailer, nil, nopLogger{})
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 0, 1, 0, 0, time.UTC) }

	require.NoError(t, svc.ExportNow(context.Background()))

	require.Len(t, mailer.sent, 1)
	msg := mailer.sent[0]
	assert.Equal(t, from, msg.From)
	assert.Equal(t, "desk@blackanchor.test", msg.To.Email)
	assert.Contains(t, msg.Subject, "February 2026")
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "email_delivery_February_2026.xlsx", msg.Attachments[0].Filename)
	assert.Equal(t, xlsxContentType, msg.Attachments[0].ContentType)
	assert.NotEmpty(t, msg.Attachments[0].Content)
}

func TestExportMonthContinuesAfterStudioFailure(t *testing.T) {
	src := fixtureSource()
	src.studios = append([]model.Studio{{ID: "st-bad", StudioEmail: "bad@x.test"}}, src.studios...)
	src.failStudio = "st-bad"
	mailer := &captureMailer{}
	svc := NewService(nil, src, NewExcelizeWriter, mailer, nil, nopLogger{})

	from := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	err := svc.ExportMonth(context.Background(), from, from.AddDate(0, 1, 0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "st-bad")
	assert.Len(t, mailer.sent, 1)
}

func TestRunExportAndCleanupPrunesEvents(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 1, 0, 0, time.UTC)
	cleaner := &mockCleaner{}
	cleaner.On("DeleteEmailEventsBefore", mock.Anything, now.AddDate(0, 0, -30)).Return(int64(4), nil).Once()

	svc := NewService(&Config{EventRetentionDays: 30}, fixtureSource(), NewExcelizeWriter,
		&captureMailer{}, cleaner, nopLogger{})
	svc.now = func() time.Time { return now }

	svc.RunExportAndCleanup()
	cleaner.AssertExpectations(t)
}

func TestStartStop(t *testing.T) {
	svc := NewService(nil, fixtureSource(), NewExcelizeWriter, &captureMailer{}, nil, nopLogger{})
	svc.Start()
	svc.Start()
	svc.Stop()
	svc.Stop()
}
