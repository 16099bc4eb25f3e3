package audit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"inkflow/internal/model"
	"inkflow/shared/reminders"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Config holds configuration for the audit service.
type Config struct {
	// EventRetentionDays is how long provider events are kept.
	// Default: 365 days.
	EventRetentionDays int

	// ExportOnStart if true, runs export immediately on service start.
	ExportOnStart bool

	// From is the sender of report emails.
	From reminders.Address
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		EventRetentionDays: 365,
	}
}

var (
	appointmentColumns = []string{
		"Date", "Start", "Duration (h)", "Status", "Client", "Client Email",
		"Email Status", "Failure Reason", "Email Sent At", "Reminder Sent At", "Reminder Lead (min)",
	}
	eventColumns = []string{"Occurred At", "Email", "Event", "Reason"}
)

// Service mails each studio a monthly report of its customer email
// delivery and prunes old provider events.
type Service struct {
	config  *Config
	source  Source
	writer  func() ExcelWriter
	mail    reminders.MailSender
	cleaner DataCleaner
	logger  Logger
	now     func() time.Time
	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewService creates a new audit service. cleaner may be nil.
func NewService(
	config *Config,
	source Source,
	writerFactory func() ExcelWriter,
	mail reminders.MailSender,
	cleaner DataCleaner,
	logger Logger,
) *Service {
	if config == nil {
		config = DefaultConfig()
	}
	if config.EventRetentionDays <= 0 {
		config.EventRetentionDays = DefaultConfig().EventRetentionDays
	}

	return &Service{
		config:  config,
		source:  source,
		writer:  writerFactory,
		mail:    mail,
		cleaner: cleaner,
		logger:  logger,
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}
}

// Start begins the monthly schedule.
func (s *Service) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	if s.config.ExportOnStart {
		go s.RunExportAndCleanup()
	}

	s.wg.Add(1)
	go s.loop()

	s.logger.Info("Audit service started", "event_retention_days", s.config.EventRetentionDays)
}

// Stop gracefully stops the audit service.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info("Audit service stopped")
}

func (s *Service) loop() {
	defer s.wg.Done()

	nextRun := nextFirstOfMonth(s.now())
	timer := time.NewTimer(time.Until(nextRun))
	defer timer.Stop()
	s.logger.Info("Next audit scheduled", "time", nextRun)

	for {
		select {
		case <-s.stopCh:
			return
		case <-timer.C:
			s.RunExportAndCleanup()

			nextRun = nextFirstOfMonth(s.now())
			timer.Reset(time.Until(nextRun))
			s.logger.Info("Next audit scheduled", "time", nextRun)
		}
	}
}

func nextFirstOfMonth(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month()+1, 1, 0, 1, 0, 0, now.Location())
}

// RunExportAndCleanup reports on the previous month and prunes old events.
func (s *Service) RunExportAndCleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	from, to := PreviousMonth(s.now())
	if err := s.ExportMonth(ctx, from, to); err != nil {
		s.logger.Error("Failed to export delivery reports", "error", err)
	}
	if err := s.cleanupOldData(ctx); err != nil {
		s.logger.Error("Failed to cleanup old email events", "error", err)
	}
}

// ExportMonth mails every studio with a contact address its report for
// [from, to). Failures for one studio do not stop the others.
func (s *Service) ExportMonth(ctx context.Context, from, to time.Time) error {
	if s.source == nil || s.writer == nil {
		return fmt.Errorf("source or writer not configured")
	}

	studios, err := s.source.ListStudios(ctx)
	if err != nil {
		return fmt.Errorf("list studios: %w", err)
	}

	var errs []error
	for i := range studios {
		studio := &studios[i]
		if studio.StudioEmail == "" {
			s.logger.Debug("Studio has no contact email, skipping report", "studio_id", studio.ID)
			continue
		}
		if err := s.exportStudio(ctx, studio, from, to); err != nil {
			s.logger.Error("Failed to export studio report", "studio_id", studio.ID, "error", err)
			errs = append(errs, fmt.Errorf("studio %s: %w", studio.ID, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Service) exportStudio(ctx context.Context, studio *model.Studio, from, to time.Time) error {
	report, err := s.BuildReport(ctx, studio.ID, from, to)
	if err != nil {
		return err
	}

	filename := GenerateFilename(from)
	msg := reminders.Message{
		From:     s.config.From,
		To:       reminders.Address{Email: studio.StudioEmail, Name: studio.Name},
		Subject:  fmt.Sprintf("Email delivery report %s %d - %s", from.Month(), from.Year(), studio.Name),
		TextBody: fmt.Sprintf("Attached is the customer email delivery report for %s %d.", from.Month(), from.Year()),
		Attachments: []reminders.Attachment{{
			ContentType: xlsxContentType,
			Filename:    filename,
			Content:     report,
		}},
	}
	if err := s.mail.Send(ctx, msg); err != nil {
		return fmt.Errorf("send report: %w", err)
	}

	s.logger.Info("Delivery report sent", "studio_id", studio.ID, "filename", filename)
	return nil
}

// BuildReport renders one studio's workbook for [from, to).
func (s *Service) BuildReport(ctx context.Context, studioID string, from, to time.Time) ([]byte, error) {
	last := to.AddDate(0, 0, -1)
	appointments, err := s.source.ListAppointmentsBetween(ctx, studioID,
		from.Format(time.DateOnly), last.Format(time.DateOnly))
	if err != nil {
		return nil, fmt.Errorf("load appointments: %w", err)
	}
	events, err := s.source.ListEmailEvents(ctx, studioID, from, to)
	if err != nil {
		return nil, fmt.Errorf("load email events: %w", err)
	}

	excel := s.writer()
	if excel == nil {
		return nil, fmt.Errorf("failed to create excel writer")
	}

	if err := excel.AddSheet("Appointments"); err != nil {
		return nil, err
	}
	if err := excel.WriteHeader(appointmentColumns); err != nil {
		return nil, err
	}
	for i := range appointments {
		if err := excel.WriteRow(appointmentRow(&appointments[i])); err != nil {
			s.logger.Error("Failed to write row", "appointment_id", appointments[i].ID, "error", err)
		}
	}

	if err := excel.AddSheet("Provider Events"); err != nil {
		return nil, err
	}
	if err := excel.WriteHeader(eventColumns); err != nil {
		return nil, err
	}
	for _, e := range events {
		if err := excel.WriteRow([]interface{}{e.OccurredAt, e.Email, e.EventType, e.Reason}); err != nil {
			s.logger.Error("Failed to write row", "event_id", e.ID, "error", err)
		}
	}

	s.logger.Debug("Built delivery report",
		"studio_id", studioID,
		"appointments", len(appointments),
		"events", len(events))

	var buf bytes.Buffer
	if err := excel.Save(&buf); err != nil {
		return nil, fmt.Errorf("save excel: %w", err)
	}
	return buf.Bytes(), nil
}

func appointmentRow(a *model.Appointment) []interface{} {
	var lead interface{}
	if a.ReminderMinutesBefore != nil {
		lead = *a.ReminderMinutesBefore
	}
	return []interface{}{
		a.Date, a.StartTime, a.DurationHours, string(a.Status), a.ClientName, a.ClientEmail,
		string(a.EmailSendStatus), a.EmailSendFailedReason, a.EmailSentAt, a.ReminderSentAt, lead,
	}
}

func (s *Service) cleanupOldData(ctx context.Context) error {
	if s.cleaner == nil {
		return nil
	}

	cutoff := s.now().AddDate(0, 0, -s.config.EventRetentionDays)
	deleted, err := s.cleaner.DeleteEmailEventsBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("delete old email events: %w", err)
	}

	s.logger.Info("Cleaned up old email events",
		"deleted_count", deleted,
		"retention_days", s.config.EventRetentionDays,
	)
	return nil
}

// ExportNow reports on the previous month immediately.
func (s *Service) ExportNow(ctx context.Context) error {
	from, to := PreviousMonth(s.now())
	return s.ExportMonth(ctx, from, to)
}
