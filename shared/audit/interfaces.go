package audit

import (
	"context"
	"fmt"
	"io"
	"time"

	"inkflow/internal/model"
)

// Source provides the records a delivery report is built from.
type Source interface {
	// ListStudios returns every studio.
	ListStudios(ctx context.Context) ([]model.Studio, error)

	// ListAppointmentsBetween returns a studio's appointments dated in [from, to].
	ListAppointmentsBetween(ctx context.Context, studioID, from, to string) ([]model.Appointment, error)

	// ListEmailEvents returns a studio's provider events in [from, to).
	ListEmailEvents(ctx context.Context, studioID string, from, to time.Time) ([]model.EmailEvent, error)
}

// ExcelWriter writes data to Excel format.
type ExcelWriter interface {
	// AddSheet adds a new sheet with the given name.
	AddSheet(name string) error

	// WriteHeader writes column headers to current sheet.
	WriteHeader(columns []string) error

	// WriteRow writes a data row to current sheet.
	WriteRow(row []interface{}) error

	// Save writes the Excel file to the writer.
	Save(w io.Writer) error

	// SaveToFile writes the Excel file to disk.
	SaveToFile(path string) error
}

// DataCleaner removes expired provider events.
type DataCleaner interface {
	DeleteEmailEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Logger for audit operations.
type Logger interface {
	Info(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Debug(msg string, fields ...interface{})
}

// GenerateFilename creates a filename like "email_delivery_March_2026.xlsx".
func GenerateFilename(t time.Time) string {
	return fmt.Sprintf("email_delivery_%s_%d.xlsx", t.Month(), t.Year())
}

// PreviousMonth returns the first day of the month before t and the first
// day of t's month, both at midnight in t's location.
func PreviousMonth(t time.Time) (time.Time, time.Time) {
	end := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return end.AddDate(0, -1, 0), end
}
