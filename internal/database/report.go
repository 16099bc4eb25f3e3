package database

import (
	"context"
	"fmt"
	"time"

	"inkflow/internal/model"
)

// ListAppointmentsBetween returns a studio's appointments whose date falls
// in the inclusive range [from, to] (YYYY-MM-DD).
func (db *DB) ListAppointmentsBetween(ctx context.Context, studioID, from, to string) ([]model.Appointment, error) {
	out, err := db.queryAppointments(ctx,
		`SELECT `+appointmentColumns+` FROM appointments
		WHERE studio_id = ? AND appointment_date >= ? AND appointment_date <= ?
		ORDER BY appointment_date, start_time, id`,
		studioID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return out, nil
}

// DeleteEmailEventsBefore removes provider events older than cutoff.
func (db *DB) DeleteEmailEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM email_events WHERE occurred_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete email events: %w", err)
	}
	return res.RowsAffected()
}
