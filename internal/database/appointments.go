package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"inkflow/internal/model"
)

// ErrReminderRecorded is returned when reminder_sent_at is already set.
var ErrReminderRecorded = errors.New("reminder outcome already recorded")

const appointmentColumns = `id, studio_id, artist_id, location_id, work_station_id, customer_id,
	client_name, client_email, client_phone, appointment_date, start_time, duration_hours, status,
	deposit_amount, total_estimate, charge_amount, tax_amount, design_description, placement, notes,
	email_send_status, email_send_failed_reason, email_sent_at, reminder_sent_at, reminder_minutes_before,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAppointment(row rowScanner) (model.Appointment, error) {
	var (
		a         model.Appointment
		status    string
		emailStat string
		sentAt    sql.NullTime
		remindAt  sql.NullTime
		minutes   sql.NullInt64
	)
	err := row.Scan(
		&a.ID, &a.StudioID, &a.ArtistID, &a.LocationID, &a.WorkStationID, &a.CustomerID,
		&a.ClientName, &a.ClientEmail, &a.ClientPhone, &a.Date, &a.StartTime, &a.DurationHours, &status,
		&a.DepositAmount, &a.TotalEstimate, &a.ChargeAmount, &a.TaxAmount, &a.DesignDescription, &a.Placement, &a.Notes,
		&emailStat, &a.EmailSendFailedReason, &sentAt, &remindAt, &minutes,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return model.Appointment{}, err
	}
	a.Status = model.AppointmentStatus(status)
	a.EmailSendStatus = model.EmailStatus(emailStat)
	a.EmailSentAt = timePtr(sentAt)
	a.ReminderSentAt = timePtr(remindAt)
	a.ReminderMinutesBefore = intPtr(minutes)
	return a, nil
}

func (db *DB) queryAppointments(ctx context.Context, query string, args ...interface{}) ([]model.Appointment, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetAppointment returns one appointment of a studio.
func (db *DB) GetAppointment(ctx context.Context, studioID, id string) (*model.Appointment, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+appointmentColumns+` FROM appointments WHERE studio_id = ? AND id = ?`,
		studioID, id)
	a, err := scanAppointment(row)
	if err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

// FilterAppointments returns the appointments matching f ordered by date and
// start time.
func (db *DB) FilterAppointments(ctx context.Context, f model.AppointmentFilter) ([]model.Appointment, error) {
	if f.StudioID == "" {
		return nil, fmt.Errorf("%w: studio is required", ErrInvalidRecord)
	}
	where := []string{"studio_id = ?"}
	args := []interface{}{f.StudioID}
	if f.ArtistID != "" {
		where = append(where, "artist_id = ?")
		args = append(args, f.ArtistID)
	}
	if f.LocationID != "" {
		where = append(where, "location_id = ?")
		args = append(args, f.LocationID)
	}
	if f.Date != "" {
		where = append(where, "appointment_date = ?")
		args = append(args, f.Date)
	}
	if len(f.Statuses) > 0 {
		where = append(where, "status IN "+inClause(len(f.Statuses)))
		for _, s := range f.Statuses {
			args = append(args, string(s))
		}
	}

	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY appointment_date, start_time, id`
	out, err := db.queryAppointments(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("filter appointments: %w", err)
	}
	return out, nil
}

// CreateAppointment inserts a and assigns its ID. Delivery fields start empty.
func (db *DB) CreateAppointment(ctx context.Context, a *model.Appointment) error {
	if a.StudioID == "" || a.ArtistID == "" || a.LocationID == "" {
		return fmt.Errorf("%w: appointment needs studio, artist and location", ErrInvalidRecord)
	}
	now := time.Now().UTC()
	if a.ID == "" {
		a.ID = newID()
	}
	if a.Status == "" {
		a.Status = model.StatusScheduled
	}
	a.CreatedAt, a.UpdatedAt = now, now

	_, err := db.ExecContext(ctx, `
		INSERT INTO appointments (
			id, studio_id, artist_id, location_id, work_station_id, customer_id,
			client_name, client_email, client_phone, appointment_date, start_time, duration_hours, status,
			deposit_amount, total_estimate, charge_amount, tax_amount, design_description, placement, notes,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.StudioID, a.ArtistID, a.LocationID, a.WorkStationID, a.CustomerID,
		a.ClientName, a.ClientEmail, a.ClientPhone, a.Date, a.StartTime, a.DurationHours, string(a.Status),
		a.DepositAmount, a.TotalEstimate, a.ChargeAmount, a.TaxAmount, a.DesignDescription, a.Placement, a.Notes,
		a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

// UpdateAppointment overwrites the booking fields of a. Delivery fields
// belong to the scheduler and are left untouched.
func (db *DB) UpdateAppointment(ctx context.Context, a *model.Appointment) error {
	a.UpdatedAt = time.Now().UTC()
	res, err := db.ExecContext(ctx, `
		UPDATE appointments SET
			artist_id = ?, location_id = ?, work_station_id = ?, customer_id = ?,
			client_name = ?, client_email = ?, client_phone = ?,
			appointment_date = ?, start_time = ?, duration_hours = ?, status = ?,
			deposit_amount = ?, total_estimate = ?, charge_amount = ?, tax_amount = ?,
			design_description = ?, placement = ?, notes = ?, updated_at = ?
		WHERE studio_id = ? AND id = ?`,
		a.ArtistID, a.LocationID, a.WorkStationID, a.CustomerID,
		a.ClientName, a.ClientEmail, a.ClientPhone,
		a.Date, a.StartTime, a.DurationHours, string(a.Status),
		a.DepositAmount, a.TotalEstimate, a.ChargeAmount, a.TaxAmount,
		a.DesignDescription, a.Placement, a.Notes, a.UpdatedAt,
		a.StudioID, a.ID,
	)
	if err != nil {
		return fmt.Errorf("update appointment: %w", err)
	}
	return expectOne(res)
}

// DeleteAppointment removes an appointment of a studio.
func (db *DB) DeleteAppointment(ctx context.Context, studioID, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM appointments WHERE studio_id = ? AND id = ?`, studioID, id)
	if err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	return expectOne(res)
}

// GetAppointmentDetails returns an appointment with its related records.
func (db *DB) GetAppointmentDetails(ctx context.Context, id string) (*model.AppointmentDetails, error) {
	row := db.QueryRowContext(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = ?`, id)
	a, err := scanAppointment(row)
	if err != nil {
		return nil, notFound(err)
	}
	det, err := db.joinDetails(ctx, a, map[string]*model.Studio{})
	if err != nil {
		return nil, err
	}
	return &det, nil
}

// ListPendingReminders returns scheduled appointments without a recorded
// reminder outcome, across all studios.
func (db *DB) ListPendingReminders(ctx context.Context) ([]model.AppointmentDetails, error) {
	apts, err := db.queryAppointments(ctx,
		`SELECT `+appointmentColumns+` FROM appointments
		WHERE status = ? AND reminder_sent_at IS NULL
		ORDER BY appointment_date, start_time, id`,
		string(model.StatusScheduled))
	if err != nil {
		return nil, fmt.Errorf("list pending reminders: %w", err)
	}

	studios := make(map[string]*model.Studio)
	out := make([]model.AppointmentDetails, 0, len(apts))
	for _, a := range apts {
		det, err := db.joinDetails(ctx, a, studios)
		if err != nil {
			return nil, err
		}
		out = append(out, det)
	}
	return out, nil
}

func (db *DB) joinDetails(ctx context.Context, a model.Appointment, studios map[string]*model.Studio) (model.AppointmentDetails, error) {
	det := model.AppointmentDetails{Appointment: a}

	studio, ok := studios[a.StudioID]
	if !ok {
		s, err := db.GetStudio(ctx, a.StudioID)
		if err != nil && !errors.Is(err, model.ErrNotFound) {
			return det, err
		}
		studio = s
		studios[a.StudioID] = s
	}
	det.Studio = studio

	var err error
	if a.CustomerID != "" {
		if det.Customer, err = optional(db.GetCustomer(ctx, a.StudioID, a.CustomerID)); err != nil {
			return det, err
		}
	}
	if det.Location, err = optional(db.GetLocation(ctx, a.StudioID, a.LocationID)); err != nil {
		return det, err
	}
	if det.Artist, err = optional(db.GetArtist(ctx, a.StudioID, a.ArtistID)); err != nil {
		return det, err
	}
	return det, nil
}

// optional turns a missing related record into nil.
func optional[T any](v *T, err error) (*T, error) {
	if errors.Is(err, model.ErrNotFound) {
		return nil, nil
	}
	return v, err
}

// RecordEmail overwrites the delivery fields of an appointment.
func (db *DB) RecordEmail(ctx context.Context, id string, d model.EmailDelivery) error {
	res, err := db.ExecContext(ctx, `
		UPDATE appointments SET
			email_send_status = ?, email_send_failed_reason = ?, email_sent_at = ?,
			reminder_minutes_before = ?, updated_at = ?
		WHERE id = ?`,
		string(d.Status), d.FailedReason, nullTime(d.SentAt), nullInt(d.ReminderMinutesBefore),
		time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("record email: %w", err)
	}
	return expectOne(res)
}

// RecordReminder overwrites the delivery fields and sets reminder_sent_at.
// The write only applies while reminder_sent_at is unset.
func (db *DB) RecordReminder(ctx context.Context, id string, d model.EmailDelivery, at time.Time) error {
	res, err := db.ExecContext(ctx, `
		UPDATE appointments SET
			email_send_status = ?, email_send_failed_reason = ?, email_sent_at = ?,
			reminder_minutes_before = ?, reminder_sent_at = ?, updated_at = ?
		WHERE id = ? AND reminder_sent_at IS NULL`,
		string(d.Status), d.FailedReason, nullTime(d.SentAt), nullInt(d.ReminderMinutesBefore),
		at.UTC(), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("record reminder: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists int
		err := db.QueryRowContext(ctx, `SELECT 1 FROM appointments WHERE id = ?`, id).Scan(&exists)
		if err != nil {
			return notFound(err)
		}
		return ErrReminderRecorded
	}
	return nil
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}
