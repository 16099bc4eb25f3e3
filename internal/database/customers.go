package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"inkflow/internal/model"
)

const customerColumns = `id, studio_id, name, email, phone_number, email_bounced, email_bounce_reason,
	email_bounced_at, email_unsubscribed, email_unsubscribed_at, send_calendar_invites, created_at`

func scanCustomer(row rowScanner) (*model.Customer, error) {
	var (
		c              model.Customer
		bouncedAt      sql.NullTime
		unsubscribedAt sql.NullTime
	)
	err := row.Scan(&c.ID, &c.StudioID, &c.Name, &c.Email, &c.PhoneNumber, &c.EmailBounced, &c.EmailBounceReason,
		&bouncedAt, &c.EmailUnsubscribed, &unsubscribedAt, &c.SendCalendarInvites, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	c.EmailBouncedAt = timePtr(bouncedAt)
	c.EmailUnsubscribedAt = timePtr(unsubscribedAt)
	return &c, nil
}

// CreateCustomer inserts a customer.
func (db *DB) CreateCustomer(ctx context.Context, c *model.Customer) error {
	if c.ID == "" {
		c.ID = newID()
	}
	c.CreatedAt = time.Now().UTC()
	_, err := db.ExecContext(ctx, `
		INSERT INTO customers (id, studio_id, name, email, phone_number, email_bounced, email_bounce_reason,
			email_bounced_at, email_unsubscribed, email_unsubscribed_at, send_calendar_invites, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.StudioID, c.Name, c.Email, c.PhoneNumber, c.EmailBounced, c.EmailBounceReason,
		nullTime(c.EmailBouncedAt), c.EmailUnsubscribed, nullTime(c.EmailUnsubscribedAt),
		c.SendCalendarInvites, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert customer: %w", err)
	}
	return nil
}

// GetCustomer returns one customer of a studio.
func (db *DB) GetCustomer(ctx context.Context, studioID, id string) (*model.Customer, error) {
	c, err := scanCustomer(db.QueryRowContext(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE studio_id = ? AND id = ?`, studioID, id))
	if err != nil {
		return nil, notFound(err)
	}
	return c, nil
}

// FindCustomerByEmail returns the oldest customer with this address in any
// studio.
func (db *DB) FindCustomerByEmail(ctx context.Context, email string) (*model.Customer, error) {
	c, err := scanCustomer(db.QueryRowContext(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE email = ? ORDER BY created_at, id LIMIT 1`, email))
	if err != nil {
		return nil, notFound(err)
	}
	return c, nil
}

// MarkEmailBounced flags every customer with this address as bounced and
// returns how many were updated.
func (db *DB) MarkEmailBounced(ctx context.Context, email, reason string, at time.Time) (int64, error) {
	res, err := db.ExecContext(ctx, `
		UPDATE customers SET email_bounced = 1, email_bounce_reason = ?, email_bounced_at = ?
		WHERE email = ?`, reason, at.UTC(), email)
	if err != nil {
		return 0, fmt.Errorf("mark bounced: %w", err)
	}
	return res.RowsAffected()
}

// MarkEmailUnsubscribed flags every customer with this address as
// unsubscribed and returns how many were updated.
func (db *DB) MarkEmailUnsubscribed(ctx context.Context, email string, at time.Time) (int64, error) {
	res, err := db.ExecContext(ctx, `
		UPDATE customers SET email_unsubscribed = 1, email_unsubscribed_at = ?
		WHERE email = ?`, at.UTC(), email)
	if err != nil {
		return 0, fmt.Errorf("mark unsubscribed: %w", err)
	}
	return res.RowsAffected()
}

// InsertEmailEvent appends a provider event to the log.
func (db *DB) InsertEmailEvent(ctx context.Context, e *model.EmailEvent) error {
	if e.ID == "" {
		e.ID = newID()
	}
	var metadata sql.NullString
	if len(e.Metadata) > 0 {
		metadata = sql.NullString{String: string(e.Metadata), Valid: true}
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO email_events (id, studio_id, customer_id, appointment_id, email, event_type, reason,
			occurred_at, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.StudioID, e.CustomerID, e.AppointmentID, e.Email, e.EventType, e.Reason,
		e.OccurredAt.UTC(), metadata)
	if err != nil {
		return fmt.Errorf("insert email event: %w", err)
	}
	return nil
}

// ListEmailEvents returns a studio's events in [from, to) ordered by time.
func (db *DB) ListEmailEvents(ctx context.Context, studioID string, from, to time.Time) ([]model.EmailEvent, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, studio_id, customer_id, appointment_id, email, event_type, reason, occurred_at, metadata
		FROM email_events WHERE studio_id = ? AND occurred_at >= ? AND occurred_at < ?
		ORDER BY occurred_at, id`, studioID, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("list email events: %w", err)
	}
	defer rows.Close()

	var out []model.EmailEvent
	for rows.Next() {
		var (
			e        model.EmailEvent
			metadata sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.StudioID, &e.CustomerID, &e.AppointmentID, &e.Email, &e.EventType,
			&e.Reason, &e.OccurredAt, &metadata); err != nil {
			return nil, err
		}
		if metadata.Valid {
			e.Metadata = []byte(metadata.String)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
