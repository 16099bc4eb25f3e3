// Package database is the tenant-scoped SQLite store for studios and their
// appointments.
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"inkflow/internal/model"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

// DB represents the database connection.
type DB struct {
	*sql.DB
	path   string
	logger *zerolog.Logger
}

// ErrInvalidRecord is returned when a record misses a required reference.
var ErrInvalidRecord = errors.New("invalid record")

// NewDB opens the database at path and creates tables if they don't exist.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	instance := &DB{DB: db, path: path, logger: logger}
	if err := instance.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("Database initialized")
	return instance, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

func (db *DB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS studios (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			timezone TEXT NOT NULL DEFAULT 'UTC',
			subscription_tier TEXT NOT NULL DEFAULT 'free',
			email_reminders_enabled BOOLEAN NOT NULL DEFAULT 0,
			reminder_minutes_before INTEGER NOT NULL DEFAULT 1440,
			studio_email TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS studio_members (
			studio_id TEXT NOT NULL REFERENCES studios(id) ON DELETE CASCADE,
			user_id TEXT NOT NULL,
			role TEXT NOT NULL,
			artist_id TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (studio_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS locations (
			id TEXT PRIMARY KEY,
			studio_id TEXT NOT NULL REFERENCES studios(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			address TEXT NOT NULL DEFAULT '',
			city TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS artists (
			id TEXT PRIMARY KEY,
			studio_id TEXT NOT NULL REFERENCES studios(id) ON DELETE CASCADE,
			full_name TEXT NOT NULL,
			email TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS work_stations (
			id TEXT PRIMARY KEY,
			studio_id TEXT NOT NULL REFERENCES studios(id) ON DELETE CASCADE,
			location_id TEXT NOT NULL REFERENCES locations(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'active'
		)`,
		`CREATE TABLE IF NOT EXISTS customers (
			id TEXT PRIMARY KEY,
			studio_id TEXT NOT NULL REFERENCES studios(id) ON DELETE CASCADE,
			name TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			phone_number TEXT NOT NULL DEFAULT '',
			email_bounced BOOLEAN NOT NULL DEFAULT 0,
			email_bounce_reason TEXT NOT NULL DEFAULT '',
			email_bounced_at DATETIME,
			email_unsubscribed BOOLEAN NOT NULL DEFAULT 0,
			email_unsubscribed_at DATETIME,
			send_calendar_invites BOOLEAN NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS availabilities (
			id TEXT PRIMARY KEY,
			studio_id TEXT NOT NULL REFERENCES studios(id) ON DELETE CASCADE,
			artist_id TEXT NOT NULL,
			location_id TEXT NOT NULL DEFAULT '',
			start_date TEXT NOT NULL,
			end_date TEXT NOT NULL,
			start_time TEXT NOT NULL,
			end_time TEXT NOT NULL,
			is_blocked BOOLEAN NOT NULL DEFAULT 0,
			notes TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS appointments (
			id TEXT PRIMARY KEY,
			studio_id TEXT NOT NULL REFERENCES studios(id) ON DELETE CASCADE,
			artist_id TEXT NOT NULL,
			location_id TEXT NOT NULL,
			work_station_id TEXT NOT NULL DEFAULT '',
			customer_id TEXT NOT NULL DEFAULT '',
			client_name TEXT NOT NULL DEFAULT '',
			client_email TEXT NOT NULL DEFAULT '',
			client_phone TEXT NOT NULL DEFAULT '',
			appointment_date TEXT NOT NULL,
			start_time TEXT NOT NULL,
			duration_hours REAL NOT NULL,
			status TEXT NOT NULL DEFAULT 'scheduled',
			deposit_amount REAL NOT NULL DEFAULT 0,
			total_estimate REAL NOT NULL DEFAULT 0,
			charge_amount REAL NOT NULL DEFAULT 0,
			tax_amount REAL NOT NULL DEFAULT 0,
			design_description TEXT NOT NULL DEFAULT '',
			placement TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT '',
			email_send_status TEXT NOT NULL DEFAULT '',
			email_send_failed_reason TEXT NOT NULL DEFAULT '',
			email_sent_at DATETIME,
			reminder_sent_at DATETIME,
			reminder_minutes_before INTEGER,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS email_events (
			id TEXT PRIMARY KEY,
			studio_id TEXT NOT NULL DEFAULT '',
			customer_id TEXT NOT NULL DEFAULT '',
			appointment_id TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL,
			event_type TEXT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			occurred_at DATETIME NOT NULL,
			metadata TEXT
		)`,

		`CREATE INDEX IF NOT EXISTS idx_appointments_studio_date ON appointments(studio_id, appointment_date)`,
		`CREATE INDEX IF NOT EXISTS idx_appointments_artist_date ON appointments(artist_id, appointment_date)`,
		`CREATE INDEX IF NOT EXISTS idx_appointments_reminder ON appointments(status, reminder_sent_at)`,
		`CREATE INDEX IF NOT EXISTS idx_availabilities_artist ON availabilities(studio_id, artist_id)`,
		`CREATE INDEX IF NOT EXISTS idx_work_stations_location ON work_stations(studio_id, location_id)`,
		`CREATE INDEX IF NOT EXISTS idx_customers_email ON customers(email)`,
		`CREATE INDEX IF NOT EXISTS idx_email_events_studio ON email_events(studio_id, occurred_at)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return db.ensureNewColumns()
}

// ensureNewColumns adds columns introduced after the first schema version.
func (db *DB) ensureNewColumns() error {
	migrations := []string{
		`ALTER TABLE customers ADD COLUMN send_calendar_invites BOOLEAN NOT NULL DEFAULT 0`,
		`ALTER TABLE appointments ADD COLUMN reminder_minutes_before INTEGER`,
	}

	for _, m := range migrations {
		_, err := db.Exec(m)
		if err != nil && !strings.Contains(strings.ToLower(err.Error()), "duplicate column") {
			return fmt.Errorf("migration %q: %w", m, err)
		}
	}
	return nil
}

// Close closes the database.
func (db *DB) Close() error {
	return db.DB.Close()
}

func newID() string {
	return uuid.NewString()
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

// notFound maps sql.ErrNoRows onto model.ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return model.ErrNotFound
	}
	return err
}

// inClause returns "(?, ?, ...)" for n placeholders.
func inClause(n int) string {
	return "(" + strings.TrimSuffix(strings.Repeat("?, ", n), ", ") + ")"
}
