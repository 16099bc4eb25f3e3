package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"inkflow/internal/model"
	"inkflow/shared/access"
)

// CreateStudio inserts a studio and assigns its ID.
func (db *DB) CreateStudio(ctx context.Context, s *model.Studio) error {
	if s.ID == "" {
		s.ID = newID()
	}
	if s.Timezone == "" {
		s.Timezone = model.DefaultTimezone
	}
	if s.ReminderMinutesBefore <= 0 {
		s.ReminderMinutesBefore = model.DefaultReminderMinutes
	}
	s.CreatedAt = time.Now().UTC()
	_, err := db.ExecContext(ctx, `
		INSERT INTO studios (id, name, timezone, subscription_tier, email_reminders_enabled,
			reminder_minutes_before, studio_email, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.Name, s.Timezone, s.SubscriptionTier, s.EmailRemindersEnabled,
		s.ReminderMinutesBefore, s.StudioEmail, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert studio: %w", err)
	}
	return nil
}

const studioColumns = `id, name, timezone, subscription_tier, email_reminders_enabled,
	reminder_minutes_before, studio_email, created_at`

func scanStudio(row rowScanner) (*model.Studio, error) {
	var s model.Studio
	if err := row.Scan(&s.ID, &s.Name, &s.Timezone, &s.SubscriptionTier, &s.EmailRemindersEnabled,
		&s.ReminderMinutesBefore, &s.StudioEmail, &s.CreatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

// GetStudio returns a studio by ID.
func (db *DB) GetStudio(ctx context.Context, id string) (*model.Studio, error) {
	s, err := scanStudio(db.QueryRowContext(ctx, `SELECT `+studioColumns+` FROM studios WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return s, nil
}

// ListStudios returns every studio ordered by name.
func (db *DB) ListStudios(ctx context.Context) ([]model.Studio, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+studioColumns+` FROM studios ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list studios: %w", err)
	}
	defer rows.Close()

	var out []model.Studio
	for rows.Next() {
		s, err := scanStudio(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// CreateLocation inserts a location.
func (db *DB) CreateLocation(ctx context.Context, l *model.Location) error {
	if l.ID == "" {
		l.ID = newID()
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO locations (id, studio_id, name, address, city) VALUES (?, ?, ?, ?, ?)`,
		l.ID, l.StudioID, l.Name, l.Address, l.City)
	if err != nil {
		return fmt.Errorf("insert location: %w", err)
	}
	return nil
}

// GetLocation returns one location of a studio.
func (db *DB) GetLocation(ctx context.Context, studioID, id string) (*model.Location, error) {
	var l model.Location
	err := db.QueryRowContext(ctx,
		`SELECT id, studio_id, name, address, city FROM locations WHERE studio_id = ? AND id = ?`,
		studioID, id).Scan(&l.ID, &l.StudioID, &l.Name, &l.Address, &l.City)
	if err != nil {
		return nil, notFound(err)
	}
	return &l, nil
}

// ListLocations returns all locations of a studio.
func (db *DB) ListLocations(ctx context.Context, studioID string) ([]model.Location, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, studio_id, name, address, city FROM locations WHERE studio_id = ? ORDER BY name, id`,
		studioID)
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	defer rows.Close()

	var out []model.Location
	for rows.Next() {
		var l model.Location
		if err := rows.Scan(&l.ID, &l.StudioID, &l.Name, &l.Address, &l.City); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// CreateArtist inserts an artist.
func (db *DB) CreateArtist(ctx context.Context, a *model.Artist) error {
	if a.ID == "" {
		a.ID = newID()
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO artists (id, studio_id, full_name, email) VALUES (?, ?, ?, ?)`,
		a.ID, a.StudioID, a.FullName, a.Email)
	if err != nil {
		return fmt.Errorf("insert artist: %w", err)
	}
	return nil
}

// GetArtist returns one artist of a studio.
func (db *DB) GetArtist(ctx context.Context, studioID, id string) (*model.Artist, error) {
	var a model.Artist
	err := db.QueryRowContext(ctx,
		`SELECT id, studio_id, full_name, email FROM artists WHERE studio_id = ? AND id = ?`,
		studioID, id).Scan(&a.ID, &a.StudioID, &a.FullName, &a.Email)
	if err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

// CreateWorkStation inserts a workstation.
func (db *DB) CreateWorkStation(ctx context.Context, w *model.WorkStation) error {
	if w.ID == "" {
		w.ID = newID()
	}
	if w.Status == "" {
		w.Status = model.StationActive
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO work_stations (id, studio_id, location_id, name, status) VALUES (?, ?, ?, ?, ?)`,
		w.ID, w.StudioID, w.LocationID, w.Name, string(w.Status))
	if err != nil {
		return fmt.Errorf("insert work station: %w", err)
	}
	return nil
}

// FilterWorkStations returns the workstations matching f ordered by name.
func (db *DB) FilterWorkStations(ctx context.Context, f model.WorkStationFilter) ([]model.WorkStation, error) {
	where := []string{"studio_id = ?"}
	args := []interface{}{f.StudioID}
	if f.LocationID != "" {
		where = append(where, "location_id = ?")
		args = append(args, f.LocationID)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}

	rows, err := db.QueryContext(ctx,
		`SELECT id, studio_id, location_id, name, status FROM work_stations WHERE `+
			strings.Join(where, " AND ")+` ORDER BY name, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("filter work stations: %w", err)
	}
	defer rows.Close()

	var out []model.WorkStation
	for rows.Next() {
		var (
			w      model.WorkStation
			status string
		)
		if err := rows.Scan(&w.ID, &w.StudioID, &w.LocationID, &w.Name, &status); err != nil {
			return nil, err
		}
		w.Status = model.WorkStationStatus(status)
		out = append(out, w)
	}
	return out, rows.Err()
}

// CreateAvailability inserts an availability window or block.
func (db *DB) CreateAvailability(ctx context.Context, a *model.Availability) error {
	if a.ID == "" {
		a.ID = newID()
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO availabilities (id, studio_id, artist_id, location_id, start_date, end_date,
			start_time, end_time, is_blocked, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.StudioID, a.ArtistID, a.LocationID, a.StartDate, a.EndDate,
		a.StartTime, a.EndTime, a.IsBlocked, a.Notes)
	if err != nil {
		return fmt.Errorf("insert availability: %w", err)
	}
	return nil
}

// FilterAvailabilities returns the availabilities matching f.
func (db *DB) FilterAvailabilities(ctx context.Context, f model.AvailabilityFilter) ([]model.Availability, error) {
	where := []string{"studio_id = ?"}
	args := []interface{}{f.StudioID}
	if f.ArtistID != "" {
		where = append(where, "artist_id = ?")
		args = append(args, f.ArtistID)
	}
	if f.BlockedOnly {
		where = append(where, "is_blocked = 1")
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, studio_id, artist_id, location_id, start_date, end_date,
			start_time, end_time, is_blocked, notes
		FROM availabilities WHERE `+strings.Join(where, " AND ")+`
		ORDER BY start_date, start_time, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("filter availabilities: %w", err)
	}
	defer rows.Close()

	var out []model.Availability
	for rows.Next() {
		var a model.Availability
		if err := rows.Scan(&a.ID, &a.StudioID, &a.ArtistID, &a.LocationID, &a.StartDate, &a.EndDate,
			&a.StartTime, &a.EndTime, &a.IsBlocked, &a.Notes); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// AddMember grants userID a role in a studio, replacing any previous role.
func (db *DB) AddMember(ctx context.Context, m access.Member) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO studio_members (studio_id, user_id, role, artist_id) VALUES (?, ?, ?, ?)
		ON CONFLICT(studio_id, user_id) DO UPDATE SET role = excluded.role, artist_id = excluded.artist_id`,
		m.StudioID, m.UserID, m.Role, m.ArtistID)
	if err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	return nil
}

// GetMember implements access.MemberRepository.
func (db *DB) GetMember(ctx context.Context, studioID, userID string) (*access.Member, error) {
	var m access.Member
	err := db.QueryRowContext(ctx,
		`SELECT studio_id, user_id, role, artist_id FROM studio_members WHERE studio_id = ? AND user_id = ?`,
		studioID, userID).Scan(&m.StudioID, &m.UserID, &m.Role, &m.ArtistID)
	if err == sql.ErrNoRows {
		return nil, access.ErrMemberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return &m, nil
}
