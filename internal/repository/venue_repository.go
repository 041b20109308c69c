package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/star-events-ticketing/internal/model"
)

const venueColumns = `id, name, address, city, phone_number, description, capacity, is_active, created_at, updated_at`

// VenueRepo encapsulates all database queries related to venues.
type VenueRepo struct {
	db *sql.DB
}

func NewVenueRepo(db *sql.DB) *VenueRepo {
	return &VenueRepo{db: db}
}

func scanVenue(s scanner) (*model.Venue, error) {
	var v model.Venue
	err := s.Scan(&v.ID, &v.Name, &v.Address, &v.City, &v.Phone, &v.Description, &v.Capacity,
		&v.IsActive, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Create inserts a new venue and populates its ID and timestamps.
func (r *VenueRepo) Create(ctx context.Context, v *model.Venue) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO venues (name, address, city, phone_number, description, capacity, is_active, created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?,?,?)`,
		v.Name, v.Address, v.City, v.Phone, v.Description, v.Capacity, v.IsActive, now, now)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	v.ID = uint64(id)
	v.CreatedAt, v.UpdatedAt = now, now
	return nil
}

// GetByID returns ErrVenueNotFound when no row matches.
func (r *VenueRepo) GetByID(ctx context.Context, id uint64) (*model.Venue, error) {
	v, err := scanVenue(r.db.QueryRowContext(ctx, "SELECT "+venueColumns+" FROM venues WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrVenueNotFound
	}
	return v, err
}

// List returns venues ordered by name. Inactive venues are skipped when
// activeOnly is set.
func (r *VenueRepo) List(ctx context.Context, activeOnly bool) ([]model.Venue, error) {
	q := "SELECT " + venueColumns + " FROM venues"
	if activeOnly {
		q += " WHERE is_active = 1"
	}
	q += " ORDER BY name, id"
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Venue
	for rows.Next() {
		v, err := scanVenue(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

// Update writes every editable column. It only performs the UPDATE when at
// least one field differs; otherwise it returns ErrNoChange. A missing row
// yields ErrVenueNotFound.
func (r *VenueRepo) Update(ctx context.Context, v *model.Venue) error {
	const q = `UPDATE venues
	           SET name = ?, address = ?, city = ?, phone_number = ?, description = ?, capacity = ?, is_active = ?, updated_at = ?
	           WHERE id = ?
	             AND (name <> ? OR address <> ? OR city <> ? OR phone_number <> ? OR description <> ? OR capacity <> ? OR is_active <> ?)`
	res, err := r.db.ExecContext(ctx, q,
		v.Name, v.Address, v.City, v.Phone, v.Description, v.Capacity, v.IsActive, time.Now().UTC(),
		v.ID,
		v.Name, v.Address, v.City, v.Phone, v.Description, v.Capacity, v.IsActive,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	// Determine if it's "not found" or simply "no change".
	var one int
	if err := r.db.QueryRowContext(ctx, "SELECT 1 FROM venues WHERE id = ? LIMIT 1", v.ID).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrVenueNotFound
		}
		return err
	}
	return ErrNoChange
}

// Delete removes a venue. A venue that is still referenced by events is
// kept and ErrConflict is returned.
func (r *VenueRepo) Delete(ctx context.Context, id uint64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer rollback(tx, &committed)

	var one int
	if err := tx.QueryRowContext(ctx, "SELECT 1 FROM venues WHERE id = ?", id).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrVenueNotFound
		}
		return err
	}
	var events int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM events WHERE venue_id = ?", id).Scan(&events); err != nil {
		return err
	}
	if events > 0 {
		return ErrConflict
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM venues WHERE id = ?", id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
