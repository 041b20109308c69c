package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/star-events-ticketing/internal/model"
	"github.com/iliyamo/star-events-ticketing/internal/utils"
)

const userColumns = `id, email, password_hash, first_name, last_name, address, city, phone_number,
	date_of_birth, role, loyalty_points, is_active, created_at, updated_at`

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

func scanUser(s scanner) (*model.User, error) {
	var (
		u   model.User
		dob sql.NullTime
	)
	if err := s.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Address, &u.City,
		&u.Phone, &dob, &u.Role, &u.LoyaltyPoints, &u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	if dob.Valid {
		d := dob.Time
		u.DateOfBirth = &d
	}
	return &u, nil
}

// Create hashes the password, inserts the user and fills in ID and
// timestamps.
func (r *UserRepo) Create(ctx context.Context, u *model.User, password string, cost int) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return err
	}
	if !u.Role.Valid() {
		u.Role = model.RoleCustomer
	}
	now := time.Now().UTC()
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO users (email, password_hash, first_name, last_name, address, city, phone_number,
			date_of_birth, role, loyalty_points, is_active, created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		u.Email, hash, u.FirstName, u.LastName, u.Address, u.City, u.Phone,
		u.DateOfBirth, u.Role, u.LoyaltyPoints, true, now, now)
	if err != nil {
		if isDuplicate(err) {
			return ErrEmailExists
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = uint64(id)
	u.PasswordHash = hash
	u.IsActive = true
	u.CreatedAt, u.UpdatedAt = now, now
	return nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	return u, err
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	return r.getByID(ctx, r.DB, id)
}

// GetByIDTx is GetByID inside the caller's transaction.
func (r *UserRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.User, error) {
	return r.getByID(ctx, tx, id)
}

func (r *UserRepo) getByID(ctx context.Context, q querier, id uint64) (*model.User, error) {
	u, err := scanUser(q.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	return u, err
}

// List returns every user, newest first.
func (r *UserRepo) List(ctx context.Context) ([]model.User, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY created_at DESC, id DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

// UpdateProfile overwrites the self-service profile fields.
func (r *UserRepo) UpdateProfile(ctx context.Context, u *model.User) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE users SET first_name=?, last_name=?, address=?, city=?, phone_number=?, date_of_birth=?, updated_at=?
		 WHERE id=?`,
		u.FirstName, u.LastName, u.Address, u.City, u.Phone, u.DateOfBirth, time.Now().UTC(), u.ID)
	return affectedOr(res, err, ErrUserNotFound)
}

// SetPassword replaces the stored hash.
func (r *UserRepo) SetPassword(ctx context.Context, id uint64, password string, cost int) error {
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx, "UPDATE users SET password_hash=?, updated_at=? WHERE id=?",
		hash, time.Now().UTC(), id)
	return affectedOr(res, err, ErrUserNotFound)
}

// SetRole changes the role of an account.
func (r *UserRepo) SetRole(ctx context.Context, id uint64, role model.Role) error {
	res, err := r.DB.ExecContext(ctx, "UPDATE users SET role=?, updated_at=? WHERE id=?",
		role, time.Now().UTC(), id)
	return affectedOr(res, err, ErrUserNotFound)
}

// ToggleActive flips the lock state of an account and returns the new
// value of is_active.
func (r *UserRepo) ToggleActive(ctx context.Context, id uint64) (bool, error) {
	res, err := r.DB.ExecContext(ctx, "UPDATE users SET is_active = NOT is_active, updated_at=? WHERE id=?",
		time.Now().UTC(), id)
	if err := affectedOr(res, err, ErrUserNotFound); err != nil {
		return false, err
	}
	var active bool
	if err := r.DB.QueryRowContext(ctx, "SELECT is_active FROM users WHERE id=?", id).Scan(&active); err != nil {
		return false, err
	}
	return active, nil
}

// AdjustLoyaltyTx debits used points and credits earned points in one
// conditional update. It returns false when the balance no longer covers
// the points being redeemed.
func (r *UserRepo) AdjustLoyaltyTx(ctx context.Context, tx *sql.Tx, id uint64, used, earned int) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE users SET loyalty_points = loyalty_points - ? + ?, updated_at=?
		 WHERE id=? AND loyalty_points >= ?`,
		used, earned, time.Now().UTC(), id, used)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Count returns the number of registered users.
func (r *UserRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&n)
	return n, err
}

// affectedOr maps a zero-row UPDATE/DELETE onto notFound.
func affectedOr(res sql.Result, err error, notFound error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
