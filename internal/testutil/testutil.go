// Package testutil provides an in-memory SQLite database with the service
// schema plus seed helpers for repository, service and handler tests.
package testutil

import (
	"database/sql"
	_ "embed"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

//go:embed schema.sql
var schema string

// NewDB opens a private in-memory database and applies the schema. A single
// connection keeps every statement on the same in-memory database.
func NewDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", "file::memory:?_foreign_keys=on")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
	return db
}

// UserSeed describes a row inserted by InsertUser. Empty fields get defaults.
type UserSeed struct {
	Email         string
	PasswordHash  string
	FirstName     string
	LastName      string
	Role          string
	LoyaltyPoints int
	Inactive      bool
}

func InsertUser(t *testing.T, db *sql.DB, u UserSeed) uint64 {
	t.Helper()
	if u.Role == "" {
		u.Role = "CUSTOMER"
	}
	if u.FirstName == "" {
		u.FirstName = "Test"
	}
	if u.LastName == "" {
		u.LastName = "User"
	}
	if u.PasswordHash == "" {
		u.PasswordHash = "x"
	}
	now := time.Now().UTC()
	res, err := db.Exec(`INSERT INTO users (email, password_hash, first_name, last_name, city, role, loyalty_points, is_active, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		u.Email, u.PasswordHash, u.FirstName, u.LastName, "Colombo", u.Role, u.LoyaltyPoints, !u.Inactive, now, now)
	require.NoError(t, err)
	return lastID(t, res)
}

func InsertVenue(t *testing.T, db *sql.DB, name, city string) uint64 {
	t.Helper()
	now := time.Now().UTC()
	res, err := db.Exec(`INSERT INTO venues (name, address, city, capacity, is_active, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?)`, name, "1 Main Street", city, 5000, true, now, now)
	require.NoError(t, err)
	return lastID(t, res)
}

// EventSeed describes a row inserted by InsertEvent.
type EventSeed struct {
	Name        string
	Category    string
	StartsAt    time.Time
	VenueID     uint64
	OrganizerID uint64
	Price       string
	Total       int
	Available   int
	Inactive    bool
}

func InsertEvent(t *testing.T, db *sql.DB, e EventSeed) uint64 {
	t.Helper()
	if e.Category == "" {
		e.Category = "Concert"
	}
	if e.StartsAt.IsZero() {
		e.StartsAt = time.Now().UTC().Add(7 * 24 * time.Hour).Truncate(time.Second)
	}
	if e.Price == "" {
		e.Price = "2500"
	}
	now := time.Now().UTC()
	res, err := db.Exec(`INSERT INTO events (name, description, category, starts_at, venue_id, organizer_id, ticket_price, total_tickets, available_tickets, is_active, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		e.Name, "An evening out", e.Category, e.StartsAt, e.VenueID, e.OrganizerID, e.Price, e.Total, e.Available, !e.Inactive, now, now)
	require.NoError(t, err)
	return lastID(t, res)
}

// PromotionSeed describes a row inserted by InsertPromotion. MaxDiscount
// and MaxUses are optional.
type PromotionSeed struct {
	Code        string
	Percentage  string
	MaxDiscount *string
	Start       time.Time
	End         time.Time
	MaxUses     *int
	CurrentUses int
	Inactive    bool
}

func InsertPromotion(t *testing.T, db *sql.DB, p PromotionSeed) uint64 {
	t.Helper()
	now := time.Now().UTC()
	if p.Start.IsZero() {
		p.Start = now.Add(-24 * time.Hour)
	}
	if p.End.IsZero() {
		p.End = now.Add(24 * time.Hour)
	}
	res, err := db.Exec(`INSERT INTO promotions (code, discount_percentage, max_discount_amount, start_date, end_date, max_uses, current_uses, is_active, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		p.Code, p.Percentage, p.MaxDiscount, p.Start, p.End, p.MaxUses, p.CurrentUses, !p.Inactive, now, now)
	require.NoError(t, err)
	return lastID(t, res)
}

// Int and Str return pointers for optional seed fields.
func Int(v int) *int       { return &v }
func Str(v string) *string { return &v }

func lastID(t *testing.T, res sql.Result) uint64 {
	t.Helper()
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return uint64(id)
}
