// Package repository holds the database/sql data access layer. The
// sentinel errors below let handlers and services tell failure scenarios
// apart with errors.Is.
package repository

import (
	"errors"
	"strings"
)

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own, such as an organizer editing another
// organizer's event. Handlers translate it into HTTP 403.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a delete or update cannot be performed
// because of dependent state: a venue that still hosts events, an event
// that already has bookings, or a ticket total below the tickets sold.
// Handlers translate it into HTTP 409.
var ErrConflict = errors.New("conflict")

// ErrNoChange indicates the UPDATE attempted to set fields equal to their
// current values.
var ErrNoChange = errors.New("no change")

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrVenueNotFound     = errors.New("venue not found")
	ErrEventNotFound     = errors.New("event not found")
	ErrPromotionNotFound = errors.New("promotion not found")
	ErrBookingNotFound   = errors.New("booking not found")
	ErrTicketNotFound    = errors.New("ticket not found")

	ErrEmailExists   = errors.New("email already exists")
	ErrDuplicateCode = errors.New("promotion code already exists")
)

// isDuplicate recognises unique-key violations from MySQL (error 1062) and
// SQLite.
func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "1062") || strings.Contains(msg, "unique constraint")
}
