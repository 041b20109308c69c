// Package service implements the booking workflow and the supporting
// ticket, report and messaging services on top of the repositories.
package service

import "errors"

var (
	// ErrEventNotFound covers events that do not exist or are inactive.
	ErrEventNotFound = errors.New("event not found")
	// ErrInsufficientTickets is returned when fewer tickets remain than requested.
	ErrInsufficientTickets = errors.New("not enough tickets available")
	// ErrInvalidTicketCount is returned for counts outside MinTicketsPerBooking..MaxTicketsPerBooking.
	ErrInvalidTicketCount = errors.New("number of tickets must be between 1 and 10")
	// ErrUnauthenticated is returned when the booking user no longer exists.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrLoyaltyChanged is returned when the loyalty balance dropped below the
	// points being redeemed while the booking was in flight.
	ErrLoyaltyChanged = errors.New("loyalty balance changed, please retry")
	// ErrTicketAlreadyUsed is returned by CheckIn for a ticket scanned before.
	ErrTicketAlreadyUsed = errors.New("ticket already used")
	// ErrInvalidQRCode is returned by CheckIn for payloads that do not match a ticket.
	ErrInvalidQRCode = errors.New("invalid qr code")
)
