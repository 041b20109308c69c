package model

import "time"

// Ticket is a single admission issued for a booking. QRCode holds the
// scanned payload "bookingID|ticketNumber|eventID|userID"; QRCodeImagePath
// is the public path of the rendered PNG once it exists.
type Ticket struct {
	ID              uint64     `json:"id"`
	BookingID       uint64     `json:"booking_id"`
	TicketNumber    string     `json:"ticket_number"`
	QRCode          string     `json:"qr_code"`
	QRCodeImagePath *string    `json:"qr_code_image_path,omitempty"`
	IsUsed          bool       `json:"is_used"`
	UsedAt          *time.Time `json:"used_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}
