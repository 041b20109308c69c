package service

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/skip2/go-qrcode"
)

// QRCodeWriter renders ticket payloads as PNG images. Images are written to
// Dir and served under URLPrefix.
type QRCodeWriter struct {
	Dir       string
	URLPrefix string
	Size      int
}

func NewQRCodeWriter(dir, urlPrefix string, size int) *QRCodeWriter {
	if size <= 0 {
		size = 300
	}
	return &QRCodeWriter{Dir: dir, URLPrefix: strings.TrimRight(urlPrefix, "/"), Size: size}
}

// PNG encodes payload with 25% error correction.
func (w *QRCodeWriter) PNG(payload string) ([]byte, error) {
	qr, err := qrcode.New(payload, qrcode.High)
	if err != nil {
		return nil, fmt.Errorf("qrcode: encode: %w", err)
	}
	png, err := qr.PNG(w.Size)
	if err != nil {
		return nil, fmt.Errorf("qrcode: png: %w", err)
	}
	return png, nil
}

// WriteTicketPNG stores the image as QR_<ticket>_<yyyyMMddHHmmss>.png and
// returns its public path.
func (w *QRCodeWriter) WriteTicketPNG(payload, ticketNumber string, at time.Time) (string, error) {
	png, err := w.PNG(payload)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return "", fmt.Errorf("qrcode: mkdir: %w", err)
	}
	name := fmt.Sprintf("QR_%s_%s.png", ticketNumber, at.UTC().Format("20060102150405"))
	if err := os.WriteFile(filepath.Join(w.Dir, name), png, 0o644); err != nil {
		return "", fmt.Errorf("qrcode: write: %w", err)
	}
	return w.URLPrefix + "/" + name, nil
}

// TicketNumber formats the human-readable ticket number: TKT, the booking
// ID padded to six digits and the 1-based sequence padded to three.
func TicketNumber(bookingID uint64, seq int) string {
	return fmt.Sprintf("TKT%06d%03d", bookingID, seq)
}

// QRPayload is the string encoded into a ticket's QR code.
func QRPayload(bookingID uint64, ticketNumber string, eventID, userID uint64) string {
	return fmt.Sprintf("%d|%s|%d|%d", bookingID, ticketNumber, eventID, userID)
}

// ScannedTicket is a decoded QR payload.
type ScannedTicket struct {
	BookingID    uint64
	TicketNumber string
	EventID      uint64
	UserID       uint64
}

// ParseQRPayload reverses QRPayload.
func ParseQRPayload(payload string) (ScannedTicket, error) {
	parts := strings.Split(strings.TrimSpace(payload), "|")
	if len(parts) != 4 || parts[1] == "" {
		return ScannedTicket{}, ErrInvalidQRCode
	}
	var ids [3]uint64
	for i, p := range []string{parts[0], parts[2], parts[3]} {
		n, err := strconv.ParseUint(p, 10, 64)
		if err != nil || n == 0 {
			return ScannedTicket{}, ErrInvalidQRCode
		}
		ids[i] = n
	}
	return ScannedTicket{BookingID: ids[0], TicketNumber: parts[1], EventID: ids[1], UserID: ids[2]}, nil
}
