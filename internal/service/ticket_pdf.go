package service

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// TicketPDFData holds what is printed on a downloadable ticket.
type TicketPDFData struct {
	TicketNumber   string
	EventName      string
	StartsAt       time.Time
	VenueName      string
	VenueAddress   string
	CustomerName   string
	CustomerEmail  string
	BookingID      uint64
	QRCodePngBytes []byte
}

// RenderTicketPDF lays out a single A4 ticket with the QR code on top.
func RenderTicketPDF(data TicketPDFData) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Ticket "+data.TicketNumber, true)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 20)
	pdf.CellFormat(0, 12, "Star Events", "", 1, "C", false, 0, "")
	pdf.Ln(4)

	if len(data.QRCodePngBytes) > 0 {
		opts := gofpdf.ImageOptions{ImageType: "PNG"}
		name := "qr_" + data.TicketNumber
		pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(data.QRCodePngBytes))
		const side = 90.0
		pdf.ImageOptions(name, (210.0-side)/2, pdf.GetY(), side, side, false, opts, 0, "")
		pdf.Ln(side + 4)
	}

	pdf.SetDrawColor(200, 200, 200)
	pdf.SetLineWidth(0.5)
	pdf.Line(20, pdf.GetY(), 190, pdf.GetY())
	pdf.Ln(6)

	row := func(label, value string) {
		pdf.SetX(20)
		pdf.SetFont("Arial", "", 12)
		pdf.CellFormat(45, 8, label, "", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "B", 12)
		pdf.MultiCell(125, 8, value, "", "L", false)
	}
	row("Ticket", data.TicketNumber)
	row("Event", data.EventName)
	row("Date", data.StartsAt.Format("Monday, January 2, 2006"))
	row("Time", data.StartsAt.Format("3:04 PM"))
	row("Venue", data.VenueName)
	if data.VenueAddress != "" {
		row("Address", data.VenueAddress)
	}
	row("Guest", data.CustomerName)
	row("Email", data.CustomerEmail)
	row("Booking", fmt.Sprintf("#%d", data.BookingID))

	pdf.Ln(6)
	pdf.SetFont("Arial", "I", 9)
	pdf.SetX(20)
	pdf.MultiCell(170, 5, "Present this QR code at the entrance. Each ticket admits one person and can be scanned once.", "", "L", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("ticket pdf: %w", err)
	}
	return buf.Bytes(), nil
}
