package service

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTicketNumber(t *testing.T) {
	assert.Equal(t, "TKT000042001", TicketNumber(42, 1))
	assert.Equal(t, "TKT123456010", TicketNumber(123456, 10))
}

func TestQRPayloadRoundTrip(t *testing.T) {
	payload := QRPayload(7, TicketNumber(7, 2), 3, 9)
	assert.Equal(t, "7|TKT000007002|3|9", payload)

	got, err := ParseQRPayload(payload)
	require.NoError(t, err)
	assert.Equal(t, ScannedTicket{BookingID: 7, TicketNumber: "TKT000007002", EventID: 3, UserID: 9}, got)
}

func TestParseQRPayload_Rejects(t *testing.T) {
	for _, p := range []string{
		"",
		"7|TKT000007002|3",
		"7||3|9",
		"x|TKT000007002|3|9",
		"0|TKT000007002|3|9",
		"7|TKT000007002|3|9|extra",
	} {
		_, err := ParseQRPayload(p)
		assert.ErrorIs(t, err, ErrInvalidQRCode, "payload %q", p)
	}
}

func TestQRCodeWriter_WriteTicketPNG(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "qrcodes")
	w := NewQRCodeWriter(dir, "/static/qrcodes/", 0)
	assert.Equal(t, 300, w.Size)

	at := time.Date(2026, 5, 4, 18, 30, 15, 0, time.UTC)
	path, err := w.WriteTicketPNG("1|TKT000001001|2|3", "TKT000001001", at)
	require.NoError(t, err)
	assert.Equal(t, "/static/qrcodes/QR_TKT000001001_20260504183015.png", path)

	raw, err := os.ReadFile(filepath.Join(dir, "QR_TKT000001001_20260504183015.png"))
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, 300, img.Bounds().Dx())
}

func TestRenderTicketPDF(t *testing.T) {
	w := NewQRCodeWriter(t.TempDir(), "/q", 200)
	qr, err := w.PNG("1|TKT000001001|2|3")
	require.NoError(t, err)

	pdf, err := RenderTicketPDF(TicketPDFData{
		TicketNumber:   "TKT000001001",
		EventName:      "Jazz Night",
		StartsAt:       time.Date(2026, 5, 4, 19, 0, 0, 0, time.UTC),
		VenueName:      "Nelum Pokuna",
		VenueAddress:   "110 Ananda Coomaraswamy Mawatha",
		CustomerName:   "Ann Perera",
		CustomerEmail:  "ann@example.com",
		BookingID:      1,
		QRCodePngBytes: qr,
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF-")))
}
