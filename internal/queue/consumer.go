package queue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

const maxBackoff = 30 * time.Second

// Handler processes one booking confirmation. A returned error rejects the
// message without requeueing it.
type Handler func(ctx context.Context, ev BookingConfirmedEvent) error

// Consumer reads booking.confirmed messages and hands them to Handle. Run
// reconnects with exponential backoff until ctx is cancelled.
type Consumer struct {
	URL      string
	Prefetch int
	Log      logrus.FieldLogger
	Handle   Handler
}

func NewConsumer(url string, log logrus.FieldLogger, h Handler) *Consumer {
	return &Consumer{URL: url, Prefetch: 50, Log: log, Handle: h}
}

// Run blocks until ctx is done and always returns ctx.Err().
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			c.Log.WithError(err).Warnf("booking-consumer: dial failed; retrying in %s", backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < maxBackoff {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.Log.WithError(err).Warn("booking-consumer: consume loop ended; reconnecting")
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(c.Prefetch, 0, false); err != nil {
		c.Log.WithError(err).Warn("booking-consumer: set QoS failed")
	}
	if _, err := ch.QueueDeclare(BookingConfirmedQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(BookingConfirmedQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	c.Log.Info("booking-consumer: listening")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.deliver(ctx, d.Body); err != nil {
				c.Log.WithError(err).Error("booking-consumer: handle message failed")
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (c *Consumer) deliver(ctx context.Context, body []byte) error {
	ev, err := DecodeBookingConfirmed(body)
	if err != nil {
		return err
	}
	return c.Handle(ctx, ev)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// WriteAuditLine writes a single human-readable line describing ev.
func WriteAuditLine(w io.Writer, ev BookingConfirmedEvent) error {
	promo := ev.PromotionCode
	if promo == "" {
		promo = "-"
	}
	line := fmt.Sprintf("[%s] Booking confirmed | booking_id=%d | user_id=%d | event_id=%d | event=%q | venue=%q | final=%s | discount=%s | promo=%s | points_used=%d | points_earned=%d | txn=%s | tickets=[%s]\n",
		ev.ConfirmedAt.UTC().Format(time.RFC3339), ev.BookingID, ev.UserID, ev.EventID, ev.EventName, ev.VenueName,
		ev.FinalAmount.StringFixed(2), ev.DiscountAmount.StringFixed(2), promo,
		ev.LoyaltyPointsUsed, ev.LoyaltyPointsEarned, ev.TransactionID, strings.Join(ev.TicketNumbers, ","))
	_, err := io.WriteString(w, line)
	return err
}

// AppendAuditLine appends ev to the file at path, creating its directory.
func AppendAuditLine(path string, ev BookingConfirmedEvent) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	return WriteAuditLine(f, ev)
}
