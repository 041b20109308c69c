package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/star-events-ticketing/internal/metrics"
	"github.com/iliyamo/star-events-ticketing/internal/model"
	"github.com/iliyamo/star-events-ticketing/internal/queue"
	"github.com/iliyamo/star-events-ticketing/internal/repository"
)

// PaymentMethodOnline is recorded on every booking paid through the site.
const PaymentMethodOnline = "Online Payment"

// TicketImageWriter renders a ticket's QR payload and returns the public
// path of the image.
type TicketImageWriter interface {
	WriteTicketPNG(payload, ticketNumber string, at time.Time) (string, error)
}

// BookingEventPublisher hands booking confirmations to the message broker.
type BookingEventPublisher interface {
	PublishBookingConfirmed(ctx context.Context, ev queue.BookingConfirmedEvent) error
}

// CachePurger drops cached public responses after inventory changes.
type CachePurger interface {
	Purge(ctx context.Context) error
}

// Repositories bundles the data access used by BookingService.
type Repositories struct {
	Events     *repository.EventRepo
	Users      *repository.UserRepo
	Promotions *repository.PromotionRepo
	Bookings   *repository.BookingRepo
	Tickets    *repository.TicketRepo
}

// BookingRequest is a customer's booking or quote request.
type BookingRequest struct {
	EventID          uint64
	NumberOfTickets  int
	PromotionCode    string
	UseLoyaltyPoints bool
}

// BookingReceipt is returned by Book.
type BookingReceipt struct {
	Booking *model.BookingDetail `json:"booking"`
	Quote   Quote                `json:"quote"`
}

// BookingService runs the booking transaction and the ticket lookups
// around it. Publisher, Cache and Metrics are optional.
type BookingService struct {
	DB        *sql.DB
	Repos     Repositories
	QRCodes   TicketImageWriter
	Publisher BookingEventPublisher
	Cache     CachePurger
	Metrics   *metrics.Recorder
	Log       logrus.FieldLogger
	Now       func() time.Time
}

func NewBookingService(db *sql.DB, repos Repositories, qr TicketImageWriter, log logrus.FieldLogger) *BookingService {
	if db == nil || repos.Events == nil || repos.Users == nil || repos.Promotions == nil || repos.Bookings == nil || repos.Tickets == nil {
		panic("nil dependency passed to NewBookingService")
	}
	return &BookingService{DB: db, Repos: repos, QRCodes: qr, Log: log, Now: func() time.Time { return time.Now().UTC() }}
}

func (s *BookingService) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now()
}

// Quote prices a prospective booking without reserving anything or
// consuming a promotion use.
func (s *BookingService) Quote(ctx context.Context, userID uint64, req BookingRequest) (Quote, error) {
	now := s.now()
	ev, err := s.Repos.Events.GetByID(ctx, req.EventID)
	if errors.Is(err, repository.ErrEventNotFound) || (err == nil && !ev.OnSale(now)) {
		return Quote{}, ErrEventNotFound
	}
	if err != nil {
		return Quote{}, err
	}
	if req.NumberOfTickets >= MinTicketsPerBooking && ev.AvailableTickets < req.NumberOfTickets {
		return Quote{}, ErrInsufficientTickets
	}
	user, err := s.Repos.Users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return Quote{}, ErrUnauthenticated
	}
	if err != nil {
		return Quote{}, err
	}
	var promo *model.Promotion
	if req.PromotionCode != "" {
		promo, err = s.Repos.Promotions.GetByCode(ctx, req.PromotionCode)
		if errors.Is(err, repository.ErrPromotionNotFound) {
			promo, err = nil, nil
		}
		if err != nil {
			return Quote{}, err
		}
	}
	return Calculate(QuoteInput{
		TicketPrice:      ev.TicketPrice,
		NumberOfTickets:  req.NumberOfTickets,
		Promotion:        promo,
		UseLoyaltyPoints: req.UseLoyaltyPoints,
		LoyaltyBalance:   user.LoyaltyPoints,
		Now:              now,
	})
}

// Book validates the request, prices it and persists the booking, its
// tickets, the promotion use, the inventory decrement and the loyalty
// movement in one transaction. Unknown or unusable promotion codes are
// ignored; Quote.PromotionApplied tells the caller whether one counted.
func (s *BookingService) Book(ctx context.Context, userID uint64, req BookingRequest) (*BookingReceipt, error) {
	started := time.Now()
	log := s.Log.WithFields(logrus.Fields{"user_id": userID, "event_id": req.EventID, "tickets": req.NumberOfTickets})

	if req.NumberOfTickets < MinTicketsPerBooking || req.NumberOfTickets > MaxTicketsPerBooking {
		s.Metrics.BookingFailed("invalid_count")
		return nil, ErrInvalidTicketCount
	}
	now := s.now()

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	ev, err := s.Repos.Events.GetByIDTx(ctx, tx, req.EventID)
	if errors.Is(err, repository.ErrEventNotFound) || (err == nil && !ev.OnSale(now)) {
		s.Metrics.BookingFailed("event_not_found")
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}
	if ev.AvailableTickets < req.NumberOfTickets {
		s.Metrics.BookingFailed("sold_out")
		return nil, ErrInsufficientTickets
	}

	user, err := s.Repos.Users.GetByIDTx(ctx, tx, userID)
	if errors.Is(err, repository.ErrUserNotFound) || (err == nil && !user.IsActive) {
		return nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, err
	}

	promo, err := s.claimPromotion(ctx, tx, req.PromotionCode, now)
	if err != nil {
		return nil, err
	}

	quote, err := Calculate(QuoteInput{
		TicketPrice:      ev.TicketPrice,
		NumberOfTickets:  req.NumberOfTickets,
		Promotion:        promo,
		UseLoyaltyPoints: req.UseLoyaltyPoints,
		LoyaltyBalance:   user.LoyaltyPoints,
		Now:              now,
	})
	if err != nil {
		return nil, err
	}

	reserved, err := s.Repos.Events.ReserveTicketsTx(ctx, tx, ev.ID, req.NumberOfTickets, now)
	if err != nil {
		return nil, fmt.Errorf("reserve tickets: %w", err)
	}
	if !reserved {
		s.Metrics.BookingFailed("sold_out")
		return nil, ErrInsufficientTickets
	}

	booking := &model.Booking{
		UserID:              userID,
		EventID:             ev.ID,
		NumberOfTickets:     req.NumberOfTickets,
		TotalAmount:         quote.TotalAmount,
		DiscountAmount:      quote.DiscountAmount,
		FinalAmount:         quote.FinalAmount,
		PaymentStatus:       model.PaymentPending,
		LoyaltyPointsUsed:   quote.PointsUsed,
		LoyaltyPointsEarned: quote.PointsEarned,
		BookingDate:         now,
	}
	if quote.PromotionApplied {
		code := quote.PromotionCode
		booking.PromotionCode = &code
	}
	if err := s.Repos.Bookings.CreateTx(ctx, tx, booking); err != nil {
		return nil, fmt.Errorf("create booking: %w", err)
	}

	booking.PaymentTransactionID = fmt.Sprintf("TXN%s%d", now.Format("20060102150405"), booking.ID)
	booking.PaymentMethod = PaymentMethodOnline
	if err := s.Repos.Bookings.CompletePaymentTx(ctx, tx, booking.ID, booking.PaymentTransactionID, booking.PaymentMethod); err != nil {
		return nil, fmt.Errorf("complete payment: %w", err)
	}
	booking.PaymentStatus = model.PaymentCompleted

	adjusted, err := s.Repos.Users.AdjustLoyaltyTx(ctx, tx, userID, quote.PointsUsed, quote.PointsEarned)
	if err != nil {
		return nil, fmt.Errorf("adjust loyalty: %w", err)
	}
	if !adjusted {
		s.Metrics.BookingFailed("loyalty_changed")
		return nil, ErrLoyaltyChanged
	}

	tickets := IssueTickets(booking.ID, ev.ID, userID, req.NumberOfTickets, now)
	if err := s.Repos.Tickets.CreateBulkTx(ctx, tx, tickets); err != nil {
		return nil, fmt.Errorf("create tickets: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true

	log = log.WithFields(logrus.Fields{"booking_id": booking.ID, "final_amount": quote.FinalAmount.StringFixed(2)})
	log.Info("booking completed")
	s.Metrics.BookingCompleted(req.NumberOfTickets, quote.FinalAmount, quote.PromotionCode,
		quote.PointsUsed, quote.PointsEarned, time.Since(started))

	detail, err := s.Repos.Bookings.GetDetail(ctx, booking.ID)
	if err != nil {
		// The booking is committed; answer with what was written.
		log.WithError(err).Warn("reload committed booking")
		detail = &model.BookingDetail{
			Booking:       *booking,
			EventName:     ev.Name,
			EventStartsAt: ev.StartsAt,
			CustomerName:  user.FullName(),
			CustomerEmail: user.Email,
		}
	}
	detail.Tickets = tickets

	s.afterCommit(ctx, log, detail)

	// reload so rendered image paths are visible to the caller
	if fresh, err := s.Repos.Tickets.ListByBooking(ctx, booking.ID); err == nil {
		detail.Tickets = fresh
	}
	return &BookingReceipt{Booking: detail, Quote: quote}, nil
}

// claimPromotion returns the promotion to apply, or nil when code is empty,
// unknown, unusable now, or its last use was just taken.
func (s *BookingService) claimPromotion(ctx context.Context, tx *sql.Tx, code string, now time.Time) (*model.Promotion, error) {
	if code == "" {
		return nil, nil
	}
	p, err := s.Repos.Promotions.GetByCodeTx(ctx, tx, code)
	if errors.Is(err, repository.ErrPromotionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !p.Usable(now) {
		return nil, nil
	}
	claimed, err := s.Repos.Promotions.ClaimUseTx(ctx, tx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("claim promotion: %w", err)
	}
	if !claimed {
		return nil, nil
	}
	// p still holds the pre-claim count so Calculate sees it as usable.
	return p, nil
}

// IssueTickets builds the ticket rows of a booking.
func IssueTickets(bookingID, eventID, userID uint64, n int, at time.Time) []model.Ticket {
	tickets := make([]model.Ticket, n)
	for i := range tickets {
		number := TicketNumber(bookingID, i+1)
		tickets[i] = model.Ticket{
			BookingID:    bookingID,
			TicketNumber: number,
			QRCode:       QRPayload(bookingID, number, eventID, userID),
			CreatedAt:    at,
		}
	}
	return tickets
}

// afterCommit runs the side effects of a committed booking. None of them
// can fail the booking.
func (s *BookingService) afterCommit(ctx context.Context, log logrus.FieldLogger, d *model.BookingDetail) {
	rendered := false
	if s.Publisher != nil {
		if err := s.Publisher.PublishBookingConfirmed(ctx, ConfirmationEvent(d, s.now())); err != nil {
			log.WithError(err).Warn("publish booking confirmation failed; rendering tickets inline")
		} else {
			rendered = true // the consumer renders the images
		}
	}
	if !rendered {
		if err := s.RenderTicketQRCodes(ctx, d.ID); err != nil {
			log.WithError(err).Error("render ticket qr codes")
		}
	}
	if s.Cache != nil {
		if err := s.Cache.Purge(ctx); err != nil {
			log.WithError(err).Warn("purge response cache")
		}
	}
}

// ConfirmationEvent builds the broker message for a committed booking.
func ConfirmationEvent(d *model.BookingDetail, at time.Time) queue.BookingConfirmedEvent {
	ev := queue.BookingConfirmedEvent{
		BookingID:           d.ID,
		UserID:              d.UserID,
		CustomerEmail:       d.CustomerEmail,
		EventID:             d.EventID,
		EventName:           d.EventName,
		VenueName:           d.VenueName,
		StartsAt:            d.EventStartsAt,
		TotalAmount:         d.TotalAmount,
		DiscountAmount:      d.DiscountAmount,
		FinalAmount:         d.FinalAmount,
		LoyaltyPointsUsed:   d.LoyaltyPointsUsed,
		LoyaltyPointsEarned: d.LoyaltyPointsEarned,
		TransactionID:       d.PaymentTransactionID,
		ConfirmedAt:         at,
	}
	if d.PromotionCode != nil {
		ev.PromotionCode = *d.PromotionCode
	}
	for _, t := range d.Tickets {
		ev.TicketNumbers = append(ev.TicketNumbers, t.TicketNumber)
	}
	return ev
}

// RenderTicketQRCodes writes the QR image of every ticket of the booking
// that does not have one yet and stores its path. It is safe to run more
// than once.
func (s *BookingService) RenderTicketQRCodes(ctx context.Context, bookingID uint64) error {
	if s.QRCodes == nil {
		return nil
	}
	tickets, err := s.Repos.Tickets.ListByBooking(ctx, bookingID)
	if err != nil {
		return err
	}
	var errs []error
	for _, t := range tickets {
		if t.QRCodeImagePath != nil {
			continue
		}
		path, err := s.QRCodes.WriteTicketPNG(t.QRCode, t.TicketNumber, s.now())
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", t.TicketNumber, err))
			continue
		}
		if err := s.Repos.Tickets.SetImagePath(ctx, t.ID, path); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", t.TicketNumber, err))
		}
	}
	return errors.Join(errs...)
}

// ListForUser returns the caller's bookings, newest first.
func (s *BookingService) ListForUser(ctx context.Context, userID uint64) ([]model.BookingDetail, error) {
	return s.Repos.Bookings.ListByUser(ctx, userID)
}

// UpcomingForUser returns the caller's completed bookings for events that
// have not started yet.
func (s *BookingService) UpcomingForUser(ctx context.Context, userID uint64) ([]model.BookingDetail, error) {
	return s.Repos.Bookings.ListUpcomingByUser(ctx, userID, s.now())
}

// GetBooking returns a booking with its tickets. Only the owner and roles
// allowed to view all bookings may read it.
func (s *BookingService) GetBooking(ctx context.Context, actorID uint64, role model.Role, id uint64) (*model.BookingDetail, error) {
	d, err := s.Repos.Bookings.GetDetail(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.UserID != actorID && !role.Can(model.CapViewAllBookings) {
		return nil, repository.ErrForbidden
	}
	tickets, err := s.Repos.Tickets.ListByBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	d.Tickets = tickets
	return d, nil
}

// GetTicket returns a ticket and its booking under the same access rule as
// GetBooking.
func (s *BookingService) GetTicket(ctx context.Context, actorID uint64, role model.Role, ticketID uint64) (*model.Ticket, *model.BookingDetail, error) {
	t, err := s.Repos.Tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, nil, err
	}
	d, err := s.Repos.Bookings.GetDetail(ctx, t.BookingID)
	if err != nil {
		return nil, nil, err
	}
	if d.UserID != actorID && !role.Can(model.CapViewAllBookings) {
		return nil, nil, repository.ErrForbidden
	}
	return t, d, nil
}

// CheckIn validates a scanned QR payload and marks the ticket used.
// Organizers may only admit guests to their own events.
func (s *BookingService) CheckIn(ctx context.Context, actorID uint64, role model.Role, payload string) (*model.Ticket, error) {
	scanned, err := ParseQRPayload(payload)
	if err != nil {
		return nil, err
	}
	t, err := s.Repos.Tickets.GetByNumber(ctx, scanned.TicketNumber)
	if errors.Is(err, repository.ErrTicketNotFound) {
		return nil, ErrInvalidQRCode
	}
	if err != nil {
		return nil, err
	}
	if t.QRCode != payload || t.BookingID != scanned.BookingID {
		return nil, ErrInvalidQRCode
	}
	ev, err := s.Repos.Events.GetByID(ctx, scanned.EventID)
	if errors.Is(err, repository.ErrEventNotFound) {
		return nil, ErrInvalidQRCode
	}
	if err != nil {
		return nil, err
	}
	if !role.Can(model.CapManageAllEvents) && ev.OrganizerID != actorID {
		return nil, repository.ErrForbidden
	}
	at := s.now()
	ok, err := s.Repos.Tickets.MarkUsed(ctx, t.ID, at)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrTicketAlreadyUsed
	}
	t.IsUsed = true
	t.UsedAt = &at
	s.Log.WithFields(logrus.Fields{"ticket": t.TicketNumber, "event_id": ev.ID, "by": actorID}).Info("ticket checked in")
	return t, nil
}
