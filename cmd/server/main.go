package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/star-events-ticketing/internal/config"
	"github.com/iliyamo/star-events-ticketing/internal/database"
	"github.com/iliyamo/star-events-ticketing/internal/handler"
	"github.com/iliyamo/star-events-ticketing/internal/metrics"
	"github.com/iliyamo/star-events-ticketing/internal/middleware"
	"github.com/iliyamo/star-events-ticketing/internal/queue"
	"github.com/iliyamo/star-events-ticketing/internal/repository"
	"github.com/iliyamo/star-events-ticketing/internal/router"
	"github.com/iliyamo/star-events-ticketing/internal/service"
)

func main() {
	config.LoadDotEnv()
	cfg := config.Load()
	log := config.NewLogger(cfg.Env)

	db, err := database.Open(cfg)
	if err != nil {
		log.WithError(err).Fatal("connect database")
	}
	defer db.Close()

	rdb := config.NewRedisClient(log)
	if rdb != nil {
		defer rdb.Close()
	}

	repos := service.Repositories{
		Events:     repository.NewEventRepo(db),
		Users:      repository.NewUserRepo(db),
		Promotions: repository.NewPromotionRepo(db),
		Bookings:   repository.NewBookingRepo(db),
		Tickets:    repository.NewTicketRepo(db),
	}
	venues := repository.NewVenueRepo(db)
	tokens := repository.NewTokenRepo(db)

	cache := middleware.NewResponseCache(config.LoadCacheConfig(), rdb, log)
	limiter := middleware.NewRateLimiter(config.LoadRateLimitConfig(), rdb, log)
	qr := service.NewQRCodeWriter(cfg.QRCodeDir, cfg.QRCodeURLPrefix, cfg.QRCodeSize)

	bookings := service.NewBookingService(db, repos, qr, log.WithField("component", "booking"))
	bookings.Metrics = metrics.New(prometheus.DefaultRegisterer)
	bookings.Cache = cache
	if cfg.AMQPURL != "" {
		bookings.Publisher = service.NewAMQPPublisher(cfg.AMQPURL, log.WithField("component", "publisher"))
	}
	reports := service.NewReportService(repos.Events, repos.Users, repos.Bookings)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.AMQPURL != "" {
		consumerLog := log.WithField("component", "booking-consumer")
		consumer := queue.NewConsumer(cfg.AMQPURL, consumerLog, func(ctx context.Context, ev queue.BookingConfirmedEvent) error {
			if err := bookings.RenderTicketQRCodes(ctx, ev.BookingID); err != nil {
				return err
			}
			if err := queue.AppendAuditLine(cfg.BookingAuditLog, ev); err != nil {
				consumerLog.WithError(err).Warn("append audit line")
			}
			return nil
		})
		go func() { _ = consumer.Run(ctx) }()
	} else {
		log.Info("RABBITMQ_URL not set; ticket images are rendered inline")
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLogger(log))
	e.Use(echomw.CORS())

	events := handler.NewEventManageHandler(repos.Events, venues, repos.Users, reports, log)
	events.Cache = cache
	admin := handler.NewAdminHandler(venues, repos.Promotions, repos.Users, tokens, reports, log)
	admin.Cache = cache

	router.RegisterRoutes(e, handler.NewHealthHandler(db), cfg.QRCodeDir, cfg.QRCodeURLPrefix)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, repos.Users, tokens, log), cfg.JWTSecret, limiter.Middleware())
	router.RegisterPublic(e, handler.NewPublicHandler(repos.Events, venues, repos.Promotions, log), cache.Middleware())
	router.RegisterBooking(e, handler.NewBookingHandler(bookings, qr, log), cfg.JWTSecret, limiter.Middleware())
	router.RegisterOrganizer(e, events, cfg.JWTSecret)
	router.RegisterAdmin(e, admin, events, cfg.JWTSecret)

	addr := ":" + cfg.Port
	go func() {
		log.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env}).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server stopped")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown")
	}
}
