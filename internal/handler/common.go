package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/star-events-ticketing/internal/model"
	"github.com/iliyamo/star-events-ticketing/internal/repository"
	"github.com/iliyamo/star-events-ticketing/internal/service"
	"github.com/iliyamo/star-events-ticketing/internal/utils"
)

// requestTimeout bounds the database work of a single request.
const requestTimeout = 5 * time.Second

func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// getUserID extracts the user_id from echo.Context and converts it to uint64
func getUserID(c echo.Context) (uint64, error) {
	switch t := c.Get("user_id").(type) {
	case uint64:
		if t != 0 {
			return t, nil
		}
	case int64:
		if t > 0 {
			return uint64(t), nil
		}
	case float64:
		if t > 0 {
			return uint64(t), nil
		}
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil && n > 0 {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

func getRole(c echo.Context) model.Role {
	r, _ := c.Get("role").(model.Role)
	return r
}

// parseID reads a positive numeric path parameter.
func parseID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

// statusFor maps domain errors to HTTP status codes and client messages.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		return http.StatusNotFound, "user not found"
	case errors.Is(err, repository.ErrVenueNotFound):
		return http.StatusNotFound, "venue not found"
	case errors.Is(err, repository.ErrEventNotFound), errors.Is(err, service.ErrEventNotFound):
		return http.StatusNotFound, "event not found"
	case errors.Is(err, repository.ErrPromotionNotFound):
		return http.StatusNotFound, "promotion not found"
	case errors.Is(err, repository.ErrBookingNotFound):
		return http.StatusNotFound, "booking not found"
	case errors.Is(err, repository.ErrTicketNotFound):
		return http.StatusNotFound, "ticket not found"
	case errors.Is(err, repository.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, repository.ErrEmailExists):
		return http.StatusConflict, "email already exists"
	case errors.Is(err, repository.ErrDuplicateCode):
		return http.StatusConflict, "promotion code already exists"
	case errors.Is(err, repository.ErrNoChange):
		return http.StatusConflict, "no changes"
	case errors.Is(err, service.ErrInsufficientTickets):
		return http.StatusConflict, service.ErrInsufficientTickets.Error()
	case errors.Is(err, service.ErrLoyaltyChanged):
		return http.StatusConflict, service.ErrLoyaltyChanged.Error()
	case errors.Is(err, service.ErrTicketAlreadyUsed):
		return http.StatusConflict, service.ErrTicketAlreadyUsed.Error()
	case errors.Is(err, service.ErrInvalidTicketCount):
		return http.StatusBadRequest, service.ErrInvalidTicketCount.Error()
	case errors.Is(err, service.ErrInvalidQRCode):
		return http.StatusBadRequest, service.ErrInvalidQRCode.Error()
	case errors.Is(err, utils.ErrWeakPassword):
		return http.StatusBadRequest, utils.ErrWeakPassword.Error()
	case errors.Is(err, service.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthorized"
	}
	return http.StatusInternalServerError, "internal error"
}

// respondError writes err as JSON. Unexpected errors are logged and hidden
// behind a generic message.
func respondError(c echo.Context, log logrus.FieldLogger, err error) error {
	status, msg := statusFor(err)
	if status == http.StatusInternalServerError && log != nil {
		log.WithError(err).WithFields(logrus.Fields{
			"method": c.Request().Method,
			"path":   c.Path(),
		}).Error("request failed")
	}
	return c.JSON(status, echo.Map{"error": msg})
}

// conflictMessage is the user-facing text for a refused delete or update.
func conflictMessage(c echo.Context, msg string) error {
	return c.JSON(http.StatusConflict, echo.Map{"error": msg})
}
