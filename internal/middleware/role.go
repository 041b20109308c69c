package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/star-events-ticketing/internal/model"
)

// RequireCapability lets the request through when the caller's role holds
// at least one of caps. It must run after JWTAuth.
func RequireCapability(caps ...model.Capability) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role := RoleOf(c)
			for _, cp := range caps {
				if role.Can(cp) {
					return next(c)
				}
			}
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		}
	}
}
