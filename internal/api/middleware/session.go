package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/presetstudio/entitlements/internal/core/ports"
)

// Session validates the bearer token against the session service and injects
// the session into context. Requests without a valid session are rejected;
// endpoints that also serve anonymous callers read the bearer themselves via
// BearerToken instead.
func Session(sessions ports.SessionService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := BearerToken(c)
			if token == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			// Propagate the error as-is: the error handler maps
			// ErrSessionExpired to 401 while a session-store outage
			// stays an opaque 500 instead of masquerading as an
			// expired session.
			session, err := sessions.Validate(c.Request().Context(), token)
			if err != nil {
				return err
			}

			c.Set("session", session)
			c.Set("session_token", token)
			return next(c)
		}
	}
}

// BearerToken extracts the bearer token from the Authorization header, or ""
// when absent or malformed.
func BearerToken(c echo.Context) string {
	header := c.Request().Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}
