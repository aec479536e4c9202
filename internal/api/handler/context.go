package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/presetstudio/entitlements/internal/core/domain"
)

// ctxSession extracts the session injected by the Session middleware and
// fast-fails before any service call — its presence proves the middleware
// ran on this route.
func ctxSession(c echo.Context) (*domain.Session, error) {
	session, _ := c.Get("session").(*domain.Session)
	if session == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "missing session")
	}
	return session, nil
}
