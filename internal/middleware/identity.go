package middleware

// identity.go exposes the authenticated caller to handlers and derives the
// identity part of rate limit keys.

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/directorio-lugares/internal/model"
)

// Principal returns the caller stored by JWTAuth or OptionalJWT.
func Principal(c echo.Context) (model.Principal, bool) {
	p, ok := c.Get(principalKey).(model.Principal)
	return p, ok
}

// currentUserID returns the caller id as a string, or "anon".
func currentUserID(c echo.Context) string {
	if s, ok := c.Get(userIDKey).(string); ok && s != "" {
		return s
	}
	return "anon"
}
