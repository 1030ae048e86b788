package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/directorio-lugares/internal/model"
)

// RequireRole aborts with 403 unless the principal stored by JWTAuth
// satisfies allow. It must run after JWTAuth.
func RequireRole(allow func(model.Role) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, ok := Principal(c)
			if !ok || !allow(p.Role) {
				return deny(c, http.StatusForbidden, "No tienes permisos para realizar esta acción.")
			}
			return next(c)
		}
	}
}

// RequireAdmin admits administrators only.
func RequireAdmin() echo.MiddlewareFunc { return RequireRole(model.Role.IsAdmin) }

// RequireAdvertiser admits advertisers and administrators.
func RequireAdvertiser() echo.MiddlewareFunc { return RequireRole(model.Role.CanAdvertise) }
