package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
)

// Health reports liveness and whether the database answers a ping.
func Health(db *sqlx.DB) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if db == nil || db.PingContext(ctx) != nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"estatus": false, "db": "down"})
		}
		return c.JSON(http.StatusOK, echo.Map{"estatus": true, "db": "ok"})
	}
}
