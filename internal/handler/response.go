package handler // handler holds the HTTP handlers of the API

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/directorio-lugares/internal/middleware"
	"github.com/iliyamo/directorio-lugares/internal/model"
	"github.com/iliyamo/directorio-lugares/internal/repository"
	"github.com/iliyamo/directorio-lugares/internal/service"
)

const dbTimeout = 5 * time.Second

const msgInternal = "Error interno del servidor."

// success writes {"estatus": true, "mensaje": msg} plus extra keys.
func success(c echo.Context, status int, msg string, extra echo.Map) error {
	body := echo.Map{"estatus": true, "mensaje": msg}
	for k, v := range extra {
		body[k] = v
	}
	return c.JSON(status, body)
}

func fail(c echo.Context, status int, msg string) error {
	return c.JSON(status, echo.Map{"estatus": false, "mensaje": msg})
}

func failWith(c echo.Context, status int, msg string, extra echo.Map) error {
	body := echo.Map{"estatus": false, "mensaje": msg}
	for k, v := range extra {
		body[k] = v
	}
	return c.JSON(status, body)
}

// dbContext bounds the database work of a request.
func dbContext(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), dbTimeout)
}

// paramID parses a positive numeric path parameter.
func paramID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

func queryInt(c echo.Context, name string, def int) int {
	if n, err := strconv.Atoi(c.QueryParam(name)); err == nil {
		return n
	}
	return def
}

// caller returns the principal stored by JWTAuth.
func caller(c echo.Context) (model.Principal, bool) {
	return middleware.Principal(c)
}

func unauthorized(c echo.Context) error {
	return fail(c, http.StatusUnauthorized, "No autenticado.")
}

var notFoundMessages = map[error]string{
	service.ErrUserNotFound:    "Usuario no encontrado.",
	service.ErrPlaceNotFound:   "Lugar no encontrado.",
	service.ErrMethodNotFound:  "Método de pago no encontrado.",
	service.ErrPaymentNotFound: "Pago no encontrado.",
}

var unprocessableMessages = map[error]string{
	service.ErrSelfModeration:       "No puedes bloquearte a ti mismo.",
	service.ErrPeerAdmin:            "No se puede bloquear a otro administrador.",
	service.ErrAlreadyBlocked:       "Ya se encuentra bloqueado.",
	service.ErrAlreadyUnblocked:     "No se encuentra bloqueado.",
	service.ErrNoCustomer:           "Primero registra un método de pago (setup-intent).",
	service.ErrCustomerMismatch:     "El cliente no corresponde al usuario.",
	service.ErrPaymentMethodInvalid: "El método de pago no es válido para este usuario.",
}

// writeServiceError maps workflow and repository errors to responses.
// Unrecognised errors are logged and answered with a generic 500.
func writeServiceError(c echo.Context, log *zap.Logger, err error) error {
	var (
		verr *service.ValidationError
		perr *service.PaymentError
		rerr *service.ReconcileError
	)
	switch {
	case errors.As(err, &verr):
		return failWith(c, http.StatusUnprocessableEntity, verr.Message, echo.Map{"errores": map[string]string{verr.Field: verr.Message}})
	case errors.As(err, &rerr):
		// Already logged with reconcile=true by the service.
		return failWith(c, http.StatusInternalServerError,
			"El cobro se realizó pero no pudo registrarse. Se revisará manualmente.",
			echo.Map{"codigo": "reconcile_required"})
	case errors.As(err, &perr):
		status := http.StatusPaymentRequired
		switch perr.Code {
		case "gateway_unavailable":
			status = http.StatusServiceUnavailable
		case "payment_incomplete", "payment_failed":
			status = http.StatusBadRequest
		}
		msg := perr.Message
		if msg == "" {
			msg = "No se pudo procesar el pago."
		}
		return failWith(c, status, msg, echo.Map{"codigo": perr.Code})
	case errors.Is(err, service.ErrForbidden), errors.Is(err, repository.ErrForbidden):
		return fail(c, http.StatusForbidden, "No tienes permisos para realizar esta acción.")
	case errors.Is(err, service.ErrAlreadyActivated):
		return fail(c, http.StatusBadRequest, "El lugar ya ha sido activada previamente.")
	case errors.Is(err, service.ErrNotGatewayPayment):
		return fail(c, http.StatusBadRequest, "Pago no procesado con Stripe")
	case errors.Is(err, service.ErrAlreadyRefunded):
		return fail(c, http.StatusConflict, "El pago ya fue reembolsado.")
	case errors.Is(err, service.ErrNoSavedMethodForCharge):
		return fail(c, http.StatusUnprocessableEntity, "No hay método de pago guardado.")
	case errors.Is(err, service.ErrNoSavedMethod):
		return fail(c, http.StatusNotFound, "No hay método de pago guardado.")
	case errors.Is(err, repository.ErrEmailExists):
		return fail(c, http.StatusConflict, "El correo ya está registrado.")
	case errors.Is(err, repository.ErrConflict):
		return fail(c, http.StatusConflict, "El registro ya existe.")
	case errors.Is(err, repository.ErrNotFound):
		return fail(c, http.StatusNotFound, "Recurso no encontrado.")
	}
	for sentinel, msg := range notFoundMessages {
		if errors.Is(err, sentinel) {
			return fail(c, http.StatusNotFound, msg)
		}
	}
	for sentinel, msg := range unprocessableMessages {
		if errors.Is(err, sentinel) {
			return fail(c, http.StatusUnprocessableEntity, msg)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		log.Warn("request timed out", zap.String("path", c.Path()), zap.Error(err))
		return fail(c, http.StatusGatewayTimeout, "La operación tardó demasiado.")
	}
	log.Error("unhandled error", zap.String("path", c.Path()), zap.String("method", c.Request().Method), zap.Error(err))
	return fail(c, http.StatusInternalServerError, msgInternal)
}
