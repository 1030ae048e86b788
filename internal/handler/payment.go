package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/directorio-lugares/internal/gateway"
	"github.com/iliyamo/directorio-lugares/internal/model"
	"github.com/iliyamo/directorio-lugares/internal/service"
)

// Gateway calls inside a request are bounded by the client's own timeout;
// this caps the whole request including the ledger write.
const paymentTimeout = 60 * time.Second

// Payments is what the payment endpoints need from service.PaymentService.
type Payments interface {
	Activate(ctx context.Context, req service.ActivationRequest) (*service.Activation, error)
	Refund(ctx context.Context, req service.RefundRequest) (*service.RefundResult, error)
	Verify(ctx context.Context, actor model.Principal, externalID string) (*service.Verification, error)
	ListMine(ctx context.Context, userID uint64) ([]model.Payment, error)
	Get(ctx context.Context, actor model.Principal, id uint64) (*model.Payment, error)
}

// Cards is what the saved card endpoints need from service.CardService.
type Cards interface {
	RegisterSetupIntent(ctx context.Context, userID uint64) (*service.SetupResult, error)
	AttachPaymentMethod(ctx context.Context, userID uint64, methodRef, customerID string) (*gateway.Card, error)
	SavedCard(ctx context.Context, userID uint64) (*gateway.Card, error)
	DetachPaymentMethod(ctx context.Context, userID uint64) error
}

type PaymentHandler struct {
	Payments Payments
	Cards    Cards
	Log      *zap.Logger
}

func NewPaymentHandler(p Payments, cards Cards, log *zap.Logger) *PaymentHandler {
	return &PaymentHandler{Payments: p, Cards: cards, Log: log}
}

type payReq struct {
	PlaceID  uint64   `json:"id_lugar" validate:"required,gt=0"`
	MethodID uint64   `json:"id_metodo_pago" validate:"required,gt=0"`
	Token    string   `json:"stripeToken" validate:"max=255"`
	CVCToken string   `json:"cvc_token" validate:"max=255"`
	Amount   *float64 `json:"monto"`
}

type domiciledReq struct {
	PlaceID  uint64   `json:"id_lugar" validate:"required,gt=0"`
	MethodID uint64   `json:"id_metodo_pago" validate:"required,gt=0"`
	Amount   *float64 `json:"monto"`
}

type refundReq struct {
	Reason string   `json:"motivo" validate:"required,max=255"`
	Amount *float64 `json:"monto"`
}

type attachReq struct {
	PaymentMethod string `json:"payment_method" validate:"required"`
	CustomerID    string `json:"customer_id" validate:"required"`
}

func cents(major *float64) *int64 {
	if major == nil {
		return nil
	}
	v := int64(model.AmountFromMajor(*major))
	return &v
}

func paymentContext(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), paymentTimeout)
}

func (h *PaymentHandler) activate(c echo.Context, req service.ActivationRequest) error {
	ctx, cancel := paymentContext(c)
	defer cancel()
	res, err := h.Payments.Activate(ctx, req)
	if err != nil {
		return writeServiceError(c, h.Log, err)
	}
	return success(c, http.StatusCreated, "Pago realizado y lugar activado", echo.Map{"lugar": res.Place, "pago": res.Payment})
}

// Pay charges a one-time token, or the saved card on session, and activates
// the place.
func (h *PaymentHandler) Pay(c echo.Context) error {
	p, found := caller(c)
	if !found {
		return unauthorized(c)
	}
	var req payReq
	if valid, err := bindAndValidate(c, &req); !valid {
		return err
	}
	return h.activate(c, service.ActivationRequest{
		PlaceID:        req.PlaceID,
		UserID:         p.ID,
		MethodID:       req.MethodID,
		Kind:           model.KindManual,
		AmountCents:    cents(req.Amount),
		Token:          strings.TrimSpace(req.Token),
		CVCToken:       strings.TrimSpace(req.CVCToken),
		IdempotencyKey: c.Request().Header.Get("Idempotency-Key"),
	})
}

// Domiciled charges the saved card off session and activates the place.
func (h *PaymentHandler) Domiciled(c echo.Context) error {
	p, found := caller(c)
	if !found {
		return unauthorized(c)
	}
	var req domiciledReq
	if valid, err := bindAndValidate(c, &req); !valid {
		return err
	}
	return h.activate(c, service.ActivationRequest{
		PlaceID:        req.PlaceID,
		UserID:         p.ID,
		MethodID:       req.MethodID,
		Kind:           model.KindDomiciled,
		AmountCents:    cents(req.Amount),
		IdempotencyKey: c.Request().Header.Get("Idempotency-Key"),
	})
}

// Refund refunds a ledger entry, fully unless monto is given.
func (h *PaymentHandler) Refund(c echo.Context) error {
	p, found := caller(c)
	if !found {
		return unauthorized(c)
	}
	id, valid := paramID(c, "id")
	if !valid {
		return fail(c, http.StatusBadRequest, "ID inválido.")
	}
	var req refundReq
	if valid, err := bindAndValidate(c, &req); !valid {
		return err
	}
	ctx, cancel := paymentContext(c)
	defer cancel()
	res, err := h.Payments.Refund(ctx, service.RefundRequest{
		PaymentID:      id,
		Actor:          p,
		Reason:         req.Reason,
		AmountCents:    cents(req.Amount),
		IdempotencyKey: c.Request().Header.Get("Idempotency-Key"),
	})
	if err != nil {
		return writeServiceError(c, h.Log, err)
	}
	return success(c, http.StatusOK, "Reembolso procesado", echo.Map{"data": res})
}

// Verify compares a ledger entry with the gateway and syncs its status.
func (h *PaymentHandler) Verify(c echo.Context) error {
	p, found := caller(c)
	if !found {
		return unauthorized(c)
	}
	ref := strings.TrimSpace(c.Param("payment_intent_id"))
	if ref == "" {
		return fail(c, http.StatusBadRequest, "ID de pago inválido.")
	}
	ctx, cancel := paymentContext(c)
	defer cancel()
	res, err := h.Payments.Verify(ctx, p, ref)
	if err != nil {
		return writeServiceError(c, h.Log, err)
	}
	return success(c, http.StatusOK, "Pago verificado", echo.Map{
		"pago":          res.Payment,
		"stripe_status": res.GatewayStatus,
		"amount":        res.Amount,
		"currency":      res.Currency,
		"created":       res.Created,
	})
}

func (h *PaymentHandler) Mine(c echo.Context) error {
	p, found := caller(c)
	if !found {
		return unauthorized(c)
	}
	ctx, cancel := dbContext(c)
	defer cancel()
	items, err := h.Payments.ListMine(ctx, p.ID)
	if err != nil {
		return writeServiceError(c, h.Log, err)
	}
	return success(c, http.StatusOK, "Mis pagos", echo.Map{"data": items})
}

func (h *PaymentHandler) Show(c echo.Context) error {
	p, found := caller(c)
	if !found {
		return unauthorized(c)
	}
	id, valid := paramID(c, "id")
	if !valid {
		return fail(c, http.StatusBadRequest, "ID inválido.")
	}
	ctx, cancel := dbContext(c)
	defer cancel()
	entry, err := h.Payments.Get(ctx, p, id)
	if err != nil {
		return writeServiceError(c, h.Log, err)
	}
	return success(c, http.StatusOK, "Pago", echo.Map{"data": entry})
}

// SetupIntent returns the client secret used by the browser to save a card.
func (h *PaymentHandler) SetupIntent(c echo.Context) error {
	p, found := caller(c)
	if !found {
		return unauthorized(c)
	}
	ctx, cancel := paymentContext(c)
	defer cancel()
	res, err := h.Cards.RegisterSetupIntent(ctx, p.ID)
	if err != nil {
		return writeServiceError(c, h.Log, err)
	}
	return success(c, http.StatusOK, "SetupIntent creado", echo.Map{"clientSecret": res.ClientSecret, "customerId": res.CustomerID})
}

// SaveMethod attaches and stores the card confirmed by the setup intent.
func (h *PaymentHandler) SaveMethod(c echo.Context) error {
	p, found := caller(c)
	if !found {
		return unauthorized(c)
	}
	var req attachReq
	if valid, err := bindAndValidate(c, &req); !valid {
		return err
	}
	ctx, cancel := paymentContext(c)
	defer cancel()
	card, err := h.Cards.AttachPaymentMethod(ctx, p.ID, strings.TrimSpace(req.PaymentMethod), strings.TrimSpace(req.CustomerID))
	if err != nil {
		return writeServiceError(c, h.Log, err)
	}
	return success(c, http.StatusOK, "Método de pago guardado", echo.Map{"tarjeta": card})
}

func (h *PaymentHandler) SavedCard(c echo.Context) error {
	p, found := caller(c)
	if !found {
		return unauthorized(c)
	}
	ctx, cancel := paymentContext(c)
	defer cancel()
	card, err := h.Cards.SavedCard(ctx, p.ID)
	if err != nil {
		return writeServiceError(c, h.Log, err)
	}
	return success(c, http.StatusOK, "Tarjeta guardada", echo.Map{"tarjeta": card})
}

func (h *PaymentHandler) DeleteCard(c echo.Context) error {
	p, found := caller(c)
	if !found {
		return unauthorized(c)
	}
	ctx, cancel := paymentContext(c)
	defer cancel()
	if err := h.Cards.DetachPaymentMethod(ctx, p.ID); err != nil {
		return writeServiceError(c, h.Log, err)
	}
	return success(c, http.StatusOK, "Tarjeta eliminada", nil)
}
