package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/directorio-lugares/internal/config"
	"github.com/iliyamo/directorio-lugares/internal/gateway"
	"github.com/iliyamo/directorio-lugares/internal/model"
	"github.com/iliyamo/directorio-lugares/internal/queue"
	"github.com/iliyamo/directorio-lugares/internal/repository"
)

const (
	maxRefundReason = 255
	// Deadline for the ledger write that follows a gateway charge or refund.
	ledgerWriteTimeout = 5 * time.Second
)

// ActivationRequest asks to charge for a place and activate it.
type ActivationRequest struct {
	PlaceID        uint64
	UserID         uint64
	MethodID       uint64
	Kind           model.PaymentKind
	AmountCents    *int64 // nil: configured listing price
	Token          string // one-time card token (manual only)
	CVCToken       string // fresh CVC for an on-session saved card
	IdempotencyKey string
}

// Activation is the outcome of a successful activation.
type Activation struct {
	Place   *model.Place   `json:"lugar"`
	Payment *model.Payment `json:"pago"`
}

// RefundRequest refunds a ledger entry. AmountCents nil refunds whatever
// remains of the charge.
type RefundRequest struct {
	PaymentID      uint64
	Actor          model.Principal
	Reason         string
	AmountCents    *int64
	IdempotencyKey string
}

type RefundResult struct {
	RefundID         string       `json:"refund_id"`
	Status           string       `json:"status"`
	Amount           model.Amount `json:"monto_reembolsado"`
	PlaceDeactivated bool         `json:"lugar_desactivado"`
}

// Verification compares the ledger with the gateway.
type Verification struct {
	Payment       *model.Payment `json:"pago"`
	GatewayStatus string         `json:"stripe_status"`
	Amount        model.Amount   `json:"amount"`
	Currency      string         `json:"currency"`
	Created       time.Time      `json:"created"`
}

// PaymentService runs activation, refund and verification.
type PaymentService struct {
	gw      Gateway
	ledger  Ledger
	places  PlaceStore
	users   UserStore
	methods MethodCatalog
	events  EventPublisher
	cfg     config.StripeConfig
	log     *zap.Logger
	now     func() time.Time
}

func NewPaymentService(gw Gateway, ledger Ledger, places PlaceStore, users UserStore, methods MethodCatalog,
	events EventPublisher, cfg config.StripeConfig, log *zap.Logger) *PaymentService {
	if events == nil {
		events = nopPublisher{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &PaymentService{gw: gw, ledger: ledger, places: places, users: users, methods: methods,
		events: events, cfg: cfg, log: log, now: time.Now}
}

// Activate charges the payer and activates the place. Nothing is written
// unless the gateway reports success; once it does, a failed local write
// is a *ReconcileError.
func (s *PaymentService) Activate(ctx context.Context, req ActivationRequest) (*Activation, error) {
	amount := s.cfg.ListingPriceCents
	if req.AmountCents != nil {
		if *req.AmountCents <= 0 {
			return nil, &ValidationError{Field: "monto", Message: "El monto debe ser mayor a 0."}
		}
		amount = *req.AmountCents
	}
	if req.Kind == "" {
		req.Kind = model.KindManual
	}

	place, err := s.places.GetByID(ctx, req.PlaceID)
	if err != nil {
		return nil, notFound(err, ErrPlaceNotFound)
	}
	if place.Active {
		return nil, ErrAlreadyActivated
	}
	ok, err := s.methods.Exists(ctx, req.MethodID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrMethodNotFound
	}
	user, err := s.users.GetByID(ctx, req.UserID)
	if err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}

	key := req.IdempotencyKey
	if key == "" {
		key = uuid.NewString()
	}
	charge := gateway.ChargeRequest{
		AmountCents:    amount,
		Currency:       s.cfg.Currency,
		Description:    fmt.Sprintf("Activación del lugar #%d", place.ID),
		IdempotencyKey: key,
		Metadata: map[string]string{
			"id_lugar":   strconv.FormatUint(place.ID, 10),
			"id_usuario": strconv.FormatUint(user.ID, 10),
			"tipo_pago":  string(req.Kind),
		},
	}

	var ch *gateway.Charge
	switch req.Kind {
	case model.KindDomiciled:
		if user.CustomerRef() == "" || user.SavedMethodRef() == "" {
			return nil, ErrNoSavedMethodForCharge
		}
		card, err := s.gw.GetPaymentMethod(ctx, user.SavedMethodRef())
		if err != nil {
			if errors.Is(err, gateway.ErrUnavailable) {
				return nil, paymentError(err)
			}
			return nil, ErrPaymentMethodInvalid
		}
		if card.CustomerID != user.CustomerRef() {
			return nil, ErrPaymentMethodInvalid
		}
		charge.CustomerID = user.CustomerRef()
		charge.PaymentMethodID = user.SavedMethodRef()
		charge.OffSession = true
		ch, err = s.gw.ChargeSavedMethod(ctx, charge)
		if err != nil {
			return nil, paymentError(err)
		}
	case model.KindManual:
		switch {
		case req.Token != "":
			charge.Token = req.Token
			ch, err = s.gw.ChargeToken(ctx, charge)
		case user.CustomerRef() != "" && user.SavedMethodRef() != "":
			charge.CustomerID = user.CustomerRef()
			charge.PaymentMethodID = user.SavedMethodRef()
			charge.CVCToken = req.CVCToken
			charge.ReturnURL = s.cfg.ReturnURL
			ch, err = s.gw.ChargeSavedMethod(ctx, charge)
		default:
			return nil, &ValidationError{Field: "stripeToken", Message: "No se proporcionó stripeToken ni método guardado."}
		}
		if err != nil {
			return nil, paymentError(err)
		}
	default:
		return nil, &ValidationError{Field: "tipo_pago", Message: "Tipo de pago no válido."}
	}
	if !ch.Succeeded() {
		return nil, &PaymentError{
			Err:     fmt.Errorf("%w: status %s", ErrPaymentIncomplete, ch.Status),
			Code:    "payment_incomplete",
			Message: "El pago no se completó (estado: " + ch.Status + ").",
		}
	}

	externalID := ch.ID
	entry := &model.Payment{
		UserID:     user.ID,
		PlaceID:    place.ID,
		MethodID:   req.MethodID,
		Amount:     model.Amount(amount),
		Currency:   s.cfg.Currency,
		PaidAt:     s.now().UTC().Truncate(time.Second),
		ExternalID: &externalID,
		Status:     model.StatusSucceeded,
		Kind:       req.Kind,
	}

	// The charge went through; finish the write even if the client left.
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ledgerWriteTimeout)
	defer cancel()
	activated, err := s.ledger.RecordActivation(wctx, entry)
	if err != nil {
		return nil, s.reconcile(wctx, "activation", entry, amount, err)
	}

	s.log.Info("place activated",
		zap.Uint64("id_lugar", place.ID), zap.Uint64("id_pago", entry.ID),
		zap.String("stripe_id", externalID), zap.String("tipo_pago", string(req.Kind)))
	_ = s.events.Publish(wctx, queue.Event{
		Type:        queue.TypePlaceActivated,
		UserID:      user.ID,
		PlaceID:     place.ID,
		PaymentID:   entry.ID,
		ExternalID:  externalID,
		AmountCents: amount,
	})
	return &Activation{Place: activated, Payment: entry}, nil
}

// Refund returns money for a ledger entry. A full refund deactivates the
// place the entry activated; a partial one never does.
func (s *PaymentService) Refund(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	if !req.Actor.Role.CanAdvertise() {
		return nil, ErrForbidden
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, &ValidationError{Field: "motivo", Message: "El motivo del reembolso es obligatorio."}
	}
	if len([]rune(reason)) > maxRefundReason {
		return nil, &ValidationError{Field: "motivo", Message: "El motivo no puede exceder 255 caracteres."}
	}

	entry, err := s.ledger.GetByID(ctx, req.PaymentID)
	if err != nil {
		return nil, notFound(err, ErrPaymentNotFound)
	}
	if !req.Actor.Role.IsAdmin() {
		place, err := s.places.GetByID(ctx, entry.PlaceID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrForbidden
			}
			return nil, err
		}
		if place.OwnerID != req.Actor.ID {
			return nil, ErrForbidden
		}
	}
	if entry.ExternalRef() == "" {
		return nil, ErrNotGatewayPayment
	}
	if entry.FullyRefunded() {
		return nil, ErrAlreadyRefunded
	}

	var already model.Amount
	if entry.RefundedAmount != nil {
		already = *entry.RefundedAmount
	}
	remaining := entry.Amount - already
	if remaining <= 0 {
		return nil, ErrAlreadyRefunded
	}
	amount := remaining
	if req.AmountCents != nil {
		amount = model.Amount(*req.AmountCents)
		if amount <= 0 || amount > remaining {
			return nil, &ValidationError{Field: "monto",
				Message: "El monto a reembolsar debe ser mayor a 0 y no exceder " + remaining.String() + "."}
		}
	}

	key := req.IdempotencyKey
	if key == "" {
		key = uuid.NewString()
	}
	refund, err := s.gw.Refund(ctx, gateway.RefundRequest{
		ChargeID:       entry.ExternalRef(),
		AmountCents:    int64(amount),
		Reason:         reason,
		IdempotencyKey: key,
	})
	if err != nil {
		return nil, paymentError(err)
	}

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ledgerWriteTimeout)
	defer cancel()
	outcome, err := s.ledger.RecordRefund(wctx, repository.RefundRecord{
		PaymentID: entry.ID,
		PlaceID:   entry.PlaceID,
		RefundID:  refund.ID,
		Amount:    amount,
		Reason:    reason,
		At:        s.now().UTC().Truncate(time.Second),
	})
	if err != nil {
		return nil, s.reconcile(wctx, "refund", entry, int64(amount), err)
	}

	s.log.Info("payment refunded",
		zap.Uint64("id_pago", entry.ID), zap.String("refund_id", refund.ID),
		zap.Int64("amount_cents", int64(amount)), zap.String("status", outcome.Status),
		zap.Bool("lugar_desactivado", outcome.Deactivated))
	_ = s.events.Publish(wctx, queue.Event{
		Type:        queue.TypePaymentRefunded,
		UserID:      entry.UserID,
		PlaceID:     entry.PlaceID,
		PaymentID:   entry.ID,
		ActorID:     req.Actor.ID,
		ExternalID:  refund.ID,
		AmountCents: int64(amount),
		Reason:      reason,
	})
	return &RefundResult{RefundID: refund.ID, Status: outcome.Status, Amount: amount, PlaceDeactivated: outcome.Deactivated}, nil
}

// Verify reads the charge from the gateway and brings the stored status in
// line. A locally refunded entry is never set back to succeeded.
func (s *PaymentService) Verify(ctx context.Context, actor model.Principal, externalID string) (*Verification, error) {
	entry, err := s.ledger.GetByExternalID(ctx, externalID)
	if err != nil {
		return nil, notFound(err, ErrPaymentNotFound)
	}
	if err := s.canSee(ctx, actor, entry); err != nil {
		return nil, err
	}
	ch, err := s.gw.GetCharge(ctx, externalID)
	if err != nil {
		if errors.Is(err, gateway.ErrNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, paymentError(err)
	}

	refundedLocally := entry.Status == model.StatusRefunded || entry.Status == model.StatusPartiallyRefunded
	if ch.Status != entry.Status && !(refundedLocally && ch.Status == model.StatusSucceeded) {
		if err := s.ledger.UpdateStatus(ctx, entry.ID, ch.Status); err != nil {
			return nil, err
		}
		entry.Status = ch.Status
	}
	return &Verification{
		Payment:       entry,
		GatewayStatus: ch.Status,
		Amount:        model.Amount(ch.AmountCents),
		Currency:      ch.Currency,
		Created:       ch.Created,
	}, nil
}

// ListMine returns the payer's ledger entries.
func (s *PaymentService) ListMine(ctx context.Context, userID uint64) ([]model.Payment, error) {
	return s.ledger.ListByUser(ctx, userID)
}

// Get returns one entry to its payer, the owner of its place or an
// administrator.
func (s *PaymentService) Get(ctx context.Context, actor model.Principal, id uint64) (*model.Payment, error) {
	entry, err := s.ledger.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrPaymentNotFound)
	}
	if err := s.canSee(ctx, actor, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *PaymentService) canSee(ctx context.Context, actor model.Principal, entry *model.Payment) error {
	if actor.Role.IsAdmin() || entry.UserID == actor.ID {
		return nil
	}
	place, err := s.places.GetByID(ctx, entry.PlaceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrForbidden
		}
		return err
	}
	if place.OwnerID != actor.ID {
		return ErrForbidden
	}
	return nil
}

func (s *PaymentService) reconcile(ctx context.Context, op string, entry *model.Payment, amount int64, cause error) error {
	rerr := &ReconcileError{Op: op, ExternalID: entry.ExternalRef(), AmountCents: amount, Err: cause}
	s.log.Error("local write failed after gateway success",
		zap.Bool("reconcile", true),
		zap.String("op", op),
		zap.String("stripe_id", rerr.ExternalID),
		zap.Int64("amount_cents", amount),
		zap.Uint64("id_lugar", entry.PlaceID),
		zap.Uint64("id_usuario", entry.UserID),
		zap.Error(cause))
	_ = s.events.Publish(ctx, queue.Event{
		Type:        queue.TypeReconcileRequired,
		UserID:      entry.UserID,
		PlaceID:     entry.PlaceID,
		PaymentID:   entry.ID,
		ExternalID:  rerr.ExternalID,
		AmountCents: amount,
		Operation:   op,
		Error:       cause.Error(),
	})
	return rerr
}

var declineMessages = map[string]string{
	gateway.CodeCardDeclined:           "La tarjeta fue rechazada.",
	gateway.CodeExpiredCard:            "La tarjeta ha expirado.",
	gateway.CodeInsufficientFunds:      "Fondos insuficientes.",
	gateway.CodeAuthenticationRequired: "El pago requiere autenticación adicional.",
}

func paymentError(err error) error {
	var de *gateway.DeclineError
	switch {
	case errors.As(err, &de):
		return &PaymentError{Err: err, Code: de.Code, Message: declineMessages[de.Code]}
	case errors.Is(err, gateway.ErrUnavailable):
		return &PaymentError{Err: err, Code: "gateway_unavailable",
			Message: "El servicio de pagos no está disponible, intenta más tarde."}
	}
	return &PaymentError{Err: err, Code: "payment_failed", Message: "No se pudo procesar el pago."}
}

// notFound swaps repository.ErrNotFound for the workflow's own sentinel.
func notFound(err, sentinel error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return sentinel
	}
	return err
}
