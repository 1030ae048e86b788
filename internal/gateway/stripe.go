package gateway

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"github.com/iliyamo/directorio-lugares/internal/config"
)

// Stripe implements the card processor on top of stripe-go.
type Stripe struct {
	api     *client.API
	timeout time.Duration
}

// NewStripe builds the client from the configured secret key. Each call
// gets cfg.Timeout as its deadline.
func NewStripe(cfg config.StripeConfig) *Stripe {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Stripe{api: client.New(cfg.SecretKey, nil), timeout: timeout}
}

func (s *Stripe) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// CreateCustomer registers a customer and returns its id.
func (s *Stripe) CreateCustomer(ctx context.Context, email, name string, userID string) (string, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	p := &stripe.CustomerParams{Email: stripe.String(email), Name: stripe.String(name)}
	p.Context = ctx
	p.AddMetadata("id_usuario", userID)
	c, err := s.api.Customers.New(p)
	if err != nil {
		return "", translate(err)
	}
	return c.ID, nil
}

// CreateSetupIntent prepares off-session card collection for customerID.
func (s *Stripe) CreateSetupIntent(ctx context.Context, customerID string) (*SetupIntent, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	p := &stripe.SetupIntentParams{
		Customer:           stripe.String(customerID),
		Usage:              stripe.String("off_session"),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
	}
	p.Context = ctx
	si, err := s.api.SetupIntents.New(p)
	if err != nil {
		return nil, translate(err)
	}
	return &SetupIntent{ID: si.ID, ClientSecret: si.ClientSecret}, nil
}

// GetPaymentMethod retrieves a stored card.
func (s *Stripe) GetPaymentMethod(ctx context.Context, id string) (*Card, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	p := &stripe.PaymentMethodParams{}
	p.Context = ctx
	pm, err := s.api.PaymentMethods.Get(id, p)
	if err != nil {
		return nil, translate(err)
	}
	return cardFrom(pm), nil
}

// AttachPaymentMethod binds a payment method to a customer.
func (s *Stripe) AttachPaymentMethod(ctx context.Context, id, customerID string) (*Card, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	p := &stripe.PaymentMethodAttachParams{Customer: stripe.String(customerID)}
	p.Context = ctx
	pm, err := s.api.PaymentMethods.Attach(id, p)
	if err != nil {
		return nil, translate(err)
	}
	return cardFrom(pm), nil
}

func (s *Stripe) DetachPaymentMethod(ctx context.Context, id string) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	p := &stripe.PaymentMethodDetachParams{}
	p.Context = ctx
	if _, err := s.api.PaymentMethods.Detach(id, p); err != nil {
		return translate(err)
	}
	return nil
}

// ChargeSavedMethod creates and confirms a payment intent against a saved
// card. OffSession marks a charge made without the payer present.
func (s *Stripe) ChargeSavedMethod(ctx context.Context, req ChargeRequest) (*Charge, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	p := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(req.AmountCents),
		Currency:      stripe.String(req.Currency),
		Customer:      stripe.String(req.CustomerID),
		PaymentMethod: stripe.String(req.PaymentMethodID),
		Description:   stripe.String(req.Description),
		Confirm:       stripe.Bool(true),
		OffSession:    stripe.Bool(req.OffSession),
	}
	if !req.OffSession && req.ReturnURL != "" {
		p.ReturnURL = stripe.String(req.ReturnURL)
	}
	if req.CVCToken != "" {
		p.PaymentMethodOptions = &stripe.PaymentIntentPaymentMethodOptionsParams{
			Card: &stripe.PaymentIntentPaymentMethodOptionsCardParams{CVCToken: stripe.String(req.CVCToken)},
		}
	}
	p.Context = ctx
	if req.IdempotencyKey != "" {
		p.SetIdempotencyKey(req.IdempotencyKey)
	}
	for k, v := range req.Metadata {
		p.AddMetadata(k, v)
	}
	pi, err := s.api.PaymentIntents.New(p)
	if err != nil {
		return nil, translate(err)
	}
	return chargeFromIntent(pi), nil
}

// ChargeToken charges a one-time card token.
func (s *Stripe) ChargeToken(ctx context.Context, req ChargeRequest) (*Charge, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	p := &stripe.ChargeParams{
		Amount:      stripe.Int64(req.AmountCents),
		Currency:    stripe.String(req.Currency),
		Description: stripe.String(req.Description),
		Source:      &stripe.PaymentSourceSourceParams{Token: stripe.String(req.Token)},
	}
	p.Context = ctx
	if req.IdempotencyKey != "" {
		p.SetIdempotencyKey(req.IdempotencyKey)
	}
	for k, v := range req.Metadata {
		p.AddMetadata(k, v)
	}
	ch, err := s.api.Charges.New(p)
	if err != nil {
		return nil, translate(err)
	}
	return chargeFromCharge(ch), nil
}

// GetCharge retrieves a charge (ch_ ids) or a payment intent (anything else).
func (s *Stripe) GetCharge(ctx context.Context, id string) (*Charge, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	if isChargeID(id) {
		p := &stripe.ChargeParams{}
		p.Context = ctx
		ch, err := s.api.Charges.Get(id, p)
		if err != nil {
			return nil, translate(err)
		}
		return chargeFromCharge(ch), nil
	}
	p := &stripe.PaymentIntentParams{}
	p.Context = ctx
	pi, err := s.api.PaymentIntents.Get(id, p)
	if err != nil {
		return nil, translate(err)
	}
	return chargeFromIntent(pi), nil
}

// Refund refunds part or all of a charge or payment intent.
func (s *Stripe) Refund(ctx context.Context, req RefundRequest) (*Refund, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	p := &stripe.RefundParams{Amount: stripe.Int64(req.AmountCents)}
	if isChargeID(req.ChargeID) {
		p.Charge = stripe.String(req.ChargeID)
	} else {
		p.PaymentIntent = stripe.String(req.ChargeID)
	}
	p.Context = ctx
	if req.IdempotencyKey != "" {
		p.SetIdempotencyKey(req.IdempotencyKey)
	}
	if req.Reason != "" {
		p.AddMetadata("motivo", req.Reason)
	}
	r, err := s.api.Refunds.New(p)
	if err != nil {
		return nil, translate(err)
	}
	return &Refund{ID: r.ID, Status: string(r.Status), AmountCents: r.Amount}, nil
}

func isChargeID(id string) bool { return strings.HasPrefix(id, "ch_") }

func cardFrom(pm *stripe.PaymentMethod) *Card {
	c := &Card{ID: pm.ID}
	if pm.Customer != nil {
		c.CustomerID = pm.Customer.ID
	}
	if pm.Card != nil {
		c.Brand = string(pm.Card.Brand)
		c.Last4 = pm.Card.Last4
		c.ExpMonth = pm.Card.ExpMonth
		c.ExpYear = pm.Card.ExpYear
		c.Funding = string(pm.Card.Funding)
	}
	return c
}

func chargeFromIntent(pi *stripe.PaymentIntent) *Charge {
	return &Charge{
		ID:          pi.ID,
		Status:      string(pi.Status),
		AmountCents: pi.Amount,
		Currency:    string(pi.Currency),
		Created:     time.Unix(pi.Created, 0).UTC(),
	}
}

func chargeFromCharge(ch *stripe.Charge) *Charge {
	return &Charge{
		ID:          ch.ID,
		Status:      string(ch.Status),
		AmountCents: ch.Amount,
		Currency:    string(ch.Currency),
		Created:     time.Unix(ch.Created, 0).UTC(),
	}
}

// translate maps processor errors onto DeclineError, ErrNotFound and
// ErrUnavailable. Anything that is not a *stripe.Error (network, deadline)
// counts as unavailable.
func translate(err error) error {
	var se *stripe.Error
	if !errors.As(err, &se) {
		return errors.Join(ErrUnavailable, err)
	}
	code, decline := string(se.Code), string(se.DeclineCode)
	switch {
	case decline == CodeInsufficientFunds:
		return &DeclineError{Code: CodeInsufficientFunds, Message: se.Msg}
	case code == CodeExpiredCard || decline == CodeExpiredCard:
		return &DeclineError{Code: CodeExpiredCard, Message: se.Msg}
	case code == CodeAuthenticationRequired || decline == CodeAuthenticationRequired:
		return &DeclineError{Code: CodeAuthenticationRequired, Message: se.Msg}
	case string(se.Type) == "card_error":
		return &DeclineError{Code: CodeCardDeclined, Message: se.Msg}
	case code == "resource_missing":
		return errors.Join(ErrNotFound, err)
	case se.HTTPStatusCode >= http.StatusInternalServerError, string(se.Type) == "api_error":
		return errors.Join(ErrUnavailable, err)
	}
	return err
}
