// Package gateway talks to the card processor. The types here are the
// processor-neutral shapes the payment and card services work with.
package gateway

import (
	"errors"
	"time"
)

// ErrUnavailable is returned when the processor could not be reached or
// answered with a server error.
var ErrUnavailable = errors.New("gateway unavailable")

// ErrNotFound is returned when the referenced object does not exist on
// the processor side.
var ErrNotFound = errors.New("gateway object not found")

// DeclineError is a rejection the payer can act on (declined or expired
// card, missing funds, authentication required).
type DeclineError struct {
	Code    string
	Message string
}

func (e *DeclineError) Error() string { return "gateway declined: " + e.Code }

// Decline codes surfaced to clients.
const (
	CodeCardDeclined           = "card_declined"
	CodeExpiredCard            = "expired_card"
	CodeInsufficientFunds      = "insufficient_funds"
	CodeAuthenticationRequired = "authentication_required"
)

// SetupIntent is returned to the browser to collect and save a card.
type SetupIntent struct {
	ID           string
	ClientSecret string
}

// Card describes a stored payment method.
type Card struct {
	ID         string `json:"-"`
	CustomerID string `json:"-"`
	Brand      string `json:"brand"`
	Last4      string `json:"last4"`
	ExpMonth   int64  `json:"exp_month"`
	ExpYear    int64  `json:"exp_year"`
	Funding    string `json:"funding,omitempty"`
}

// ChargeRequest is one confirmed charge. Exactly one of Token or
// PaymentMethodID is set.
type ChargeRequest struct {
	AmountCents     int64
	Currency        string
	Description     string
	CustomerID      string
	PaymentMethodID string
	Token           string
	CVCToken        string
	ReturnURL       string
	OffSession      bool
	IdempotencyKey  string
	Metadata        map[string]string
}

// Charge is the processor's view of a charge or payment intent.
type Charge struct {
	ID          string
	Status      string
	AmountCents int64
	Currency    string
	Created     time.Time
}

// Succeeded reports whether the money was captured.
func (c *Charge) Succeeded() bool { return c.Status == "succeeded" }

// RefundRequest refunds AmountCents of ChargeID.
type RefundRequest struct {
	ChargeID       string
	AmountCents    int64
	Reason         string
	IdempotencyKey string
}

type Refund struct {
	ID          string
	Status      string
	AmountCents int64
}
