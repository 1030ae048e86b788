// Package service holds the workflows that span the database, the card
// gateway and the event queue: place activation, refunds, saved cards,
// moderation and visit statistics.
package service

import (
	"errors"
	"fmt"
)

var (
	ErrForbidden = errors.New("forbidden")

	ErrUserNotFound    = errors.New("user not found")
	ErrPlaceNotFound   = errors.New("place not found")
	ErrMethodNotFound  = errors.New("payment method not found")
	ErrPaymentNotFound = errors.New("payment not found")

	// ErrAlreadyActivated is returned before any gateway call when the
	// place is already active.
	ErrAlreadyActivated = errors.New("place already activated")
	// ErrNoSavedMethod means the user has no stored card (or no customer).
	ErrNoSavedMethod = errors.New("no saved payment method")
	// ErrNoSavedMethodForCharge is a domiciled charge with nothing on file.
	ErrNoSavedMethodForCharge = errors.New("no saved payment method to charge")
	// ErrPaymentMethodInvalid covers a stored or submitted card that cannot
	// be retrieved or belongs to another customer.
	ErrPaymentMethodInvalid = errors.New("payment method invalid")
	ErrNoCustomer           = errors.New("no gateway customer")
	ErrCustomerMismatch     = errors.New("customer id mismatch")

	ErrNotGatewayPayment = errors.New("payment not processed by gateway")
	ErrAlreadyRefunded   = errors.New("payment already refunded")
	ErrPaymentIncomplete = errors.New("payment incomplete")

	ErrSelfModeration   = errors.New("cannot moderate self")
	ErrPeerAdmin        = errors.New("cannot moderate an administrator")
	ErrAlreadyBlocked   = errors.New("already blocked")
	ErrAlreadyUnblocked = errors.New("already unblocked")
)

// ValidationError rejects one input field. Message is user facing.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Field + ": " + e.Message }

// PaymentError is a gateway rejection. Code is one of the gateway decline
// codes, gateway_unavailable, payment_incomplete or payment_failed.
type PaymentError struct {
	Err     error
	Code    string
	Message string
}

func (e *PaymentError) Error() string { return "payment " + e.Code + ": " + e.Err.Error() }
func (e *PaymentError) Unwrap() error { return e.Err }

// ReconcileError means the gateway moved money but the local write that
// should follow failed. It is never retried automatically.
type ReconcileError struct {
	Op          string // activation | refund
	ExternalID  string
	AmountCents int64
	Err         error
}

func (e *ReconcileError) Error() string {
	return fmt.Sprintf("reconcile required: %s %s (%d): %v", e.Op, e.ExternalID, e.AmountCents, e.Err)
}

func (e *ReconcileError) Unwrap() error { return e.Err }
