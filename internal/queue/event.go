// Package queue defines the domain events exchanged over the message broker
// and the publisher and consumer that move them.
package queue

import "time"

// Event types.
const (
	TypePlaceActivated    = "place.activated"
	TypePaymentRefunded   = "payment.refunded"
	TypeReconcileRequired = "payment.reconcile_required"
	TypeUserBlocked       = "user.blocked"
	TypePlaceBlocked      = "place.blocked"
)

// Event is the single envelope published to the events queue. Fields that
// do not apply to a type are left zero and omitted from the JSON body.
type Event struct {
	Type        string    `json:"type"`
	OccurredAt  time.Time `json:"occurred_at"`
	UserID      uint64    `json:"id_usuario,omitempty"`
	PlaceID     uint64    `json:"id_lugar,omitempty"`
	PaymentID   uint64    `json:"id_pago,omitempty"`
	ActorID     uint64    `json:"actor_id,omitempty"`
	ExternalID  string    `json:"stripe_id,omitempty"`
	AmountCents int64     `json:"amount_cents,omitempty"`
	Operation   string    `json:"operation,omitempty"` // reconcile: activation | refund
	Reason      string    `json:"reason,omitempty"`
	Error       string    `json:"error,omitempty"`
}
