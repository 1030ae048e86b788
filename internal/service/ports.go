package service

import (
	"context"
	"time"

	"github.com/iliyamo/directorio-lugares/internal/gateway"
	"github.com/iliyamo/directorio-lugares/internal/model"
	"github.com/iliyamo/directorio-lugares/internal/queue"
	"github.com/iliyamo/directorio-lugares/internal/repository"
)

// Gateway is the card processor as seen by the workflows.
type Gateway interface {
	CreateCustomer(ctx context.Context, email, name, userID string) (string, error)
	CreateSetupIntent(ctx context.Context, customerID string) (*gateway.SetupIntent, error)
	GetPaymentMethod(ctx context.Context, id string) (*gateway.Card, error)
	AttachPaymentMethod(ctx context.Context, id, customerID string) (*gateway.Card, error)
	DetachPaymentMethod(ctx context.Context, id string) error
	ChargeSavedMethod(ctx context.Context, req gateway.ChargeRequest) (*gateway.Charge, error)
	ChargeToken(ctx context.Context, req gateway.ChargeRequest) (*gateway.Charge, error)
	GetCharge(ctx context.Context, id string) (*gateway.Charge, error)
	Refund(ctx context.Context, req gateway.RefundRequest) (*gateway.Refund, error)
}

type UserStore interface {
	GetByID(ctx context.Context, id uint64) (*model.User, error)
	SetGatewayCustomer(ctx context.Context, id uint64, customerID string) (string, error)
	SetPaymentMethod(ctx context.Context, id uint64, methodID *string) error
	Block(ctx context.Context, id, actorID uint64, reason string, at time.Time) error
	Unblock(ctx context.Context, id, actorID uint64, at time.Time) error
	Stats(ctx context.Context) (model.UserStats, error)
}

type PlaceStore interface {
	GetByID(ctx context.Context, id uint64) (*model.Place, error)
	Block(ctx context.Context, id, actorID uint64, reason string, at time.Time) error
	Unblock(ctx context.Context, id, actorID uint64, at time.Time) error
	Stats(ctx context.Context) (model.PlaceStats, error)
}

// Ledger is the payment ledger plus the activation/refund transactions.
type Ledger interface {
	RecordActivation(ctx context.Context, p *model.Payment) (*model.Place, error)
	RecordRefund(ctx context.Context, rec repository.RefundRecord) (repository.RefundOutcome, error)
	GetByID(ctx context.Context, id uint64) (*model.Payment, error)
	GetByExternalID(ctx context.Context, externalID string) (*model.Payment, error)
	ListByUser(ctx context.Context, userID uint64) ([]model.Payment, error)
	UpdateStatus(ctx context.Context, id uint64, status string) error
}

type MethodCatalog interface {
	Exists(ctx context.Context, id uint64) (bool, error)
}

type VisitStore interface {
	Insert(ctx context.Context, v *model.Visit) error
	PlaceTotals(ctx context.Context, placeID uint64, from time.Time) (model.VisitTotals, error)
	PlaceDaily(ctx context.Context, placeID uint64, from time.Time) ([]model.DailyVisits, error)
	OwnerTotals(ctx context.Context, ownerID uint64, from time.Time) (model.VisitTotals, error)
	OwnerPerPlace(ctx context.Context, ownerID uint64, from time.Time) ([]model.PlaceVisitRow, error)
	OwnerDaily(ctx context.Context, ownerID uint64, from time.Time) ([]model.DailyVisits, error)
	Popular(ctx context.Context, from time.Time, limit int) ([]model.PlaceCount, error)
	GlobalTotals(ctx context.Context, from time.Time) (model.VisitTotals, error)
	GlobalDaily(ctx context.Context, from time.Time) ([]model.DailyVisits, error)
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// EventPublisher is best effort; its error is logged by the caller and
// never changes the outcome of an operation.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.Event) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, queue.Event) error { return nil }
