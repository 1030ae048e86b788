package service

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/iliyamo/directorio-lugares/internal/gateway"
)

// SetupResult is what the browser needs to collect a card.
type SetupResult struct {
	ClientSecret string `json:"clientSecret"`
	CustomerID   string `json:"customerId"`
}

// CardService manages the single saved card of a user.
type CardService struct {
	gw    Gateway
	users UserStore
	log   *zap.Logger
}

func NewCardService(gw Gateway, users UserStore, log *zap.Logger) *CardService {
	if log == nil {
		log = zap.NewNop()
	}
	return &CardService{gw: gw, users: users, log: log}
}

// RegisterSetupIntent creates the gateway customer on first use and a setup
// intent for off-session charges. Concurrent first calls converge on the
// customer id that was stored first.
func (s *CardService) RegisterSetupIntent(ctx context.Context, userID uint64) (*SetupResult, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}
	customer := user.CustomerRef()
	if customer == "" {
		name := strings.TrimSpace(user.Name + " " + user.PaternalSurname + " " + user.MaternalSurname)
		created, err := s.gw.CreateCustomer(ctx, user.Email, name, strconv.FormatUint(user.ID, 10))
		if err != nil {
			return nil, paymentError(err)
		}
		customer, err = s.users.SetGatewayCustomer(ctx, user.ID, created)
		if err != nil {
			return nil, err
		}
		if customer != created {
			s.log.Info("gateway customer created concurrently, keeping stored one",
				zap.Uint64("id_usuario", user.ID), zap.String("discarded", created))
		}
	}
	si, err := s.gw.CreateSetupIntent(ctx, customer)
	if err != nil {
		return nil, paymentError(err)
	}
	return &SetupResult{ClientSecret: si.ClientSecret, CustomerID: customer}, nil
}

// AttachPaymentMethod stores methodRef as the user's card. The caller
// echoes the customer id it was given by RegisterSetupIntent.
func (s *CardService) AttachPaymentMethod(ctx context.Context, userID uint64, methodRef, customerID string) (*gateway.Card, error) {
	if strings.TrimSpace(methodRef) == "" {
		return nil, &ValidationError{Field: "payment_method", Message: "El método de pago es obligatorio."}
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}
	if user.CustomerRef() == "" {
		return nil, ErrNoCustomer
	}
	if customerID != user.CustomerRef() {
		return nil, ErrCustomerMismatch
	}

	card, err := s.gw.GetPaymentMethod(ctx, methodRef)
	if err != nil {
		if errors.Is(err, gateway.ErrNotFound) {
			return nil, ErrPaymentMethodInvalid
		}
		return nil, paymentError(err)
	}
	switch card.CustomerID {
	case "":
		if card, err = s.gw.AttachPaymentMethod(ctx, methodRef, customerID); err != nil {
			return nil, paymentError(err)
		}
	case customerID:
	default:
		return nil, ErrPaymentMethodInvalid
	}

	if err := s.users.SetPaymentMethod(ctx, user.ID, &methodRef); err != nil {
		return nil, err
	}
	card.Funding = ""
	return card, nil
}

// SavedCard describes the stored card, funding type included.
func (s *CardService) SavedCard(ctx context.Context, userID uint64) (*gateway.Card, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}
	if user.SavedMethodRef() == "" {
		return nil, ErrNoSavedMethod
	}
	card, err := s.gw.GetPaymentMethod(ctx, user.SavedMethodRef())
	if err != nil {
		if errors.Is(err, gateway.ErrNotFound) {
			return nil, ErrPaymentMethodInvalid
		}
		return nil, paymentError(err)
	}
	return card, nil
}

// DetachPaymentMethod removes the card on the gateway and forgets it
// locally. A card already gone on the gateway side is still cleared.
func (s *CardService) DetachPaymentMethod(ctx context.Context, userID uint64) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return notFound(err, ErrUserNotFound)
	}
	if user.SavedMethodRef() == "" {
		return ErrNoSavedMethod
	}
	if err := s.gw.DetachPaymentMethod(ctx, user.SavedMethodRef()); err != nil && !errors.Is(err, gateway.ErrNotFound) {
		return paymentError(err)
	}
	return s.users.SetPaymentMethod(ctx, user.ID, nil)
}
