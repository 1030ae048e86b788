package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/directorio-lugares/internal/model"
	"github.com/iliyamo/directorio-lugares/internal/queue"
	"github.com/iliyamo/directorio-lugares/internal/repository"
)

const (
	defaultBlockReason = "Bloqueado por administrador"
	maxBlockReason     = 500
)

// ModerationService blocks and unblocks users and places. Blocking is
// independent of the active flag.
type ModerationService struct {
	users  UserStore
	places PlaceStore
	events EventPublisher
	log    *zap.Logger
	now    func() time.Time
}

func NewModerationService(users UserStore, places PlaceStore, events EventPublisher, log *zap.Logger) *ModerationService {
	if events == nil {
		events = nopPublisher{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ModerationService{users: users, places: places, events: events, log: log, now: time.Now}
}

func blockReason(reason string) (string, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return defaultBlockReason, nil
	}
	if len([]rune(reason)) > maxBlockReason {
		return "", &ValidationError{Field: "motivo", Message: "El motivo no puede exceder 500 caracteres."}
	}
	return reason, nil
}

// moderatedUser loads the target and applies the guards shared by every
// user transition.
func (s *ModerationService) moderatedUser(ctx context.Context, actor model.Principal, targetID uint64) (*model.User, error) {
	if !actor.Role.IsAdmin() {
		return nil, ErrForbidden
	}
	target, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}
	if target.ID == actor.ID {
		return nil, ErrSelfModeration
	}
	if !actor.Role.CanModerate(target.Role()) {
		return nil, ErrPeerAdmin
	}
	return target, nil
}

// BlockUser blocks the target and revokes every session it holds.
func (s *ModerationService) BlockUser(ctx context.Context, actor model.Principal, targetID uint64, reason string) (*model.User, error) {
	target, err := s.moderatedUser(ctx, actor, targetID)
	if err != nil {
		return nil, err
	}
	return s.blockUser(ctx, actor, target, reason)
}

func (s *ModerationService) blockUser(ctx context.Context, actor model.Principal, target *model.User, reason string) (*model.User, error) {
	reason, err := blockReason(reason)
	if err != nil {
		return nil, err
	}
	if err := s.users.Block(ctx, target.ID, actor.ID, reason, s.now().UTC()); err != nil {
		if errors.Is(err, repository.ErrStateUnchanged) {
			return nil, ErrAlreadyBlocked
		}
		return nil, err
	}
	s.log.Info("user blocked", zap.Uint64("id_usuario", target.ID), zap.Uint64("actor", actor.ID))
	_ = s.events.Publish(ctx, queue.Event{Type: queue.TypeUserBlocked, UserID: target.ID, ActorID: actor.ID, Reason: reason})
	return s.users.GetByID(ctx, target.ID)
}

func (s *ModerationService) UnblockUser(ctx context.Context, actor model.Principal, targetID uint64) (*model.User, error) {
	target, err := s.moderatedUser(ctx, actor, targetID)
	if err != nil {
		return nil, err
	}
	return s.unblockUser(ctx, actor, target)
}

func (s *ModerationService) unblockUser(ctx context.Context, actor model.Principal, target *model.User) (*model.User, error) {
	if err := s.users.Unblock(ctx, target.ID, actor.ID, s.now().UTC().Truncate(time.Second)); err != nil {
		if errors.Is(err, repository.ErrStateUnchanged) {
			return nil, ErrAlreadyUnblocked
		}
		return nil, err
	}
	s.log.Info("user unblocked", zap.Uint64("id_usuario", target.ID), zap.Uint64("actor", actor.ID))
	return s.users.GetByID(ctx, target.ID)
}

// ToggleUser flips the target's blocked state.
func (s *ModerationService) ToggleUser(ctx context.Context, actor model.Principal, targetID uint64, reason string) (*model.User, error) {
	target, err := s.moderatedUser(ctx, actor, targetID)
	if err != nil {
		return nil, err
	}
	if target.Blocked {
		return s.unblockUser(ctx, actor, target)
	}
	return s.blockUser(ctx, actor, target, reason)
}

func (s *ModerationService) moderatedPlace(ctx context.Context, actor model.Principal, placeID uint64) (*model.Place, error) {
	if !actor.Role.IsAdmin() {
		return nil, ErrForbidden
	}
	place, err := s.places.GetByID(ctx, placeID)
	if err != nil {
		return nil, notFound(err, ErrPlaceNotFound)
	}
	return place, nil
}

// BlockPlace hides a place from public listings without touching activo.
func (s *ModerationService) BlockPlace(ctx context.Context, actor model.Principal, placeID uint64, reason string) (*model.Place, error) {
	place, err := s.moderatedPlace(ctx, actor, placeID)
	if err != nil {
		return nil, err
	}
	return s.blockPlace(ctx, actor, place, reason)
}

func (s *ModerationService) blockPlace(ctx context.Context, actor model.Principal, place *model.Place, reason string) (*model.Place, error) {
	reason, err := blockReason(reason)
	if err != nil {
		return nil, err
	}
	if err := s.places.Block(ctx, place.ID, actor.ID, reason, s.now().UTC().Truncate(time.Second)); err != nil {
		if errors.Is(err, repository.ErrStateUnchanged) {
			return nil, ErrAlreadyBlocked
		}
		return nil, err
	}
	s.log.Info("place blocked", zap.Uint64("id_lugar", place.ID), zap.Uint64("actor", actor.ID))
	_ = s.events.Publish(ctx, queue.Event{Type: queue.TypePlaceBlocked, PlaceID: place.ID, UserID: place.OwnerID, ActorID: actor.ID, Reason: reason})
	return s.places.GetByID(ctx, place.ID)
}

func (s *ModerationService) UnblockPlace(ctx context.Context, actor model.Principal, placeID uint64) (*model.Place, error) {
	place, err := s.moderatedPlace(ctx, actor, placeID)
	if err != nil {
		return nil, err
	}
	return s.unblockPlace(ctx, actor, place)
}

func (s *ModerationService) unblockPlace(ctx context.Context, actor model.Principal, place *model.Place) (*model.Place, error) {
	if err := s.places.Unblock(ctx, place.ID, actor.ID, s.now().UTC().Truncate(time.Second)); err != nil {
		if errors.Is(err, repository.ErrStateUnchanged) {
			return nil, ErrAlreadyUnblocked
		}
		return nil, err
	}
	s.log.Info("place unblocked", zap.Uint64("id_lugar", place.ID), zap.Uint64("actor", actor.ID))
	return s.places.GetByID(ctx, place.ID)
}

// TogglePlace flips the place's blocked state.
func (s *ModerationService) TogglePlace(ctx context.Context, actor model.Principal, placeID uint64, reason string) (*model.Place, error) {
	place, err := s.moderatedPlace(ctx, actor, placeID)
	if err != nil {
		return nil, err
	}
	if place.Blocked {
		return s.unblockPlace(ctx, actor, place)
	}
	return s.blockPlace(ctx, actor, place, reason)
}
