package service

import (
	"context"
	"time"

	"github.com/iliyamo/directorio-lugares/internal/model"
)

const (
	dailyWindow         = 30 * 24 * time.Hour
	defaultPopularLimit = 10
	maxPopularLimit     = 50
	defaultPurgeDays    = 90
)

// allTime is the lower bound used for unbounded totals.
var allTime = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

// VisitInput is one reported visit.
type VisitInput struct {
	PlaceID uint64
	UserID  *uint64
	Seconds int
}

// StatsService records visits and builds the visit and admin reports.
type StatsService struct {
	visits VisitStore
	places PlaceStore
	users  UserStore
	now    func() time.Time
}

func NewStatsService(visits VisitStore, places PlaceStore, users UserStore) *StatsService {
	return &StatsService{visits: visits, places: places, users: users, now: time.Now}
}

// RecordVisit stores a visit to an existing place.
func (s *StatsService) RecordVisit(ctx context.Context, in VisitInput) (*model.Visit, error) {
	if in.Seconds < 1 {
		return nil, &ValidationError{Field: "tiempo_visita", Message: "El tiempo de visita debe ser al menos 1 segundo."}
	}
	if _, err := s.places.GetByID(ctx, in.PlaceID); err != nil {
		return nil, notFound(err, ErrPlaceNotFound)
	}
	v := &model.Visit{PlaceID: in.PlaceID, UserID: in.UserID, Seconds: uint32(in.Seconds), At: s.now().UTC().Truncate(time.Second)}
	if err := s.visits.Insert(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

// PlaceSummary reports all-time totals and the last 30 days of a place.
func (s *StatsService) PlaceSummary(ctx context.Context, placeID uint64) (*model.PlaceVisitSummary, error) {
	place, err := s.places.GetByID(ctx, placeID)
	if err != nil {
		return nil, notFound(err, ErrPlaceNotFound)
	}
	totals, err := s.visits.PlaceTotals(ctx, placeID, allTime)
	if err != nil {
		return nil, err
	}
	daily, err := s.visits.PlaceDaily(ctx, placeID, s.now().UTC().Add(-dailyWindow))
	if err != nil {
		return nil, err
	}
	return &model.PlaceVisitSummary{PlaceID: place.ID, Name: place.Name, Totals: totals, Daily: daily}, nil
}

// AdvertiserSummary reports across the places of ownerID. Only the owner
// and administrators may read it.
func (s *StatsService) AdvertiserSummary(ctx context.Context, actor model.Principal, ownerID uint64) (*model.AdvertiserVisitSummary, error) {
	if actor.ID != ownerID && !actor.Role.IsAdmin() {
		return nil, ErrForbidden
	}
	if _, err := s.users.GetByID(ctx, ownerID); err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}
	totals, err := s.visits.OwnerTotals(ctx, ownerID, allTime)
	if err != nil {
		return nil, err
	}
	perPlace, err := s.visits.OwnerPerPlace(ctx, ownerID, allTime)
	if err != nil {
		return nil, err
	}
	daily, err := s.visits.OwnerDaily(ctx, ownerID, s.now().UTC().Add(-dailyWindow))
	if err != nil {
		return nil, err
	}
	return &model.AdvertiserVisitSummary{UserID: ownerID, Places: len(perPlace), Totals: totals, PerPlace: perPlace, Daily: daily}, nil
}

// Popular ranks visible places by visits over the last days days. Zero
// limit or days pick the defaults; limit is capped at 50.
func (s *StatsService) Popular(ctx context.Context, limit, days int) ([]model.PlaceCount, error) {
	if limit <= 0 {
		limit = defaultPopularLimit
	}
	if limit > maxPopularLimit {
		limit = maxPopularLimit
	}
	from := allTime
	if days > 0 {
		from = s.now().UTC().AddDate(0, 0, -days)
	}
	return s.visits.Popular(ctx, from, limit)
}

// Overview is the administrator's global visit report.
func (s *StatsService) Overview(ctx context.Context) (*model.VisitOverview, error) {
	totals, err := s.visits.GlobalTotals(ctx, allTime)
	if err != nil {
		return nil, err
	}
	daily, err := s.visits.GlobalDaily(ctx, s.now().UTC().Add(-dailyWindow))
	if err != nil {
		return nil, err
	}
	top, err := s.visits.Popular(ctx, allTime, defaultPopularLimit)
	if err != nil {
		return nil, err
	}
	return &model.VisitOverview{Totals: totals, Daily: daily, Top: top}, nil
}

// Purge deletes raw visits older than days (90 when zero).
func (s *StatsService) Purge(ctx context.Context, days int) (int64, error) {
	if days == 0 {
		days = defaultPurgeDays
	}
	if days < 1 {
		return 0, &ValidationError{Field: "dias", Message: "Los días deben ser al menos 1."}
	}
	return s.visits.PurgeBefore(ctx, s.now().UTC().AddDate(0, 0, -days))
}

func (s *StatsService) UserStats(ctx context.Context) (model.UserStats, error) {
	return s.users.Stats(ctx)
}

func (s *StatsService) PlaceStats(ctx context.Context) (model.PlaceStats, error) {
	return s.places.Stats(ctx)
}
