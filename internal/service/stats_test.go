package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/iliyamo/directorio-lugares/internal/model"
)

type fakeVisits struct {
	inserted    []model.Visit
	popularFrom time.Time
	popularN    int
	purgeCutoff time.Time
}

func (f *fakeVisits) Insert(ctx context.Context, v *model.Visit) error {
	v.ID = uint64(len(f.inserted) + 1)
	f.inserted = append(f.inserted, *v)
	return nil
}
func (f *fakeVisits) PlaceTotals(context.Context, uint64, time.Time) (model.VisitTotals, error) {
	return model.VisitTotals{Visits: int64(len(f.inserted))}, nil
}
func (f *fakeVisits) PlaceDaily(context.Context, uint64, time.Time) ([]model.DailyVisits, error) {
	return []model.DailyVisits{}, nil
}
func (f *fakeVisits) OwnerTotals(context.Context, uint64, time.Time) (model.VisitTotals, error) {
	return model.VisitTotals{}, nil
}
func (f *fakeVisits) OwnerPerPlace(context.Context, uint64, time.Time) ([]model.PlaceVisitRow, error) {
	return []model.PlaceVisitRow{{PlaceID: 10}, {PlaceID: 11}}, nil
}
func (f *fakeVisits) OwnerDaily(context.Context, uint64, time.Time) ([]model.DailyVisits, error) {
	return []model.DailyVisits{}, nil
}
func (f *fakeVisits) Popular(ctx context.Context, from time.Time, limit int) ([]model.PlaceCount, error) {
	f.popularFrom, f.popularN = from, limit
	return []model.PlaceCount{}, nil
}
func (f *fakeVisits) GlobalTotals(context.Context, time.Time) (model.VisitTotals, error) {
	return model.VisitTotals{}, nil
}
func (f *fakeVisits) GlobalDaily(context.Context, time.Time) ([]model.DailyVisits, error) {
	return []model.DailyVisits{}, nil
}
func (f *fakeVisits) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	f.purgeCutoff = cutoff
	return 3, nil
}

var statsNow = time.Date(2025, 7, 15, 12, 0, 0, 0, time.UTC)

func newStatsFixture() (*StatsService, *fakeVisits) {
	store := newMemStore()
	store.addUser(2, model.RoleNameAdvertiser)
	store.addPlace(10, 2, true)
	visits := &fakeVisits{}
	svc := NewStatsService(visits, placeStore{store}, userStore{store})
	svc.now = func() time.Time { return statsNow }
	return svc, visits
}

func TestRecordVisit(t *testing.T) {
	svc, visits := newStatsFixture()
	ctx := context.Background()

	var ve *ValidationError
	if _, err := svc.RecordVisit(ctx, VisitInput{PlaceID: 10, Seconds: 0}); !errors.As(err, &ve) {
		t.Fatalf("zero seconds: %v", err)
	}
	if _, err := svc.RecordVisit(ctx, VisitInput{PlaceID: 99, Seconds: 5}); !errors.Is(err, ErrPlaceNotFound) {
		t.Fatalf("missing place: %v", err)
	}
	v, err := svc.RecordVisit(ctx, VisitInput{PlaceID: 10, Seconds: 5})
	if err != nil {
		t.Fatal(err)
	}
	if v.UserID != nil || !v.At.Equal(statsNow) || len(visits.inserted) != 1 {
		t.Fatalf("unexpected visit %+v", v)
	}
}

func TestAdvertiserSummaryAccess(t *testing.T) {
	svc, _ := newStatsFixture()
	ctx := context.Background()
	if _, err := svc.AdvertiserSummary(ctx, model.Principal{ID: 3, Role: model.RoleAdvertiser}, 2); !errors.Is(err, ErrForbidden) {
		t.Fatalf("stranger: %v", err)
	}
	sum, err := svc.AdvertiserSummary(ctx, model.Principal{ID: 2, Role: model.RoleAdvertiser}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Places != 2 {
		t.Fatalf("places %d", sum.Places)
	}
	if _, err := svc.AdvertiserSummary(ctx, admin, 2); err != nil {
		t.Fatalf("admin: %v", err)
	}
}

func TestPopularLimits(t *testing.T) {
	svc, visits := newStatsFixture()
	ctx := context.Background()
	if _, err := svc.Popular(ctx, 500, 7); err != nil {
		t.Fatal(err)
	}
	if visits.popularN != 50 || !visits.popularFrom.Equal(statsNow.AddDate(0, 0, -7)) {
		t.Fatalf("limit %d from %v", visits.popularN, visits.popularFrom)
	}
	if _, err := svc.Popular(ctx, 0, 0); err != nil {
		t.Fatal(err)
	}
	if visits.popularN != 10 {
		t.Fatalf("default limit %d", visits.popularN)
	}
}

func TestPurge(t *testing.T) {
	svc, visits := newStatsFixture()
	ctx := context.Background()
	n, err := svc.Purge(ctx, 0)
	if err != nil || n != 3 {
		t.Fatalf("purge: %d %v", n, err)
	}
	if !visits.purgeCutoff.Equal(statsNow.AddDate(0, 0, -90)) {
		t.Fatalf("cutoff %v", visits.purgeCutoff)
	}
	var ve *ValidationError
	if _, err := svc.Purge(ctx, -1); !errors.As(err, &ve) {
		t.Fatalf("negative days: %v", err)
	}
}
