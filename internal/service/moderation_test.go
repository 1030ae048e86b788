package service

import (
	"context"
	"errors"
	"testing"

	"github.com/iliyamo/directorio-lugares/internal/model"
	"github.com/iliyamo/directorio-lugares/internal/queue"
)

func newModerationFixture() (*ModerationService, *memStore, *recordingPublisher) {
	store := newMemStore()
	store.addUser(1, model.RoleNameAdministrator)
	store.addUser(4, model.RoleNameAdministrator)
	store.addUser(2, model.RoleNameAdvertiser)
	store.addPlace(10, 2, true)
	events := &recordingPublisher{}
	return NewModerationService(userStore{store}, placeStore{store}, events, nil), store, events
}

var admin = model.Principal{ID: 1, Role: model.RoleAdministrator}

func TestBlockUnblockUser(t *testing.T) {
	svc, store, events := newModerationFixture()
	store.sessions[2] = 3
	ctx := context.Background()

	u, err := svc.BlockUser(ctx, admin, 2, "spam")
	if err != nil {
		t.Fatal(err)
	}
	if !u.Blocked || *u.BlockReason != "spam" || *u.BlockedBy != 1 {
		t.Fatalf("unexpected block state %+v", u.BlockState)
	}
	if store.sessions[2] != 0 || store.users[2].SessionsRevokedAt == nil {
		t.Fatal("sessions must be revoked")
	}
	if _, err := svc.BlockUser(ctx, admin, 2, ""); !errors.Is(err, ErrAlreadyBlocked) {
		t.Fatalf("second block: %v", err)
	}

	u, err = svc.UnblockUser(ctx, admin, 2)
	if err != nil {
		t.Fatal(err)
	}
	if u.Blocked || u.BlockReason != nil || *u.UnblockedBy != 1 {
		t.Fatalf("unexpected unblock state %+v", u.BlockState)
	}
	if _, err := svc.UnblockUser(ctx, admin, 2); !errors.Is(err, ErrAlreadyUnblocked) {
		t.Fatalf("second unblock: %v", err)
	}
	if ts := events.types(); len(ts) != 1 || ts[0] != queue.TypeUserBlocked {
		t.Fatalf("events %v", ts)
	}
}

func TestBlockUserGuards(t *testing.T) {
	svc, store, _ := newModerationFixture()
	ctx := context.Background()

	cases := []struct {
		name   string
		actor  model.Principal
		target uint64
		want   error
	}{
		{"not admin", model.Principal{ID: 2, Role: model.RoleAdvertiser}, 1, ErrForbidden},
		{"missing", admin, 99, ErrUserNotFound},
		{"self", admin, 1, ErrSelfModeration},
		{"peer admin", admin, 4, ErrPeerAdmin},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.BlockUser(ctx, tc.actor, tc.target, ""); !errors.Is(err, tc.want) {
				t.Fatalf("want %v, got %v", tc.want, err)
			}
		})
	}
	if store.users[1].Blocked || store.users[4].Blocked {
		t.Fatal("no state change expected")
	}
}

func TestBlockReasonDefaultAndLimit(t *testing.T) {
	svc, _, _ := newModerationFixture()
	ctx := context.Background()

	long := make([]rune, 501)
	for i := range long {
		long[i] = 'x'
	}
	var ve *ValidationError
	if _, err := svc.BlockUser(ctx, admin, 2, string(long)); !errors.As(err, &ve) {
		t.Fatalf("long reason: %v", err)
	}
	u, err := svc.BlockUser(ctx, admin, 2, "")
	if err != nil {
		t.Fatal(err)
	}
	if *u.BlockReason != "Bloqueado por administrador" {
		t.Fatalf("default reason %q", *u.BlockReason)
	}
}

func TestToggleUser(t *testing.T) {
	svc, _, _ := newModerationFixture()
	ctx := context.Background()
	u, err := svc.ToggleUser(ctx, admin, 2, "")
	if err != nil || !u.Blocked {
		t.Fatalf("first toggle: %v %+v", err, u)
	}
	u, err = svc.ToggleUser(ctx, admin, 2, "")
	if err != nil || u.Blocked {
		t.Fatalf("second toggle: %v %+v", err, u)
	}
}

func TestBlockPlaceLeavesActiveUntouched(t *testing.T) {
	svc, store, _ := newModerationFixture()
	ctx := context.Background()

	p, err := svc.BlockPlace(ctx, admin, 10, "contenido")
	if err != nil {
		t.Fatal(err)
	}
	if !p.Blocked || !p.Active || p.Visible() {
		t.Fatalf("blocked place must stay active and be hidden: %+v", p)
	}
	p, err = svc.TogglePlace(ctx, admin, 10, "")
	if err != nil || p.Blocked {
		t.Fatalf("toggle: %v %+v", err, p)
	}
	if _, err := svc.UnblockPlace(ctx, admin, 10); !errors.Is(err, ErrAlreadyUnblocked) {
		t.Fatalf("unblock twice: %v", err)
	}
	if _, err := svc.BlockPlace(ctx, admin, 99, ""); !errors.Is(err, ErrPlaceNotFound) {
		t.Fatalf("missing place: %v", err)
	}
	store.places[11] = &model.Place{ID: 11, OwnerID: 2}
	if p, err := svc.TogglePlace(ctx, admin, 11, ""); err != nil || !p.Blocked || p.Active {
		t.Fatalf("inactive place can be blocked too: %v %+v", err, p)
	}
}
