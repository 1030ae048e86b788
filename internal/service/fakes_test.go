package service

import (
	"context"
	"sync"
	"time"

	"github.com/iliyamo/directorio-lugares/internal/gateway"
	"github.com/iliyamo/directorio-lugares/internal/model"
	"github.com/iliyamo/directorio-lugares/internal/queue"
	"github.com/iliyamo/directorio-lugares/internal/repository"
)

type fakeGateway struct {
	mu        sync.Mutex
	calls     []string
	customers int
	methods   map[string]*gateway.Card
	chargeErr error
	status    string
	refundErr error
	charges   map[string]*gateway.Charge
	lastReq   gateway.ChargeRequest
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{methods: map[string]*gateway.Card{}, charges: map[string]*gateway.Charge{}, status: "succeeded"}
}

func (g *fakeGateway) record(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, name)
}

func (g *fakeGateway) called(name string) int {
	n := 0
	for _, c := range g.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (g *fakeGateway) chargeCalls() int { return g.called("ChargeSavedMethod") + g.called("ChargeToken") }

func (g *fakeGateway) CreateCustomer(ctx context.Context, email, name, userID string) (string, error) {
	g.record("CreateCustomer")
	g.customers++
	return "cus_" + userID + "_" + string(rune('a'+g.customers-1)), nil
}

func (g *fakeGateway) CreateSetupIntent(ctx context.Context, customerID string) (*gateway.SetupIntent, error) {
	g.record("CreateSetupIntent")
	return &gateway.SetupIntent{ID: "seti_1", ClientSecret: "seti_1_secret_" + customerID}, nil
}

func (g *fakeGateway) GetPaymentMethod(ctx context.Context, id string) (*gateway.Card, error) {
	g.record("GetPaymentMethod")
	c, ok := g.methods[id]
	if !ok {
		return nil, gateway.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (g *fakeGateway) AttachPaymentMethod(ctx context.Context, id, customerID string) (*gateway.Card, error) {
	g.record("AttachPaymentMethod")
	c, ok := g.methods[id]
	if !ok {
		return nil, gateway.ErrNotFound
	}
	c.CustomerID = customerID
	cp := *c
	return &cp, nil
}

func (g *fakeGateway) DetachPaymentMethod(ctx context.Context, id string) error {
	g.record("DetachPaymentMethod")
	if c, ok := g.methods[id]; ok {
		c.CustomerID = ""
	}
	return nil
}

func (g *fakeGateway) charge(name string, req gateway.ChargeRequest) (*gateway.Charge, error) {
	g.record(name)
	g.lastReq = req
	if g.chargeErr != nil {
		return nil, g.chargeErr
	}
	id := "pi_" + req.IdempotencyKey
	if name == "ChargeToken" {
		id = "ch_" + req.IdempotencyKey
	}
	ch := &gateway.Charge{ID: id, Status: g.status, AmountCents: req.AmountCents, Currency: req.Currency, Created: time.Unix(1700000000, 0).UTC()}
	g.charges[id] = ch
	return ch, nil
}

func (g *fakeGateway) ChargeSavedMethod(ctx context.Context, req gateway.ChargeRequest) (*gateway.Charge, error) {
	return g.charge("ChargeSavedMethod", req)
}

func (g *fakeGateway) ChargeToken(ctx context.Context, req gateway.ChargeRequest) (*gateway.Charge, error) {
	return g.charge("ChargeToken", req)
}

func (g *fakeGateway) GetCharge(ctx context.Context, id string) (*gateway.Charge, error) {
	g.record("GetCharge")
	ch, ok := g.charges[id]
	if !ok {
		return nil, gateway.ErrNotFound
	}
	cp := *ch
	return &cp, nil
}

func (g *fakeGateway) Refund(ctx context.Context, req gateway.RefundRequest) (*gateway.Refund, error) {
	g.record("Refund")
	if g.refundErr != nil {
		return nil, g.refundErr
	}
	return &gateway.Refund{ID: "re_" + req.ChargeID, Status: "succeeded", AmountCents: req.AmountCents}, nil
}

// memStore backs users, places, the ledger and the catalog with maps and
// mirrors the conditional updates of the SQL repositories.
type memStore struct {
	mu        sync.Mutex
	users     map[uint64]*model.User
	places    map[uint64]*model.Place
	payments  map[uint64]*model.Payment
	methods   map[uint64]bool
	nextPay   uint64
	failWrite error
	sessions  map[uint64]int // live refresh tokens per user

	// beforeRefundWrite runs inside RecordRefund before the row is read,
	// standing in for a refund committed by another request.
	beforeRefundWrite func(p *model.Payment)
}

func newMemStore() *memStore {
	return &memStore{
		users:    map[uint64]*model.User{},
		places:   map[uint64]*model.Place{},
		payments: map[uint64]*model.Payment{},
		methods:  map[uint64]bool{1: true},
		sessions: map[uint64]int{},
	}
}

func (m *memStore) addUser(id uint64, role string) *model.User {
	u := &model.User{ID: id, Name: "U", Email: "u@example.com", RoleName: role, Active: true}
	m.users[id] = u
	return u
}

func (m *memStore) addPlace(id, owner uint64, active bool) *model.Place {
	p := &model.Place{ID: id, Name: "Lugar", OwnerID: owner, Active: active}
	m.places[id] = p
	return p
}

type userStore struct{ *memStore }

func (s userStore) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s userStore) SetGatewayCustomer(ctx context.Context, id uint64, customerID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return "", repository.ErrNotFound
	}
	if u.GatewayCustomerID == nil {
		u.GatewayCustomerID = &customerID
	}
	return *u.GatewayCustomerID, nil
}

func (s userStore) SetPaymentMethod(ctx context.Context, id uint64, methodID *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.PaymentMethodID = methodID
	return nil
}

func (s userStore) Block(ctx context.Context, id, actorID uint64, reason string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.users[id]
	if u.Blocked {
		return repository.ErrStateUnchanged
	}
	blockedAt, revokedAt := at.Truncate(time.Second), at.Truncate(time.Millisecond)
	u.Blocked, u.BlockReason, u.BlockedAt, u.BlockedBy = true, &reason, &blockedAt, &actorID
	u.SessionsRevokedAt = &revokedAt
	s.sessions[id] = 0
	return nil
}

func (s userStore) Unblock(ctx context.Context, id, actorID uint64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.users[id]
	if !u.Blocked {
		return repository.ErrStateUnchanged
	}
	u.BlockState = model.BlockState{UnblockedAt: &at, UnblockedBy: &actorID}
	return nil
}

func (s userStore) Stats(ctx context.Context) (model.UserStats, error) {
	return model.UserStats{Total: int64(len(s.users))}, nil
}

type placeStore struct{ *memStore }

func (s placeStore) GetByID(ctx context.Context, id uint64) (*model.Place, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.places[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s placeStore) Block(ctx context.Context, id, actorID uint64, reason string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.places[id]
	if p.Blocked {
		return repository.ErrStateUnchanged
	}
	p.Blocked, p.BlockReason, p.BlockedAt, p.BlockedBy = true, &reason, &at, &actorID
	return nil
}

func (s placeStore) Unblock(ctx context.Context, id, actorID uint64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.places[id]
	if !p.Blocked {
		return repository.ErrStateUnchanged
	}
	p.BlockState = model.BlockState{UnblockedAt: &at, UnblockedBy: &actorID}
	return nil
}

func (s placeStore) Stats(ctx context.Context) (model.PlaceStats, error) {
	return model.PlaceStats{Total: int64(len(s.places))}, nil
}

type ledgerStore struct{ *memStore }

func (s ledgerStore) RecordActivation(ctx context.Context, p *model.Payment) (*model.Place, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrite != nil {
		return nil, s.failWrite
	}
	place := s.places[p.PlaceID]
	if place.Active {
		return nil, repository.ErrPlaceAlreadyActive
	}
	s.nextPay++
	p.ID = s.nextPay
	cp := *p
	s.payments[p.ID] = &cp
	at := p.PaidAt
	place.Active, place.ActivatedAt, place.ActivatingPaymentID = true, &at, &cp.ID
	out := *place
	return &out, nil
}

func (s ledgerStore) RecordRefund(ctx context.Context, rec repository.RefundRecord) (repository.RefundOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out repository.RefundOutcome
	if s.failWrite != nil {
		return out, s.failWrite
	}
	p, ok := s.payments[rec.PaymentID]
	if !ok {
		return out, repository.ErrNotFound
	}
	if s.beforeRefundWrite != nil {
		s.beforeRefundWrite(p)
	}
	out.Refunded = rec.Amount
	if p.RefundedAmount != nil {
		out.Refunded += *p.RefundedAmount
	}
	full := out.Refunded >= p.Amount
	out.Status = model.StatusPartiallyRefunded
	if full {
		out.Status = model.StatusRefunded
	}
	total := out.Refunded
	p.RefundedAmount, p.Status, p.RefundID = &total, out.Status, &rec.RefundID
	if !full {
		return out, nil
	}
	place, ok := s.places[rec.PlaceID]
	if !ok || !place.Active || place.ActivatingPaymentID == nil || *place.ActivatingPaymentID != rec.PaymentID {
		return out, nil
	}
	place.Active = false
	out.Deactivated = true
	return out, nil
}

func (s ledgerStore) GetByID(ctx context.Context, id uint64) (*model.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s ledgerStore) GetByExternalID(ctx context.Context, externalID string) (*model.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.payments {
		if p.ExternalRef() == externalID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s ledgerStore) ListByUser(ctx context.Context, userID uint64) ([]model.Payment, error) {
	out := []model.Payment{}
	for _, p := range s.payments {
		if p.UserID == userID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s ledgerStore) UpdateStatus(ctx context.Context, id uint64, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments[id].Status = status
	return nil
}

func (m *memStore) Exists(ctx context.Context, id uint64) (bool, error) { return m.methods[id], nil }

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, ev queue.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []string {
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}
