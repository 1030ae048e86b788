package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/iliyamo/directorio-lugares/internal/config"
	"github.com/iliyamo/directorio-lugares/internal/gateway"
	"github.com/iliyamo/directorio-lugares/internal/model"
	"github.com/iliyamo/directorio-lugares/internal/queue"
)

var stripeCfg = config.StripeConfig{Currency: "mxn", ListingPriceCents: 10000, ReturnURL: "https://example.com/retorno"}

type paymentFixture struct {
	svc    *PaymentService
	gw     *fakeGateway
	store  *memStore
	events *recordingPublisher
}

func newPaymentFixture() *paymentFixture {
	store := newMemStore()
	gw := newFakeGateway()
	events := &recordingPublisher{}
	svc := NewPaymentService(gw, ledgerStore{store}, placeStore{store}, userStore{store}, store, events, stripeCfg, nil)
	svc.now = func() time.Time { return time.Date(2025, 7, 15, 12, 0, 0, 0, time.UTC) }
	return &paymentFixture{svc: svc, gw: gw, store: store, events: events}
}

func strPtr(s string) *string { return &s }
func i64(v int64) *int64      { return &v }

func (f *paymentFixture) saveCard(userID uint64, customer, pm string) {
	u := f.store.users[userID]
	u.GatewayCustomerID, u.PaymentMethodID = strPtr(customer), strPtr(pm)
	f.gw.methods[pm] = &gateway.Card{ID: pm, CustomerID: customer, Brand: "visa", Last4: "4242", ExpMonth: 12, ExpYear: 2030, Funding: "credit"}
}

func TestActivateWithTokenAtListingPrice(t *testing.T) {
	f := newPaymentFixture()
	f.store.addUser(2, model.RoleNameAdvertiser)
	f.store.addPlace(10, 2, false)

	got, err := f.svc.Activate(context.Background(), ActivationRequest{PlaceID: 10, UserID: 2, MethodID: 1, Token: "tok_visa", IdempotencyKey: "k1"})
	if err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if !got.Place.Active || got.Place.ActivatedAt == nil {
		t.Fatal("place should be active with an activation time")
	}
	if got.Payment.Amount.String() != "100.00" || got.Payment.Status != model.StatusSucceeded || got.Payment.Kind != model.KindManual {
		t.Fatalf("unexpected ledger entry %+v", got.Payment)
	}
	if *got.Place.ActivatingPaymentID != got.Payment.ID {
		t.Fatal("place must point at the activating entry")
	}
	if f.gw.called("ChargeToken") != 1 || f.gw.lastReq.IdempotencyKey != "k1" {
		t.Fatalf("calls %v, key %q", f.gw.calls, f.gw.lastReq.IdempotencyKey)
	}
	if ts := f.events.types(); len(ts) != 1 || ts[0] != queue.TypePlaceActivated {
		t.Fatalf("events %v", ts)
	}
}

func TestActivateTwiceFailsWithoutGatewayCall(t *testing.T) {
	f := newPaymentFixture()
	f.store.addUser(2, model.RoleNameAdvertiser)
	f.store.addPlace(10, 2, false)
	ctx := context.Background()
	if _, err := f.svc.Activate(ctx, ActivationRequest{PlaceID: 10, UserID: 2, MethodID: 1, Token: "tok"}); err != nil {
		t.Fatal(err)
	}
	_, err := f.svc.Activate(ctx, ActivationRequest{PlaceID: 10, UserID: 2, MethodID: 1, Token: "tok"})
	if !errors.Is(err, ErrAlreadyActivated) {
		t.Fatalf("want ErrAlreadyActivated, got %v", err)
	}
	if f.gw.chargeCalls() != 1 || len(f.store.payments) != 1 {
		t.Fatalf("second attempt must not charge or write: calls=%v entries=%d", f.gw.calls, len(f.store.payments))
	}
}

func TestActivateValidation(t *testing.T) {
	f := newPaymentFixture()
	f.store.addUser(2, model.RoleNameAdvertiser)
	f.store.addPlace(10, 2, false)
	ctx := context.Background()

	cases := []struct {
		name string
		req  ActivationRequest
		want error
	}{
		{"zero amount", ActivationRequest{PlaceID: 10, UserID: 2, MethodID: 1, Token: "tok", AmountCents: i64(0)}, &ValidationError{}},
		{"unknown place", ActivationRequest{PlaceID: 99, UserID: 2, MethodID: 1, Token: "tok"}, ErrPlaceNotFound},
		{"unknown method", ActivationRequest{PlaceID: 10, UserID: 2, MethodID: 7, Token: "tok"}, ErrMethodNotFound},
		{"no source", ActivationRequest{PlaceID: 10, UserID: 2, MethodID: 1}, &ValidationError{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Activate(ctx, tc.req)
			var ve *ValidationError
			if _, isVE := tc.want.(*ValidationError); isVE {
				if !errors.As(err, &ve) {
					t.Fatalf("want ValidationError, got %v", err)
				}
			} else if !errors.Is(err, tc.want) {
				t.Fatalf("want %v, got %v", tc.want, err)
			}
		})
	}
	if f.gw.chargeCalls() != 0 {
		t.Fatalf("no charge expected, got %v", f.gw.calls)
	}
}

func TestActivateNoSourceMessage(t *testing.T) {
	f := newPaymentFixture()
	f.store.addUser(2, model.RoleNameAdvertiser)
	f.store.addPlace(10, 2, false)
	_, err := f.svc.Activate(context.Background(), ActivationRequest{PlaceID: 10, UserID: 2, MethodID: 1})
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Message != "No se proporcionó stripeToken ni método guardado." {
		t.Fatalf("got %v", err)
	}
}

func TestActivateDomiciledOffSession(t *testing.T) {
	f := newPaymentFixture()
	f.store.addUser(2, model.RoleNameAdvertiser)
	f.store.addPlace(10, 2, false)
	f.saveCard(2, "cus_2", "pm_1")

	got, err := f.svc.Activate(context.Background(), ActivationRequest{PlaceID: 10, UserID: 2, MethodID: 1, Kind: model.KindDomiciled, AmountCents: i64(25000)})
	if err != nil {
		t.Fatal(err)
	}
	if !f.gw.lastReq.OffSession || f.gw.lastReq.PaymentMethodID != "pm_1" || f.gw.lastReq.CustomerID != "cus_2" {
		t.Fatalf("unexpected charge request %+v", f.gw.lastReq)
	}
	if got.Payment.Kind != model.KindDomiciled || got.Payment.Amount != 25000 {
		t.Fatalf("unexpected entry %+v", got.Payment)
	}
}

func TestActivateManualSavedCardOnSession(t *testing.T) {
	f := newPaymentFixture()
	f.store.addUser(2, model.RoleNameAdvertiser)
	f.store.addPlace(10, 2, false)
	f.saveCard(2, "cus_2", "pm_1")

	if _, err := f.svc.Activate(context.Background(), ActivationRequest{PlaceID: 10, UserID: 2, MethodID: 1, CVCToken: "cvctok_1"}); err != nil {
		t.Fatal(err)
	}
	r := f.gw.lastReq
	if r.OffSession || r.CVCToken != "cvctok_1" || r.ReturnURL != stripeCfg.ReturnURL {
		t.Fatalf("unexpected charge request %+v", r)
	}
}

func TestDomiciledWithoutSavedMethod(t *testing.T) {
	f := newPaymentFixture()
	f.store.addUser(2, model.RoleNameAdvertiser)
	f.store.addPlace(10, 2, false)
	_, err := f.svc.Activate(context.Background(), ActivationRequest{PlaceID: 10, UserID: 2, MethodID: 1, Kind: model.KindDomiciled})
	if !errors.Is(err, ErrNoSavedMethodForCharge) {
		t.Fatalf("got %v", err)
	}
	if len(f.gw.calls) != 0 {
		t.Fatalf("gateway must not be called, got %v", f.gw.calls)
	}
}

func TestDomiciledForeignMethod(t *testing.T) {
	f := newPaymentFixture()
	f.store.addUser(2, model.RoleNameAdvertiser)
	f.store.addPlace(10, 2, false)
	f.saveCard(2, "cus_2", "pm_1")
	f.gw.methods["pm_1"].CustomerID = "cus_other"

	_, err := f.svc.Activate(context.Background(), ActivationRequest{PlaceID: 10, UserID: 2, MethodID: 1, Kind: model.KindDomiciled})
	if !errors.Is(err, ErrPaymentMethodInvalid) {
		t.Fatalf("got %v", err)
	}
	if f.gw.chargeCalls() != 0 {
		t.Fatal("charge endpoint must not be called")
	}
}

func TestActivateDeclineWritesNothing(t *testing.T) {
	f := newPaymentFixture()
	f.store.addUser(2, model.RoleNameAdvertiser)
	f.store.addPlace(10, 2, false)
	f.gw.chargeErr = &gateway.DeclineError{Code: gateway.CodeInsufficientFunds}

	_, err := f.svc.Activate(context.Background(), ActivationRequest{PlaceID: 10, UserID: 2, MethodID: 1, Token: "tok"})
	var pe *PaymentError
	if !errors.As(err, &pe) || pe.Code != gateway.CodeInsufficientFunds {
		t.Fatalf("got %v", err)
	}
	if len(f.store.payments) != 0 || f.store.places[10].Active {
		t.Fatal("nothing may be written after a decline")
	}
}

func TestActivateGatewayUnavailable(t *testing.T) {
	f := newPaymentFixture()
	f.store.addUser(2, model.RoleNameAdvertiser)
	f.store.addPlace(10, 2, false)
	f.gw.chargeErr = gateway.ErrUnavailable

	_, err := f.svc.Activate(context.Background(), ActivationRequest{PlaceID: 10, UserID: 2, MethodID: 1, Token: "tok"})
	var pe *PaymentError
	if !errors.As(err, &pe) || pe.Code != "gateway_unavailable" {
		t.Fatalf("got %v", err)
	}
}

func TestActivateIncompleteStatus(t *testing.T) {
	f := newPaymentFixture()
	f.store.addUser(2, model.RoleNameAdvertiser)
	f.store.addPlace(10, 2, false)
	f.gw.status = "requires_action"

	_, err := f.svc.Activate(context.Background(), ActivationRequest{PlaceID: 10, UserID: 2, MethodID: 1, Token: "tok"})
	var pe *PaymentError
	if !errors.As(err, &pe) || pe.Code != "payment_incomplete" || !errors.Is(err, ErrPaymentIncomplete) {
		t.Fatalf("got %v", err)
	}
	if len(f.store.payments) != 0 {
		t.Fatal("no entry for an incomplete charge")
	}
}

func TestActivateLocalFailureNeedsReconcile(t *testing.T) {
	f := newPaymentFixture()
	f.store.addUser(2, model.RoleNameAdvertiser)
	f.store.addPlace(10, 2, false)
	f.store.failWrite = errors.New("db down")

	_, err := f.svc.Activate(context.Background(), ActivationRequest{PlaceID: 10, UserID: 2, MethodID: 1, Token: "tok", IdempotencyKey: "k9"})
	var re *ReconcileError
	if !errors.As(err, &re) {
		t.Fatalf("want ReconcileError, got %v", err)
	}
	if re.Op != "activation" || re.ExternalID != "ch_k9" || re.AmountCents != 10000 {
		t.Fatalf("unexpected %+v", re)
	}
	if ts := f.events.types(); len(ts) != 1 || ts[0] != queue.TypeReconcileRequired {
		t.Fatalf("events %v", ts)
	}
	if f.gw.chargeCalls() != 1 {
		t.Fatal("charge must not be retried")
	}
}

func activated(t *testing.T, f *paymentFixture) *model.Payment {
	t.Helper()
	f.store.addUser(2, model.RoleNameAdvertiser)
	f.store.addPlace(10, 2, false)
	got, err := f.svc.Activate(context.Background(), ActivationRequest{PlaceID: 10, UserID: 2, MethodID: 1, Token: "tok", IdempotencyKey: "k1"})
	if err != nil {
		t.Fatal(err)
	}
	return got.Payment
}

func TestFullRefundDeactivatesPlace(t *testing.T) {
	f := newPaymentFixture()
	p := activated(t, f)
	f.store.addUser(1, model.RoleNameAdministrator)

	res, err := f.svc.Refund(context.Background(), RefundRequest{PaymentID: p.ID, Actor: model.Principal{ID: 1, Role: model.RoleAdministrator}, Reason: "duplicado"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != model.StatusRefunded || !res.PlaceDeactivated || res.Amount != 10000 {
		t.Fatalf("unexpected %+v", res)
	}
	if f.store.places[10].Active {
		t.Fatal("place must be inactive after a full refund")
	}
	_, err = f.svc.Refund(context.Background(), RefundRequest{PaymentID: p.ID, Actor: model.Principal{ID: 1, Role: model.RoleAdministrator}, Reason: "otra vez"})
	if !errors.Is(err, ErrAlreadyRefunded) {
		t.Fatalf("second refund: %v", err)
	}
}

func TestPartialRefundsAccumulate(t *testing.T) {
	f := newPaymentFixture()
	p := activated(t, f)
	owner := model.Principal{ID: 2, Role: model.RoleAdvertiser}
	ctx := context.Background()

	res, err := f.svc.Refund(ctx, RefundRequest{PaymentID: p.ID, Actor: owner, Reason: "parcial", AmountCents: i64(4000)})
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != model.StatusPartiallyRefunded || res.PlaceDeactivated || !f.store.places[10].Active {
		t.Fatalf("partial refund must keep the place active: %+v", res)
	}
	if _, err := f.svc.Refund(ctx, RefundRequest{PaymentID: p.ID, Actor: owner, Reason: "demasiado", AmountCents: i64(7000)}); err == nil {
		t.Fatal("refund above the remaining amount must fail")
	}
	res, err = f.svc.Refund(ctx, RefundRequest{PaymentID: p.ID, Actor: owner, Reason: "resto"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Amount != 6000 || res.Status != model.StatusRefunded || !res.PlaceDeactivated {
		t.Fatalf("unexpected %+v", res)
	}
	if got := *f.store.payments[p.ID].RefundedAmount; got != 10000 {
		t.Fatalf("refunded amount %v", got)
	}
}

func TestConcurrentPartialRefundsCompleteTheRefund(t *testing.T) {
	f := newPaymentFixture()
	p := activated(t, f)
	owner := model.Principal{ID: 2, Role: model.RoleAdvertiser}

	// Another request refunds 50.00 after this one read the entry.
	f.store.beforeRefundWrite = func(entry *model.Payment) {
		other := model.Amount(5000)
		entry.RefundedAmount, entry.Status = &other, model.StatusPartiallyRefunded
		f.store.beforeRefundWrite = nil
	}
	res, err := f.svc.Refund(context.Background(), RefundRequest{PaymentID: p.ID, Actor: owner, Reason: "parcial", AmountCents: i64(5000)})
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != model.StatusRefunded || !res.PlaceDeactivated {
		t.Fatalf("second half must complete the refund: %+v", res)
	}
	if f.store.places[10].Active {
		t.Fatal("place must be inactive once the charge is fully refunded")
	}
	if got := f.store.payments[p.ID].Status; got != model.StatusRefunded {
		t.Fatalf("ledger status = %s", got)
	}
}

func TestRefundAuthorization(t *testing.T) {
	f := newPaymentFixture()
	p := activated(t, f)
	f.store.addUser(3, model.RoleNameAdvertiser)
	ctx := context.Background()

	cases := []struct {
		name  string
		actor model.Principal
	}{
		{"plain user", model.Principal{ID: 2, Role: model.RoleUser}},
		{"other advertiser", model.Principal{ID: 3, Role: model.RoleAdvertiser}},
	}
	for _, tc := range cases {
		if _, err := f.svc.Refund(ctx, RefundRequest{PaymentID: p.ID, Actor: tc.actor, Reason: "x"}); !errors.Is(err, ErrForbidden) {
			t.Errorf("%s: got %v", tc.name, err)
		}
	}
	if f.gw.called("Refund") != 0 {
		t.Fatal("gateway must not be called")
	}
}

func TestRefundRequiresReasonAndGatewayID(t *testing.T) {
	f := newPaymentFixture()
	p := activated(t, f)
	admin := model.Principal{ID: 1, Role: model.RoleAdministrator}
	ctx := context.Background()

	var ve *ValidationError
	if _, err := f.svc.Refund(ctx, RefundRequest{PaymentID: p.ID, Actor: admin, Reason: "  "}); !errors.As(err, &ve) {
		t.Fatalf("blank reason: %v", err)
	}
	f.store.payments[p.ID].ExternalID = nil
	if _, err := f.svc.Refund(ctx, RefundRequest{PaymentID: p.ID, Actor: admin, Reason: "x"}); !errors.Is(err, ErrNotGatewayPayment) {
		t.Fatalf("no external id: %v", err)
	}
	if _, err := f.svc.Refund(ctx, RefundRequest{PaymentID: 999, Actor: admin, Reason: "x"}); !errors.Is(err, ErrPaymentNotFound) {
		t.Fatalf("missing entry: %v", err)
	}
}

func TestRefundLocalFailureNeedsReconcile(t *testing.T) {
	f := newPaymentFixture()
	p := activated(t, f)
	f.store.failWrite = errors.New("deadlock")

	_, err := f.svc.Refund(context.Background(), RefundRequest{PaymentID: p.ID, Actor: model.Principal{ID: 1, Role: model.RoleAdministrator}, Reason: "x"})
	var re *ReconcileError
	if !errors.As(err, &re) || re.Op != "refund" {
		t.Fatalf("got %v", err)
	}
}

func TestVerifyKeepsLocalRefund(t *testing.T) {
	f := newPaymentFixture()
	p := activated(t, f)
	f.store.payments[p.ID].Status = model.StatusRefunded

	v, err := f.svc.Verify(context.Background(), model.Principal{ID: 2, Role: model.RoleAdvertiser}, p.ExternalRef())
	if err != nil {
		t.Fatal(err)
	}
	if v.GatewayStatus != "succeeded" || v.Payment.Status != model.StatusRefunded {
		t.Fatalf("unexpected %+v", v)
	}
}

func TestVerifyUpdatesStatus(t *testing.T) {
	f := newPaymentFixture()
	p := activated(t, f)
	f.gw.charges[p.ExternalRef()].Status = "canceled"

	v, err := f.svc.Verify(context.Background(), model.Principal{ID: 1, Role: model.RoleAdministrator}, p.ExternalRef())
	if err != nil {
		t.Fatal(err)
	}
	if v.Payment.Status != "canceled" || f.store.payments[p.ID].Status != "canceled" {
		t.Fatalf("status not updated: %+v", v.Payment)
	}
	if v.Amount != 10000 || v.Currency != "mxn" {
		t.Fatalf("unexpected %+v", v)
	}
}

func TestVerifyForbiddenForStranger(t *testing.T) {
	f := newPaymentFixture()
	p := activated(t, f)
	_, err := f.svc.Verify(context.Background(), model.Principal{ID: 50, Role: model.RoleUser}, p.ExternalRef())
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("got %v", err)
	}
}
