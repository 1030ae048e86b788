package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/directorio-lugares/internal/gateway"
	"github.com/iliyamo/directorio-lugares/internal/model"
	"github.com/iliyamo/directorio-lugares/internal/repository"
	"github.com/iliyamo/directorio-lugares/internal/service"
)

type fakePayments struct {
	activate func(service.ActivationRequest) (*service.Activation, error)
	refund   func(service.RefundRequest) (*service.RefundResult, error)
}

func (f *fakePayments) Activate(_ context.Context, req service.ActivationRequest) (*service.Activation, error) {
	return f.activate(req)
}

func (f *fakePayments) Refund(_ context.Context, req service.RefundRequest) (*service.RefundResult, error) {
	return f.refund(req)
}

func (f *fakePayments) Verify(context.Context, model.Principal, string) (*service.Verification, error) {
	return nil, repository.ErrNotFound
}

func (f *fakePayments) ListMine(context.Context, uint64) ([]model.Payment, error) {
	return []model.Payment{}, nil
}

func (f *fakePayments) Get(context.Context, model.Principal, uint64) (*model.Payment, error) {
	return nil, repository.ErrNotFound
}

type fakeCards struct{}

func (fakeCards) RegisterSetupIntent(context.Context, uint64) (*service.SetupResult, error) {
	return nil, service.ErrUserNotFound
}

func (fakeCards) AttachPaymentMethod(context.Context, uint64, string, string) (*gateway.Card, error) {
	return nil, service.ErrCustomerMismatch
}

func (fakeCards) SavedCard(context.Context, uint64) (*gateway.Card, error) {
	return nil, service.ErrNoSavedMethod
}

func (fakeCards) DetachPaymentMethod(context.Context, uint64) error { return nil }

type fakeModeration struct {
	err   error
	user  *model.User
	place *model.Place
}

func (f *fakeModeration) BlockUser(context.Context, model.Principal, uint64, string) (*model.User, error) {
	return f.user, f.err
}

func (f *fakeModeration) UnblockUser(context.Context, model.Principal, uint64) (*model.User, error) {
	return f.user, f.err
}

func (f *fakeModeration) ToggleUser(context.Context, model.Principal, uint64, string) (*model.User, error) {
	return f.user, f.err
}

func (f *fakeModeration) BlockPlace(context.Context, model.Principal, uint64, string) (*model.Place, error) {
	return f.place, f.err
}

func (f *fakeModeration) UnblockPlace(context.Context, model.Principal, uint64) (*model.Place, error) {
	return f.place, f.err
}

func (f *fakeModeration) TogglePlace(context.Context, model.Principal, uint64, string) (*model.Place, error) {
	return f.place, f.err
}

// request builds a context for method/target with an optional JSON body,
// authenticated as p when p.ID is non-zero.
func request(method, target, body string, p model.Principal) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = NewValidator()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if p.ID != 0 {
		c.Set("principal", p)
	}
	return c, rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestWriteServiceError(t *testing.T) {
	cases := []struct {
		err    error
		status int
		codigo string
	}{
		{&service.ValidationError{Field: "monto", Message: "Monto inválido."}, http.StatusUnprocessableEntity, ""},
		{&service.ReconcileError{Op: "activation", ExternalID: "pi_1", Err: errors.New("db down")}, http.StatusInternalServerError, "reconcile_required"},
		{&service.PaymentError{Err: errors.New("declined"), Code: "card_declined"}, http.StatusPaymentRequired, "card_declined"},
		{&service.PaymentError{Err: errors.New("timeout"), Code: "gateway_unavailable"}, http.StatusServiceUnavailable, "gateway_unavailable"},
		{&service.PaymentError{Err: errors.New("3ds"), Code: "payment_incomplete"}, http.StatusBadRequest, "payment_incomplete"},
		{service.ErrForbidden, http.StatusForbidden, ""},
		{fmt.Errorf("owner: %w", repository.ErrForbidden), http.StatusForbidden, ""},
		{service.ErrAlreadyActivated, http.StatusBadRequest, ""},
		{service.ErrNotGatewayPayment, http.StatusBadRequest, ""},
		{service.ErrAlreadyRefunded, http.StatusConflict, ""},
		{service.ErrNoSavedMethod, http.StatusNotFound, ""},
		{service.ErrNoSavedMethodForCharge, http.StatusUnprocessableEntity, ""},
		{repository.ErrEmailExists, http.StatusConflict, ""},
		{repository.ErrConflict, http.StatusConflict, ""},
		{repository.ErrNotFound, http.StatusNotFound, ""},
		{service.ErrPlaceNotFound, http.StatusNotFound, ""},
		{service.ErrPeerAdmin, http.StatusUnprocessableEntity, ""},
		{service.ErrAlreadyBlocked, http.StatusUnprocessableEntity, ""},
		{context.DeadlineExceeded, http.StatusGatewayTimeout, ""},
		{errors.New("boom"), http.StatusInternalServerError, ""},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			c, rec := request(http.MethodGet, "/", "", model.Principal{})
			if err := writeServiceError(c, zap.NewNop(), tc.err); err != nil {
				t.Fatal(err)
			}
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d", rec.Code, tc.status)
			}
			body := decode(t, rec)
			if body["estatus"] != false {
				t.Fatalf("estatus = %v", body["estatus"])
			}
			if tc.codigo != "" && body["codigo"] != tc.codigo {
				t.Fatalf("codigo = %v, want %s", body["codigo"], tc.codigo)
			}
		})
	}
}

func TestValidationErrorsUseJSONNames(t *testing.T) {
	h := NewPaymentHandler(&fakePayments{}, fakeCards{}, zap.NewNop())
	c, rec := request(http.MethodPost, "/pago", `{"id_lugar":0}`, model.Principal{ID: 3, Role: model.RoleAdvertiser})
	if err := h.Pay(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", rec.Code)
	}
	errs, _ := decode(t, rec)["errores"].(map[string]any)
	if _, found := errs["id_lugar"]; !found {
		t.Fatalf("errores = %v, want id_lugar", errs)
	}
	if _, found := errs["id_metodo_pago"]; !found {
		t.Fatalf("errores = %v, want id_metodo_pago", errs)
	}
}

func TestPayActivates(t *testing.T) {
	var got service.ActivationRequest
	fp := &fakePayments{activate: func(req service.ActivationRequest) (*service.Activation, error) {
		got = req
		return &service.Activation{
			Place:   &model.Place{ID: req.PlaceID, Active: true},
			Payment: &model.Payment{ID: 11, PlaceID: req.PlaceID, Amount: 15050},
		}, nil
	}}
	h := NewPaymentHandler(fp, fakeCards{}, zap.NewNop())
	c, rec := request(http.MethodPost, "/pago",
		`{"id_lugar":4,"id_metodo_pago":1,"stripeToken":" tok_visa ","monto":150.5}`,
		model.Principal{ID: 3, Role: model.RoleAdvertiser})
	c.Request().Header.Set("Idempotency-Key", "abc")

	if err := h.Pay(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body.String())
	}
	if got.UserID != 3 || got.Kind != model.KindManual || got.Token != "tok_visa" || got.IdempotencyKey != "abc" {
		t.Fatalf("unexpected request %+v", got)
	}
	if got.AmountCents == nil || *got.AmountCents != 15050 {
		t.Fatalf("amount = %v, want 15050", got.AmountCents)
	}
	body := decode(t, rec)
	if body["estatus"] != true || body["lugar"] == nil || body["pago"] == nil {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestPayRequiresPrincipal(t *testing.T) {
	h := NewPaymentHandler(&fakePayments{}, fakeCards{}, zap.NewNop())
	c, rec := request(http.MethodPost, "/pago", `{"id_lugar":4,"id_metodo_pago":1}`, model.Principal{})
	if err := h.Pay(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestDomiciledWithoutSavedCard(t *testing.T) {
	fp := &fakePayments{activate: func(req service.ActivationRequest) (*service.Activation, error) {
		if req.Kind != model.KindDomiciled {
			t.Errorf("kind = %s", req.Kind)
		}
		return nil, service.ErrNoSavedMethodForCharge
	}}
	h := NewPaymentHandler(fp, fakeCards{}, zap.NewNop())
	c, rec := request(http.MethodPost, "/pago/domiciliado", `{"id_lugar":4,"id_metodo_pago":1}`,
		model.Principal{ID: 3, Role: model.RoleAdvertiser})
	if err := h.Domiciled(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
}

func TestRefundBadID(t *testing.T) {
	h := NewPaymentHandler(&fakePayments{}, fakeCards{}, zap.NewNop())
	c, rec := request(http.MethodPost, "/pago/x/reembolso", `{"motivo":"x"}`, model.Principal{ID: 1, Role: model.RoleAdministrator})
	c.SetParamNames("id")
	c.SetParamValues("x")
	if err := h.Refund(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestSavedCardMissing(t *testing.T) {
	h := NewPaymentHandler(&fakePayments{}, fakeCards{}, zap.NewNop())
	c, rec := request(http.MethodGet, "/pago/tarjeta", "", model.Principal{ID: 3, Role: model.RoleAdvertiser})
	if err := h.SavedCard(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestAdminModeration(t *testing.T) {
	admin := model.Principal{ID: 1, Role: model.RoleAdministrator}
	t.Run("peer admin", func(t *testing.T) {
		h := NewAdminHandler(&fakeModeration{err: service.ErrPeerAdmin}, nil, nil, zap.NewNop())
		c, rec := request(http.MethodPatch, "/admin/usuario/2/bloquear", "", admin)
		c.SetParamNames("id")
		c.SetParamValues("2")
		if err := h.BlockUser(c); err != nil {
			t.Fatal(err)
		}
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("status = %d, want 422", rec.Code)
		}
	})
	t.Run("toggle reports new state", func(t *testing.T) {
		h := NewAdminHandler(&fakeModeration{place: &model.Place{ID: 5, BlockState: model.BlockState{Blocked: true}}}, nil, nil, zap.NewNop())
		c, rec := request(http.MethodPatch, "/admin/lugar/5/toggle", `{"motivo":"contenido falso"}`, admin)
		c.SetParamNames("id")
		c.SetParamValues("5")
		if err := h.TogglePlace(c); err != nil {
			t.Fatal(err)
		}
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if msg := decode(t, rec)["mensaje"]; msg != "Lugar bloqueado" {
			t.Fatalf("mensaje = %v", msg)
		}
	})
	t.Run("reason too long", func(t *testing.T) {
		h := NewAdminHandler(&fakeModeration{}, nil, nil, zap.NewNop())
		body := fmt.Sprintf(`{"motivo":%q}`, strings.Repeat("a", 501))
		c, rec := request(http.MethodPatch, "/admin/usuario/2/bloquear", body, admin)
		c.SetParamNames("id")
		c.SetParamValues("2")
		if err := h.BlockUser(c); err != nil {
			t.Fatal(err)
		}
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("status = %d, want 422", rec.Code)
		}
	})
}

func TestPageParams(t *testing.T) {
	c, _ := request(http.MethodGet, "/lugares?page=2&rows=500", "", model.Principal{})
	limit, offset, page := pageParams(c)
	if limit != 10 || offset != 20 || page != 2 {
		t.Fatalf("got limit=%d offset=%d page=%d", limit, offset, page)
	}
}
