package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/directorio-lugares/internal/handler"
)

func newTestServer() *echo.Echo {
	h := Handlers{
		Auth:     &handler.AuthHandler{},
		Place:    &handler.PlaceHandler{},
		Category: &handler.CategoryHandler{},
		Comment:  &handler.CommentHandler{},
		Favorite: &handler.FavoriteHandler{},
		Payment:  &handler.PaymentHandler{},
		Admin:    &handler.AdminHandler{},
		Stats:    &handler.StatsHandler{},
	}
	return New(nil, h, Deps{JWTSecret: "test-secret", Log: zap.NewNop()})
}

func TestRoutesRegistered(t *testing.T) {
	e := newTestServer()

	got := map[string]bool{}
	for _, r := range e.Routes() {
		got[r.Method+" "+r.Path] = true
	}
	want := []string{
		"GET /healthz",
		"POST /user/register",
		"POST /user/login",
		"POST /user/refresh",
		"POST /user/refresh-access",
		"POST /logout",
		"GET /perfil",
		"GET /lugar",
		"GET /lugar/:id",
		"GET /lugar/:id/imagenes",
		"POST /lugar/:id/imagenes",
		"GET /categoria/:id/lugares",
		"GET /metodos-pago",
		"POST /estadisticas-visitas",
		"POST /comentarios",
		"POST /favoritos/toggle",
		"POST /pago/setup-intent",
		"POST /pago/guardar-metodo",
		"GET /pago/tarjeta-guardada",
		"DELETE /pago/tarjeta-guardada",
		"POST /pago/pagar",
		"POST /pago/domiciliado",
		"POST /pago/reembolsar/:id",
		"POST /pago/verificar-pago/:payment_intent_id",
		"GET /pago/mis-pagos",
		"POST /admin/usuarios/:id/bloquear",
		"POST /admin/usuarios/:id/desbloquear",
		"POST /admin/usuarios/:id/toggle",
		"PATCH /admin/lugares/:id/toggle",
		"POST /admin/lugares/:id/bloquear",
		"POST /admin/lugares/:id/desbloquear",
		"DELETE /admin/estadisticas-visitas/limpiar",
		"POST /categoria_lugar",
	}
	for _, w := range want {
		if !got[w] {
			t.Errorf("route %q not registered", w)
		}
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	srv := newTestServer()
	cases := []struct {
		method, path string
		status       int
	}{
		{http.MethodGet, "/healthz", http.StatusServiceUnavailable},
		{http.MethodPost, "/pago/pagar", http.StatusUnauthorized},
		{http.MethodPost, "/pago/reembolsar/1", http.StatusUnauthorized},
		{http.MethodPost, "/admin/usuarios/2/bloquear", http.StatusUnauthorized},
		{http.MethodPatch, "/admin/lugares/2/toggle", http.StatusUnauthorized},
		{http.MethodGet, "/perfil", http.StatusUnauthorized},
		{http.MethodGet, "/no-existe", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d", rec.Code, tc.status)
			}
		})
	}
}
