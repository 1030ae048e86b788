package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/directorio-lugares/internal/handler"
)

// RegisterPayments registers the activation, refund and saved card
// endpoints behind authentication and the payment rate limit bucket.
func RegisterPayments(e *echo.Echo, p *handler.PaymentHandler, g guards) {
	pg := e.Group("/pago", g.auth, g.payments)
	pg.POST("/setup-intent", p.SetupIntent)
	pg.POST("/guardar-metodo", p.SaveMethod)
	pg.GET("/tarjeta-guardada", p.SavedCard)
	pg.DELETE("/tarjeta-guardada", p.DeleteCard)

	pg.POST("/pagar", p.Pay)
	pg.POST("/domiciliado", p.Domiciled)
	pg.POST("/reembolsar/:id", p.Refund, g.advertiser)
	pg.POST("/verificar-pago/:payment_intent_id", p.Verify)

	pg.GET("/mis-pagos", p.Mine)
	pg.GET("/:id", p.Show)
}
