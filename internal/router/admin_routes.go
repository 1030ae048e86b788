package router

import (
	"github.com/labstack/echo/v4"
)

// RegisterAdmin registers moderation, reporting and catalog endpoints for
// administrators.
func RegisterAdmin(e *echo.Echo, h Handlers, g guards) {
	a := e.Group("/admin", g.auth, g.admin)

	a.POST("/usuarios/:id/bloquear", h.Admin.BlockUser)
	a.POST("/usuarios/:id/desbloquear", h.Admin.UnblockUser)
	a.POST("/usuarios/:id/toggle", h.Admin.ToggleUser)

	a.GET("/lugares", h.Admin.ListPlaces)
	a.PATCH("/lugares/:id/toggle", h.Admin.TogglePlace)
	a.POST("/lugares/:id/bloquear", h.Admin.BlockPlace)
	a.POST("/lugares/:id/desbloquear", h.Admin.UnblockPlace)

	a.GET("/estadisticas", h.Admin.UserStats)
	a.GET("/estadisticas/lugares", h.Admin.PlaceStats)
	a.GET("/estadisticas-visitas/resumen", h.Admin.VisitOverview)
	a.DELETE("/estadisticas-visitas/limpiar", h.Admin.PurgeVisits)

	e.POST("/categoria_lugar", h.Category.Create, g.auth, g.admin)
}
