package router

import (
	"github.com/labstack/echo/v4"
)

// RegisterMember registers endpoints for signed-in users: place
// management for advertisers, comments, favorites and advertiser stats.
func RegisterMember(e *echo.Echo, h Handlers, g guards) {
	e.POST("/lugar", h.Place.Create, g.auth, g.advertiser)
	e.PUT("/lugar/:id", h.Place.Update, g.auth, g.advertiser)
	e.DELETE("/lugar/:id", h.Place.Delete, g.auth, g.advertiser)
	e.POST("/lugar/:id/imagenes", h.Place.UploadImage, g.auth, g.advertiser)
	e.GET("/mis-lugares", h.Place.Mine, g.auth, g.advertiser)

	c := e.Group("/comentarios", g.auth)
	c.POST("", h.Comment.Create)
	c.PUT("/:id", h.Comment.Update)
	c.DELETE("/:id", h.Comment.Delete)

	f := e.Group("/favoritos", g.auth)
	f.GET("", h.Favorite.List)
	f.POST("", h.Favorite.Add)
	f.DELETE("/:id_lugar", h.Favorite.Remove)
	f.GET("/check/:id_lugar", h.Favorite.Check)
	f.POST("/toggle", h.Favorite.Toggle)
	f.GET("/stats", h.Favorite.Stats)

	e.GET("/estadisticas/anunciante/:id", h.Stats.AdvertiserSummary, g.auth)
}
