package router // router wires handlers and middleware onto the Echo instance

import (
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/directorio-lugares/internal/config"
	"github.com/iliyamo/directorio-lugares/internal/handler"
	"github.com/iliyamo/directorio-lugares/internal/middleware"
)

// Handlers groups every HTTP handler of the API.
type Handlers struct {
	Auth     *handler.AuthHandler
	Place    *handler.PlaceHandler
	Category *handler.CategoryHandler
	Comment  *handler.CommentHandler
	Favorite *handler.FavoriteHandler
	Payment  *handler.PaymentHandler
	Admin    *handler.AdminHandler
	Stats    *handler.StatsHandler
}

// Deps carries what the middleware chain needs.
type Deps struct {
	JWTSecret        string
	Sessions         middleware.SessionResolver
	Redis            *redis.Client // nil disables rate limiting and caching
	RateLimit        config.RateLimitConfig
	PaymentRateLimit config.RateLimitConfig
	Cache            config.CacheConfig
	Log              *zap.Logger
}

// guards are the per-route middleware sets shared by the Register* functions.
type guards struct {
	auth       echo.MiddlewareFunc
	optional   echo.MiddlewareFunc
	advertiser echo.MiddlewareFunc
	admin      echo.MiddlewareFunc
	payments   echo.MiddlewareFunc
	cache      echo.MiddlewareFunc
}

func newGuards(d Deps) guards {
	return guards{
		auth:       middleware.JWTAuth(d.JWTSecret, d.Sessions),
		optional:   middleware.OptionalJWT(d.JWTSecret),
		advertiser: middleware.RequireAdvertiser(),
		admin:      middleware.RequireAdmin(),
		payments:   middleware.NewTokenBucket(d.PaymentRateLimit, d.Redis, d.Log),
		cache:      middleware.NewRedisCache(d.Cache, d.Redis),
	}
}

// New builds the Echo instance with the global middleware and every route.
func New(db *sqlx.DB, h Handlers, d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()

	e.Use(echomw.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLogger(d.Log))
	e.Use(echomw.BodyLimit("8M"))
	e.Use(middleware.NewTokenBucket(d.RateLimit, d.Redis, d.Log))

	g := newGuards(d)
	RegisterRoutes(e, db)
	RegisterAuth(e, h.Auth, g)
	RegisterPublic(e, h, g)
	RegisterMember(e, h, g)
	RegisterPayments(e, h.Payment, g)
	RegisterAdmin(e, h, g)
	return e
}

// RegisterRoutes exposes the health check.
func RegisterRoutes(e *echo.Echo, db *sqlx.DB) {
	e.GET("/healthz", handler.Health(db))
}

// RegisterAuth registers account and session endpoints. Login shares the
// stricter payment bucket to slow down password guessing.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, g guards) {
	u := e.Group("/user")
	u.POST("/register", a.Register)
	u.POST("/login", a.Login, g.payments)
	u.POST("/refresh", a.Refresh)
	u.POST("/refresh-access", a.RefreshAccess)

	// Without a refresh token in the body, the bearer's sessions are all revoked.
	e.POST("/logout", a.Logout, g.optional)
	e.GET("/perfil", a.Profile, g.auth)
}

// RegisterPublic registers read endpoints open to guests. Only reference
// data goes through the response cache.
func RegisterPublic(e *echo.Echo, h Handlers, g guards) {
	e.GET("/lugar", h.Place.List)
	e.GET("/lugar/:id", h.Place.Show)
	e.GET("/lugar/:id/imagenes", h.Place.ListImages)
	e.GET("/lugar/:id/comentarios", h.Comment.ListByPlace)
	e.GET("/lugar/:id/estadisticas", h.Comment.Stats)

	e.GET("/categorias", h.Category.List, g.cache)
	e.GET("/categoria/:id", h.Category.Show, g.cache)
	e.GET("/categoria/:id/lugares", h.Category.ListPlaces)
	e.GET("/metodos-pago", h.Category.PaymentMethods, g.cache)

	e.POST("/estadisticas-visitas", h.Stats.RecordVisit, g.optional)
	e.GET("/estadisticas-visitas/lugar/:id", h.Stats.PlaceSummary)
	e.GET("/estadisticas-visitas/lugares-populares", h.Stats.Popular, g.cache)
}
