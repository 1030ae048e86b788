package middleware // middleware contains reusable HTTP middleware for the API

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/directorio-lugares/internal/model"
	"github.com/iliyamo/directorio-lugares/internal/repository"
)

// Context keys set by the auth middleware.
const (
	principalKey = "principal"
	userIDKey    = "user_id"
)

// SessionResolver loads the account behind a token on every request, so a
// block or a session revocation takes effect before the token expires.
type SessionResolver interface {
	GetByID(ctx context.Context, id uint64) (*model.User, error)
}

// tokenClaims is what JWTAuth needs from a parsed access token.
type tokenClaims struct {
	userID   uint64
	issuedAt time.Time
}

// parseAccessToken validates an HS256 token signed with secret and returns
// its subject and issue time.
func parseAccessToken(secret, raw string) (tokenClaims, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		// Reject anything that is not HMAC before handing out the key.
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, echo.ErrUnauthorized
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tok.Valid {
		return tokenClaims{}, errors.New("invalid token")
	}
	sub, err := tok.Claims.GetSubject()
	if err != nil {
		return tokenClaims{}, err
	}
	id, err := strconv.ParseUint(sub, 10, 64)
	if err != nil {
		return tokenClaims{}, err
	}
	// GetIssuedAt rounds to jwt.TimePrecision; read the raw claim instead.
	mc, _ := tok.Claims.(jwt.MapClaims)
	iat, ok := mc["iat"].(float64)
	if !ok {
		return tokenClaims{}, errors.New("missing iat")
	}
	return tokenClaims{userID: id, issuedAt: time.UnixMilli(int64(math.Round(iat * 1000)))}, nil
}

func bearer(c echo.Context) (string, bool) {
	auth := c.Request().Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return "", false
	}
	return strings.TrimPrefix(auth, "Bearer "), true
}

func deny(c echo.Context, status int, msg string) error {
	return c.JSON(status, echo.Map{"estatus": false, "mensaje": msg})
}

// JWTAuth returns an Echo middleware that validates a Bearer access token,
// loads its user and stores a model.Principal in the context. Blocked users
// get 403; inactive users, unknown users and tokens issued at or before the
// user's last session revocation get 401.
func JWTAuth(secret string, users SessionResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearer(c)
			if !ok {
				return deny(c, http.StatusUnauthorized, "Token de acceso requerido.")
			}
			claims, err := parseAccessToken(secret, raw)
			if err != nil {
				return deny(c, http.StatusUnauthorized, "Token inválido o expirado.")
			}

			ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
			defer cancel()
			u, err := users.GetByID(ctx, claims.userID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return deny(c, http.StatusUnauthorized, "Usuario no encontrado.")
				}
				return deny(c, http.StatusInternalServerError, "Error interno del servidor.")
			}
			if u.Blocked {
				return deny(c, http.StatusForbidden, "Tu cuenta ha sido bloqueada.")
			}
			if !u.Active {
				return deny(c, http.StatusUnauthorized, "Cuenta inactiva.")
			}
			// iat and sesiones_revocadas_en both carry milliseconds.
			if u.SessionsRevokedAt != nil && !claims.issuedAt.After(*u.SessionsRevokedAt) {
				return deny(c, http.StatusUnauthorized, "Sesión revocada, inicia sesión de nuevo.")
			}

			setPrincipal(c, model.Principal{ID: u.ID, Role: u.Role()})
			return next(c)
		}
	}
}

// OptionalJWT attaches a principal when a valid token is present and lets
// anonymous requests through. It trusts the token claims without a lookup,
// so it is only used where the identity is informational (visit tracking).
func OptionalJWT(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if raw, ok := bearer(c); ok {
				if claims, err := parseAccessToken(secret, raw); err == nil {
					setPrincipal(c, model.Principal{ID: claims.userID})
				}
			}
			return next(c)
		}
	}
}

func setPrincipal(c echo.Context, p model.Principal) {
	c.Set(principalKey, p)
	c.Set(userIDKey, strconv.FormatUint(p.ID, 10))
}
