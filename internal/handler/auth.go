package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/directorio-lugares/internal/config"
	"github.com/iliyamo/directorio-lugares/internal/model"
	"github.com/iliyamo/directorio-lugares/internal/repository"
	"github.com/iliyamo/directorio-lugares/internal/utils"
)

// AuthHandler bundles dependencies for account and session endpoints.
type AuthHandler struct {
	Cfg    config.Config
	Users  *repository.UserRepo
	Tokens *repository.TokenRepo
	Log    *zap.Logger
}

func NewAuthHandler(cfg config.Config, u *repository.UserRepo, t *repository.TokenRepo, log *zap.Logger) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u, Tokens: t, Log: log}
}

// ----- DTOs -----

type registerReq struct {
	Name            string `json:"nombre" validate:"required,max=50"`
	PaternalSurname string `json:"apellidoP" validate:"required,max=50"`
	MaternalSurname string `json:"apellidoM" validate:"max=50"`
	Email           string `json:"correo" validate:"required,email,max=100"`
	Password        string `json:"password" validate:"required,min=6,max=72"`
	Role            string `json:"rol" validate:"omitempty,oneof=usuario anunciante"`
}

type loginReq struct {
	Email    string `json:"correo" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type authResp struct {
	User    *model.User `json:"usuario"`
	Access  tokenPart   `json:"access"`
	Refresh tokenPart   `json:"refresh"`
}

// issue creates an access/refresh pair and stores the refresh hash.
func (h *AuthHandler) issue(c echo.Context, u *model.User) (authResp, error) {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role().String(), h.Cfg.AccessTTLMin)
	if err != nil {
		return authResp{}, err
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return authResp{}, err
	}
	ctx, cancel := dbContext(c)
	defer cancel()
	if err := h.Tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return authResp{}, err
	}
	return authResp{
		User:    u,
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp}, // raw back to client
	}, nil
}

// Register creates a regular or advertiser account and logs it in.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if valid, err := bindAndValidate(c, &req); !valid {
		return err
	}
	role := req.Role
	if role == "" {
		role = model.RoleNameUser
	}

	ctx, cancel := dbContext(c)
	defer cancel()
	uid, err := h.Users.Create(ctx, repository.NewUser{
		Name:            strings.TrimSpace(req.Name),
		PaternalSurname: strings.TrimSpace(req.PaternalSurname),
		MaternalSurname: strings.TrimSpace(req.MaternalSurname),
		Email:           req.Email,
		Password:        req.Password,
		RoleName:        role,
	}, h.Cfg.BcryptCost)
	if err != nil {
		return writeServiceError(c, h.Log, err)
	}
	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return writeServiceError(c, h.Log, err)
	}
	resp, err := h.issue(c, u)
	if err != nil {
		return writeServiceError(c, h.Log, err)
	}
	return success(c, http.StatusCreated, "Usuario registrado con éxito", echo.Map{"data": resp})
}

// Login verifies the password and returns a new token pair. Blocked and
// inactive accounts are refused even with the right password.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if valid, err := bindAndValidate(c, &req); !valid {
		return err
	}

	ctx, cancel := dbContext(c)
	defer cancel()
	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			utils.VerifyPassword("", req.Password)
			return fail(c, http.StatusUnauthorized, "Credenciales inválidas.")
		}
		return writeServiceError(c, h.Log, err)
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return fail(c, http.StatusUnauthorized, "Credenciales inválidas.")
	}
	if u.Blocked {
		return fail(c, http.StatusForbidden, "Tu cuenta ha sido bloqueada.")
	}
	if !u.Active {
		return fail(c, http.StatusUnauthorized, "Cuenta inactiva.")
	}
	now := time.Now().UTC()
	if err := h.Users.TouchLogin(ctx, u.ID, now); err != nil {
		h.Log.Warn("touch login failed", zap.Uint64("id_usuario", u.ID), zap.Error(err))
	}
	u.LastLoginAt = &now

	resp, err := h.issue(c, u)
	if err != nil {
		return writeServiceError(c, h.Log, err)
	}
	return success(c, http.StatusOK, "Inicio de sesión exitoso", echo.Map{"data": resp})
}

// refreshOwner validates a raw refresh token and loads a usable owner.
func (h *AuthHandler) refreshOwner(c echo.Context, raw string) (*model.User, string, error) {
	hash := utils.HashRefreshRaw(raw)
	ctx, cancel := dbContext(c)
	defer cancel()
	userID, err := h.Tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		return nil, hash, err
	}
	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, hash, err
	}
	if !u.Usable() {
		return nil, hash, repository.ErrForbidden
	}
	return u, hash, nil
}

func (h *AuthHandler) refreshFailed(c echo.Context, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return fail(c, http.StatusUnauthorized, "Refresh token inválido.")
	case errors.Is(err, repository.ErrForbidden):
		return fail(c, http.StatusForbidden, "Tu cuenta no puede iniciar sesión.")
	}
	return writeServiceError(c, h.Log, err)
}

// Refresh rotates the refresh token and issues a new pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return fail(c, http.StatusBadRequest, "refresh_token es obligatorio.")
	}
	u, hash, err := h.refreshOwner(c, strings.TrimSpace(req.RefreshToken))
	if err != nil {
		return h.refreshFailed(c, err)
	}
	ctx, cancel := dbContext(c)
	defer cancel()
	if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
		return writeServiceError(c, h.Log, err)
	}
	resp, err := h.issue(c, u)
	if err != nil {
		return writeServiceError(c, h.Log, err)
	}
	return success(c, http.StatusOK, "Sesión renovada", echo.Map{"data": resp})
}

// RefreshAccess returns a new access token without rotating the refresh token.
func (h *AuthHandler) RefreshAccess(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return fail(c, http.StatusBadRequest, "refresh_token es obligatorio.")
	}
	u, _, err := h.refreshOwner(c, strings.TrimSpace(req.RefreshToken))
	if err != nil {
		return h.refreshFailed(c, err)
	}
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role().String(), h.Cfg.AccessTTLMin)
	if err != nil {
		return writeServiceError(c, h.Log, err)
	}
	return success(c, http.StatusOK, "Token renovado", echo.Map{
		"access": tokenPart{Token: access.Token, Expires: access.Exp},
	})
}

// Logout revokes the refresh token in the body, or every session of the
// bearer when no refresh token is sent.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	_ = c.Bind(&req)
	raw := strings.TrimSpace(req.RefreshToken)

	ctx, cancel := dbContext(c)
	defer cancel()
	if raw != "" {
		hash := utils.HashRefreshRaw(raw)
		if _, err := h.Tokens.ValidateRefresh(ctx, hash); err != nil {
			return h.refreshFailed(c, err)
		}
		if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
			return writeServiceError(c, h.Log, err)
		}
		return success(c, http.StatusOK, "Sesión cerrada", nil)
	}
	if p, found := caller(c); found {
		if err := h.Tokens.RevokeAllForUser(ctx, p.ID); err != nil {
			return writeServiceError(c, h.Log, err)
		}
		return success(c, http.StatusOK, "Todas las sesiones cerradas", nil)
	}
	return fail(c, http.StatusBadRequest, "Envía el header Authorization o refresh_token.")
}

// Profile returns the authenticated user.
func (h *AuthHandler) Profile(c echo.Context) error {
	p, found := caller(c)
	if !found {
		return unauthorized(c)
	}
	ctx, cancel := dbContext(c)
	defer cancel()
	u, err := h.Users.GetByID(ctx, p.ID)
	if err != nil {
		return writeServiceError(c, h.Log, err)
	}
	return success(c, http.StatusOK, "Perfil", echo.Map{"data": u})
}
