package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/directorio-lugares/internal/model"
	"github.com/iliyamo/directorio-lugares/internal/repository"
	"github.com/iliyamo/directorio-lugares/internal/service"
)

// Moderation is what the admin endpoints need from service.ModerationService.
type Moderation interface {
	BlockUser(ctx context.Context, actor model.Principal, targetID uint64, reason string) (*model.User, error)
	UnblockUser(ctx context.Context, actor model.Principal, targetID uint64) (*model.User, error)
	ToggleUser(ctx context.Context, actor model.Principal, targetID uint64, reason string) (*model.User, error)
	BlockPlace(ctx context.Context, actor model.Principal, placeID uint64, reason string) (*model.Place, error)
	UnblockPlace(ctx context.Context, actor model.Principal, placeID uint64) (*model.Place, error)
	TogglePlace(ctx context.Context, actor model.Principal, placeID uint64, reason string) (*model.Place, error)
}

type AdminHandler struct {
	Moderation Moderation
	Stats      *service.StatsService
	Places     *repository.PlaceRepo
	Log        *zap.Logger
}

func NewAdminHandler(m Moderation, st *service.StatsService, p *repository.PlaceRepo, log *zap.Logger) *AdminHandler {
	return &AdminHandler{Moderation: m, Stats: st, Places: p, Log: log}
}

type blockReq struct {
	Reason string `json:"motivo" validate:"max=500"`
}

// blockReasonFrom reads the optional motivo. An empty body is accepted.
func blockReasonFrom(c echo.Context) (string, bool, error) {
	var req blockReq
	if c.Request().ContentLength == 0 {
		return "", true, nil
	}
	if valid, err := bindAndValidate(c, &req); !valid {
		return "", false, err
	}
	return req.Reason, true, nil
}

type userAction func(ctx context.Context, actor model.Principal, id uint64, reason string) (*model.User, error)
type placeAction func(ctx context.Context, actor model.Principal, id uint64, reason string) (*model.Place, error)

func (h *AdminHandler) moderateUser(c echo.Context, act userAction, msg string) error {
	p, found := caller(c)
	if !found {
		return unauthorized(c)
	}
	id, valid := paramID(c, "id")
	if !valid {
		return fail(c, http.StatusBadRequest, "ID inválido.")
	}
	reason, valid, err := blockReasonFrom(c)
	if !valid {
		return err
	}
	ctx, cancel := dbContext(c)
	defer cancel()
	u, err := act(ctx, p, id, reason)
	if err != nil {
		return writeServiceError(c, h.Log, err)
	}
	if msg == "" {
		msg = "Usuario desbloqueado"
		if u.Blocked {
			msg = "Usuario bloqueado"
		}
	}
	return success(c, http.StatusOK, msg, echo.Map{"data": u})
}

func (h *AdminHandler) moderatePlace(c echo.Context, act placeAction, msg string) error {
	p, found := caller(c)
	if !found {
		return unauthorized(c)
	}
	id, valid := paramID(c, "id")
	if !valid {
		return fail(c, http.StatusBadRequest, "ID inválido.")
	}
	reason, valid, err := blockReasonFrom(c)
	if !valid {
		return err
	}
	ctx, cancel := dbContext(c)
	defer cancel()
	place, err := act(ctx, p, id, reason)
	if err != nil {
		return writeServiceError(c, h.Log, err)
	}
	if msg == "" {
		msg = "Lugar desbloqueado"
		if place.Blocked {
			msg = "Lugar bloqueado"
		}
	}
	return success(c, http.StatusOK, msg, echo.Map{"data": place})
}

func (h *AdminHandler) BlockUser(c echo.Context) error {
	return h.moderateUser(c, h.Moderation.BlockUser, "Usuario bloqueado")
}

func (h *AdminHandler) UnblockUser(c echo.Context) error {
	return h.moderateUser(c, func(ctx context.Context, actor model.Principal, id uint64, _ string) (*model.User, error) {
		return h.Moderation.UnblockUser(ctx, actor, id)
	}, "Usuario desbloqueado")
}

func (h *AdminHandler) ToggleUser(c echo.Context) error {
	return h.moderateUser(c, h.Moderation.ToggleUser, "")
}

func (h *AdminHandler) BlockPlace(c echo.Context) error {
	return h.moderatePlace(c, h.Moderation.BlockPlace, "Lugar bloqueado")
}

func (h *AdminHandler) UnblockPlace(c echo.Context) error {
	return h.moderatePlace(c, func(ctx context.Context, actor model.Principal, id uint64, _ string) (*model.Place, error) {
		return h.Moderation.UnblockPlace(ctx, actor, id)
	}, "Lugar desbloqueado")
}

func (h *AdminHandler) TogglePlace(c echo.Context) error {
	return h.moderatePlace(c, h.Moderation.TogglePlace, "")
}

func boolQuery(c echo.Context, name string) *bool {
	v, err := strconv.ParseBool(c.QueryParam(name))
	if err != nil {
		return nil
	}
	return &v
}

// ListPlaces lists every place; bloqueado and activo filter by flag.
func (h *AdminHandler) ListPlaces(c echo.Context) error {
	limit, offset, page := pageParams(c)
	ctx, cancel := dbContext(c)
	defer cancel()
	items, total, err := h.Places.ListAdmin(ctx, repository.AdminPlaceFilter{
		Active:  boolQuery(c, "activo"),
		Blocked: boolQuery(c, "bloqueado"),
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		return writeServiceError(c, h.Log, err)
	}
	return success(c, http.StatusOK, "Lugares", echo.Map{"data": items, "total": total, "page": page, "rows": limit})
}

func (h *AdminHandler) UserStats(c echo.Context) error {
	ctx, cancel := dbContext(c)
	defer cancel()
	st, err := h.Stats.UserStats(ctx)
	if err != nil {
		return writeServiceError(c, h.Log, err)
	}
	return success(c, http.StatusOK, "Estadísticas de usuarios", echo.Map{"data": st})
}

func (h *AdminHandler) PlaceStats(c echo.Context) error {
	ctx, cancel := dbContext(c)
	defer cancel()
	st, err := h.Stats.PlaceStats(ctx)
	if err != nil {
		return writeServiceError(c, h.Log, err)
	}
	return success(c, http.StatusOK, "Estadísticas de lugares", echo.Map{"data": st})
}

func (h *AdminHandler) VisitOverview(c echo.Context) error {
	ctx, cancel := dbContext(c)
	defer cancel()
	ov, err := h.Stats.Overview(ctx)
	if err != nil {
		return writeServiceError(c, h.Log, err)
	}
	return success(c, http.StatusOK, "Resumen de visitas", echo.Map{"data": ov})
}

// PurgeVisits deletes visits older than ?dias= (90 by default).
func (h *AdminHandler) PurgeVisits(c echo.Context) error {
	days := 0
	if raw := c.QueryParam("dias"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fail(c, http.StatusBadRequest, "dias debe ser numérico.")
		}
		if n < 1 {
			return writeServiceError(c, h.Log, &service.ValidationError{Field: "dias", Message: "Los días deben ser al menos 1."})
		}
		days = n
	}
	ctx, cancel := dbContext(c)
	defer cancel()
	n, err := h.Stats.Purge(ctx, days)
	if err != nil {
		return writeServiceError(c, h.Log, err)
	}
	return success(c, http.StatusOK, "Visitas antiguas eliminadas", echo.Map{"eliminadas": n})
}
