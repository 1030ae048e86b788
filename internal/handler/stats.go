package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/directorio-lugares/internal/service"
)

type StatsHandler struct {
	Stats *service.StatsService
	Log   *zap.Logger
}

func NewStatsHandler(st *service.StatsService, log *zap.Logger) *StatsHandler {
	return &StatsHandler{Stats: st, Log: log}
}

type visitReq struct {
	PlaceID uint64 `json:"id_lugar" validate:"required,gt=0"`
	Seconds int    `json:"tiempo_visita" validate:"required,min=1"`
}

// RecordVisit stores one visit. The caller is attached when a valid token
// was sent.
func (h *StatsHandler) RecordVisit(c echo.Context) error {
	var req visitReq
	if valid, err := bindAndValidate(c, &req); !valid {
		return err
	}
	in := service.VisitInput{PlaceID: req.PlaceID, Seconds: req.Seconds}
	if p, found := caller(c); found {
		id := p.ID
		in.UserID = &id
	}
	ctx, cancel := dbContext(c)
	defer cancel()
	v, err := h.Stats.RecordVisit(ctx, in)
	if err != nil {
		return writeServiceError(c, h.Log, err)
	}
	return success(c, http.StatusCreated, "Visita registrada", echo.Map{"data": v})
}

func (h *StatsHandler) PlaceSummary(c echo.Context) error {
	id, valid := paramID(c, "id")
	if !valid {
		return fail(c, http.StatusBadRequest, "ID inválido.")
	}
	ctx, cancel := dbContext(c)
	defer cancel()
	sum, err := h.Stats.PlaceSummary(ctx, id)
	if err != nil {
		return writeServiceError(c, h.Log, err)
	}
	return success(c, http.StatusOK, "Estadísticas del lugar", echo.Map{"data": sum})
}

// AdvertiserSummary is readable by the advertiser and administrators.
func (h *StatsHandler) AdvertiserSummary(c echo.Context) error {
	p, found := caller(c)
	if !found {
		return unauthorized(c)
	}
	id, valid := paramID(c, "id")
	if !valid {
		return fail(c, http.StatusBadRequest, "ID inválido.")
	}
	ctx, cancel := dbContext(c)
	defer cancel()
	sum, err := h.Stats.AdvertiserSummary(ctx, p, id)
	if err != nil {
		return writeServiceError(c, h.Log, err)
	}
	return success(c, http.StatusOK, "Estadísticas del anunciante", echo.Map{"data": sum})
}

// Popular ranks visible places; ?limit= (max 50) and ?dias= are optional.
func (h *StatsHandler) Popular(c echo.Context) error {
	ctx, cancel := dbContext(c)
	defer cancel()
	items, err := h.Stats.Popular(ctx, queryInt(c, "limit", 0), queryInt(c, "dias", 0))
	if err != nil {
		return writeServiceError(c, h.Log, err)
	}
	return success(c, http.StatusOK, "Lugares populares", echo.Map{"data": items})
}
