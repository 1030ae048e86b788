package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/directorio-lugares/internal/repository"
)

type FavoriteHandler struct {
	Favorites *repository.FavoriteRepo
	Places    *repository.PlaceRepo
	Log       *zap.Logger
}

func NewFavoriteHandler(f *repository.FavoriteRepo, p *repository.PlaceRepo, log *zap.Logger) *FavoriteHandler {
	return &FavoriteHandler{Favorites: f, Places: p, Log: log}
}

type favoriteReq struct {
	PlaceID uint64 `json:"id_lugar" validate:"required,gt=0"`
}

func (h *FavoriteHandler) List(c echo.Context) error {
	p, found := caller(c)
	if !found {
		return unauthorized(c)
	}
	ctx, cancel := dbContext(c)
	defer cancel()
	items, err := h.Favorites.ListByUser(ctx, p.ID)
	if err != nil {
		return writeServiceError(c, h.Log, err)
	}
	return success(c, http.StatusOK, "Favoritos", echo.Map{"data": items})
}

// Add bookmarks a visible place; a duplicate is a 409.
func (h *FavoriteHandler) Add(c echo.Context) error {
	p, found := caller(c)
	if !found {
		return unauthorized(c)
	}
	var req favoriteReq
	if valid, err := bindAndValidate(c, &req); !valid {
		return err
	}
	ctx, cancel := dbContext(c)
	defer cancel()
	if _, err := h.Places.GetVisible(ctx, req.PlaceID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fail(c, http.StatusNotFound, "Lugar no encontrado.")
		}
		return writeServiceError(c, h.Log, err)
	}
	if err := h.Favorites.Add(ctx, p.ID, req.PlaceID); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return fail(c, http.StatusConflict, "El lugar ya está en favoritos.")
		}
		return writeServiceError(c, h.Log, err)
	}
	return success(c, http.StatusCreated, "Agregado a favoritos", echo.Map{"id_lugar": req.PlaceID})
}

func (h *FavoriteHandler) Remove(c echo.Context) error {
	p, found := caller(c)
	if !found {
		return unauthorized(c)
	}
	placeID, valid := paramID(c, "id_lugar")
	if !valid {
		return fail(c, http.StatusBadRequest, "ID inválido.")
	}
	ctx, cancel := dbContext(c)
	defer cancel()
	if err := h.Favorites.Remove(ctx, p.ID, placeID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fail(c, http.StatusNotFound, "El lugar no está en favoritos.")
		}
		return writeServiceError(c, h.Log, err)
	}
	return success(c, http.StatusOK, "Eliminado de favoritos", nil)
}

func (h *FavoriteHandler) Check(c echo.Context) error {
	p, found := caller(c)
	if !found {
		return unauthorized(c)
	}
	placeID, valid := paramID(c, "id_lugar")
	if !valid {
		return fail(c, http.StatusBadRequest, "ID inválido.")
	}
	ctx, cancel := dbContext(c)
	defer cancel()
	exists, err := h.Favorites.Exists(ctx, p.ID, placeID)
	if err != nil {
		return writeServiceError(c, h.Log, err)
	}
	return success(c, http.StatusOK, "Estado de favorito", echo.Map{"es_favorito": exists})
}

// Toggle adds the bookmark when absent and removes it otherwise.
func (h *FavoriteHandler) Toggle(c echo.Context) error {
	p, found := caller(c)
	if !found {
		return unauthorized(c)
	}
	var req favoriteReq
	if valid, err := bindAndValidate(c, &req); !valid {
		return err
	}
	ctx, cancel := dbContext(c)
	defer cancel()
	err := h.Favorites.Remove(ctx, p.ID, req.PlaceID)
	switch {
	case err == nil:
		return success(c, http.StatusOK, "Eliminado de favoritos", echo.Map{"es_favorito": false})
	case !errors.Is(err, repository.ErrNotFound):
		return writeServiceError(c, h.Log, err)
	}
	if _, err := h.Places.GetVisible(ctx, req.PlaceID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fail(c, http.StatusNotFound, "Lugar no encontrado.")
		}
		return writeServiceError(c, h.Log, err)
	}
	if err := h.Favorites.Add(ctx, p.ID, req.PlaceID); err != nil && !errors.Is(err, repository.ErrConflict) {
		return writeServiceError(c, h.Log, err)
	}
	return success(c, http.StatusOK, "Agregado a favoritos", echo.Map{"es_favorito": true})
}

// Stats reports the caller's bookmark count and the most bookmarked places.
func (h *FavoriteHandler) Stats(c echo.Context) error {
	p, found := caller(c)
	if !found {
		return unauthorized(c)
	}
	ctx, cancel := dbContext(c)
	defer cancel()
	n, err := h.Favorites.CountByUser(ctx, p.ID)
	if err != nil {
		return writeServiceError(c, h.Log, err)
	}
	top, err := h.Favorites.TopFavorited(ctx, 10)
	if err != nil {
		return writeServiceError(c, h.Log, err)
	}
	return success(c, http.StatusOK, "Estadísticas de favoritos", echo.Map{"total_favoritos": n, "mas_favoritos": top})
}
