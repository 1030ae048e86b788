package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/directorio-lugares/internal/model"
	"github.com/iliyamo/directorio-lugares/internal/repository"
)

type CommentHandler struct {
	Comments *repository.CommentRepo
	Places   *repository.PlaceRepo
	Log      *zap.Logger
}

func NewCommentHandler(cm *repository.CommentRepo, p *repository.PlaceRepo, log *zap.Logger) *CommentHandler {
	return &CommentHandler{Comments: cm, Places: p, Log: log}
}

type commentReq struct {
	PlaceID uint64 `json:"id_lugar" validate:"required,gt=0"`
	Content string `json:"contenido" validate:"required,max=1000"`
	Rating  uint8  `json:"valoracion" validate:"required,min=1,max=5"`
}

type commentUpdateReq struct {
	Content string `json:"contenido" validate:"required,max=1000"`
	Rating  uint8  `json:"valoracion" validate:"required,min=1,max=5"`
}

// ListByPlace pages through the comments of a visible place (rows, page
// from 0).
func (h *CommentHandler) ListByPlace(c echo.Context) error {
	id, valid := paramID(c, "id")
	if !valid {
		return fail(c, http.StatusBadRequest, "ID inválido.")
	}
	limit, offset, page := pageParams(c)
	ctx, cancel := dbContext(c)
	defer cancel()
	if _, err := h.Places.GetVisible(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fail(c, http.StatusNotFound, "Lugar no encontrado.")
		}
		return writeServiceError(c, h.Log, err)
	}
	items, total, err := h.Comments.ListByPlace(ctx, id, limit, offset)
	if err != nil {
		return writeServiceError(c, h.Log, err)
	}
	return success(c, http.StatusOK, "Comentarios", echo.Map{"data": items, "total": total, "page": page, "rows": limit})
}

// Stats returns the average rating and comment count of a place.
func (h *CommentHandler) Stats(c echo.Context) error {
	id, valid := paramID(c, "id")
	if !valid {
		return fail(c, http.StatusBadRequest, "ID inválido.")
	}
	ctx, cancel := dbContext(c)
	defer cancel()
	if _, err := h.Places.GetVisible(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fail(c, http.StatusNotFound, "Lugar no encontrado.")
		}
		return writeServiceError(c, h.Log, err)
	}
	st, err := h.Comments.RatingStats(ctx, id)
	if err != nil {
		return writeServiceError(c, h.Log, err)
	}
	return success(c, http.StatusOK, "Estadísticas del lugar", echo.Map{"data": st})
}

// Create adds the caller's single comment on a visible place.
func (h *CommentHandler) Create(c echo.Context) error {
	p, found := caller(c)
	if !found {
		return unauthorized(c)
	}
	var req commentReq
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
	cm := &model.Comment{UserID: p.ID, PlaceID: req.PlaceID, Content: strings.TrimSpace(req.Content), Rating: req.Rating}
	if err := h.Comments.Create(ctx, cm); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return fail(c, http.StatusConflict, "Ya comentaste este lugar.")
		}
		return writeServiceError(c, h.Log, err)
	}
	return success(c, http.StatusCreated, "Comentario creado", echo.Map{"data": cm})
}

// Update edits a comment written by the caller.
func (h *CommentHandler) Update(c echo.Context) error {
	p, found := caller(c)
	if !found {
		return unauthorized(c)
	}
	id, valid := paramID(c, "id")
	if !valid {
		return fail(c, http.StatusBadRequest, "ID inválido.")
	}
	var req commentUpdateReq
	if valid, err := bindAndValidate(c, &req); !valid {
		return err
	}
	cm := &model.Comment{ID: id, UserID: p.ID, Content: strings.TrimSpace(req.Content), Rating: req.Rating}
	ctx, cancel := dbContext(c)
	defer cancel()
	if err := h.Comments.Update(ctx, cm); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fail(c, http.StatusNotFound, "Comentario no encontrado.")
		}
		return writeServiceError(c, h.Log, err)
	}
	return success(c, http.StatusOK, "Comentario actualizado", echo.Map{"data": cm})
}

// Delete removes a comment of the caller; administrators may remove any.
func (h *CommentHandler) Delete(c echo.Context) error {
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
	if err := h.Comments.Delete(ctx, id, p.ID, p.Role.IsAdmin()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fail(c, http.StatusNotFound, "Comentario no encontrado.")
		}
		return writeServiceError(c, h.Log, err)
	}
	return success(c, http.StatusOK, "Comentario eliminado", nil)
}
