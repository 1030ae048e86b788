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

type CategoryHandler struct {
	Categories *repository.CategoryRepo
	Places     *repository.PlaceRepo
	Methods    *repository.MethodRepo
	Log        *zap.Logger
}

func NewCategoryHandler(cat *repository.CategoryRepo, p *repository.PlaceRepo, m *repository.MethodRepo, log *zap.Logger) *CategoryHandler {
	return &CategoryHandler{Categories: cat, Places: p, Methods: m, Log: log}
}

func (h *CategoryHandler) List(c echo.Context) error {
	ctx, cancel := dbContext(c)
	defer cancel()
	items, err := h.Categories.List(ctx)
	if err != nil {
		return writeServiceError(c, h.Log, err)
	}
	return success(c, http.StatusOK, "Categorías", echo.Map{"data": items})
}

func (h *CategoryHandler) Show(c echo.Context) error {
	id, valid := paramID(c, "id")
	if !valid {
		return fail(c, http.StatusBadRequest, "ID inválido.")
	}
	ctx, cancel := dbContext(c)
	defer cancel()
	cat, err := h.Categories.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fail(c, http.StatusNotFound, "Categoría no encontrada.")
		}
		return writeServiceError(c, h.Log, err)
	}
	return success(c, http.StatusOK, "Categoría", echo.Map{"data": cat})
}

// ListPlaces lists the visible places of a category.
func (h *CategoryHandler) ListPlaces(c echo.Context) error {
	id, valid := paramID(c, "id")
	if !valid {
		return fail(c, http.StatusBadRequest, "ID inválido.")
	}
	ctx, cancel := dbContext(c)
	defer cancel()
	if _, err := h.Categories.GetByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fail(c, http.StatusNotFound, "Categoría no encontrada.")
		}
		return writeServiceError(c, h.Log, err)
	}
	items, err := h.Places.ListVisibleByCategory(ctx, id)
	if err != nil {
		return writeServiceError(c, h.Log, err)
	}
	return success(c, http.StatusOK, "Lugares de la categoría", echo.Map{"data": items})
}

type categoryReq struct {
	Name        string  `json:"nombre" validate:"required,max=50"`
	Description *string `json:"descripcion" validate:"omitempty,max=255"`
}

// Create adds a category (administrators).
func (h *CategoryHandler) Create(c echo.Context) error {
	var req categoryReq
	if valid, err := bindAndValidate(c, &req); !valid {
		return err
	}
	cat := &model.Category{Name: strings.TrimSpace(req.Name), Description: req.Description}
	ctx, cancel := dbContext(c)
	defer cancel()
	if err := h.Categories.Create(ctx, cat); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return fail(c, http.StatusConflict, "La categoría ya existe.")
		}
		return writeServiceError(c, h.Log, err)
	}
	return success(c, http.StatusCreated, "Categoría creada", echo.Map{"data": cat})
}

// PaymentMethods lists the active payment method catalog.
func (h *CategoryHandler) PaymentMethods(c echo.Context) error {
	ctx, cancel := dbContext(c)
	defer cancel()
	items, err := h.Methods.ListActive(ctx)
	if err != nil {
		return writeServiceError(c, h.Log, err)
	}
	return success(c, http.StatusOK, "Métodos de pago", echo.Map{"data": items})
}
