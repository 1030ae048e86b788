package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/directorio-lugares/internal/model"
	"github.com/iliyamo/directorio-lugares/internal/repository"
	"github.com/iliyamo/directorio-lugares/internal/storage"
)

const maxImageBytes = 5 << 20

// PlaceHandler serves the public directory and the owner's place management.
type PlaceHandler struct {
	Places     *repository.PlaceRepo
	Categories *repository.CategoryRepo
	Images     *repository.ImageRepo
	Store      storage.ObjectStorage // nil disables uploads
	Log        *zap.Logger
}

func NewPlaceHandler(p *repository.PlaceRepo, cat *repository.CategoryRepo, img *repository.ImageRepo,
	store storage.ObjectStorage, log *zap.Logger) *PlaceHandler {
	return &PlaceHandler{Places: p, Categories: cat, Images: img, Store: store, Log: log}
}

type addressReq struct {
	Street         string  `json:"calle" validate:"required,max=100"`
	InteriorNumber *string `json:"numero_int" validate:"omitempty,max=10"`
	ExteriorNumber string  `json:"numero_ext" validate:"required,max=10"`
	Neighborhood   string  `json:"colonia" validate:"required,max=100"`
	PostalCode     string  `json:"codigo_postal" validate:"required,len=5,numeric"`
}

type placeReq struct {
	Name        string      `json:"nombre" validate:"required,max=100"`
	Description *string     `json:"descripcion" validate:"omitempty,max=2000"`
	ServiceDays []string    `json:"dias_servicio" validate:"omitempty,dive,oneof=lunes martes miercoles miércoles jueves viernes sabado sábado domingo"`
	Phone       *string     `json:"num_telefonico" validate:"omitempty,max=15"`
	OpensAt     *string     `json:"horario_apertura" validate:"omitempty,datetime=15:04:05"`
	ClosesAt    *string     `json:"horario_cierre" validate:"omitempty,datetime=15:04:05"`
	Website     *string     `json:"paginaWeb" validate:"omitempty,url,max=255"`
	CategoryID  uint64      `json:"id_categoria" validate:"required,gt=0"`
	Address     *addressReq `json:"direccion" validate:"omitempty"`
}

func (r placeReq) apply(p *model.Place) {
	p.Name = strings.TrimSpace(r.Name)
	p.Description = r.Description
	p.ServiceDays = model.ServiceDays(r.ServiceDays)
	p.Phone = r.Phone
	p.OpensAt = r.OpensAt
	p.ClosesAt = r.ClosesAt
	p.Website = r.Website
	p.CategoryID = r.CategoryID
}

func (a *addressReq) model() *model.Address {
	if a == nil {
		return nil
	}
	return &model.Address{
		Street:         strings.TrimSpace(a.Street),
		InteriorNumber: a.InteriorNumber,
		ExteriorNumber: strings.TrimSpace(a.ExteriorNumber),
		Neighborhood:   strings.TrimSpace(a.Neighborhood),
		PostalCode:     a.PostalCode,
	}
}

func pageParams(c echo.Context) (limit, offset, page int) {
	limit = queryInt(c, "rows", 10)
	if limit < 1 || limit > 100 {
		limit = 10
	}
	page = queryInt(c, "page", 0)
	if page < 0 {
		page = 0
	}
	return limit, page * limit, page
}

// List returns visible places, optionally filtered by categoria and q.
func (h *PlaceHandler) List(c echo.Context) error {
	limit, offset, page := pageParams(c)
	f := repository.PlaceFilter{Query: c.QueryParam("q"), Limit: limit, Offset: offset}
	if n := queryInt(c, "categoria", 0); n > 0 {
		f.CategoryID = uint64(n)
	}
	ctx, cancel := dbContext(c)
	defer cancel()
	items, total, err := h.Places.ListVisible(ctx, f)
	if err != nil {
		return writeServiceError(c, h.Log, err)
	}
	return success(c, http.StatusOK, "Lugares", echo.Map{"data": items, "total": total, "page": page, "rows": limit})
}

// Show returns one visible place with its address and images.
func (h *PlaceHandler) Show(c echo.Context) error {
	id, valid := paramID(c, "id")
	if !valid {
		return fail(c, http.StatusBadRequest, "ID inválido.")
	}
	ctx, cancel := dbContext(c)
	defer cancel()
	p, err := h.Places.GetVisible(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fail(c, http.StatusNotFound, "Lugar no encontrado.")
		}
		return writeServiceError(c, h.Log, err)
	}
	addr, err := h.Places.GetAddress(ctx, p.AddressID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return writeServiceError(c, h.Log, err)
	}
	imgs, err := h.Images.ListByPlace(ctx, p.ID)
	if err != nil {
		return writeServiceError(c, h.Log, err)
	}
	return success(c, http.StatusOK, "Lugar", echo.Map{"data": p, "direccion": addr, "imagenes": imgs})
}

// Mine lists every place of the caller, visible or not.
func (h *PlaceHandler) Mine(c echo.Context) error {
	p, found := caller(c)
	if !found {
		return unauthorized(c)
	}
	ctx, cancel := dbContext(c)
	defer cancel()
	items, err := h.Places.ListByOwner(ctx, p.ID)
	if err != nil {
		return writeServiceError(c, h.Log, err)
	}
	return success(c, http.StatusOK, "Mis lugares", echo.Map{"data": items})
}

// Create stores a new, inactive place owned by the caller. It becomes
// visible once paid for.
func (h *PlaceHandler) Create(c echo.Context) error {
	p, found := caller(c)
	if !found {
		return unauthorized(c)
	}
	var req placeReq
	if valid, err := bindAndValidate(c, &req); !valid {
		return err
	}
	if req.Address == nil {
		return failWith(c, http.StatusUnprocessableEntity, "Error de validación.",
			echo.Map{"errores": map[string]string{"direccion": "Este campo es obligatorio."}})
	}

	ctx, cancel := dbContext(c)
	defer cancel()
	if _, err := h.Categories.GetByID(ctx, req.CategoryID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fail(c, http.StatusNotFound, "Categoría no encontrada.")
		}
		return writeServiceError(c, h.Log, err)
	}
	place := &model.Place{OwnerID: p.ID}
	req.apply(place)
	addr := req.Address.model()
	if err := h.Places.CreateWithAddress(ctx, place, addr); err != nil {
		return writeServiceError(c, h.Log, err)
	}
	return success(c, http.StatusCreated, "Lugar creado. Realiza el pago para activarlo.", echo.Map{"data": place, "direccion": addr})
}

// Update rewrites the editable fields of a place the caller owns.
func (h *PlaceHandler) Update(c echo.Context) error {
	p, found := caller(c)
	if !found {
		return unauthorized(c)
	}
	id, valid := paramID(c, "id")
	if !valid {
		return fail(c, http.StatusBadRequest, "ID inválido.")
	}
	var req placeReq
	if valid, err := bindAndValidate(c, &req); !valid {
		return err
	}

	ctx, cancel := dbContext(c)
	defer cancel()
	place, err := h.Places.GetByID(ctx, id)
	if err != nil {
		return writeServiceError(c, h.Log, err)
	}
	if place.OwnerID != p.ID {
		return writeServiceError(c, h.Log, repository.ErrForbidden)
	}
	if req.CategoryID != place.CategoryID {
		if _, err := h.Categories.GetByID(ctx, req.CategoryID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fail(c, http.StatusNotFound, "Categoría no encontrada.")
			}
			return writeServiceError(c, h.Log, err)
		}
	}
	req.apply(place)
	if err := h.Places.Update(ctx, place, req.Address.model()); err != nil {
		return writeServiceError(c, h.Log, err)
	}
	return success(c, http.StatusOK, "Lugar actualizado", echo.Map{"data": place})
}

// Delete removes a place the caller owns, then its image objects.
func (h *PlaceHandler) Delete(c echo.Context) error {
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
	keys, err := h.Places.DeleteByIDAndOwner(ctx, id, p.ID)
	if err != nil {
		return writeServiceError(c, h.Log, err)
	}
	if h.Store != nil && len(keys) > 0 {
		// Rows are gone already; an orphaned object is only logged.
		octx, ocancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer ocancel()
		for _, k := range keys {
			if err := h.Store.Delete(octx, k); err != nil {
				h.Log.Warn("image object not deleted", zap.String("key", k), zap.Error(err))
			}
		}
	}
	return success(c, http.StatusOK, "Lugar eliminado", nil)
}

// ListImages lists the images of a visible place.
func (h *PlaceHandler) ListImages(c echo.Context) error {
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
	imgs, err := h.Images.ListByPlace(ctx, id)
	if err != nil {
		return writeServiceError(c, h.Log, err)
	}
	return success(c, http.StatusOK, "Imágenes", echo.Map{"data": imgs})
}

// UploadImage stores the multipart field "imagen" for a place the caller
// owns. Only JPEG, PNG and WebP up to 5 MiB are accepted.
func (h *PlaceHandler) UploadImage(c echo.Context) error {
	p, found := caller(c)
	if !found {
		return unauthorized(c)
	}
	if h.Store == nil {
		return fail(c, http.StatusServiceUnavailable, "El almacenamiento de imágenes no está configurado.")
	}
	id, valid := paramID(c, "id")
	if !valid {
		return fail(c, http.StatusBadRequest, "ID inválido.")
	}
	fh, err := c.FormFile("imagen")
	if err != nil {
		return failWith(c, http.StatusUnprocessableEntity, "Error de validación.",
			echo.Map{"errores": map[string]string{"imagen": "Este campo es obligatorio."}})
	}
	if fh.Size > maxImageBytes {
		return failWith(c, http.StatusUnprocessableEntity, "Error de validación.",
			echo.Map{"errores": map[string]string{"imagen": "La imagen no puede exceder 5 MB."}})
	}
	ct := fh.Header.Get(echo.HeaderContentType)
	ext, allowed := storage.ImageExt(ct)
	if !allowed {
		return failWith(c, http.StatusUnprocessableEntity, "Error de validación.",
			echo.Map{"errores": map[string]string{"imagen": "Formato no permitido (jpg, png, webp)."}})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()
	place, err := h.Places.GetByID(ctx, id)
	if err != nil {
		return writeServiceError(c, h.Log, err)
	}
	if place.OwnerID != p.ID {
		return writeServiceError(c, h.Log, repository.ErrForbidden)
	}

	src, err := fh.Open()
	if err != nil {
		return fail(c, http.StatusBadRequest, "No se pudo leer la imagen.")
	}
	defer src.Close()
	key := storage.PlaceImageKey(place.ID, ext)
	if err := h.Store.Put(ctx, key, src, fh.Size, ct); err != nil {
		h.Log.Error("image upload failed", zap.String("key", key), zap.Error(err))
		return fail(c, http.StatusBadGateway, "No se pudo guardar la imagen.")
	}
	img := &model.Image{PlaceID: place.ID, ObjectKey: key, URL: h.Store.URL(key), ContentType: ct, CreatedAt: time.Now().UTC().Truncate(time.Second)}
	if err := h.Images.Create(ctx, img); err != nil {
		_ = h.Store.Delete(context.WithoutCancel(ctx), key)
		return writeServiceError(c, h.Log, err)
	}
	return success(c, http.StatusCreated, "Imagen subida", echo.Map{"data": img})
}
