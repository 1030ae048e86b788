package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/directorio-lugares/internal/model"
)

// ImageRepo persists imagenes rows. Blobs live in object storage.
type ImageRepo struct{ db *sqlx.DB }

func NewImageRepo(db *sqlx.DB) *ImageRepo { return &ImageRepo{db: db} }

// Create inserts the row and sets img.ID.
func (r *ImageRepo) Create(ctx context.Context, img *model.Image) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO imagenes (id_lugar, object_key, url, content_type, created_at) VALUES (?,?,?,?,?)",
		img.PlaceID, img.ObjectKey, img.URL, img.ContentType, img.CreatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	img.ID = uint64(id)
	return nil
}

// ListByPlace returns the images of a place in upload order.
func (r *ImageRepo) ListByPlace(ctx context.Context, placeID uint64) ([]model.Image, error) {
	out := []model.Image{}
	err := r.db.SelectContext(ctx, &out,
		"SELECT id_imagen, id_lugar, object_key, url, content_type, created_at FROM imagenes WHERE id_lugar = ? ORDER BY id_imagen",
		placeID)
	return out, err
}
