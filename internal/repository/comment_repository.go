package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/directorio-lugares/internal/model"
)

const commentColumns = `c.id_comentario, c.id_usuario, c.id_lugar, c.contenido, c.valoracion,
	CONCAT(u.nombre, ' ', u.apellido_p) AS autor, c.created_at, c.updated_at`

// CommentRepo persists comentarios.
type CommentRepo struct{ db *sqlx.DB }

func NewCommentRepo(db *sqlx.DB) *CommentRepo { return &CommentRepo{db: db} }

// Create inserts a comment. A second comment by the same user on the same
// place yields ErrConflict.
func (r *CommentRepo) Create(ctx context.Context, c *model.Comment) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO comentarios (id_usuario, id_lugar, contenido, valoracion) VALUES (?,?,?,?)",
		c.UserID, c.PlaceID, c.Content, c.Rating)
	if err != nil {
		if isDuplicate(err) {
			return ErrConflict
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	got, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*c = *got
	return nil
}

func (r *CommentRepo) GetByID(ctx context.Context, id uint64) (*model.Comment, error) {
	var c model.Comment
	err := r.db.GetContext(ctx, &c,
		"SELECT "+commentColumns+" FROM comentarios c JOIN usuarios u ON u.id_usuario = c.id_usuario WHERE c.id_comentario = ?", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// ListByPlace pages through the comments of a place, newest first.
func (r *CommentRepo) ListByPlace(ctx context.Context, placeID uint64, limit, offset int) ([]model.Comment, int64, error) {
	var total int64
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM comentarios WHERE id_lugar = ?", placeID); err != nil {
		return nil, 0, err
	}
	out := []model.Comment{}
	err := r.db.SelectContext(ctx, &out,
		"SELECT "+commentColumns+` FROM comentarios c JOIN usuarios u ON u.id_usuario = c.id_usuario
		 WHERE c.id_lugar = ? ORDER BY c.created_at DESC, c.id_comentario DESC LIMIT ? OFFSET ?`,
		placeID, limit, offset)
	return out, total, err
}

// Update rewrites content and rating of a comment owned by c.UserID.
func (r *CommentRepo) Update(ctx context.Context, c *model.Comment) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE comentarios SET contenido = ?, valoracion = ? WHERE id_comentario = ? AND id_usuario = ?",
		c.Content, c.Rating, c.ID, c.UserID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return r.missingOrForeign(ctx, c.ID)
	}
	got, err := r.GetByID(ctx, c.ID)
	if err != nil {
		return err
	}
	*c = *got
	return nil
}

// Delete removes a comment. Administrators pass asAdmin to skip the
// ownership check.
func (r *CommentRepo) Delete(ctx context.Context, id, userID uint64, asAdmin bool) error {
	q, args := "DELETE FROM comentarios WHERE id_comentario = ? AND id_usuario = ?", []any{id, userID}
	if asAdmin {
		q, args = "DELETE FROM comentarios WHERE id_comentario = ?", []any{id}
	}
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return r.missingOrForeign(ctx, id)
	}
	return nil
}

func (r *CommentRepo) missingOrForeign(ctx context.Context, id uint64) error {
	var n int
	if err := r.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM comentarios WHERE id_comentario = ?", id); err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrForbidden
}

// RatingStats averages the ratings of a place.
func (r *CommentRepo) RatingStats(ctx context.Context, placeID uint64) (model.RatingStats, error) {
	st := model.RatingStats{PlaceID: placeID}
	err := r.db.GetContext(ctx, &st,
		"SELECT ? AS id_lugar, COALESCE(AVG(valoracion), 0) AS promedio, COUNT(*) AS total FROM comentarios WHERE id_lugar = ?",
		placeID, placeID)
	return st, err
}
