package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/directorio-lugares/internal/model"
)

// FavoriteRepo persists favoritos.
type FavoriteRepo struct{ db *sqlx.DB }

func NewFavoriteRepo(db *sqlx.DB) *FavoriteRepo { return &FavoriteRepo{db: db} }

// ListByUser returns the user's favorites whose place is still visible.
func (r *FavoriteRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Favorite, error) {
	out := []model.Favorite{}
	err := r.db.SelectContext(ctx, &out,
		`SELECT f.id_favorito, f.id_usuario, f.id_lugar, l.nombre, f.created_at
		 FROM favoritos f JOIN lugares l ON l.id_lugar = f.id_lugar
		 WHERE f.id_usuario = ? AND `+visiblePlaceClause+`
		 ORDER BY f.created_at DESC`, userID)
	return out, err
}

// Add bookmarks a place. A duplicate yields ErrConflict.
func (r *FavoriteRepo) Add(ctx context.Context, userID, placeID uint64) error {
	_, err := r.db.ExecContext(ctx, "INSERT INTO favoritos (id_usuario, id_lugar) VALUES (?, ?)", userID, placeID)
	if isDuplicate(err) {
		return ErrConflict
	}
	return err
}

// Remove deletes a bookmark; ErrNotFound when there was none.
func (r *FavoriteRepo) Remove(ctx context.Context, userID, placeID uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM favoritos WHERE id_usuario = ? AND id_lugar = ?", userID, placeID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *FavoriteRepo) Exists(ctx context.Context, userID, placeID uint64) (bool, error) {
	var n int
	err := r.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM favoritos WHERE id_usuario = ? AND id_lugar = ?", userID, placeID)
	return n > 0, err
}

func (r *FavoriteRepo) CountByUser(ctx context.Context, userID uint64) (int64, error) {
	var n int64
	err := r.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM favoritos WHERE id_usuario = ?", userID)
	return n, err
}

// TopFavorited ranks visible places by number of bookmarks.
func (r *FavoriteRepo) TopFavorited(ctx context.Context, limit int) ([]model.PlaceCount, error) {
	out := []model.PlaceCount{}
	err := r.db.SelectContext(ctx, &out,
		`SELECT l.id_lugar, l.nombre, COUNT(*) AS total
		 FROM favoritos f JOIN lugares l ON l.id_lugar = f.id_lugar
		 WHERE `+visiblePlaceClause+`
		 GROUP BY l.id_lugar, l.nombre ORDER BY total DESC, l.id_lugar LIMIT ?`, limit)
	return out, err
}
