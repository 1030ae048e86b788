package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/directorio-lugares/internal/model"
)

const visitTotalsSelect = `COUNT(*) AS total_visitas,
	COUNT(DISTINCT v.id_usuario) AS usuarios_unicos,
	COALESCE(SUM(v.id_usuario IS NULL), 0) AS visitas_anonimas,
	COALESCE(AVG(v.tiempo_visita), 0) AS tiempo_promedio,
	COALESCE(SUM(v.tiempo_visita), 0) AS tiempo_total`

const dailySelect = `SELECT v.fecha_dia AS fecha, COUNT(*) AS visitas, COALESCE(AVG(v.tiempo_visita), 0) AS tiempo_promedio`

// VisitRepo persists estadisticas_visitas and computes the reports.
type VisitRepo struct{ db *sqlx.DB }

func NewVisitRepo(db *sqlx.DB) *VisitRepo { return &VisitRepo{db: db} }

// Insert records one visit. v.Day is derived from v.At.
func (r *VisitRepo) Insert(ctx context.Context, v *model.Visit) error {
	v.Day = time.Date(v.At.Year(), v.At.Month(), v.At.Day(), 0, 0, 0, 0, time.UTC)
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO estadisticas_visitas (id_lugar, id_usuario, tiempo_visita, fecha, fecha_dia) VALUES (?,?,?,?,?)",
		v.PlaceID, v.UserID, v.Seconds, v.At, v.Day)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	v.ID = uint64(id)
	return nil
}

// PlaceTotals aggregates the visits of one place since from.
func (r *VisitRepo) PlaceTotals(ctx context.Context, placeID uint64, from time.Time) (model.VisitTotals, error) {
	var t model.VisitTotals
	err := r.db.GetContext(ctx, &t,
		"SELECT "+visitTotalsSelect+" FROM estadisticas_visitas v WHERE v.id_lugar = ? AND v.fecha >= ?", placeID, from)
	return t, err
}

func (r *VisitRepo) PlaceDaily(ctx context.Context, placeID uint64, from time.Time) ([]model.DailyVisits, error) {
	out := []model.DailyVisits{}
	err := r.db.SelectContext(ctx, &out,
		dailySelect+` FROM estadisticas_visitas v WHERE v.id_lugar = ? AND v.fecha >= ?
		 GROUP BY v.fecha_dia ORDER BY v.fecha_dia`, placeID, from)
	return out, err
}

// OwnerTotals aggregates the visits of every place owned by ownerID.
func (r *VisitRepo) OwnerTotals(ctx context.Context, ownerID uint64, from time.Time) (model.VisitTotals, error) {
	var t model.VisitTotals
	err := r.db.GetContext(ctx, &t,
		"SELECT "+visitTotalsSelect+` FROM estadisticas_visitas v JOIN lugares l ON l.id_lugar = v.id_lugar
		 WHERE l.id_usuario = ? AND v.fecha >= ?`, ownerID, from)
	return t, err
}

// OwnerPerPlace lists every place of the owner, including those without visits.
func (r *VisitRepo) OwnerPerPlace(ctx context.Context, ownerID uint64, from time.Time) ([]model.PlaceVisitRow, error) {
	out := []model.PlaceVisitRow{}
	err := r.db.SelectContext(ctx, &out,
		`SELECT l.id_lugar, l.nombre, COUNT(v.id) AS total_visitas,
		        COUNT(DISTINCT v.id_usuario) AS usuarios_unicos,
		        COALESCE(AVG(v.tiempo_visita), 0) AS tiempo_promedio
		 FROM lugares l
		 LEFT JOIN estadisticas_visitas v ON v.id_lugar = l.id_lugar AND v.fecha >= ?
		 WHERE l.id_usuario = ?
		 GROUP BY l.id_lugar, l.nombre ORDER BY total_visitas DESC, l.id_lugar`, from, ownerID)
	return out, err
}

func (r *VisitRepo) OwnerDaily(ctx context.Context, ownerID uint64, from time.Time) ([]model.DailyVisits, error) {
	out := []model.DailyVisits{}
	err := r.db.SelectContext(ctx, &out,
		dailySelect+` FROM estadisticas_visitas v JOIN lugares l ON l.id_lugar = v.id_lugar
		 WHERE l.id_usuario = ? AND v.fecha >= ?
		 GROUP BY v.fecha_dia ORDER BY v.fecha_dia`, ownerID, from)
	return out, err
}

// Popular ranks visible places by visit count since from.
func (r *VisitRepo) Popular(ctx context.Context, from time.Time, limit int) ([]model.PlaceCount, error) {
	out := []model.PlaceCount{}
	err := r.db.SelectContext(ctx, &out,
		`SELECT l.id_lugar, l.nombre, COUNT(*) AS total
		 FROM estadisticas_visitas v JOIN lugares l ON l.id_lugar = v.id_lugar
		 WHERE v.fecha >= ? AND `+visiblePlaceClause+`
		 GROUP BY l.id_lugar, l.nombre ORDER BY total DESC, l.id_lugar LIMIT ?`, from, limit)
	return out, err
}

func (r *VisitRepo) GlobalTotals(ctx context.Context, from time.Time) (model.VisitTotals, error) {
	var t model.VisitTotals
	err := r.db.GetContext(ctx, &t, "SELECT "+visitTotalsSelect+" FROM estadisticas_visitas v WHERE v.fecha >= ?", from)
	return t, err
}

func (r *VisitRepo) GlobalDaily(ctx context.Context, from time.Time) ([]model.DailyVisits, error) {
	out := []model.DailyVisits{}
	err := r.db.SelectContext(ctx, &out,
		dailySelect+" FROM estadisticas_visitas v WHERE v.fecha >= ? GROUP BY v.fecha_dia ORDER BY v.fecha_dia", from)
	return out, err
}

// PurgeBefore deletes raw visits older than cutoff and returns how many.
func (r *VisitRepo) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM estadisticas_visitas WHERE fecha < ?", cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
