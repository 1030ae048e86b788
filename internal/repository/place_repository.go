package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/directorio-lugares/internal/model"
)

const placeColumns = `l.id_lugar, l.nombre, l.descripcion, l.dias_servicio, l.num_telefonico,
	l.horario_apertura, l.horario_cierre, l.pagina_web, l.id_categoria, l.id_direccion, l.id_usuario,
	l.activo, l.fecha_activacion, l.activado_por_pago_id, l.created_at, l.updated_at,
	l.bloqueado, l.motivo_bloqueo, l.fecha_bloqueo, l.bloqueado_por, l.fecha_desbloqueo, l.desbloqueado_por`

// visiblePlaceClause is the SQL form of model.Place.Visible. Every public
// query filters with it.
const visiblePlaceClause = `l.activo = 1 AND l.bloqueado = 0 AND l.fecha_activacion IS NOT NULL`

// PlaceFilter narrows public listings.
type PlaceFilter struct {
	CategoryID uint64
	Query      string // substring of nombre or descripcion
	Limit      int
	Offset     int
}

// AdminPlaceFilter narrows the administrator listing. Nil means any.
type AdminPlaceFilter struct {
	Active  *bool
	Blocked *bool
	Limit   int
	Offset  int
}

// PlaceRepo persists lugares and their addresses.
type PlaceRepo struct{ db *sqlx.DB }

func NewPlaceRepo(db *sqlx.DB) *PlaceRepo { return &PlaceRepo{db: db} }

// CreateWithAddress inserts the address and then the place (inactive) in
// one transaction, populating both IDs and the stored timestamps.
func (r *PlaceRepo) CreateWithAddress(ctx context.Context, p *model.Place, a *model.Address) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO direcciones (calle, numero_int, numero_ext, colonia, codigo_postal) VALUES (?,?,?,?,?)`,
		a.Street, a.InteriorNumber, a.ExteriorNumber, a.Neighborhood, a.PostalCode)
	if err != nil {
		return err
	}
	addrID, err := res.LastInsertId()
	if err != nil {
		return err
	}
	a.ID = uint64(addrID)
	p.AddressID = a.ID

	res, err = tx.ExecContext(ctx,
		`INSERT INTO lugares (nombre, descripcion, dias_servicio, num_telefonico, horario_apertura,
		   horario_cierre, pagina_web, id_categoria, id_direccion, id_usuario, activo)
		 VALUES (?,?,?,?,?,?,?,?,?,?,0)`,
		p.Name, p.Description, p.ServiceDays, p.Phone, p.OpensAt, p.ClosesAt, p.Website,
		p.CategoryID, p.AddressID, p.OwnerID)
	if err != nil {
		return err
	}
	placeID, err := res.LastInsertId()
	if err != nil {
		return err
	}
	if err := tx.GetContext(ctx, p, "SELECT "+placeColumns+" FROM lugares l WHERE l.id_lugar = ?", placeID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

func (r *PlaceRepo) getOne(ctx context.Context, q string, args ...any) (*model.Place, error) {
	var p model.Place
	if err := r.db.GetContext(ctx, &p, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// GetByID fetches a place regardless of visibility.
func (r *PlaceRepo) GetByID(ctx context.Context, id uint64) (*model.Place, error) {
	return r.getOne(ctx, "SELECT "+placeColumns+" FROM lugares l WHERE l.id_lugar = ?", id)
}

// GetVisible fetches a place only when it is publicly visible.
func (r *PlaceRepo) GetVisible(ctx context.Context, id uint64) (*model.Place, error) {
	return r.getOne(ctx, "SELECT "+placeColumns+" FROM lugares l WHERE l.id_lugar = ? AND "+visiblePlaceClause, id)
}

// GetAddress fetches the address of a place.
func (r *PlaceRepo) GetAddress(ctx context.Context, id uint64) (*model.Address, error) {
	var a model.Address
	if err := r.db.GetContext(ctx, &a,
		"SELECT id_direccion, calle, numero_int, numero_ext, colonia, codigo_postal FROM direcciones WHERE id_direccion = ?",
		id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// ListVisible returns one page of visible places and the total match count.
func (r *PlaceRepo) ListVisible(ctx context.Context, f PlaceFilter) ([]model.Place, int64, error) {
	where := []string{visiblePlaceClause}
	var args []any
	if f.CategoryID > 0 {
		where = append(where, "l.id_categoria = ?")
		args = append(args, f.CategoryID)
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		where = append(where, "(l.nombre LIKE ? OR l.descripcion LIKE ?)")
		like := "%" + q + "%"
		args = append(args, like, like)
	}
	return r.page(ctx, strings.Join(where, " AND "), args, f.Limit, f.Offset)
}

// ListAdmin lists every place with optional flag filters.
func (r *PlaceRepo) ListAdmin(ctx context.Context, f AdminPlaceFilter) ([]model.Place, int64, error) {
	where := []string{"1 = 1"}
	var args []any
	if f.Active != nil {
		where = append(where, "l.activo = ?")
		args = append(args, *f.Active)
	}
	if f.Blocked != nil {
		where = append(where, "l.bloqueado = ?")
		args = append(args, *f.Blocked)
	}
	return r.page(ctx, strings.Join(where, " AND "), args, f.Limit, f.Offset)
}

func (r *PlaceRepo) page(ctx context.Context, where string, args []any, limit, offset int) ([]model.Place, int64, error) {
	var total int64
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM lugares l WHERE "+where, args...); err != nil {
		return nil, 0, err
	}
	out := []model.Place{}
	q := "SELECT " + placeColumns + " FROM lugares l WHERE " + where + " ORDER BY l.id_lugar DESC LIMIT ? OFFSET ?"
	if err := r.db.SelectContext(ctx, &out, q, append(args, limit, offset)...); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// ListByOwner returns every place of an owner, visible or not.
func (r *PlaceRepo) ListByOwner(ctx context.Context, ownerID uint64) ([]model.Place, error) {
	out := []model.Place{}
	err := r.db.SelectContext(ctx, &out,
		"SELECT "+placeColumns+" FROM lugares l WHERE l.id_usuario = ? ORDER BY l.id_lugar", ownerID)
	return out, err
}

// ListVisibleByCategory returns visible places of one category.
func (r *PlaceRepo) ListVisibleByCategory(ctx context.Context, categoryID uint64) ([]model.Place, error) {
	out := []model.Place{}
	err := r.db.SelectContext(ctx, &out,
		"SELECT "+placeColumns+" FROM lugares l WHERE l.id_categoria = ? AND "+visiblePlaceClause+" ORDER BY l.nombre",
		categoryID)
	return out, err
}

// Update rewrites the editable fields of a place and its address. The
// flags, block metadata and activation fields are never touched here.
func (r *PlaceRepo) Update(ctx context.Context, p *model.Place, a *model.Address) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		`UPDATE lugares
		 SET nombre = ?, descripcion = ?, dias_servicio = ?, num_telefonico = ?, horario_apertura = ?,
		     horario_cierre = ?, pagina_web = ?, id_categoria = ?
		 WHERE id_lugar = ? AND id_usuario = ?`,
		p.Name, p.Description, p.ServiceDays, p.Phone, p.OpensAt, p.ClosesAt, p.Website,
		p.CategoryID, p.ID, p.OwnerID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Tell a missing place apart from one owned by someone else.
		var owner uint64
		if err := tx.GetContext(ctx, &owner, "SELECT id_usuario FROM lugares WHERE id_lugar = ?", p.ID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		if owner != p.OwnerID {
			return ErrForbidden
		}
	}
	if a != nil {
		if _, err := tx.ExecContext(ctx,
			`UPDATE direcciones SET calle = ?, numero_int = ?, numero_ext = ?, colonia = ?, codigo_postal = ?
			 WHERE id_direccion = ?`,
			a.Street, a.InteriorNumber, a.ExteriorNumber, a.Neighborhood, a.PostalCode, p.AddressID); err != nil {
			return err
		}
	}
	if err := tx.GetContext(ctx, p, "SELECT "+placeColumns+" FROM lugares l WHERE l.id_lugar = ?", p.ID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// DeleteByIDAndOwner physically removes a place owned by ownerID together
// with its address. Images, comments, favorites and visits go with it via
// ON DELETE CASCADE. The object keys of the deleted images are returned so
// the caller can remove the blobs.
func (r *PlaceRepo) DeleteByIDAndOwner(ctx context.Context, id, ownerID uint64) ([]string, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var row struct {
		OwnerID   uint64 `db:"id_usuario"`
		AddressID uint64 `db:"id_direccion"`
	}
	if err := tx.GetContext(ctx, &row, "SELECT id_usuario, id_direccion FROM lugares WHERE id_lugar = ? FOR UPDATE", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if row.OwnerID != ownerID {
		return nil, ErrForbidden
	}
	keys := []string{}
	if err := tx.SelectContext(ctx, &keys, "SELECT object_key FROM imagenes WHERE id_lugar = ?", id); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM lugares WHERE id_lugar = ?", id); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM direcciones WHERE id_direccion = ?", row.AddressID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return keys, nil
}

// Block sets the moderation flag. The active flag is left alone.
func (r *PlaceRepo) Block(ctx context.Context, id, actorID uint64, reason string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE lugares
		 SET bloqueado = 1, motivo_bloqueo = ?, fecha_bloqueo = ?, bloqueado_por = ?,
		     fecha_desbloqueo = NULL, desbloqueado_por = NULL
		 WHERE id_lugar = ? AND bloqueado = 0`,
		reason, at, actorID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrStateUnchanged
	}
	return nil
}

// Unblock clears the moderation flag and records who lifted it.
func (r *PlaceRepo) Unblock(ctx context.Context, id, actorID uint64, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE lugares
		 SET bloqueado = 0, motivo_bloqueo = NULL, fecha_bloqueo = NULL, bloqueado_por = NULL,
		     fecha_desbloqueo = ?, desbloqueado_por = ?
		 WHERE id_lugar = ? AND bloqueado = 1`,
		at, actorID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrStateUnchanged
	}
	return nil
}

// Stats counts places by state and by category.
func (r *PlaceRepo) Stats(ctx context.Context) (model.PlaceStats, error) {
	var s model.PlaceStats
	if err := r.db.GetContext(ctx, &s,
		`SELECT COUNT(*) AS total,
		        COALESCE(SUM(l.activo = 1), 0) AS activos,
		        COALESCE(SUM(l.activo = 0), 0) AS inactivos,
		        COALESCE(SUM(l.bloqueado = 1), 0) AS bloqueados,
		        COALESCE(SUM(`+visiblePlaceClause+`), 0) AS visibles
		 FROM lugares l`); err != nil {
		return s, err
	}
	s.ByCategory = []model.LabelCount{}
	err := r.db.SelectContext(ctx, &s.ByCategory,
		`SELECT c.nombre AS etiqueta, COUNT(l.id_lugar) AS total
		 FROM categorias c LEFT JOIN lugares l ON l.id_categoria = c.id_categoria
		 GROUP BY c.id_categoria, c.nombre ORDER BY total DESC, c.nombre`)
	return s, err
}
