package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/directorio-lugares/internal/model"
	"github.com/iliyamo/directorio-lugares/internal/utils"
)

const userColumns = `u.id_usuario, u.nombre, u.apellido_p, u.apellido_m, u.correo, u.password_hash,
	u.id_rol, r.nombre AS rol, u.activo, u.stripe_customer_id, u.stripe_payment_method_id,
	u.ultimo_login, u.sesiones_revocadas_en, u.created_at, u.updated_at,
	u.bloqueado, u.motivo_bloqueo, u.fecha_bloqueo, u.bloqueado_por, u.fecha_desbloqueo, u.desbloqueado_por`

const userFrom = ` FROM usuarios u JOIN roles r ON r.id_rol = u.id_rol`

// NewUser carries the fields accepted at registration.
type NewUser struct {
	Name            string
	PaternalSurname string
	MaternalSurname string
	Email           string
	Password        string
	RoleName        string
}

// UserRepo persists usuarios rows.
type UserRepo struct{ DB *sqlx.DB }

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{DB: db} }

// Create hashes the password, inserts the user and returns its ID.
func (r *UserRepo) Create(ctx context.Context, in NewUser, cost int) (uint64, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	hash, err := utils.HashPassword(in.Password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO usuarios (nombre, apellido_p, apellido_m, correo, password_hash, id_rol)
		 SELECT ?, ?, ?, ?, ?, id_rol FROM roles WHERE nombre = ?`,
		in.Name, in.PaternalSurname, in.MaternalSurname, email, hash, in.RoleName)
	if err != nil {
		if isDuplicate(err) {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, ErrNotFound // unknown role name
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

func (r *UserRepo) getOne(ctx context.Context, where string, arg any) (*model.User, error) {
	var u model.User
	if err := r.DB.GetContext(ctx, &u, "SELECT "+userColumns+userFrom+" WHERE "+where+" LIMIT 1", arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getOne(ctx, "u.correo = ?", strings.ToLower(strings.TrimSpace(email)))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	return r.getOne(ctx, "u.id_usuario = ?", id)
}

// TouchLogin stamps ultimo_login.
func (r *UserRepo) TouchLogin(ctx context.Context, id uint64, at time.Time) error {
	_, err := r.DB.ExecContext(ctx, "UPDATE usuarios SET ultimo_login = ? WHERE id_usuario = ?", at, id)
	return err
}

// SetGatewayCustomer stores customerID unless the user already has one and
// returns the id that is stored afterwards. Concurrent callers therefore
// agree on a single customer.
func (r *UserRepo) SetGatewayCustomer(ctx context.Context, id uint64, customerID string) (string, error) {
	if _, err := r.DB.ExecContext(ctx,
		"UPDATE usuarios SET stripe_customer_id = ? WHERE id_usuario = ? AND stripe_customer_id IS NULL",
		customerID, id); err != nil {
		return "", err
	}
	var stored sql.NullString
	if err := r.DB.GetContext(ctx, &stored,
		"SELECT stripe_customer_id FROM usuarios WHERE id_usuario = ?", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return stored.String, nil
}

// SetPaymentMethod stores or clears (nil) the saved gateway payment method.
func (r *UserRepo) SetPaymentMethod(ctx context.Context, id uint64, methodID *string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE usuarios SET stripe_payment_method_id = ? WHERE id_usuario = ?", methodID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Block flags the user as blocked, records who and why, stamps
// sesiones_revocadas_en and revokes every refresh token, all in one
// transaction. ErrStateUnchanged means the user was already blocked.
func (r *UserRepo) Block(ctx context.Context, id, actorID uint64, reason string, at time.Time) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
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
		`UPDATE usuarios
		 SET bloqueado = 1, motivo_bloqueo = ?, fecha_bloqueo = ?, bloqueado_por = ?,
		     fecha_desbloqueo = NULL, desbloqueado_por = NULL, sesiones_revocadas_en = ?
		 WHERE id_usuario = ? AND bloqueado = 0`,
		reason, at.Truncate(time.Second), actorID, at.Truncate(time.Millisecond), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrStateUnchanged
	}
	if _, err = tx.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at = ? WHERE user_id = ? AND revoked_at IS NULL",
		at.Truncate(time.Second), id); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// Unblock clears the block metadata and records who lifted it.
func (r *UserRepo) Unblock(ctx context.Context, id, actorID uint64, at time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE usuarios
		 SET bloqueado = 0, motivo_bloqueo = NULL, fecha_bloqueo = NULL, bloqueado_por = NULL,
		     fecha_desbloqueo = ?, desbloqueado_por = ?
		 WHERE id_usuario = ? AND bloqueado = 1`,
		at, actorID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrStateUnchanged
	}
	return nil
}

// Stats counts users by state and by role.
func (r *UserRepo) Stats(ctx context.Context) (model.UserStats, error) {
	var s model.UserStats
	if err := r.DB.GetContext(ctx, &s,
		`SELECT COUNT(*) AS total,
		        COALESCE(SUM(activo = 1), 0) AS activos,
		        COALESCE(SUM(activo = 0), 0) AS inactivos,
		        COALESCE(SUM(bloqueado = 1), 0) AS bloqueados
		 FROM usuarios`); err != nil {
		return s, err
	}
	s.ByRole = []model.LabelCount{}
	err := r.DB.SelectContext(ctx, &s.ByRole,
		`SELECT r.nombre AS etiqueta, COUNT(u.id_usuario) AS total
		 FROM roles r LEFT JOIN usuarios u ON u.id_rol = r.id_rol
		 GROUP BY r.id_rol, r.nombre ORDER BY r.id_rol`)
	return s, err
}
