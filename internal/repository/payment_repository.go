package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/directorio-lugares/internal/model"
)

const paymentColumns = `id_pago, id_usuario, id_lugar, id_metodo_pago, monto, moneda, fecha_pago,
	stripe_payment_intent_id, stripe_status, tipo_pago, stripe_refund_id, monto_reembolsado,
	motivo_reembolso, fecha_reembolso`

// RefundRecord describes the local effect of a gateway refund.
type RefundRecord struct {
	PaymentID uint64
	PlaceID   uint64
	RefundID  string
	Amount    model.Amount // amount refunded by this call
	Reason    string
	At        time.Time
}

// RefundOutcome is what RecordRefund derived from the locked ledger row.
type RefundOutcome struct {
	Status      string       // model.StatusRefunded or model.StatusPartiallyRefunded
	Refunded    model.Amount // accumulated refunded amount after this call
	Deactivated bool
}

// PaymentRepo is the payment ledger.
type PaymentRepo struct{ db *sqlx.DB }

func NewPaymentRepo(db *sqlx.DB) *PaymentRepo { return &PaymentRepo{db: db} }

// RecordActivation writes the ledger entry for a successful charge and
// activates its place in one transaction. The place update is conditional
// on the place still being inactive; when no row matches the transaction
// is rolled back and ErrPlaceAlreadyActive returned. A reused external
// charge id yields ErrConflict. On success p.ID and p.PaidAt are set and
// the activated place is returned.
func (r *PaymentRepo) RecordActivation(ctx context.Context, p *model.Payment) (*model.Place, error) {
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

	res, err := tx.ExecContext(ctx,
		`INSERT INTO pagos (id_usuario, id_lugar, id_metodo_pago, monto, moneda, fecha_pago,
		   stripe_payment_intent_id, stripe_status, tipo_pago)
		 VALUES (?,?,?,?,?,?,?,?,?)`,
		p.UserID, p.PlaceID, p.MethodID, p.Amount, p.Currency, p.PaidAt, p.ExternalID, p.Status, p.Kind)
	if err != nil {
		if isDuplicate(err) {
			return nil, fmt.Errorf("ledger insert: %w", ErrConflict)
		}
		return nil, fmt.Errorf("ledger insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	p.ID = uint64(id)

	res, err = tx.ExecContext(ctx,
		`UPDATE lugares SET activo = 1, fecha_activacion = ?, activado_por_pago_id = ?
		 WHERE id_lugar = ? AND activo = 0`,
		p.PaidAt, p.ID, p.PlaceID)
	if err != nil {
		return nil, fmt.Errorf("activate place: %w", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return nil, ErrPlaceAlreadyActive
	}

	var place model.Place
	if err := tx.GetContext(ctx, &place, "SELECT "+placeColumns+" FROM lugares l WHERE l.id_lugar = ?", p.PlaceID); err != nil {
		return nil, fmt.Errorf("reload place: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit activation: %w", err)
	}
	committed = true
	return &place, nil
}

// RecordRefund adds rec.Amount to the entry's refunded total and, once the
// total covers the charge, marks it refunded and deactivates the place it
// activated. Status and deactivation are derived from the row as locked
// inside the transaction. Blocking fields are never touched.
func (r *PaymentRepo) RecordRefund(ctx context.Context, rec RefundRecord) (RefundOutcome, error) {
	var out RefundOutcome
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return out, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var row struct {
		Amount   model.Amount `db:"monto"`
		Refunded model.Amount `db:"reembolsado"`
	}
	if err := tx.GetContext(ctx, &row,
		"SELECT monto, COALESCE(monto_reembolsado, 0) AS reembolsado FROM pagos WHERE id_pago = ? FOR UPDATE",
		rec.PaymentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return out, ErrNotFound
		}
		return out, fmt.Errorf("lock ledger entry: %w", err)
	}

	out.Refunded = row.Refunded + rec.Amount
	full := out.Refunded >= row.Amount
	out.Status = model.StatusPartiallyRefunded
	if full {
		out.Status = model.StatusRefunded
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE pagos
		 SET stripe_status = ?, stripe_refund_id = ?, motivo_reembolso = ?, fecha_reembolso = ?,
		     monto_reembolsado = ?
		 WHERE id_pago = ?`,
		out.Status, rec.RefundID, rec.Reason, rec.At, out.Refunded, rec.PaymentID); err != nil {
		return out, fmt.Errorf("ledger refund: %w", err)
	}

	if full {
		res, err := tx.ExecContext(ctx,
			"UPDATE lugares SET activo = 0 WHERE id_lugar = ? AND activado_por_pago_id = ? AND activo = 1",
			rec.PlaceID, rec.PaymentID)
		if err != nil {
			return out, fmt.Errorf("deactivate place: %w", err)
		}
		n, _ := res.RowsAffected()
		out.Deactivated = n == 1
	}
	if err := tx.Commit(); err != nil {
		return out, fmt.Errorf("commit refund: %w", err)
	}
	committed = true
	return out, nil
}

func (r *PaymentRepo) getOne(ctx context.Context, where string, arg any) (*model.Payment, error) {
	var p model.Payment
	if err := r.db.GetContext(ctx, &p, "SELECT "+paymentColumns+" FROM pagos WHERE "+where+" LIMIT 1", arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// GetByID fetches a ledger entry.
func (r *PaymentRepo) GetByID(ctx context.Context, id uint64) (*model.Payment, error) {
	return r.getOne(ctx, "id_pago = ?", id)
}

// GetByExternalID fetches the ledger entry of a gateway charge.
func (r *PaymentRepo) GetByExternalID(ctx context.Context, externalID string) (*model.Payment, error) {
	return r.getOne(ctx, "stripe_payment_intent_id = ?", externalID)
}

// ListByUser returns a user's entries, newest first.
func (r *PaymentRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Payment, error) {
	out := []model.Payment{}
	err := r.db.SelectContext(ctx, &out,
		"SELECT "+paymentColumns+" FROM pagos WHERE id_usuario = ? ORDER BY fecha_pago DESC, id_pago DESC", userID)
	return out, err
}

// UpdateStatus overwrites the stored gateway status.
func (r *PaymentRepo) UpdateStatus(ctx context.Context, id uint64, status string) error {
	res, err := r.db.ExecContext(ctx, "UPDATE pagos SET stripe_status = ? WHERE id_pago = ?", status, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// MethodRepo reads the metodos_pago catalog.
type MethodRepo struct{ db *sqlx.DB }

func NewMethodRepo(db *sqlx.DB) *MethodRepo { return &MethodRepo{db: db} }

// ListActive returns the selectable payment methods.
func (r *MethodRepo) ListActive(ctx context.Context) ([]model.PaymentMethodOption, error) {
	out := []model.PaymentMethodOption{}
	err := r.db.SelectContext(ctx, &out,
		"SELECT id_metodo_pago, nombre, descripcion, activo FROM metodos_pago WHERE activo = 1 ORDER BY id_metodo_pago")
	return out, err
}

// Exists reports whether an active catalog entry with id exists.
func (r *MethodRepo) Exists(ctx context.Context, id uint64) (bool, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM metodos_pago WHERE id_metodo_pago = ? AND activo = 1", id); err != nil {
		return false, err
	}
	return n > 0, nil
}
