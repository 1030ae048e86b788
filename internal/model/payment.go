package model

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Amount is a money value in minor currency units. The database stores it
// as DECIMAL(10,2) and JSON renders it in major units (10000 -> 100.00).
type Amount int64

// String renders the amount as a two-decimal string.
func (a Amount) String() string {
	sign := ""
	v := int64(a)
	if v < 0 {
		sign, v = "-", -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// ParseAmount parses a decimal string such as "100", "100.5" or "100.00".
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	if len(frac) > 2 {
		return 0, fmt.Errorf("amount %q has more than two decimals", s)
	}
	for len(frac) < 2 {
		frac += "0"
	}
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("amount %q: %w", s, err)
	}
	f, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("amount %q: %w", s, err)
	}
	v := w*100 + f
	if neg {
		v = -v
	}
	return Amount(v), nil
}

// AmountFromMajor converts a major-unit float (as sent by clients in
// "monto") to minor units, rounding to the nearest cent.
func AmountFromMajor(v float64) Amount {
	if v < 0 {
		return Amount(v*100 - 0.5)
	}
	return Amount(v*100 + 0.5)
}

func (a Amount) MarshalJSON() ([]byte, error) { return []byte(a.String()), nil }

// Value implements driver.Valuer.
func (a Amount) Value() (driver.Value, error) { return a.String(), nil }

// Scan implements sql.Scanner.
func (a *Amount) Scan(src any) error {
	switch v := src.(type) {
	case []byte:
		p, err := ParseAmount(string(v))
		*a = p
		return err
	case string:
		p, err := ParseAmount(v)
		*a = p
		return err
	case int64:
		*a = Amount(v * 100)
		return nil
	case float64:
		*a = AmountFromMajor(v)
		return nil
	}
	return errors.New("monto: unsupported column type")
}

// PaymentKind distinguishes a charge the payer confirmed in the request
// from an off-session charge against a saved card.
type PaymentKind string

const (
	KindManual    PaymentKind = "manual"
	KindDomiciled PaymentKind = "domiciliado"
)

// Ledger statuses written locally. Verification may store any other
// gateway status verbatim.
const (
	StatusSucceeded         = "succeeded"
	StatusPartiallyRefunded = "partially_refunded"
	StatusRefunded          = "refunded"
)

// Payment is one ledger entry (pagos table).
type Payment struct {
	ID             uint64      `db:"id_pago" json:"id_pago"`
	UserID         uint64      `db:"id_usuario" json:"id_usuario"`
	PlaceID        uint64      `db:"id_lugar" json:"id_lugar"`
	MethodID       uint64      `db:"id_metodo_pago" json:"id_metodo_pago"`
	Amount         Amount      `db:"monto" json:"monto"`
	Currency       string      `db:"moneda" json:"moneda"`
	PaidAt         time.Time   `db:"fecha_pago" json:"fecha_pago"`
	ExternalID     *string     `db:"stripe_payment_intent_id" json:"stripe_payment_intent_id"`
	Status         string      `db:"stripe_status" json:"stripe_status"`
	Kind           PaymentKind `db:"tipo_pago" json:"tipo_pago"`
	RefundID       *string     `db:"stripe_refund_id" json:"stripe_refund_id,omitempty"`
	RefundedAmount *Amount     `db:"monto_reembolsado" json:"monto_reembolsado,omitempty"`
	RefundReason   *string     `db:"motivo_reembolso" json:"motivo_reembolso,omitempty"`
	RefundedAt     *time.Time  `db:"fecha_reembolso" json:"fecha_reembolso,omitempty"`
}

// ExternalRef returns the gateway charge id or "".
func (p *Payment) ExternalRef() string { return deref(p.ExternalID) }

// FullyRefunded reports whether no amount of the charge remains.
func (p *Payment) FullyRefunded() bool { return p.Status == StatusRefunded }

// PaymentMethodOption is a row of the metodos_pago catalog.
type PaymentMethodOption struct {
	ID          uint64  `db:"id_metodo_pago" json:"id_metodo_pago"`
	Name        string  `db:"nombre" json:"nombre"`
	Description *string `db:"descripcion" json:"descripcion"`
	Active      bool    `db:"activo" json:"activo"`
}
