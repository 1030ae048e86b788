package model

import "time"

// BlockState is the moderation metadata shared by users and places. Blocked
// is independent of the entity's active flag.
type BlockState struct {
	Blocked     bool       `db:"bloqueado" json:"bloqueado"`
	BlockReason *string    `db:"motivo_bloqueo" json:"motivo_bloqueo,omitempty"`
	BlockedAt   *time.Time `db:"fecha_bloqueo" json:"fecha_bloqueo,omitempty"`
	BlockedBy   *uint64    `db:"bloqueado_por" json:"bloqueado_por,omitempty"`
	UnblockedAt *time.Time `db:"fecha_desbloqueo" json:"fecha_desbloqueo,omitempty"`
	UnblockedBy *uint64    `db:"desbloqueado_por" json:"desbloqueado_por,omitempty"`
}

// User mirrors the usuarios table joined with roles.nombre. Gateway
// references and the password hash never leave the process.
type User struct {
	ID                uint64     `db:"id_usuario" json:"id_usuario"`
	Name              string     `db:"nombre" json:"nombre"`
	PaternalSurname   string     `db:"apellido_p" json:"apellidoP"`
	MaternalSurname   string     `db:"apellido_m" json:"apellidoM"`
	Email             string     `db:"correo" json:"correo"`
	PasswordHash      string     `db:"password_hash" json:"-"`
	RoleID            uint8      `db:"id_rol" json:"id_rol"`
	RoleName          string     `db:"rol" json:"rol"`
	Active            bool       `db:"activo" json:"activo"`
	GatewayCustomerID *string    `db:"stripe_customer_id" json:"-"`
	PaymentMethodID   *string    `db:"stripe_payment_method_id" json:"-"`
	LastLoginAt       *time.Time `db:"ultimo_login" json:"ultimo_login,omitempty"`
	SessionsRevokedAt *time.Time `db:"sesiones_revocadas_en" json:"-"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
	BlockState
}

// Role resolves the user's role name.
func (u *User) Role() Role { return ParseRole(u.RoleName) }

// Usable reports whether the account may authenticate.
func (u *User) Usable() bool { return u.Active && !u.Blocked }

// CustomerRef returns the gateway customer id or "".
func (u *User) CustomerRef() string { return deref(u.GatewayCustomerID) }

// SavedMethodRef returns the saved gateway payment method id or "".
func (u *User) SavedMethodRef() string { return deref(u.PaymentMethodID) }

// RefreshToken is a row of refresh_tokens. Only the SHA-256 of the raw
// token is stored.
type RefreshToken struct {
	ID        uint64     `db:"id"`
	UserID    uint64     `db:"user_id"`
	TokenHash string     `db:"token_hash"`
	ExpiresAt time.Time  `db:"expires_at"`
	RevokedAt *time.Time `db:"revoked_at"`
	CreatedAt time.Time  `db:"created_at"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
