package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// ServiceDays is the JSON array stored in lugares.dias_servicio.
type ServiceDays []string

// Value implements driver.Valuer.
func (d ServiceDays) Value() (driver.Value, error) {
	if d == nil {
		return nil, nil
	}
	b, err := json.Marshal([]string(d))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (d *ServiceDays) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = nil
		return nil
	case []byte:
		return json.Unmarshal(v, (*[]string)(d))
	case string:
		return json.Unmarshal([]byte(v), (*[]string)(d))
	}
	return errors.New("dias_servicio: unsupported column type")
}

// Place mirrors the lugares table.
//
// Active is the existence/paid flag, Blocked the moderation flag. Public
// reads must go through Visible (or the SQL clause in the repository that
// expresses the same predicate), never through either flag alone.
type Place struct {
	ID                  uint64      `db:"id_lugar" json:"id_lugar"`
	Name                string      `db:"nombre" json:"nombre"`
	Description         *string     `db:"descripcion" json:"descripcion"`
	ServiceDays         ServiceDays `db:"dias_servicio" json:"dias_servicio"`
	Phone               *string     `db:"num_telefonico" json:"num_telefonico"`
	OpensAt             *string     `db:"horario_apertura" json:"horario_apertura"`
	ClosesAt            *string     `db:"horario_cierre" json:"horario_cierre"`
	Website             *string     `db:"pagina_web" json:"paginaWeb"`
	CategoryID          uint64      `db:"id_categoria" json:"id_categoria"`
	AddressID           uint64      `db:"id_direccion" json:"id_direccion"`
	OwnerID             uint64      `db:"id_usuario" json:"id_usuario"`
	Active              bool        `db:"activo" json:"activo"`
	ActivatedAt         *time.Time  `db:"fecha_activacion" json:"fecha_activacion"`
	ActivatingPaymentID *uint64     `db:"activado_por_pago_id" json:"activado_por_pago_id"`
	CreatedAt           time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time   `db:"updated_at" json:"updated_at"`
	BlockState
}

// Visible reports whether the place may appear on public read paths: it
// exists, has been paid for and is not blocked.
func (p *Place) Visible() bool {
	return p.Active && !p.Blocked && p.ActivatedAt != nil
}

// Address mirrors the direcciones table.
type Address struct {
	ID             uint64  `db:"id_direccion" json:"id_direccion"`
	Street         string  `db:"calle" json:"calle"`
	InteriorNumber *string `db:"numero_int" json:"numero_int"`
	ExteriorNumber string  `db:"numero_ext" json:"numero_ext"`
	Neighborhood   string  `db:"colonia" json:"colonia"`
	PostalCode     string  `db:"codigo_postal" json:"codigo_postal"`
}

// Category mirrors the categorias table.
type Category struct {
	ID          uint64  `db:"id_categoria" json:"id_categoria"`
	Name        string  `db:"nombre" json:"nombre"`
	Description *string `db:"descripcion" json:"descripcion"`
}

// Image is a stored picture of a place. ObjectKey addresses the blob in
// object storage.
type Image struct {
	ID          uint64    `db:"id_imagen" json:"id_imagen"`
	PlaceID     uint64    `db:"id_lugar" json:"id_lugar"`
	ObjectKey   string    `db:"object_key" json:"-"`
	URL         string    `db:"url" json:"url"`
	ContentType string    `db:"content_type" json:"content_type"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
