package model

import "time"

// Visit is one raw visit event.
type Visit struct {
	ID      uint64    `db:"id" json:"id"`
	PlaceID uint64    `db:"id_lugar" json:"id_lugar"`
	UserID  *uint64   `db:"id_usuario" json:"id_usuario"`
	Seconds uint32    `db:"tiempo_visita" json:"tiempo_visita"`
	At      time.Time `db:"fecha" json:"fecha"`
	Day     time.Time `db:"fecha_dia" json:"fecha_dia"`
}

// VisitTotals is the aggregate row shared by the per-place, per-advertiser
// and global summaries.
type VisitTotals struct {
	Visits         int64   `db:"total_visitas" json:"total_visitas"`
	UniqueUsers    int64   `db:"usuarios_unicos" json:"usuarios_unicos"`
	AnonymousVisit int64   `db:"visitas_anonimas" json:"visitas_anonimas"`
	AverageSeconds float64 `db:"tiempo_promedio" json:"tiempo_promedio"`
	TotalSeconds   int64   `db:"tiempo_total" json:"tiempo_total"`
}

// DailyVisits is one day of a visit series.
type DailyVisits struct {
	Day            time.Time `db:"fecha" json:"fecha"`
	Visits         int64     `db:"visitas" json:"visitas"`
	AverageSeconds float64   `db:"tiempo_promedio" json:"tiempo_promedio"`
}

// PlaceVisitSummary is the visit report of a single place.
type PlaceVisitSummary struct {
	PlaceID uint64        `json:"id_lugar"`
	Name    string        `json:"nombre"`
	Totals  VisitTotals   `json:"resumen"`
	Daily   []DailyVisits `json:"visitas_por_dia"`
}

// PlaceVisitRow is a per-place line in an advertiser report.
type PlaceVisitRow struct {
	PlaceID        uint64  `db:"id_lugar" json:"id_lugar"`
	Name           string  `db:"nombre" json:"nombre"`
	Visits         int64   `db:"total_visitas" json:"total_visitas"`
	UniqueUsers    int64   `db:"usuarios_unicos" json:"usuarios_unicos"`
	AverageSeconds float64 `db:"tiempo_promedio" json:"tiempo_promedio"`
}

// AdvertiserVisitSummary is the visit report across the places of one owner.
type AdvertiserVisitSummary struct {
	UserID   uint64          `json:"id_usuario"`
	Places   int             `json:"total_lugares"`
	Totals   VisitTotals     `json:"resumen"`
	PerPlace []PlaceVisitRow `json:"visitas_por_lugar"`
	Daily    []DailyVisits   `json:"visitas_por_dia"`
}

// VisitOverview is the administrator's global report.
type VisitOverview struct {
	Totals VisitTotals   `json:"resumen"`
	Daily  []DailyVisits `json:"visitas_por_dia"`
	Top    []PlaceCount  `json:"lugares_populares"`
}

// LabelCount is a count grouped by a label (role, category).
type LabelCount struct {
	Label string `db:"etiqueta" json:"etiqueta"`
	Total int64  `db:"total" json:"total"`
}

// UserStats is the administrator's user breakdown.
type UserStats struct {
	Total    int64        `db:"total" json:"total"`
	Active   int64        `db:"activos" json:"activos"`
	Inactive int64        `db:"inactivos" json:"inactivos"`
	Blocked  int64        `db:"bloqueados" json:"bloqueados"`
	ByRole   []LabelCount `db:"-" json:"por_rol"`
}

// PlaceStats is the administrator's place breakdown.
type PlaceStats struct {
	Total      int64        `db:"total" json:"total"`
	Active     int64        `db:"activos" json:"activos"`
	Inactive   int64        `db:"inactivos" json:"inactivos"`
	Blocked    int64        `db:"bloqueados" json:"bloqueados"`
	Visible    int64        `db:"visibles" json:"visibles"`
	ByCategory []LabelCount `db:"-" json:"por_categoria"`
}
