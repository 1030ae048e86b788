package model

import "time"

// Comment is a review left by a user on a place. One per user and place.
type Comment struct {
	ID         uint64    `db:"id_comentario" json:"id_comentario"`
	UserID     uint64    `db:"id_usuario" json:"id_usuario"`
	PlaceID    uint64    `db:"id_lugar" json:"id_lugar"`
	Content    string    `db:"contenido" json:"contenido"`
	Rating     uint8     `db:"valoracion" json:"valoracion"`
	AuthorName string    `db:"autor" json:"autor"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// RatingStats aggregates the comments of a place.
type RatingStats struct {
	PlaceID       uint64  `db:"id_lugar" json:"id_lugar"`
	Average       float64 `db:"promedio" json:"promedio_valoracion"`
	TotalComments int64   `db:"total" json:"total_comentarios"`
}

// Favorite links a user to a place they bookmarked.
type Favorite struct {
	ID        uint64    `db:"id_favorito" json:"id_favorito"`
	UserID    uint64    `db:"id_usuario" json:"id_usuario"`
	PlaceID   uint64    `db:"id_lugar" json:"id_lugar"`
	PlaceName string    `db:"nombre" json:"nombre"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// PlaceCount pairs a place with a count; used by favorite and visit rankings.
type PlaceCount struct {
	PlaceID uint64 `db:"id_lugar" json:"id_lugar"`
	Name    string `db:"nombre" json:"nombre"`
	Total   int64  `db:"total" json:"total"`
}
