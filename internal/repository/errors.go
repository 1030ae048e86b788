// Package repository defines error values reused across repositories.
// Handlers and services compare against them with errors.Is and translate
// them into HTTP status codes.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when the addressed row does not exist.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a unique constraint rejects the write
// (duplicate favorite, second comment on the same place, reused charge id).
var ErrConflict = errors.New("conflict")

// ErrEmailExists is the ErrConflict of usuarios.correo.
var ErrEmailExists = errors.New("email already exists")

// ErrPlaceAlreadyActive is returned when the conditional activation update
// matched no inactive row.
var ErrPlaceAlreadyActive = errors.New("place already active")

// ErrStateUnchanged is returned by conditional block/unblock updates when
// the row is already in the requested state.
var ErrStateUnchanged = errors.New("already in requested state")

const mysqlDuplicateEntry = 1062

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
