package model

import (
	"encoding/json"
	"strings"
)

// Role is the closed set of privilege levels. It is resolved once from the
// roles.nombre column when a request is authenticated; call sites use the
// methods below rather than comparing names.
type Role uint8

const (
	RoleUser Role = iota
	RoleAdvertiser
	RoleAdministrator
)

// Role names as stored in the roles table.
const (
	RoleNameUser          = "usuario"
	RoleNameAdvertiser    = "anunciante"
	RoleNameAdministrator = "administrador"
)

// ParseRole maps a role name to a Role, case-insensitively. Unknown names
// resolve to RoleUser.
func ParseRole(name string) Role {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case RoleNameAdministrator:
		return RoleAdministrator
	case RoleNameAdvertiser:
		return RoleAdvertiser
	default:
		return RoleUser
	}
}

func (r Role) String() string {
	switch r {
	case RoleAdministrator:
		return RoleNameAdministrator
	case RoleAdvertiser:
		return RoleNameAdvertiser
	default:
		return RoleNameUser
	}
}

// IsAdmin reports whether r is the administrator role.
func (r Role) IsAdmin() bool { return r == RoleAdministrator }

// CanAdvertise reports whether r may create places and refund their payments.
func (r Role) CanAdvertise() bool { return r == RoleAdvertiser || r == RoleAdministrator }

// CanModerate reports whether an actor with role r may block a target with
// role target. Administrators cannot act on peers.
func (r Role) CanModerate(target Role) bool {
	return r == RoleAdministrator && target != RoleAdministrator
}

func (r Role) MarshalJSON() ([]byte, error) { return json.Marshal(r.String()) }

// Principal is the authenticated caller attached to a request.
type Principal struct {
	ID   uint64
	Role Role
}
