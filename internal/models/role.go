package models

import "strings"

// Role of a chat participant.
type Role string

const (
	RoleUser          Role = "user"
	RoleModerator     Role = "moderator"
	RoleAdministrator Role = "administrator"
)

// ParseRole folds case so that "Administrator" and "administrator" are the
// same role. Unknown values fall back to the regular user role.
func ParseRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "moderator":
		return RoleModerator
	case "administrator", "admin":
		return RoleAdministrator
	default:
		return RoleUser
	}
}

// IsSupport reports whether the role may see every conversation rather than
// only its own.
func (r Role) IsSupport() bool {
	return r == RoleModerator || r == RoleAdministrator
}
