package roles

import "strings"

// Role is the closed set of account roles the API reports.
type Role int

const (
	Unknown Role = iota
	User
	Admin
	SuperAdmin
)

func Parse(s string) Role {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "USER":
		return User
	case "ADMIN":
		return Admin
	case "SUPERADMIN":
		return SuperAdmin
	default:
		return Unknown
	}
}

// OrUser maps a missing or unrecognised role to User.
func OrUser(s string) Role {
	if r := Parse(s); r != Unknown {
		return r
	}
	return User
}

func (r Role) String() string {
	switch r {
	case User:
		return "USER"
	case Admin:
		return "ADMIN"
	case SuperAdmin:
		return "SUPERADMIN"
	default:
		return ""
	}
}

func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(b []byte) error {
	*r = Parse(string(b))
	return nil
}

// CanSeeAdminFields gates admin-only columns, tables and actions.
func CanSeeAdminFields(r Role) bool {
	switch r {
	case Admin, SuperAdmin:
		return true
	case User, Unknown:
		return false
	}
	return false
}

// CanEditUsers reports whether r may edit other accounts.
func CanEditUsers(r Role) bool {
	return r == SuperAdmin
}
