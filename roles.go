package auth

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// Role is a single privilege level
type Role uint8

const (
	// RoleUser every identity holds it
	RoleUser Role = 1 << iota
	// RoleAdmin may modify plain users
	RoleAdmin
	// RoleOwner may modify anyone and manage roles
	RoleOwner
)

var roleNames = []struct {
	role Role
	name string
}{
	{RoleUser, "user"},
	{RoleAdmin, "admin"},
	{RoleOwner, "owner"},
}

// String returns the wire name of the role
func (r Role) String() string {
	for _, rn := range roleNames {
		if rn.role == r {
			return rn.name
		}
	}
	return fmt.Sprintf("role(%d)", uint8(r))
}

// ParseRole maps a wire name to a Role
func ParseRole(name string) (Role, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, rn := range roleNames {
		if rn.name == name {
			return rn.role, true
		}
	}
	return 0, false
}

// RoleSet is a bitset of roles
type RoleSet uint8

// NewRoleSet builds a set from roles
func NewRoleSet(roles ...Role) RoleSet {
	var s RoleSet
	for _, r := range roles {
		s |= RoleSet(r)
	}
	return s
}

// DefaultRoles is the role set assigned at signup
func DefaultRoles() RoleSet {
	return NewRoleSet(RoleUser)
}

// Has reports membership
func (s RoleSet) Has(r Role) bool {
	return s&RoleSet(r) != 0
}

// With returns a copy that includes r
func (s RoleSet) With(r Role) RoleSet {
	return s | RoleSet(r)
}

// Without returns a copy that excludes r
func (s RoleSet) Without(r Role) RoleSet {
	return s &^ RoleSet(r)
}

// Normalize makes sure the implicit user role is present
func (s RoleSet) Normalize() RoleSet {
	return s.With(RoleUser)
}

// IsOwner reports whether the set contains the owner role
func (s RoleSet) IsOwner() bool { return s.Has(RoleOwner) }

// IsAdmin reports whether the set contains the admin role
func (s RoleSet) IsAdmin() bool { return s.Has(RoleAdmin) }

// IsPrivileged reports admin or owner
func (s RoleSet) IsPrivileged() bool { return s.IsAdmin() || s.IsOwner() }

// Roles lists members in ascending privilege order
func (s RoleSet) Roles() []Role {
	out := make([]Role, 0, len(roleNames))
	for _, rn := range roleNames {
		if s.Has(rn.role) {
			out = append(out, rn.role)
		}
	}
	return out
}

// Strings lists member names
func (s RoleSet) Strings() []string {
	roles := s.Roles()
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = r.String()
	}
	return out
}

func (s RoleSet) String() string {
	return strings.Join(s.Strings(), ",")
}

// ParseRoleSet parses a comma separated list of role names
func ParseRoleSet(raw string) (RoleSet, error) {
	var s RoleSet
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		r, ok := ParseRole(part)
		if !ok {
			return 0, fmt.Errorf("unknown role %q", part)
		}
		s = s.With(r)
	}
	return s, nil
}

// Value implements driver.Valuer
func (s RoleSet) Value() (driver.Value, error) {
	return s.Normalize().String(), nil
}

// Scan implements sql.Scanner
func (s *RoleSet) Scan(src any) error {
	var raw string
	switch v := src.(type) {
	case nil:
		*s = DefaultRoles()
		return nil
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("cannot scan %T into RoleSet", src)
	}

	parsed, err := ParseRoleSet(raw)
	if err != nil {
		return err
	}
	*s = parsed.Normalize()
	return nil
}

// MarshalJSON renders the set as a list of names
func (s RoleSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Strings())
}

// UnmarshalJSON accepts a list of names
func (s *RoleSet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	parsed, err := ParseRoleSet(strings.Join(names, ","))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
