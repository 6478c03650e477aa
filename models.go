package auth

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the identity model
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	FirstName     string     `bun:"first_name,notnull" json:"first_name"`
	LastName      string     `bun:"last_name,notnull" json:"last_name"`
	Phone         string     `bun:"phone_number,notnull" json:"phone_number"`
	Email         string     `bun:"email,nullzero,unique" json:"email,omitempty"`
	Roles         RoleSet    `bun:"roles,notnull,type:varchar(64)" json:"roles"`
	Active        bool       `bun:"is_active,notnull" json:"is_active"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at,omitempty"`
}

var _ Principal = (*User)(nil)

// PrincipalID implements Principal
func (u *User) PrincipalID() uuid.UUID {
	if u == nil {
		return uuid.Nil
	}
	return u.ID
}

// PrincipalRoles implements Principal
func (u *User) PrincipalRoles() RoleSet {
	if u == nil {
		return 0
	}
	return u.Roles
}

// FullName joins first and last name
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// PendingRegistration is a signup waiting for its verification code
type PendingRegistration struct {
	bun.BaseModel `bun:"table:pending_registrations,alias:pr"`
	ID            uuid.UUID `bun:"id,pk,type:uuid" json:"pair_id"`
	Phone         string    `bun:"phone_number,notnull" json:"phone_number"`
	FirstName     string    `bun:"first_name,notnull" json:"first_name"`
	LastName      string    `bun:"last_name,notnull" json:"last_name"`
	CodeHash      string    `bun:"code_hash,notnull" json:"-"`
	CreatedAt     time.Time `bun:"created_at,notnull" json:"created_at"`
	ExpiresAt     time.Time `bun:"expires_at,notnull" json:"expires_at"`
}

// Expired reports whether the record is past its deadline at now
func (p *PendingRegistration) Expired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}

// ProfilePatch holds the optional fields of a profile update
type ProfilePatch struct {
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Email     *string `json:"email,omitempty"`
}

// Empty reports a patch that would change nothing
func (p ProfilePatch) Empty() bool {
	return p.FirstName == nil && p.LastName == nil && p.Email == nil
}

// Apply copies the set fields onto u
func (p ProfilePatch) Apply(u *User) {
	if p.FirstName != nil {
		u.FirstName = strings.TrimSpace(*p.FirstName)
	}
	if p.LastName != nil {
		u.LastName = strings.TrimSpace(*p.LastName)
	}
	if p.Email != nil {
		u.Email = strings.TrimSpace(*p.Email)
	}
}

func prepareUserDefaults(u *User, now time.Time) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.Roles = u.Roles.Normalize()
	if u.CreatedAt == nil {
		t := now
		u.CreatedAt = &t
	}
	if u.UpdatedAt == nil {
		t := now
		u.UpdatedAt = &t
	}
}
