package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Logger is the logging surface used across the package. Arguments after
// msg are key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetSigningMethod() string
	GetIssuer() string
	GetAccessTokenTTL() time.Duration
	GetRefreshTokenTTL() time.Duration
	GetAccessCookieName() string
	GetRefreshCookieName() string
	GetCookieSecure() bool
	GetAllowDirectIssuance() bool
}

// Principal is the view of an identity the permission policy needs
type Principal interface {
	PrincipalID() uuid.UUID
	PrincipalRoles() RoleSet
}

// IdentityStore persists users
type IdentityStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	Create(ctx context.Context, user *User) (*User, error)
	UpdateRoles(ctx context.Context, id uuid.UUID, roles RoleSet) (*User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, patch ProfilePatch) (*User, error)
	Deactivate(ctx context.Context, id uuid.UUID) (*User, error)
}

// PendingStore persists pending registrations. Retire must delete the
// record only if it still exists and report ErrPendingNotFound otherwise.
type PendingStore interface {
	Create(ctx context.Context, record *PendingRegistration) (*PendingRegistration, error)
	Find(ctx context.Context, id uuid.UUID) (*PendingRegistration, error)
	Retire(ctx context.Context, id uuid.UUID) error
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}

// RepositoryManager exposes the stores and their transactional boundary.
// Stores handed to fn are bound to the same unit of work.
type RepositoryManager interface {
	Identities() IdentityStore
	Pending() PendingStore
	RunInTx(ctx context.Context, fn func(ctx context.Context, repos RepositoryManager) error) error
}

// CodeSender delivers verification codes
type CodeSender interface {
	SendCode(ctx context.Context, phone, code string) error
}

// CodeSenderFunc adapts a function to the CodeSender interface.
type CodeSenderFunc func(ctx context.Context, phone, code string) error

// SendCode implements CodeSender.
func (f CodeSenderFunc) SendCode(ctx context.Context, phone, code string) error {
	return f(ctx, phone, code)
}

type defLogger struct{}

func (d defLogger) Error(msg string, args ...any) {
	fmt.Print("[ERR] AUTH " + format(msg, args...))
}

func (d defLogger) Warn(msg string, args ...any) {
	fmt.Print("[WRN] AUTH " + format(msg, args...))
}

func (d defLogger) Info(msg string, args ...any) {
	fmt.Print("[INF] AUTH " + format(msg, args...))
}

func (d defLogger) Debug(msg string, args ...any) {
	fmt.Print("[DBG] AUTH " + format(msg, args...))
}

func format(msg string, args ...any) string {
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
		} else {
			fmt.Fprintf(&b, " %v", args[i])
		}
	}
	b.WriteString("\n")
	return b.String()
}

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return defLogger{}
	}
	return l
}
