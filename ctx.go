package auth

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

var userCtxKey = &contextKey{"user"}

// LocalsUserKey is the fiber Locals key holding the resolved *User
const LocalsUserKey = "auth.user"

type contextKey struct {
	name string
}

// WithContext sets the User in the given context
func WithContext(r context.Context, user *User) context.Context {
	return context.WithValue(r, userCtxKey, user)
}

// FromContext finds the user from the context.
func FromContext(ctx context.Context) (*User, bool) {
	raw, ok := ctx.Value(userCtxKey).(*User)
	return raw, ok && raw != nil
}

// CurrentUser returns the user resolved by the session middleware
func CurrentUser(c *fiber.Ctx) (*User, bool) {
	raw, ok := c.Locals(LocalsUserKey).(*User)
	if ok && raw != nil {
		return raw, true
	}
	return FromContext(c.UserContext())
}
