package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type identities struct {
	db    bun.IDB
	guard *storeGuard
	now   func() time.Time
}

var _ IdentityStore = (*identities)(nil)

// NewIdentityStore returns a bun IdentityStore bound to db, which may be a
// *bun.DB or a bun.Tx
func NewIdentityStore(db bun.IDB) IdentityStore {
	return &identities{db: db, now: time.Now}
}

func (s *identities) FindByID(ctx context.Context, id uuid.UUID) (*User, error) {
	record := &User{}
	err := s.guard.run(func() error {
		err := s.db.NewSelect().
			Model(record).
			Where("?TableAlias.id = ?", id).
			Limit(1).
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return withMeta(ErrUserNotFound, map[string]any{"id": id.String()})
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (s *identities) Create(ctx context.Context, user *User) (*User, error) {
	if user == nil {
		return nil, withMeta(ErrUnprocessableInput, map[string]any{"reason": "user is required"})
	}
	prepareUserDefaults(user, s.now().UTC())

	err := s.guard.run(func() error {
		_, err := s.db.NewInsert().Model(user).Exec(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *identities) UpdateRoles(ctx context.Context, id uuid.UUID, roles RoleSet) (*User, error) {
	return s.update(ctx, id, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.Set("roles = ?", roles.Normalize())
	})
}

func (s *identities) UpdateProfile(ctx context.Context, id uuid.UUID, patch ProfilePatch) (*User, error) {
	if patch.Empty() {
		return nil, withMeta(ErrUnprocessableInput, map[string]any{"reason": "no fields to update"})
	}
	applied := &User{}
	patch.Apply(applied)

	return s.update(ctx, id, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		if patch.FirstName != nil {
			q = q.Set("first_name = ?", applied.FirstName)
		}
		if patch.LastName != nil {
			q = q.Set("last_name = ?", applied.LastName)
		}
		if patch.Email != nil {
			if applied.Email == "" {
				q = q.Set("email = NULL")
			} else {
				q = q.Set("email = ?", applied.Email)
			}
		}
		return q
	})
}

func (s *identities) Deactivate(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.update(ctx, id, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.Set("is_active = ?", false)
	})
}

func (s *identities) update(ctx context.Context, id uuid.UUID, apply func(*bun.UpdateQuery) *bun.UpdateQuery) (*User, error) {
	err := s.guard.run(func() error {
		q := s.db.NewUpdate().
			Model((*User)(nil)).
			Set("updated_at = ?", s.now().UTC()).
			Where("id = ?", id)

		res, err := apply(q).Exec(ctx)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return withMeta(ErrUserNotFound, map[string]any{"id": id.String()})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.FindByID(ctx, id)
}
