// Package memstore provides an in-memory auth.RepositoryManager for tests
// and single process development servers.
package memstore

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	auth "github.com/goliatone/go-phone-auth"
)

type state struct {
	users   map[uuid.UUID]auth.User
	pending map[uuid.UUID]auth.PendingRegistration
}

func (s *state) clone() *state {
	out := &state{
		users:   make(map[uuid.UUID]auth.User, len(s.users)),
		pending: make(map[uuid.UUID]auth.PendingRegistration, len(s.pending)),
	}
	for k, v := range s.users {
		out.users[k] = v
	}
	for k, v := range s.pending {
		out.pending[k] = v
	}
	return out
}

// Store is a RepositoryManager holding everything in maps. RunInTx holds
// the store lock for the whole unit of work and discards changes when fn
// returns an error.
type Store struct {
	mu   sync.Mutex
	data *state
	now  func() time.Time
}

// Option configures a Store
type Option func(*Store)

// WithClock sets the clock used for created/updated timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates an empty store
func New(opts ...Option) *Store {
	s := &Store{
		data: &state{
			users:   map[uuid.UUID]auth.User{},
			pending: map[uuid.UUID]auth.PendingRegistration{},
		},
		now: time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

var _ auth.RepositoryManager = (*Store)(nil)

func (s *Store) Identities() auth.IdentityStore {
	return &identities{view: s.lockedView()}
}

func (s *Store) Pending() auth.PendingStore {
	return &pending{view: s.lockedView()}
}

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, repos auth.RepositoryManager) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.data.clone()
	tx := &txManager{view: &view{data: work, now: s.now}}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	s.data = work
	return nil
}

// Len returns the number of users and pending registrations
func (s *Store) Len() (users, pending int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data.users), len(s.data.pending)
}

func (s *Store) lockedView() *view {
	return &view{store: s, now: s.now}
}

// view reads and writes either the live state under the store lock or a
// transaction's working copy, which the caller already holds the lock for.
type view struct {
	store *Store
	data  *state
	now   func() time.Time
}

func (v *view) with(fn func(d *state) error) error {
	if v.store != nil {
		v.store.mu.Lock()
		defer v.store.mu.Unlock()
		return fn(v.store.data)
	}
	return fn(v.data)
}

type txManager struct {
	view *view
}

func (t *txManager) Identities() auth.IdentityStore { return &identities{view: t.view} }
func (t *txManager) Pending() auth.PendingStore     { return &pending{view: t.view} }

func (t *txManager) RunInTx(ctx context.Context, fn func(ctx context.Context, repos auth.RepositoryManager) error) error {
	return fn(ctx, t)
}

type identities struct {
	view *view
}

func (i *identities) FindByID(_ context.Context, id uuid.UUID) (*auth.User, error) {
	var out *auth.User
	err := i.view.with(func(d *state) error {
		u, ok := d.users[id]
		if !ok {
			return auth.ErrUserNotFound
		}
		out = &u
		return nil
	})
	return out, err
}

func (i *identities) Create(_ context.Context, user *auth.User) (*auth.User, error) {
	if user == nil {
		return nil, auth.ErrUnprocessableInput
	}
	err := i.view.with(func(d *state) error {
		if user.ID == uuid.Nil {
			user.ID = uuid.New()
		}
		if _, ok := d.users[user.ID]; ok {
			return auth.ErrIdentityConflict
		}
		if user.Email != "" {
			for _, other := range d.users {
				if strings.EqualFold(other.Email, user.Email) {
					return auth.ErrIdentityConflict
				}
			}
		}
		now := i.view.now().UTC()
		user.Roles = user.Roles.Normalize()
		if user.CreatedAt == nil {
			user.CreatedAt = &now
		}
		if user.UpdatedAt == nil {
			user.UpdatedAt = &now
		}
		d.users[user.ID] = *user
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (i *identities) UpdateRoles(ctx context.Context, id uuid.UUID, roles auth.RoleSet) (*auth.User, error) {
	return i.update(id, func(_ *state, u *auth.User) error {
		u.Roles = roles.Normalize()
		return nil
	})
}

func (i *identities) UpdateProfile(ctx context.Context, id uuid.UUID, patch auth.ProfilePatch) (*auth.User, error) {
	if patch.Empty() {
		return nil, auth.ErrUnprocessableInput
	}
	return i.update(id, func(d *state, u *auth.User) error {
		patch.Apply(u)
		if u.Email == "" {
			return nil
		}
		for otherID, other := range d.users {
			if otherID != id && strings.EqualFold(other.Email, u.Email) {
				return auth.ErrIdentityConflict
			}
		}
		return nil
	})
}

func (i *identities) Deactivate(ctx context.Context, id uuid.UUID) (*auth.User, error) {
	return i.update(id, func(_ *state, u *auth.User) error {
		u.Active = false
		return nil
	})
}

func (i *identities) update(id uuid.UUID, fn func(*state, *auth.User) error) (*auth.User, error) {
	var out *auth.User
	err := i.view.with(func(d *state) error {
		u, ok := d.users[id]
		if !ok {
			return auth.ErrUserNotFound
		}
		if err := fn(d, &u); err != nil {
			return err
		}
		now := i.view.now().UTC()
		u.UpdatedAt = &now
		d.users[id] = u
		out = &u
		return nil
	})
	return out, err
}

type pending struct {
	view *view
}

func (p *pending) Create(_ context.Context, record *auth.PendingRegistration) (*auth.PendingRegistration, error) {
	if record == nil {
		return nil, auth.ErrUnprocessableInput
	}
	err := p.view.with(func(d *state) error {
		if record.ID == uuid.Nil {
			record.ID = uuid.New()
		}
		d.pending[record.ID] = *record
		return nil
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (p *pending) Find(_ context.Context, id uuid.UUID) (*auth.PendingRegistration, error) {
	var out *auth.PendingRegistration
	err := p.view.with(func(d *state) error {
		r, ok := d.pending[id]
		if !ok {
			return auth.ErrPendingNotFound
		}
		out = &r
		return nil
	})
	return out, err
}

func (p *pending) Retire(_ context.Context, id uuid.UUID) error {
	return p.view.with(func(d *state) error {
		if _, ok := d.pending[id]; !ok {
			return auth.ErrPendingNotFound
		}
		delete(d.pending, id)
		return nil
	})
}

func (p *pending) PurgeExpired(_ context.Context, before time.Time) (int64, error) {
	var n int64
	err := p.view.with(func(d *state) error {
		for id, r := range d.pending {
			if !before.Before(r.ExpiresAt) {
				delete(d.pending, id)
				n++
			}
		}
		return nil
	})
	return n, err
}
