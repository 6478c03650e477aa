// Package redisstore keeps pending registrations in Redis, letting key
// expiry enforce the pending TTL.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	auth "github.com/goliatone/go-phone-auth"
)

// DefaultKeyPrefix namespaces pending registration keys
const DefaultKeyPrefix = "portal:pending:"

// PendingStore implements auth.PendingStore on Redis. Retire is a single
// DEL, so only one caller observes a deleted key.
type PendingStore struct {
	client redis.Cmdable
	prefix string
	now    func() time.Time
}

// Option configures a PendingStore
type Option func(*PendingStore)

// WithKeyPrefix overrides the key prefix
func WithKeyPrefix(prefix string) Option {
	return func(s *PendingStore) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithClock sets the clock used to derive key TTLs
func WithClock(now func() time.Time) Option {
	return func(s *PendingStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewPendingStore creates a store using client
func NewPendingStore(client redis.Cmdable, opts ...Option) *PendingStore {
	s := &PendingStore{
		client: client,
		prefix: DefaultKeyPrefix,
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

var _ auth.PendingStore = (*PendingStore)(nil)

type record struct {
	ID        uuid.UUID `json:"id"`
	Phone     string    `json:"phone_number"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	CodeHash  string    `json:"code_hash"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *PendingStore) key(id uuid.UUID) string {
	return s.prefix + id.String()
}

func (s *PendingStore) Create(ctx context.Context, pr *auth.PendingRegistration) (*auth.PendingRegistration, error) {
	if pr == nil {
		return nil, auth.ErrUnprocessableInput
	}
	if pr.ID == uuid.Nil {
		pr.ID = uuid.New()
	}

	ttl := pr.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil, goerrors.New("pending registration already expired", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{"pair_id": pr.ID.String()})
	}

	payload, err := json.Marshal(record{
		ID:        pr.ID,
		Phone:     pr.Phone,
		FirstName: pr.FirstName,
		LastName:  pr.LastName,
		CodeHash:  pr.CodeHash,
		CreatedAt: pr.CreatedAt,
		ExpiresAt: pr.ExpiresAt,
	})
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode pending registration")
	}

	if err := s.client.Set(ctx, s.key(pr.ID), payload, ttl).Err(); err != nil {
		return nil, unavailable(err)
	}
	return pr, nil
}

func (s *PendingStore) Find(ctx context.Context, id uuid.UUID) (*auth.PendingRegistration, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, auth.ErrPendingNotFound
		}
		return nil, unavailable(err)
	}

	var r record
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to decode pending registration")
	}

	return &auth.PendingRegistration{
		ID:        r.ID,
		Phone:     r.Phone,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		CodeHash:  r.CodeHash,
		CreatedAt: r.CreatedAt,
		ExpiresAt: r.ExpiresAt,
	}, nil
}

func (s *PendingStore) Retire(ctx context.Context, id uuid.UUID) error {
	n, err := s.client.Del(ctx, s.key(id)).Result()
	if err != nil {
		return unavailable(err)
	}
	if n == 0 {
		return auth.ErrPendingNotFound
	}
	return nil
}

// PurgeExpired is a no-op, Redis evicts expired keys itself
func (s *PendingStore) PurgeExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func unavailable(err error) error {
	return auth.ErrBackingStoreUnavailable.Clone().WithMetadata(map[string]any{"error": err.Error()})
}
