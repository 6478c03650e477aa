package auth

import (
	"context"
	"errors"
	"log"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/sony/gobreaker"
	"github.com/uptrace/bun"
)

// RepositoryOption configures the bun repository manager
type RepositoryOption func(*mngr)

// WithRepositoryClock sets the clock used for created/updated timestamps
func WithRepositoryClock(now func() time.Time) RepositoryOption {
	return func(m *mngr) {
		if now != nil {
			m.now = now
		}
	}
}

// WithPendingStore replaces the bun pending store, e.g. with a Redis
// store. The replacement is not bound to bun transactions.
func WithPendingStore(store PendingStore) RepositoryOption {
	return func(m *mngr) {
		m.pendingOverride = store
	}
}

// WithCircuitBreaker guards top level store calls with a breaker
func WithCircuitBreaker(settings BreakerSettings) RepositoryOption {
	return func(m *mngr) {
		m.breakerSettings = &settings
	}
}

// WithRepositoryLogger sets the logger
func WithRepositoryLogger(l Logger) RepositoryOption {
	return func(m *mngr) {
		m.logger = normalizeLogger(l)
	}
}

type mngr struct {
	db              *bun.DB
	idb             bun.IDB
	inTx            bool
	guard           *storeGuard
	now             func() time.Time
	logger          Logger
	breakerSettings *BreakerSettings
	pendingOverride PendingStore
	identities      IdentityStore
	pending         PendingStore
}

// NewRepositoryManager creates a bun backed RepositoryManager
func NewRepositoryManager(db *bun.DB, opts ...RepositoryOption) RepositoryManager {
	m := &mngr{
		db:     db,
		idb:    db,
		now:    time.Now,
		logger: defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	if m.breakerSettings != nil {
		m.guard = newStoreGuard(*m.breakerSettings, m.logger)
	}
	m.bind()
	return m
}

func (m *mngr) bind() {
	m.identities = &identities{db: m.idb, guard: m.guard, now: m.now}
	if m.pendingOverride != nil {
		m.pending = m.pendingOverride
	} else {
		m.pending = &pendingRegistrations{db: m.idb, guard: m.guard}
	}
}

func (m *mngr) withTx(tx bun.Tx) *mngr {
	return &mngr{
		db:              m.db,
		idb:             tx,
		inTx:            true,
		now:             m.now,
		logger:          m.logger,
		pendingOverride: m.pendingOverride,
		identities:      &identities{db: tx, now: m.now},
		pending:         m.txPending(tx),
	}
}

func (m *mngr) txPending(tx bun.Tx) PendingStore {
	if m.pendingOverride != nil {
		return m.pendingOverride
	}
	return &pendingRegistrations{db: tx}
}

func (m *mngr) Validate() error {
	if m.db == nil {
		return errors.New("repository manager requires a database")
	}
	if m.identities == nil {
		return errors.New("repository identities should be initialized")
	}
	if m.pending == nil {
		return errors.New("repository pending should be initialized")
	}
	return nil
}

func (m *mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

// BreakerState reports the circuit breaker state, closed when none is set
func (m *mngr) BreakerState() gobreaker.State {
	return m.guard.state()
}

func (m *mngr) Identities() IdentityStore {
	return m.identities
}

func (m *mngr) Pending() PendingStore {
	return m.pending
}

func (m *mngr) RunInTx(ctx context.Context, fn func(ctx context.Context, repos RepositoryManager) error) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled before transaction")
	default:
	}

	if m.inTx {
		return fn(ctx, m)
	}

	return m.guard.run(func() error {
		return m.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			return fn(ctx, m.withTx(tx))
		})
	})
}
