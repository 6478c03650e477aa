package auth

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sony/gobreaker"
)

// BreakerSettings configures the store circuit breaker
type BreakerSettings struct {
	Name        string
	MaxFailures uint32
	Interval    time.Duration
	Timeout     time.Duration
}

// DefaultBreakerSettings trips after five consecutive transient failures
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		Name:        "auth-store",
		MaxFailures: 5,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
	}
}

// storeGuard runs store calls through an optional breaker and maps driver
// errors onto the auth taxonomy.
type storeGuard struct {
	breaker *gobreaker.CircuitBreaker
}

func newStoreGuard(settings BreakerSettings, logger Logger) *storeGuard {
	logger = normalizeLogger(logger)
	if settings.MaxFailures == 0 {
		settings.MaxFailures = DefaultBreakerSettings().MaxFailures
	}
	maxFailures := settings.MaxFailures
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: 1,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !isTransientStoreError(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state", "name", name, "from", from.String(), "to", to.String())
		},
	})
	return &storeGuard{breaker: cb}
}

func (g *storeGuard) run(fn func() error) error {
	if g == nil || g.breaker == nil {
		return mapStoreError(fn())
	}
	_, err := g.breaker.Execute(func() (any, error) {
		return nil, fn()
	})
	return mapStoreError(err)
}

func (g *storeGuard) state() gobreaker.State {
	if g == nil || g.breaker == nil {
		return gobreaker.StateClosed
	}
	return g.breaker.State()
}

func isTransientStoreError(err error) bool {
	if err == nil {
		return false
	}
	if IsBackingStoreUnavailable(err) {
		return true
	}
	if errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// class 08: connection exception, 57P: operator intervention
		return strings.HasPrefix(pgErr.Code, "08") || strings.HasPrefix(pgErr.Code, "57P")
	}
	return false
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func mapStoreError(err error) error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return err
	}

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return withMeta(ErrBackingStoreUnavailable, map[string]any{"breaker": err.Error()})
	case isTransientStoreError(err):
		return withMeta(ErrBackingStoreUnavailable, map[string]any{"error": err.Error()})
	case isUniqueViolation(err):
		return withMeta(ErrIdentityConflict, map[string]any{"error": err.Error()})
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, "store operation failed")
}

// StoreError maps a driver or breaker error onto the auth error taxonomy.
// Errors that already carry a category are returned unchanged.
func StoreError(err error) error {
	return mapStoreError(err)
}
