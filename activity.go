package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventSignupRequested  ActivityEventType = "auth.signup.requested"
	ActivityEventSignupVerified   ActivityEventType = "auth.signup.verified"
	ActivityEventSignupRejected   ActivityEventType = "auth.signup.rejected"
	ActivityEventSessionRefreshed ActivityEventType = "auth.session.refreshed"
	ActivityEventSessionExpired   ActivityEventType = "auth.session.expired"
	ActivityEventTokensIssued     ActivityEventType = "auth.tokens.issued"
	ActivityEventRoleGranted      ActivityEventType = "user.role.granted"
	ActivityEventRoleRevoked      ActivityEventType = "user.role.revoked"
	ActivityEventUserUpdated      ActivityEventType = "user.updated"
	ActivityEventUserDeactivated  ActivityEventType = "user.deactivated"
)

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	ActorID    uuid.UUID
	UserID     uuid.UUID
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

// LogActivitySink writes events to a Logger
func LogActivitySink(logger Logger) ActivitySink {
	logger = normalizeLogger(logger)
	return ActivitySinkFunc(func(_ context.Context, event ActivityEvent) error {
		logger.Info("activity", "event", event.EventType, "actor", event.ActorID, "user", event.UserID, "metadata", event.Metadata)
		return nil
	})
}

func recordActivity(ctx context.Context, sink ActivitySink, logger Logger, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if err := sink.Record(ctx, event); err != nil {
		logger.Warn("activity sink failed", "event", event.EventType, "error", err)
	}
}
