package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SessionState is the outcome of resolving cookies into a session
type SessionState int

const (
	SessionNoToken SessionState = iota
	SessionAccessValid
	SessionAccessExpiredRefreshValid
	SessionBothExpired
)

func (s SessionState) String() string {
	switch s {
	case SessionAccessValid:
		return "access_valid"
	case SessionAccessExpiredRefreshValid:
		return "refreshed"
	case SessionBothExpired:
		return "both_expired"
	default:
		return "no_token"
	}
}

// Resolution is what the resolver learned from the cookies. When State is
// SessionAccessExpiredRefreshValid the caller must hand the replacement
// access token back to the client.
type Resolution struct {
	State                  SessionState
	Identity               *User
	ReplacementAccessToken string
	ReplacementExpiresAt   time.Time
}

// Refreshed reports whether a replacement access token was minted
func (r Resolution) Refreshed() bool {
	return r.State == SessionAccessExpiredRefreshValid && r.ReplacementAccessToken != ""
}

// ResolverOption configures a SessionResolver
type ResolverOption func(*SessionResolver)

// WithResolverLogger sets the logger
func WithResolverLogger(l Logger) ResolverOption {
	return func(r *SessionResolver) {
		r.logger = normalizeLogger(l)
	}
}

// WithResolverActivitySink sets the activity sink
func WithResolverActivitySink(s ActivitySink) ResolverOption {
	return func(r *SessionResolver) {
		r.activity = normalizeActivitySink(s)
	}
}

// WithResolverMetrics records resolution outcomes
func WithResolverMetrics(m *Metrics) ResolverOption {
	return func(r *SessionResolver) {
		r.metrics = m
	}
}

// SessionResolver maps an access/refresh token pair to an identity
type SessionResolver struct {
	tokens     *TokenService
	identities IdentityStore
	logger     Logger
	activity   ActivitySink
	metrics    *Metrics
}

// NewSessionResolver creates a resolver backed by the given store
func NewSessionResolver(tokens *TokenService, identities IdentityStore, opts ...ResolverOption) *SessionResolver {
	r := &SessionResolver{
		tokens:     tokens,
		identities: identities,
		logger:     defLogger{},
		activity:   noopActivitySink{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Resolve decides the session state. A both-expired session is reported
// through State with a nil error so the caller can clear cookies.
func (r *SessionResolver) Resolve(ctx context.Context, accessToken, refreshToken string) (Resolution, error) {
	res, err := r.resolve(ctx, accessToken, refreshToken)
	if err != nil {
		r.metrics.resolution("rejected")
		return res, err
	}
	r.metrics.resolution(res.State.String())
	return res, nil
}

func (r *SessionResolver) resolve(ctx context.Context, accessToken, refreshToken string) (Resolution, error) {
	if accessToken == "" {
		return Resolution{State: SessionNoToken}, ErrUnauthenticated
	}

	access := r.tokens.Codec().Decode(accessToken)
	if access.Status == DecodeInvalid || access.Claims.Type != TokenTypeAccess {
		r.logger.Debug("session resolver rejected access token", "status", access.Status, "error", access.Err())
		return Resolution{State: SessionNoToken}, ErrUnauthenticated
	}

	if access.Valid() {
		user, err := r.lookup(ctx, access.Claims)
		if err != nil {
			return Resolution{State: SessionNoToken}, err
		}
		return Resolution{State: SessionAccessValid, Identity: user}, nil
	}

	if refreshToken == "" {
		return Resolution{State: SessionNoToken}, ErrUnauthenticated
	}

	refresh := r.tokens.Codec().Decode(refreshToken)
	if refresh.Status == DecodeInvalid || refresh.Claims.Type != TokenTypeRefresh {
		r.logger.Debug("session resolver rejected refresh token", "status", refresh.Status, "error", refresh.Err())
		return Resolution{State: SessionNoToken}, ErrUnauthenticated
	}

	if refresh.Expired() {
		r.emit(ctx, ActivityEventSessionExpired, refresh.Claims, nil)
		return Resolution{State: SessionBothExpired}, nil
	}

	user, err := r.lookup(ctx, refresh.Claims)
	if err != nil {
		return Resolution{State: SessionNoToken}, err
	}

	token, exp, err := r.tokens.IssueAccess(user.ID)
	if err != nil {
		return Resolution{State: SessionNoToken}, err
	}
	r.emit(ctx, ActivityEventSessionRefreshed, refresh.Claims, user)

	return Resolution{
		State:                  SessionAccessExpiredRefreshValid,
		Identity:               user,
		ReplacementAccessToken: token,
		ReplacementExpiresAt:   exp,
	}, nil
}

// Refresh exchanges a valid refresh token for a new access token
func (r *SessionResolver) Refresh(ctx context.Context, refreshToken string) (string, time.Time, *User, error) {
	if refreshToken == "" {
		return "", time.Time{}, nil, ErrUnauthenticated
	}

	res := r.tokens.Codec().Decode(refreshToken)
	switch {
	case res.Expired() && res.Claims.Type == TokenTypeRefresh:
		return "", time.Time{}, nil, ErrSessionExpired
	case !res.Valid() || res.Claims.Type != TokenTypeRefresh:
		return "", time.Time{}, nil, ErrUnauthenticated
	}

	user, err := r.lookup(ctx, res.Claims)
	if err != nil {
		return "", time.Time{}, nil, err
	}

	token, exp, err := r.tokens.IssueAccess(user.ID)
	if err != nil {
		return "", time.Time{}, nil, err
	}
	r.emit(ctx, ActivityEventSessionRefreshed, res.Claims, user)
	return token, exp, user, nil
}

func (r *SessionResolver) lookup(ctx context.Context, claims *TokenClaims) (*User, error) {
	id, err := claims.SubjectID()
	if err != nil || id == uuid.Nil {
		return nil, ErrUnauthenticated
	}

	user, err := r.identities.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !user.Active {
		return nil, withMeta(ErrIdentityInactive, map[string]any{"user_id": id.String()})
	}
	return user, nil
}

func (r *SessionResolver) emit(ctx context.Context, typ ActivityEventType, claims *TokenClaims, user *User) {
	event := ActivityEvent{
		EventType: typ,
		Metadata:  map[string]any{"jti": claims.ID},
	}
	if user != nil {
		event.UserID = user.ID
		event.ActorID = user.ID
	} else if id, err := claims.SubjectID(); err == nil {
		event.UserID = id
	}
	recordActivity(ctx, r.activity, r.logger, event)
}
