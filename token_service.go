package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

const (
	DefaultAccessTokenTTL  = 30 * time.Minute
	DefaultRefreshTokenTTL = 30 * 24 * time.Hour
	BearerTokenType        = "Bearer"
)

// TokenServiceOption configures a TokenService
type TokenServiceOption func(*TokenService)

// WithAccessTTL overrides the access token lifetime
func WithAccessTTL(ttl time.Duration) TokenServiceOption {
	return func(ts *TokenService) {
		if ttl > 0 {
			ts.accessTTL = ttl
		}
	}
}

// WithRefreshTTL overrides the refresh token lifetime
func WithRefreshTTL(ttl time.Duration) TokenServiceOption {
	return func(ts *TokenService) {
		if ttl > 0 {
			ts.refreshTTL = ttl
		}
	}
}

// WithTokenMetrics records issued tokens
func WithTokenMetrics(m *Metrics) TokenServiceOption {
	return func(ts *TokenService) {
		ts.metrics = m
	}
}

// WithTokenLogger sets the logger
func WithTokenLogger(l Logger) TokenServiceOption {
	return func(ts *TokenService) {
		ts.logger = normalizeLogger(l)
	}
}

// TokenService mints access and refresh tokens for a subject
type TokenService struct {
	codec      *TokenCodec
	accessTTL  time.Duration
	refreshTTL time.Duration
	metrics    *Metrics
	logger     Logger
}

// NewTokenService creates a new TokenService instance
func NewTokenService(codec *TokenCodec, opts ...TokenServiceOption) (*TokenService, error) {
	if codec == nil {
		return nil, goerrors.New("token codec is required", goerrors.CategoryBadInput)
	}
	ts := &TokenService{
		codec:      codec,
		accessTTL:  DefaultAccessTokenTTL,
		refreshTTL: DefaultRefreshTokenTTL,
		logger:     defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(ts)
		}
	}
	return ts, nil
}

// NewTokenServiceFromConfig wires codec and service from Config
func NewTokenServiceFromConfig(cfg Config, opts ...TokenServiceOption) (*TokenService, error) {
	codec, err := NewTokenCodec([]byte(cfg.GetSigningKey()), cfg.GetSigningMethod(), WithCodecIssuer(cfg.GetIssuer()))
	if err != nil {
		return nil, err
	}
	base := []TokenServiceOption{
		WithAccessTTL(cfg.GetAccessTokenTTL()),
		WithRefreshTTL(cfg.GetRefreshTokenTTL()),
	}
	return NewTokenService(codec, append(base, opts...)...)
}

// Codec returns the underlying codec
func (ts *TokenService) Codec() *TokenCodec {
	return ts.codec
}

// AccessTTL returns the access token lifetime
func (ts *TokenService) AccessTTL() time.Duration { return ts.accessTTL }

// RefreshTTL returns the refresh token lifetime
func (ts *TokenService) RefreshTTL() time.Duration { return ts.refreshTTL }

// IssueAccess mints a short lived access token
func (ts *TokenService) IssueAccess(subject uuid.UUID) (string, time.Time, error) {
	return ts.issue(subject, TokenTypeAccess, ts.accessTTL)
}

// IssueRefresh mints a long lived refresh token
func (ts *TokenService) IssueRefresh(subject uuid.UUID) (string, time.Time, error) {
	return ts.issue(subject, TokenTypeRefresh, ts.refreshTTL)
}

// IssuePair mints both tokens. It does not check the subject exists.
func (ts *TokenService) IssuePair(subject uuid.UUID) (TokenPair, error) {
	access, accessExp, err := ts.IssueAccess(subject)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, refreshExp, err := ts.IssueRefresh(subject)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		TokenType:        BearerTokenType,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// Verify decodes a token and checks it is valid and of the expected type
func (ts *TokenService) Verify(token string, expected TokenType) (*TokenClaims, error) {
	res := ts.codec.Decode(token)
	if !res.Valid() {
		return nil, res.Err()
	}
	if res.Claims.Type != expected {
		return nil, withMeta(ErrTokenTypeMismatch, map[string]any{
			"expected": string(expected),
			"actual":   string(res.Claims.Type),
		})
	}
	return res.Claims, nil
}

func (ts *TokenService) issue(subject uuid.UUID, typ TokenType, ttl time.Duration) (string, time.Time, error) {
	if subject == uuid.Nil {
		return "", time.Time{}, goerrors.New("subject is required", goerrors.CategoryBadInput)
	}

	now := ts.codec.Now()
	exp := jwt.NewNumericDate(now.Add(ttl))
	claims := &TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: exp,
		},
		Type: typ,
	}

	token, err := ts.codec.Encode(claims)
	if err != nil {
		ts.logger.Error("token service failed to sign token", "type", typ, "error", err)
		return "", time.Time{}, err
	}
	ts.metrics.tokenIssued(typ)
	return token, exp.Time, nil
}
