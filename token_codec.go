package auth

import (
	"crypto/rand"
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/oklog/ulid/v2"
)

// DecodeStatus classifies the outcome of decoding a token
type DecodeStatus int

const (
	// DecodeInvalid token is malformed, forged or signed with another algorithm
	DecodeInvalid DecodeStatus = iota
	// DecodeValid token verified and not expired
	DecodeValid
	// DecodeExpired token verified but past its exp
	DecodeExpired
)

func (s DecodeStatus) String() string {
	switch s {
	case DecodeValid:
		return "valid"
	case DecodeExpired:
		return "expired"
	default:
		return "invalid"
	}
}

// DecodeResult is the outcome of TokenCodec.Decode. Claims is set for
// valid and expired tokens.
type DecodeResult struct {
	Status DecodeStatus
	Claims *TokenClaims
	err    error
}

// Valid reports a verified, unexpired token
func (r DecodeResult) Valid() bool { return r.Status == DecodeValid }

// Expired reports a verified token past its exp
func (r DecodeResult) Expired() bool { return r.Status == DecodeExpired }

// Err returns nil for valid tokens and a token error otherwise
func (r DecodeResult) Err() error {
	switch r.Status {
	case DecodeValid:
		return nil
	case DecodeExpired:
		return ErrTokenExpired
	}
	if r.err != nil {
		return r.err
	}
	return ErrTokenMalformed
}

// CodecOption configures a TokenCodec
type CodecOption func(*TokenCodec)

// WithCodecClock sets the time source used for iat and expiry checks
func WithCodecClock(now func() time.Time) CodecOption {
	return func(c *TokenCodec) {
		if now != nil {
			c.now = now
		}
	}
}

// WithCodecIssuer stamps and requires an iss claim
func WithCodecIssuer(issuer string) CodecOption {
	return func(c *TokenCodec) {
		c.issuer = issuer
	}
}

// TokenCodec signs and verifies HMAC JWTs
type TokenCodec struct {
	key    []byte
	method jwt.SigningMethod
	issuer string
	now    func() time.Time

	entropyMu sync.Mutex
	entropy   *ulid.MonotonicEntropy
}

// NewTokenCodec validates the key and algorithm. Only HS256, HS384 and
// HS512 are supported.
func NewTokenCodec(signingKey []byte, algorithm string, opts ...CodecOption) (*TokenCodec, error) {
	if len(signingKey) == 0 {
		return nil, goerrors.New("signing key is required", goerrors.CategoryBadInput)
	}
	if algorithm == "" {
		algorithm = jwt.SigningMethodHS256.Alg()
	}

	method, ok := jwt.GetSigningMethod(algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, goerrors.New("unsupported signing method", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{"algorithm": algorithm})
	}

	c := &TokenCodec{
		key:     signingKey,
		method:  method,
		now:     time.Now,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Algorithm returns the configured signing algorithm
func (c *TokenCodec) Algorithm() string {
	return c.method.Alg()
}

// Now returns the codec's notion of the current time
func (c *TokenCodec) Now() time.Time {
	return c.now()
}

// Encode signs claims, filling jti, iss and iat when missing
func (c *TokenCodec) Encode(claims *TokenClaims) (string, error) {
	if claims == nil {
		return "", goerrors.New("claims must not be nil", goerrors.CategoryInternal)
	}
	if claims.ExpiresAt == nil {
		return "", goerrors.New("claims must carry an expiration", goerrors.CategoryInternal)
	}
	if claims.ID == "" {
		claims.ID = c.newTokenID()
	}
	if claims.Issuer == "" {
		claims.Issuer = c.issuer
	}
	if claims.IssuedAt == nil {
		claims.IssuedAt = jwt.NewNumericDate(c.now())
	}

	signed, err := jwt.NewWithClaims(c.method, claims).SignedString(c.key)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign JWT")
	}
	return signed, nil
}

// Decode verifies the signature first and only then classifies expiry, so
// an expired result always carries authentic claims.
func (c *TokenCodec) Decode(token string) DecodeResult {
	if token == "" {
		return DecodeResult{Status: DecodeInvalid, err: ErrTokenMalformed}
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}

	claims := &TokenClaims{}
	parsed, err := jwt.NewParser(opts...).ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return c.key, nil
	})

	switch {
	case err == nil && parsed != nil && parsed.Valid:
		return DecodeResult{Status: DecodeValid, Claims: claims}
	case err != nil && onlyExpired(err):
		return DecodeResult{Status: DecodeExpired, Claims: claims, err: ErrTokenExpired}
	case err != nil && (errors.Is(err, jwt.ErrTokenSignatureInvalid) || errors.Is(err, jwt.ErrTokenUnverifiable)):
		return DecodeResult{Status: DecodeInvalid, err: withMeta(ErrTokenSignatureInvalid, map[string]any{"reason": err.Error()})}
	case err != nil:
		return DecodeResult{Status: DecodeInvalid, err: withMeta(ErrTokenMalformed, map[string]any{"reason": err.Error()})}
	}
	return DecodeResult{Status: DecodeInvalid, err: ErrTokenMalformed}
}

// onlyExpired reports an expiry failure that is not combined with any
// other validation failure.
func onlyExpired(err error) bool {
	if !errors.Is(err, jwt.ErrTokenExpired) {
		return false
	}
	for _, other := range []error{
		jwt.ErrTokenMalformed,
		jwt.ErrTokenSignatureInvalid,
		jwt.ErrTokenUnverifiable,
		jwt.ErrTokenInvalidIssuer,
		jwt.ErrTokenNotValidYet,
		jwt.ErrTokenUsedBeforeIssued,
		jwt.ErrTokenRequiredClaimMissing,
	} {
		if errors.Is(err, other) {
			return false
		}
	}
	return true
}

func (c *TokenCodec) newTokenID() string {
	c.entropyMu.Lock()
	defer c.entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(c.now()), c.entropy).String()
}
