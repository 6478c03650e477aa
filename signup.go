package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
)

const (
	DefaultPendingTTL     = 10 * time.Minute
	DefaultSignupTimeout  = 10 * time.Second
	DefaultBeginBurst     = 3
	DefaultBeginInterval  = time.Minute
	DefaultVerifyBurst    = 5
	DefaultVerifyInterval = time.Minute

	// maxCodeLength bounds the submitted code, shorter or longer numeric
	// codes are compared and reported as a mismatch
	maxCodeLength = 16
)

// BeginSignupMessage starts a phone signup
type BeginSignupMessage struct {
	Phone     string `json:"phone_number"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (m BeginSignupMessage) Type() string { return "auth.signup.begin" }

func (m BeginSignupMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Phone, validation.Required, validation.Length(4, 32)),
		validation.Field(&m.FirstName, validation.Required, validation.Length(1, 200)),
		validation.Field(&m.LastName, validation.Required, validation.Length(1, 200)),
	)
}

// VerifySignupMessage confirms a pending signup
type VerifySignupMessage struct {
	PendingID uuid.UUID `json:"pair_id"`
	Code      string    `json:"identity_number"`
}

func (m VerifySignupMessage) Type() string { return "auth.signup.verify" }

func (m VerifySignupMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.PendingID, validation.By(requiredUUID)),
		validation.Field(&m.Code, validation.Required, validation.Length(1, maxCodeLength), is.Digit),
	)
}

// UnmarshalJSON accepts identity_number as a JSON string or integer
func (m *VerifySignupMessage) UnmarshalJSON(data []byte) error {
	var raw struct {
		PendingID uuid.UUID       `json:"pair_id"`
		Code      json.RawMessage `json:"identity_number"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	code, err := decodeCode(raw.Code)
	if err != nil {
		return err
	}

	m.PendingID = raw.PendingID
	m.Code = code
	return nil
}

func decodeCode(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}

	if raw[0] == '"' {
		var code string
		if err := json.Unmarshal(raw, &code); err != nil {
			return "", err
		}
		return code, nil
	}

	literal := string(raw)
	if _, err := strconv.ParseUint(literal, 10, 64); err != nil {
		return "", fmt.Errorf("identity_number: %q is not a non negative integer", literal)
	}
	return literal, nil
}

// SignupOption configures a SignupFlow
type SignupOption func(*SignupFlow)

// WithSignupClock sets the time source for pending records
func WithSignupClock(now func() time.Time) SignupOption {
	return func(f *SignupFlow) {
		if now != nil {
			f.now = now
		}
	}
}

// WithPendingTTL sets how long a pending registration stays verifiable
func WithPendingTTL(ttl time.Duration) SignupOption {
	return func(f *SignupFlow) {
		if ttl > 0 {
			f.pendingTTL = ttl
		}
	}
}

// WithCodeSender sets the code delivery channel
func WithCodeSender(s CodeSender) SignupOption {
	return func(f *SignupFlow) {
		if s != nil {
			f.sender = s
		}
	}
}

// WithCodeGenerator overrides code generation
func WithCodeGenerator(gen func() (string, error)) SignupOption {
	return func(f *SignupFlow) {
		if gen != nil {
			f.generate = gen
		}
	}
}

// WithCodeHashCost sets the bcrypt cost used for stored codes
func WithCodeHashCost(cost int) SignupOption {
	return func(f *SignupFlow) {
		f.hashCost = cost
	}
}

// WithPhoneRegion sets the region assumed for numbers without a country code
func WithPhoneRegion(region string) SignupOption {
	return func(f *SignupFlow) {
		f.region = region
	}
}

// WithStrictPhoneValidation requires numbers valid for their region
func WithStrictPhoneValidation(strict bool) SignupOption {
	return func(f *SignupFlow) {
		f.strictPhone = strict
	}
}

// WithHashidUserIDs derives user ids from the phone number
func WithHashidUserIDs(enabled bool, opts ...hashid.Option) SignupOption {
	return func(f *SignupFlow) {
		f.useHashid = enabled
		f.hashidOpts = opts
	}
}

// WithSignupLimiters sets the per phone and per pending id limiters
func WithSignupLimiters(begin, verify *AttemptLimiter) SignupOption {
	return func(f *SignupFlow) {
		f.beginLimiter = begin
		f.verifyLimiter = verify
	}
}

// WithSignupLogger sets the logger
func WithSignupLogger(l Logger) SignupOption {
	return func(f *SignupFlow) {
		f.logger = normalizeLogger(l)
	}
}

// WithSignupActivitySink sets the activity sink
func WithSignupActivitySink(s ActivitySink) SignupOption {
	return func(f *SignupFlow) {
		f.activity = normalizeActivitySink(s)
	}
}

// WithSignupMetrics records signup outcomes
func WithSignupMetrics(m *Metrics) SignupOption {
	return func(f *SignupFlow) {
		f.metrics = m
	}
}

// SignupFlow moves a phone number from pending registration to user
type SignupFlow struct {
	repo          RepositoryManager
	tokens        *TokenService
	sender        CodeSender
	generate      func() (string, error)
	now           func() time.Time
	pendingTTL    time.Duration
	hashCost      int
	region        string
	strictPhone   bool
	useHashid     bool
	hashidOpts    []hashid.Option
	beginLimiter  *AttemptLimiter
	verifyLimiter *AttemptLimiter
	logger        Logger
	activity      ActivitySink
	metrics       *Metrics
}

// NewSignupFlow creates a flow. Without a CodeSender codes are only logged
// at debug level.
func NewSignupFlow(repo RepositoryManager, tokens *TokenService, opts ...SignupOption) *SignupFlow {
	f := &SignupFlow{
		repo:          repo,
		tokens:        tokens,
		generate:      GenerateVerificationCode,
		now:           time.Now,
		pendingTTL:    DefaultPendingTTL,
		region:        DefaultPhoneRegion,
		beginLimiter:  NewAttemptLimiter(DefaultBeginBurst, DefaultBeginInterval),
		verifyLimiter: NewAttemptLimiter(DefaultVerifyBurst, DefaultVerifyInterval),
		logger:        defLogger{},
		activity:      noopActivitySink{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	if f.sender == nil {
		f.sender = LogCodeSender(f.logger)
	}
	return f
}

// Limiters exposes the limiters so a sweeper can prune them
func (f *SignupFlow) Limiters() []*AttemptLimiter {
	return []*AttemptLimiter{f.beginLimiter, f.verifyLimiter}
}

// Begin stores a pending registration, sends its code and returns its id
func (f *SignupFlow) Begin(ctx context.Context, msg BeginSignupMessage) (uuid.UUID, error) {
	select {
	case <-ctx.Done():
		return uuid.Nil, goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during signup")
	default:
	}

	id, err := f.begin(ctx, msg)
	f.metrics.signup("begin", err)
	return id, err
}

func (f *SignupFlow) begin(ctx context.Context, msg BeginSignupMessage) (uuid.UUID, error) {
	if err := msg.Validate(); err != nil {
		return uuid.Nil, ValidationError(err)
	}

	phone, err := NormalizePhone(msg.Phone, f.region, f.strictPhone)
	if err != nil {
		return uuid.Nil, err
	}

	if !f.beginLimiter.Allow(phone) {
		return uuid.Nil, withMeta(ErrTooManyAttempts, map[string]any{"phone_number": phone})
	}

	code, err := f.generate()
	if err != nil {
		return uuid.Nil, err
	}

	hash, err := HashCode(code, f.hashCost)
	if err != nil {
		return uuid.Nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, DefaultSignupTimeout)
	defer cancel()

	now := f.now().UTC()
	record := &PendingRegistration{
		ID:        uuid.New(),
		Phone:     phone,
		FirstName: strings.TrimSpace(msg.FirstName),
		LastName:  strings.TrimSpace(msg.LastName),
		CodeHash:  hash,
		CreatedAt: now,
		ExpiresAt: now.Add(f.pendingTTL),
	}

	record, err = f.repo.Pending().Create(ctx, record)
	if err != nil {
		return uuid.Nil, err
	}

	if err := f.sender.SendCode(ctx, phone, code); err != nil {
		f.logger.Error("signup failed to deliver code", "pending_id", record.ID, "error", err)
		if rerr := f.repo.Pending().Retire(ctx, record.ID); rerr != nil {
			f.logger.Warn("signup failed to retire undelivered pending record", "pending_id", record.ID, "error", rerr)
		}
		return uuid.Nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to deliver verification code")
	}

	recordActivity(ctx, f.activity, f.logger, ActivityEvent{
		EventType:  ActivityEventSignupRequested,
		OccurredAt: now,
		Metadata: map[string]any{
			"pending_id":   record.ID.String(),
			"phone_number": phone,
		},
	})

	return record.ID, nil
}

// Verify checks the code and, inside one transaction, retires the pending
// record and creates the user. A mismatch leaves the record in place.
func (f *SignupFlow) Verify(ctx context.Context, msg VerifySignupMessage) (TokenPair, *User, error) {
	select {
	case <-ctx.Done():
		return TokenPair{}, nil, goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during signup verification")
	default:
	}

	pair, user, err := f.verify(ctx, msg)
	f.metrics.signup("verify", err)
	return pair, user, err
}

func (f *SignupFlow) verify(ctx context.Context, msg VerifySignupMessage) (TokenPair, *User, error) {
	if err := msg.Validate(); err != nil {
		return TokenPair{}, nil, ValidationError(err)
	}

	key := msg.PendingID.String()
	if !f.verifyLimiter.Allow(key) {
		return TokenPair{}, nil, withMeta(ErrTooManyAttempts, map[string]any{"pair_id": key})
	}

	ctx, cancel := context.WithTimeout(ctx, DefaultSignupTimeout)
	defer cancel()

	var user *User
	err := f.repo.RunInTx(ctx, func(ctx context.Context, repos RepositoryManager) error {
		pending, err := repos.Pending().Find(ctx, msg.PendingID)
		if err != nil {
			return err
		}

		if pending.Expired(f.now()) {
			return withMeta(ErrPendingNotFound, map[string]any{"pair_id": key, "reason": "expired"})
		}

		if err := CompareCodeAndHash(msg.Code, pending.CodeHash); err != nil {
			return err
		}

		if err := repos.Pending().Retire(ctx, pending.ID); err != nil {
			return err
		}

		record := &User{
			FirstName: pending.FirstName,
			LastName:  pending.LastName,
			Phone:     pending.Phone,
			Roles:     DefaultRoles(),
			Active:    true,
		}
		if f.useHashid {
			id, err := hashid.NewUUID(pending.Phone, f.hashidOpts...)
			if err != nil {
				f.logger.Error("hashid user id failed, using a random id", "pending_id", key, "error", err)
			} else {
				record.ID = id
			}
		}

		user, err = repos.Identities().Create(ctx, record)
		return err
	})

	if err != nil {
		if IsCodeMismatch(err) {
			recordActivity(ctx, f.activity, f.logger, ActivityEvent{
				EventType: ActivityEventSignupRejected,
				Metadata:  map[string]any{"pending_id": key},
			})
		}
		return TokenPair{}, nil, err
	}
	f.verifyLimiter.Forget(key)

	pair, err := f.tokens.IssuePair(user.ID)
	if err != nil {
		return TokenPair{}, nil, err
	}

	recordActivity(ctx, f.activity, f.logger, ActivityEvent{
		EventType: ActivityEventSignupVerified,
		ActorID:   user.ID,
		UserID:    user.ID,
		Metadata:  map[string]any{"pending_id": key},
	})

	return pair, user, nil
}

func requiredUUID(value any) error {
	if id, ok := value.(uuid.UUID); ok && id == uuid.Nil {
		return errors.New("cannot be blank")
	}
	return nil
}

// ValidationError converts ozzo validation errors into ErrUnprocessableInput
// with one metadata entry per field
func ValidationError(err error) error {
	meta := map[string]any{}
	if errs, ok := err.(validation.Errors); ok {
		for field, ferr := range errs {
			meta[field] = ferr.Error()
		}
	} else {
		meta["error"] = err.Error()
	}
	return withMeta(ErrUnprocessableInput, meta)
}
