package auth_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-phone-auth"
)

const testSigningKey = "0123456789abcdef0123456789abcdef"

// MockConfig implements auth.Config
type MockConfig struct {
	mock.Mock
}

func (m *MockConfig) GetSigningKey() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockConfig) GetSigningMethod() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockConfig) GetIssuer() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockConfig) GetAccessTokenTTL() time.Duration {
	args := m.Called()
	return args.Get(0).(time.Duration)
}

func (m *MockConfig) GetRefreshTokenTTL() time.Duration {
	args := m.Called()
	return args.Get(0).(time.Duration)
}

func (m *MockConfig) GetAccessCookieName() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockConfig) GetRefreshCookieName() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockConfig) GetCookieSecure() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockConfig) GetAllowDirectIssuance() bool {
	args := m.Called()
	return args.Bool(0)
}

func newMockConfig() *MockConfig {
	mockConfig := new(MockConfig)
	mockConfig.On("GetSigningKey").Return(testSigningKey)
	mockConfig.On("GetSigningMethod").Return("HS256")
	mockConfig.On("GetIssuer").Return("test-issuer")
	mockConfig.On("GetAccessTokenTTL").Return(30 * time.Minute)
	mockConfig.On("GetRefreshTokenTTL").Return(720 * time.Hour)
	mockConfig.On("GetAccessCookieName").Return(auth.DefaultAccessCookieName)
	mockConfig.On("GetRefreshCookieName").Return(auth.DefaultRefreshCookieName)
	mockConfig.On("GetCookieSecure").Return(false)
	mockConfig.On("GetAllowDirectIssuance").Return(false)
	return mockConfig
}

// MockIdentityStore implements auth.IdentityStore
type MockIdentityStore struct {
	mock.Mock
}

func (m *MockIdentityStore) FindByID(ctx context.Context, id uuid.UUID) (*auth.User, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*auth.User)
	return user, args.Error(1)
}

func (m *MockIdentityStore) Create(ctx context.Context, user *auth.User) (*auth.User, error) {
	args := m.Called(ctx, user)
	out, _ := args.Get(0).(*auth.User)
	return out, args.Error(1)
}

func (m *MockIdentityStore) UpdateRoles(ctx context.Context, id uuid.UUID, roles auth.RoleSet) (*auth.User, error) {
	args := m.Called(ctx, id, roles)
	out, _ := args.Get(0).(*auth.User)
	return out, args.Error(1)
}

func (m *MockIdentityStore) UpdateProfile(ctx context.Context, id uuid.UUID, patch auth.ProfilePatch) (*auth.User, error) {
	args := m.Called(ctx, id, patch)
	out, _ := args.Get(0).(*auth.User)
	return out, args.Error(1)
}

func (m *MockIdentityStore) Deactivate(ctx context.Context, id uuid.UUID) (*auth.User, error) {
	args := m.Called(ctx, id)
	out, _ := args.Get(0).(*auth.User)
	return out, args.Error(1)
}

// testClock is a settable time source shared by codecs, stores and flows
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 7, 24, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// recordingSink keeps every activity event
type recordingSink struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (s *recordingSink) Record(_ context.Context, event auth.ActivityEvent) error {
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
	return nil
}

func (s *recordingSink) Types() []auth.ActivityEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]auth.ActivityEventType, len(s.events))
	for i, e := range s.events {
		out[i] = e.EventType
	}
	return out
}

// captureSender remembers the last code sent to each phone
type captureSender struct {
	mu    sync.Mutex
	codes map[string]string
	err   error
}

func newCaptureSender() *captureSender {
	return &captureSender{codes: map[string]string{}}
}

func (s *captureSender) SendCode(_ context.Context, phone, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.codes[phone] = code
	return nil
}

func (s *captureSender) Code(t *testing.T, phone string) string {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	code, ok := s.codes[phone]
	require.True(t, ok, "no code sent to %s", phone)
	return code
}

// nopLogger discards everything
type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// errorLogger keeps the messages logged at error level
type errorLogger struct {
	nopLogger
	mu       sync.Mutex
	messages []string
}

func (l *errorLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, msg)
}

func (l *errorLogger) Messages() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.messages...)
}

// wrongCode returns a five digit code different from code
func wrongCode(code string) string {
	for i := 10000; i <= 99999; i++ {
		if c := fmt.Sprintf("%d", i); c != code {
			return c
		}
	}
	return ""
}

func newTestTokens(t *testing.T, clock *testClock, opts ...auth.TokenServiceOption) *auth.TokenService {
	t.Helper()
	codec, err := auth.NewTokenCodec([]byte(testSigningKey), "HS256",
		auth.WithCodecClock(clock.Now),
		auth.WithCodecIssuer("test-issuer"),
	)
	require.NoError(t, err)

	base := []auth.TokenServiceOption{
		auth.WithAccessTTL(30 * time.Minute),
		auth.WithRefreshTTL(720 * time.Hour),
		auth.WithTokenLogger(nopLogger{}),
	}
	tokens, err := auth.NewTokenService(codec, append(base, opts...)...)
	require.NoError(t, err)
	return tokens
}
