package auth_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	auth "github.com/goliatone/go-phone-auth"
	"github.com/goliatone/go-phone-auth/memstore"
)

type httpFixture struct {
	clock  *testClock
	store  *memstore.Store
	sender *captureSender
	tokens *auth.TokenService
	users  *auth.UserService
	app    *fiber.App
}

func newHTTPFixture(t *testing.T, opts ...auth.AuthControllerOption) *httpFixture {
	t.Helper()

	f := &httpFixture{
		clock:  newTestClock(),
		sender: newCaptureSender(),
	}
	f.store = memstore.New(memstore.WithClock(f.clock.Now))
	f.tokens = newTestTokens(t, f.clock)
	f.users = auth.NewUserService(f.store, auth.WithUserServiceLogger(nopLogger{}))

	resolver := auth.NewSessionResolver(f.tokens, f.store.Identities(), auth.WithResolverLogger(nopLogger{}))
	flow := auth.NewSignupFlow(f.store, f.tokens,
		auth.WithSignupClock(f.clock.Now),
		auth.WithCodeSender(f.sender),
		auth.WithCodeHashCost(bcrypt.MinCost),
		auth.WithStrictPhoneValidation(false),
		auth.WithSignupLogger(nopLogger{}),
	)

	auther := auth.NewHTTPAuthenticator(resolver, newMockConfig())
	auther.Logger = nopLogger{}

	controller := auth.NewAuthController(f.store, flow, f.tokens, resolver, f.users, auther,
		append([]auth.AuthControllerOption{auth.WithControllerLogger(nopLogger{})}, opts...)...)

	f.app = fiber.New(fiber.Config{ErrorHandler: auth.NewErrorHandler(nopLogger{})})
	auth.RegisterAuthRoutes(f.app, controller)
	return f
}

func (f *httpFixture) do(t *testing.T, method, target string, body any, cookies ...*http.Cookie) (*http.Response, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	for _, c := range cookies {
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}

	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)

	out := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func cookieNamed(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// signup registers testPhone over HTTP and returns the session cookies
func (f *httpFixture) signup(t *testing.T) (access, refresh *http.Cookie, body map[string]any) {
	t.Helper()

	resp, body := f.do(t, http.MethodPost, "/auth/registration", map[string]any{
		"phone_number": testPhone,
		"first_name":   "Ada",
		"last_name":    "Lovelace",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	pairID, _ := body["pair_id"].(string)
	require.NotEmpty(t, pairID)

	resp, body = f.do(t, http.MethodPost, "/auth/registration/verify", map[string]any{
		"pair_id":         pairID,
		"identity_number": f.sender.Code(t, testPhone),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	access = cookieNamed(resp, auth.DefaultAccessCookieName)
	refresh = cookieNamed(resp, auth.DefaultRefreshCookieName)
	require.NotNil(t, access)
	require.NotNil(t, refresh)
	assert.True(t, access.HttpOnly)
	return access, refresh, body
}

func TestAuthRoutes_SignupAndSession(t *testing.T) {
	f := newHTTPFixture(t)
	access, refresh, body := f.signup(t)

	assert.Equal(t, access.Value, body["access_token"])
	assert.Equal(t, refresh.Value, body["refresh_token"])
	assert.Equal(t, auth.BearerTokenType, body["token_type"])

	resp, user := f.do(t, http.MethodGet, "/user", nil, access, refresh)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Ada", user["first_name"])
	assert.Equal(t, testPhone, user["phone_number"])
	assert.Equal(t, []any{"user"}, user["roles"])
	assert.NotContains(t, user, "composites")
	assert.Nil(t, cookieNamed(resp, auth.DefaultAccessCookieName), "a valid session sets no cookies")
}

func TestAuthRoutes_UserRelations(t *testing.T) {
	var seen *auth.User
	f := newHTTPFixture(t, auth.WithUserRelations(func(_ context.Context, actor, user *auth.User) (any, any, error) {
		seen = actor
		return []map[string]string{{"name": "Garden"}}, []map[string]string{}, nil
	}))
	access, refresh, _ := f.signup(t)

	resp, user := f.do(t, http.MethodGet, "/user", nil, access, refresh)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Ada", user["first_name"])
	assert.Equal(t, []any{map[string]any{"name": "Garden"}}, user["composites"])
	assert.Equal(t, []any{}, user["tasks"])
	require.NotNil(t, seen)
	assert.Equal(t, user["id"], seen.ID.String())
}

func TestAuthRoutes_UserRelationsError(t *testing.T) {
	f := newHTTPFixture(t, auth.WithUserRelations(func(context.Context, *auth.User, *auth.User) (any, any, error) {
		return nil, nil, auth.ErrForbidden
	}))
	access, refresh, _ := f.signup(t)

	resp, body := f.do(t, http.MethodGet, "/user", nil, access, refresh)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, auth.TextCodeForbidden, body["text_code"])
}

func TestAuthRoutes_TransparentRefresh(t *testing.T) {
	f := newHTTPFixture(t)
	access, refresh, _ := f.signup(t)

	f.clock.Advance(31 * time.Minute)

	resp, _ := f.do(t, http.MethodGet, "/user", nil, access, refresh)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	replacement := cookieNamed(resp, auth.DefaultAccessCookieName)
	require.NotNil(t, replacement)
	assert.NotEqual(t, access.Value, replacement.Value)
	assert.Nil(t, cookieNamed(resp, auth.DefaultRefreshCookieName), "refresh cookie is not rotated")

	resp, _ = f.do(t, http.MethodGet, "/user", nil, replacement)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "replacement works without the refresh cookie")
}

func TestAuthRoutes_SessionExpired(t *testing.T) {
	f := newHTTPFixture(t)
	access, refresh, _ := f.signup(t)

	f.clock.Advance(721 * time.Hour)

	resp, body := f.do(t, http.MethodGet, "/user", nil, access, refresh)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, auth.TextCodeSessionExpired, body["text_code"])
	assert.NotEmpty(t, body["error"])

	for _, name := range []string{auth.DefaultAccessCookieName, auth.DefaultRefreshCookieName} {
		c := cookieNamed(resp, name)
		require.NotNil(t, c, name)
		assert.Empty(t, c.Value, "%s is cleared", name)
	}
}

func TestAuthRoutes_Unauthenticated(t *testing.T) {
	f := newHTTPFixture(t)

	resp, body := f.do(t, http.MethodGet, "/user", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, auth.TextCodeUnauthenticated, body["text_code"])

	resp, body = f.do(t, http.MethodGet, "/user", nil, &http.Cookie{Name: auth.DefaultAccessCookieName, Value: "garbage"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, auth.TextCodeUnauthenticated, body["text_code"])
}

func TestAuthRoutes_VerifyErrors(t *testing.T) {
	f := newHTTPFixture(t)

	resp, body := f.do(t, http.MethodPost, "/auth/registration", map[string]any{
		"phone_number": testPhone,
		"first_name":   "Ada",
		"last_name":    "Lovelace",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	pairID := body["pair_id"]
	code := f.sender.Code(t, testPhone)

	resp, body = f.do(t, http.MethodPost, "/auth/registration/verify", map[string]any{
		"pair_id":         pairID,
		"identity_number": wrongCode(code),
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, auth.TextCodeCodeMismatch, body["text_code"])

	resp, body = f.do(t, http.MethodPost, "/auth/registration/verify", map[string]any{
		"pair_id":         pairID,
		"identity_number": "12x",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, auth.TextCodeUnprocessableInput, body["text_code"])
	assert.Contains(t, body["metadata"], "identity_number")

	resp, body = f.do(t, http.MethodPost, "/auth/registration/verify", map[string]any{
		"pair_id":         "8b0c3bde-0c39-4f7e-a3a4-0f3f7c1b9f11",
		"identity_number": code,
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, auth.TextCodePendingNotFound, body["text_code"])
}

func TestAuthRoutes_VerifyAcceptsNumericCode(t *testing.T) {
	f := newHTTPFixture(t)

	resp, body := f.do(t, http.MethodPost, "/auth/registration", map[string]any{
		"phone_number": testPhone,
		"first_name":   "Ada",
		"last_name":    "Lovelace",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	pairID := body["pair_id"]

	code, err := strconv.Atoi(f.sender.Code(t, testPhone))
	require.NoError(t, err)

	resp, body = f.do(t, http.MethodPost, "/auth/registration/verify", map[string]any{
		"pair_id":         pairID,
		"identity_number": code,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, "%v", body)
	assert.NotEmpty(t, body["access_token"])
	assert.NotNil(t, cookieNamed(resp, auth.DefaultAccessCookieName))
}

func TestAuthRoutes_RefreshAndLogout(t *testing.T) {
	f := newHTTPFixture(t)
	_, refresh, _ := f.signup(t)

	resp, body := f.do(t, http.MethodPost, "/auth/refresh", nil, refresh)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	token, _ := body["access_token"].(string)
	_, err := f.tokens.Verify(token, auth.TokenTypeAccess)
	assert.NoError(t, err)
	assert.NotNil(t, cookieNamed(resp, auth.DefaultAccessCookieName))

	resp, _ = f.do(t, http.MethodPost, "/auth/logout", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	c := cookieNamed(resp, auth.DefaultRefreshCookieName)
	require.NotNil(t, c)
	assert.Empty(t, c.Value)

	f.clock.Advance(721 * time.Hour)
	resp, body = f.do(t, http.MethodPost, "/auth/refresh", nil, refresh)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, auth.TextCodeSessionExpired, body["text_code"])
}

func TestAuthRoutes_DirectToken(t *testing.T) {
	t.Run("disabled by default", func(t *testing.T) {
		f := newHTTPFixture(t)
		resp, _ := f.do(t, http.MethodPost, "/auth/get-token?user_id=8b0c3bde-0c39-4f7e-a3a4-0f3f7c1b9f11", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("enabled", func(t *testing.T) {
		f := newHTTPFixture(t, auth.WithDirectIssuance(true))
		u, err := f.store.Identities().Create(context.Background(), &auth.User{
			FirstName: "Ada", LastName: "Lovelace", Phone: testPhone, Active: true,
		})
		require.NoError(t, err)

		resp, body := f.do(t, http.MethodPost, "/auth/get-token?user_id="+u.ID.String(), nil)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		assert.NotEmpty(t, body["access_token"])

		resp, body = f.do(t, http.MethodPost, "/auth/get-token?user_id=nope", nil)
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		assert.Equal(t, auth.TextCodeUnprocessableInput, body["text_code"])
	})
}

func TestAuthRoutes_UserManagement(t *testing.T) {
	f := newHTTPFixture(t)
	ctx := context.Background()
	access, refresh, _ := f.signup(t)

	resp, body := f.do(t, http.MethodPatch, "/user", map[string]any{"first_name": "Grace"}, access, refresh)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Grace", body["first_name"])
	selfID, _ := body["id"].(string)

	owner, err := f.store.Identities().Create(ctx, &auth.User{
		FirstName: "Root", LastName: "Owner", Phone: "+15550199", Roles: auth.NewRoleSet(auth.RoleOwner), Active: true,
	})
	require.NoError(t, err)

	resp, body = f.do(t, http.MethodPatch, "/admin/privilege?user_id="+owner.ID.String(), nil, access, refresh)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, auth.TextCodeForbidden, body["text_code"])

	ownerPair, err := f.tokens.IssuePair(owner.ID)
	require.NoError(t, err)
	ownerAccess := &http.Cookie{Name: auth.DefaultAccessCookieName, Value: ownerPair.AccessToken}

	resp, body = f.do(t, http.MethodPatch, "/admin/privilege?user_id="+selfID, nil, ownerAccess)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []any{"user", "admin"}, body["roles"])

	resp, body = f.do(t, http.MethodPatch, "/admin/privilege?user_id="+selfID, nil, ownerAccess)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, auth.TextCodeRoleConflict, body["text_code"])

	resp, body = f.do(t, http.MethodDelete, "/admin/privilege?user_id="+selfID, nil, ownerAccess)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []any{"user"}, body["roles"])

	resp, body = f.do(t, http.MethodDelete, "/user", nil, ownerAccess)
	assert.Equal(t, http.StatusNotAcceptable, resp.StatusCode)
	assert.Equal(t, auth.TextCodeOwnerProtected, body["text_code"])

	resp, body = f.do(t, http.MethodDelete, "/user", nil, access, refresh)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["is_active"])
	c := cookieNamed(resp, auth.DefaultAccessCookieName)
	require.NotNil(t, c)
	assert.Empty(t, c.Value)

	resp, body = f.do(t, http.MethodGet, "/user", nil, access, refresh)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, auth.TextCodeIdentityInactive, body["text_code"])
}
