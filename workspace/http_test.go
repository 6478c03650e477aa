package workspace_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-phone-auth"
	"github.com/goliatone/go-phone-auth/workspace"
)

func newApp(f *fixture, actor *auth.User) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: auth.NewErrorHandler(nil)})
	asActor := func(c *fiber.Ctx) error {
		c.Locals(auth.LocalsUserKey, actor)
		return c.Next()
	}
	workspace.RegisterRoutes(app, workspace.NewController(f.service), asActor)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, target string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	out := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestCompositeRoutes(t *testing.T) {
	f := newFixture(t)
	user := f.user(t)
	app := newApp(f, user)

	resp, body := doJSON(t, app, http.MethodPost, "/composite", map[string]any{
		"composite_name":        "Kitchen",
		"composite_description": "renovation",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id, _ := body["composite_id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, "active", body["composite_status"])
	assert.Equal(t, user.ID.String(), body["user_id"])

	resp, body = doJSON(t, app, http.MethodPost, "/task", map[string]any{
		"task_description": "buy tiles",
		"task_level":       "urgent",
		"composite_id":     id,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, id, body["composite_id"])

	resp, body = doJSON(t, app, http.MethodGet, "/composite?composite_id="+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	tasks, _ := body["tasks"].([]any)
	assert.Len(t, tasks, 1)

	resp, _ = doJSON(t, app, http.MethodPost, "/composite/close?composite_id="+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = doJSON(t, app, http.MethodPost, "/composite/close?composite_id="+id, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, workspace.TextCodeNotActive, body["text_code"])

	resp, body = doJSON(t, app, http.MethodDelete, "/composite?composite_id="+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, id, body["composite_id"])

	resp, body = doJSON(t, app, http.MethodGet, "/composite?composite_id="+id, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, workspace.TextCodeCompositeNotFound, body["text_code"])
}

func TestTaskRoutes(t *testing.T) {
	f := newFixture(t)
	user := f.user(t)
	app := newApp(f, user)

	resp, body := doJSON(t, app, http.MethodPost, "/task", map[string]any{
		"task_description": "water plants",
		"task_level":       "free",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id, _ := body["task_id"].(string)
	require.NotEmpty(t, id)

	resp, body = doJSON(t, app, http.MethodPatch, "/task?task_id="+id, map[string]any{
		"task_level": "optimal",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "optimal", body["task_level"])

	resp, body = doJSON(t, app, http.MethodPost, "/task/close?task_id="+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "done", body["task_status"])
	assert.NotEmpty(t, body["closed_at"])

	resp, _ = doJSON(t, app, http.MethodDelete, "/task?task_id="+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouteInputErrors(t *testing.T) {
	f := newFixture(t)
	app := newApp(f, f.user(t))

	resp, body := doJSON(t, app, http.MethodPatch, "/composite", map[string]any{"composite_name": "x"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, auth.TextCodeUnprocessableInput, body["text_code"])

	resp, _ = doJSON(t, app, http.MethodGet, "/task?task_id=not-a-uuid", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodPost, "/task", map[string]any{
		"task_description": "x",
		"task_level":       "eventually",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestRoutesRequireUser(t *testing.T) {
	f := newFixture(t)
	app := fiber.New(fiber.Config{ErrorHandler: auth.NewErrorHandler(nil)})
	workspace.RegisterRoutes(app, workspace.NewController(f.service), func(c *fiber.Ctx) error { return c.Next() })

	resp, body := doJSON(t, app, http.MethodGet, "/composite", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, auth.TextCodeUnauthenticated, body["text_code"])
}
