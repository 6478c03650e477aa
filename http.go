package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
)

const (
	DefaultAccessCookieName  = "xww-access-cookie"
	DefaultRefreshCookieName = "xws-security-cookie"
)

// RouteAuthenticator turns session cookies into a resolved *User for fiber
// handlers and owns cookie issuance.
type RouteAuthenticator struct {
	resolver         *SessionResolver
	accessCookie     string
	refreshCookie    string
	secure           bool
	now              func() time.Time
	Logger           Logger
	AuthErrorHandler fiber.ErrorHandler
}

// NewHTTPAuthenticator creates the middleware host for resolver
func NewHTTPAuthenticator(resolver *SessionResolver, cfg Config) *RouteAuthenticator {
	a := &RouteAuthenticator{
		resolver:      resolver,
		accessCookie:  DefaultAccessCookieName,
		refreshCookie: DefaultRefreshCookieName,
		secure:        true,
		now:           time.Now,
		Logger:        defLogger{},
	}

	if cfg != nil {
		if v := cfg.GetAccessCookieName(); v != "" {
			a.accessCookie = v
		}
		if v := cfg.GetRefreshCookieName(); v != "" {
			a.refreshCookie = v
		}
		a.secure = cfg.GetCookieSecure()
	}

	a.AuthErrorHandler = a.defaultAuthErrHandler
	return a
}

// AccessCookieName returns the access cookie name
func (a *RouteAuthenticator) AccessCookieName() string { return a.accessCookie }

// RefreshCookieName returns the refresh cookie name
func (a *RouteAuthenticator) RefreshCookieName() string { return a.refreshCookie }

// ProtectedRoute resolves the session or rejects the request. A refreshed
// session gets its replacement access cookie before the handler runs; a
// fully expired session gets both cookies cleared.
func (a *RouteAuthenticator) ProtectedRoute() fiber.Handler {
	return func(c *fiber.Ctx) error {
		res, err := a.resolver.Resolve(c.UserContext(), c.Cookies(a.accessCookie), c.Cookies(a.refreshCookie))
		if err != nil {
			return a.AuthErrorHandler(c, err)
		}

		switch res.State {
		case SessionBothExpired:
			a.ClearSession(c)
			return a.AuthErrorHandler(c, ErrSessionExpired)
		case SessionAccessExpiredRefreshValid:
			a.setCookie(c, a.accessCookie, res.ReplacementAccessToken, res.ReplacementExpiresAt)
		}

		c.Locals(LocalsUserKey, res.Identity)
		c.SetUserContext(WithContext(c.UserContext(), res.Identity))
		return c.Next()
	}
}

// SetSession writes both token cookies
func (a *RouteAuthenticator) SetSession(c *fiber.Ctx, pair TokenPair) {
	a.setCookie(c, a.accessCookie, pair.AccessToken, pair.AccessExpiresAt)
	a.setCookie(c, a.refreshCookie, pair.RefreshToken, pair.RefreshExpiresAt)
}

// SetAccess writes the access cookie only
func (a *RouteAuthenticator) SetAccess(c *fiber.Ctx, token string, expires time.Time) {
	a.setCookie(c, a.accessCookie, token, expires)
}

// ClearSession expires both token cookies
func (a *RouteAuthenticator) ClearSession(c *fiber.Ctx) {
	a.cookieDel(c, a.accessCookie)
	a.cookieDel(c, a.refreshCookie)
}

func (a *RouteAuthenticator) setCookie(c *fiber.Ctx, name, val string, expires time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    val,
		Expires:  expires,
		HTTPOnly: true,
		Secure:   a.secure,
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) cookieDel(c *fiber.Ctx, name string) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    "",
		Expires:  a.now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   a.secure,
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) defaultAuthErrHandler(c *fiber.Ctx, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = ErrUnauthenticated
	}

	a.Logger.Info(
		"Authentication error",
		"error", richErr.Message,
		"text_code", richErr.TextCode,
		"path", c.OriginalURL(),
	)

	return richErr
}

// ErrorResponse is the JSON body of every error
type ErrorResponse struct {
	Error    string         `json:"error"`
	TextCode string         `json:"text_code,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// NewErrorHandler returns a fiber.ErrorHandler rendering auth errors as JSON
// with their HTTP code.
func NewErrorHandler(logger Logger) fiber.ErrorHandler {
	logger = normalizeLogger(logger)
	return func(c *fiber.Ctx, err error) error {
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return c.Status(fiberErr.Code).JSON(ErrorResponse{Error: fiberErr.Message})
		}

		var richErr *goerrors.Error
		if !goerrors.As(err, &richErr) {
			richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected server error occurred").
				WithCode(goerrors.CodeInternal)
		}

		code := richErr.Code
		if code == 0 {
			code = statusForCategory(richErr)
		}

		if code >= http.StatusInternalServerError {
			logger.Error(
				"request failed",
				"error", richErr.Error(),
				"category", richErr.Category,
				"path", c.OriginalURL(),
				"details", print.MaybePrettyJSON(richErr.Metadata),
			)
		} else {
			logger.Debug(
				"request rejected",
				"error", richErr.Message,
				"text_code", richErr.TextCode,
				"path", c.OriginalURL(),
			)
		}

		resp := ErrorResponse{
			Error:    richErr.Message,
			TextCode: richErr.TextCode,
		}
		if code < http.StatusInternalServerError {
			resp.Metadata = richErr.Metadata
		}
		return c.Status(code).JSON(resp)
	}
}

func statusForCategory(err *goerrors.Error) int {
	switch err.Category {
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
