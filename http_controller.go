package auth

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type AuthControllerRoutes struct {
	Registration       string
	RegistrationVerify string
	Refresh            string
	DirectToken        string
	Logout             string
	User               string
	AdminPrivilege     string
}

type AuthController struct {
	Logger              Logger
	Repo                RepositoryManager
	Signup              *SignupFlow
	Tokens              *TokenService
	Resolver            *SessionResolver
	Users               *UserService
	Auther              *RouteAuthenticator
	Routes              *AuthControllerRoutes
	AllowDirectIssuance bool
	UserRelations       UserRelationsFunc
}

// UserRelationsFunc loads the composites and tasks shown with a user profile
type UserRelationsFunc func(ctx context.Context, actor, user *User) (composites, tasks any, err error)

// UserView is the GET /user response body
type UserView struct {
	*User
	Composites any `json:"composites,omitempty"`
	Tasks      any `json:"tasks,omitempty"`
}

type AuthControllerOption func(*AuthController) *AuthController

// WithControllerLogger sets the controller logger
func WithControllerLogger(l Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Logger = normalizeLogger(l)
		return c
	}
}

// WithDirectIssuance enables POST /auth/get-token
func WithDirectIssuance(enabled bool) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.AllowDirectIssuance = enabled
		return c
	}
}

// WithUserRelations attaches related resources to GET /user
func WithUserRelations(fn UserRelationsFunc) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.UserRelations = fn
		return c
	}
}

// WithControllerRoutes overrides route paths
func WithControllerRoutes(routes *AuthControllerRoutes) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if routes != nil {
			c.Routes = routes
		}
		return c
	}
}

func NewAuthController(repo RepositoryManager, signup *SignupFlow, tokens *TokenService, resolver *SessionResolver, users *UserService, auther *RouteAuthenticator, opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger:   defLogger{},
		Repo:     repo,
		Signup:   signup,
		Tokens:   tokens,
		Resolver: resolver,
		Users:    users,
		Auther:   auther,
		Routes: &AuthControllerRoutes{
			Registration:       "/auth/registration",
			RegistrationVerify: "/auth/registration/verify",
			Refresh:            "/auth/refresh",
			DirectToken:        "/auth/get-token",
			Logout:             "/auth/logout",
			User:               "/user",
			AdminPrivilege:     "/admin/privilege",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in auth controller...")
	}

	if c.Auther == nil {
		panic("Missing RouteAuthenticator in auth controller...")
	}

	return c
}

// RegisterAuthRoutes mounts the auth, user and admin routes on app
func RegisterAuthRoutes(app fiber.Router, controller *AuthController) {
	app.Post(controller.Routes.Registration, controller.RegistrationCreate).
		Name("registration.post")
	app.Post(controller.Routes.RegistrationVerify, controller.RegistrationVerify).
		Name("registration-verify.post")
	app.Post(controller.Routes.Refresh, controller.RefreshPost).
		Name("refresh.post")
	app.Post(controller.Routes.DirectToken, controller.DirectTokenPost).
		Name("get-token.post")
	app.Post(controller.Routes.Logout, controller.LogOut).
		Name("logout.post")

	protected := controller.Auther.ProtectedRoute()

	app.Get(controller.Routes.User, protected, controller.UserGet).Name("user.get")
	app.Patch(controller.Routes.User, protected, controller.UserPatch).Name("user.patch")
	app.Delete(controller.Routes.User, protected, controller.UserDelete).Name("user.delete")

	app.Patch(controller.Routes.AdminPrivilege, protected, controller.PrivilegeGrant).Name("privilege.patch")
	app.Delete(controller.Routes.AdminPrivilege, protected, controller.PrivilegeRevoke).Name("privilege.delete")
}

type registrationResponse struct {
	PairID uuid.UUID `json:"pair_id"`
}

type accessResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func (a *AuthController) RegistrationCreate(c *fiber.Ctx) error {
	var msg BeginSignupMessage
	if err := c.BodyParser(&msg); err != nil {
		return withMeta(ErrUnprocessableInput, map[string]any{"body": err.Error()})
	}

	id, err := a.Signup.Begin(c.UserContext(), msg)
	if err != nil {
		return err
	}
	return c.JSON(registrationResponse{PairID: id})
}

func (a *AuthController) RegistrationVerify(c *fiber.Ctx) error {
	var msg VerifySignupMessage
	if err := c.BodyParser(&msg); err != nil {
		return withMeta(ErrUnprocessableInput, map[string]any{"body": err.Error()})
	}

	pair, _, err := a.Signup.Verify(c.UserContext(), msg)
	if err != nil {
		return err
	}

	a.Auther.SetSession(c, pair)
	return c.Status(fiber.StatusCreated).JSON(pair)
}

func (a *AuthController) RefreshPost(c *fiber.Ctx) error {
	token, exp, _, err := a.Resolver.Refresh(c.UserContext(), c.Cookies(a.Auther.RefreshCookieName()))
	if err != nil {
		if IsSessionExpired(err) {
			a.Auther.ClearSession(c)
		}
		return err
	}

	a.Auther.SetAccess(c, token, exp)
	return c.JSON(accessResponse{AccessToken: token, TokenType: BearerTokenType})
}

func (a *AuthController) DirectTokenPost(c *fiber.Ctx) error {
	if !a.AllowDirectIssuance {
		return fiber.ErrNotFound
	}

	id, err := queryUserID(c)
	if err != nil {
		return err
	}

	user, err := a.Repo.Identities().FindByID(c.UserContext(), id)
	if err != nil {
		return err
	}
	if !user.Active {
		return ErrIdentityInactive
	}

	pair, err := a.Tokens.IssuePair(user.ID)
	if err != nil {
		return err
	}

	a.Logger.Info("direct token issuance", "user_id", user.ID)
	a.Auther.SetSession(c, pair)
	return c.Status(fiber.StatusCreated).JSON(pair)
}

func (a *AuthController) LogOut(c *fiber.Ctx) error {
	a.Auther.ClearSession(c)
	return c.SendStatus(fiber.StatusNoContent)
}

func (a *AuthController) UserGet(c *fiber.Ctx) error {
	actor, ok := CurrentUser(c)
	if !ok {
		return ErrUnauthenticated
	}

	id, err := queryUserIDOr(c, actor.ID)
	if err != nil {
		return err
	}

	user, err := a.Users.Get(c.UserContext(), actor, id)
	if err != nil {
		return err
	}

	view := UserView{User: user}
	if a.UserRelations != nil {
		view.Composites, view.Tasks, err = a.UserRelations(c.UserContext(), actor, user)
		if err != nil {
			return err
		}
	}
	return c.JSON(view)
}

func (a *AuthController) UserPatch(c *fiber.Ctx) error {
	actor, ok := CurrentUser(c)
	if !ok {
		return ErrUnauthenticated
	}

	id, err := queryUserIDOr(c, actor.ID)
	if err != nil {
		return err
	}

	var patch ProfilePatch
	if err := c.BodyParser(&patch); err != nil {
		return withMeta(ErrUnprocessableInput, map[string]any{"body": err.Error()})
	}

	user, err := a.Users.UpdateProfile(c.UserContext(), actor, UpdateProfileMessage{UserID: id, Patch: patch})
	if err != nil {
		return err
	}
	return c.JSON(user)
}

func (a *AuthController) UserDelete(c *fiber.Ctx) error {
	actor, ok := CurrentUser(c)
	if !ok {
		return ErrUnauthenticated
	}

	id, err := queryUserIDOr(c, actor.ID)
	if err != nil {
		return err
	}

	user, err := a.Users.Deactivate(c.UserContext(), actor, id)
	if err != nil {
		return err
	}
	if user.ID == actor.ID {
		a.Auther.ClearSession(c)
	}
	return c.JSON(user)
}

func (a *AuthController) PrivilegeGrant(c *fiber.Ctx) error {
	return a.changePrivilege(c, a.Users.GrantRole)
}

func (a *AuthController) PrivilegeRevoke(c *fiber.Ctx) error {
	return a.changePrivilege(c, a.Users.RevokeRole)
}

func (a *AuthController) changePrivilege(c *fiber.Ctx, change func(context.Context, *User, uuid.UUID, Role) (*User, error)) error {
	actor, ok := CurrentUser(c)
	if !ok {
		return ErrUnauthenticated
	}

	id, err := queryUserID(c)
	if err != nil {
		return err
	}

	user, err := change(c.UserContext(), actor, id, RoleAdmin)
	if err != nil {
		return err
	}
	return c.JSON(user)
}

func queryUserID(c *fiber.Ctx) (uuid.UUID, error) {
	raw := strings.TrimSpace(c.Query("user_id"))
	if raw == "" {
		return uuid.Nil, withMeta(ErrUnprocessableInput, map[string]any{"user_id": "is required"})
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, withMeta(ErrUnprocessableInput, map[string]any{"user_id": "must be a valid uuid"})
	}
	return id, nil
}

func queryUserIDOr(c *fiber.Ctx, def uuid.UUID) (uuid.UUID, error) {
	if strings.TrimSpace(c.Query("user_id")) == "" {
		return def, nil
	}
	return queryUserID(c)
}
