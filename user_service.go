package auth

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/google/uuid"
)

// UpdateProfileMessage changes profile fields of a user
type UpdateProfileMessage struct {
	UserID uuid.UUID
	Patch  ProfilePatch
}

func (m UpdateProfileMessage) Type() string { return "user.profile.update" }

func (m UpdateProfileMessage) Validate() error {
	p := m.Patch
	return validation.ValidateStruct(&p,
		validation.Field(&p.FirstName, validation.NilOrNotEmpty, validation.Length(1, 200)),
		validation.Field(&p.LastName, validation.NilOrNotEmpty, validation.Length(1, 200)),
		validation.Field(&p.Email, validation.NilOrNotEmpty, validation.Length(6, 100), is.Email),
	)
}

// UserServiceOption configures a UserService
type UserServiceOption func(*UserService)

// WithUserServiceLogger sets the logger
func WithUserServiceLogger(l Logger) UserServiceOption {
	return func(s *UserService) {
		s.logger = normalizeLogger(l)
	}
}

// WithUserServiceActivitySink sets the activity sink
func WithUserServiceActivitySink(sink ActivitySink) UserServiceOption {
	return func(s *UserService) {
		s.activity = normalizeActivitySink(sink)
	}
}

// UserService applies CanModify and role rules to identity mutations
type UserService struct {
	repo     RepositoryManager
	logger   Logger
	activity ActivitySink
}

// NewUserService creates a user service
func NewUserService(repo RepositoryManager, opts ...UserServiceOption) *UserService {
	s := &UserService{
		repo:     repo,
		logger:   defLogger{},
		activity: noopActivitySink{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Get returns a user's profile. Only the user may read it.
func (s *UserService) Get(ctx context.Context, actor *User, id uuid.UUID) (*User, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}
	if actor.ID != id {
		return nil, ErrForbidden
	}
	return s.repo.Identities().FindByID(ctx, id)
}

// UpdateProfile applies a non empty patch when actor may modify the target
func (s *UserService) UpdateProfile(ctx context.Context, actor *User, msg UpdateProfileMessage) (*User, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}
	if msg.Patch.Empty() {
		return nil, withMeta(ErrUnprocessableInput, map[string]any{"reason": "no fields to update"})
	}
	if err := msg.Validate(); err != nil {
		return nil, ValidationError(err)
	}

	var updated *User
	err := s.repo.RunInTx(ctx, func(ctx context.Context, repos RepositoryManager) error {
		target, err := repos.Identities().FindByID(ctx, msg.UserID)
		if err != nil {
			return err
		}
		if !CanModify(actor, target) {
			return ErrForbidden
		}
		updated, err = repos.Identities().UpdateProfile(ctx, target.ID, msg.Patch)
		return err
	})
	if err != nil {
		return nil, err
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEvent{
		EventType: ActivityEventUserUpdated,
		ActorID:   actor.ID,
		UserID:    updated.ID,
	})
	return updated, nil
}

// Deactivate marks a user inactive. Owners cannot be deactivated.
func (s *UserService) Deactivate(ctx context.Context, actor *User, id uuid.UUID) (*User, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}

	var updated *User
	err := s.repo.RunInTx(ctx, func(ctx context.Context, repos RepositoryManager) error {
		target, err := repos.Identities().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if !CanModify(actor, target) {
			return ErrForbidden
		}
		if target.Roles.IsOwner() {
			return ErrOwnerProtected
		}
		updated, err = repos.Identities().Deactivate(ctx, target.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEvent{
		EventType: ActivityEventUserDeactivated,
		ActorID:   actor.ID,
		UserID:    updated.ID,
	})
	return updated, nil
}

// GrantRole adds role to the target. Only owners may call it.
func (s *UserService) GrantRole(ctx context.Context, actor *User, id uuid.UUID, role Role) (*User, error) {
	return s.changeRole(ctx, actor, id, role, PlanRoleGrant, ActivityEventRoleGranted)
}

// RevokeRole removes role from the target. Only owners may call it.
func (s *UserService) RevokeRole(ctx context.Context, actor *User, id uuid.UUID, role Role) (*User, error) {
	return s.changeRole(ctx, actor, id, role, PlanRoleRevoke, ActivityEventRoleRevoked)
}

type rolePlanner func(actor, target Principal, role Role) (RoleSet, error)

func (s *UserService) changeRole(ctx context.Context, actor *User, id uuid.UUID, role Role, plan rolePlanner, event ActivityEventType) (*User, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}
	if !CanManageRoles(actor) {
		return nil, ErrForbidden
	}

	var updated *User
	err := s.repo.RunInTx(ctx, func(ctx context.Context, repos RepositoryManager) error {
		target, err := repos.Identities().FindByID(ctx, id)
		if err != nil {
			return err
		}
		roles, err := plan(actor, target, role)
		if err != nil {
			return err
		}
		updated, err = repos.Identities().UpdateRoles(ctx, target.ID, roles)
		return err
	})
	if err != nil {
		return nil, err
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEvent{
		EventType: event,
		ActorID:   actor.ID,
		UserID:    updated.ID,
		Metadata:  map[string]any{"role": role.String()},
	})
	return updated, nil
}

// PromoteOwner grants the owner role without an acting principal. It is
// meant for operator tooling bootstrapping the first owner.
func (s *UserService) PromoteOwner(ctx context.Context, id uuid.UUID) (*User, error) {
	var updated *User
	err := s.repo.RunInTx(ctx, func(ctx context.Context, repos RepositoryManager) error {
		target, err := repos.Identities().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if target.Roles.IsOwner() {
			return withMeta(ErrRoleConflict, map[string]any{"role": RoleOwner.String(), "reason": "role already granted"})
		}
		if !target.Active {
			return withMeta(ErrRoleConflict, map[string]any{"role": RoleOwner.String(), "reason": "user is inactive"})
		}
		updated, err = repos.Identities().UpdateRoles(ctx, target.ID, target.Roles.With(RoleOwner))
		return err
	})
	if err != nil {
		return nil, err
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEvent{
		EventType: ActivityEventRoleGranted,
		UserID:    updated.ID,
		Metadata:  map[string]any{"role": RoleOwner.String(), "source": "operator"},
	})
	return updated, nil
}
