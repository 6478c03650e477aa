package auth_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-phone-auth"
	"github.com/goliatone/go-phone-auth/memstore"
)

type usersFixture struct {
	store   *memstore.Store
	sink    *recordingSink
	service *auth.UserService
}

func newUsersFixture() *usersFixture {
	f := &usersFixture{
		store: memstore.New(),
		sink:  &recordingSink{},
	}
	f.service = auth.NewUserService(f.store,
		auth.WithUserServiceLogger(nopLogger{}),
		auth.WithUserServiceActivitySink(f.sink),
	)
	return f
}

func (f *usersFixture) user(t *testing.T, roles ...auth.Role) *auth.User {
	t.Helper()
	u, err := f.store.Identities().Create(context.Background(), &auth.User{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Phone:     testPhone,
		Roles:     auth.NewRoleSet(roles...),
		Active:    true,
	})
	require.NoError(t, err)
	return u
}

func strPtr(s string) *string { return &s }

func TestUserService_Get(t *testing.T) {
	f := newUsersFixture()
	ctx := context.Background()
	u := f.user(t)
	owner := f.user(t, auth.RoleOwner)

	got, err := f.service.Get(ctx, u, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = f.service.Get(ctx, owner, u.ID)
	assert.True(t, auth.IsForbidden(err))

	_, err = f.service.Get(ctx, nil, u.ID)
	assert.True(t, auth.IsUnauthenticated(err))
}

func TestUserService_UpdateProfile(t *testing.T) {
	f := newUsersFixture()
	ctx := context.Background()
	u := f.user(t)
	other := f.user(t)
	admin := f.user(t, auth.RoleAdmin)

	updated, err := f.service.UpdateProfile(ctx, u, auth.UpdateProfileMessage{
		UserID: u.ID,
		Patch:  auth.ProfilePatch{FirstName: strPtr("Grace"), Email: strPtr("grace@example.com")},
	})
	require.NoError(t, err)
	assert.Equal(t, "Grace", updated.FirstName)
	assert.Equal(t, "Lovelace", updated.LastName)
	assert.Equal(t, "grace@example.com", updated.Email)

	_, err = f.service.UpdateProfile(ctx, other, auth.UpdateProfileMessage{
		UserID: u.ID,
		Patch:  auth.ProfilePatch{LastName: strPtr("Hopper")},
	})
	assert.True(t, auth.IsForbidden(err))

	updated, err = f.service.UpdateProfile(ctx, admin, auth.UpdateProfileMessage{
		UserID: u.ID,
		Patch:  auth.ProfilePatch{LastName: strPtr("Hopper")},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hopper", updated.LastName)

	_, err = f.service.UpdateProfile(ctx, u, auth.UpdateProfileMessage{UserID: u.ID})
	assert.True(t, auth.IsUnprocessable(err))

	_, err = f.service.UpdateProfile(ctx, u, auth.UpdateProfileMessage{
		UserID: u.ID,
		Patch:  auth.ProfilePatch{Email: strPtr("not-an-email")},
	})
	assert.True(t, auth.IsUnprocessable(err))

	_, err = f.service.UpdateProfile(ctx, other, auth.UpdateProfileMessage{
		UserID: other.ID,
		Patch:  auth.ProfilePatch{Email: strPtr("grace@example.com")},
	})
	assert.True(t, auth.IsConflict(err), "emails are unique")

	_, err = f.service.UpdateProfile(ctx, admin, auth.UpdateProfileMessage{
		UserID: uuid.New(),
		Patch:  auth.ProfilePatch{LastName: strPtr("Nobody")},
	})
	assert.True(t, auth.IsNotFound(err))

	assert.Contains(t, f.sink.Types(), auth.ActivityEventUserUpdated)
}

func TestUserService_Deactivate(t *testing.T) {
	f := newUsersFixture()
	ctx := context.Background()
	u := f.user(t)
	admin := f.user(t, auth.RoleAdmin)
	owner := f.user(t, auth.RoleOwner)

	_, err := f.service.Deactivate(ctx, admin, owner.ID)
	assert.True(t, auth.IsForbidden(err))

	_, err = f.service.Deactivate(ctx, owner, owner.ID)
	assert.Equal(t, auth.TextCodeOwnerProtected, textCode(err))

	updated, err := f.service.Deactivate(ctx, u, u.ID)
	require.NoError(t, err)
	assert.False(t, updated.Active)

	updated, err = f.service.Deactivate(ctx, owner, admin.ID)
	require.NoError(t, err)
	assert.False(t, updated.Active)
}

func TestUserService_Roles(t *testing.T) {
	f := newUsersFixture()
	ctx := context.Background()
	u := f.user(t)
	admin := f.user(t, auth.RoleAdmin)
	owner := f.user(t, auth.RoleOwner)

	_, err := f.service.GrantRole(ctx, admin, u.ID, auth.RoleAdmin)
	assert.True(t, auth.IsForbidden(err))

	updated, err := f.service.GrantRole(ctx, owner, u.ID, auth.RoleAdmin)
	require.NoError(t, err)
	assert.True(t, updated.Roles.IsAdmin())

	_, err = f.service.GrantRole(ctx, owner, u.ID, auth.RoleAdmin)
	assert.True(t, auth.IsConflict(err))

	updated, err = f.service.RevokeRole(ctx, owner, u.ID, auth.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, auth.DefaultRoles(), updated.Roles)

	_, err = f.service.RevokeRole(ctx, owner, u.ID, auth.RoleAdmin)
	assert.True(t, auth.IsConflict(err))

	_, err = f.service.GrantRole(ctx, owner, uuid.New(), auth.RoleAdmin)
	assert.True(t, auth.IsNotFound(err))

	assert.Equal(t, []auth.ActivityEventType{
		auth.ActivityEventRoleGranted,
		auth.ActivityEventRoleRevoked,
	}, f.sink.Types())
}

func TestUserService_PromoteOwner(t *testing.T) {
	f := newUsersFixture()
	ctx := context.Background()
	u := f.user(t)

	updated, err := f.service.PromoteOwner(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, updated.Roles.IsOwner())
	assert.True(t, updated.Roles.Has(auth.RoleUser))

	_, err = f.service.PromoteOwner(ctx, u.ID)
	assert.True(t, auth.IsConflict(err))

	inactive := f.user(t)
	_, err = f.service.Deactivate(ctx, inactive, inactive.ID)
	require.NoError(t, err)
	_, err = f.service.PromoteOwner(ctx, inactive.ID)
	assert.True(t, auth.IsConflict(err))
}
