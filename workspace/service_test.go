package workspace_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-phone-auth"
	"github.com/goliatone/go-phone-auth/workspace"
)

func TestCompositeLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t)

	c, err := f.service.CreateComposite(ctx, owner, workspace.CreateCompositeMessage{
		Name:        " Garden ",
		Description: "spring work",
	})
	require.NoError(t, err)
	assert.Equal(t, "Garden", c.Name)
	assert.Equal(t, workspace.StatusActive, c.Status)
	assert.Equal(t, owner.ID, c.OwnerID)

	task, err := f.service.CreateTask(ctx, owner, workspace.CreateTaskMessage{
		Description: "plant tomatoes",
		Level:       workspace.LevelUrgent,
		CompositeID: &c.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, owner.ID, task.OwnerID)

	got, err := f.service.GetComposite(ctx, owner, c.ID)
	require.NoError(t, err)
	require.Len(t, got.Tasks, 1)
	assert.Equal(t, task.ID, got.Tasks[0].ID)

	name := "Orchard"
	updated, err := f.service.UpdateComposite(ctx, owner, c.ID, workspace.CompositePatch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Orchard", updated.Name)
	assert.Equal(t, "spring work", updated.Description)

	closed, err := f.service.CloseComposite(ctx, owner, c.ID)
	require.NoError(t, err)
	assert.Equal(t, workspace.StatusDone, closed.Status)
	require.NotNil(t, closed.ClosedAt)

	_, err = f.service.CloseComposite(ctx, owner, c.ID)
	require.Error(t, err)
	assert.True(t, workspace.IsNotActive(err))

	_, err = f.service.CreateTask(ctx, owner, workspace.CreateTaskMessage{
		Description: "too late",
		Level:       workspace.LevelFree,
		CompositeID: &c.ID,
	})
	assert.True(t, workspace.IsNotActive(err))

	require.NoError(t, f.service.DeleteComposite(ctx, owner, c.ID))

	_, err = f.service.GetComposite(ctx, owner, c.ID)
	assert.True(t, workspace.IsNotFound(err))
	_, err = f.service.GetTask(ctx, owner, task.ID)
	assert.True(t, workspace.IsNotFound(err))
}

func TestTaskLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t)

	task, err := f.service.CreateTask(ctx, owner, workspace.CreateTaskMessage{
		Description: "call plumber",
		Level:       workspace.LevelOptimal,
	})
	require.NoError(t, err)
	assert.Nil(t, task.CompositeID)

	tasks, err := f.service.ListTasks(ctx, owner, workspace.TaskFilter{})
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	level := workspace.LevelUrgent
	updated, err := f.service.UpdateTask(ctx, owner, task.ID, workspace.TaskPatch{Level: &level})
	require.NoError(t, err)
	assert.Equal(t, workspace.LevelUrgent, updated.Level)
	assert.Equal(t, "call plumber", updated.Description)

	closed, err := f.service.CloseTask(ctx, owner, task.ID)
	require.NoError(t, err)
	assert.Equal(t, workspace.StatusDone, closed.Status)
	require.NotNil(t, closed.ClosedAt)
	assert.True(t, closed.ClosedAt.Equal(f.now))

	_, err = f.service.CloseTask(ctx, owner, task.ID)
	assert.True(t, workspace.IsNotActive(err))

	require.NoError(t, f.service.DeleteTask(ctx, owner, task.ID))
	err = f.service.DeleteTask(ctx, owner, task.ID)
	assert.True(t, workspace.IsNotFound(err))
}

func TestWorkspaceValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t)

	_, err := f.service.CreateComposite(ctx, owner, workspace.CreateCompositeMessage{})
	assert.True(t, auth.IsUnprocessable(err))

	_, err = f.service.CreateTask(ctx, owner, workspace.CreateTaskMessage{
		Description: "x",
		Level:       workspace.Level("someday"),
	})
	assert.True(t, auth.IsUnprocessable(err))

	c, err := f.service.CreateComposite(ctx, owner, workspace.CreateCompositeMessage{Name: "Home"})
	require.NoError(t, err)
	_, err = f.service.UpdateComposite(ctx, owner, c.ID, workspace.CompositePatch{})
	assert.True(t, auth.IsUnprocessable(err))

	_, err = f.service.GetComposite(ctx, owner, uuid.New())
	assert.True(t, workspace.IsNotFound(err))
}

func TestWorkspaceAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	alice := f.user(t)
	bob := f.user(t)
	admin := f.user(t, auth.RoleAdmin)
	otherAdmin := f.user(t, auth.RoleAdmin)
	owner := f.user(t, auth.RoleOwner)

	c, err := f.service.CreateComposite(ctx, alice, workspace.CreateCompositeMessage{Name: "Alice"})
	require.NoError(t, err)

	_, err = f.service.GetComposite(ctx, bob, c.ID)
	assert.True(t, auth.IsForbidden(err), "plain users cannot touch other users' data")

	_, err = f.service.CloseComposite(ctx, admin, c.ID)
	require.NoError(t, err, "admins may act on plain users")

	adminComposite, err := f.service.CreateComposite(ctx, admin, workspace.CreateCompositeMessage{Name: "Admin"})
	require.NoError(t, err)

	err = f.service.DeleteComposite(ctx, otherAdmin, adminComposite.ID)
	assert.True(t, auth.IsForbidden(err), "admins cannot act on peer admins")

	ownerComposite, err := f.service.CreateComposite(ctx, owner, workspace.CreateCompositeMessage{Name: "Owner"})
	require.NoError(t, err)

	_, err = f.service.ListComposites(ctx, admin, owner.ID)
	assert.True(t, auth.IsForbidden(err), "admins cannot act on owners")

	require.NoError(t, f.service.DeleteComposite(ctx, owner, adminComposite.ID))

	list, err := f.service.ListComposites(ctx, owner, uuid.Nil)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, ownerComposite.ID, list[0].ID)

	_, err = f.service.CreateTask(ctx, bob, workspace.CreateTaskMessage{
		Description: "sneaky",
		Level:       workspace.LevelFree,
		CompositeID: &c.ID,
	})
	assert.True(t, auth.IsForbidden(err))
}

func TestUserRelations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t)
	bob := f.user(t)

	composites, tasks, err := f.service.UserRelations(ctx, alice, alice)
	require.NoError(t, err)
	assert.Empty(t, composites)
	assert.NotNil(t, composites)
	assert.Empty(t, tasks)

	c, err := f.service.CreateComposite(ctx, alice, workspace.CreateCompositeMessage{Name: "Garden"})
	require.NoError(t, err)
	_, err = f.service.CreateTask(ctx, alice, workspace.CreateTaskMessage{
		Description: "plant tomatoes",
		Level:       workspace.LevelFree,
		CompositeID: &c.ID,
	})
	require.NoError(t, err)
	_, err = f.service.CreateTask(ctx, alice, workspace.CreateTaskMessage{
		Description: "call the plumber",
		Level:       workspace.LevelOptimal,
	})
	require.NoError(t, err)

	composites, tasks, err = f.service.UserRelations(ctx, alice, alice)
	require.NoError(t, err)
	require.Len(t, composites, 1)
	assert.Equal(t, c.ID, composites.([]*workspace.Composite)[0].ID)
	assert.Len(t, tasks, 2)

	_, _, err = f.service.UserRelations(ctx, bob, alice)
	assert.True(t, auth.IsForbidden(err))
}
