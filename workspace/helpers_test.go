package workspace_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	auth "github.com/goliatone/go-phone-auth"
	"github.com/goliatone/go-phone-auth/migrations"
	"github.com/goliatone/go-phone-auth/workspace"
)

type fixture struct {
	db         *bun.DB
	identities auth.IdentityStore
	service    *workspace.Service
	now        time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqldb.Close() })

	require.NoError(t, migrations.Up(context.Background(), sqldb, migrations.Dialect("sqlite")))

	db := bun.NewDB(sqldb, sqlitedialect.New())
	now := time.Date(2024, 7, 24, 12, 0, 0, 0, time.UTC)
	identities := auth.NewIdentityStore(db)

	return &fixture{
		db:         db,
		identities: identities,
		service: workspace.NewService(workspace.NewStore(db), identities,
			workspace.WithClock(func() time.Time { return now }),
		),
		now: now,
	}
}

func (f *fixture) user(t *testing.T, roles ...auth.Role) *auth.User {
	t.Helper()
	u, err := f.identities.Create(context.Background(), &auth.User{
		ID:        uuid.New(),
		FirstName: "Ada",
		LastName:  "Lovelace",
		Phone:     "+15550100",
		Roles:     auth.NewRoleSet(roles...),
		Active:    true,
	})
	require.NoError(t, err)
	return u
}
