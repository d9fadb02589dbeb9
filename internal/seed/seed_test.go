package seed

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/marketdb/internal/config"
	"github.com/roach88/marketdb/internal/data"
	"github.com/roach88/marketdb/internal/jsonstore"
	"github.com/roach88/marketdb/internal/query"
	"github.com/roach88/marketdb/internal/schema"
	"github.com/roach88/marketdb/internal/testutil"
)

func openUsers(t *testing.T) (data.Model, *testutil.DeterministicClock) {
	t.Helper()
	clock := testutil.NewDeterministicClock()
	s, err := jsonstore.Open(jsonstore.Options{
		Path:   filepath.Join(t.TempDir(), "store.json"),
		Schema: schema.MustLoad(),
		Clock:  clock,
		IDs:    data.NewSequenceGenerator("user"),
		Logger: slog.New(slog.DiscardHandler),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	users, err := s.Model("user")
	require.NoError(t, err)
	return users, clock
}

func defaultAdmin() config.Admin {
	return config.DefaultConfig().Admin
}

func TestEnsureAdminCreatesSuperAdmin(t *testing.T) {
	ctx := context.Background()
	users, clock := openUsers(t)

	user, created, err := EnsureAdmin(ctx, users, defaultAdmin(), clock)
	require.NoError(t, err)
	assert.True(t, created)

	assert.Equal(t, "admin@localhost", user["email"])
	assert.Equal(t, "Root Admin", user["name"])
	assert.Equal(t, RoleSuperAdmin, user["role"])
	assert.Equal(t, true, user["isApproved"])
	assert.Equal(t, testutil.Epoch, user["emailVerified"])
	assert.NotEmpty(t, user.ID())
	assert.NotEqual(t, "Passw0rd!", user["hashedPassword"])
	assert.True(t, CheckPassword(user, "Passw0rd!"))
	assert.False(t, CheckPassword(user, "wrong"))
}

func TestEnsureAdminIsIdempotent(t *testing.T) {
	ctx := context.Background()
	users, clock := openUsers(t)

	first, created, err := EnsureAdmin(ctx, users, defaultAdmin(), clock)
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := EnsureAdmin(ctx, users, defaultAdmin(), clock)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first, second)

	n, err := users.Count(ctx, query.Eq("email", "admin@localhost"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestEnsureAdminLeavesExistingUserAlone(t *testing.T) {
	ctx := context.Background()
	users, clock := openUsers(t)

	_, err := users.Create(ctx, map[string]any{"email": "admin@localhost", "role": "CUSTOMER"})
	require.NoError(t, err)

	user, created, err := EnsureAdmin(ctx, users, defaultAdmin(), clock)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "CUSTOMER", user["role"])
}

func TestEnsureAdminRequiresEmail(t *testing.T) {
	users, clock := openUsers(t)
	_, _, err := EnsureAdmin(context.Background(), users, config.Admin{}, clock)
	assert.ErrorIs(t, err, ErrNoEmail)
}

func TestUpsertAdminResetsExistingAccount(t *testing.T) {
	ctx := context.Background()
	users, clock := openUsers(t)

	existing, err := users.Create(ctx, map[string]any{"email": "ops@example.com", "name": "Old", "role": "CUSTOMER"})
	require.NoError(t, err)

	admin := config.Admin{Email: "ops@example.com", Password: "n3w", Name: "Ops"}
	user, err := UpsertAdmin(ctx, users, admin, clock)
	require.NoError(t, err)

	assert.Equal(t, existing.ID(), user.ID())
	assert.Equal(t, "Ops", user["name"])
	assert.Equal(t, RoleSuperAdmin, user["role"])
	assert.Equal(t, true, user["isApproved"])
	assert.True(t, CheckPassword(user, "n3w"))

	n, err := users.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestUpsertAdminCreatesWhenAbsent(t *testing.T) {
	ctx := context.Background()
	users, clock := openUsers(t)

	user, err := UpsertAdmin(ctx, users, defaultAdmin(), clock)
	require.NoError(t, err)
	assert.Equal(t, "admin@localhost", user["email"])
	assert.True(t, CheckPassword(user, "Passw0rd!"))
}
