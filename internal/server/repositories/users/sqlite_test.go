package users_test

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/dmitrijs2005/cinecritic/internal/common"
	"github.com/dmitrijs2005/cinecritic/internal/server/models"
	"github.com/dmitrijs2005/cinecritic/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/cinecritic/internal/server/repositories/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteRepo(t *testing.T) (users.Repository, *sql.DB) {
	t.Helper()
	ctx := context.Background()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())

	db, m, err := repomanager.Open(ctx, repomanager.DriverSQLite, fmt.Sprintf("file:users_%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, m.RunMigrations(ctx, db))
	return m.Users(db), db
}

func newUser(name string) *models.User {
	return &models.User{Username: name, Email: name + "@example.com", PasswordHash: "$2a$04$" + name}
}

func TestSQLite_BootstrapAdmin(t *testing.T) {
	repo, _ := newSQLiteRepo(t)
	ctx := context.Background()

	alice, err := repo.Create(ctx, newUser("alice"))
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, alice.Role)

	bob, err := repo.Create(ctx, newUser("bob"))
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, bob.Role)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestSQLite_ConcurrentFirstRegistrationsYieldOneAdmin(t *testing.T) {
	repo, _ := newSQLiteRepo(t)
	ctx := context.Background()

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := repo.Create(ctx, newUser(fmt.Sprintf("user%d", i)))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, n)

	admins := 0
	for _, u := range all {
		if u.IsAdmin() {
			admins++
		}
	}
	assert.Equal(t, 1, admins)
}

func TestSQLite_UniqueViolations(t *testing.T) {
	repo, _ := newSQLiteRepo(t)
	ctx := context.Background()

	_, err := repo.Create(ctx, newUser("alice"))
	require.NoError(t, err)

	dupName := newUser("alice")
	dupName.Email = "other@example.com"
	_, err = repo.Create(ctx, dupName)
	assert.ErrorIs(t, err, common.ErrUsernameTaken)

	dupEmail := newUser("alice2")
	dupEmail.Email = "alice@example.com"
	_, err = repo.Create(ctx, dupEmail)
	assert.ErrorIs(t, err, common.ErrEmailTaken)
}

func TestSQLite_LookupsAreCaseSensitive(t *testing.T) {
	repo, _ := newSQLiteRepo(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, newUser("Alice"))
	require.NoError(t, err)

	got, err := repo.GetUserByUsername(ctx, "Alice")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.False(t, got.CreatedAt.IsZero())

	_, err = repo.GetUserByUsername(ctx, "alice")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	byEmail, err := repo.GetUserByEmail(ctx, "Alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)
}

func TestSQLite_UpdateAndDelete(t *testing.T) {
	repo, _ := newSQLiteRepo(t)
	ctx := context.Background()

	_, err := repo.Create(ctx, newUser("alice"))
	require.NoError(t, err)
	bob, err := repo.Create(ctx, newUser("bob"))
	require.NoError(t, err)

	bob.Role = models.RoleAdmin
	bob.Email = "robert@example.com"
	_, err = repo.Update(ctx, bob)
	require.NoError(t, err)

	got, err := repo.GetUserByID(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, got.Role)
	assert.Equal(t, "robert@example.com", got.Email)

	bob.Email = "alice@example.com"
	_, err = repo.Update(ctx, bob)
	assert.ErrorIs(t, err, common.ErrEmailTaken)

	require.NoError(t, repo.Delete(ctx, bob.ID))
	assert.ErrorIs(t, repo.Delete(ctx, bob.ID), common.ErrorNotFound)
	_, err = repo.GetUserByID(ctx, bob.ID)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestSQLite_EmptyStoreAfterDeletesBootstrapsAgain(t *testing.T) {
	repo, _ := newSQLiteRepo(t)
	ctx := context.Background()

	alice, err := repo.Create(ctx, newUser("alice"))
	require.NoError(t, err)
	require.NoError(t, repo.Delete(ctx, alice.ID))

	carol, err := repo.Create(ctx, newUser("carol"))
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, carol.Role)
}
