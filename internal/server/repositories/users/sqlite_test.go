package users

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/aurorasketchpad/aurora/internal/common"
	"github.com/aurorasketchpad/aurora/internal/server/migrations"
	"github.com/aurorasketchpad/aurora/internal/server/models"
)

func newSQLiteRepo(t *testing.T) *SQLiteRepository {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)",
		strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	goose.SetBaseFS(migrations.Migrations)
	require.NoError(t, goose.SetDialect("sqlite3"))
	require.NoError(t, goose.Up(db, migrations.SQLiteDir))

	return NewSQLiteRepository(db)
}

func TestSQLite_CreateAndGet(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()

	u, err := repo.Create(ctx, &models.User{
		Email: "a@x.com", PasswordHash: "h", Name: "A", VerificationToken: "tok", Provider: common.ProviderLocal,
	})
	require.NoError(t, err)
	require.NotZero(t, u.ID)
	assert.False(t, u.CreatedAt.IsZero())

	byEmail, err := repo.GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)
	assert.Equal(t, "h", byEmail.PasswordHash)
	assert.Equal(t, "tok", byEmail.VerificationToken)
	assert.False(t, byEmail.Verified)
	assert.Empty(t, byEmail.GoogleID)

	byID, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "A", byID.Name)

	_, err = repo.GetByEmail(ctx, "nobody@x.com")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestSQLite_DuplicateEmailConflicts(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()

	_, err := repo.Create(ctx, &models.User{Email: "dup@x.com", Provider: common.ProviderLocal})
	require.NoError(t, err)

	_, err = repo.Create(ctx, &models.User{Email: "dup@x.com", Provider: common.ProviderGoogle, GoogleID: "g"})
	require.ErrorIs(t, err, common.ErrConflict)
}

func TestSQLite_ProviderIDNotUnique(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()

	a, err := repo.Create(ctx, &models.User{Email: "a@x.com", Provider: common.ProviderGoogle, GoogleID: "g"})
	require.NoError(t, err)
	b, err := repo.Create(ctx, &models.User{Email: "b@x.com", Provider: common.ProviderGoogle, GoogleID: "g"})
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)

	local, err := repo.Create(ctx, &models.User{Email: "c@x.com", Provider: common.ProviderLocal})
	require.NoError(t, err)
	linked, err := repo.LinkProvider(ctx, local.ID, common.ProviderGoogle, "g", "")
	require.NoError(t, err)
	assert.Equal(t, "g", linked.GoogleID)
}

func TestSQLite_ConcurrentCreateOneWins(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()

	const n = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok        int
		conflicts int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Create(ctx, &models.User{Email: "race@x.com", Provider: common.ProviderLocal})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case assert.ErrorIs(t, err, common.ErrConflict):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, conflicts)
}

func TestSQLite_ConsumeVerificationTokenOnce(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()

	_, err := repo.Create(ctx, &models.User{Email: "v@x.com", PasswordHash: "h", VerificationToken: "t1", Provider: common.ProviderLocal})
	require.NoError(t, err)

	u, err := repo.ConsumeVerificationToken(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, u.Verified)
	assert.Empty(t, u.VerificationToken)

	_, err = repo.ConsumeVerificationToken(ctx, "t1")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestSQLite_LinkProvider(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, &models.User{
		Email: "l@x.com", PasswordHash: "h", Name: "L", VerificationToken: "pending", Provider: common.ProviderLocal,
	})
	require.NoError(t, err)

	u, err := repo.LinkProvider(ctx, created.ID, common.ProviderGoogle, "g-1", "https://g/avatar")
	require.NoError(t, err)
	assert.Equal(t, "g-1", u.GoogleID)
	assert.Equal(t, "https://g/avatar", u.Avatar)
	assert.True(t, u.Verified)
	assert.Empty(t, u.VerificationToken)
	assert.Equal(t, "h", u.PasswordHash)

	// avatar already set is kept
	u, err = repo.LinkProvider(ctx, created.ID, common.ProviderGitHub, "gh-1", "https://gh/avatar")
	require.NoError(t, err)
	assert.Equal(t, "gh-1", u.GitHubID)
	assert.Equal(t, "g-1", u.GoogleID)
	assert.Equal(t, "https://g/avatar", u.Avatar)

	// id already set
	_, err = repo.LinkProvider(ctx, created.ID, common.ProviderGoogle, "g-2", "")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestSQLite_UpdateProfile(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, &models.User{Email: "p@x.com", Name: "Old", Avatar: "a", Provider: common.ProviderLocal})
	require.NoError(t, err)

	u, err := repo.UpdateProfile(ctx, created.ID, "New", "")
	require.NoError(t, err)
	assert.Equal(t, "New", u.Name)
	assert.Empty(t, u.Avatar)

	_, err = repo.UpdateProfile(ctx, created.ID+100, "X", "")
	require.ErrorIs(t, err, common.ErrorNotFound)
}
