package repomanager

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurorasketchpad/aurora/internal/common"
	"github.com/aurorasketchpad/aurora/internal/server/models"
	"github.com/aurorasketchpad/aurora/internal/server/repositories/projects"
	"github.com/aurorasketchpad/aurora/internal/server/repositories/users"
)

func newDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

func TestFactories_ReturnConcreteRepos(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	for _, m := range []RepositoryManager{NewPostgresRepositoryManager(), NewSQLiteRepositoryManager()} {
		var _ users.Repository = m.Users(db)
		var _ projects.Repository = m.Projects(db)
	}

	assert.IsType(t, &users.PostgresRepository{}, NewPostgresRepositoryManager().Users(db))
	assert.IsType(t, &projects.SQLiteRepository{}, NewSQLiteRepositoryManager().Projects(db))
}

func TestRunMigrations_Dirs(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	orig := gooseUpContext
	defer func() { gooseUpContext = orig }()

	var got []string
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		got = append(got, dir)
		return nil
	}

	require.NoError(t, NewPostgresRepositoryManager().RunMigrations(context.Background(), db))
	require.NoError(t, NewSQLiteRepositoryManager().RunMigrations(context.Background(), db))
	assert.Equal(t, []string{"postgres", "sqlite"}, got)
}

func TestRunMigrations_Error(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return errors.New("boom")
	}
	defer func() { gooseUpContext = orig }()

	err := NewPostgresRepositoryManager().RunMigrations(context.Background(), db)
	require.EqualError(t, err, "boom")
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, _, err := Open(context.Background(), "oracle", "")
	require.Error(t, err)
}

func TestOpen_OpenError(t *testing.T) {
	orig := sqlOpen
	defer func() { sqlOpen = orig }()
	sqlOpen = func(driverName, dsn string) (*sql.DB, error) {
		return nil, errors.New("no driver")
	}

	_, _, err := Open(context.Background(), "postgres", "postgres://nowhere")
	require.ErrorContains(t, err, "db open error")
}

func TestOpen_SQLiteEndToEnd(t *testing.T) {
	ctx := context.Background()

	db, m, err := Open(ctx, "sqlite", "file:repomanager_e2e?mode=memory&cache=shared")
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, m.RunMigrations(ctx, db))
	// second run is a no-op
	require.NoError(t, m.RunMigrations(ctx, db))

	u, err := m.Users(db).Create(ctx, &models.User{Email: "e2e@x.com", Provider: common.ProviderLocal})
	require.NoError(t, err)

	p, err := m.Projects(db).Create(ctx, &models.Project{UserID: u.ID, Name: "n", Content: []byte("[]")})
	require.NoError(t, err)
	assert.Equal(t, u.ID, p.UserID)
}
