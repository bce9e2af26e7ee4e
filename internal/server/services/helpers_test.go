package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/aurorasketchpad/aurora/internal/logging"
	"github.com/aurorasketchpad/aurora/internal/server/auth"
	"github.com/aurorasketchpad/aurora/internal/server/models"
	"github.com/aurorasketchpad/aurora/internal/server/repositories/repomanager"
)

const testSecret = "test-secret"

type fakeMailer struct {
	mu   sync.Mutex
	sent []models.VerificationEmail
	err  error
}

func (f *fakeMailer) SendVerification(_ context.Context, msg models.VerificationEmail) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return f.err
}

func (f *fakeMailer) last(t *testing.T) models.VerificationEmail {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.sent, "no verification email sent")
	return f.sent[len(f.sent)-1]
}

type testEnv struct {
	db       *sql.DB
	rm       repomanager.RepositoryManager
	mailer   *fakeMailer
	issuer   *auth.Issuer
	users    *UserService
	projects *ProjectService
	previews *fakePreviews
}

// newTestEnv wires the services against a fresh in-memory SQLite database.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)",
		strings.ReplaceAll(t.Name(), "/", "_"))
	db, rm, err := repomanager.Open(ctx, "sqlite", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, rm.RunMigrations(ctx, db))

	passwords, err := auth.NewPasswords(auth.SchemeBcrypt, bcrypt.MinCost)
	require.NoError(t, err)

	env := &testEnv{
		db:       db,
		rm:       rm,
		mailer:   &fakeMailer{},
		issuer:   auth.NewIssuer([]byte(testSecret), 7*24*time.Hour),
		previews: newFakePreviews(),
	}
	env.users = NewUserService(db, rm, passwords, env.issuer, env.mailer, "http://front.test/", logging.Nop())
	env.projects = NewProjectService(db, rm, env.previews, logging.Nop())
	return env
}

// fakePreviews stores previews as "ref:<n>" and resolves them to URLs.
type fakePreviews struct {
	mu      sync.Mutex
	n       int
	saved   map[string]string
	deleted []string
	saveErr error
	urlErr  error
}

func newFakePreviews() *fakePreviews {
	return &fakePreviews{saved: map[string]string{}}
}

func (f *fakePreviews) Save(_ context.Context, userID int64, preview string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return "", f.saveErr
	}
	f.n++
	ref := fmt.Sprintf("ref:%d:%d", userID, f.n)
	f.saved[ref] = preview
	return ref, nil
}

func (f *fakePreviews) URL(_ context.Context, ref string) (string, error) {
	if f.urlErr != nil {
		return "", f.urlErr
	}
	return "https://cdn.test/" + ref, nil
}

func (f *fakePreviews) Delete(_ context.Context, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, ref)
	if _, ok := f.saved[ref]; !ok {
		return errors.New("no such preview")
	}
	delete(f.saved, ref)
	return nil
}

func (e *testEnv) registerVerified(t *testing.T, email, password, name string) *models.User {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.users.Register(ctx, email, password, name))
	require.NoError(t, e.users.VerifyEmail(ctx, e.mailer.last(t).Token))
	u, err := e.rm.Users(e.db).GetByEmail(ctx, strings.ToLower(email))
	require.NoError(t, err)
	return u
}
