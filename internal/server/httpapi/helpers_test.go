package httpapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/aurorasketchpad/aurora/internal/common"
	"github.com/aurorasketchpad/aurora/internal/logging"
	"github.com/aurorasketchpad/aurora/internal/server/auth"
	"github.com/aurorasketchpad/aurora/internal/server/models"
	"github.com/aurorasketchpad/aurora/internal/server/oauth"
	"github.com/aurorasketchpad/aurora/internal/server/previews"
	"github.com/aurorasketchpad/aurora/internal/server/repositories/repomanager"
	"github.com/aurorasketchpad/aurora/internal/server/services"
)

const (
	testSecret   = "http-test-secret"
	testFrontend = "http://front.test"
)

type capturingMailer struct {
	mu   sync.Mutex
	sent []models.VerificationEmail
}

func (m *capturingMailer) SendVerification(_ context.Context, msg models.VerificationEmail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *capturingMailer) lastToken(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent)
	return m.sent[len(m.sent)-1].Token
}

// fakeProvider hands out the configured profile for code "good".
type fakeProvider struct {
	name    string
	profile models.OAuthProfile
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) AuthCodeURL(state string) string {
	return "https://idp.test/" + p.name + "/authorize?state=" + url.QueryEscape(state)
}

func (p *fakeProvider) Exchange(_ context.Context, code string) (models.OAuthProfile, error) {
	if code != "good" {
		return models.OAuthProfile{}, fmt.Errorf("bad code: %w", common.ErrUpstreamProvider)
	}
	return p.profile, nil
}

type apiEnv struct {
	server *Server
	issuer *auth.Issuer
	mailer *capturingMailer
	states *oauth.MemoryStateStore
	google *fakeProvider
	github *fakeProvider
}

func newAPIEnv(t *testing.T) *apiEnv {
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

	env := &apiEnv{
		issuer: auth.NewIssuer([]byte(testSecret), 7*24*time.Hour),
		mailer: &capturingMailer{},
		states: oauth.NewMemoryStateStore(),
		google: &fakeProvider{name: common.ProviderGoogle},
		github: &fakeProvider{name: common.ProviderGitHub},
	}
	users := services.NewUserService(db, rm, passwords, env.issuer, env.mailer, testFrontend, logging.Nop())
	projects := services.NewProjectService(db, rm, previews.InlineStore{}, logging.Nop())

	env.server = NewServer(Options{FrontendURL: testFrontend + "/", CORSOrigins: []string{testFrontend}},
		users, projects, env.issuer, []OAuthProvider{env.google, env.github}, env.states, logging.Nop())
	return env
}

func (e *apiEnv) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

// signup registers, verifies and logs in, returning the session token.
func (e *apiEnv) signup(t *testing.T, email, password, name string) (string, models.PublicUser) {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/auth/register", map[string]string{"email": email, "password": password, "name": name}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = e.do(t, http.MethodGet, "/api/auth/verify?token="+e.mailer.lastToken(t), nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = e.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": email, "password": password}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var s struct {
		Token string            `json:"token"`
		User  models.PublicUser `json:"user"`
	}
	decode(t, rec, &s)
	return s.Token, s.User
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var e errorResponse
	decode(t, rec, &e)
	return e.Error
}

func testPNG() string {
	img := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 'x'}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(img)
}

var errBoom = errors.New("boom")
