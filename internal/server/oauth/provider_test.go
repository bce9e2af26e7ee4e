package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/aurorasketchpad/aurora/internal/common"
	"github.com/aurorasketchpad/aurora/internal/server/config"
	"github.com/aurorasketchpad/aurora/internal/server/models"
)

type upstream struct {
	userInfo any
	user     any
	emails   any
	tokenErr bool
}

func (u *upstream) server(t *testing.T) *httptest.Server {
	t.Helper()
	writeJSON := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}
	authed := func(next func(http.ResponseWriter)) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer upstream-token" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			next(w)
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if u.tokenErr || r.Form.Get("code") != "good-code" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		writeJSON(w, map[string]any{"access_token": "upstream-token", "token_type": "bearer", "expires_in": 3600})
	})
	mux.HandleFunc("/userinfo", authed(func(w http.ResponseWriter) { writeJSON(w, u.userInfo) }))
	mux.HandleFunc("/user", authed(func(w http.ResponseWriter) { writeJSON(w, u.user) }))
	mux.HandleFunc("/user/emails", authed(func(w http.ResponseWriter) { writeJSON(w, u.emails) }))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func pointAt(p *Provider, srv *httptest.Server) {
	p.conf.Endpoint = oauth2.Endpoint{AuthURL: srv.URL + "/auth", TokenURL: srv.URL + "/token"}
	switch p.name {
	case common.ProviderGoogle:
		p.userURL = srv.URL + "/userinfo"
	case common.ProviderGitHub:
		p.userURL = srv.URL + "/user"
		p.emailsURL = srv.URL + "/user/emails"
	}
}

func TestProvider_AuthCodeURL(t *testing.T) {
	p := NewGoogle(config.OAuthClient{ClientID: "cid", ClientSecret: "sec"}, "http://api.test/api/auth/google/callback")

	u, err := url.Parse(p.AuthCodeURL("st4te"))
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "cid", q.Get("client_id"))
	assert.Equal(t, "st4te", q.Get("state"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "http://api.test/api/auth/google/callback", q.Get("redirect_uri"))
	assert.Contains(t, q.Get("scope"), "email")
	assert.Equal(t, common.ProviderGoogle, p.Name())
}

func TestGoogle_Exchange(t *testing.T) {
	up := &upstream{userInfo: map[string]any{
		"sub": "g-123", "email": "ada@example.com", "email_verified": true,
		"name": "Ada Lovelace", "picture": "https://img.test/ada.png",
	}}
	p := NewGoogle(config.OAuthClient{ClientID: "cid", ClientSecret: "sec"}, "http://api.test/cb")
	pointAt(p, up.server(t))

	profile, err := p.Exchange(context.Background(), "good-code")
	require.NoError(t, err)
	assert.Equal(t, models.OAuthProfile{
		Email: "ada@example.com", ExternalID: "g-123", Name: "Ada Lovelace", Avatar: "https://img.test/ada.png",
	}, profile)
}

func TestGoogle_RejectsUnverifiedEmail(t *testing.T) {
	up := &upstream{userInfo: map[string]any{"sub": "g-1", "email": "ada@example.com", "email_verified": false}}
	p := NewGoogle(config.OAuthClient{ClientID: "cid"}, "http://api.test/cb")
	pointAt(p, up.server(t))

	_, err := p.Exchange(context.Background(), "good-code")
	require.ErrorIs(t, err, common.ErrUpstreamProvider)
}

func TestGoogle_BadCode(t *testing.T) {
	p := NewGoogle(config.OAuthClient{ClientID: "cid"}, "http://api.test/cb")
	pointAt(p, (&upstream{}).server(t))

	_, err := p.Exchange(context.Background(), "bad-code")
	require.ErrorIs(t, err, common.ErrUpstreamProvider)

	_, err = p.Exchange(context.Background(), "")
	require.ErrorIs(t, err, common.ErrUpstreamProvider)
}

func TestGitHub_Exchange_PicksPrimaryVerifiedEmail(t *testing.T) {
	up := &upstream{
		user: map[string]any{"id": 583231, "login": "octocat", "name": "", "email": nil, "avatar_url": "https://avatars.test/o.png"},
		emails: []map[string]any{
			{"email": "old@example.com", "primary": false, "verified": true},
			{"email": "octo@example.com", "primary": true, "verified": true},
		},
	}
	p := NewGitHub(config.OAuthClient{ClientID: "cid", ClientSecret: "sec"}, "http://api.test/cb")
	pointAt(p, up.server(t))

	profile, err := p.Exchange(context.Background(), "good-code")
	require.NoError(t, err)
	assert.Equal(t, models.OAuthProfile{
		Email: "octo@example.com", ExternalID: "583231", Name: "octocat", Avatar: "https://avatars.test/o.png",
	}, profile)
}

func TestGitHub_NoVerifiedPrimary(t *testing.T) {
	up := &upstream{
		user:   map[string]any{"id": 1, "login": "octocat"},
		emails: []map[string]any{{"email": "octo@example.com", "primary": true, "verified": false}},
	}
	p := NewGitHub(config.OAuthClient{ClientID: "cid"}, "http://api.test/cb")
	pointAt(p, up.server(t))

	_, err := p.Exchange(context.Background(), "good-code")
	require.ErrorIs(t, err, common.ErrUpstreamProvider)
}

func TestPrimaryEmail(t *testing.T) {
	assert.Equal(t, "", primaryEmail(nil))
	assert.Equal(t, "b@x", primaryEmail([]githubEmail{
		{Email: "a@x", Verified: true},
		{Email: "b@x", Primary: true, Verified: true},
	}))
}
