// Package oauth runs the authorization-code flow against Google and GitHub and
// reduces the result to a models.OAuthProfile.
package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/aurorasketchpad/aurora/internal/common"
	"github.com/aurorasketchpad/aurora/internal/server/config"
	"github.com/aurorasketchpad/aurora/internal/server/models"
)

const (
	googleUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"
	githubUserURL     = "https://api.github.com/user"
	githubEmailsURL   = "https://api.github.com/user/emails"

	requestTimeout = 10 * time.Second
	maxBodyBytes   = 1 << 20
)

// Provider is one configured identity provider.
type Provider struct {
	name string
	conf *oauth2.Config

	// profile endpoints, overridable in tests
	userURL   string
	emailsURL string

	fetch func(ctx context.Context, p *Provider, client *http.Client) (models.OAuthProfile, error)
}

// NewGoogle configures Google sign-in. callbackURL is the absolute URL of
// the callback route.
func NewGoogle(c config.OAuthClient, callbackURL string) *Provider {
	return &Provider{
		name: common.ProviderGoogle,
		conf: &oauth2.Config{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			Endpoint:     endpoints.Google,
			RedirectURL:  callbackURL,
			Scopes:       []string{"openid", "email", "profile"},
		},
		userURL: googleUserInfoURL,
		fetch:   fetchGoogleProfile,
	}
}

// NewGitHub configures GitHub sign-in.
func NewGitHub(c config.OAuthClient, callbackURL string) *Provider {
	return &Provider{
		name: common.ProviderGitHub,
		conf: &oauth2.Config{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			Endpoint:     endpoints.GitHub,
			RedirectURL:  callbackURL,
			Scopes:       []string{"read:user", "user:email"},
		},
		userURL:   githubUserURL,
		emailsURL: githubEmailsURL,
		fetch:     fetchGitHubProfile,
	}
}

func (p *Provider) Name() string { return p.name }

// AuthCodeURL is where the browser is sent to start sign-in.
func (p *Provider) AuthCodeURL(state string) string {
	return p.conf.AuthCodeURL(state)
}

// Exchange trades an authorization code for the user's profile. Every
// failure wraps common.ErrUpstreamProvider.
func (p *Provider) Exchange(ctx context.Context, code string) (models.OAuthProfile, error) {
	if code == "" {
		return models.OAuthProfile{}, fmt.Errorf("%s: missing authorization code: %w", p.name, common.ErrUpstreamProvider)
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	tok, err := p.conf.Exchange(ctx, code)
	if err != nil {
		return models.OAuthProfile{}, fmt.Errorf("%s: token exchange: %v: %w", p.name, err, common.ErrUpstreamProvider)
	}

	profile, err := p.fetch(ctx, p, p.conf.Client(ctx, tok))
	if err != nil {
		return models.OAuthProfile{}, fmt.Errorf("%s: %v: %w", p.name, err, common.ErrUpstreamProvider)
	}
	return profile, nil
}

func getJSON(ctx context.Context, client *http.Client, url string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	return json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(dst)
}

func fetchGoogleProfile(ctx context.Context, p *Provider, client *http.Client) (models.OAuthProfile, error) {
	var payload struct {
		Sub           string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
	}
	if err := getJSON(ctx, client, p.userURL, &payload); err != nil {
		return models.OAuthProfile{}, fmt.Errorf("fetch profile: %w", err)
	}
	if payload.Sub == "" || payload.Email == "" {
		return models.OAuthProfile{}, fmt.Errorf("profile has no id or email")
	}
	if !payload.EmailVerified {
		return models.OAuthProfile{}, fmt.Errorf("email %s is not verified", payload.Email)
	}

	return models.OAuthProfile{
		Email:      payload.Email,
		ExternalID: payload.Sub,
		Name:       strings.TrimSpace(payload.Name),
		Avatar:     payload.Picture,
	}, nil
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

func fetchGitHubProfile(ctx context.Context, p *Provider, client *http.Client) (models.OAuthProfile, error) {
	var user struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Name      string `json:"name"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := getJSON(ctx, client, p.userURL, &user); err != nil {
		return models.OAuthProfile{}, fmt.Errorf("fetch user: %w", err)
	}
	if user.ID == 0 {
		return models.OAuthProfile{}, fmt.Errorf("profile has no id")
	}

	// The public profile email is not guaranteed verified, so the address
	// always comes from /user/emails.
	var emails []githubEmail
	if err := getJSON(ctx, client, p.emailsURL, &emails); err != nil {
		return models.OAuthProfile{}, fmt.Errorf("fetch emails: %w", err)
	}
	email := primaryEmail(emails)
	if email == "" {
		return models.OAuthProfile{}, fmt.Errorf("no verified primary email")
	}

	name := strings.TrimSpace(user.Name)
	if name == "" {
		name = user.Login
	}

	return models.OAuthProfile{
		Email:      email,
		ExternalID: strconv.FormatInt(user.ID, 10),
		Name:       name,
		Avatar:     user.AvatarURL,
	}, nil
}

func primaryEmail(emails []githubEmail) string {
	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email
		}
	}
	return ""
}
