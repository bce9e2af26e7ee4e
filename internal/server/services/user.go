// Package services contains server-side business logic. This file implements
// UserService: local registration, email verification and login, OAuth
// account resolution, and session issuance.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/aurorasketchpad/aurora/internal/common"
	"github.com/aurorasketchpad/aurora/internal/logging"
	"github.com/aurorasketchpad/aurora/internal/server/auth"
	"github.com/aurorasketchpad/aurora/internal/server/models"
	"github.com/aurorasketchpad/aurora/internal/server/repositories/repomanager"
)

// VerificationMailer delivers the verification link created at registration.
type VerificationMailer interface {
	SendVerification(ctx context.Context, msg models.VerificationEmail) error
}

// Session is a signed session token together with the user it was issued for.
type Session struct {
	Token     string            `json:"token"`
	ExpiresAt time.Time         `json:"-"`
	User      models.PublicUser `json:"user"`
}

// UserService handles account lifecycle and authentication.
type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	passwords   auth.PasswordHasher
	issuer      *auth.Issuer
	mailer      VerificationMailer
	frontendURL string
	logger      logging.Logger

	// newBackoff bounds the create-or-link retry in ResolveOAuthUser.
	newBackoff func() retry.Backoff
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager, passwords auth.PasswordHasher,
	issuer *auth.Issuer, mailer VerificationMailer, frontendURL string, logger logging.Logger) *UserService {
	return &UserService{
		db:          db,
		repomanager: m,
		passwords:   passwords,
		issuer:      issuer,
		mailer:      mailer,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		logger:      logger.With("module", "users"),
		newBackoff: func() retry.Backoff {
			return retry.WithMaxRetries(3, retry.NewConstant(10*time.Millisecond))
		},
	}
}

// Register creates an unverified local account and sends the verification
// link. A failed send is logged; the account is kept and the user can ask
// for support rather than re-registering.
func (s *UserService) Register(ctx context.Context, email, password, name string) error {
	email = common.NormalizeEmail(email)
	name = strings.TrimSpace(name)
	if email == "" || password == "" || name == "" {
		return common.ErrValidation
	}
	if !validEmail(email) {
		return fmt.Errorf("%w: invalid email", common.ErrValidation)
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		if errors.Is(err, common.ErrValidation) {
			return err
		}
		return fmt.Errorf("%w: hash password: %v", common.ErrorInternal, err)
	}

	token, err := common.MakeRandHexString(common.VerificationTokenSize)
	if err != nil {
		return fmt.Errorf("%w: verification token: %v", common.ErrorInternal, err)
	}

	user, err := s.repomanager.Users(s.db).Create(ctx, &models.User{
		Email:             email,
		PasswordHash:      hash,
		Name:              name,
		VerificationToken: token,
		Provider:          common.ProviderLocal,
	})
	if err != nil {
		if errors.Is(err, common.ErrConflict) {
			return common.ErrConflict
		}
		return fmt.Errorf("%w: create user: %v", common.ErrorInternal, err)
	}

	s.logger.Info(ctx, "user registered", "user_id", user.ID)

	msg := models.VerificationEmail{
		UserID:    user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Token:     token,
		Link:      s.VerificationLink(token),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.mailer.SendVerification(ctx, msg); err != nil {
		s.logger.Error(ctx, "verification email not sent", "user_id", user.ID, "error", err)
	}

	return nil
}

// VerificationLink is the frontend page that completes verification.
func (s *UserService) VerificationLink(token string) string {
	return s.frontendURL + "/verify-email?token=" + url.QueryEscape(token)
}

// VerifyEmail consumes a verification token. A token is valid exactly once.
func (s *UserService) VerifyEmail(ctx context.Context, token string) error {
	if token == "" {
		return common.ErrInvalidToken
	}

	user, err := s.repomanager.Users(s.db).ConsumeVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrInvalidToken
		}
		return fmt.Errorf("%w: verify email: %v", common.ErrorInternal, err)
	}

	s.logger.Info(ctx, "email verified", "user_id", user.ID)
	return nil
}

// Login checks local credentials. Unknown email, an account without a
// password and a wrong password all yield ErrInvalidCredentials; the
// verification state is only revealed after the password matched.
func (s *UserService) Login(ctx context.Context, email, password string) (*Session, error) {
	email = common.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, common.ErrValidation
	}

	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.passwords.CompareDummy(password)
			return nil, common.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%w: find user: %v", common.ErrorInternal, err)
	}

	if !user.HasPassword() {
		s.passwords.CompareDummy(password)
		return nil, common.ErrInvalidCredentials
	}

	ok, err := s.passwords.Compare(user.PasswordHash, password)
	if err != nil {
		return nil, fmt.Errorf("%w: compare password: %v", common.ErrorInternal, err)
	}
	if !ok {
		return nil, common.ErrInvalidCredentials
	}

	if !user.Verified {
		return nil, common.ErrNotVerified
	}

	return s.IssueSession(user)
}

// ResolveOAuthUser maps a provider profile onto exactly one account, keyed
// by email: an existing account gets the provider id linked (and becomes
// verified), otherwise a verified passwordless account is created. Repeated
// calls with the same profile are idempotent.
func (s *UserService) ResolveOAuthUser(ctx context.Context, provider string, profile models.OAuthProfile) (*models.User, error) {
	if provider != common.ProviderGoogle && provider != common.ProviderGitHub {
		return nil, fmt.Errorf("%w: unknown provider %q", common.ErrValidation, provider)
	}
	email := common.NormalizeEmail(profile.Email)
	if email == "" || profile.ExternalID == "" {
		return nil, fmt.Errorf("%w: profile without email or id", common.ErrUpstreamProvider)
	}

	var user *models.User
	err := retry.Do(ctx, s.newBackoff(), func(ctx context.Context) error {
		u, err := s.resolveOnce(ctx, provider, email, profile)
		if err != nil {
			// email is the only key a provider row can collide on: another request created it
			if errors.Is(err, common.ErrConflict) {
				return retry.RetryableError(err)
			}
			return err
		}
		user = u
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: resolve %s user: %v", common.ErrorInternal, provider, err)
	}

	return user, nil
}

func (s *UserService) resolveOnce(ctx context.Context, provider, email string, profile models.OAuthProfile) (*models.User, error) {
	repo := s.repomanager.Users(s.db)

	user, err := repo.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if existing := user.ExternalID(provider); existing != "" {
			if existing != profile.ExternalID {
				s.logger.Warn(ctx, "provider id differs from linked id", "user_id", user.ID, "provider", provider)
			}
			return user, nil
		}

		linked, err := repo.LinkProvider(ctx, user.ID, provider, profile.ExternalID, profile.Avatar)
		if errors.Is(err, common.ErrorNotFound) {
			// linked concurrently
			return repo.GetByID(ctx, user.ID)
		}
		if err != nil {
			return nil, err
		}
		s.logger.Info(ctx, "provider linked", "user_id", linked.ID, "provider", provider)
		return linked, nil

	case errors.Is(err, common.ErrorNotFound):
		name := strings.TrimSpace(profile.Name)
		if name == "" {
			name, _, _ = strings.Cut(email, "@")
		}
		u := &models.User{
			Email:    email,
			Name:     name,
			Verified: true,
			Provider: provider,
			Avatar:   profile.Avatar,
		}
		if provider == common.ProviderGoogle {
			u.GoogleID = profile.ExternalID
		} else {
			u.GitHubID = profile.ExternalID
		}

		created, err := repo.Create(ctx, u)
		if err != nil {
			return nil, err
		}
		s.logger.Info(ctx, "user created from provider", "user_id", created.ID, "provider", provider)
		return created, nil

	default:
		return nil, err
	}
}

// IssueSession signs a session for user.
func (s *UserService) IssueSession(user *models.User) (*Session, error) {
	token, exp, err := s.issuer.Issue(user.ID, user.Email, user.Name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}
	return &Session{Token: token, ExpiresAt: exp, User: user.Public()}, nil
}

// Me returns the current state of the session's user.
func (s *UserService) Me(ctx context.Context, userID int64) (*models.PublicUser, error) {
	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("%w: find user: %v", common.ErrorInternal, err)
	}
	pub := user.Public()
	return &pub, nil
}

// UpdateProfile changes the display name and avatar, and re-issues the
// session so its name claim matches.
func (s *UserService) UpdateProfile(ctx context.Context, userID int64, name, avatar string) (*Session, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, common.ErrValidation
	}

	user, err := s.repomanager.Users(s.db).UpdateProfile(ctx, userID, name, strings.TrimSpace(avatar))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("%w: update profile: %v", common.ErrorInternal, err)
	}

	return s.IssueSession(user)
}

// validEmail accepts a bare addr-spec only: no display name, no header
// continuation.
func validEmail(email string) bool {
	if strings.ContainsAny(email, "\r\n") {
		return false
	}
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}
