// Package users persists accounts. Email is the account-merge key and is
// stored already normalised; uniqueness is enforced by the database.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aurorasketchpad/aurora/internal/common"
	"github.com/aurorasketchpad/aurora/internal/dbx"
	"github.com/aurorasketchpad/aurora/internal/server/models"
)

type Repository interface {
	// Create inserts a user and fills in ID and CreatedAt. A taken email
	// yields common.ErrConflict.
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// ConsumeVerificationToken marks the holder of token verified and clears
	// the token in one statement, so a token can be consumed only once.
	ConsumeVerificationToken(ctx context.Context, token string) (*models.User, error)
	// LinkProvider sets the provider id on a user that has none for that
	// provider, fills avatar if empty and marks the user verified. It returns
	// common.ErrorNotFound when the id was already set.
	LinkProvider(ctx context.Context, id int64, provider, externalID, avatar string) (*models.User, error)
	UpdateProfile(ctx context.Context, id int64, name, avatar string) (*models.User, error)
}

const userColumns = `id, email, password, name, verified, verification_token, provider, google_id, github_id, avatar, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		u                                         models.User
		password, token, googleID, githubID, avatar sql.NullString
	)

	err := row.Scan(&u.ID, &u.Email, &password, &u.Name, &u.Verified, &token,
		&u.Provider, &googleID, &githubID, &avatar, &u.CreatedAt)
	if err != nil {
		return nil, err
	}

	u.PasswordHash = password.String
	u.VerificationToken = token.String
	u.GoogleID = googleID.String
	u.GitHubID = githubID.String
	u.Avatar = avatar.String
	return &u, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// providerColumn whitelists the column holding a provider's external id.
func providerColumn(provider string) (string, error) {
	switch provider {
	case common.ProviderGoogle:
		return "google_id", nil
	case common.ProviderGitHub:
		return "github_id", nil
	}
	return "", fmt.Errorf("%w: unknown provider %q", common.ErrValidation, provider)
}

func wrapErr(err error) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return common.ErrorNotFound
	case dbx.IsUniqueViolation(err):
		return fmt.Errorf("%w: %v", common.ErrConflict, err)
	default:
		return fmt.Errorf("db error: %w", err)
	}
}
