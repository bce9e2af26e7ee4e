package users

import (
	"context"
	"fmt"

	"github.com/aurorasketchpad/aurora/internal/dbx"
	"github.com/aurorasketchpad/aurora/internal/server/models"
)

// SQLiteRepository is the single-file deployment variant; ?N placeholders
// keep argument order identical to PostgresRepository.
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query :=
		`INSERT INTO users (email, password, name, verified, verification_token, provider, google_id, github_id, avatar)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		user.Email, nullString(user.PasswordHash), user.Name, user.Verified,
		nullString(user.VerificationToken), user.Provider,
		nullString(user.GoogleID), nullString(user.GitHubID), nullString(user.Avatar),
	).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		return nil, wrapErr(err)
	}

	return user, nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`

	u, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, wrapErr(err)
	}
	return u, nil
}

func (r *SQLiteRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = ?`

	u, err := scanUser(r.db.QueryRowContext(ctx, query, email))
	if err != nil {
		return nil, wrapErr(err)
	}
	return u, nil
}

func (r *SQLiteRepository) ConsumeVerificationToken(ctx context.Context, token string) (*models.User, error) {
	query :=
		`UPDATE users SET verified = 1, verification_token = NULL
		 WHERE verification_token = ?
		 RETURNING ` + userColumns

	u, err := scanUser(r.db.QueryRowContext(ctx, query, token))
	if err != nil {
		return nil, wrapErr(err)
	}
	return u, nil
}

func (r *SQLiteRepository) LinkProvider(ctx context.Context, id int64, provider, externalID, avatar string) (*models.User, error) {
	column, err := providerColumn(provider)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(
		`UPDATE users
		 SET %[1]s = ?2, avatar = COALESCE(avatar, ?3), verified = 1, verification_token = NULL
		 WHERE id = ?1 AND %[1]s IS NULL
		 RETURNING `+userColumns, column)

	u, err := scanUser(r.db.QueryRowContext(ctx, query, id, externalID, nullString(avatar)))
	if err != nil {
		return nil, wrapErr(err)
	}
	return u, nil
}

func (r *SQLiteRepository) UpdateProfile(ctx context.Context, id int64, name, avatar string) (*models.User, error) {
	query :=
		`UPDATE users SET name = ?2, avatar = ?3
		 WHERE id = ?1
		 RETURNING ` + userColumns

	u, err := scanUser(r.db.QueryRowContext(ctx, query, id, name, nullString(avatar)))
	if err != nil {
		return nil, wrapErr(err)
	}
	return u, nil
}
