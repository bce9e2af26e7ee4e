package projects

import (
	"context"
	"encoding/json"

	"github.com/aurorasketchpad/aurora/internal/dbx"
	"github.com/aurorasketchpad/aurora/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, project *models.Project) (*models.Project, error) {
	query :=
		`INSERT INTO projects (user_id, name, content, preview)
		 VALUES ($1, $2, $3, $4)
		 RETURNING ` + projectColumns

	p, err := scanProject(r.db.QueryRowContext(ctx, query,
		project.UserID, project.Name, string(project.Content), project.Preview))
	if err != nil {
		return nil, wrapErr(err)
	}
	return p, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`

	p, err := scanProject(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, wrapErr(err)
	}
	return p, nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID int64) ([]*models.Project, error) {
	query :=
		`SELECT ` + projectColumns + ` FROM projects
		 WHERE user_id = $1
		 ORDER BY updated_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, wrapErr(err)
	}
	return scanProjects(rows)
}

func (r *PostgresRepository) Update(ctx context.Context, id int64, content json.RawMessage, preview string) (*models.Project, error) {
	query :=
		`UPDATE projects SET content = $2, preview = $3, updated_at = now()
		 WHERE id = $1
		 RETURNING ` + projectColumns

	p, err := scanProject(r.db.QueryRowContext(ctx, query, id, string(content), preview))
	if err != nil {
		return nil, wrapErr(err)
	}
	return p, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return wrapErr(err)
	}
	return deleted(res)
}
