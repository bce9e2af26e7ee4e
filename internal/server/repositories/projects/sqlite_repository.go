package projects

import (
	"context"
	"encoding/json"

	"github.com/aurorasketchpad/aurora/internal/dbx"
	"github.com/aurorasketchpad/aurora/internal/server/models"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Create(ctx context.Context, project *models.Project) (*models.Project, error) {
	query :=
		`INSERT INTO projects (user_id, name, content, preview)
		 VALUES (?, ?, ?, ?)
		 RETURNING ` + projectColumns

	p, err := scanProject(r.db.QueryRowContext(ctx, query,
		project.UserID, project.Name, string(project.Content), project.Preview))
	if err != nil {
		return nil, wrapErr(err)
	}
	return p, nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id int64) (*models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = ?`

	p, err := scanProject(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, wrapErr(err)
	}
	return p, nil
}

func (r *SQLiteRepository) ListByUser(ctx context.Context, userID int64) ([]*models.Project, error) {
	query :=
		`SELECT ` + projectColumns + ` FROM projects
		 WHERE user_id = ?
		 ORDER BY updated_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, wrapErr(err)
	}
	return scanProjects(rows)
}

func (r *SQLiteRepository) Update(ctx context.Context, id int64, content json.RawMessage, preview string) (*models.Project, error) {
	query :=
		`UPDATE projects
		 SET content = ?2, preview = ?3, updated_at = strftime('%Y-%m-%d %H:%M:%f', 'now')
		 WHERE id = ?1
		 RETURNING ` + projectColumns

	p, err := scanProject(r.db.QueryRowContext(ctx, query, id, string(content), preview))
	if err != nil {
		return nil, wrapErr(err)
	}
	return p, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return wrapErr(err)
	}
	return deleted(res)
}
