// Package projects persists drawings. Ownership is not checked here; callers
// compare Project.UserID with the authenticated user.
package projects

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aurorasketchpad/aurora/internal/common"
	"github.com/aurorasketchpad/aurora/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, project *models.Project) (*models.Project, error)
	GetByID(ctx context.Context, id int64) (*models.Project, error)
	// ListByUser returns the user's projects, most recently updated first.
	ListByUser(ctx context.Context, userID int64) ([]*models.Project, error)
	// Update replaces content and preview and bumps updated_at.
	Update(ctx context.Context, id int64, content json.RawMessage, preview string) (*models.Project, error)
	Delete(ctx context.Context, id int64) error
}

const projectColumns = `id, user_id, name, content, preview, updated_at, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (*models.Project, error) {
	var (
		p       models.Project
		content string
	)
	if err := row.Scan(&p.ID, &p.UserID, &p.Name, &content, &p.Preview, &p.UpdatedAt, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.Content = json.RawMessage(content)
	return &p, nil
}

func scanProjects(rows *sql.Rows) ([]*models.Project, error) {
	defer rows.Close()

	result := make([]*models.Project, 0)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func wrapErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return common.ErrorNotFound
	}
	return fmt.Errorf("db error: %w", err)
}

func deleted(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrorNotFound
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}
