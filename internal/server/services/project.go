package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aurorasketchpad/aurora/internal/common"
	"github.com/aurorasketchpad/aurora/internal/dbx"
	"github.com/aurorasketchpad/aurora/internal/logging"
	"github.com/aurorasketchpad/aurora/internal/server/models"
	"github.com/aurorasketchpad/aurora/internal/server/repositories/repomanager"
)

// PreviewStore keeps project preview images. Save turns what the client sent
// into the reference stored in the project row; URL turns a stored reference
// back into something a browser can load.
type PreviewStore interface {
	Save(ctx context.Context, userID int64, preview string) (string, error)
	URL(ctx context.Context, ref string) (string, error)
	Delete(ctx context.Context, ref string) error
}

// ProjectService is ownership-checked project persistence.
type ProjectService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	previews    PreviewStore
	logger      logging.Logger
}

func NewProjectService(db *sql.DB, m repomanager.RepositoryManager, previews PreviewStore, logger logging.Logger) *ProjectService {
	return &ProjectService{
		db:          db,
		repomanager: m,
		previews:    previews,
		logger:      logger.With("module", "projects"),
	}
}

var emptyContent = json.RawMessage("[]")

// List returns the user's projects, most recently updated first.
func (s *ProjectService) List(ctx context.Context, userID int64) ([]*models.Project, error) {
	list, err := s.repomanager.Projects(s.db).ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: list projects: %v", common.ErrorInternal, err)
	}
	for _, p := range list {
		s.resolvePreview(ctx, p)
	}
	return list, nil
}

// Create makes an empty project. A blank name becomes DefaultProjectName.
func (s *ProjectService) Create(ctx context.Context, userID int64, name string) (*models.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = common.DefaultProjectName
	}

	p, err := s.repomanager.Projects(s.db).Create(ctx, &models.Project{
		UserID:  userID,
		Name:    name,
		Content: emptyContent,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create project: %v", common.ErrorInternal, err)
	}

	s.logger.Info(ctx, "project created", "user_id", userID, "project_id", p.ID)
	return p, nil
}

// Get returns a project owned by userID.
func (s *ProjectService) Get(ctx context.Context, userID, id int64) (*models.Project, error) {
	p, err := s.owned(ctx, s.db, userID, id)
	if err != nil {
		return nil, err
	}
	s.resolvePreview(ctx, p)
	return p, nil
}

// Update stores new content and preview for a project owned by userID.
// The ownership check and the write run in one transaction.
func (s *ProjectService) Update(ctx context.Context, userID, id int64, content json.RawMessage, preview string) (*models.Project, error) {
	if len(content) == 0 || string(content) == "null" {
		return nil, fmt.Errorf("%w: content", common.ErrValidation)
	}
	if !json.Valid(content) {
		return nil, fmt.Errorf("%w: content is not valid JSON", common.ErrValidation)
	}

	ref := ""
	if preview != "" {
		var err error
		if ref, err = s.previews.Save(ctx, userID, preview); err != nil {
			if errors.Is(err, common.ErrValidation) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: save preview: %v", common.ErrorInternal, err)
		}
	}

	var (
		updated *models.Project
		oldRef  string
	)
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		current, err := s.owned(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		oldRef = current.Preview

		updated, err = s.repomanager.Projects(tx).Update(ctx, id, content, ref)
		if err != nil {
			return fmt.Errorf("%w: update project: %v", common.ErrorInternal, err)
		}
		return nil
	})
	if err != nil {
		s.dropPreview(ctx, ref, "")
		return nil, err
	}

	s.dropPreview(ctx, oldRef, ref)
	s.resolvePreview(ctx, updated)
	return updated, nil
}

// Delete removes a project owned by userID together with its preview.
func (s *ProjectService) Delete(ctx context.Context, userID, id int64) error {
	var ref string
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		current, err := s.owned(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		ref = current.Preview

		if err := s.repomanager.Projects(tx).Delete(ctx, id); err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrorNotFound
			}
			return fmt.Errorf("%w: delete project: %v", common.ErrorInternal, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "project deleted", "user_id", userID, "project_id", id)
	s.dropPreview(ctx, ref, "")
	return nil
}

// owned loads a project and checks it belongs to userID.
func (s *ProjectService) owned(ctx context.Context, db dbx.DBTX, userID, id int64) (*models.Project, error) {
	p, err := s.repomanager.Projects(db).GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("%w: find project: %v", common.ErrorInternal, err)
	}
	if p.UserID != userID {
		s.logger.Warn(ctx, "project ownership mismatch", "user_id", userID, "project_id", id)
		return nil, common.ErrUnauthorized
	}
	return p, nil
}

func (s *ProjectService) resolvePreview(ctx context.Context, p *models.Project) {
	if p.Preview == "" {
		return
	}
	u, err := s.previews.URL(ctx, p.Preview)
	if err != nil {
		s.logger.Warn(ctx, "preview url failed", "project_id", p.ID, "error", err)
		p.Preview = ""
		return
	}
	p.Preview = u
}

// dropPreview deletes ref unless it is empty or still in use as keep.
// Failures are logged only.
func (s *ProjectService) dropPreview(ctx context.Context, ref, keep string) {
	if ref == "" || ref == keep {
		return
	}
	if err := s.previews.Delete(ctx, ref); err != nil {
		s.logger.Warn(ctx, "preview delete failed", "ref", ref, "error", err)
	}
}
