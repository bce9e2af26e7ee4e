package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/aurorasketchpad/aurora/internal/common"
	"github.com/aurorasketchpad/aurora/internal/server/models"
)

type createProjectRequest struct {
	Name string `json:"name"`
}

type createProjectResponse struct {
	*models.Project
	Message string `json:"message"`
}

type updateProjectRequest struct {
	Content json.RawMessage `json:"content"`
	Preview string          `json:"preview"`
}

type updateProjectResponse struct {
	Success bool            `json:"success"`
	Project *models.Project `json:"project"`
}

type successResponse struct {
	Success bool `json:"success"`
}

// projectID parses the :id path parameter. Anything that is not a positive
// integer cannot name a project.
func projectID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, common.ErrorNotFound
	}
	return id, nil
}

func (s *Server) listProjects(c echo.Context) error {
	list, err := s.projects.List(c.Request().Context(), sessionClaims(c).UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}

func (s *Server) createProject(c echo.Context) error {
	var req createProjectRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	p, err := s.projects.Create(c.Request().Context(), sessionClaims(c).UserID, req.Name)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, createProjectResponse{Project: p, Message: "Project created"})
}

func (s *Server) getProject(c echo.Context) error {
	id, err := projectID(c)
	if err != nil {
		return err
	}
	p, err := s.projects.Get(c.Request().Context(), sessionClaims(c).UserID, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (s *Server) updateProject(c echo.Context) error {
	id, err := projectID(c)
	if err != nil {
		return err
	}
	var req updateProjectRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	p, err := s.projects.Update(c.Request().Context(), sessionClaims(c).UserID, id, req.Content, req.Preview)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, updateProjectResponse{Success: true, Project: p})
}

func (s *Server) deleteProject(c echo.Context) error {
	id, err := projectID(c)
	if err != nil {
		return err
	}
	if err := s.projects.Delete(c.Request().Context(), sessionClaims(c).UserID, id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, successResponse{Success: true})
}
