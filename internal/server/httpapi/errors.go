package httpapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/aurorasketchpad/aurora/internal/common"
)

type errorResponse struct {
	Error string `json:"error"`
}

type errorMapping struct {
	err     error
	status  int
	message string
}

// errorTable maps service errors to responses. Order matters: the first
// match wins. An empty message means the error text itself is shown.
var errorTable = []errorMapping{
	{common.ErrValidation, http.StatusBadRequest, ""},
	{common.ErrConflict, http.StatusBadRequest, "Email already registered"},
	{common.ErrInvalidCredentials, http.StatusBadRequest, "Invalid credentials"},
	{common.ErrInvalidToken, http.StatusBadRequest, "Invalid or expired token"},
	{common.ErrNotVerified, http.StatusForbidden, "Email not verified. Please check your inbox."},
	{common.ErrUnauthorized, http.StatusForbidden, "Unauthorized"},
	{common.ErrorNotFound, http.StatusNotFound, "Not found"},
	{common.ErrTokenExpired, http.StatusUnauthorized, "Session expired"},
	{common.ErrUnauthenticated, http.StatusUnauthorized, "Authentication required"},
}

func statusFor(err error) (int, string) {
	for _, m := range errorTable {
		if errors.Is(err, m.err) {
			if m.message == "" {
				return m.status, err.Error()
			}
			return m.status, m.message
		}
	}
	return http.StatusInternalServerError, "Server error"
}

func writeError(c echo.Context, err error) error {
	status, msg := statusFor(err)
	return c.JSON(status, errorResponse{Error: msg})
}

// handleHTTPError renders errors that escape handlers, including echo's own
// routing errors, in the same JSON shape.
func (s *Server) handleHTTPError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if m, ok := he.Message.(string); ok {
			msg = m
		}
		_ = c.JSON(he.Code, errorResponse{Error: msg})
		return
	}

	status, msg := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error(c.Request().Context(), "request failed", "path", c.Path(), "error", err)
	}
	_ = c.JSON(status, errorResponse{Error: msg})
}
