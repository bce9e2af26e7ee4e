package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"github.com/aurorasketchpad/aurora/internal/common"
	"github.com/aurorasketchpad/aurora/internal/server/oauth"
)

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type profileRequest struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type verifyResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// bind decodes the JSON body; a malformed body is a validation error.
func bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return fmt.Errorf("%w: malformed request body", common.ErrValidation)
	}
	return nil
}

func (s *Server) register(c echo.Context) error {
	var req registerRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := s.accounts.Register(c.Request().Context(), req.Email, req.Password, req.Name); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{
		Message: "Registration successful. Please check your email to verify your account.",
	})
}

func (s *Server) login(c echo.Context) error {
	var req loginRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	session, err := s.accounts.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, session)
}

func (s *Server) verify(c echo.Context) error {
	if err := s.accounts.VerifyEmail(c.Request().Context(), c.QueryParam("token")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, verifyResponse{Success: true, Message: "Email verified successfully"})
}

func (s *Server) me(c echo.Context) error {
	user, err := s.accounts.Me(c.Request().Context(), sessionClaims(c).UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			// account removed after the token was issued
			return common.ErrUnauthenticated
		}
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"user": user})
}

func (s *Server) updateProfile(c echo.Context) error {
	var req profileRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	session, err := s.accounts.UpdateProfile(c.Request().Context(), sessionClaims(c).UserID, req.Name, req.Avatar)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrUnauthenticated
		}
		return err
	}
	return c.JSON(http.StatusOK, session)
}

func (s *Server) oauthStart(name string) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		p, ok := s.providers[name]
		if !ok {
			return fmt.Errorf("%s sign-in is not configured", name)
		}

		state, err := oauth.NewState()
		if err != nil {
			return err
		}
		if err := s.states.Put(ctx, state, name, s.opts.StateTTL); err != nil {
			return err
		}
		return c.Redirect(http.StatusFound, p.AuthCodeURL(state))
	}
}

func (s *Server) oauthCallback(name string) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		fail := func(reason string, err error) error {
			s.logger.Warn(ctx, "oauth sign-in failed", "provider", name, "reason", reason, "error", err)
			return c.Redirect(http.StatusFound, s.loginRedirect("error", name+"_auth_failed"))
		}

		p, ok := s.providers[name]
		if !ok {
			return fail("provider not configured", nil)
		}
		if e := c.QueryParam("error"); e != "" {
			return fail("denied by provider", errors.New(e))
		}

		issuedFor, err := s.states.Take(ctx, c.QueryParam("state"))
		if err != nil {
			return fail("state", err)
		}
		if issuedFor != name {
			return fail("state", fmt.Errorf("state issued for %s", issuedFor))
		}

		profile, err := p.Exchange(ctx, c.QueryParam("code"))
		if err != nil {
			return fail("exchange", err)
		}
		user, err := s.accounts.ResolveOAuthUser(ctx, name, profile)
		if err != nil {
			return fail("resolve", err)
		}
		session, err := s.accounts.IssueSession(user)
		if err != nil {
			return fail("session", err)
		}

		s.logger.Info(ctx, "oauth sign-in", "provider", name, "user_id", user.ID)
		return c.Redirect(http.StatusFound, s.loginRedirect("token", session.Token))
	}
}

func (s *Server) loginRedirect(key, value string) string {
	return s.opts.FrontendURL + "/login?" + url.Values{key: {value}}.Encode()
}
