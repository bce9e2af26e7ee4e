// Package httpapi is the JSON HTTP surface of the backend, built on echo.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/aurorasketchpad/aurora/internal/common"
	"github.com/aurorasketchpad/aurora/internal/logging"
	"github.com/aurorasketchpad/aurora/internal/server/auth"
	"github.com/aurorasketchpad/aurora/internal/server/models"
	"github.com/aurorasketchpad/aurora/internal/server/oauth"
	"github.com/aurorasketchpad/aurora/internal/server/services"
)

const (
	bodyLimit       = "50M"
	shutdownTimeout = 10 * time.Second
)

// Accounts is the account side of the API.
type Accounts interface {
	Register(ctx context.Context, email, password, name string) error
	VerifyEmail(ctx context.Context, token string) error
	Login(ctx context.Context, email, password string) (*services.Session, error)
	ResolveOAuthUser(ctx context.Context, provider string, profile models.OAuthProfile) (*models.User, error)
	IssueSession(user *models.User) (*services.Session, error)
	Me(ctx context.Context, userID int64) (*models.PublicUser, error)
	UpdateProfile(ctx context.Context, userID int64, name, avatar string) (*services.Session, error)
}

// Projects is the project side of the API. Every call is scoped to the
// authenticated user.
type Projects interface {
	List(ctx context.Context, userID int64) ([]*models.Project, error)
	Create(ctx context.Context, userID int64, name string) (*models.Project, error)
	Get(ctx context.Context, userID, id int64) (*models.Project, error)
	Update(ctx context.Context, userID, id int64, content json.RawMessage, preview string) (*models.Project, error)
	Delete(ctx context.Context, userID, id int64) error
}

// OAuthProvider runs the authorization-code flow for one identity provider.
type OAuthProvider interface {
	Name() string
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (models.OAuthProfile, error)
}

// SessionParser validates a bearer token. *auth.Issuer implements it.
type SessionParser interface {
	Parse(token string) (*auth.Claims, error)
}

type Options struct {
	Addr        string
	FrontendURL string
	CORSOrigins []string
	StateTTL    time.Duration
}

type Server struct {
	opts      Options
	echo      *echo.Echo
	accounts  Accounts
	projects  Projects
	sessions  SessionParser
	providers map[string]OAuthProvider
	states    oauth.StateStore
	logger    logging.Logger
}

func NewServer(opts Options, accounts Accounts, projects Projects, sessions SessionParser,
	providers []OAuthProvider, states oauth.StateStore, logger logging.Logger) *Server {
	opts.FrontendURL = strings.TrimRight(opts.FrontendURL, "/")
	if opts.StateTTL <= 0 {
		opts.StateTTL = 10 * time.Minute
	}

	s := &Server{
		opts:      opts,
		echo:      echo.New(),
		accounts:  accounts,
		projects:  projects,
		sessions:  sessions,
		providers: map[string]OAuthProvider{},
		states:    states,
		logger:    logger.With("module", "http_server"),
	}
	for _, p := range providers {
		s.providers[p.Name()] = p
	}

	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.HTTPErrorHandler = s.handleHTTPError

	s.echo.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	s.echo.Use(s.requestLogger())
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: opts.CORSOrigins,
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
	}))
	s.echo.Use(middleware.BodyLimit(bodyLimit))

	s.routes()
	return s
}

func (s *Server) routes() {
	s.echo.GET("/", func(c echo.Context) error {
		return c.String(http.StatusOK, "Aurora Sketchpad API is running...")
	})

	a := s.echo.Group("/api/auth")
	a.POST("/register", s.register)
	a.POST("/login", s.login)
	a.GET("/verify", s.verify)
	for _, name := range []string{common.ProviderGoogle, common.ProviderGitHub} {
		a.GET("/"+name, s.oauthStart(name))
		a.GET("/"+name+"/callback", s.oauthCallback(name))
	}

	session := s.sessionMiddleware()
	a.GET("/me", s.me, session)
	a.PUT("/profile", s.updateProfile, session)

	p := s.echo.Group("/api/projects", session)
	p.GET("", s.listProjects)
	p.POST("", s.createProject)
	p.GET("/:id", s.getProject)
	p.PUT("/:id", s.updateProject)
	p.DELETE("/:id", s.deleteProject)
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler { return s.echo }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "http shutdown", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.opts.Addr)

	if err := s.echo.Start(s.opts.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
