// Package server wires configuration, storage and transports into the
// running API process and handles graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/aurorasketchpad/aurora/internal/logging"
	"github.com/aurorasketchpad/aurora/internal/server/auth"
	"github.com/aurorasketchpad/aurora/internal/server/config"
	"github.com/aurorasketchpad/aurora/internal/server/httpapi"
	"github.com/aurorasketchpad/aurora/internal/server/mailer"
	"github.com/aurorasketchpad/aurora/internal/server/oauth"
	"github.com/aurorasketchpad/aurora/internal/server/previews"
	"github.com/aurorasketchpad/aurora/internal/server/repositories/repomanager"
	"github.com/aurorasketchpad/aurora/internal/server/services"

	gs "github.com/aurorasketchpad/aurora/internal/server/grpc"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	http    *httpapi.Server
	health  *gs.HealthServer
	closers []func() error
}

func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	app := &App{config: c, logger: logger}

	db, rm, err := repomanager.Open(ctx, c.DatabaseDriver, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	app.db = db
	app.closers = append(app.closers, db.Close)

	if err := rm.RunMigrations(ctx, db); err != nil {
		app.close(ctx)
		return nil, fmt.Errorf("migrations: %w", err)
	}

	if err := app.wire(ctx, db, rm); err != nil {
		app.close(ctx)
		return nil, err
	}
	return app, nil
}

func (app *App) wire(ctx context.Context, db *sql.DB, rm repomanager.RepositoryManager) error {
	c := app.config

	passwords, err := auth.NewPasswords(c.PasswordScheme, c.BcryptCost)
	if err != nil {
		return err
	}
	issuer := auth.NewIssuer([]byte(c.JWTSecret), c.SessionTTL)

	m, err := mailer.New(c.Mail, app.logger)
	if err != nil {
		return fmt.Errorf("mailer: %w", err)
	}
	app.closers = append(app.closers, m.Close)

	store, err := previews.New(ctx, c.Previews, app.logger)
	if err != nil {
		return fmt.Errorf("previews: %w", err)
	}

	states, err := app.stateStore(ctx)
	if err != nil {
		return err
	}

	users := services.NewUserService(db, rm, passwords, issuer, m, c.FrontendURL, app.logger)
	projects := services.NewProjectService(db, rm, store, app.logger)

	app.http = httpapi.NewServer(httpapi.Options{
		Addr:        c.HTTPAddr,
		FrontendURL: c.FrontendURL,
		CORSOrigins: c.CORSOrigins,
		StateTTL:    c.OAuthStateTTL,
	}, users, projects, issuer, app.providers(ctx), states, app.logger)

	if c.HealthAddrGRPC != "" {
		app.health = gs.NewHealthServer(c.HealthAddrGRPC, db, app.logger)
	}
	return nil
}

func (app *App) stateStore(ctx context.Context) (oauth.StateStore, error) {
	c := app.config
	if c.OAuthStateStore != "redis" {
		return oauth.NewMemoryStateStore(), nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     c.RedisAddr,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", c.RedisAddr, err)
	}
	app.closers = append(app.closers, rdb.Close)
	return oauth.NewRedisStateStore(rdb), nil
}

// providers returns the identity providers that have client credentials.
func (app *App) providers(ctx context.Context) []httpapi.OAuthProvider {
	c := app.config
	base := strings.TrimRight(c.PublicBaseURL, "/") + "/api/auth/"

	var out []httpapi.OAuthProvider
	if c.Google.Enabled() {
		out = append(out, oauth.NewGoogle(c.Google, base+"google/callback"))
	} else {
		app.logger.Warn(ctx, "google sign-in disabled: no client id")
	}
	if c.GitHub.Enabled() {
		out = append(out, oauth.NewGitHub(c.GitHub, base+"github/callback"))
	} else {
		app.logger.Warn(ctx, "github sign-in disabled: no client id")
	}
	return out
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves until a signal arrives or a server fails, then releases
// resources.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.http.Run(ctx); err != nil {
			app.logger.Error(ctx, "http server", "error", err)
			cancelFunc()
		}
	}()

	if app.health != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := app.health.Run(ctx); err != nil {
				app.logger.Error(ctx, "grpc health server", "error", err)
				cancelFunc()
			}
		}()
	}

	wg.Wait()
	app.close(context.Background())
	app.logger.Info(context.Background(), "App stopped")
}

// close releases resources in reverse order of acquisition.
func (app *App) close(ctx context.Context) {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil {
			app.logger.Error(ctx, "close", "error", err)
		}
	}
	app.closers = nil
}
