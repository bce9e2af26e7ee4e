package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurorasketchpad/aurora/internal/logging"
	"github.com/aurorasketchpad/aurora/internal/server/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	c := &config.Config{}
	c.LoadDefaults()
	c.DatabaseDSN = "file:" + t.Name() + "?mode=memory&cache=shared&_pragma=foreign_keys(1)"
	c.HTTPAddr = "127.0.0.1:0"
	c.HealthAddrGRPC = "127.0.0.1:0"
	c.BcryptCost = 4
	return c
}

func TestNewApp_RunAndStop(t *testing.T) {
	c := testConfig(t)
	c.Google = config.OAuthClient{ClientID: "id", ClientSecret: "secret"}

	app, err := NewApp(context.Background(), c, logging.Nop())
	require.NoError(t, err)
	require.NotNil(t, app.http)
	require.NotNil(t, app.health)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		app.Run(ctx)
		close(done)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(15 * time.Second):
		t.Fatal("app did not stop after cancel")
	}
	assert.Error(t, app.db.Ping(), "database closed on shutdown")
}

func TestNewApp_Errors(t *testing.T) {
	c := testConfig(t)
	c.DatabaseDriver = "oracle"
	_, err := NewApp(context.Background(), c, logging.Nop())
	require.Error(t, err)

	c = testConfig(t)
	c.Mail.Transport = "pigeon"
	_, err = NewApp(context.Background(), c, logging.Nop())
	require.Error(t, err)

	c = testConfig(t)
	c.Previews.Storage = "ftp"
	_, err = NewApp(context.Background(), c, logging.Nop())
	require.Error(t, err)

	c = testConfig(t)
	c.OAuthStateStore = "redis"
	c.RedisAddr = "127.0.0.1:1"
	_, err = NewApp(context.Background(), c, logging.Nop())
	require.Error(t, err)
}

func TestProviders_OnlyConfigured(t *testing.T) {
	c := testConfig(t)
	c.GitHub = config.OAuthClient{ClientID: "gh", ClientSecret: "s"}
	app := &App{config: c, logger: logging.Nop()}

	ps := app.providers(context.Background())
	require.Len(t, ps, 1)
	assert.Equal(t, "github", ps[0].Name())
}
