package http

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/buddychat/buddychat-server/internal/auth"
	"github.com/buddychat/buddychat-server/internal/config"
	"github.com/buddychat/buddychat-server/internal/core"
	"github.com/buddychat/buddychat-server/internal/service/buddies"
	"github.com/buddychat/buddychat-server/internal/store/sqlite"
	"net/http/httptest"
)

func TestZZDebugWS(t *testing.T) {
	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	cfg := config.Default()
	cfg.JWTSecret = "testsecret"
	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      time.Hour,
	}
	authService := auth.NewService(st, jwtConfig)
	index := core.NewBuddyIndex()
	buddyService := buddies.New(st, index)

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.DebugLevel)
	hub := core.NewHub(st, index, core.HubConfig{IdleCheckInterval: time.Hour}, &logger)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	server := NewServer(hub, authService, buddyService, st, &cfg, &logger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)
	srv := &testServer{ts: ts, hub: hub, auth: authService, store: st}

	token := registerUser(t, srv, "alice")
	dctx, dcancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer dcancel()
	_ = dialWS(t, dctx, srv, token)
	time.Sleep(2 * time.Second)
	t.Logf("reachable=%v", hub.Registry().IsReachable(1))
}
