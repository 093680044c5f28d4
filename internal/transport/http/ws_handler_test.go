package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/buddychat/buddychat-server/internal/auth"
	"github.com/buddychat/buddychat-server/internal/config"
	"github.com/buddychat/buddychat-server/internal/core"
	"github.com/buddychat/buddychat-server/internal/proto"
	"github.com/buddychat/buddychat-server/internal/service/buddies"
	"github.com/buddychat/buddychat-server/internal/store/sqlite"
)

type testServer struct {
	ts    *httptest.Server
	hub   *core.Hub
	auth  *auth.Service
	store *sqlite.SQLiteStore
}

func startTestServer(t *testing.T) (*testServer, context.CancelFunc) {
	t.Helper()

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

	disabledLogger := zerolog.New(nil)
	hub := core.NewHub(st, index, core.HubConfig{IdleCheckInterval: time.Hour}, &disabledLogger)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	server := NewServer(hub, authService, buddyService, st, &cfg, &disabledLogger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testServer{ts: ts, hub: hub, auth: authService, store: st}, cancel
}

func registerUser(t *testing.T, srv *testServer, screenName string) string {
	t.Helper()

	body, _ := json.Marshal(map[string]string{
		"screen_name": screenName,
		"password":    "password123",
	})
	resp, err := srv.ts.Client().Post(srv.ts.URL+"/api/register", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("register request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 201 && resp.StatusCode != 200 {
		t.Fatalf("register returned %d", resp.StatusCode)
	}

	var out AuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode register response: %v", err)
	}
	return out.Token
}

func dialWS(t *testing.T, ctx context.Context, srv *testServer, token string) *websocket.Conn {
	t.Helper()

	wsURL := strings.Replace(srv.ts.URL, "http://", "ws://", 1) + "/ws?token=" + token
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("ws dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "test done") })
	return conn
}

func readEvent(t *testing.T, ctx context.Context, conn *websocket.Conn, event string) map[string]any {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		var out struct {
			Type  string         `json:"type"`
			Event string         `json:"event"`
			Data  map[string]any `json:"data"`
		}
		readCtx, cancel := context.WithDeadline(ctx, deadline)
		err := wsjson.Read(readCtx, conn, &out)
		cancel()
		if err != nil {
			t.Fatalf("read waiting for %q: %v", event, err)
		}
		if out.Event == event {
			return out.Data
		}
	}
	t.Fatalf("event %q never arrived", event)
	return nil
}

func TestWebSocketRejectsBadToken(t *testing.T) {
	srv, cancel := startTestServer(t)
	defer cancel()

	ctx, cancelDial := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancelDial()

	wsURL := strings.Replace(srv.ts.URL, "http://", "ws://", 1) + "/ws?token=garbage"
	_, resp, err := websocket.Dial(ctx, wsURL, nil)
	if err == nil {
		t.Fatal("expected dial to fail with a bad token")
	}
	if resp != nil && resp.StatusCode != 401 {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestWebSocketMessageRoundTrip(t *testing.T) {
	srv, cancel := startTestServer(t)
	defer cancel()

	aliceToken := registerUser(t, srv, "alice")
	bobToken := registerUser(t, srv, "bob")

	ctx, cancelCtx := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelCtx()

	aliceConn := dialWS(t, ctx, srv, aliceToken)
	bobConn := dialWS(t, ctx, srv, bobToken)

	aliceClaims, err := srv.auth.ValidateToken(aliceToken)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	bobClaims, err := srv.auth.ValidateToken(bobToken)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}

	// Wait until both registrations landed on the hub loop.
	waitReachable(t, srv.hub, aliceClaims.UserID)
	waitReachable(t, srv.hub, bobClaims.UserID)

	send := proto.Inbound{Type: proto.InboundTypeSend}
	send.Data, _ = json.Marshal(proto.SendData{ToUserID: bobClaims.UserID, Content: "hello bob", TempID: "t1"})
	if err := wsjson.Write(ctx, aliceConn, send); err != nil {
		t.Fatalf("write send: %v", err)
	}

	sent := readEvent(t, ctx, aliceConn, proto.EventMessageSent)
	if sent["temp_id"] != "t1" {
		t.Fatalf("missing temp id echo: %v", sent)
	}

	recv := readEvent(t, ctx, bobConn, proto.EventMessageReceive)
	msg, _ := recv["message"].(map[string]any)
	if msg == nil || msg["content"] != "hello bob" {
		t.Fatalf("unexpected receive payload: %v", recv)
	}

	status := readEvent(t, ctx, aliceConn, proto.EventDeliveryStatus)
	if status["delivered"] != true {
		t.Fatalf("expected delivered=true: %v", status)
	}
}

func TestWebSocketSupersede(t *testing.T) {
	srv, cancel := startTestServer(t)
	defer cancel()

	token := registerUser(t, srv, "alice")
	claims, err := srv.auth.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}

	ctx, cancelCtx := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelCtx()

	first := dialWS(t, ctx, srv, token)
	waitReachable(t, srv.hub, claims.UserID)

	_ = dialWS(t, ctx, srv, token)

	// The older connection gets a goodbye with the supersede reason.
	bye := readEvent(t, ctx, first, proto.EventServerBye)
	if bye["reason"] != "superseded" {
		t.Fatalf("unexpected bye payload: %v", bye)
	}
}

func waitReachable(t *testing.T, hub *core.Hub, userID int64) {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if hub.Registry().IsReachable(userID) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("user %d never became reachable", userID)
}
