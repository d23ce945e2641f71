package server_test

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/Tyrowin/roomchat/internal/identity"
	"github.com/Tyrowin/roomchat/internal/server"
	"github.com/Tyrowin/roomchat/internal/store"
)

const (
	testSecret = "integration-secret"
	testOrigin = "http://localhost:8080"
	readWait   = 2 * time.Second
)

// testEnv is a running application behind an httptest server.
type testEnv struct {
	app   *server.App
	srv   *httptest.Server
	store *store.MemoryStore
}

func newTestEnv(t *testing.T, customize func(cfg *server.Config)) *testEnv {
	t.Helper()
	cfg := server.NewConfig()
	cfg.JWTSecret = testSecret
	cfg.RateLimit = server.RateLimitConfig{Burst: 100, RefillInterval: time.Second}
	if customize != nil {
		customize(cfg)
	}

	mem := store.NewMemoryStore()
	app := server.New(*cfg, slog.New(slog.DiscardHandler), identity.NewJWTVerifier([]byte(testSecret), ""),
		server.Stores{Messages: mem, Rooms: mem, Profiles: mem}, prometheus.NewRegistry())
	require.NoError(t, app.Start(t.Context()))

	srv := httptest.NewServer(app.Handler())
	t.Cleanup(func() {
		_ = app.Shutdown(time.Second)
		srv.Close()
	})
	return &testEnv{app: app, srv: srv, store: mem}
}

func (e *testEnv) token(t *testing.T, username string) string {
	t.Helper()
	token, err := identity.IssueToken([]byte(testSecret), "", username, chat.Profile{
		DisplayName: username + " display",
		AvatarColor: "#336699",
	}, time.Hour)
	require.NoError(t, err)
	return token
}

func (e *testEnv) wsURL(token string) string {
	u, _ := url.Parse(e.srv.URL)
	u.Scheme = "ws"
	u.Path = "/ws"
	if token != "" {
		u.RawQuery = url.Values{"token": {token}}.Encode()
	}
	return u.String()
}

// dialRaw opens a WebSocket without waiting for the room list.
func (e *testEnv) dialRaw(token, origin string) (*websocket.Conn, *http.Response, error) {
	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	return dialer.Dial(e.wsURL(token), header)
}

// connect opens an authenticated connection for username and returns it
// together with the room list it was greeted with.
func (e *testEnv) connect(t *testing.T, username string) (*websocket.Conn, []chat.Room) {
	t.Helper()
	conn, resp, err := e.dialRaw(e.token(t, username), testOrigin)
	require.NoError(t, err)
	if resp != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })

	rooms := decodeData[[]chat.Room](t, readEvent(t, conn, chat.EventRoomList))
	return conn, rooms
}

func send(t *testing.T, conn *websocket.Conn, event string, data interface{}, ack *int64) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(chat.Envelope{Event: event, Data: raw, Ack: ack}))
}

// readEvent reads frames until one carries event.
func readEvent(t *testing.T, conn *websocket.Conn, event string) chat.Envelope {
	t.Helper()
	deadline := time.Now().Add(readWait)
	require.NoError(t, conn.SetReadDeadline(deadline))
	for {
		var env chat.Envelope
		err := conn.ReadJSON(&env)
		require.NoError(t, err, "waiting for %s", event)
		if env.Event == event {
			return env
		}
	}
}

// expectNoEvent fails if event arrives within wait.
func expectNoEvent(t *testing.T, conn *websocket.Conn, event string, wait time.Duration) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(wait)))
	for {
		var env chat.Envelope
		err := conn.ReadJSON(&env)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return
			}
			t.Fatalf("unexpected error while waiting for absence of %s: %v", event, err)
		}
		require.NotEqual(t, event, env.Event, "unexpected %s", event)
	}
}

func decodeData[T any](t *testing.T, env chat.Envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func memberNames(members []chat.Member) []string {
	names := make([]string, 0, len(members))
	for _, m := range members {
		names = append(names, m.Username)
	}
	return names
}

func ack(n int64) *int64 { return &n }
