package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ghost-loop/internal/game"
	"ghost-loop/internal/input"
)

// ============================================================================
// Mock Implementations
// ============================================================================

// mockEngine implements EngineInterface without a tick loop
type mockEngine struct {
	snapshot game.Snapshot
	samples  []game.FrameSample
}

func newMockEngine() *mockEngine {
	return &mockEngine{
		snapshot: game.Snapshot{
			Tick:  42,
			Phase: game.PhaseRecording,
			Room:  "vault",
			HUD:   game.HUD{Remaining: 7},
		},
	}
}

func (m *mockEngine) GetSnapshot() game.Snapshot { return m.snapshot }
func (m *mockEngine) FrameSamples() []game.FrameSample { return m.samples }
func (m *mockEngine) Rooms() []game.RoomInfo { return []game.RoomInfo{{ID: "vault", Active: true}} }
func (m *mockEngine) Stats() map[string]interface{} { return map[string]interface{}{"ticks": 42} }
func (m *mockEngine) GetEventLogStats() map[string]interface{} {
	return map[string]interface{}{"total": uint64(3), "dropped": uint64(0)}
}

func newTestRouter(t *testing.T) (*mockEngine, *input.Queue, http.Handler) {
	t.Helper()
	eng := newMockEngine()
	q := input.NewQueue(input.QueueConfig{BufferSize: 8})
	r := NewRouter(RouterConfig{
		Engine:          eng,
		Inputs:          q,
		RateLimitConfig: &RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
		DisableLogging:  true,
	})
	return eng, q, r
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// ============================================================================
// Read endpoints
// ============================================================================

func TestGetState(t *testing.T) {
	_, _, r := newTestRouter(t)
	rec := do(r, http.MethodGet, "/api/state", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "recording", body["phase"])
	assert.Equal(t, "vault", body["room"])
	assert.EqualValues(t, 42, body["tick"])
}

func TestGetHUD(t *testing.T) {
	_, _, r := newTestRouter(t)
	rec := do(r, http.MethodGet, "/api/hud", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Phase string   `json:"phase"`
		HUD   game.HUD `json:"hud"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "recording", body.Phase)
	assert.Equal(t, 7, body.HUD.Remaining)
}

func TestGetStatsAndRooms(t *testing.T) {
	_, _, r := newTestRouter(t)

	rec := do(r, http.MethodGet, "/api/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"eventLog"`)
	assert.Contains(t, rec.Body.String(), `"input"`)

	rec = do(r, http.MethodGet, "/api/rooms", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"vault"`)
}

func TestGhostEndpoints(t *testing.T) {
	eng, _, r := newTestRouter(t)

	for _, path := range []string{"/api/ghost/frames", "/api/ghost/trail.png"} {
		rec := do(r, http.MethodGet, path, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}

	eng.samples = []game.FrameSample{
		{Position: game.Vec3{X: 0}, Tick: 0},
		{Position: game.Vec3{X: 1, Z: 1}, Tick: 1},
	}

	rec := do(r, http.MethodGet, "/api/ghost/frames", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var frames struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &frames))
	assert.Equal(t, 2, frames.Count)

	rec = do(r, http.MethodGet, "/api/ghost/trail.png", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	_, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
	assert.NoError(t, err)
}

func TestRootRedirects(t *testing.T) {
	_, _, r := newTestRouter(t)
	rec := do(r, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/api/state", rec.Header().Get("Location"))
}

// ============================================================================
// Input endpoints
// ============================================================================

func TestPostCommands(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		body     string
		wantCode int
		wantKind string
	}{
		{"begin without body", "/api/begin", "", http.StatusAccepted, "begin"},
		{"begin with spawn", "/api/begin", `{"spawn":{"x":1,"y":1,"z":0}}`, http.StatusAccepted, "begin"},
		{"switch", "/api/switch", "", http.StatusAccepted, "force_switch"},
		{"reset", "/api/reset", "", http.StatusAccepted, "reset"},
		{"room", "/api/room", `{"room":"bridge"}`, http.StatusAccepted, "room"},
		{"region", "/api/region", `{"tag":"player","region":"vault_goal"}`, http.StatusAccepted, "region"},
		{"key", "/api/key", `{"key":"vault_key_a"}`, http.StatusAccepted, "key"},
		{"pose", "/api/pose", `{"tag":"ghost","pose":{"position":{"x":1,"y":1,"z":2}}}`, http.StatusAccepted, "pose"},
		{"text command", "/api/command", `{"text":"!room bridge"}`, http.StatusAccepted, "room"},
		{"type in body is ignored", "/api/reset", `{"type":"room"}`, http.StatusAccepted, "reset"},
		{"room missing id", "/api/room", `{}`, http.StatusBadRequest, ""},
		{"region bad tag", "/api/region", `{"tag":"cat","region":"x"}`, http.StatusBadRequest, ""},
		{"bad json", "/api/key", `{"key":`, http.StatusBadRequest, ""},
		{"unknown text command", "/api/command", `{"text":"!dance"}`, http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, q, r := newTestRouter(t)
			rec := do(r, http.MethodPost, tt.path, tt.body)
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())

			if tt.wantCode != http.StatusAccepted {
				assert.Contains(t, rec.Body.String(), `"error"`)
				assert.Zero(t, q.Stats().Enqueued)
				return
			}
			var body struct {
				Accepted bool   `json:"accepted"`
				Command  string `json:"command"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.True(t, body.Accepted)
			assert.Equal(t, tt.wantKind, body.Command)
			assert.Equal(t, uint64(1), q.Stats().Enqueued)
		})
	}
}

func TestPostWhenQueueFull(t *testing.T) {
	_, q, r := newTestRouter(t)
	for i := 0; i < 8; i++ {
		require.Equal(t, http.StatusAccepted, do(r, http.MethodPost, "/api/reset", "").Code)
	}

	rec := do(r, http.MethodPost, "/api/reset", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, uint64(1), q.Stats().Dropped)
}

func TestGetOnPostRoute(t *testing.T) {
	_, _, r := newTestRouter(t)
	rec := do(r, http.MethodGet, "/api/reset", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

// ============================================================================
// Middleware
// ============================================================================

func TestRateLimitMiddleware(t *testing.T) {
	eng := newMockEngine()
	r := NewRouter(RouterConfig{
		Engine:          eng,
		Inputs:          input.NewQueue(input.DefaultQueueConfig()),
		RateLimitConfig: &RateLimitConfig{RequestsPerSecond: 1, Burst: 2},
		DisableLogging:  true,
	})

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/api/state", "").Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/api/state", "").Code)

	rec := do(r, http.MethodGet, "/api/state", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"remote addr", nil, "10.0.0.1:5555", "10.0.0.1"},
		{"forwarded for", map[string]string{"X-Forwarded-For": "1.1.1.1, 2.2.2.2"}, "10.0.0.1:5555", "1.1.1.1"},
		{"real ip", map[string]string{"X-Real-IP": " 3.3.3.3 "}, "10.0.0.1:5555", "3.3.3.3"},
		{"no port", nil, "10.0.0.2", "10.0.0.2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, GetClientIP(req))
		})
	}
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"http://localhost:*", "https://game.example"})

	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"http://localhost:5173", true},
		{"https://game.example", true},
		{"https://evil.example", false},
		{"http://localhost.evil.example", false},
	}
	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ws", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, check(req))
		})
	}

	assert.True(t, originChecker([]string{"*"})(func() *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/ws", nil)
		req.Header.Set("Origin", "https://anything.example")
		return req
	}()))
}

func TestConnLimiter(t *testing.T) {
	c := NewConnLimiter(2)
	assert.True(t, c.Acquire("a"))
	assert.True(t, c.Acquire("a"))
	assert.False(t, c.Acquire("a"))
	assert.True(t, c.Acquire("b"))

	c.Release("a")
	assert.Equal(t, 1, c.Count("a"))
	assert.True(t, c.Acquire("a"))

	c.Release("b")
	assert.Zero(t, c.Count("b"))
}

func TestDebugHandler(t *testing.T) {
	h := DebugHandler(ObservabilityConfig{})
	rec := do(h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ghostloop_")

	protected := DebugHandler(ObservabilityConfig{BasicAuthUser: "u", BasicAuthPass: "p"})
	assert.Equal(t, http.StatusUnauthorized, do(protected, http.MethodGet, "/health", "").Code)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.SetBasicAuth("u", "p")
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLoopbackOnly(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"127.0.0.1:6060", "127.0.0.1:6060"},
		{"localhost:7000", "localhost:7000"},
		{"0.0.0.0:6060", "127.0.0.1:6060"},
		{"10.1.2.3:9000", "127.0.0.1:9000"},
		{"garbage", "127.0.0.1:6060"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, loopbackOnly(tt.in), tt.in)
	}
}

func TestStartDebugServerDisabled(t *testing.T) {
	assert.Nil(t, StartDebugServer(ObservabilityConfig{Enabled: false}))
}

// ============================================================================
// Server and WebSocket
// ============================================================================

func TestServerWebSocket(t *testing.T) {
	eng := newMockEngine()
	q := input.NewQueue(input.QueueConfig{BufferSize: 8})
	srv := NewServer(eng, q, ServerConfig{CORSOrigins: []string{"*"}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.wsHub.Run(ctx)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return srv.wsHub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	// commands from the socket land in the input queue
	require.NoError(t, conn.WriteJSON(input.Request{Type: "room", Room: "bridge"}))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, conn.WriteJSON(input.Request{Type: "reset"}))
	require.Eventually(t, func() bool { return q.Stats().Enqueued == 2 }, time.Second, 10*time.Millisecond)

	// signals fan out to clients; movement signals do not
	srv.OnSignal(game.Signal{Kind: game.SignalMoveEntity, Tag: game.TagGhost})
	srv.OnSignal(game.Signal{Kind: game.SignalPhaseChanged, From: game.PhaseRecording, Phase: game.PhasePlayback})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "signal", msg.Event)
	assert.Contains(t, string(msg.Data), `"kind":"phase_changed"`)
	assert.Contains(t, string(msg.Data), `"phase":"playback"`)

	conn.Close()
	require.Eventually(t, func() bool { return srv.wsHub.ClientCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestWebSocketPerIPLimit(t *testing.T) {
	hub := NewWebSocketHub(input.NewQueue(input.DefaultQueueConfig()), []string{"*"})
	for i := 0; i < MaxWSConnectionsPerIP; i++ {
		require.True(t, hub.conns.Acquire("192.0.2.1"))
	}

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	rec := httptest.NewRecorder()
	hub.HandleWebSocket(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestServerShutdownWithoutStart(t *testing.T) {
	srv := NewServer(newMockEngine(), input.NewQueue(input.DefaultQueueConfig()), ServerConfig{})
	assert.NoError(t, srv.Shutdown(context.Background()))
}

func TestServerShutdownStopsStart(t *testing.T) {
	tests := []struct {
		name          string
		shutdownFirst bool
	}{
		{"shutdown while serving", false},
		{"shutdown before start", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := NewServer(newMockEngine(), input.NewQueue(input.DefaultQueueConfig()), ServerConfig{})
			if tt.shutdownFirst {
				require.NoError(t, srv.Shutdown(context.Background()))
			}

			done := make(chan error, 1)
			go func() { done <- srv.Start("127.0.0.1:0") }()

			if !tt.shutdownFirst {
				require.NoError(t, srv.Shutdown(context.Background()))
			}

			select {
			case err := <-done:
				assert.NoError(t, err)
			case <-time.After(2 * time.Second):
				t.Fatal("Start did not return after Shutdown")
			}
		})
	}
}
