package web

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"statusd/internal/shared/protocol"
	"statusd/internal/shared/types"
)

type fixedStats types.Stats

func (f fixedStats) Stats() types.Stats { return types.Stats(f) }

func setupTestServer(t *testing.T, cfg types.AdminConf) (*Server, *Hub, *httptest.Server) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()
	go hub.Run(ctx)

	s := NewServer(cfg, fixedStats{Workers: 4, Queued: 2, Active: 3, Served: 10, Failed: 1, Rejected: 0}, hub)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		cancel()
	})
	return s, hub, ts
}

func get(t *testing.T, req *http.Request) (int, string) {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestServer_HealthAndReady(t *testing.T) {
	s, _, ts := setupTestServer(t, types.AdminConf{})

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/health", nil)
	code, body := get(t, req)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body)

	req, _ = http.NewRequest(http.MethodGet, ts.URL+"/ready", nil)
	code, _ = get(t, req)
	assert.Equal(t, http.StatusServiceUnavailable, code)

	s.SetReady(true)
	req, _ = http.NewRequest(http.MethodGet, ts.URL+"/ready", nil)
	code, body = get(t, req)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ready", body)
}

func TestServer_StatsRequiresAuthWhenConfigured(t *testing.T) {
	_, _, ts := setupTestServer(t, types.AdminConf{User: "admin", Password: "secret"})

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/stats", nil)
	code, _ := get(t, req)
	assert.Equal(t, http.StatusUnauthorized, code)

	req, _ = http.NewRequest(http.MethodGet, ts.URL+"/api/stats", nil)
	req.SetBasicAuth("admin", "wrong")
	code, _ = get(t, req)
	assert.Equal(t, http.StatusUnauthorized, code)

	req, _ = http.NewRequest(http.MethodGet, ts.URL+"/api/stats", nil)
	req.SetBasicAuth("admin", "secret")
	code, body := get(t, req)
	require.Equal(t, http.StatusOK, code)

	var stats types.Stats
	require.NoError(t, json.Unmarshal([]byte(body), &stats))
	assert.Equal(t, 4, stats.Workers)
	assert.EqualValues(t, 10, stats.Served)
}

func TestServer_StatsMethodNotAllowed(t *testing.T) {
	_, _, ts := setupTestServer(t, types.AdminConf{})

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/stats", strings.NewReader("{}"))
	code, _ := get(t, req)
	assert.Equal(t, http.StatusMethodNotAllowed, code)
}

func TestServer_WebSocketReceivesMessageEvents(t *testing.T) {
	_, hub, ts := setupTestServer(t, types.AdminConf{})

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer ws.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 5*time.Millisecond)

	server, client := net.Pipe()
	defer client.Close()
	conn := types.NewConnection(server)
	defer conn.Close()
	hub.Responded(conn, protocol.Message{Data: []byte("ping")}, protocol.StatusInternalError)

	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var envelope struct {
		Type string       `json:"type"`
		Data MessageEvent `json:"data"`
	}
	require.NoError(t, ws.ReadJSON(&envelope))
	assert.Equal(t, "message", envelope.Type)
	assert.Equal(t, "ping", envelope.Data.Message)
	assert.Equal(t, conn.ID, envelope.Data.ConnID)
	assert.EqualValues(t, protocol.StatusInternalError, envelope.Data.Code, "event carries the code sent to the client")
}

func TestServer_ServeStopsOnCancel(t *testing.T) {
	hub := NewHub()
	s := NewServer(types.AdminConf{}, fixedStats{}, hub)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
