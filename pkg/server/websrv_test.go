package server

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

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/crystal-mush/swordsanddeath/pkg/protocol"
)

func newTestWebServer(t *testing.T, s *Server, cfg WebConfig) (*httptest.Server, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	ws := NewWebServer(s, cfg)
	ts := httptest.NewServer(ws.Handler(ctx))
	t.Cleanup(func() {
		cancel()
		ts.Close()
		s.Wait()
	})
	return ts, cancel
}

func TestWebSocketVersionProbe(t *testing.T) {
	s := newTestServer(t)
	ts, _ := newTestWebServer(t, s, WebConfig{WebSocket: true})

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	raw, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	conn := NewWSClientConn(raw)
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second))

	if err := protocol.WriteMessage(conn, protocol.VersionProbe{Version: AcceptedClientVersion}); err != nil {
		t.Fatal(err)
	}
	resp, err := protocol.ReadEntryResponse(protocol.NewReader(conn))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if resp != (protocol.VersionAccepted{Version: Version}) {
		t.Errorf("reply = %#v", resp)
	}
}

func TestWebSocketSession(t *testing.T) {
	s := newTestServer(t)
	ts, _ := newTestWebServer(t, s, WebConfig{WebSocket: true})

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	raw, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	conn := NewWSClientConn(raw)
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second))
	r := protocol.NewReader(conn)

	if err := protocol.WriteMessage(conn, loginAttempt("eric", "abcd", true)); err != nil {
		t.Fatal(err)
	}
	if resp, err := protocol.ReadEntryResponse(r); err != nil || !isMotd(resp) {
		t.Fatalf("login reply = %#v, %v", resp, err)
	}
	if ev, err := protocol.ReadServerEvent(r); err != nil {
		t.Fatal(err)
	} else if _, ok := ev.(protocol.Update); !ok {
		t.Fatalf("first event = %#v", ev)
	}

	if err := protocol.WriteMessage(conn, protocol.OpenInv{}); err != nil {
		t.Fatal(err)
	}
	ev, err := protocol.ReadServerEvent(r)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := ev.(protocol.Inventory); !ok {
		t.Errorf("reply = %#v, want Inventory", ev)
	}

	d, ok := s.Conns.GetByPlayer(mustPlayer(t, s, "eric"))
	if !ok || d.Transport != TransportWebSocket {
		t.Errorf("descriptor = %+v, want websocket transport", d)
	}
}

func TestWebSocketDisabled(t *testing.T) {
	s := newTestServer(t)
	ts, _ := newTestWebServer(t, s, WebConfig{})

	resp, err := http.Get(ts.URL + "/ws")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestStatusEndpoint(t *testing.T) {
	s := newTestServer(t)
	ts, _ := newTestWebServer(t, s, WebConfig{})

	resp, err := http.Get(ts.URL + "/status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" || body["version"] != Version {
		t.Errorf("status body = %v", body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.EnableMetrics(time.Now())
	ts, _ := newTestWebServer(t, s, WebConfig{Metrics: true, WebSocket: true})

	ctx, cancel := context.WithCancel(context.Background())
	defer shutdown(t, cancel, s)
	c, _ := login(t, ctx, s, "eric", "abcd", true)
	c.send(protocol.Step{})
	c.serverEvent()

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	body := string(data)
	for _, want := range []string{
		`snd_handshakes_total{result="accepted"} 1`,
		`snd_commands_total{command="step"} 1`,
		`snd_connections_total{transport="tcp"} 1`,
		`snd_game_events_total{type="signup"} 1`,
		"snd_uptime_seconds",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestRateLimiter(t *testing.T) {
	now := time.Unix(1000, 0)
	rl := newRateLimiter(2)
	rl.now = func() time.Time { return now }

	for i, want := range []bool{true, true, false} {
		if got := rl.allow("1.2.3.4"); got != want {
			t.Errorf("request %d allowed = %v, want %v", i, got, want)
		}
	}
	if !rl.allow("5.6.7.8") {
		t.Error("other addresses are limited separately")
	}

	now = now.Add(2 * time.Minute)
	rl.cleanup()
	if len(rl.requests) != 0 {
		t.Errorf("%d buckets left after cleanup", len(rl.requests))
	}
	if !rl.allow("1.2.3.4") {
		t.Error("limit should reset after the window")
	}
}

func TestClientAddr(t *testing.T) {
	tests := []struct {
		header, value, want string
	}{
		{"", "", "192.0.2.1:1234"},
		{"X-Forwarded-For", "10.0.0.1, 10.0.0.2", "10.0.0.1"},
		{"X-Real-IP", " 10.0.0.3 ", "10.0.0.3"},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if tt.header != "" {
			r.Header.Set(tt.header, tt.value)
		}
		if got := clientAddr(r); got != tt.want {
			t.Errorf("clientAddr with %s = %q, want %q", tt.header, got, tt.want)
		}
	}
}

func mustPlayer(t *testing.T, s *Server, username string) uuid.UUID {
	t.Helper()
	p, err := s.Store.PlayerByUsername(context.Background(), username)
	if err != nil {
		t.Fatal(err)
	}
	return p.ID
}

func TestWebSocketRefusedAfterShutdown(t *testing.T) {
	s := newTestServer(t)
	ts, cancel := newTestWebServer(t, s, WebConfig{WebSocket: true})
	cancel()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	raw, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	conn := NewWSClientConn(raw)
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second))

	if _, err := protocol.ReadEntryResponse(protocol.NewReader(conn)); !protocol.IsEOF(err) {
		t.Fatalf("read = %v, want closed connection", err)
	}
	if n := s.Conns.Count(); n != 0 {
		t.Errorf("connections = %d, want 0", n)
	}
}

func TestWebServeStopsBeforeReturning(t *testing.T) {
	s := newTestServer(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ws := NewWebServer(s, WebConfig{WebSocket: true})
	errc := make(chan error, 1)
	go func() { errc <- ws.Serve(ctx, ln) }()

	raw, _, err := websocket.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	conn := NewWSClientConn(raw)
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second))
	r := protocol.NewReader(conn)
	if err := protocol.WriteMessage(conn, loginAttempt("eric", "abcd", true)); err != nil {
		t.Fatal(err)
	}
	if resp, err := protocol.ReadEntryResponse(r); err != nil || !isMotd(resp) {
		t.Fatalf("login reply = %#v, %v", resp, err)
	}
	if _, err := protocol.ReadServerEvent(r); err != nil {
		t.Fatal(err)
	}

	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("Serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	// Sessions handed over before Serve returned end with the server.
	shutdown(t, cancel, s)
	ev, err := protocol.ReadServerEvent(r)
	if err != nil {
		t.Fatalf("read shutdown notice: %v", err)
	}
	if want := (protocol.ServerError{ErrorData: protocol.ErrorData{Msg: msgShuttingDown, Disconnect: true}}); ev != want {
		t.Errorf("event = %#v, want %#v", ev, want)
	}
}
