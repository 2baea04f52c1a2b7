package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// WebConfig holds configuration for the web server.
type WebConfig struct {
	Port        int
	Host        string
	CORSOrigins []string
	RateLimit   int  // requests per minute per IP; 0 disables limiting
	Metrics     bool // serve GET /metrics
	WebSocket   bool // serve GET /ws
}

// WebServer provides the WebSocket transport and the HTTP status and
// metrics endpoints alongside the TCP game server.
type WebServer struct {
	srv       *Server
	httpSrv   *http.Server
	router    *mux.Router
	rl        *rateLimiter
	upgrader  websocket.Upgrader
	startTime time.Time

	// ctx bounds upgraded connections, which outlive their request.
	ctx context.Context
	// upgrades tracks handlers that may still hand a connection to srv.
	upgrades sync.WaitGroup
}

// NewWebServer creates a web server bound to the game server.
func NewWebServer(s *Server, cfg WebConfig) *WebServer {
	ws := &WebServer{
		srv:       s,
		router:    mux.NewRouter(),
		startTime: time.Now(),
		ctx:       context.Background(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				if len(cfg.CORSOrigins) == 0 {
					return true
				}
				origin := r.Header.Get("Origin")
				for _, o := range cfg.CORSOrigins {
					if strings.EqualFold(o, origin) {
						return true
					}
				}
				return false
			},
		},
	}
	if cfg.RateLimit > 0 {
		ws.rl = newRateLimiter(cfg.RateLimit)
	}
	ws.registerRoutes(cfg)
	return ws
}

// Handler returns the root handler with middleware applied. Connections
// upgraded through it run until ctx is cancelled.
func (ws *WebServer) Handler(ctx context.Context) http.Handler {
	ws.ctx = ctx
	return ws.httpSrv.Handler
}

func (ws *WebServer) registerRoutes(cfg WebConfig) {
	handler := http.Handler(ws.router)
	if ws.rl != nil {
		handler = rateLimitMiddleware(ws.rl, handler)
	}
	handler = corsMiddleware(cfg.CORSOrigins, handler)

	ws.httpSrv = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ws.router.HandleFunc("/status", ws.handleStatus).Methods(http.MethodGet)
	if cfg.WebSocket {
		ws.router.HandleFunc("/ws", ws.handleWebSocket).Methods(http.MethodGet)
	}
	if cfg.Metrics && ws.srv.Metrics != nil {
		ws.router.Handle("/metrics", ws.srv.Metrics.Handler()).Methods(http.MethodGet)
	}
}

// ListenAndServe serves HTTP until ctx is cancelled. Upgraded WebSocket
// connections are handed to the game server and share its context.
func (ws *WebServer) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", ws.httpSrv.Addr)
	if err != nil {
		return err
	}
	return ws.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener. After ctx is cancelled
// it returns only once shutdown has finished and no WebSocket upgrade can
// still reach the game server, so Server.Wait may follow it.
func (ws *WebServer) Serve(ctx context.Context, ln net.Listener) error {
	ws.ctx = ctx
	ws.httpSrv.BaseContext = func(net.Listener) context.Context { return ctx }
	if ws.rl != nil {
		go ws.cleanupLoop(ctx)
	}
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		ws.httpSrv.Shutdown(shutdownCtx)
	}()

	log.Printf("Web server listening on %s", ln.Addr())
	err := ws.httpSrv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		<-stopped
		ws.upgrades.Wait()
		return nil
	}
	return err
}

func (ws *WebServer) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ws.rl.cleanup()
		}
	}
}

// handleWebSocket upgrades the request and runs the game protocol over it.
func (ws *WebServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws.upgrades.Add(1)
	defer ws.upgrades.Done()
	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	if ws.ctx.Err() != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, msgShuttingDown), time.Now().Add(time.Second))
		conn.Close()
		return
	}
	ws.srv.ServeConn(ws.ctx, newWSConn(conn, clientAddr(r)), TransportWebSocket)
}

// clientAddr returns the client address, preferring X-Forwarded-For or
// X-Real-IP when behind a reverse proxy.
func clientAddr(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// The first entry is the real client.
		if idx := strings.Index(xff, ","); idx >= 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	return r.RemoteAddr
}

func (ws *WebServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":         "ok",
		"version":        Version,
		"client_version": ws.srv.Config.AcceptedVersion,
		"uptime_seconds": time.Since(ws.startTime).Seconds(),
		"connections":    ws.srv.Conns.ConnectionStats(),
		"memory":         MemoryStats(),
	})
}

// wsConn adapts a WebSocket connection to net.Conn. Each Write is sent as
// one binary message; reads consume binary messages as a byte stream.
type wsConn struct {
	conn *websocket.Conn
	addr net.Addr

	rmu sync.Mutex
	cur io.Reader

	wmu sync.Mutex
}

func newWSConn(conn *websocket.Conn, addr string) *wsConn {
	return &wsConn{conn: conn, addr: wsAddr(addr)}
}

// NewWSClientConn wraps a dialed WebSocket connection as a net.Conn.
func NewWSClientConn(conn *websocket.Conn) net.Conn {
	return &wsConn{conn: conn, addr: conn.RemoteAddr()}
}

func (c *wsConn) Read(b []byte) (int, error) {
	c.rmu.Lock()
	defer c.rmu.Unlock()
	for {
		if c.cur == nil {
			typ, r, err := c.conn.NextReader()
			if err != nil {
				var ce *websocket.CloseError
				if errors.As(err, &ce) {
					return 0, io.EOF
				}
				return 0, err
			}
			if typ != websocket.BinaryMessage {
				continue
			}
			c.cur = r
		}
		n, err := c.cur.Read(b)
		if errors.Is(err, io.EOF) {
			c.cur = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (c *wsConn) Write(b []byte) (int, error) {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if err := c.conn.WriteMessage(websocket.BinaryMessage, b); err != nil {
		return 0, err
	}
	return len(b), nil
}

func (c *wsConn) Close() error {
	c.wmu.Lock()
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.wmu.Unlock()
	return c.conn.Close()
}

func (c *wsConn) LocalAddr() net.Addr  { return c.conn.LocalAddr() }
func (c *wsConn) RemoteAddr() net.Addr { return c.addr }

func (c *wsConn) SetDeadline(t time.Time) error {
	if err := c.conn.SetReadDeadline(t); err != nil {
		return err
	}
	return c.conn.SetWriteDeadline(t)
}

func (c *wsConn) SetReadDeadline(t time.Time) error  { return c.conn.SetReadDeadline(t) }
func (c *wsConn) SetWriteDeadline(t time.Time) error { return c.conn.SetWriteDeadline(t) }

// wsAddr is the client address reported for a WebSocket connection.
type wsAddr string

func (a wsAddr) Network() string { return "websocket" }
func (a wsAddr) String() string  { return string(a) }
