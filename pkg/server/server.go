// Package server implements the game server: the connection supervisor,
// the entry handshake, per-connection sessions and command dispatch.
package server

import (
	"context"
	"errors"
	"log"
	"net"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/crystal-mush/swordsanddeath/pkg/events"
	"github.com/crystal-mush/swordsanddeath/pkg/game"
	"github.com/crystal-mush/swordsanddeath/pkg/store"
)

// Config holds the runtime settings of a Server.
type Config struct {
	Addr              string
	AcceptedVersion   string
	KeepaliveInterval time.Duration // time between probes; an unanswered probe times out after one more
	KeepaliveCheck    time.Duration // how often a session runs keepalive bookkeeping
	HandshakeTimeout  time.Duration // read deadline for the entry point message
	WriteTimeout      time.Duration // per-frame write deadline
	BcryptCost        int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:              ":2277",
		AcceptedVersion:   AcceptedClientVersion,
		KeepaliveInterval: 20 * time.Second,
		KeepaliveCheck:    time.Second,
		HandshakeTimeout:  30 * time.Second,
		WriteTimeout:      5 * time.Second,
		BcryptCost:        bcrypt.DefaultCost,
	}
}

// acceptRetryDelay is how long the accept loop backs off after a failed Accept.
const acceptRetryDelay = 20 * time.Millisecond

// Server accepts connections and runs one session per connection.
type Server struct {
	Config  Config
	Store   store.Store
	Bus     *events.Bus
	Conns   *ConnManager
	Motd    *MotdText
	Metrics *Metrics // nil = disabled

	// NewRandom returns the random source for a new session.
	NewRandom func() game.Random

	wg sync.WaitGroup
}

// NewServer creates a server over st. The store is shared by every session
// and is wrapped so that each operation runs under one lock.
func NewServer(st store.Store, cfg Config) *Server {
	if _, ok := st.(*store.Locked); !ok {
		st = store.NewLocked(st)
	}
	bus := events.NewBus()
	bus.SubscribeGlobal(events.SubscriberFunc(logEvent))
	return &Server{
		Config:    cfg,
		Store:     st,
		Bus:       bus,
		Conns:     NewConnManager(),
		Motd:      NewMotd(DefaultMotd),
		NewRandom: game.NewRandomFromEntropy,
	}
}

// EnableMetrics creates the server metrics and subscribes them to the bus.
func (s *Server) EnableMetrics(startTime time.Time) *Metrics {
	s.Metrics = NewMetrics(s.Conns, startTime)
	s.Bus.SubscribeGlobal(s.Metrics)
	return s.Metrics
}

// ResetActive clears active flags left behind by an unclean shutdown.
// It must run before the server accepts connections.
func (s *Server) ResetActive(ctx context.Context) error {
	n, err := s.Store.ResetActive(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		log.Printf("Cleared %d stale active flag(s)", n)
	}
	return nil
}

// ListenAndServe listens on Config.Addr and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Config.Addr)
	if err != nil {
		return err
	}
	log.Printf("Listening on %s", ln.Addr())
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then closes ln.
// Sessions keep running; call Wait to join them.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
		}
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Printf("Accept error: %v", err)
			time.Sleep(acceptRetryDelay)
			continue
		}
		s.ServeConn(ctx, conn, TransportTCP)
	}
}

// ServeConn registers conn and runs its handshake and session on a new
// goroutine. The connection is visible in Conns when ServeConn returns.
func (s *Server) ServeConn(ctx context.Context, conn net.Conn, transport TransportType) {
	d := NewDescriptor(s.Conns.NextID(), conn, transport, s.Config.WriteTimeout)
	s.Conns.Add(d)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.handleConnection(ctx, d)
	}()
}

// Wait blocks until every connection handled by the server has ended.
func (s *Server) Wait() {
	s.wg.Wait()
}

// handleConnection manages a single client connection lifecycle.
func (s *Server) handleConnection(ctx context.Context, d *Descriptor) {
	s.Metrics.ConnectionOpened(d.Transport)

	log.Printf("[%d] New %s connection from %s", d.ID, d.Transport, d.Addr)

	defer func() {
		s.Conns.Remove(d)
		d.Close()
		log.Printf("[%d] Connection closed from %s", d.ID, d.Addr)
	}()

	p, ok := s.handshake(ctx, d)
	if !ok {
		return
	}
	s.Conns.Login(d, p.ID, p.Username)
	newSession(s, d, p).run(ctx)
}
