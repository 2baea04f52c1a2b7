package server

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/crystal-mush/swordsanddeath/pkg/events"
	"github.com/crystal-mush/swordsanddeath/pkg/gamedb"
	"github.com/crystal-mush/swordsanddeath/pkg/protocol"
)

// msgShuttingDown is sent to every session when the server stops.
const msgShuttingDown = "The server is shutting down."

// SessionState is the lifecycle stage of a session.
type SessionState int

const (
	SessionActive SessionState = iota
	SessionShuttingDown
	SessionClosed
)

type readResult struct {
	ev  protocol.ClientEvent
	err error
}

// Session runs the in-game loop of one logged in connection.
type Session struct {
	srv    *Server
	d      *Descriptor
	player *gamedb.Player
	disp   *Dispatcher

	state         SessionState
	lastKeepalive time.Time
	expecting     bool
	now           func() time.Time

	reads      chan readResult
	levelUps   chan struct{} // pending snapshot push, at most one
	done       chan struct{}
	readerDone chan struct{}
	closed     atomic.Bool
	closeOnce  sync.Once
}

func newSession(s *Server, d *Descriptor, p *gamedb.Player) *Session {
	disp := NewDispatcher(s.Store, s.Bus, s.NewRandom())
	disp.logID = d.ID
	return &Session{
		srv:        s,
		d:          d,
		player:     p,
		disp:       disp,
		now:        time.Now,
		reads:      make(chan readResult),
		levelUps:   make(chan struct{}, 1),
		done:       make(chan struct{}),
		readerDone: make(chan struct{}),
	}
}

// Receive implements events.Subscriber. A level-up queues a fresh player
// snapshot for the client, sent after the reply that caused it.
func (s *Session) Receive(ev events.Event) {
	if ev.Type != events.EvLevelUp {
		return
	}
	select {
	case s.levelUps <- struct{}{}:
	default:
	}
}

// Closed implements events.Subscriber.
func (s *Session) Closed() bool { return s.closed.Load() }

// run serves the session until the client leaves, the connection fails,
// the keepalive times out or ctx is cancelled.
func (s *Session) run(ctx context.Context) {
	defer s.close()
	s.srv.Bus.Subscribe(s.player.ID, s)
	go s.readLoop()

	s.lastKeepalive = s.now()
	if err := s.d.Send(protocol.Update{Player: protocol.SnapshotOf(s.player)}); err != nil {
		log.Printf("[%d] Write error: %v", s.d.ID, err)
		return
	}

	check := s.srv.Config.KeepaliveCheck
	if check <= 0 {
		check = time.Second
	}
	ticker := time.NewTicker(check)
	defer ticker.Stop()

	for s.state == SessionActive {
		select {
		case <-ctx.Done():
			s.shutdown()
		case <-ticker.C:
			s.keepalive()
		case r := <-s.reads:
			if r.err != nil {
				if !protocol.IsEOF(r.err) {
					log.Printf("[%d] Read error from %s: %v", s.d.ID, s.player.Username, r.err)
				}
				s.state = SessionClosed
				continue
			}
			s.handle(ctx, r.ev)
		}
	}
}

// readLoop decodes client events until the connection fails or the session
// ends.
func (s *Session) readLoop() {
	defer close(s.readerDone)
	for {
		ev, err := protocol.ReadClientEvent(s.d.Reader)
		select {
		case s.reads <- readResult{ev: ev, err: err}:
		case <-s.done:
			return
		}
		if err != nil {
			return
		}
	}
}

func (s *Session) shutdown() {
	s.state = SessionShuttingDown
	log.Printf("[%d] Disconnecting %s: server shutting down", s.d.ID, s.player.Username)
	err := s.d.Send(protocol.ServerError{ErrorData: protocol.ErrorData{Msg: msgShuttingDown, Disconnect: true}})
	if err != nil {
		log.Printf("[%d] Write error: %v", s.d.ID, err)
	}
	s.state = SessionClosed
}

// keepalive probes the client once per interval and closes the session when
// the previous probe is still unanswered.
func (s *Session) keepalive() {
	now := s.now()
	if now.Sub(s.lastKeepalive) < s.srv.Config.KeepaliveInterval {
		return
	}
	if s.expecting {
		log.Printf("[%d] Keepalive timeout for %s", s.d.ID, s.player.Username)
		if err := s.d.Send(protocol.ServerDisconnect{}); err != nil {
			log.Printf("[%d] Write error: %v", s.d.ID, err)
		}
		s.state = SessionClosed
		return
	}
	if err := s.d.Send(protocol.ServerKeepAlive{Time: uint64(now.Unix())}); err != nil {
		log.Printf("[%d] Keepalive write to %s failed: %v", s.d.ID, s.player.Username, err)
		s.state = SessionClosed
		return
	}
	tracef(s.d.ID, "keepalive probe to %s", s.player.Username)
	s.expecting = true
	s.lastKeepalive = now
}

// latency returns the round trip computed from a keepalive reply, in whole
// seconds.
func (s *Session) latency(t uint64) int64 {
	interval := int64(s.srv.Config.KeepaliveInterval / time.Second)
	return int64(t) - (s.lastKeepalive.Unix() - interval)
}

func (s *Session) handle(ctx context.Context, ev protocol.ClientEvent) {
	tracef(s.d.ID, "%s sent %#v", s.player.Username, ev)
	switch m := ev.(type) {
	case protocol.ClientDisconnect:
		log.Printf("[%d] %s disconnected", s.d.ID, s.player.Username)
		if err := s.d.Send(protocol.ServerDisconnect{}); err != nil {
			log.Printf("[%d] Write error: %v", s.d.ID, err)
		}
		s.state = SessionClosed

	case protocol.ClientKeepAlive:
		if !s.expecting {
			return
		}
		s.expecting = false
		lat := s.latency(m.Time)
		log.Printf("[%d] Keepalive from %s, latency %ds", s.d.ID, s.player.Username, lat)
		s.srv.Bus.EmitToPlayer(s.player.ID, events.Event{Type: events.EvKeepAlive, Amount: uint32(max(lat, 0))})

	case protocol.ClientError:
		log.Printf("[%d] Client error from %s: %s", s.d.ID, s.player.Username, m.Msg)
		if m.Disconnect {
			s.state = SessionClosed
		}

	default:
		s.srv.Metrics.Command(commandName(ev))
		reply := s.disp.Dispatch(ctx, s.player.ID, ev)
		if reply == nil {
			return
		}
		tracef(s.d.ID, "reply to %s: %#v", s.player.Username, reply)
		if err := s.d.Send(reply); err != nil {
			log.Printf("[%d] Write error: %v", s.d.ID, err)
			s.state = SessionClosed
			return
		}
		s.pushUpdate(ctx)
	}
}

// pushUpdate sends the player's current snapshot if a level-up is pending.
func (s *Session) pushUpdate(ctx context.Context) {
	select {
	case <-s.levelUps:
	default:
		return
	}
	p, err := s.srv.Store.Player(ctx, s.player.ID)
	if err != nil {
		log.Printf("[%d] Reload of %s failed: %v", s.d.ID, s.player.Username, err)
		return
	}
	s.player.Level, s.player.Exp, s.player.Steps, s.player.Health, s.player.Region = p.Level, p.Exp, p.Steps, p.Health, p.Region
	if err := s.d.Send(protocol.Update{Player: protocol.SnapshotOf(s.player)}); err != nil {
		log.Printf("[%d] Write error: %v", s.d.ID, err)
		s.state = SessionClosed
	}
}

// close tears the session down once: the connection is closed, the reader
// joined and the player marked inactive.
func (s *Session) close() {
	s.closeOnce.Do(func() {
		s.state = SessionClosed
		s.closed.Store(true)
		s.srv.Bus.Unsubscribe(s.player.ID, s)
		close(s.done)
		s.d.Close()
		<-s.readerDone
		s.srv.deactivate(s.player)
		s.player.Active = false
		s.srv.Bus.EmitToPlayer(s.player.ID, events.Event{Type: events.EvLogout, Text: s.player.Username})
		s.srv.Bus.Cleanup()
		log.Printf("[%d] Player %s logged out", s.d.ID, s.player.Username)
	})
}

func commandName(ev protocol.ClientEvent) string {
	switch ev.(type) {
	case protocol.Step:
		return "step"
	case protocol.OpenInv:
		return "open_inv"
	case protocol.DropItem:
		return "drop_item"
	case protocol.InspectItem:
		return "inspect_item"
	case protocol.Attack:
		return "attack"
	case protocol.TryFlee:
		return "try_flee"
	default:
		return "other"
	}
}
