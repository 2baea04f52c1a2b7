package server

import (
	"context"
	"errors"
	"log"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/crystal-mush/swordsanddeath/pkg/events"
	"github.com/crystal-mush/swordsanddeath/pkg/gamedb"
	"github.com/crystal-mush/swordsanddeath/pkg/protocol"
	"github.com/crystal-mush/swordsanddeath/pkg/store"
)

// Handshake failure messages sent in EntryResponse errors.
const (
	msgUnrecognized  = "No player exists with that username."
	msgAlreadyOnline = "That player is already online."
	msgUnauthorized  = "Incorrect password."
	msgUsernameTaken = "That username is already taken."
	msgServerFailure = "Something went wrong, please try again."
)

// versionMismatch returns the error text for an unaccepted client version.
func versionMismatch(v string) string {
	return "Invalid version: " + v
}

// handshake reads the entry point message and resolves it. It returns the
// logged in player, already marked active, when a session should follow.
// In every other case the reply has been sent and the caller closes the
// connection.
func (s *Server) handshake(ctx context.Context, d *Descriptor) (*gamedb.Player, bool) {
	if s.Config.HandshakeTimeout > 0 {
		d.Conn.SetReadDeadline(time.Now().Add(s.Config.HandshakeTimeout))
	}
	// Shutdown must not wait for a silent client.
	stop := context.AfterFunc(ctx, d.Close)
	ep, err := protocol.ReadEntryPoint(d.Reader)
	if !stop() {
		return nil, false
	}
	d.Conn.SetReadDeadline(time.Time{})
	if err != nil {
		if !protocol.IsEOF(err) {
			log.Printf("[%d] Bad entry point from %s: %v", d.ID, d.Addr, err)
		}
		s.Metrics.Handshake("protocol_error")
		return nil, false
	}

	switch m := ep.(type) {
	case protocol.VersionProbe:
		var reply protocol.EntryResponse = protocol.VersionAccepted{Version: Version}
		result := "version_ok"
		if m.Version != s.Config.AcceptedVersion {
			reply = protocol.EntryError{Msg: versionMismatch(m.Version)}
			result = "version_rejected"
		}
		log.Printf("[%d] Version probe %q (%s)", d.ID, m.Version, result)
		s.Metrics.Handshake(result)
		if err := d.Send(reply); err != nil {
			log.Printf("[%d] Write error: %v", d.ID, err)
		}
		return nil, false

	case protocol.LoginAttempt:
		p, failure := s.login(ctx, d, m)
		if p == nil {
			s.Metrics.Handshake("rejected")
			if err := d.Send(protocol.EntryError{Msg: failure}); err != nil {
				log.Printf("[%d] Write error: %v", d.ID, err)
			}
			return nil, false
		}
		if err := d.Send(protocol.Motd{Text: s.Motd.Get()}); err != nil {
			log.Printf("[%d] Write error after login of %s: %v", d.ID, p.Username, err)
			s.deactivate(p)
			return nil, false
		}
		s.Metrics.Handshake("accepted")
		return p, true

	default:
		log.Printf("[%d] Unexpected entry point %T", d.ID, ep)
		return nil, false
	}
}

// login resolves a login or signup attempt. On success the player is active;
// on failure the returned string is the message for the client.
func (s *Server) login(ctx context.Context, d *Descriptor, m protocol.LoginAttempt) (*gamedb.Player, string) {
	// Clients that skipped the version probe leave ClientVersion empty.
	if m.ClientVersion != "" && m.ClientVersion != s.Config.AcceptedVersion {
		return nil, versionMismatch(m.ClientVersion)
	}
	if m.Signup {
		return s.signup(ctx, d, m.Username, m.Password)
	}

	p, err := s.Store.PlayerByUsername(ctx, m.Username)
	if errors.Is(err, store.ErrNotFound) {
		log.Printf("[%d] Login for unknown player %q", d.ID, m.Username)
		return nil, msgUnrecognized
	}
	if err != nil {
		log.Printf("[%d] Player lookup for %q failed: %v", d.ID, m.Username, err)
		return nil, msgServerFailure
	}
	if p.Active {
		log.Printf("[%d] Login for %s refused: already online", d.ID, p.Username)
		return nil, msgAlreadyOnline
	}
	if bcrypt.CompareHashAndPassword([]byte(p.Password), []byte(m.Password)) != nil {
		log.Printf("[%d] Login for %s refused: bad password", d.ID, p.Username)
		return nil, msgUnauthorized
	}
	if msg := s.activate(ctx, d, p); msg != "" {
		return nil, msg
	}
	log.Printf("[%d] Player %s (%s) logged in from %s", d.ID, p.Username, p.ID, d.Addr)
	s.Bus.EmitToPlayer(p.ID, events.Event{Type: events.EvLogin, Text: p.Username})
	return p, ""
}

// signup validates and creates a new player, then activates it.
func (s *Server) signup(ctx context.Context, d *Descriptor, username, password string) (*gamedb.Player, string) {
	if msg := ValidateUsername(username); msg != "" {
		return nil, msg
	}
	if msg := ValidatePassword(password); msg != "" {
		return nil, msg
	}
	if _, err := s.Store.PlayerByUsername(ctx, username); err == nil {
		return nil, msgUsernameTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		log.Printf("[%d] Player lookup for %q failed: %v", d.ID, username, err)
		return nil, msgServerFailure
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.Config.BcryptCost)
	if err != nil {
		log.Printf("[%d] Password hash failed: %v", d.ID, err)
		return nil, msgServerFailure
	}
	p := gamedb.NewPlayer(username, string(hash))
	if err := s.Store.CreatePlayer(ctx, p); err != nil {
		if errors.Is(err, store.ErrUsernameTaken) {
			return nil, msgUsernameTaken
		}
		log.Printf("[%d] Create player %q failed: %v", d.ID, username, err)
		return nil, msgServerFailure
	}
	if msg := s.activate(ctx, d, p); msg != "" {
		return nil, msg
	}
	log.Printf("[%d] New player %s (%s) created from %s", d.ID, p.Username, p.ID, d.Addr)
	s.Bus.EmitToPlayer(p.ID, events.Event{Type: events.EvSignup, Text: p.Username})
	return p, ""
}

// activate sets the active flag. Losing the race to another login is
// reported as AlreadyOnline.
func (s *Server) activate(ctx context.Context, d *Descriptor, p *gamedb.Player) string {
	err := s.Store.SetActive(ctx, p.ID, true)
	switch {
	case err == nil:
		p.Active = true
		return ""
	case errors.Is(err, store.ErrAlreadyActive):
		if s.Conns.IsConnected(p.ID) {
			log.Printf("[%d] Login for %s refused: already online", d.ID, p.Username)
		} else {
			log.Printf("[%d] Login for %s refused: active flag set without a session", d.ID, p.Username)
		}
		return msgAlreadyOnline
	default:
		log.Printf("[%d] Activate %s failed: %v", d.ID, p.Username, err)
		return msgServerFailure
	}
}

// deactivate clears the active flag of p. Errors are logged.
func (s *Server) deactivate(p *gamedb.Player) {
	// The session context may already be cancelled; cleanup must still run.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Store.SetActive(ctx, p.ID, false); err != nil {
		log.Printf("Clearing active flag of %s failed: %v", p.Username, err)
	}
}
