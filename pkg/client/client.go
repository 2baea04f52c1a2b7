// Package client speaks the game protocol from the player's side.
package client

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/crystal-mush/swordsanddeath/pkg/protocol"
	"github.com/crystal-mush/swordsanddeath/pkg/server"
)

// RejectedError is an EntryResponse error returned by the server.
type RejectedError struct {
	Msg string
}

func (e *RejectedError) Error() string { return "server: " + e.Msg }

// Client is one connection to a game server. Send may be called
// concurrently with Next.
type Client struct {
	conn net.Conn
	r    *bufio.Reader

	wmu sync.Mutex
}

// Dial connects to addr over TCP, or over WebSocket when addr is a ws://
// or wss:// URL.
func Dial(addr string, timeout time.Duration) (*Client, error) {
	if strings.HasPrefix(addr, "ws://") || strings.HasPrefix(addr, "wss://") {
		d := websocket.Dialer{HandshakeTimeout: timeout}
		conn, _, err := d.Dial(addr, nil)
		if err != nil {
			return nil, fmt.Errorf("client: dial %s: %w", addr, err)
		}
		return New(server.NewWSClientConn(conn)), nil
	}
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", addr, err)
	}
	return New(conn), nil
}

// New wraps an established connection.
func New(conn net.Conn) *Client {
	return &Client{conn: conn, r: protocol.NewReader(conn)}
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Ping asks whether the server accepts version and returns the server
// version on success.
func (c *Client) Ping(version string) (string, error) {
	resp, err := c.entry(protocol.VersionProbe{Version: version})
	if err != nil {
		return "", err
	}
	switch m := resp.(type) {
	case protocol.VersionAccepted:
		return m.Version, nil
	case protocol.EntryError:
		return "", &RejectedError{Msg: m.Msg}
	default:
		return "", fmt.Errorf("client: unexpected reply %T", resp)
	}
}

// Login logs in, or signs up when signup is set, and returns the message of
// the day.
func (c *Client) Login(username, password string, signup bool, version string) (string, error) {
	resp, err := c.entry(protocol.LoginAttempt{
		Username:      username,
		Password:      password,
		Signup:        signup,
		ClientVersion: version,
	})
	if err != nil {
		return "", err
	}
	switch m := resp.(type) {
	case protocol.Motd:
		return m.Text, nil
	case protocol.EntryError:
		return "", &RejectedError{Msg: m.Msg}
	default:
		return "", fmt.Errorf("client: unexpected reply %T", resp)
	}
}

func (c *Client) entry(ep protocol.EntryPoint) (protocol.EntryResponse, error) {
	if err := c.write(ep); err != nil {
		return nil, err
	}
	resp, err := protocol.ReadEntryResponse(c.r)
	if err != nil {
		return nil, fmt.Errorf("client: read reply: %w", err)
	}
	return resp, nil
}

// Send writes one client event.
func (c *Client) Send(ev protocol.ClientEvent) error {
	return c.write(ev)
}

func (c *Client) write(m protocol.Message) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if err := protocol.WriteMessage(c.conn, m); err != nil {
		return fmt.Errorf("client: send %T: %w", m, err)
	}
	return nil
}

// Next reads the next server event. Keepalive probes are answered
// automatically and still returned.
func (c *Client) Next() (protocol.ServerEvent, error) {
	ev, err := protocol.ReadServerEvent(c.r)
	if err != nil {
		return nil, err
	}
	if ka, ok := ev.(protocol.ServerKeepAlive); ok {
		if err := c.Send(protocol.ClientKeepAlive{Time: ka.Time}); err != nil {
			return nil, err
		}
	}
	return ev, nil
}
