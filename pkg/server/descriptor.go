package server

import (
	"bufio"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/crystal-mush/swordsanddeath/pkg/protocol"
)

// TransportType identifies the kind of transport a Descriptor uses.
type TransportType int

const (
	TransportTCP       TransportType = iota // Raw framed TCP
	TransportWebSocket                      // Frames carried in binary WebSocket messages
)

func (t TransportType) String() string {
	if t == TransportWebSocket {
		return "websocket"
	}
	return "tcp"
}

// ConnState tracks the state of a connection.
type ConnState int

const (
	ConnHandshake ConnState = iota // Awaiting the entry point message
	ConnPlaying                    // Bound to a player session
)

var errDescriptorClosed = errors.New("connection closed")

// Descriptor represents a single client connection.
type Descriptor struct {
	ID        int
	Conn      net.Conn
	Reader    *bufio.Reader
	State     ConnState
	Player    uuid.UUID
	Username  string
	Addr      string
	ConnTime  time.Time
	Transport TransportType

	writeTimeout time.Duration

	mu        sync.Mutex
	closed    bool
	bytesSent int
}

// NewDescriptor wraps a net.Conn into a Descriptor.
func NewDescriptor(id int, conn net.Conn, transport TransportType, writeTimeout time.Duration) *Descriptor {
	addr := ""
	if ra := conn.RemoteAddr(); ra != nil {
		addr = ra.String()
	}
	return &Descriptor{
		ID:           id,
		Conn:         conn,
		Reader:       protocol.NewReader(conn),
		State:        ConnHandshake,
		Addr:         addr,
		ConnTime:     time.Now(),
		Transport:    transport,
		writeTimeout: writeTimeout,
	}
}

// Send encodes m and writes it as one frame. Writes are serialized and
// bounded by the descriptor's write timeout.
func (d *Descriptor) Send(m protocol.Message) error {
	frame, err := protocol.Encode(m)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return errDescriptorClosed
	}
	if d.writeTimeout > 0 {
		d.Conn.SetWriteDeadline(time.Now().Add(d.writeTimeout))
	}
	n, err := d.Conn.Write(frame)
	d.bytesSent += n
	return err
}

// BytesSent returns the number of bytes written so far.
func (d *Descriptor) BytesSent() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.bytesSent
}

// Close shuts down the connection.
func (d *Descriptor) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.closed {
		d.closed = true
		d.Conn.Close()
	}
}

// ConnManager tracks all active connections.
type ConnManager struct {
	mu          sync.RWMutex
	descriptors map[int]*Descriptor
	nextID      int
	byPlayer    map[uuid.UUID]*Descriptor // at most one session per player
}

// NewConnManager creates a new connection manager.
func NewConnManager() *ConnManager {
	return &ConnManager{
		descriptors: make(map[int]*Descriptor),
		byPlayer:    make(map[uuid.UUID]*Descriptor),
		nextID:      1,
	}
}

// Add registers a new descriptor.
func (cm *ConnManager) Add(d *Descriptor) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.descriptors[d.ID] = d
}

// Remove unregisters a descriptor.
func (cm *ConnManager) Remove(d *Descriptor) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	delete(cm.descriptors, d.ID)
	if d.State == ConnPlaying && cm.byPlayer[d.Player] == d {
		delete(cm.byPlayer, d.Player)
	}
}

// Login binds a descriptor to a player.
func (cm *ConnManager) Login(d *Descriptor, player uuid.UUID, username string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	d.State = ConnPlaying
	d.Player = player
	d.Username = username
	cm.byPlayer[player] = d
}

// NextID returns the next descriptor ID.
func (cm *ConnManager) NextID() int {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	id := cm.nextID
	cm.nextID++
	return id
}

// GetByPlayer returns the descriptor bound to player, if any.
func (cm *ConnManager) GetByPlayer(player uuid.UUID) (*Descriptor, bool) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	d, ok := cm.byPlayer[player]
	return d, ok
}

// IsConnected returns true if the player has an active session.
func (cm *ConnManager) IsConnected(player uuid.UUID) bool {
	_, ok := cm.GetByPlayer(player)
	return ok
}

// Count returns the number of active connections.
func (cm *ConnManager) Count() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.descriptors)
}

// CountPlaying returns the number of bound sessions per transport.
func (cm *ConnManager) CountPlaying() map[TransportType]int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	counts := map[TransportType]int{TransportTCP: 0, TransportWebSocket: 0}
	for _, d := range cm.byPlayer {
		counts[d.Transport]++
	}
	return counts
}
