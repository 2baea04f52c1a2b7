package store

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/crystal-mush/swordsanddeath/pkg/gamedb"
)

// Locked serializes every operation of the wrapped Store behind one mutex.
type Locked struct {
	mu sync.Mutex
	s  Store
}

// NewLocked wraps s.
func NewLocked(s Store) *Locked {
	return &Locked{s: s}
}

var _ Store = (*Locked)(nil)

func (l *Locked) CreatePlayer(ctx context.Context, p *gamedb.Player) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.s.CreatePlayer(ctx, p)
}

func (l *Locked) Player(ctx context.Context, id uuid.UUID) (*gamedb.Player, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.s.Player(ctx, id)
}

func (l *Locked) PlayerByUsername(ctx context.Context, username string) (*gamedb.Player, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.s.PlayerByUsername(ctx, username)
}

func (l *Locked) SavePlayer(ctx context.Context, p *gamedb.Player) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.s.SavePlayer(ctx, p)
}

func (l *Locked) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.s.SetActive(ctx, id, active)
}

func (l *Locked) ResetActive(ctx context.Context) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.s.ResetActive(ctx)
}

func (l *Locked) CreateItem(ctx context.Context, it *gamedb.Item) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.s.CreateItem(ctx, it)
}

func (l *Locked) Item(ctx context.Context, id uuid.UUID) (*gamedb.Item, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.s.Item(ctx, id)
}

func (l *Locked) DeleteItem(ctx context.Context, id uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.s.DeleteItem(ctx, id)
}

func (l *Locked) ItemsByOwner(ctx context.Context, owner uuid.UUID) ([]*gamedb.Item, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.s.ItemsByOwner(ctx, owner)
}

func (l *Locked) ItemByOwnerName(ctx context.Context, owner uuid.UUID, name string) (*gamedb.Item, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.s.ItemByOwnerName(ctx, owner, name)
}

func (l *Locked) ItemByName(ctx context.Context, name string) (*gamedb.Item, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.s.ItemByName(ctx, name)
}

func (l *Locked) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.s.Close()
}
