package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/crystal-mush/swordsanddeath/pkg/gamedb"
)

// Memory is a non-persistent Store, used by tests and throwaway servers.
// Records are copied on the way in and out.
type Memory struct {
	mu      sync.RWMutex
	players map[uuid.UUID]gamedb.Player
	byName  map[string]uuid.UUID
	items   map[uuid.UUID]gamedb.Item
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		players: make(map[uuid.UUID]gamedb.Player),
		byName:  make(map[string]uuid.UUID),
		items:   make(map[uuid.UUID]gamedb.Item),
	}
}

var _ Store = (*Memory)(nil)

// Player operations

func (m *Memory) CreatePlayer(ctx context.Context, p *gamedb.Player) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := UsernameKey(p.Username)
	if _, ok := m.byName[key]; ok {
		return ErrUsernameTaken
	}
	m.players[p.ID] = *p
	m.byName[key] = p.ID
	return nil
}

func (m *Memory) Player(ctx context.Context, id uuid.UUID) (*gamedb.Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.players[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (m *Memory) PlayerByUsername(ctx context.Context, username string) (*gamedb.Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byName[UsernameKey(username)]
	if !ok {
		return nil, ErrNotFound
	}
	p := m.players[id]
	return &p, nil
}

func (m *Memory) SavePlayer(ctx context.Context, p *gamedb.Player) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.players[p.ID]
	if !ok {
		return ErrNotFound
	}
	cur.Level, cur.Exp, cur.Steps, cur.Health, cur.Region = p.Level, p.Exp, p.Steps, p.Health, p.Region
	m.players[p.ID] = cur
	return nil
}

func (m *Memory) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.players[id]
	if !ok {
		return ErrNotFound
	}
	if active && p.Active {
		return ErrAlreadyActive
	}
	p.Active = active
	m.players[id] = p
	return nil
}

func (m *Memory) ResetActive(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, p := range m.players {
		if p.Active {
			p.Active = false
			m.players[id] = p
			n++
		}
	}
	return n, nil
}

// Item operations

func (m *Memory) CreateItem(ctx context.Context, it *gamedb.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.items {
		if other.Owner == it.Owner && other.Name == it.Name {
			return ErrItemNameTaken
		}
	}
	m.items[it.ID] = *it
	return nil
}

func (m *Memory) Item(ctx context.Context, id uuid.UUID) (*gamedb.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	it, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &it, nil
}

func (m *Memory) DeleteItem(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return ErrNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *Memory) ItemsByOwner(ctx context.Context, owner uuid.UUID) ([]*gamedb.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*gamedb.Item
	for _, it := range m.items {
		if it.Owner == owner {
			out = append(out, &it)
		}
	}
	SortItems(out)
	return out, nil
}

func (m *Memory) ItemByOwnerName(ctx context.Context, owner uuid.UUID, name string) (*gamedb.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, it := range m.items {
		if it.Owner == owner && it.Name == name {
			return &it, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) ItemByName(ctx context.Context, name string) (*gamedb.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, it := range m.items {
		if it.Name == name {
			return &it, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) Close() error { return nil }

// SortItems orders items by name, then by id.
func SortItems(items []*gamedb.Item) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].Name != items[j].Name {
			return items[i].Name < items[j].Name
		}
		return items[i].ID.String() < items[j].ID.String()
	})
}
