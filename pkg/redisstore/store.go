// Package redisstore persists players and items in Redis.
//
// Records are stored as JSON strings. Secondary indexes (usernames, item
// names, items per owner) are separate keys maintained alongside the
// records. The active flag lives in its own key so activation is a single
// SETNX.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/crystal-mush/swordsanddeath/pkg/gamedb"
	"github.com/crystal-mush/swordsanddeath/pkg/store"
)

// Store is a Redis-backed store.Store.
type Store struct {
	client *redis.Client
}

// New connects to the server named by cfg.URL and verifies the connection.
func New(cfg Config) (*Store, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redisstore: parse url: %w", err)
	}
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redisstore: ping: %w", err)
	}
	return &Store{client: client}, nil
}

// NewWithClient wraps an existing client (for testing).
func NewWithClient(client *redis.Client) *Store {
	return &Store{client: client}
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}

var _ store.Store = (*Store)(nil)

// Player operations

func (s *Store) CreatePlayer(ctx context.Context, p *gamedb.Player) error {
	rec := *p
	rec.Active = false
	data, err := json.Marshal(&rec)
	if err != nil {
		return fmt.Errorf("redisstore: encode player %s: %w", p.ID, err)
	}
	ok, err := s.client.SetNX(ctx, usernameIndexKey(store.UsernameKey(p.Username)), p.ID.String(), 0).Result()
	if err != nil {
		return fmt.Errorf("redisstore: reserve username: %w", err)
	}
	if !ok {
		return store.ErrUsernameTaken
	}
	if err := s.client.Set(ctx, playerKey(p.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("redisstore: create player %s: %w", p.ID, err)
	}
	return nil
}

func (s *Store) Player(ctx context.Context, id uuid.UUID) (*gamedb.Player, error) {
	pipe := s.client.Pipeline()
	get := pipe.Get(ctx, playerKey(id))
	exists := pipe.Exists(ctx, activeKey(id))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redisstore: get player %s: %w", id, err)
	}
	data, err := get.Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("redisstore: get player %s: %w", id, err)
	}
	var p gamedb.Player
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("redisstore: decode player %s: %w", id, err)
	}
	p.Active = exists.Val() > 0
	return &p, nil
}

func (s *Store) PlayerByUsername(ctx context.Context, username string) (*gamedb.Player, error) {
	idStr, err := s.client.Get(ctx, usernameIndexKey(store.UsernameKey(username))).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("redisstore: username lookup: %w", err)
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("redisstore: bad username index entry for %q: %w", username, err)
	}
	return s.Player(ctx, id)
}

func (s *Store) SavePlayer(ctx context.Context, p *gamedb.Player) error {
	cur, err := s.Player(ctx, p.ID)
	if err != nil {
		return err
	}
	cur.Level, cur.Exp, cur.Steps, cur.Health, cur.Region = p.Level, p.Exp, p.Steps, p.Health, p.Region
	cur.Active = false
	data, err := json.Marshal(cur)
	if err != nil {
		return fmt.Errorf("redisstore: encode player %s: %w", p.ID, err)
	}
	return s.client.Set(ctx, playerKey(p.ID), data, 0).Err()
}

func (s *Store) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	n, err := s.client.Exists(ctx, playerKey(id)).Result()
	if err != nil {
		return fmt.Errorf("redisstore: set active %s: %w", id, err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	if !active {
		return s.client.Del(ctx, activeKey(id)).Err()
	}
	ok, err := s.client.SetNX(ctx, activeKey(id), time.Now().Unix(), 0).Result()
	if err != nil {
		return fmt.Errorf("redisstore: set active %s: %w", id, err)
	}
	if !ok {
		return store.ErrAlreadyActive
	}
	return nil
}

func (s *Store) ResetActive(ctx context.Context) (int, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, activePattern(), 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("redisstore: scan active: %w", err)
	}
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := s.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("redisstore: reset active: %w", err)
	}
	return int(n), nil
}

// Item operations

func (s *Store) CreateItem(ctx context.Context, it *gamedb.Item) error {
	data, err := json.Marshal(it)
	if err != nil {
		return fmt.Errorf("redisstore: encode item %s: %w", it.ID, err)
	}
	ok, err := s.client.SetNX(ctx, ownerItemNameKey(it.Owner, it.Name), it.ID.String(), 0).Result()
	if err != nil {
		return fmt.Errorf("redisstore: reserve item name: %w", err)
	}
	if !ok {
		return store.ErrItemNameTaken
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, itemKey(it.ID), data, 0)
	pipe.SAdd(ctx, ownerItemsKey(it.Owner), it.ID.String())
	pipe.SAdd(ctx, itemNameKey(it.Name), it.ID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redisstore: create item %s: %w", it.ID, err)
	}
	return nil
}

func (s *Store) Item(ctx context.Context, id uuid.UUID) (*gamedb.Item, error) {
	data, err := s.client.Get(ctx, itemKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("redisstore: get item %s: %w", id, err)
	}
	return decodeItem(id.String(), data)
}

func (s *Store) DeleteItem(ctx context.Context, id uuid.UUID) error {
	it, err := s.Item(ctx, id)
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, itemKey(id), ownerItemNameKey(it.Owner, it.Name))
	pipe.SRem(ctx, ownerItemsKey(it.Owner), id.String())
	pipe.SRem(ctx, itemNameKey(it.Name), id.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redisstore: delete item %s: %w", id, err)
	}
	return nil
}

func (s *Store) ItemsByOwner(ctx context.Context, owner uuid.UUID) ([]*gamedb.Item, error) {
	ids, err := s.client.SMembers(ctx, ownerItemsKey(owner)).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: items of %s: %w", owner, err)
	}
	items, err := s.loadItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	store.SortItems(items)
	return items, nil
}

func (s *Store) ItemByOwnerName(ctx context.Context, owner uuid.UUID, name string) (*gamedb.Item, error) {
	idStr, err := s.client.Get(ctx, ownerItemNameKey(owner, name)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("redisstore: item name lookup: %w", err)
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("redisstore: bad item index entry for %q: %w", name, err)
	}
	return s.Item(ctx, id)
}

func (s *Store) ItemByName(ctx context.Context, name string) (*gamedb.Item, error) {
	idStr, err := s.client.SRandMember(ctx, itemNameKey(name)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("redisstore: item name lookup: %w", err)
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("redisstore: bad item index entry for %q: %w", name, err)
	}
	return s.Item(ctx, id)
}

// loadItems fetches the records of ids in one round trip. Ids whose record
// has vanished are skipped.
func (s *Store) loadItems(ctx context.Context, ids []string) ([]*gamedb.Item, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, idStr := range ids {
		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("redisstore: bad item id %q: %w", idStr, err)
		}
		keys[i] = itemKey(id)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: load items: %w", err)
	}
	items := make([]*gamedb.Item, 0, len(vals))
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		it, err := decodeItem(ids[i], []byte(str))
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, nil
}

func decodeItem(id string, data []byte) (*gamedb.Item, error) {
	var it gamedb.Item
	if err := json.Unmarshal(data, &it); err != nil {
		return nil, fmt.Errorf("redisstore: decode item %s: %w", id, err)
	}
	return &it, nil
}
