// Package boltstore persists players and items in a bbolt database file.
package boltstore

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
	bbolt "go.etcd.io/bbolt"

	"github.com/crystal-mush/swordsanddeath/pkg/gamedb"
	"github.com/crystal-mush/swordsanddeath/pkg/store"
)

// Store wraps a bbolt database. Each operation runs in its own transaction.
type Store struct {
	bolt *bbolt.DB
}

var _ store.Store = (*Store)(nil)

// Open opens or creates a bbolt database file and ensures all buckets exist.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("boltstore: open %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketMeta, bucketPlayers, bucketUsernames, bucketItems, bucketOwnerItems} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		meta := tx.Bucket(bucketMeta)
		if v := meta.Get(keySchema); v != nil {
			if got := keyToInt(v); got != schemaVersion {
				return fmt.Errorf("schema version %d, want %d", got, schemaVersion)
			}
			return nil
		}
		return meta.Put(keySchema, intToKey(schemaVersion))
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("boltstore: create buckets: %w", err)
	}

	return &Store{bolt: db}, nil
}

// Close closes the underlying bbolt database.
func (s *Store) Close() error {
	if s.bolt != nil {
		return s.bolt.Close()
	}
	return nil
}

// Path returns the filesystem path of the underlying bbolt database.
func (s *Store) Path() string {
	if s.bolt != nil {
		return s.bolt.Path()
	}
	return ""
}

// Backup creates a hot snapshot of the bbolt database using tx.WriteTo().
func (s *Store) Backup(path string) error {
	return s.bolt.View(func(tx *bbolt.Tx) error {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("boltstore: create backup %s: %w", path, err)
		}
		defer f.Close()
		_, err = tx.WriteTo(f)
		if err != nil {
			return fmt.Errorf("boltstore: write backup: %w", err)
		}
		log.Printf("boltstore: backup written to %s", path)
		return nil
	})
}

// HasData returns true if the bbolt database contains any players.
func (s *Store) HasData() bool {
	hasData := false
	s.bolt.View(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketPlayers).Stats().KeyN > 0 {
			hasData = true
		}
		return nil
	})
	return hasData
}

// --- Players ---

// CreatePlayer stores a new player and its username index entry.
func (s *Store) CreatePlayer(ctx context.Context, p *gamedb.Player) error {
	data, err := encodePlayer(p)
	if err != nil {
		return fmt.Errorf("boltstore: encode player %s: %w", p.ID, err)
	}
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		names := tx.Bucket(bucketUsernames)
		key := []byte(store.UsernameKey(p.Username))
		if names.Get(key) != nil {
			return store.ErrUsernameTaken
		}
		if err := names.Put(key, idKey(p.ID)); err != nil {
			return err
		}
		return tx.Bucket(bucketPlayers).Put(idKey(p.ID), data)
	})
}

// Player returns the player with the given id.
func (s *Store) Player(ctx context.Context, id uuid.UUID) (*gamedb.Player, error) {
	var p *gamedb.Player
	err := s.bolt.View(func(tx *bbolt.Tx) error {
		var err error
		p, err = getPlayer(tx, id)
		return err
	})
	return p, err
}

// PlayerByUsername looks a player up through the case-folded username index.
func (s *Store) PlayerByUsername(ctx context.Context, username string) (*gamedb.Player, error) {
	var p *gamedb.Player
	err := s.bolt.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketUsernames).Get([]byte(store.UsernameKey(username)))
		if v == nil {
			return store.ErrNotFound
		}
		id, err := keyToID(v)
		if err != nil {
			return fmt.Errorf("boltstore: bad username index entry for %q: %w", username, err)
		}
		p, err = getPlayer(tx, id)
		return err
	})
	return p, err
}

// SavePlayer writes the player's progress fields.
func (s *Store) SavePlayer(ctx context.Context, p *gamedb.Player) error {
	return s.updatePlayer(p.ID, func(cur *gamedb.Player) error {
		cur.Level, cur.Exp, cur.Steps, cur.Health, cur.Region = p.Level, p.Exp, p.Steps, p.Health, p.Region
		return nil
	})
}

// SetActive sets the active flag; activation fails if the flag is already set.
func (s *Store) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	return s.updatePlayer(id, func(cur *gamedb.Player) error {
		if active && cur.Active {
			return store.ErrAlreadyActive
		}
		cur.Active = active
		return nil
	})
}

// ResetActive clears every active flag in one transaction.
func (s *Store) ResetActive(ctx context.Context) (int, error) {
	n := 0
	err := s.bolt.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketPlayers)
		var stale []*gamedb.Player
		err := b.ForEach(func(k, v []byte) error {
			p, err := decodePlayer(v)
			if err != nil {
				return fmt.Errorf("decode player: %w", err)
			}
			if p.Active {
				stale = append(stale, p)
			}
			return nil
		})
		if err != nil {
			return err
		}
		// Buckets must not be modified inside ForEach.
		for _, p := range stale {
			p.Active = false
			if err := putPlayer(b, p); err != nil {
				return err
			}
		}
		n = len(stale)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("boltstore: reset active: %w", err)
	}
	return n, nil
}

func (s *Store) updatePlayer(id uuid.UUID, fn func(*gamedb.Player) error) error {
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		p, err := getPlayer(tx, id)
		if err != nil {
			return err
		}
		if err := fn(p); err != nil {
			return err
		}
		return putPlayer(tx.Bucket(bucketPlayers), p)
	})
}

func getPlayer(tx *bbolt.Tx, id uuid.UUID) (*gamedb.Player, error) {
	v := tx.Bucket(bucketPlayers).Get(idKey(id))
	if v == nil {
		return nil, store.ErrNotFound
	}
	p, err := decodePlayer(v)
	if err != nil {
		return nil, fmt.Errorf("boltstore: decode player %s: %w", id, err)
	}
	return p, nil
}

func putPlayer(b *bbolt.Bucket, p *gamedb.Player) error {
	data, err := encodePlayer(p)
	if err != nil {
		return fmt.Errorf("boltstore: encode player %s: %w", p.ID, err)
	}
	return b.Put(idKey(p.ID), data)
}

// --- Items ---

// CreateItem stores an item and its owner/name index entry.
func (s *Store) CreateItem(ctx context.Context, it *gamedb.Item) error {
	data, err := encodeItem(it)
	if err != nil {
		return fmt.Errorf("boltstore: encode item %s: %w", it.ID, err)
	}
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		idx := tx.Bucket(bucketOwnerItems)
		key := ownerItemKey(it.Owner, it.Name)
		if idx.Get(key) != nil {
			return store.ErrItemNameTaken
		}
		if err := idx.Put(key, idKey(it.ID)); err != nil {
			return err
		}
		return tx.Bucket(bucketItems).Put(idKey(it.ID), data)
	})
}

// Item returns the item with the given id.
func (s *Store) Item(ctx context.Context, id uuid.UUID) (*gamedb.Item, error) {
	var it *gamedb.Item
	err := s.bolt.View(func(tx *bbolt.Tx) error {
		var err error
		it, err = getItem(tx, id)
		return err
	})
	return it, err
}

// DeleteItem removes an item and its index entry.
func (s *Store) DeleteItem(ctx context.Context, id uuid.UUID) error {
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		it, err := getItem(tx, id)
		if err != nil {
			return err
		}
		if err := tx.Bucket(bucketOwnerItems).Delete(ownerItemKey(it.Owner, it.Name)); err != nil {
			return err
		}
		return tx.Bucket(bucketItems).Delete(idKey(id))
	})
}

// ItemsByOwner walks the owner prefix of the index, which is ordered by name.
func (s *Store) ItemsByOwner(ctx context.Context, owner uuid.UUID) ([]*gamedb.Item, error) {
	var items []*gamedb.Item
	prefix := idKey(owner)
	err := s.bolt.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketOwnerItems).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			id, err := keyToID(v)
			if err != nil {
				return fmt.Errorf("boltstore: bad item index entry: %w", err)
			}
			it, err := getItem(tx, id)
			if err != nil {
				return err
			}
			items = append(items, it)
		}
		return nil
	})
	return items, err
}

// ItemByOwnerName returns the owner's item with the given name.
func (s *Store) ItemByOwnerName(ctx context.Context, owner uuid.UUID, name string) (*gamedb.Item, error) {
	var it *gamedb.Item
	err := s.bolt.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketOwnerItems).Get(ownerItemKey(owner, name))
		if v == nil {
			return store.ErrNotFound
		}
		id, err := keyToID(v)
		if err != nil {
			return fmt.Errorf("boltstore: bad item index entry: %w", err)
		}
		it, err = getItem(tx, id)
		return err
	})
	return it, err
}

// ItemByName scans all items for one with the given name.
func (s *Store) ItemByName(ctx context.Context, name string) (*gamedb.Item, error) {
	var found *gamedb.Item
	err := s.bolt.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketItems).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			it, err := decodeItem(v)
			if err != nil {
				return fmt.Errorf("boltstore: decode item: %w", err)
			}
			if it.Name == name {
				found = it
				return nil
			}
		}
		return store.ErrNotFound
	})
	return found, err
}

func getItem(tx *bbolt.Tx, id uuid.UUID) (*gamedb.Item, error) {
	v := tx.Bucket(bucketItems).Get(idKey(id))
	if v == nil {
		return nil, store.ErrNotFound
	}
	it, err := decodeItem(v)
	if err != nil {
		return nil, fmt.Errorf("boltstore: decode item %s: %w", id, err)
	}
	return it, nil
}
