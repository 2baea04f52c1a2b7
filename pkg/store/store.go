// Package store defines the persistence gateway for players and items.
//
// Backends live in their own packages (boltstore, sqlstore, redisstore).
// Sessions share one Store; wrap it with NewLocked so that every operation
// runs under a single process-wide lock.
package store

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/cases"

	"github.com/crystal-mush/swordsanddeath/pkg/gamedb"
)

var (
	// ErrNotFound is returned when a player or item does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrUsernameTaken is returned by CreatePlayer for a duplicate username.
	ErrUsernameTaken = errors.New("store: username taken")
	// ErrAlreadyActive is returned by SetActive when activating a player
	// that is already active.
	ErrAlreadyActive = errors.New("store: player already active")
	// ErrItemNameTaken is returned by CreateItem when the owner already
	// holds an item of the same name.
	ErrItemNameTaken = errors.New("store: item name taken")
)

// PlayerRepo persists player records.
type PlayerRepo interface {
	// CreatePlayer inserts a new player. Usernames are unique under
	// UsernameKey.
	CreatePlayer(ctx context.Context, p *gamedb.Player) error
	Player(ctx context.Context, id uuid.UUID) (*gamedb.Player, error)
	PlayerByUsername(ctx context.Context, username string) (*gamedb.Player, error)
	// SavePlayer writes the progress fields (level, exp, steps, health,
	// region). Credentials and the active flag are left untouched.
	SavePlayer(ctx context.Context, p *gamedb.Player) error
	// SetActive sets the active flag. Activating an active player fails
	// with ErrAlreadyActive and changes nothing.
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	// ResetActive clears every active flag and returns how many were set.
	ResetActive(ctx context.Context) (int, error)
}

// ItemRepo persists item records.
type ItemRepo interface {
	CreateItem(ctx context.Context, it *gamedb.Item) error
	Item(ctx context.Context, id uuid.UUID) (*gamedb.Item, error)
	DeleteItem(ctx context.Context, id uuid.UUID) error
	// ItemsByOwner returns the owner's items ordered by name.
	ItemsByOwner(ctx context.Context, owner uuid.UUID) ([]*gamedb.Item, error)
	ItemByOwnerName(ctx context.Context, owner uuid.UUID, name string) (*gamedb.Item, error)
	// ItemByName returns any item with the given name, whoever owns it.
	ItemByName(ctx context.Context, name string) (*gamedb.Item, error)
}

// Store is the full persistence gateway.
type Store interface {
	PlayerRepo
	ItemRepo
	Close() error
}

// UsernameKey returns the case-folded form under which usernames are unique.
func UsernameKey(username string) string {
	return cases.Fold().String(strings.TrimSpace(username))
}
