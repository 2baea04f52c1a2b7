package redisstore

import (
	"fmt"

	"github.com/google/uuid"
)

// Key prefix for all game data
const keyPrefix = "snd"

// playerKey returns the key of a player record (JSON).
func playerKey(id uuid.UUID) string {
	return fmt.Sprintf("%s:player:%s", keyPrefix, id)
}

// activeKey exists while the player is online.
func activeKey(id uuid.UUID) string {
	return fmt.Sprintf("%s:active:%s", keyPrefix, id)
}

// activePattern matches every activeKey.
func activePattern() string {
	return fmt.Sprintf("%s:active:*", keyPrefix)
}

// usernameIndexKey returns the key of the folded username -> player id index.
func usernameIndexKey(folded string) string {
	return fmt.Sprintf("%s:idx:username:%s", keyPrefix, folded)
}

// itemKey returns the key of an item record (JSON).
func itemKey(id uuid.UUID) string {
	return fmt.Sprintf("%s:item:%s", keyPrefix, id)
}

// ownerItemsKey returns the key of the SET of item ids held by owner.
func ownerItemsKey(owner uuid.UUID) string {
	return fmt.Sprintf("%s:idx:owner_items:%s", keyPrefix, owner)
}

// ownerItemNameKey returns the key of the (owner, name) -> item id index.
func ownerItemNameKey(owner uuid.UUID, name string) string {
	return fmt.Sprintf("%s:idx:owner_item_name:%s:%s", keyPrefix, owner, name)
}

// itemNameKey returns the key of the SET of item ids carrying name.
func itemNameKey(name string) string {
	return fmt.Sprintf("%s:idx:item_name:%s", keyPrefix, name)
}
