package boltstore

import (
	"encoding/binary"

	"github.com/google/uuid"
)

// Bucket name constants for bbolt storage.
var (
	bucketMeta       = []byte("meta")
	bucketPlayers    = []byte("players")
	bucketUsernames  = []byte("usernames")
	bucketItems      = []byte("items")
	bucketOwnerItems = []byte("owneritems")
)

// Meta key constants.
var (
	keySchema = []byte("schema")
)

const schemaVersion = 1

// idKey returns the 16 raw bytes of id.
func idKey(id uuid.UUID) []byte {
	return id[:]
}

// keyToID converts a 16-byte key back to a UUID.
func keyToID(b []byte) (uuid.UUID, error) {
	return uuid.FromBytes(b)
}

// ownerItemKey is the owner id followed by the item name, so a cursor over
// the owner prefix yields that owner's items ordered by name.
func ownerItemKey(owner uuid.UUID, name string) []byte {
	buf := make([]byte, 0, len(owner)+len(name))
	buf = append(buf, owner[:]...)
	return append(buf, name...)
}

// intToKey converts an int to an 8-byte big-endian key.
func intToKey(n int) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(n))
	return buf
}

// keyToInt converts an 8-byte big-endian key back to an int.
func keyToInt(b []byte) int {
	if len(b) != 8 {
		return 0
	}
	return int(binary.BigEndian.Uint64(b))
}
