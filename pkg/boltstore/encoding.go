package boltstore

import (
	"bytes"
	"encoding/gob"

	"github.com/crystal-mush/swordsanddeath/pkg/gamedb"
)

// encodePlayer serializes a Player to bytes using gob.
func encodePlayer(p *gamedb.Player) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(p); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodePlayer deserializes bytes back into a Player.
func decodePlayer(data []byte) (*gamedb.Player, error) {
	var p gamedb.Player
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// encodeItem serializes an Item to bytes using gob.
func encodeItem(it *gamedb.Item) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(it); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeItem deserializes bytes back into an Item.
func decodeItem(data []byte) (*gamedb.Item, error) {
	var it gamedb.Item
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&it); err != nil {
		return nil, err
	}
	return &it, nil
}
