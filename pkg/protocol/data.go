package protocol

import (
	"fmt"

	"github.com/crystal-mush/swordsanddeath/pkg/gamedb"
)

// ItemView is the client-visible form of an item.
type ItemView struct {
	Name    string
	Type    gamedb.ItemType
	Rarity  gamedb.Rarity
	Level   uint32
	Damage  uint32
	Defense uint32
}

// ViewOf returns the view of a stored item.
func ViewOf(it *gamedb.Item) ItemView {
	return ItemView{
		Name:    it.Name,
		Type:    it.Type,
		Rarity:  it.Rarity,
		Level:   it.Level,
		Damage:  it.Damage,
		Defense: it.Defense,
	}
}

func (v ItemView) appendTo(b []byte) ([]byte, error) {
	if !v.Type.Valid() {
		return nil, fmt.Errorf("protocol: item %q: invalid item type %d", v.Name, uint32(v.Type))
	}
	if !v.Rarity.Valid() {
		return nil, fmt.Errorf("protocol: item %q: invalid rarity %d", v.Name, uint32(v.Rarity))
	}
	b = appendString(b, 1, v.Name)
	b = appendUint(b, 2, uint64(v.Type))
	b = appendUint(b, 3, uint64(v.Rarity))
	b = appendUint(b, 4, uint64(v.Level))
	b = appendUint(b, 5, uint64(v.Damage))
	b = appendUint(b, 6, uint64(v.Defense))
	return b, nil
}

func decodeItemView(f field) (ItemView, error) {
	var v ItemView
	fields, err := f.message()
	if err != nil {
		return v, err
	}
	for _, sub := range fields {
		var u uint32
		switch sub.num {
		case 1:
			v.Name, err = sub.string()
		case 2:
			u, err = sub.uint32()
			v.Type = gamedb.ItemType(u)
			if err == nil && !v.Type.Valid() {
				err = fmt.Errorf("item type %d out of range", u)
			}
		case 3:
			u, err = sub.uint32()
			v.Rarity = gamedb.Rarity(u)
			if err == nil && !v.Rarity.Valid() {
				err = fmt.Errorf("rarity %d out of range", u)
			}
		case 4:
			v.Level, err = sub.uint32()
		case 5:
			v.Damage, err = sub.uint32()
		case 6:
			v.Defense, err = sub.uint32()
		}
		if err != nil {
			return v, fmt.Errorf("item view: %w", err)
		}
	}
	return v, nil
}

// PlayerSnapshot is the client-visible state of the logged in player.
type PlayerSnapshot struct {
	Level  uint32
	Exp    uint32
	Region string
	Steps  uint32
	Health uint32
}

// SnapshotOf returns the snapshot of a stored player.
func SnapshotOf(p *gamedb.Player) PlayerSnapshot {
	return PlayerSnapshot{
		Level:  p.Level,
		Exp:    p.Exp,
		Region: p.Region,
		Steps:  p.Steps,
		Health: p.Health,
	}
}

func (s PlayerSnapshot) appendTo(b []byte) []byte {
	b = appendUint(b, 1, uint64(s.Level))
	b = appendUint(b, 2, uint64(s.Exp))
	b = appendString(b, 3, s.Region)
	b = appendUint(b, 4, uint64(s.Steps))
	b = appendUint(b, 5, uint64(s.Health))
	return b
}

func decodeSnapshot(f field) (PlayerSnapshot, error) {
	var s PlayerSnapshot
	fields, err := f.message()
	if err != nil {
		return s, err
	}
	for _, sub := range fields {
		switch sub.num {
		case 1:
			s.Level, err = sub.uint32()
		case 2:
			s.Exp, err = sub.uint32()
		case 3:
			s.Region, err = sub.string()
		case 4:
			s.Steps, err = sub.uint32()
		case 5:
			s.Health, err = sub.uint32()
		}
		if err != nil {
			return s, fmt.Errorf("player snapshot: %w", err)
		}
	}
	return s, nil
}

// ErrorData carries an error notice in either direction. Disconnect asks
// the receiver to close the session.
type ErrorData struct {
	Msg        string
	Disconnect bool
}

func (e ErrorData) appendTo(b []byte) []byte {
	b = appendString(b, 1, e.Msg)
	return appendBool(b, 2, e.Disconnect)
}

func decodeErrorData(f field) (ErrorData, error) {
	var e ErrorData
	fields, err := f.message()
	if err != nil {
		return e, err
	}
	for _, sub := range fields {
		switch sub.num {
		case 1:
			e.Msg, err = sub.string()
		case 2:
			e.Disconnect, err = sub.bool()
		}
		if err != nil {
			return e, fmt.Errorf("error data: %w", err)
		}
	}
	return e, nil
}
