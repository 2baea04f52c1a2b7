package gamedb

import (
	"fmt"

	"github.com/google/uuid"
)

// Defaults applied to freshly signed-up players.
const (
	StartLevel  uint32 = 1
	StartHealth uint32 = 100
	StartRegion        = "Plains of Arenlok"
)

// ItemType is the equipment slot of an item. The numeric values are part of
// the wire protocol.
type ItemType uint32

const (
	Sword      ItemType = 0
	Shield     ItemType = 1
	Helmet     ItemType = 2
	Chestplate ItemType = 3
	Leggings   ItemType = 4
	Boots      ItemType = 5
)

// NumItemTypes is the number of defined item types.
const NumItemTypes = 6

func (t ItemType) String() string {
	switch t {
	case Sword:
		return "Sword"
	case Shield:
		return "Shield"
	case Helmet:
		return "Helmet"
	case Chestplate:
		return "Chestplate"
	case Leggings:
		return "Leggings"
	case Boots:
		return "Boots"
	default:
		return fmt.Sprintf("ItemType(%d)", uint32(t))
	}
}

// Valid reports whether t is one of the defined item types.
func (t ItemType) Valid() bool { return t < NumItemTypes }

// HasDamage reports whether items of this type carry a damage stat.
// Every other type carries defense.
func (t ItemType) HasDamage() bool { return t == Sword }

// Rarity is an ordinal quality tier; higher tiers weight stats upward.
type Rarity uint32

const (
	Common    Rarity = 0
	Rare      Rarity = 1
	Epic      Rarity = 2
	Legendary Rarity = 3
)

// NumRarities is the number of defined rarity tiers.
const NumRarities = 4

func (r Rarity) String() string {
	switch r {
	case Common:
		return "Common"
	case Rare:
		return "Rare"
	case Epic:
		return "Epic"
	case Legendary:
		return "Legendary"
	default:
		return fmt.Sprintf("Rarity(%d)", uint32(r))
	}
}

// Valid reports whether r is one of the defined rarities.
func (r Rarity) Valid() bool { return r < NumRarities }

// Multiplier returns the stat weighting for the rarity tier.
func (r Rarity) Multiplier() uint32 {
	switch r {
	case Rare:
		return 2
	case Epic:
		return 5
	case Legendary:
		return 10
	default:
		return 1
	}
}

// Player is the persistent record of a registered player.
type Player struct {
	ID       uuid.UUID
	Username string
	Password string // bcrypt hash
	Level    uint32
	Exp      uint32
	Steps    uint32
	Health   uint32
	Region   string
	Active   bool
}

// NewPlayer returns a level 1 player with a fresh identity.
func NewPlayer(username, passwordHash string) *Player {
	return &Player{
		ID:       uuid.New(),
		Username: username,
		Password: passwordHash,
		Level:    StartLevel,
		Health:   StartHealth,
		Region:   StartRegion,
	}
}

// Item is a piece of equipment owned by exactly one player.
// Only one of Damage/Defense is meaningful, selected by Type.
type Item struct {
	ID      uuid.UUID
	Owner   uuid.UUID
	Name    string
	Type    ItemType
	Rarity  Rarity
	Level   uint32
	Damage  uint32
	Defense uint32
}

// Stat returns the item's meaningful stat (damage for swords, defense otherwise).
func (it *Item) Stat() uint32 {
	if it.Type.HasDamage() {
		return it.Damage
	}
	return it.Defense
}
