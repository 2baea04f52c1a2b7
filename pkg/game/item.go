package game

import (
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/crystal-mush/swordsanddeath/pkg/gamedb"
)

// Item generation parameters.
const (
	itemLevelStdDev = 5.5
	itemStatStdDev  = 2.2
)

// RollItemType picks one of the six item types uniformly.
func RollItemType(r Random) gamedb.ItemType {
	return gamedb.ItemType(r.Intn(gamedb.NumItemTypes))
}

// RollRarity picks a rarity tier: 20% Rare, 15% Epic, 1% Legendary and
// Common otherwise.
func RollRarity(r Random) gamedb.Rarity {
	switch n := r.Intn(100); {
	case n < 20:
		return gamedb.Rare
	case n < 35:
		return gamedb.Epic
	case n >= 99:
		return gamedb.Legendary
	default:
		return gamedb.Common
	}
}

// StatWeight is the mean of the stat distribution for an item of the given
// rarity and level. The level term uses integer division.
func StatWeight(rarity gamedb.Rarity, level uint32) uint32 {
	return rarity.Multiplier() * (level / max(level/2, 1))
}

// RollItemLevel draws an item level around the player's level, never below 1.
func RollItemLevel(r Random, playerLevel uint32) uint32 {
	return sampleAtLeastOne(r, float64(playerLevel), itemLevelStdDev)
}

// RollStat draws the damage or defense value of an item.
func RollStat(r Random, rarity gamedb.Rarity, level uint32) uint32 {
	return sampleAtLeastOne(r, float64(StatWeight(rarity, level)), itemStatStdDev)
}

// GenerateItem creates a random item for owner with the given type and
// rarity, levelled around playerLevel.
func GenerateItem(r Random, owner uuid.UUID, playerLevel uint32, typ gamedb.ItemType, rarity gamedb.Rarity) *gamedb.Item {
	it := &gamedb.Item{
		ID:     uuid.New(),
		Owner:  owner,
		Type:   typ,
		Rarity: rarity,
		Level:  RollItemLevel(r, playerLevel),
	}
	stat := RollStat(r, rarity, it.Level)
	if typ.HasDamage() {
		it.Damage = stat
	} else {
		it.Defense = stat
	}
	it.Name = ItemName(r, typ, rarity)
	return it
}

// RandomItem rolls a type and rarity and generates the item.
func RandomItem(r Random, owner uuid.UUID, playerLevel uint32) *gamedb.Item {
	typ := RollItemType(r)
	rarity := RollRarity(r)
	return GenerateItem(r, owner, playerLevel, typ, rarity)
}

func sampleAtLeastOne(r Random, mean, stddev float64) uint32 {
	v := math.Round(mean + stddev*r.NormFloat64())
	if v < 1 {
		return 1
	}
	if v > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(v)
}

var rarityAdjectives = [gamedb.NumRarities][]string{
	gamedb.Common:    {"Rusty", "Worn", "Plain", "Dented", "Crude"},
	gamedb.Rare:      {"Sturdy", "Polished", "Tempered", "Fine"},
	gamedb.Epic:      {"Gleaming", "Runed", "Valiant", "Stormbound"},
	gamedb.Legendary: {"Ancient", "Mythic", "Dragonforged", "Kingslayer"},
}

var typeMaterials = [gamedb.NumItemTypes][]string{
	gamedb.Sword:      {"Iron", "Bronze", "Steel", "Bone"},
	gamedb.Shield:     {"Oak", "Iron", "Bronze", "Steel"},
	gamedb.Helmet:     {"Leather", "Iron", "Bronze", "Steel"},
	gamedb.Chestplate: {"Leather", "Chainmail", "Iron", "Steel"},
	gamedb.Leggings:   {"Cloth", "Leather", "Chainmail", "Iron"},
	gamedb.Boots:      {"Cloth", "Leather", "Hide", "Iron"},
}

// ItemName builds a display name such as "Rusty Iron Sword".
func ItemName(r Random, typ gamedb.ItemType, rarity gamedb.Rarity) string {
	if !typ.Valid() || !rarity.Valid() {
		return typ.String()
	}
	adj := rarityAdjectives[rarity]
	mat := typeMaterials[typ]
	return fmt.Sprintf("%s %s %s", adj[r.Intn(len(adj))], mat[r.Intn(len(mat))], typ)
}
