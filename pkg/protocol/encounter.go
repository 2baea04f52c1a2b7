package protocol

import (
	"fmt"
)

// Enemy describes the opponent of an encounter.
type Enemy struct {
	Name   string
	Race   string
	Level  uint32
	Health uint32
}

// EncounterOutcome is one of EncounterAttack, EncounterFlee, EncounterWin
// or EncounterLost.
type EncounterOutcome interface {
	encounterOutcome()
}

// EncounterAttack reports damage dealt by the enemy.
type EncounterAttack struct{ Damage uint32 }

// EncounterFlee reports whether an escape attempt succeeded.
type EncounterFlee struct{ Escaped bool }

// EncounterWin reports the loot of a won fight.
type EncounterWin struct {
	Items []ItemView
	Exp   uint32
}

// EncounterLost reports a lost fight.
type EncounterLost struct{}

func (EncounterAttack) encounterOutcome() {}
func (EncounterFlee) encounterOutcome()   {}
func (EncounterWin) encounterOutcome()    {}
func (EncounterLost) encounterOutcome()   {}

// EncounterData is the payload of the Encounter server event.
type EncounterData struct {
	Enemy   Enemy
	Outcome EncounterOutcome
}

func (d EncounterData) appendTo(b []byte) ([]byte, error) {
	var enemy []byte
	enemy = appendString(enemy, 1, d.Enemy.Name)
	enemy = appendString(enemy, 2, d.Enemy.Race)
	enemy = appendUint(enemy, 3, uint64(d.Enemy.Level))
	enemy = appendUint(enemy, 4, uint64(d.Enemy.Health))
	b = appendMessage(b, 1, enemy)

	switch o := d.Outcome.(type) {
	case EncounterAttack:
		b = appendUint(b, 2, uint64(o.Damage))
	case EncounterFlee:
		b = appendBool(b, 3, o.Escaped)
	case EncounterWin:
		var win []byte
		for _, it := range o.Items {
			item, err := it.appendTo(nil)
			if err != nil {
				return nil, err
			}
			win = appendMessage(win, 1, item)
		}
		win = appendUint(win, 2, uint64(o.Exp))
		b = appendMessage(b, 4, win)
	case EncounterLost:
		b = appendUnit(b, 5)
	default:
		return nil, fmt.Errorf("protocol: encounter with outcome %T", d.Outcome)
	}
	return b, nil
}

func decodeEncounter(f field) (EncounterData, error) {
	var d EncounterData
	fields, err := f.message()
	if err != nil {
		return d, err
	}
	var outcomes int
	for _, sub := range fields {
		switch sub.num {
		case 1:
			d.Enemy, err = decodeEnemy(sub)
		case 2:
			var dmg uint32
			dmg, err = sub.uint32()
			d.Outcome = EncounterAttack{Damage: dmg}
			outcomes++
		case 3:
			var escaped bool
			escaped, err = sub.bool()
			d.Outcome = EncounterFlee{Escaped: escaped}
			outcomes++
		case 4:
			var win EncounterWin
			win, err = decodeWin(sub)
			d.Outcome = win
			outcomes++
		case 5:
			err = sub.unit()
			d.Outcome = EncounterLost{}
			outcomes++
		}
		if err != nil {
			return d, fmt.Errorf("encounter: %w", err)
		}
	}
	switch {
	case outcomes == 0:
		return d, &DecodeError{Kind: ErrKindMissingVariant, Family: FamilyServerEvent, Field: 6}
	case outcomes > 1:
		return d, &DecodeError{Kind: ErrKindMultipleVariants, Family: FamilyServerEvent, Field: 6}
	}
	return d, nil
}

func decodeEnemy(f field) (Enemy, error) {
	var e Enemy
	fields, err := f.message()
	if err != nil {
		return e, err
	}
	for _, sub := range fields {
		switch sub.num {
		case 1:
			e.Name, err = sub.string()
		case 2:
			e.Race, err = sub.string()
		case 3:
			e.Level, err = sub.uint32()
		case 4:
			e.Health, err = sub.uint32()
		}
		if err != nil {
			return e, fmt.Errorf("enemy: %w", err)
		}
	}
	return e, nil
}

func decodeWin(f field) (EncounterWin, error) {
	var w EncounterWin
	fields, err := f.message()
	if err != nil {
		return w, err
	}
	for _, sub := range fields {
		switch sub.num {
		case 1:
			var it ItemView
			it, err = decodeItemView(sub)
			w.Items = append(w.Items, it)
		case 2:
			w.Exp, err = sub.uint32()
		}
		if err != nil {
			return w, fmt.Errorf("loot: %w", err)
		}
	}
	return w, nil
}
