package server

import (
	"log"

	"github.com/crystal-mush/swordsanddeath/pkg/events"
)

// logEvent writes notable game events to the server log.
func logEvent(ev events.Event) {
	switch ev.Type {
	case events.EvLevelUp:
		log.Printf("Player %s gained %d level(s), now level %v", ev.Player, ev.Amount, ev.Data["level"])
	case events.EvItemFound:
		log.Printf("Player %s found %s (%v %v)", ev.Player, ev.Text, ev.Data["rarity"], ev.Data["type"])
	case events.EvItemDrop:
		log.Printf("Player %s dropped %s", ev.Player, ev.Text)
	}
}
