package events

import "github.com/google/uuid"

// EventType classifies game events.
type EventType int

const (
	EvLogin     EventType = iota // Player entered the game
	EvLogout                     // Player session ended
	EvSignup                     // New player created
	EvExpGain                    // Experience gained on a step
	EvLevelUp                    // Player advanced one or more levels
	EvItemFound                  // Item discovered on a step
	EvItemDrop                   // Item dropped (destroyed)
	EvEncounter                  // Step landed in the encounter band
	EvKeepAlive                  // Keepalive round trip completed
)

// String returns a human-readable name for the event type.
func (t EventType) String() string {
	switch t {
	case EvLogin:
		return "login"
	case EvLogout:
		return "logout"
	case EvSignup:
		return "signup"
	case EvExpGain:
		return "exp_gain"
	case EvLevelUp:
		return "level_up"
	case EvItemFound:
		return "item_found"
	case EvItemDrop:
		return "item_drop"
	case EvEncounter:
		return "encounter"
	case EvKeepAlive:
		return "keepalive"
	default:
		return "unknown"
	}
}

// Event is a resolved game event that flows through the event bus.
// Subscribers (metrics, logging) decide what to do with each event.
type Event struct {
	Type   EventType
	Player uuid.UUID      // Player the event happened to
	Amount uint32         // Exp gained, levels gained, or latency in seconds
	Text   string         // Item name or other detail
	Data   map[string]any // Extra structured data
}
