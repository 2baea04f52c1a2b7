package client

import (
	"fmt"
	"strings"

	"github.com/crystal-mush/swordsanddeath/pkg/protocol"
)

// ParseCommand turns a line typed by the player into a client event.
func ParseCommand(line string) (protocol.ClientEvent, error) {
	verb, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg = strings.TrimSpace(arg)
	switch strings.ToLower(verb) {
	case "step", "s":
		return protocol.Step{}, nil
	case "inv", "inventory", "i":
		return protocol.OpenInv{}, nil
	case "drop":
		if arg == "" {
			return nil, fmt.Errorf("usage: drop <item name>")
		}
		return protocol.DropItem{Name: arg}, nil
	case "inspect", "look":
		if arg == "" {
			return nil, fmt.Errorf("usage: inspect <item name>")
		}
		return protocol.InspectItem{Name: arg}, nil
	case "attack":
		return protocol.Attack{}, nil
	case "flee":
		return protocol.TryFlee{}, nil
	case "quit", "exit":
		return protocol.ClientDisconnect{}, nil
	case "":
		return nil, fmt.Errorf("empty command")
	default:
		return nil, fmt.Errorf("unknown command %q", verb)
	}
}

// FormatEvent renders a server event as text for a terminal. Keepalives
// render as an empty string.
func FormatEvent(ev protocol.ServerEvent) string {
	switch m := ev.(type) {
	case protocol.ServerDisconnect:
		return "Disconnected."
	case protocol.ServerKeepAlive:
		return ""
	case protocol.Notice:
		return m.Text
	case protocol.GainExp:
		return fmt.Sprintf("You gained %d exp.", m.Amount)
	case protocol.FindItem:
		return "You found " + FormatItem(m.Item) + "."
	case protocol.Encounter:
		return "Something stirs nearby."
	case protocol.Update:
		p := m.Player
		return fmt.Sprintf("Level %d (%d exp), %d HP, %d steps, %s", p.Level, p.Exp, p.Health, p.Steps, p.Region)
	case protocol.Inventory:
		if len(m.Items) == 0 {
			return "Your inventory is empty."
		}
		lines := make([]string, len(m.Items))
		for i, it := range m.Items {
			lines[i] = "  " + FormatItem(it)
		}
		return "Inventory:\n" + strings.Join(lines, "\n")
	case protocol.ShowItem:
		return FormatItem(m.Item)
	case protocol.ServerError:
		return "Error: " + m.Msg
	default:
		return fmt.Sprintf("%#v", ev)
	}
}

// FormatItem renders an item with its stats.
func FormatItem(it protocol.ItemView) string {
	stat := fmt.Sprintf("%d defense", it.Defense)
	if it.Type.HasDamage() {
		stat = fmt.Sprintf("%d damage", it.Damage)
	}
	return fmt.Sprintf("%s [%s %s, level %d, %s]", it.Name, it.Rarity, it.Type, it.Level, stat)
}
