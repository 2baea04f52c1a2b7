package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/crystal-mush/swordsanddeath/pkg/events"
	"github.com/crystal-mush/swordsanddeath/pkg/game"
	"github.com/crystal-mush/swordsanddeath/pkg/gamedb"
	"github.com/crystal-mush/swordsanddeath/pkg/protocol"
	"github.com/crystal-mush/swordsanddeath/pkg/store"
)

// In-game replies.
const (
	msgQuietPath   = "The path ahead is quiet."
	msgDropForeign = "You can only drop items in your inventory."
	msgViewForeign = "You can only inspect items in your inventory."
	msgWhichItem   = "Which item?"
)

// maxItemName bounds the item name accepted from clients, in bytes.
const maxItemName = 64

// maxNameSuffix bounds the " #n" suffixes tried when an owner already holds
// an item of the generated name.
const maxNameSuffix = 100

// failureReply is sent when a store operation fails.
var failureReply = protocol.ServerError{ErrorData: protocol.ErrorData{Msg: msgServerFailure}}

// Dispatcher resolves in-game client commands against the store.
// Each session owns one; it is not safe for concurrent use.
type Dispatcher struct {
	store store.Store
	bus   *events.Bus
	rng   game.Random
	logID int
}

// NewDispatcher returns a dispatcher drawing step outcomes from rng.
// Resolved game events are published on bus, which may be nil.
func NewDispatcher(st store.Store, bus *events.Bus, rng game.Random) *Dispatcher {
	return &Dispatcher{store: st, bus: bus, rng: rng}
}

// Dispatch resolves ev for player id and returns the reply, or nil when the
// command has none. Keepalive, disconnect and error messages belong to the
// session and yield nil here.
func (d *Dispatcher) Dispatch(ctx context.Context, id uuid.UUID, ev protocol.ClientEvent) protocol.ServerEvent {
	switch m := ev.(type) {
	case protocol.Step:
		return d.step(ctx, id)
	case protocol.OpenInv:
		return d.openInv(ctx, id)
	case protocol.DropItem:
		return d.dropItem(ctx, id, SanitizeItemName(m.Name))
	case protocol.InspectItem:
		return d.inspectItem(ctx, id, SanitizeItemName(m.Name))
	case protocol.Attack, protocol.TryFlee:
		// Reserved for encounters.
		return nil
	default:
		return nil
	}
}

func (d *Dispatcher) step(ctx context.Context, id uuid.UUID) protocol.ServerEvent {
	p, err := d.store.Player(ctx, id)
	if err != nil {
		d.logf("step: load player %s: %v", id, err)
		return failureReply
	}

	res := game.Step(d.rng, p)
	if res.Item != nil {
		if err := d.storeItem(ctx, res.Item); err != nil {
			d.logf("step: store item for %s: %v", id, err)
			return failureReply
		}
	}
	if err := d.store.SavePlayer(ctx, p); err != nil {
		d.logf("step: save player %s: %v", id, err)
		return failureReply
	}

	switch res.Outcome {
	case game.OutcomeExp:
		d.emit(id, events.Event{Type: events.EvExpGain, Amount: res.ExpGained})
		if res.LevelsGained > 0 {
			d.emit(id, events.Event{Type: events.EvLevelUp, Amount: res.LevelsGained,
				Data: map[string]any{"level": p.Level}})
		}
		return protocol.GainExp{Amount: res.ExpGained}
	case game.OutcomeItem:
		d.emit(id, events.Event{Type: events.EvItemFound, Text: res.Item.Name,
			Data: map[string]any{"rarity": res.Item.Rarity.String(), "type": res.Item.Type.String()}})
		return protocol.FindItem{Item: protocol.ViewOf(res.Item)}
	default:
		d.emit(id, events.Event{Type: events.EvEncounter})
		return protocol.Notice{Text: msgQuietPath}
	}
}

// storeItem creates it, appending " #2", " #3", ... to its name while the
// owner already holds an item of that name.
func (d *Dispatcher) storeItem(ctx context.Context, it *gamedb.Item) error {
	base := it.Name
	for n := 2; ; n++ {
		err := d.store.CreateItem(ctx, it)
		if !errors.Is(err, store.ErrItemNameTaken) || n > maxNameSuffix {
			return err
		}
		it.Name = fmt.Sprintf("%s #%d", base, n)
	}
}

func (d *Dispatcher) openInv(ctx context.Context, id uuid.UUID) protocol.ServerEvent {
	items, err := d.store.ItemsByOwner(ctx, id)
	if err != nil {
		d.logf("inventory of %s: %v", id, err)
		return failureReply
	}
	views := make([]protocol.ItemView, len(items))
	for i, it := range items {
		views[i] = protocol.ViewOf(it)
	}
	return protocol.Inventory{Items: views}
}

func (d *Dispatcher) dropItem(ctx context.Context, id uuid.UUID, name string) protocol.ServerEvent {
	it, reply := d.ownedItem(ctx, id, name, msgDropForeign)
	if it == nil {
		return reply
	}
	if err := d.store.DeleteItem(ctx, it.ID); err != nil {
		d.logf("drop %q for %s: %v", name, id, err)
		return failureReply
	}
	d.emit(id, events.Event{Type: events.EvItemDrop, Text: it.Name})
	return protocol.Notice{Text: fmt.Sprintf("You dropped %s.", it.Name)}
}

func (d *Dispatcher) inspectItem(ctx context.Context, id uuid.UUID, name string) protocol.ServerEvent {
	it, reply := d.ownedItem(ctx, id, name, msgViewForeign)
	if it == nil {
		return reply
	}
	return protocol.ShowItem{Item: protocol.ViewOf(it)}
}

// ownedItem finds the item called name held by id. When there is none it
// returns the reply to send instead: foreign if someone else holds an item
// of that name, otherwise a not-found notice.
func (d *Dispatcher) ownedItem(ctx context.Context, id uuid.UUID, name, foreign string) (*gamedb.Item, protocol.ServerEvent) {
	if name == "" {
		return nil, protocol.Notice{Text: msgWhichItem}
	}
	it, err := d.store.ItemByOwnerName(ctx, id, name)
	switch {
	case err == nil && it.Owner == id:
		return it, nil
	case err != nil && !errors.Is(err, store.ErrNotFound):
		d.logf("item %q of %s: %v", name, id, err)
		return nil, failureReply
	}

	other, err := d.store.ItemByName(ctx, name)
	switch {
	case err == nil && other.Owner != id:
		return nil, protocol.Notice{Text: foreign}
	case err != nil && !errors.Is(err, store.ErrNotFound):
		d.logf("item %q: %v", name, err)
		return nil, failureReply
	}
	return nil, notFound(name)
}

func notFound(name string) protocol.ServerEvent {
	return protocol.Notice{Text: fmt.Sprintf("There is no item named %s.", name)}
}

func (d *Dispatcher) emit(id uuid.UUID, ev events.Event) {
	if d.bus != nil {
		d.bus.EmitToPlayer(id, ev)
	}
}

func (d *Dispatcher) logf(format string, args ...any) {
	log.Printf("[%d] "+format, append([]any{d.logID}, args...)...)
}

// SanitizeItemName strips quotes and control characters from a client
// supplied item name, trims surrounding space and bounds its length.
func SanitizeItemName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch {
		case r == '"' || r == '\'' || r == '`':
			return -1
		case unicode.IsControl(r) || r == utf8.RuneError:
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)
	if len(name) > maxItemName {
		cut := maxItemName
		for cut > 0 && !utf8.RuneStart(name[cut]) {
			cut--
		}
		name = strings.TrimSpace(name[:cut])
	}
	return name
}
