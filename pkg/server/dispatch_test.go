package server

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/crystal-mush/swordsanddeath/pkg/events"
	"github.com/crystal-mush/swordsanddeath/pkg/gamedb"
	"github.com/crystal-mush/swordsanddeath/pkg/protocol"
	"github.com/crystal-mush/swordsanddeath/pkg/store"
)

// scriptedRandom replays fixed draws; exhausted scripts yield zero.
type scriptedRandom struct {
	ints  []int
	norms []float64
}

func (r *scriptedRandom) Intn(n int) int {
	if len(r.ints) == 0 {
		return 0
	}
	v := r.ints[0]
	r.ints = r.ints[1:]
	return v % n
}

func (r *scriptedRandom) NormFloat64() float64 {
	if len(r.norms) == 0 {
		return 0
	}
	v := r.norms[0]
	r.norms = r.norms[1:]
	return v
}

type dispatchEnv struct {
	st     store.Store
	disp   *Dispatcher
	rng    *scriptedRandom
	player *gamedb.Player
	events []events.Event
}

func newDispatchEnv(t *testing.T) *dispatchEnv {
	t.Helper()
	env := &dispatchEnv{st: store.NewMemory(), rng: &scriptedRandom{}}
	bus := events.NewBus()
	bus.SubscribeGlobal(events.SubscriberFunc(func(ev events.Event) {
		env.events = append(env.events, ev)
	}))
	env.disp = NewDispatcher(env.st, bus, env.rng)
	env.player = gamedb.NewPlayer("eric", "hash")
	if err := env.st.CreatePlayer(context.Background(), env.player); err != nil {
		t.Fatal(err)
	}
	return env
}

func (env *dispatchEnv) dispatch(ev protocol.ClientEvent) protocol.ServerEvent {
	return env.disp.Dispatch(context.Background(), env.player.ID, ev)
}

func (env *dispatchEnv) addItem(t *testing.T, owner uuid.UUID, name string) *gamedb.Item {
	t.Helper()
	it := &gamedb.Item{ID: uuid.New(), Owner: owner, Name: name, Type: gamedb.Shield, Rarity: gamedb.Rare, Level: 2, Defense: 4}
	if err := env.st.CreateItem(context.Background(), it); err != nil {
		t.Fatal(err)
	}
	return it
}

func (env *dispatchEnv) eventTypes() []events.EventType {
	var types []events.EventType
	for _, ev := range env.events {
		types = append(types, ev.Type)
	}
	return types
}

// Draws for a step finding a common level 1 sword named "Rusty Iron Sword".
var findSwordInts = []int{85, 0, 50, 0, 0}

func TestDispatchStepExp(t *testing.T) {
	env := newDispatchEnv(t)
	env.rng.ints = []int{10}
	env.rng.norms = []float64{0}

	got := env.dispatch(protocol.Step{})
	if got != (protocol.GainExp{Amount: 5}) {
		t.Fatalf("reply = %#v, want GainExp 5", got)
	}
	p, err := env.st.Player(context.Background(), env.player.ID)
	if err != nil {
		t.Fatal(err)
	}
	if p.Exp != 5 || p.Steps != 1 || p.Level != 1 {
		t.Errorf("player = level %d exp %d steps %d", p.Level, p.Exp, p.Steps)
	}
	if types := env.eventTypes(); len(types) != 1 || types[0] != events.EvExpGain {
		t.Errorf("events = %v", types)
	}
}

func TestDispatchStepLevelUp(t *testing.T) {
	env := newDispatchEnv(t)
	env.player.Exp = 23
	if err := env.st.SavePlayer(context.Background(), env.player); err != nil {
		t.Fatal(err)
	}
	env.rng.ints = []int{0}
	env.rng.norms = []float64{0} // gain 5: 28 >= 25

	env.dispatch(protocol.Step{})
	p, _ := env.st.Player(context.Background(), env.player.ID)
	if p.Level != 2 || p.Exp != 3 {
		t.Errorf("player = level %d exp %d, want level 2 exp 3", p.Level, p.Exp)
	}
	types := env.eventTypes()
	if len(types) != 2 || types[1] != events.EvLevelUp {
		t.Errorf("events = %v, want exp gain then level up", types)
	}
}

func TestDispatchStepFindsItem(t *testing.T) {
	env := newDispatchEnv(t)
	env.rng.ints = append([]int(nil), findSwordInts...)

	got, ok := env.dispatch(protocol.Step{}).(protocol.FindItem)
	if !ok {
		t.Fatalf("reply is not FindItem")
	}
	want := protocol.ItemView{Name: "Rusty Iron Sword", Type: gamedb.Sword, Rarity: gamedb.Common, Level: 1, Damage: 1}
	if got.Item != want {
		t.Errorf("item = %+v, want %+v", got.Item, want)
	}
	items, err := env.st.ItemsByOwner(context.Background(), env.player.ID)
	if err != nil || len(items) != 1 {
		t.Fatalf("stored items = %v, %v", items, err)
	}

	// The same roll again is disambiguated.
	env.rng.ints = append([]int(nil), findSwordInts...)
	got, _ = env.dispatch(protocol.Step{}).(protocol.FindItem)
	if got.Item.Name != "Rusty Iron Sword #2" {
		t.Errorf("second name = %q", got.Item.Name)
	}
}

func TestDispatchStepEncounter(t *testing.T) {
	env := newDispatchEnv(t)
	env.rng.ints = []int{95}

	got := env.dispatch(protocol.Step{})
	if got != (protocol.Notice{Text: msgQuietPath}) {
		t.Fatalf("reply = %#v", got)
	}
	p, _ := env.st.Player(context.Background(), env.player.ID)
	if p.Steps != 1 {
		t.Errorf("steps = %d, want 1", p.Steps)
	}
}

func TestDispatchInventory(t *testing.T) {
	env := newDispatchEnv(t)
	env.addItem(t, env.player.ID, "Oak Shield")
	env.addItem(t, env.player.ID, "Fine Iron Helmet")
	env.addItem(t, uuid.New(), "Someone Else's Boots")

	inv, ok := env.dispatch(protocol.OpenInv{}).(protocol.Inventory)
	if !ok {
		t.Fatal("reply is not Inventory")
	}
	if len(inv.Items) != 2 || inv.Items[0].Name != "Fine Iron Helmet" || inv.Items[1].Name != "Oak Shield" {
		t.Errorf("inventory = %+v", inv.Items)
	}
}

func TestDispatchDropAndInspect(t *testing.T) {
	env := newDispatchEnv(t)
	mine := env.addItem(t, env.player.ID, "Oak Shield")
	env.addItem(t, uuid.New(), "Rusty Sword")

	tests := []struct {
		name string
		ev   protocol.ClientEvent
		want protocol.ServerEvent
	}{
		{"inspect own", protocol.InspectItem{Name: "Oak Shield"}, protocol.ShowItem{Item: protocol.ViewOf(mine)}},
		{"inspect quoted", protocol.InspectItem{Name: ` "Oak Shield" `}, protocol.ShowItem{Item: protocol.ViewOf(mine)}},
		{"inspect foreign", protocol.InspectItem{Name: "Rusty Sword"}, protocol.Notice{Text: msgViewForeign}},
		{"inspect missing", protocol.InspectItem{Name: "Nothing"}, protocol.Notice{Text: "There is no item named Nothing."}},
		{"drop foreign", protocol.DropItem{Name: "Rusty Sword"}, protocol.Notice{Text: msgDropForeign}},
		{"drop missing", protocol.DropItem{Name: "Nothing"}, protocol.Notice{Text: "There is no item named Nothing."}},
		{"drop own", protocol.DropItem{Name: "Oak Shield"}, protocol.Notice{Text: "You dropped Oak Shield."}},
		{"drop again", protocol.DropItem{Name: "Oak Shield"}, protocol.Notice{Text: "There is no item named Oak Shield."}},
		{"drop empty", protocol.DropItem{Name: ""}, protocol.Notice{Text: msgWhichItem}},
		{"inspect only quotes", protocol.InspectItem{Name: ` "" `}, protocol.Notice{Text: msgWhichItem}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := env.dispatch(tt.ev); got != tt.want {
				t.Errorf("reply = %#v, want %#v", got, tt.want)
			}
		})
	}
	if _, err := env.st.ItemByName(context.Background(), "Rusty Sword"); err != nil {
		t.Errorf("foreign item was removed: %v", err)
	}
}

func TestDispatchReservedCommands(t *testing.T) {
	env := newDispatchEnv(t)
	for _, ev := range []protocol.ClientEvent{protocol.Attack{}, protocol.TryFlee{}, protocol.ClientKeepAlive{Time: 1}} {
		if got := env.dispatch(ev); got != nil {
			t.Errorf("%T reply = %#v, want nil", ev, got)
		}
	}
}

func TestDispatchStoreFailure(t *testing.T) {
	env := newDispatchEnv(t)
	got := env.disp.Dispatch(context.Background(), uuid.New(), protocol.Step{})
	if got != failureReply {
		t.Errorf("reply = %#v, want generic failure", got)
	}
}

func TestSanitizeItemName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Oak Shield", "Oak Shield"},
		{`  "Oak Shield"  `, "Oak Shield"},
		{"Oak\x00 Shield\n", "Oak Shield"},
		{"'Oak' `Shield`", "Oak Shield"},
		{"\t\r\n", ""},
		{strings.Repeat("x", 100), strings.Repeat("x", maxItemName)},
		{strings.Repeat("é", 40), strings.Repeat("é", 32)},
	}
	for _, tt := range tests {
		if got := SanitizeItemName(tt.in); got != tt.want {
			t.Errorf("SanitizeItemName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
