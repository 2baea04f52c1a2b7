package events

import (
	"sync"
	"testing"

	"github.com/google/uuid"
)

// mockSubscriber implements Subscriber for testing.
type mockSubscriber struct {
	mu       sync.Mutex
	events   []Event
	isClosed bool
}

func (m *mockSubscriber) Receive(ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
}

func (m *mockSubscriber) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isClosed
}

func (m *mockSubscriber) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]Event, len(m.events))
	copy(cp, m.events)
	return cp
}

func TestBusEmitToPlayer(t *testing.T) {
	bus := NewBus()
	sub := &mockSubscriber{}

	player := uuid.New()
	bus.Subscribe(player, sub)

	bus.EmitToPlayer(player, Event{Type: EvExpGain, Amount: 7})

	events := sub.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Amount != 7 {
		t.Errorf("expected amount 7, got %d", events[0].Amount)
	}
	if events[0].Player != player {
		t.Errorf("expected player %s, got %s", player, events[0].Player)
	}
}

func TestBusOtherPlayerNotDelivered(t *testing.T) {
	bus := NewBus()
	sub := &mockSubscriber{}
	bus.Subscribe(uuid.New(), sub)

	bus.Emit(Event{Type: EvExpGain, Player: uuid.New(), Amount: 3})

	if len(sub.Events()) != 0 {
		t.Error("subscriber received another player's event")
	}
}

func TestBusGlobalSubscriber(t *testing.T) {
	bus := NewBus()
	global := &mockSubscriber{}
	bus.SubscribeGlobal(global)

	ev := Event{Type: EvItemFound, Player: uuid.New(), Text: "Rusty Iron Sword"}
	bus.Emit(ev)

	events := global.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 global event, got %d", len(events))
	}
	if events[0].Text != "Rusty Iron Sword" {
		t.Errorf("expected text %q, got %q", "Rusty Iron Sword", events[0].Text)
	}
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus()
	sub := &mockSubscriber{}
	player := uuid.New()

	bus.Subscribe(player, sub)
	bus.Unsubscribe(player, sub)

	bus.Emit(Event{Type: EvLogin, Player: player})

	if len(sub.Events()) != 0 {
		t.Error("expected no events after unsubscribe")
	}
	if n := len(bus.subscribers[player]); n != 0 {
		t.Errorf("expected no subscribers, got %d", n)
	}
}

func TestBusClosedSubscriberSkipped(t *testing.T) {
	bus := NewBus()
	sub := &mockSubscriber{isClosed: true}
	player := uuid.New()

	bus.Subscribe(player, sub)
	bus.Emit(Event{Type: EvLogin, Player: player})

	if len(sub.Events()) != 0 {
		t.Error("closed subscriber should not receive events")
	}
}

func TestBusCleanup(t *testing.T) {
	bus := NewBus()
	active := &mockSubscriber{}
	closed := &mockSubscriber{isClosed: true}
	player := uuid.New()

	bus.Subscribe(player, active)
	bus.Subscribe(player, closed)
	bus.SubscribeGlobal(&mockSubscriber{isClosed: true})

	bus.Cleanup()

	if n := len(bus.subscribers[player]); n != 1 {
		t.Errorf("expected 1 active subscriber, got %d", n)
	}
	if len(bus.global) != 0 {
		t.Errorf("expected closed global subscriber removed, got %d", len(bus.global))
	}
}

func TestSubscriberFunc(t *testing.T) {
	bus := NewBus()
	var got []EventType
	bus.SubscribeGlobal(SubscriberFunc(func(ev Event) { got = append(got, ev.Type) }))

	bus.Emit(Event{Type: EvLevelUp})
	bus.Emit(Event{Type: EvItemDrop})

	if len(got) != 2 || got[0] != EvLevelUp || got[1] != EvItemDrop {
		t.Errorf("got %v", got)
	}
}

func TestEventTypeString(t *testing.T) {
	tests := []struct {
		t    EventType
		want string
	}{
		{EvLogin, "login"},
		{EvExpGain, "exp_gain"},
		{EvLevelUp, "level_up"},
		{EvItemFound, "item_found"},
		{EventType(999), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.t.String(); got != tt.want {
			t.Errorf("EventType(%d).String() = %q, want %q", tt.t, got, tt.want)
		}
	}
}
