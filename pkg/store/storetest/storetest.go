// Package storetest holds behavioural checks shared by every store backend.
package storetest

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/crystal-mush/swordsanddeath/pkg/gamedb"
	"github.com/crystal-mush/swordsanddeath/pkg/store"
)

// Run exercises a backend. newStore must return an empty store; it is
// called once per subtest.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"CreateAndLookup", testCreateAndLookup},
		{"UsernameUnique", testUsernameUnique},
		{"SavePlayer", testSavePlayer},
		{"SetActive", testSetActive},
		{"ResetActive", testResetActive},
		{"Items", testItems},
		{"ItemNameUnique", testItemNameUnique},
		{"DeleteItem", testDeleteItem},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { s.Close() })
			tt.fn(t, s)
		})
	}
}

func mustCreatePlayer(t *testing.T, s store.Store, name string) *gamedb.Player {
	t.Helper()
	p := gamedb.NewPlayer(name, "$2a$10$hash")
	if err := s.CreatePlayer(context.Background(), p); err != nil {
		t.Fatalf("CreatePlayer(%q): %v", name, err)
	}
	return p
}

func mustCreateItem(t *testing.T, s store.Store, owner uuid.UUID, name string, typ gamedb.ItemType) *gamedb.Item {
	t.Helper()
	it := &gamedb.Item{
		ID:     uuid.New(),
		Owner:  owner,
		Name:   name,
		Type:   typ,
		Rarity: gamedb.Epic,
		Level:  4,
	}
	if typ.HasDamage() {
		it.Damage = 9
	} else {
		it.Defense = 7
	}
	if err := s.CreateItem(context.Background(), it); err != nil {
		t.Fatalf("CreateItem(%q): %v", name, err)
	}
	return it
}

func testCreateAndLookup(t *testing.T, s store.Store) {
	ctx := context.Background()
	p := mustCreatePlayer(t, s, "Hero_1")

	got, err := s.Player(ctx, p.ID)
	if err != nil {
		t.Fatalf("Player: %v", err)
	}
	if *got != *p {
		t.Errorf("Player = %+v, want %+v", *got, *p)
	}
	got, err = s.PlayerByUsername(ctx, "hero_1")
	if err != nil {
		t.Fatalf("PlayerByUsername: %v", err)
	}
	if got.ID != p.ID || got.Username != "Hero_1" {
		t.Errorf("PlayerByUsername = %+v", *got)
	}
	if got.Level != gamedb.StartLevel || got.Health != gamedb.StartHealth || got.Region != gamedb.StartRegion {
		t.Errorf("start state not persisted: %+v", *got)
	}

	if _, err := s.Player(ctx, uuid.New()); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Player(unknown) err = %v, want ErrNotFound", err)
	}
	if _, err := s.PlayerByUsername(ctx, "nobody"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("PlayerByUsername(unknown) err = %v, want ErrNotFound", err)
	}
}

func testUsernameUnique(t *testing.T, s store.Store) {
	mustCreatePlayer(t, s, "hero")
	dup := gamedb.NewPlayer("HERO", "x")
	if err := s.CreatePlayer(context.Background(), dup); !errors.Is(err, store.ErrUsernameTaken) {
		t.Fatalf("duplicate CreatePlayer err = %v, want ErrUsernameTaken", err)
	}
	if _, err := s.Player(context.Background(), dup.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("rejected player was stored: %v", err)
	}
}

func testSavePlayer(t *testing.T, s store.Store) {
	ctx := context.Background()
	p := mustCreatePlayer(t, s, "walker")
	if err := s.SetActive(ctx, p.ID, true); err != nil {
		t.Fatal(err)
	}

	p.Level, p.Exp, p.Steps, p.Health, p.Region = 3, 12, 77, 80, "Darkwood"
	p.Password = "changed"
	p.Active = false
	if err := s.SavePlayer(ctx, p); err != nil {
		t.Fatalf("SavePlayer: %v", err)
	}
	got, err := s.Player(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Level != 3 || got.Exp != 12 || got.Steps != 77 || got.Health != 80 || got.Region != "Darkwood" {
		t.Errorf("progress not saved: %+v", *got)
	}
	if got.Password != "$2a$10$hash" {
		t.Errorf("SavePlayer overwrote the password: %q", got.Password)
	}
	if !got.Active {
		t.Error("SavePlayer cleared the active flag")
	}

	ghost := gamedb.NewPlayer("ghost", "x")
	if err := s.SavePlayer(ctx, ghost); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("SavePlayer(unknown) err = %v, want ErrNotFound", err)
	}
}

func testSetActive(t *testing.T, s store.Store) {
	ctx := context.Background()
	p := mustCreatePlayer(t, s, "solo")

	if err := s.SetActive(ctx, p.ID, true); err != nil {
		t.Fatalf("first activation: %v", err)
	}
	if err := s.SetActive(ctx, p.ID, true); !errors.Is(err, store.ErrAlreadyActive) {
		t.Fatalf("second activation err = %v, want ErrAlreadyActive", err)
	}
	if err := s.SetActive(ctx, p.ID, false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if err := s.SetActive(ctx, p.ID, false); err != nil {
		t.Fatalf("deactivate twice: %v", err)
	}
	if err := s.SetActive(ctx, p.ID, true); err != nil {
		t.Fatalf("reactivate: %v", err)
	}
	got, err := s.Player(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Active {
		t.Error("player not active after activation")
	}
	if err := s.SetActive(ctx, uuid.New(), true); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("SetActive(unknown) err = %v, want ErrNotFound", err)
	}
}

func testResetActive(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := mustCreatePlayer(t, s, "alpha")
	b := mustCreatePlayer(t, s, "bravo")
	mustCreatePlayer(t, s, "charlie")
	for _, p := range []*gamedb.Player{a, b} {
		if err := s.SetActive(ctx, p.ID, true); err != nil {
			t.Fatal(err)
		}
	}

	n, err := s.ResetActive(ctx)
	if err != nil {
		t.Fatalf("ResetActive: %v", err)
	}
	if n != 2 {
		t.Errorf("ResetActive = %d, want 2", n)
	}
	for _, p := range []*gamedb.Player{a, b} {
		got, err := s.Player(ctx, p.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.Active {
			t.Errorf("%s still active", got.Username)
		}
	}
	if n, _ := s.ResetActive(ctx); n != 0 {
		t.Errorf("second ResetActive = %d, want 0", n)
	}
}

func testItems(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := mustCreatePlayer(t, s, "owner_a")
	b := mustCreatePlayer(t, s, "owner_b")
	sword := mustCreateItem(t, s, a.ID, "Rusty Iron Sword", gamedb.Sword)
	boots := mustCreateItem(t, s, a.ID, "Boots of Dawn", gamedb.Boots)
	mustCreateItem(t, s, b.ID, "Worn Leather Helmet", gamedb.Helmet)

	got, err := s.Item(ctx, sword.ID)
	if err != nil {
		t.Fatalf("Item: %v", err)
	}
	if *got != *sword {
		t.Errorf("Item = %+v, want %+v", *got, *sword)
	}

	items, err := s.ItemsByOwner(ctx, a.ID)
	if err != nil {
		t.Fatalf("ItemsByOwner: %v", err)
	}
	if len(items) != 2 || items[0].ID != boots.ID || items[1].ID != sword.ID {
		t.Errorf("ItemsByOwner = %v, want [boots sword]", names(items))
	}
	if items, _ := s.ItemsByOwner(ctx, uuid.New()); len(items) != 0 {
		t.Errorf("ItemsByOwner(unknown) = %v", names(items))
	}

	got, err = s.ItemByOwnerName(ctx, a.ID, "Boots of Dawn")
	if err != nil || got.ID != boots.ID {
		t.Errorf("ItemByOwnerName = %v, %v", got, err)
	}
	if _, err := s.ItemByOwnerName(ctx, b.ID, "Boots of Dawn"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("ItemByOwnerName(other owner) err = %v, want ErrNotFound", err)
	}

	got, err = s.ItemByName(ctx, "Worn Leather Helmet")
	if err != nil || got.Owner != b.ID {
		t.Errorf("ItemByName = %v, %v", got, err)
	}
	if _, err := s.ItemByName(ctx, "Excalibur"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("ItemByName(unknown) err = %v, want ErrNotFound", err)
	}
}

func testItemNameUnique(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := mustCreatePlayer(t, s, "owner_a")
	b := mustCreatePlayer(t, s, "owner_b")
	mustCreateItem(t, s, a.ID, "Plain Shield", gamedb.Shield)
	mustCreateItem(t, s, b.ID, "Plain Shield", gamedb.Shield)

	dup := &gamedb.Item{ID: uuid.New(), Owner: a.ID, Name: "Plain Shield", Type: gamedb.Shield, Level: 1, Defense: 1}
	if err := s.CreateItem(ctx, dup); !errors.Is(err, store.ErrItemNameTaken) {
		t.Errorf("duplicate CreateItem err = %v, want ErrItemNameTaken", err)
	}
}

func testDeleteItem(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := mustCreatePlayer(t, s, "dropper")
	it := mustCreateItem(t, s, a.ID, "Old Boots", gamedb.Boots)

	if err := s.DeleteItem(ctx, it.ID); err != nil {
		t.Fatalf("DeleteItem: %v", err)
	}
	if _, err := s.Item(ctx, it.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Item after delete err = %v, want ErrNotFound", err)
	}
	if _, err := s.ItemByOwnerName(ctx, a.ID, "Old Boots"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("name lookup after delete err = %v, want ErrNotFound", err)
	}
	if items, _ := s.ItemsByOwner(ctx, a.ID); len(items) != 0 {
		t.Errorf("ItemsByOwner after delete = %v", names(items))
	}
	if err := s.DeleteItem(ctx, it.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("second DeleteItem err = %v, want ErrNotFound", err)
	}
	// The name can be reused once the item is gone.
	mustCreateItem(t, s, a.ID, "Old Boots", gamedb.Boots)
}

func names(items []*gamedb.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Name
	}
	return out
}
