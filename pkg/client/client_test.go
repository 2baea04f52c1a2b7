package client

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/crystal-mush/swordsanddeath/pkg/gamedb"
	"github.com/crystal-mush/swordsanddeath/pkg/protocol"
	"github.com/crystal-mush/swordsanddeath/pkg/server"
	"github.com/crystal-mush/swordsanddeath/pkg/store"
)

func startServer(t *testing.T, keepalive time.Duration) string {
	t.Helper()
	cfg := server.DefaultConfig()
	cfg.BcryptCost = bcrypt.MinCost
	cfg.KeepaliveInterval = keepalive
	cfg.KeepaliveCheck = 10 * time.Millisecond
	cfg.WriteTimeout = time.Second
	s := server.NewServer(store.NewMemory(), cfg)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go s.Serve(ctx, ln)
	t.Cleanup(func() {
		cancel()
		s.Wait()
	})
	return ln.Addr().String()
}

func dial(t *testing.T, addr string) *Client {
	t.Helper()
	c, err := Dial(addr, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestPing(t *testing.T) {
	addr := startServer(t, time.Hour)

	v, err := dial(t, addr).Ping(server.AcceptedClientVersion)
	if err != nil || v != server.Version {
		t.Errorf("Ping = %q, %v", v, err)
	}

	_, err = dial(t, addr).Ping("9.9.9")
	var rej *RejectedError
	if !errors.As(err, &rej) || rej.Msg != "Invalid version: 9.9.9" {
		t.Errorf("Ping old version err = %v", err)
	}
}

func TestLoginAndPlay(t *testing.T) {
	addr := startServer(t, time.Hour)

	c := dial(t, addr)
	motd, err := c.Login("eric", "abcd", true, server.AcceptedClientVersion)
	if err != nil || motd != server.DefaultMotd {
		t.Fatalf("Login = %q, %v", motd, err)
	}
	ev, err := c.Next()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := ev.(protocol.Update); !ok {
		t.Fatalf("first event = %#v", ev)
	}

	if err := c.Send(protocol.Step{}); err != nil {
		t.Fatal(err)
	}
	if ev, err = c.Next(); err != nil {
		t.Fatal(err)
	}
	switch ev.(type) {
	case protocol.GainExp, protocol.FindItem, protocol.Notice:
	default:
		t.Errorf("step reply = %#v", ev)
	}

	// A second login is refused while the first is online.
	_, err = dial(t, addr).Login("eric", "abcd", false, server.AcceptedClientVersion)
	var rej *RejectedError
	if !errors.As(err, &rej) || rej.Msg != "That player is already online." {
		t.Errorf("second login err = %v", err)
	}
}

func TestNextAnswersKeepalive(t *testing.T) {
	addr := startServer(t, 50*time.Millisecond)

	c := dial(t, addr)
	if _, err := c.Login("eric", "abcd", true, server.AcceptedClientVersion); err != nil {
		t.Fatal(err)
	}
	probes := 0
	for probes < 3 {
		ev, err := c.Next()
		if err != nil {
			t.Fatalf("after %d probes: %v", probes, err)
		}
		if _, ok := ev.(protocol.ServerKeepAlive); ok {
			probes++
		}
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line    string
		want    protocol.ClientEvent
		wantErr bool
	}{
		{"step", protocol.Step{}, false},
		{"  S ", protocol.Step{}, false},
		{"inv", protocol.OpenInv{}, false},
		{"drop Rusty Iron Sword", protocol.DropItem{Name: "Rusty Iron Sword"}, false},
		{"inspect  Oak Shield ", protocol.InspectItem{Name: "Oak Shield"}, false},
		{"attack", protocol.Attack{}, false},
		{"flee", protocol.TryFlee{}, false},
		{"quit", protocol.ClientDisconnect{}, false},
		{"drop", nil, true},
		{"", nil, true},
		{"dance", nil, true},
	}
	for _, tt := range tests {
		got, err := ParseCommand(tt.line)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseCommand(%q) err = %v", tt.line, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseCommand(%q) = %#v, want %#v", tt.line, got, tt.want)
		}
	}
}

func TestFormatEvent(t *testing.T) {
	sword := protocol.ItemView{Name: "Rusty Iron Sword", Type: gamedb.Sword, Rarity: gamedb.Common, Level: 2, Damage: 3}
	boots := protocol.ItemView{Name: "Fine Hide Boots", Type: gamedb.Boots, Rarity: gamedb.Rare, Level: 1, Defense: 4}
	tests := []struct {
		ev   protocol.ServerEvent
		want string
	}{
		{protocol.GainExp{Amount: 7}, "You gained 7 exp."},
		{protocol.FindItem{Item: sword}, "You found Rusty Iron Sword [Common Sword, level 2, 3 damage]."},
		{protocol.ShowItem{Item: boots}, "Fine Hide Boots [Rare Boots, level 1, 4 defense]"},
		{protocol.Inventory{}, "Your inventory is empty."},
		{protocol.ServerKeepAlive{Time: 1}, ""},
		{protocol.ServerError{ErrorData: protocol.ErrorData{Msg: "oops"}}, "Error: oops"},
		{protocol.Update{Player: protocol.PlayerSnapshot{Level: 1, Health: 100, Region: "Plains of Arenlok"}},
			"Level 1 (0 exp), 100 HP, 0 steps, Plains of Arenlok"},
	}
	for _, tt := range tests {
		if got := FormatEvent(tt.ev); got != tt.want {
			t.Errorf("FormatEvent(%T) = %q, want %q", tt.ev, got, tt.want)
		}
	}

	inv := FormatEvent(protocol.Inventory{Items: []protocol.ItemView{boots, sword}})
	if !strings.HasPrefix(inv, "Inventory:\n") || strings.Count(inv, "\n") != 2 {
		t.Errorf("inventory = %q", inv)
	}
}
