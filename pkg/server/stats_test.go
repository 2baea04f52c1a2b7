package server

import (
	"bytes"
	"context"
	"log"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/crystal-mush/swordsanddeath/pkg/events"
	"github.com/crystal-mush/swordsanddeath/pkg/protocol"
)

func TestConnectionStats(t *testing.T) {
	s := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer shutdown(t, cancel, s)

	login(t, ctx, s, "eric", "abcd", true)
	dial(t, ctx, s) // still in the handshake

	stats := s.Conns.ConnectionStats()
	if stats["total"] != 2 || stats["tcp"] != 2 || stats["websocket"] != 0 {
		t.Errorf("transport counts = %v", stats)
	}
	if stats["playing"] != 1 || stats["handshake"] != 1 {
		t.Errorf("state counts = %v", stats)
	}
	if n, _ := stats["bytes_sent"].(int); n == 0 {
		t.Errorf("bytes_sent = %v, want > 0", stats["bytes_sent"])
	}
}

func TestTracing(t *testing.T) {
	var buf bytes.Buffer
	orig := log.Writer()
	log.SetOutput(&buf)
	defer log.SetOutput(orig)
	SetDebug(true)
	defer SetDebug(false)
	if !IsDebug() {
		t.Fatal("debug not enabled")
	}

	s := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	c, _ := login(t, ctx, s, "eric", "abcd", true)
	c.send(protocol.OpenInv{})
	c.serverEvent()
	shutdown(t, cancel, s)

	out := buf.String()
	for _, want := range []string{"[DEBUG] eric sent protocol.OpenInv{}", "[DEBUG] reply to eric: protocol.Inventory"} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %q", want)
		}
	}
}

func TestEventLog(t *testing.T) {
	var buf bytes.Buffer
	orig := log.Writer()
	log.SetOutput(&buf)
	defer log.SetOutput(orig)

	s := newTestServer(t)
	player := uuid.New()
	s.Bus.EmitToPlayer(player, events.Event{Type: events.EvLevelUp, Amount: 1, Data: map[string]any{"level": 2}})
	s.Bus.EmitToPlayer(player, events.Event{Type: events.EvItemFound, Text: "Rusty Iron Sword",
		Data: map[string]any{"rarity": "Common", "type": "Sword"}})
	s.Bus.EmitToPlayer(player, events.Event{Type: events.EvExpGain, Amount: 5})

	out := buf.String()
	for _, want := range []string{
		"Player " + player.String() + " gained 1 level(s), now level 2",
		"Player " + player.String() + " found Rusty Iron Sword (Common Sword)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %q in %q", want, out)
		}
	}
	if strings.Contains(out, "exp") {
		t.Errorf("exp gains should not be logged: %q", out)
	}
}
