package server

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDefaultGameConf(t *testing.T) {
	gc := DefaultGameConf()
	if err := gc.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	cfg := gc.ServerConfig()
	if cfg.Addr != "0.0.0.0:2277" {
		t.Errorf("Addr = %q", cfg.Addr)
	}
	if cfg.KeepaliveInterval != 20*time.Second || cfg.KeepaliveCheck != time.Second {
		t.Errorf("keepalive = %v / %v", cfg.KeepaliveInterval, cfg.KeepaliveCheck)
	}
	if cfg.AcceptedVersion != AcceptedClientVersion {
		t.Errorf("AcceptedVersion = %q", cfg.AcceptedVersion)
	}
	if gc.Store != StoreBolt || gc.Motd != DefaultMotd {
		t.Errorf("store %q motd %q", gc.Store, gc.Motd)
	}
}

func TestLoadGameConfOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snd.yaml")
	writeFile(t, path, `
game_name: Test Realm
port: 4000
keepalive_interval: 5
keepalive_check: 250
store: sqlite
sqlite_path: db/test.sqlite
motd_file: motd.txt
metrics_port: 9100
`)

	gc, err := LoadGameConf(path)
	if err != nil {
		t.Fatal(err)
	}
	if gc.GameName != "Test Realm" || gc.Port != 4000 || gc.Store != StoreSQLite || gc.MetricsPort != 9100 {
		t.Errorf("overrides not applied: %+v", gc)
	}
	if gc.Host != "0.0.0.0" || gc.HandshakeTimeout != 30 {
		t.Errorf("defaults lost: host %q handshake %d", gc.Host, gc.HandshakeTimeout)
	}
	if want := filepath.Join(dir, "db", "test.sqlite"); gc.SQLitePath != want {
		t.Errorf("SQLitePath = %q, want %q", gc.SQLitePath, want)
	}
	if want := filepath.Join(dir, "motd.txt"); gc.MotdFile != want {
		t.Errorf("MotdFile = %q, want %q", gc.MotdFile, want)
	}
	cfg := gc.ServerConfig()
	if cfg.KeepaliveInterval != 5*time.Second || cfg.KeepaliveCheck != 250*time.Millisecond {
		t.Errorf("keepalive = %v / %v", cfg.KeepaliveInterval, cfg.KeepaliveCheck)
	}
}

func TestLoadGameConfInvalid(t *testing.T) {
	tests := []struct {
		name, yaml, want string
	}{
		{"store", "store: mongo\n", "unknown store"},
		{"port", "port: 70000\n", "port"},
		{"keepalive", "keepalive_interval: 0\n", "keepalive_interval"},
		{"syntax", "port: [\n", "snd.yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "snd.yaml")
			writeFile(t, path, tt.yaml)
			_, err := LoadGameConf(path)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestLoadGameConfMissing(t *testing.T) {
	if _, err := LoadGameConf(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestMotdReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "motd.txt")
	m := LoadMotd(path, DefaultMotd)
	if m.Get() != DefaultMotd {
		t.Errorf("missing file should use fallback, got %q", m.Get())
	}

	writeFile(t, path, "  Welcome back!\n")
	if !m.Reload() || m.Get() != "Welcome back!" {
		t.Errorf("after reload got %q", m.Get())
	}

	writeFile(t, path, "")
	if m.Reload() || m.Get() != DefaultMotd {
		t.Errorf("empty file should use fallback, got %q", m.Get())
	}
}

func TestMotdWatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "motd.txt")
	writeFile(t, path, "first")
	m := LoadMotd(path, DefaultMotd)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := m.Watch(ctx); err != nil {
		t.Fatal(err)
	}
	writeFile(t, path, "second")

	deadline := time.Now().Add(5 * time.Second)
	for m.Get() != "second" {
		if time.Now().After(deadline) {
			t.Fatalf("watch did not reload, text = %q", m.Get())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestMotdFixed(t *testing.T) {
	m := NewMotd("hello")
	if m.Reload() {
		t.Error("fixed text has no file to reload")
	}
	m.Set("bye")
	if m.Get() != "bye" {
		t.Errorf("Get = %q", m.Get())
	}
}
