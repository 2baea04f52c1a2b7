package server

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// GameConf holds the server configuration file contents.
type GameConf struct {
	// --- Identity ---
	GameName              string `yaml:"game_name"`
	AcceptedClientVersion string `yaml:"accepted_client_version"`

	// --- Listener ---
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// --- Message of the day ---
	Motd     string `yaml:"motd"`
	MotdFile string `yaml:"motd_file"` // When set, overrides Motd and is reloaded on change

	// --- Liveness ---
	KeepaliveInterval int `yaml:"keepalive_interval"` // Seconds between keepalive probes
	KeepaliveCheck    int `yaml:"keepalive_check"`    // Milliseconds between keepalive bookkeeping passes
	HandshakeTimeout  int `yaml:"handshake_timeout"`  // Seconds allowed for the first message

	// --- Storage ---
	Store      string `yaml:"store"` // bolt, sqlite or redis
	BoltPath   string `yaml:"bolt_path"`
	SQLitePath string `yaml:"sqlite_path"`
	RedisURL   string `yaml:"redis_url"`

	// --- Credentials ---
	BcryptCost int `yaml:"bcrypt_cost"`

	// --- HTTP ---
	MetricsPort int `yaml:"metrics_port"` // 0 = disabled
	WSPort      int `yaml:"ws_port"`      // 0 = disabled
}

// Store backend names.
const (
	StoreBolt   = "bolt"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

// DefaultMotd is sent after a successful login when no other text is configured.
const DefaultMotd = "Welcome to SnD! We are still in ALPHA, so expect some bugs!"

// DefaultGameConf returns the configuration used when no file is given.
func DefaultGameConf() *GameConf {
	return &GameConf{
		GameName:              "Swords and Death",
		AcceptedClientVersion: AcceptedClientVersion,
		Host:                  "0.0.0.0",
		Port:                  2277,
		Motd:                  DefaultMotd,
		KeepaliveInterval:     20,
		KeepaliveCheck:        1000,
		HandshakeTimeout:      30,
		Store:                 StoreBolt,
		BoltPath:              "data/snd.bolt",
		SQLitePath:            "data/snd.sqlite",
		RedisURL:              "redis://localhost:6379/0",
		BcryptCost:            10,
	}
}

// LoadGameConf reads a YAML configuration file on top of the defaults.
// Relative storage and motd paths are resolved against the file's directory.
func LoadGameConf(path string) (*GameConf, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	gc := DefaultGameConf()
	if err := yaml.Unmarshal(data, gc); err != nil {
		return nil, fmt.Errorf("parsing YAML %s: %w", path, err)
	}

	baseDir := filepath.Dir(path)
	for _, p := range []*string{&gc.BoltPath, &gc.SQLitePath, &gc.MotdFile} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(baseDir, *p)
		}
	}

	if err := gc.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return gc, nil
}

// Validate reports the first invalid setting.
func (gc *GameConf) Validate() error {
	switch {
	case gc.Port < 0 || gc.Port > 65535:
		return fmt.Errorf("port %d out of range", gc.Port)
	case gc.MetricsPort < 0 || gc.MetricsPort > 65535:
		return fmt.Errorf("metrics_port %d out of range", gc.MetricsPort)
	case gc.WSPort < 0 || gc.WSPort > 65535:
		return fmt.Errorf("ws_port %d out of range", gc.WSPort)
	case gc.KeepaliveInterval <= 0:
		return fmt.Errorf("keepalive_interval must be positive")
	case gc.KeepaliveCheck <= 0:
		return fmt.Errorf("keepalive_check must be positive")
	case gc.HandshakeTimeout <= 0:
		return fmt.Errorf("handshake_timeout must be positive")
	case gc.AcceptedClientVersion == "":
		return fmt.Errorf("accepted_client_version must be set")
	}
	switch gc.Store {
	case StoreBolt, StoreSQLite, StoreRedis:
	default:
		return fmt.Errorf("unknown store %q (want bolt, sqlite or redis)", gc.Store)
	}
	return nil
}

// Addr returns the TCP listen address.
func (gc *GameConf) Addr() string {
	return fmt.Sprintf("%s:%d", gc.Host, gc.Port)
}

// ServerConfig converts the file settings into the server's runtime Config.
func (gc *GameConf) ServerConfig() Config {
	cfg := DefaultConfig()
	cfg.Addr = gc.Addr()
	cfg.AcceptedVersion = gc.AcceptedClientVersion
	cfg.KeepaliveInterval = time.Duration(gc.KeepaliveInterval) * time.Second
	cfg.KeepaliveCheck = time.Duration(gc.KeepaliveCheck) * time.Millisecond
	cfg.HandshakeTimeout = time.Duration(gc.HandshakeTimeout) * time.Second
	if gc.BcryptCost > 0 {
		cfg.BcryptCost = gc.BcryptCost
	}
	return cfg
}
