package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/crystal-mush/swordsanddeath/pkg/boltstore"
	"github.com/crystal-mush/swordsanddeath/pkg/redisstore"
	"github.com/crystal-mush/swordsanddeath/pkg/server"
	"github.com/crystal-mush/swordsanddeath/pkg/sqlstore"
	"github.com/crystal-mush/swordsanddeath/pkg/store"
)

// envDefault returns the environment variable value if set, otherwise the fallback.
func envDefault(envVar, fallback string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return fallback
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: snd-server [-conf <config>] [-store bolt|sqlite|redis] [-port 2277]")
	fmt.Fprintln(os.Stderr, "")
	flag.PrintDefaults()
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Environment variables (used as defaults when flags are not set):")
	fmt.Fprintln(os.Stderr, "  SND_CONF    Path to game config file (.yaml)")
	fmt.Fprintln(os.Stderr, "  SND_HOST    Address to listen on")
	fmt.Fprintln(os.Stderr, "  SND_PORT    TCP port to listen on")
	fmt.Fprintln(os.Stderr, "  SND_STORE   Storage backend: bolt, sqlite or redis")
	fmt.Fprintln(os.Stderr, "  SND_BOLT    Path to bbolt database")
	fmt.Fprintln(os.Stderr, "  SND_SQLITE  Path to SQLite database")
	fmt.Fprintln(os.Stderr, "  SND_REDIS   Redis URL")
	fmt.Fprintln(os.Stderr, "  SND_BACKUP  Write a bbolt snapshot here before serving")
	fmt.Fprintln(os.Stderr, "  SND_DEBUG   Set to 'true' to trace every session message")
}

func main() {
	confFile := flag.String("conf", envDefault("SND_CONF", ""), "Path to game config file (env: SND_CONF)")
	host := flag.String("host", envDefault("SND_HOST", ""), "Address to listen on, overrides config (env: SND_HOST)")
	port := flag.Int("port", 0, "TCP port to listen on, overrides config (env: SND_PORT)")
	storeKind := flag.String("store", envDefault("SND_STORE", ""), "Storage backend, overrides config (env: SND_STORE)")
	boltPath := flag.String("bolt", envDefault("SND_BOLT", ""), "Path to bbolt database (env: SND_BOLT)")
	sqlitePath := flag.String("sqlite", envDefault("SND_SQLITE", ""), "Path to SQLite database (env: SND_SQLITE)")
	redisURL := flag.String("redis", envDefault("SND_REDIS", ""), "Redis URL (env: SND_REDIS)")
	debug := flag.Bool("debug", os.Getenv("SND_DEBUG") == "true", "Trace every session message (env: SND_DEBUG)")
	backupPath := flag.String("backup", envDefault("SND_BACKUP", ""), "Write a bbolt snapshot to this path before serving (env: SND_BACKUP)")
	flag.Usage = usage
	flag.Parse()

	log.Printf("Welcome to %s", server.VersionString())
	if *debug {
		server.SetDebug(true)
	}

	// Handle SND_PORT env if -port flag not set
	if *port == 0 {
		if envPort := os.Getenv("SND_PORT"); envPort != "" {
			if p, err := strconv.Atoi(envPort); err == nil {
				*port = p
			}
		}
	}

	// Load game config if specified, otherwise use defaults
	var gc *server.GameConf
	if *confFile != "" {
		var err error
		gc, err = server.LoadGameConf(*confFile)
		if err != nil {
			log.Fatalf("Error loading game config: %v", err)
		}
		log.Printf("Loaded game config from %s", *confFile)
	} else {
		gc = server.DefaultGameConf()
	}

	// Command-line flags override config file values
	if *host != "" {
		gc.Host = *host
	}
	if *port != 0 {
		gc.Port = *port
	}
	if *storeKind != "" {
		gc.Store = *storeKind
	}
	if *boltPath != "" {
		gc.BoltPath = *boltPath
	}
	if *sqlitePath != "" {
		gc.SQLitePath = *sqlitePath
	}
	if *redisURL != "" {
		gc.RedisURL = *redisURL
	}
	if err := gc.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	st, err := openStore(gc, *backupPath)
	if err != nil {
		log.Fatalf("Error opening %s store: %v", gc.Store, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.NewServer(st, gc.ServerConfig())
	if err := srv.ResetActive(ctx); err != nil {
		log.Fatalf("Error clearing active flags: %v", err)
	}

	if gc.MotdFile != "" {
		srv.Motd = server.LoadMotd(gc.MotdFile, gc.Motd)
		if err := srv.Motd.Watch(ctx); err != nil {
			log.Printf("WARNING: message of the day will not reload: %v", err)
		}
	} else {
		srv.Motd = server.NewMotd(gc.Motd)
	}

	web := startWeb(ctx, srv, gc)

	log.Printf("Starting %s on %s...", gc.GameName, gc.Addr())
	if err := srv.ListenAndServe(ctx); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	// Web servers may still hand over upgraded connections until they stop.
	web.Wait()
	log.Printf("Shutting down, waiting for %d connection(s)...", srv.Conns.Count())
	srv.Wait()
	closeStore(st)
	log.Printf("Goodbye.")
}

// openStore opens the configured backend, creating parent directories for
// file based stores.
func openStore(gc *server.GameConf, backupPath string) (store.Store, error) {
	switch gc.Store {
	case server.StoreSQLite:
		if err := os.MkdirAll(filepath.Dir(gc.SQLitePath), 0o755); err != nil {
			return nil, err
		}
		log.Printf("Using SQLite store %s", gc.SQLitePath)
		return sqlstore.Open(gc.SQLitePath)

	case server.StoreRedis:
		cfg := redisstore.DefaultConfig()
		cfg.URL = gc.RedisURL
		log.Printf("Using Redis store %s", gc.RedisURL)
		return redisstore.New(cfg)

	default:
		if err := os.MkdirAll(filepath.Dir(gc.BoltPath), 0o755); err != nil {
			return nil, err
		}
		bs, err := boltstore.Open(gc.BoltPath)
		if err != nil {
			return nil, err
		}
		log.Printf("Using bbolt store %s (existing players: %v)", bs.Path(), bs.HasData())
		if backupPath != "" {
			if err := bs.Backup(backupPath); err != nil {
				bs.Close()
				return nil, err
			}
		}
		return bs, nil
	}
}

// startWeb serves metrics and the WebSocket transport when configured. Both
// may share a port. The returned group ends when every web server has shut
// down after ctx is cancelled.
func startWeb(ctx context.Context, srv *server.Server, gc *server.GameConf) *sync.WaitGroup {
	var wg sync.WaitGroup
	if gc.MetricsPort > 0 {
		srv.EnableMetrics(time.Now())
	}
	ports := map[int]*server.WebConfig{}
	if gc.MetricsPort > 0 {
		ports[gc.MetricsPort] = &server.WebConfig{Host: gc.Host, Port: gc.MetricsPort, Metrics: true}
	}
	if gc.WSPort > 0 {
		if wc, ok := ports[gc.WSPort]; ok {
			wc.WebSocket = true
		} else {
			ports[gc.WSPort] = &server.WebConfig{Host: gc.Host, Port: gc.WSPort, WebSocket: true}
		}
	}
	for _, wc := range ports {
		ws := server.NewWebServer(srv, *wc)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := ws.ListenAndServe(ctx); err != nil {
				log.Printf("Web server error: %v", err)
			}
		}()
	}
	return &wg
}

func closeStore(st store.Store) {
	if ss, ok := st.(*sqlstore.Store); ok {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := ss.Checkpoint(ctx); err != nil {
			log.Printf("WARNING: SQLite checkpoint failed: %v", err)
		}
		cancel()
	}
	if err := st.Close(); err != nil {
		log.Printf("WARNING: closing store: %v", err)
	}
}
