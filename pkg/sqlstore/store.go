// Package sqlstore persists players and items in a SQLite database.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/crystal-mush/swordsanddeath/pkg/gamedb"
	"github.com/crystal-mush/swordsanddeath/pkg/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS players (
	uuid           TEXT PRIMARY KEY,
	username       TEXT NOT NULL,
	username_key   TEXT NOT NULL UNIQUE,
	password       TEXT NOT NULL,
	level          INTEGER NOT NULL,
	exp            INTEGER NOT NULL,
	steps          INTEGER NOT NULL,
	health         INTEGER NOT NULL,
	current_region TEXT NOT NULL,
	active         INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS items (
	uuid      TEXT PRIMARY KEY,
	owner     TEXT NOT NULL,
	name      TEXT NOT NULL,
	item_type INTEGER NOT NULL,
	rarity    INTEGER NOT NULL,
	level     INTEGER NOT NULL,
	damage    INTEGER NOT NULL,
	defense   INTEGER NOT NULL,
	UNIQUE (owner, name)
);
CREATE INDEX IF NOT EXISTS items_name ON items (name);
`

// Store manages a SQLite database connection.
type Store struct {
	db   *sql.DB
	path string
}

var _ store.Store = (*Store)(nil)

// Open opens a SQLite database, sets WAL mode and busy timeout, and creates
// the schema if needed.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", path, err)
	}
	// A single connection keeps the compare-and-set in SetActive atomic
	// with respect to other writers in this process.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlstore: %s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlstore: create schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the filesystem path of the SQLite database.
func (s *Store) Path() string { return s.path }

// Checkpoint forces a WAL checkpoint to flush all writes to the main database file.
func (s *Store) Checkpoint(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)")
	return err
}

// --- Players ---

const playerColumns = "uuid, username, password, level, exp, steps, health, current_region, active"

func (s *Store) CreatePlayer(ctx context.Context, p *gamedb.Player) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO players (uuid, username, username_key, password, level, exp, steps, health, current_region, active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID.String(), p.Username, store.UsernameKey(p.Username), p.Password,
		p.Level, p.Exp, p.Steps, p.Health, p.Region, p.Active)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrUsernameTaken
		}
		return fmt.Errorf("sqlstore: insert player %s: %w", p.ID, err)
	}
	return nil
}

func (s *Store) Player(ctx context.Context, id uuid.UUID) (*gamedb.Player, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+playerColumns+" FROM players WHERE uuid = ?", id.String())
	return scanPlayer(row)
}

func (s *Store) PlayerByUsername(ctx context.Context, username string) (*gamedb.Player, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+playerColumns+" FROM players WHERE username_key = ?", store.UsernameKey(username))
	return scanPlayer(row)
}

func (s *Store) SavePlayer(ctx context.Context, p *gamedb.Player) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE players SET level = ?, exp = ?, steps = ?, health = ?, current_region = ? WHERE uuid = ?`,
		p.Level, p.Exp, p.Steps, p.Health, p.Region, p.ID.String())
	if err != nil {
		return fmt.Errorf("sqlstore: update player %s: %w", p.ID, err)
	}
	return requireRow(res)
}

func (s *Store) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	if !active {
		res, err := s.db.ExecContext(ctx, "UPDATE players SET active = 0 WHERE uuid = ?", id.String())
		if err != nil {
			return fmt.Errorf("sqlstore: deactivate %s: %w", id, err)
		}
		return requireRow(res)
	}
	res, err := s.db.ExecContext(ctx, "UPDATE players SET active = 1 WHERE uuid = ? AND active = 0", id.String())
	if err != nil {
		return fmt.Errorf("sqlstore: activate %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}
	if _, err := s.Player(ctx, id); err != nil {
		return err
	}
	return store.ErrAlreadyActive
}

func (s *Store) ResetActive(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, "UPDATE players SET active = 0 WHERE active != 0")
	if err != nil {
		return 0, fmt.Errorf("sqlstore: reset active: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func scanPlayer(row *sql.Row) (*gamedb.Player, error) {
	var (
		p  gamedb.Player
		id string
	)
	err := row.Scan(&id, &p.Username, &p.Password, &p.Level, &p.Exp, &p.Steps, &p.Health, &p.Region, &p.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlstore: scan player: %w", err)
	}
	if p.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("sqlstore: invalid player uuid %q: %w", id, err)
	}
	return &p, nil
}

// --- Items ---

const itemColumns = "uuid, owner, name, item_type, rarity, level, damage, defense"

func (s *Store) CreateItem(ctx context.Context, it *gamedb.Item) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO items ("+itemColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		it.ID.String(), it.Owner.String(), it.Name, uint32(it.Type), uint32(it.Rarity), it.Level, it.Damage, it.Defense)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrItemNameTaken
		}
		return fmt.Errorf("sqlstore: insert item %s: %w", it.ID, err)
	}
	return nil
}

func (s *Store) Item(ctx context.Context, id uuid.UUID) (*gamedb.Item, error) {
	return s.queryItem(ctx, "WHERE uuid = ?", id.String())
}

func (s *Store) DeleteItem(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM items WHERE uuid = ?", id.String())
	if err != nil {
		return fmt.Errorf("sqlstore: delete item %s: %w", id, err)
	}
	return requireRow(res)
}

func (s *Store) ItemsByOwner(ctx context.Context, owner uuid.UUID) ([]*gamedb.Item, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+itemColumns+" FROM items WHERE owner = ? ORDER BY name, uuid", owner.String())
	if err != nil {
		return nil, fmt.Errorf("sqlstore: query items of %s: %w", owner, err)
	}
	defer rows.Close()
	var items []*gamedb.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *Store) ItemByOwnerName(ctx context.Context, owner uuid.UUID, name string) (*gamedb.Item, error) {
	return s.queryItem(ctx, "WHERE owner = ? AND name = ?", owner.String(), name)
}

func (s *Store) ItemByName(ctx context.Context, name string) (*gamedb.Item, error) {
	return s.queryItem(ctx, "WHERE name = ? LIMIT 1", name)
}

func (s *Store) queryItem(ctx context.Context, where string, args ...any) (*gamedb.Item, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+itemColumns+" FROM items "+where, args...)
	it, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return it, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(sc scanner) (*gamedb.Item, error) {
	var (
		it          gamedb.Item
		id, owner   string
		typ, rarity uint32
	)
	if err := sc.Scan(&id, &owner, &it.Name, &typ, &rarity, &it.Level, &it.Damage, &it.Defense); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("sqlstore: scan item: %w", err)
	}
	var err error
	if it.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("sqlstore: invalid item uuid %q: %w", id, err)
	}
	if it.Owner, err = uuid.Parse(owner); err != nil {
		return nil, fmt.Errorf("sqlstore: invalid owner uuid %q: %w", owner, err)
	}
	it.Type, it.Rarity = gamedb.ItemType(typ), gamedb.Rarity(rarity)
	return &it, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
