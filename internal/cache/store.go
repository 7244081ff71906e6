package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/edtechhub/kerkoapp/internal/composer"
)

// ErrEmpty is returned by Load before the first sync.
var ErrEmpty = errors.New("cache is empty; run a sync first")

const schema = `
CREATE TABLE IF NOT EXISTS items (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	key        TEXT NOT NULL UNIQUE,
	parent_key TEXT NOT NULL DEFAULT '',
	record     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_items_parent ON items(parent_key);

CREATE TABLE IF NOT EXISTS collections (
	key        TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	parent_key TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS item_types (
	item_type TEXT PRIMARY KEY,
	label     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS meta (
	name  TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

const (
	metaLibraryVersion = "library_version"
	metaSyncedAt       = "synced_at"
)

// Library is what a sync fetched from Zotero.
type Library struct {
	Items       []map[string]any // raw API records, parents and children
	Collections []composer.Collection
	ItemTypes   map[string]string
	Version     int
}

// Snapshot is the cached library, ready for indexing.
type Snapshot struct {
	Items    []*composer.Item // top-level items with their children attached
	Library  *composer.LibraryContext
	Version  int
	SyncedAt time.Time
}

// Store is the SQLite item cache.
type Store struct {
	db *sql.DB
}

// DefaultPath is the cache location inside the data directory.
func DefaultPath(dataDir string) string {
	return filepath.Join(dataDir, "cache.sqlite")
}

// Open opens (creating if needed) the cache at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}

	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Replace swaps the whole cached library in one transaction.
func (s *Store) Replace(ctx context.Context, lib Library) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	for _, table := range []string{"items", "collections", "item_types", "meta"} {
		if _, err = tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	for _, raw := range lib.Items {
		item := composer.NewItem(raw)
		if item.Key == "" {
			continue
		}

		var record []byte
		if record, err = json.Marshal(raw); err != nil {
			return fmt.Errorf("failed to encode item %s: %w", item.Key, err)
		}

		if _, err = tx.ExecContext(ctx,
			"INSERT OR REPLACE INTO items (key, parent_key, record) VALUES (?, ?, ?)",
			item.Key, item.ParentKey(), string(record)); err != nil {
			return fmt.Errorf("failed to store item %s: %w", item.Key, err)
		}
	}

	for _, c := range lib.Collections {
		if _, err = tx.ExecContext(ctx,
			"INSERT OR REPLACE INTO collections (key, name, parent_key) VALUES (?, ?, ?)",
			c.Key, c.Name, c.ParentKey); err != nil {
			return fmt.Errorf("failed to store collection %s: %w", c.Key, err)
		}
	}

	for itemType, label := range lib.ItemTypes {
		if _, err = tx.ExecContext(ctx,
			"INSERT OR REPLACE INTO item_types (item_type, label) VALUES (?, ?)",
			itemType, label); err != nil {
			return fmt.Errorf("failed to store item type %s: %w", itemType, err)
		}
	}

	meta := map[string]string{
		metaLibraryVersion: strconv.Itoa(lib.Version),
		metaSyncedAt:       strconv.FormatInt(time.Now().UnixNano(), 10),
	}

	for name, value := range meta {
		if _, err = tx.ExecContext(ctx, "INSERT INTO meta (name, value) VALUES (?, ?)", name, value); err != nil {
			return fmt.Errorf("failed to store %s: %w", name, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	log.Printf("[CACHE] stored %d records, %d collections, library version %d", len(lib.Items), len(lib.Collections), lib.Version)

	return nil
}

// Version returns a stamp that changes with every Replace, or 0 when the
// cache was never filled.
func (s *Store) Version(ctx context.Context) (int64, error) {
	value, err := s.meta(ctx, metaSyncedAt)
	if err != nil || value == "" {
		return 0, err
	}

	return strconv.ParseInt(value, 10, 64)
}

// Load reads the cached library. Children whose parent is not cached are
// dropped.
func (s *Store) Load(ctx context.Context) (*Snapshot, error) {
	stamp, err := s.Version(ctx)
	if err != nil {
		return nil, err
	}

	if stamp == 0 {
		return nil, ErrEmpty
	}

	snap := &Snapshot{
		SyncedAt: time.Unix(0, stamp),
		Library: &composer.LibraryContext{
			Collections: make(map[string]composer.Collection),
			ItemTypes:   make(map[string]string),
		},
	}

	if v, err := s.meta(ctx, metaLibraryVersion); err == nil {
		snap.Version, _ = strconv.Atoi(v)
	}

	if err := s.loadCollections(ctx, snap.Library); err != nil {
		return nil, err
	}

	if err := s.loadItemTypes(ctx, snap.Library); err != nil {
		return nil, err
	}

	if snap.Items, err = s.loadItems(ctx); err != nil {
		return nil, err
	}

	return snap, nil
}

func (s *Store) loadItems(ctx context.Context) ([]*composer.Item, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, parent_key, record FROM items ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	var parents []*composer.Item

	byKey := make(map[string]*composer.Item)
	children := make(map[string][]*composer.Item)

	for rows.Next() {
		var key, parentKey, record string
		if err := rows.Scan(&key, &parentKey, &record); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}

		raw := make(map[string]any)
		if err := json.Unmarshal([]byte(record), &raw); err != nil {
			return nil, fmt.Errorf("failed to decode item %s: %w", key, err)
		}

		item := composer.NewItem(raw)

		if parentKey != "" {
			children[parentKey] = append(children[parentKey], item)
			continue
		}

		byKey[key] = item
		parents = append(parents, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	for parentKey, list := range children {
		if parent, ok := byKey[parentKey]; ok {
			parent.Children = list
		}
	}

	return parents, nil
}

func (s *Store) loadCollections(ctx context.Context, lib *composer.LibraryContext) error {
	rows, err := s.db.QueryContext(ctx, "SELECT key, name, parent_key FROM collections")
	if err != nil {
		return fmt.Errorf("failed to query collections: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c composer.Collection
		if err := rows.Scan(&c.Key, &c.Name, &c.ParentKey); err != nil {
			return fmt.Errorf("failed to scan collection: %w", err)
		}
		lib.Collections[c.Key] = c
	}

	return rows.Err()
}

func (s *Store) loadItemTypes(ctx context.Context, lib *composer.LibraryContext) error {
	rows, err := s.db.QueryContext(ctx, "SELECT item_type, label FROM item_types")
	if err != nil {
		return fmt.Errorf("failed to query item types: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var itemType, label string
		if err := rows.Scan(&itemType, &label); err != nil {
			return fmt.Errorf("failed to scan item type: %w", err)
		}
		lib.ItemTypes[itemType] = label
	}

	return rows.Err()
}

func (s *Store) meta(ctx context.Context, name string) (string, error) {
	var value string

	err := s.db.QueryRowContext(ctx, "SELECT value FROM meta WHERE name = ?", name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", name, err)
	}

	return value, nil
}
