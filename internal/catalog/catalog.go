// Package catalog keeps a local record of saved scene archives so tools
// can list what was written where, and how each save went.
package catalog

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Entry is one recorded save.
type Entry struct {
	ID          string
	Archive     string
	NodeCount   int
	FailedNodes int
	CreatedAt   time.Time
}

// Catalog is a SQLite-backed archive register.
type Catalog struct {
	db *sql.DB
}

// Open opens (or creates) the catalog database at path.
func Open(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open catalog %s: %w", path, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS scenes (
		id TEXT PRIMARY KEY,
		archive TEXT NOT NULL,
		node_count INTEGER NOT NULL,
		failed_nodes INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_scenes_created ON scenes(created_at);
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create catalog schema: %w", err)
	}
	return &Catalog{db: db}, nil
}

// Record inserts one entry. A missing ID gets a fresh UUID and a zero
// timestamp becomes now.
func (c *Catalog) Record(e *Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := c.db.Exec(
		`INSERT INTO scenes (id, archive, node_count, failed_nodes, created_at) VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.Archive, e.NodeCount, e.FailedNodes, e.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record scene %s: %w", e.Archive, err)
	}
	return nil
}

// List returns all entries, newest first.
func (c *Catalog) List() ([]Entry, error) {
	rows, err := c.db.Query(
		`SELECT id, archive, node_count, failed_nodes, created_at FROM scenes ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list scenes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var createdMilli int64
		if err := rows.Scan(&e.ID, &e.Archive, &e.NodeCount, &e.FailedNodes, &createdMilli); err != nil {
			return nil, fmt.Errorf("scan scene row: %w", err)
		}
		e.CreatedAt = time.UnixMilli(createdMilli)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (c *Catalog) Close() error {
	return c.db.Close()
}
