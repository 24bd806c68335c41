package dbbackend

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/scatterstore/scatterstore/internal/errors"
)

// IndexEntry is the stateful frontend's authoritative id -> (backend
// alias, bearer) mapping. Bearer is normalized: empty means public.
type IndexEntry struct {
	ID      string
	Backend string
	Bearer  string
}

// IndexConfig recognizes the stateful frontend's option table from
// spec §6: path, name, aliases (the alias list itself lives on the
// frontend, not here).
type IndexConfig struct {
	Path string
	Name string // index table name; defaults to "objects"
}

func (c IndexConfig) tableName() string {
	if c.Name == "" {
		return "objects"
	}
	return c.Name
}

// IndexStore owns the SQL table `objects(id TEXT PRIMARY KEY, backend
// TEXT, bearer TEXT)` per spec §6's on-disk format, grounded the same
// way as DB: open, PRAGMA, CREATE TABLE IF NOT EXISTS.
type IndexStore struct {
	cfg IndexConfig
	db  *sql.DB
}

// OpenIndexStore opens (creating if absent) the index database file and
// table described by cfg.
func OpenIndexStore(ctx context.Context, cfg IndexConfig) (*IndexStore, error) {
	sqlDB, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("opening index database: %w", err)
	}

	for _, pragma := range []string{"PRAGMA journal_mode = WAL", "PRAGMA busy_timeout = 5000"} {
		if _, err := sqlDB.ExecContext(ctx, pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("executing %q: %w", pragma, err)
		}
	}

	schema := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id      TEXT PRIMARY KEY,
		backend TEXT NOT NULL,
		bearer  TEXT NOT NULL DEFAULT ''
	)`, cfg.tableName())
	if _, err := sqlDB.ExecContext(ctx, schema); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("creating index table: %w", err)
	}

	return &IndexStore{cfg: cfg, db: sqlDB}, nil
}

// Close releases the underlying database handle.
func (s *IndexStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Lookup returns the index entry for id, or (zero, false, nil) if id is
// not indexed.
func (s *IndexStore) Lookup(ctx context.Context, id string) (IndexEntry, bool, error) {
	var entry IndexEntry
	entry.ID = id
	query := fmt.Sprintf("SELECT backend, bearer FROM %s WHERE id = ?", s.cfg.tableName())
	err := s.db.QueryRowContext(ctx, query, id).Scan(&entry.Backend, &entry.Bearer)
	if err == sql.ErrNoRows {
		return IndexEntry{}, false, nil
	}
	if err != nil {
		return IndexEntry{}, false, fmt.Errorf("looking up index entry %q: %w", id, err)
	}
	return entry, true, nil
}

// Insert records a newly written object's (id, backend alias, bearer).
// It fails if id is already indexed, since index entries are never
// mutated after insertion.
func (s *IndexStore) Insert(ctx context.Context, entry IndexEntry) error {
	insert := fmt.Sprintf("INSERT INTO %s (id, backend, bearer) VALUES (?, ?, ?)", s.cfg.tableName())
	if _, err := s.db.ExecContext(ctx, insert, entry.ID, entry.Backend, entry.Bearer); err != nil {
		return errors.Frontend(fmt.Sprintf("indexing object %q", entry.ID), err)
	}
	return nil
}

// Delete removes an index entry. Test-only affordance; the public write
// path never calls it.
func (s *IndexStore) Delete(ctx context.Context, id string) error {
	del := fmt.Sprintf("DELETE FROM %s WHERE id = ?", s.cfg.tableName())
	_, err := s.db.ExecContext(ctx, del, id)
	return err
}
