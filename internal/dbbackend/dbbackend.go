// Package dbbackend implements the SQLite-backed storage backend (a
// single blob table) and the stateful frontend's id-index table. Both
// are grounded on the teacher's internal/storage/sqlite.go: same driver,
// same PRAGMA set, same CREATE TABLE IF NOT EXISTS / INSERT / SELECT
// idiom, generalized from the teacher's (bucket, key) composite schema
// down to spec's single-id-primary-key schema.
package dbbackend

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/scatterstore/scatterstore/internal/backend"
	"github.com/scatterstore/scatterstore/internal/errors"
	"github.com/scatterstore/scatterstore/internal/promise"
)

// Config recognizes exactly the DB backend option table from spec §6:
// path, name, timeout.
type Config struct {
	Path    string
	Name    string // blob table name; defaults to "storage"
	Timeout time.Duration
}

func (c Config) tableName() string {
	if c.Name == "" {
		return "storage"
	}
	return c.Name
}

// DB is a backend.Backend storing blobs and their metadata in a single
// SQLite table: {id PRIMARY KEY, size, created_at, data}.
type DB struct {
	cfg Config

	mu    sync.RWMutex
	ready *promise.Promise[bool]
	db    *sql.DB
}

var _ backend.Backend = (*DB)(nil)

// New constructs a DB backend that has not yet been initialized; callers
// must call Init before using it.
func New(cfg Config) *DB {
	return &DB{cfg: cfg, ready: promise.New[bool]()}
}

func (d *DB) IsReady() *promise.Promise[bool] {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.ready
}

// Init opens the database file, applies the teacher's PRAGMA set, and
// creates the blob table if absent. It is idempotent: calling it again
// replaces IsReady with a fresh pending cell and re-settles it.
func (d *DB) Init(ctx context.Context) *promise.Promise[bool] {
	fresh := promise.New[bool]()
	d.mu.Lock()
	d.ready = fresh
	d.mu.Unlock()

	sqlDB, err := sql.Open("sqlite", d.cfg.Path)
	if err != nil {
		fresh.Reject(errors.Backend("opening database", err))
		return fresh
	}

	for _, pragma := range []string{"PRAGMA journal_mode = WAL", "PRAGMA busy_timeout = 5000"} {
		if _, err := sqlDB.ExecContext(ctx, pragma); err != nil {
			sqlDB.Close()
			fresh.Reject(errors.Backend(fmt.Sprintf("executing %q", pragma), err))
			return fresh
		}
	}

	schema := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id         TEXT PRIMARY KEY,
		size       INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		data       BLOB NOT NULL
	)`, d.cfg.tableName())
	if _, err := sqlDB.ExecContext(ctx, schema); err != nil {
		sqlDB.Close()
		fresh.Reject(errors.Backend("creating storage table", err))
		return fresh
	}

	d.mu.Lock()
	d.db = sqlDB
	d.mu.Unlock()

	fresh.Resolve(true)
	return fresh
}

// Backup is a no-op: SQLite commits durably on every write already.
func (d *DB) Backup(ctx context.Context) *promise.Promise[bool] {
	return promise.Resolve(true)
}

func (d *DB) Close(ctx context.Context) *promise.Promise[bool] {
	d.mu.Lock()
	closed := errors.Frontend("backend closed", nil)
	if !d.ready.Reject(closed) {
		d.ready = promise.Reject[bool](closed)
	}
	sqlDB := d.db
	d.db = nil
	d.mu.Unlock()

	if sqlDB != nil {
		if err := sqlDB.Close(); err != nil {
			return promise.Reject[bool](errors.Backend("closing database", err))
		}
	}
	return promise.Resolve(true)
}

func (d *DB) IsOnline(ctx context.Context) *promise.Promise[*int64] {
	sqlDB := d.handle()
	if sqlDB == nil {
		return promise.Resolve[*int64](nil)
	}

	start := time.Now()
	var n int
	if err := sqlDB.QueryRowContext(ctx, "SELECT 1").Scan(&n); err != nil {
		return promise.Resolve[*int64](nil)
	}
	latency := time.Since(start).Milliseconds()
	return promise.Resolve(&latency)
}

func (d *DB) GetObjectMetadata(ctx context.Context, id string) *promise.Promise[backend.ObjectMetadata] {
	sqlDB := d.handle()
	if sqlDB == nil {
		return promise.Reject[backend.ObjectMetadata](errors.Backend("backend not initialized", nil))
	}

	var size, createdAt int64
	query := fmt.Sprintf("SELECT size, created_at FROM %s WHERE id = ?", d.cfg.tableName())
	err := sqlDB.QueryRowContext(ctx, query, id).Scan(&size, &createdAt)
	if err == sql.ErrNoRows {
		return promise.Reject[backend.ObjectMetadata](errors.Backend(fmt.Sprintf("object %q not found", id), nil))
	}
	if err != nil {
		return promise.Reject[backend.ObjectMetadata](errors.Backend("reading object metadata", err))
	}
	return promise.Resolve(backend.ObjectMetadata{ID: id, Size: size, CreatedAt: createdAt})
}

func (d *DB) ApproveObjectMetadata(ctx context.Context, id string, size int64) *promise.Promise[bool] {
	sqlDB := d.handle()
	if sqlDB == nil {
		return promise.Reject[bool](errors.Backend("backend not initialized", nil))
	}

	var exists int
	query := fmt.Sprintf("SELECT 1 FROM %s WHERE id = ?", d.cfg.tableName())
	err := sqlDB.QueryRowContext(ctx, query, id).Scan(&exists)
	if err == nil {
		return promise.Reject[bool](errors.Backend(fmt.Sprintf("object %q already exists", id), nil))
	}
	if err != sql.ErrNoRows {
		return promise.Reject[bool](errors.Backend("checking object existence", err))
	}
	return promise.Resolve(true)
}

func (d *DB) GetObject(ctx context.Context, id string) *promise.Promise[[]byte] {
	sqlDB := d.handle()
	if sqlDB == nil {
		return promise.Reject[[]byte](errors.Backend("backend not initialized", nil))
	}

	var data []byte
	query := fmt.Sprintf("SELECT data FROM %s WHERE id = ?", d.cfg.tableName())
	err := sqlDB.QueryRowContext(ctx, query, id).Scan(&data)
	if err == sql.ErrNoRows {
		return promise.Reject[[]byte](errors.Backend(fmt.Sprintf("object %q not found", id), nil))
	}
	if err != nil {
		return promise.Reject[[]byte](errors.Backend("reading object", err))
	}
	return promise.Resolve(data)
}

func (d *DB) SetObject(ctx context.Context, id string, data []byte) *promise.Promise[backend.ObjectMetadata] {
	sqlDB := d.handle()
	if sqlDB == nil {
		return promise.Reject[backend.ObjectMetadata](errors.Backend("backend not initialized", nil))
	}

	createdAt := time.Now().UnixMilli()
	insert := fmt.Sprintf("INSERT INTO %s (id, size, created_at, data) VALUES (?, ?, ?, ?)", d.cfg.tableName())
	_, err := sqlDB.ExecContext(ctx, insert, id, len(data), createdAt, data)
	if err != nil {
		return promise.Reject[backend.ObjectMetadata](errors.Backend(fmt.Sprintf("storing object %q", id), err))
	}
	return promise.Resolve(backend.ObjectMetadata{ID: id, Size: int64(len(data)), CreatedAt: createdAt})
}

func (d *DB) DelObject(ctx context.Context, id string) *promise.Promise[bool] {
	sqlDB := d.handle()
	if sqlDB == nil {
		return promise.Reject[bool](errors.Backend("backend not initialized", nil))
	}

	del := fmt.Sprintf("DELETE FROM %s WHERE id = ?", d.cfg.tableName())
	res, err := sqlDB.ExecContext(ctx, del, id)
	if err != nil {
		return promise.Reject[bool](errors.Backend(fmt.Sprintf("deleting object %q", id), err))
	}
	n, _ := res.RowsAffected()
	return promise.Resolve(n > 0)
}

func (d *DB) handle() *sql.DB {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.db
}
