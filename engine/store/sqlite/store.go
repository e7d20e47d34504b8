package sqlite

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/mwantia/flashfs/data"
	"github.com/mwantia/flashfs/engine/store"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteStore persists the object graph and file chunks in SQLite.
// Records live in flashfs_objects, chunks in flashfs_chunks keyed by
// (object_id, chunk_index). A device backed by this store survives
// remount: the engine rebuilds the graph from the records table.
type SQLiteStore struct {
	mu sync.RWMutex
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-backed store. The dbPath can be
// ":memory:" for an in-memory database or a file path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, err
	}

	ss := &SQLiteStore{db: db}
	if err := ss.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return ss, nil
}

// initSchema creates the database schema.
func (ss *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS flashfs_objects (
		id INTEGER PRIMARY KEY,
		parent_id INTEGER NOT NULL DEFAULT 0,
		name TEXT NOT NULL,
		type INTEGER NOT NULL,
		mode INTEGER NOT NULL,
		rdev INTEGER NOT NULL DEFAULT 0,
		length INTEGER NOT NULL DEFAULT 0,
		alias TEXT,
		equivalent_id INTEGER,
		access_time INTEGER NOT NULL,
		modify_time INTEGER NOT NULL,
		change_time INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_flashfs_objects_parent ON flashfs_objects(parent_id);

	CREATE TABLE IF NOT EXISTS flashfs_chunks (
		object_id INTEGER NOT NULL,
		chunk_index INTEGER NOT NULL,
		content BLOB NOT NULL,
		PRIMARY KEY (object_id, chunk_index)
	);
	`

	_, err := ss.db.Exec(schema)
	return err
}

// Name returns the identifier name defined for this store.
func (*SQLiteStore) Name() string {
	return "sqlite"
}

// Open is part of the lifecycle behaviour and gets called when the
// engine initialises the device.
func (ss *SQLiteStore) Open(ctx context.Context) error {
	return ss.db.PingContext(ctx)
}

// Close is part of the lifecycle behaviour and gets called when the
// engine tears the device down.
func (ss *SQLiteStore) Close(ctx context.Context) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	return ss.db.Close()
}

// Capabilities returns the limits advertised by this store.
func (ss *SQLiteStore) Capabilities() *store.Capabilities {
	return &store.Capabilities{}
}

func (ss *SQLiteStore) PutRecord(ctx context.Context, rec *store.Record) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	var alias sql.NullString
	if rec.Alias != "" {
		alias = sql.NullString{String: rec.Alias, Valid: true}
	}
	var equivalent sql.NullInt64
	if rec.EquivalentID != 0 {
		equivalent = sql.NullInt64{Int64: int64(rec.EquivalentID), Valid: true}
	}

	_, err := ss.db.ExecContext(ctx, `
		INSERT INTO flashfs_objects (id, parent_id, name, type, mode, rdev, length, alias, equivalent_id, access_time, modify_time, change_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			parent_id = excluded.parent_id,
			name = excluded.name,
			type = excluded.type,
			mode = excluded.mode,
			rdev = excluded.rdev,
			length = excluded.length,
			alias = excluded.alias,
			equivalent_id = excluded.equivalent_id,
			access_time = excluded.access_time,
			modify_time = excluded.modify_time,
			change_time = excluded.change_time
	`, int64(rec.ID), int64(rec.ParentID), rec.Name, int(rec.Type), int64(rec.Mode),
		int64(rec.Rdev), rec.Length, alias, equivalent,
		rec.AccessTime.Unix(), rec.ModifyTime.Unix(), rec.ChangeTime.Unix())

	return err
}

func (ss *SQLiteStore) DeleteRecord(ctx context.Context, id uint64) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	_, err := ss.db.ExecContext(ctx, `DELETE FROM flashfs_objects WHERE id = ?`, int64(id))
	return err
}

func (ss *SQLiteStore) ListRecords(ctx context.Context) ([]*store.Record, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	rows, err := ss.db.QueryContext(ctx, `
		SELECT id, parent_id, name, type, mode, rdev, length, alias, equivalent_id, access_time, modify_time, change_time
		FROM flashfs_objects ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*store.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

func (ss *SQLiteStore) ReadChunk(ctx context.Context, id uint64, index int64) ([]byte, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	var content []byte
	err := ss.db.QueryRowContext(ctx, `
		SELECT content FROM flashfs_chunks WHERE object_id = ? AND chunk_index = ?
	`, int64(id), index).Scan(&content)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return content, nil
}

func (ss *SQLiteStore) WriteChunk(ctx context.Context, id uint64, index int64, buf []byte) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	_, err := ss.db.ExecContext(ctx, `
		INSERT INTO flashfs_chunks (object_id, chunk_index, content)
		VALUES (?, ?, ?)
		ON CONFLICT(object_id, chunk_index) DO UPDATE SET content = excluded.content
	`, int64(id), index, buf)

	return err
}

func (ss *SQLiteStore) TrimChunks(ctx context.Context, id uint64, from int64) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	_, err := ss.db.ExecContext(ctx, `
		DELETE FROM flashfs_chunks WHERE object_id = ? AND chunk_index >= ?
	`, int64(id), from)

	return err
}

// Flush persists any buffered state. SQLite commits on every
// statement, so there is nothing to do.
func (ss *SQLiteStore) Flush(ctx context.Context) error {
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*store.Record, error) {
	var rec store.Record
	var id, parentID, mode, rdev int64
	var typ int
	var alias sql.NullString
	var equivalent sql.NullInt64
	var accessTime, modifyTime, changeTime int64

	if err := row.Scan(&id, &parentID, &rec.Name, &typ, &mode, &rdev, &rec.Length,
		&alias, &equivalent, &accessTime, &modifyTime, &changeTime); err != nil {
		return nil, err
	}

	rec.ID = uint64(id)
	rec.ParentID = uint64(parentID)
	rec.Type = data.ObjectType(typ)
	rec.Mode = data.FileMode(mode)
	rec.Rdev = uint64(rdev)
	if alias.Valid {
		rec.Alias = alias.String
	}
	if equivalent.Valid {
		rec.EquivalentID = uint64(equivalent.Int64)
	}
	rec.AccessTime = time.Unix(accessTime, 0)
	rec.ModifyTime = time.Unix(modifyTime, 0)
	rec.ChangeTime = time.Unix(changeTime, 0)

	return &rec, nil
}

var _ store.Store = (*SQLiteStore)(nil)
