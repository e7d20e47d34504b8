package store

import "context"

// Store is the persistence layer behind a flash engine. It keeps two
// kinds of state: object records (the serialized graph) and data
// chunks (fixed-size file content pages keyed by object identifier
// and chunk index).
//
// Stores know nothing about tree structure or locking; the engine
// serializes all calls under the device lock.
type Store interface {
	// Name returns the identifier name defined for this store.
	Name() string

	// Open is part of the lifecycle behaviour and gets called when
	// the engine initialises the device.
	Open(ctx context.Context) error

	// Close is part of the lifecycle behaviour and gets called when
	// the engine tears the device down.
	Close(ctx context.Context) error

	// Capabilities returns the limits advertised by this store.
	Capabilities() *Capabilities

	// PutRecord creates or overwrites the record for an object.
	PutRecord(ctx context.Context, rec *Record) error

	// DeleteRecord removes the record for an object.
	// Unknown identifiers are not an error.
	DeleteRecord(ctx context.Context, id uint64) error

	// ListRecords returns every record, ordered by identifier.
	ListRecords(ctx context.Context) ([]*Record, error)

	// ReadChunk returns the content of one chunk, or nil if the chunk
	// was never written (sparse ranges read as zeroes).
	ReadChunk(ctx context.Context, id uint64, index int64) ([]byte, error)

	// WriteChunk stores the content of one chunk.
	WriteChunk(ctx context.Context, id uint64, index int64, data []byte) error

	// TrimChunks deletes every chunk of an object with index >= from.
	// TrimChunks(ctx, id, 0) drops the object's content entirely.
	TrimChunks(ctx context.Context, id uint64, from int64) error

	// Flush persists any buffered state.
	Flush(ctx context.Context) error
}

// Capabilities describes what a store supports. Zero values mean
// "no limit".
type Capabilities struct {
	// MaxObjectSize is the largest byte length a single object may
	// grow to. The engine reports ErrNoSpace beyond it.
	MaxObjectSize int64 `json:"max_object_size"`
}
