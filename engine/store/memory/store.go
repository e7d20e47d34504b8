package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/mwantia/flashfs/engine/store"
	"github.com/tidwall/btree"
)

// MemoryStore keeps records and chunks in btree maps. It is the
// default store for RAM-backed devices and for tests.
type MemoryStore struct {
	mu sync.RWMutex

	records *btree.Map[uint64, *store.Record]
	chunks  *btree.Map[string, []byte]

	maxObjectSize int64
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithMaxObjectSize caps the byte length of a single object. Writes
// and resizes beyond the cap surface as ErrNoSpace through the
// engine.
func WithMaxObjectSize(size int64) MemoryStoreOption {
	return func(ms *MemoryStore) {
		ms.maxObjectSize = size
	}
}

func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	ms := &MemoryStore{
		records: btree.NewMap[uint64, *store.Record](0),
		chunks:  btree.NewMap[string, []byte](0),
	}

	for _, opt := range opts {
		opt(ms)
	}

	return ms
}

// Name returns the identifier name defined for this store.
func (*MemoryStore) Name() string {
	return "memory"
}

// Open is part of the lifecycle behaviour and gets called when the
// engine initialises the device.
func (ms *MemoryStore) Open(ctx context.Context) error {
	// Nothing to initialize - store is ready to use
	return nil
}

// Close is part of the lifecycle behaviour and gets called when the
// engine tears the device down. Contents are kept for the lifetime of
// the store value, so a later remount rebuilds the same graph.
func (ms *MemoryStore) Close(ctx context.Context) error {
	return nil
}

// Capabilities returns the limits advertised by this store.
func (ms *MemoryStore) Capabilities() *store.Capabilities {
	return &store.Capabilities{
		MaxObjectSize: ms.maxObjectSize,
	}
}

func (ms *MemoryStore) PutRecord(ctx context.Context, rec *store.Record) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	clone := *rec
	ms.records.Set(rec.ID, &clone)
	return nil
}

func (ms *MemoryStore) DeleteRecord(ctx context.Context, id uint64) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.records.Delete(id)
	return nil
}

func (ms *MemoryStore) ListRecords(ctx context.Context) ([]*store.Record, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	records := make([]*store.Record, 0, ms.records.Len())
	ms.records.Scan(func(_ uint64, rec *store.Record) bool {
		clone := *rec
		records = append(records, &clone)
		return true
	})

	return records, nil
}

func (ms *MemoryStore) ReadChunk(ctx context.Context, id uint64, index int64) ([]byte, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	buf, exists := ms.chunks.Get(chunkKey(id, index))
	if !exists {
		return nil, nil
	}

	clone := make([]byte, len(buf))
	copy(clone, buf)
	return clone, nil
}

func (ms *MemoryStore) WriteChunk(ctx context.Context, id uint64, index int64, buf []byte) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	clone := make([]byte, len(buf))
	copy(clone, buf)
	ms.chunks.Set(chunkKey(id, index), clone)
	return nil
}

func (ms *MemoryStore) TrimChunks(ctx context.Context, id uint64, from int64) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	prefix := fmt.Sprintf("%016x.", id)

	var keys []string
	ms.chunks.Ascend(chunkKey(id, from), func(key string, _ []byte) bool {
		if !strings.HasPrefix(key, prefix) {
			return false
		}
		keys = append(keys, key)
		return true
	})

	for _, key := range keys {
		ms.chunks.Delete(key)
	}

	return nil
}

// Flush persists any buffered state. Memory stores have none.
func (ms *MemoryStore) Flush(ctx context.Context) error {
	return nil
}

// chunkKey builds a btree key that sorts chunks by object identifier
// first and chunk index second.
func chunkKey(id uint64, index int64) string {
	return fmt.Sprintf("%016x.%016x", id, index)
}

var _ store.Store = (*MemoryStore)(nil)
