package object

import (
	"sync"

	"github.com/google/uuid"
)

// DefaultChunkSize is the block size used for size accounting when a
// device is created without an explicit chunk size.
const DefaultChunkSize = 2048

// RootObjectID is the identifier reserved for the root directory of
// every device.
const RootObjectID = 1

// Device is one mounted filesystem instance: the root object, the
// mount and read-only flags, the chunk size used for block
// accounting, and the single lock guarding every graph access.
type Device struct {
	mu sync.Mutex

	// ID namespaces this device's records inside shared stores.
	ID   string
	Name string

	Root      *Object
	Mounted   bool
	ReadOnly  bool
	ChunkSize int64

	nextID uint64
}

// NewDevice creates an unmounted device. The root object is created
// by the engine during initialisation, not here.
func NewDevice(name string, chunkSize int64) *Device {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	return &Device{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Name:      name,
		ChunkSize: chunkSize,
		nextID:    RootObjectID,
	}
}

// Lock acquires the device lock. The lock is coarse and
// non-reentrant: every bridge operation holds it for its entire
// duration and the walker never re-acquires it.
func (d *Device) Lock() {
	d.mu.Lock()
}

// Unlock releases the device lock.
func (d *Device) Unlock() {
	d.mu.Unlock()
}

// AllocateID hands out the next object identifier. Called by the
// engine with the device lock held (or before the device is
// published).
func (d *Device) AllocateID() uint64 {
	id := d.nextID
	d.nextID++
	return id
}

// ReserveID advances the identifier counter past id. Used when
// rebuilding a graph from persisted records.
func (d *Device) ReserveID(id uint64) {
	if id >= d.nextID {
		d.nextID = id + 1
	}
}
