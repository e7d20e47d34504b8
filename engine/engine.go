package engine

import (
	"context"

	"github.com/mwantia/flashfs/data"
	"github.com/mwantia/flashfs/engine/store"
	"github.com/mwantia/flashfs/log"
	"github.com/mwantia/flashfs/object"
)

// Engine is the flash-object engine consumed by the VFS bridge. It
// owns every mutation of the object graph and all file content.
//
// Every method expects the device lock to be held by the caller; the
// engine never acquires it itself. All primitives are synchronous.
type Engine interface {
	// Initialise opens the store, rebuilds the object graph from
	// persisted records (creating a fresh root when the store is
	// empty) and marks the device mounted.
	Initialise(ctx context.Context) error

	// Deinitialise flushes dirty state, closes the store and marks
	// the device unmounted.
	Deinitialise(ctx context.Context) error

	// FlushCache persists every dirty object record.
	FlushCache(ctx context.Context) error

	// Device returns the device this engine drives.
	Device() *object.Device

	CreateDirectory(ctx context.Context, parent *object.Object, name string, mode data.FileMode) (*object.Object, error)
	CreateFile(ctx context.Context, parent *object.Object, name string, mode data.FileMode) (*object.Object, error)
	CreateSymlink(ctx context.Context, parent *object.Object, name string, mode data.FileMode, alias string) (*object.Object, error)
	CreateSpecial(ctx context.Context, parent *object.Object, name string, mode data.FileMode, rdev uint64) (*object.Object, error)
	CreateHardlink(ctx context.Context, parent *object.Object, name string, target *object.Object) (*object.Object, error)

	// DeleteObject removes one name from the tree. Non-empty
	// directories are refused with ErrNotEmpty. Deleting an object
	// that still has hardlinks re-homes it into the first hardlink's
	// place instead of destroying it.
	DeleteObject(ctx context.Context, obj *object.Object) error

	// RenameObject moves (old parent, old name) to (new parent, new
	// name). An existing file or empty directory at the destination
	// is deleted first; a non-empty directory refuses the rename.
	RenameObject(ctx context.Context, oldParent *object.Object, oldName string, newParent *object.Object, newName string) error

	// ReadFile reads into buf starting at offset, clipped to the
	// current length. Sparse ranges read as zeroes.
	ReadFile(ctx context.Context, obj *object.Object, offset int64, buf []byte) (int, error)

	// WriteFile writes buf at offset, extending the file as needed.
	WriteFile(ctx context.Context, obj *object.Object, offset int64, buf []byte) (int, error)

	// ResizeFile sets the byte length exactly, trimming or sparsely
	// extending the chunk content.
	ResizeFile(ctx context.Context, obj *object.Object, length int64) error

	// FlushObject persists one object's record and clears its dirty
	// flag.
	FlushObject(ctx context.Context, obj *object.Object) error
}

// FlashEngine is the standard Engine implementation on top of a
// pluggable Store.
type FlashEngine struct {
	dev *object.Device
	st  store.Store
	log *log.Logger
}

// EngineOption configures a FlashEngine.
type EngineOption func(*FlashEngine)

// WithLogger sets the logger used for operation tracing.
func WithLogger(logger *log.Logger) EngineOption {
	return func(fe *FlashEngine) {
		fe.log = logger.Named("engine")
	}
}

// NewEngine creates an engine for the given device and store.
func NewEngine(dev *object.Device, st store.Store, opts ...EngineOption) *FlashEngine {
	fe := &FlashEngine{
		dev: dev,
		st:  st,
		log: log.NewLogger("engine", log.Error, "", false),
	}

	for _, opt := range opts {
		opt(fe)
	}

	return fe
}

// Device returns the device this engine drives.
func (fe *FlashEngine) Device() *object.Device {
	return fe.dev
}

// Initialise opens the store and rebuilds the graph. Called by the
// bridge mount handler with the device lock held.
func (fe *FlashEngine) Initialise(ctx context.Context) error {
	if err := fe.st.Open(ctx); err != nil {
		fe.log.Error("Initialise: failed to open store %s - %v", fe.st.Name(), err)
		return err
	}

	records, err := fe.st.ListRecords(ctx)
	if err != nil {
		fe.log.Error("Initialise: failed to list records - %v", err)
		return err
	}

	if len(records) == 0 {
		if err := fe.createRoot(ctx); err != nil {
			return err
		}
	} else {
		if err := fe.rebuild(records); err != nil {
			fe.log.Error("Initialise: rebuild failed - %v", err)
			return err
		}
	}

	fe.dev.Mounted = true
	fe.log.Debug("Initialise: device %s mounted with %d records", fe.dev.Name, len(records))

	return nil
}

// Deinitialise flushes and closes the store. Called by the bridge
// unmount handler with the device lock held.
func (fe *FlashEngine) Deinitialise(ctx context.Context) error {
	errs := data.Errors{}
	errs.Add(fe.FlushCache(ctx))
	errs.Add(fe.st.Close(ctx))

	fe.dev.Mounted = false
	fe.dev.Root = nil

	fe.log.Debug("Deinitialise: device %s unmounted", fe.dev.Name)
	return errs.Errors()
}

// FlushCache persists every dirty record in the tree, then flushes
// the store itself.
func (fe *FlashEngine) FlushCache(ctx context.Context) error {
	if fe.dev.Root == nil {
		return nil
	}

	errs := data.Errors{}
	fe.flushTree(ctx, fe.dev.Root, &errs)
	errs.Add(fe.st.Flush(ctx))

	return errs.Errors()
}

func (fe *FlashEngine) flushTree(ctx context.Context, obj *object.Object, errs *data.Errors) {
	if obj.Dirty {
		errs.Add(fe.FlushObject(ctx, obj))
	}

	if obj.Dir == nil {
		return
	}
	for entry := obj.Dir.FirstChild(); entry != nil; entry = entry.NextSibling() {
		fe.flushTree(ctx, entry.Object(), errs)
	}
}

// FlushObject persists one object's record and clears its dirty flag.
func (fe *FlashEngine) FlushObject(ctx context.Context, obj *object.Object) error {
	obj = obj.Equivalent()
	if obj == nil {
		return data.ErrNotExist
	}

	if err := fe.st.PutRecord(ctx, fe.record(obj)); err != nil {
		fe.log.Error("FlushObject: failed to persist record %d - %v", obj.ID, err)
		return err
	}

	obj.Dirty = false
	return nil
}

// record derives the persisted form of an object.
func (fe *FlashEngine) record(obj *object.Object) *store.Record {
	rec := &store.Record{
		ID:         obj.ID,
		Name:       obj.Name(),
		Type:       obj.Type,
		Mode:       obj.Mode,
		Rdev:       obj.Rdev,
		AccessTime: obj.AccessTime,
		ModifyTime: obj.ModifyTime,
		ChangeTime: obj.ChangeTime,
	}

	if obj.Parent != nil {
		rec.ParentID = obj.Parent.ID
	}
	if obj.File != nil {
		rec.Length = obj.File.Length
	}
	if obj.Symlink != nil {
		rec.Alias = obj.Symlink.Alias
	}
	if obj.Hardlink != nil && obj.Hardlink.Equivalent != nil {
		rec.EquivalentID = obj.Hardlink.Equivalent.ID
	}

	return rec
}
