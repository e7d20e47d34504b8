package flashfs

import (
	"context"
	"errors"
	"fmt"

	"github.com/mwantia/flashfs/data"
	"github.com/mwantia/flashfs/engine"
	"github.com/mwantia/flashfs/engine/store"
	"github.com/mwantia/flashfs/log"
	"github.com/mwantia/flashfs/object"
)

// FileSystem is one flash filesystem instance: the bridge between
// host-style filesystem requests and the object engine driving a
// device. Every operation that touches the object graph serializes on
// the device's single lock for its entire duration.
type FileSystem struct {
	dev *object.Device
	eng engine.Engine
	log *log.Logger

	// host and mountPoint are set while the filesystem is mounted in
	// a MountTable; resolution that walks past the root re-dispatches
	// through them.
	host       *MountTable
	mountPoint string
}

// EvalFlags carries the caller's open intent through path resolution.
// The bridge never interprets the flags; they are reproduced unchanged
// when resolution re-dispatches across a mount boundary.
type EvalFlags uint32

// Location is a resolved position in the tree: the object plus the
// handler set matching its variant.
type Location struct {
	fs       *FileSystem
	obj      *object.Object
	handlers NodeHandlers
}

// New creates an unmounted filesystem over the given store.
func New(name string, st store.Store, opts ...FileSystemOption) (*FileSystem, error) {
	options := newDefaultFileSystemOptions()
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}

	logger := log.NewLogger("flashfs", options.LogLevel, options.LogFile, options.NoTerminalLog)

	dev := object.NewDevice(name, options.ChunkSize)
	dev.ReadOnly = options.ReadOnly

	return &FileSystem{
		dev: dev,
		eng: engine.NewEngine(dev, st, engine.WithLogger(logger)),
		log: logger,
	}, nil
}

// Device returns the device this filesystem drives.
func (fs *FileSystem) Device() *object.Device {
	return fs.dev
}

// Engine exposes the underlying object engine. Callers using it
// directly must hold the device lock, as every bridge operation does.
func (fs *FileSystem) Engine() engine.Engine {
	return fs.eng
}

// Mount initialises the engine for the device and flushes caches.
// An initialisation failure reports ErrMountFailed.
func (fs *FileSystem) Mount(ctx context.Context) error {
	fs.dev.Lock()
	defer fs.dev.Unlock()

	if fs.dev.Mounted {
		return fmt.Errorf("%w: %s", data.ErrAlreadyMounted, fs.dev.Name)
	}

	if err := fs.eng.Initialise(ctx); err != nil {
		if errors.Is(err, data.ErrMountFailed) {
			return err
		}
		return fmt.Errorf("%w: %v", data.ErrMountFailed, err)
	}

	if err := fs.eng.FlushCache(ctx); err != nil {
		fs.log.Warn("Mount: initial cache flush failed - %v", err)
	}

	fs.log.Info("Mount: device %s ready", fs.dev.Name)
	return nil
}

// Unmount flushes caches and tears the engine down. Cleanup failures
// are joined; the device ends up unmounted regardless.
func (fs *FileSystem) Unmount(ctx context.Context) error {
	fs.dev.Lock()
	defer fs.dev.Unlock()

	if !fs.dev.Mounted {
		return fmt.Errorf("%w: %s", data.ErrNotMounted, fs.dev.Name)
	}

	err := fs.eng.Deinitialise(ctx)

	fs.log.Info("Unmount: device %s released", fs.dev.Name)
	return err
}
