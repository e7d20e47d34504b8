package flashfs

import (
	"context"

	"github.com/mwantia/flashfs/data"
)

// NodeHandlers is the per-node handler set attached to a resolved
// location. Two variants exist, one for directories and one for plain
// files and device nodes; members a variant leaves unimplemented fall
// back to the shared defaults.
type NodeHandlers interface {
	Open(ctx context.Context, h *Handle, flags EvalFlags, mode data.FileMode) error
	Close(ctx context.Context, h *Handle) error
	Read(ctx context.Context, h *Handle, buf []byte) (int, error)
	Write(ctx context.Context, h *Handle, buf []byte) (int, error)
	Seek(h *Handle, offset int64, whence int) (int64, error)
	ReadDirectory(ctx context.Context, h *Handle, count int) ([]data.Dirent, error)
	Stat(ctx context.Context, loc *Location) (*data.Stat, error)
	Chmod(ctx context.Context, loc *Location, mode data.FileMode) error
	Truncate(ctx context.Context, h *Handle, length int64) error
	PathConf(h *Handle, name int) (int64, error)
	Sync(ctx context.Context, h *Handle) error
	DataSync(ctx context.Context, h *Handle) error
	Control(ctx context.Context, h *Handle, command uint32, arg any) error
	Remove(ctx context.Context, parent, loc *Location) error
}

// defaultHandlers supplies the fall-back behavior for members a
// variant does not override.
type defaultHandlers struct {
	fs *FileSystem
}

func (defaultHandlers) Open(ctx context.Context, h *Handle, flags EvalFlags, mode data.FileMode) error {
	return nil
}

func (defaultHandlers) Close(ctx context.Context, h *Handle) error {
	return nil
}

func (defaultHandlers) Read(ctx context.Context, h *Handle, buf []byte) (int, error) {
	return 0, data.ErrNotImplemented
}

func (defaultHandlers) Write(ctx context.Context, h *Handle, buf []byte) (int, error) {
	return 0, data.ErrNotImplemented
}

func (defaultHandlers) Seek(h *Handle, offset int64, whence int) (int64, error) {
	return 0, data.ErrNotSupported
}

func (defaultHandlers) ReadDirectory(ctx context.Context, h *Handle, count int) ([]data.Dirent, error) {
	return nil, data.ErrNotDirectory
}

func (d defaultHandlers) Stat(ctx context.Context, loc *Location) (*data.Stat, error) {
	return d.fs.Stat(ctx, loc)
}

func (d defaultHandlers) Chmod(ctx context.Context, loc *Location, mode data.FileMode) error {
	return d.fs.Chmod(ctx, loc, mode)
}

func (defaultHandlers) Truncate(ctx context.Context, h *Handle, length int64) error {
	return data.ErrNotImplemented
}

func (defaultHandlers) PathConf(h *Handle, name int) (int64, error) {
	return 0, data.ErrNotImplemented
}

func (defaultHandlers) Sync(ctx context.Context, h *Handle) error {
	return nil
}

func (defaultHandlers) DataSync(ctx context.Context, h *Handle) error {
	return nil
}

func (defaultHandlers) Control(ctx context.Context, h *Handle, command uint32, arg any) error {
	return data.ErrNotImplemented
}

func (d defaultHandlers) Remove(ctx context.Context, parent, loc *Location) error {
	return d.fs.RemoveNode(ctx, loc)
}

// directoryHandlers serves resolved directories: enumeration reads
// and rewind-only seeks on top of the defaults.
type directoryHandlers struct {
	defaultHandlers
}

func (d directoryHandlers) ReadDirectory(ctx context.Context, h *Handle, count int) ([]data.Dirent, error) {
	return d.fs.readDirectory(ctx, h, count)
}

func (d directoryHandlers) Seek(h *Handle, offset int64, whence int) (int64, error) {
	return d.fs.seekDirectory(h, offset, whence)
}

// fileHandlers serves plain files and device nodes: clipped reads,
// writes, full seek support and truncation.
type fileHandlers struct {
	defaultHandlers
}

func (f fileHandlers) Read(ctx context.Context, h *Handle, buf []byte) (int, error) {
	return f.fs.readFile(ctx, h, buf)
}

func (f fileHandlers) Write(ctx context.Context, h *Handle, buf []byte) (int, error) {
	return f.fs.writeFile(ctx, h, buf)
}

func (f fileHandlers) Seek(h *Handle, offset int64, whence int) (int64, error) {
	return f.fs.seekFile(h, offset, whence)
}

func (f fileHandlers) Truncate(ctx context.Context, h *Handle, length int64) error {
	return f.fs.truncateFile(ctx, h, length)
}
