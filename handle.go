package flashfs

import (
	"context"

	"github.com/mwantia/flashfs/data"
	"github.com/mwantia/flashfs/object"
)

// Handle is one open file or directory description: the resolved
// location plus the transient cursor state its handlers maintain.
// Handles are not safe for concurrent use.
type Handle struct {
	loc    *Location
	offset int64
	size   int64

	// next is the directory enumeration cursor: the child entry the
	// next read yields, nil once the end of the list was reached. It
	// is not lock-protected between calls, so concurrent mutation of
	// the directory can make enumeration skip or repeat entries.
	next *object.ChildEntry

	closed bool
}

// Open attaches a handle to the resolved location and runs the
// variant's open handler.
func (l *Location) Open(ctx context.Context, flags EvalFlags, mode data.FileMode) (*Handle, error) {
	l.fs.dev.Lock()
	size := l.obj.Length()
	l.fs.dev.Unlock()

	h := &Handle{loc: l, size: size}
	if err := l.handlers.Open(ctx, h, flags, mode); err != nil {
		return nil, err
	}

	return h, nil
}

// Location returns the resolved location this handle was opened on.
func (h *Handle) Location() *Location {
	return h.loc
}

// Offset returns the current byte offset.
func (h *Handle) Offset() int64 {
	return h.offset
}

// Size returns the caller-visible size: the length observed at open
// time, advanced by writes and set exactly by truncation.
func (h *Handle) Size() int64 {
	return h.size
}

func (h *Handle) Read(ctx context.Context, buf []byte) (int, error) {
	if h.closed {
		return 0, data.ErrClosed
	}
	return h.loc.handlers.Read(ctx, h, buf)
}

func (h *Handle) Write(ctx context.Context, buf []byte) (int, error) {
	if h.closed {
		return 0, data.ErrClosed
	}
	return h.loc.handlers.Write(ctx, h, buf)
}

func (h *Handle) Seek(offset int64, whence int) (int64, error) {
	if h.closed {
		return 0, data.ErrClosed
	}
	return h.loc.handlers.Seek(h, offset, whence)
}

// ReadDirectory yields up to count/DirentSize entries from the
// directory cursor; zero entries signal end-of-directory.
func (h *Handle) ReadDirectory(ctx context.Context, count int) ([]data.Dirent, error) {
	if h.closed {
		return nil, data.ErrClosed
	}
	return h.loc.handlers.ReadDirectory(ctx, h, count)
}

func (h *Handle) Truncate(ctx context.Context, length int64) error {
	if h.closed {
		return data.ErrClosed
	}
	return h.loc.handlers.Truncate(ctx, h, length)
}

func (h *Handle) Sync(ctx context.Context) error {
	if h.closed {
		return data.ErrClosed
	}
	return h.loc.handlers.Sync(ctx, h)
}

func (h *Handle) Close(ctx context.Context) error {
	if h.closed {
		return data.ErrClosed
	}
	h.closed = true
	return h.loc.handlers.Close(ctx, h)
}
