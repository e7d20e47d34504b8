package flashfs

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/mwantia/flashfs/data"
)

// readFile clips the request to the bytes between the current offset
// and the engine-reported length, then forwards it. A request at or
// past the end returns zero bytes, not an error.
func (fs *FileSystem) readFile(ctx context.Context, h *Handle, buf []byte) (int, error) {
	obj := h.loc.obj

	fs.dev.Lock()
	defer fs.dev.Unlock()

	var maxRead int64
	if length := obj.Length(); h.offset < length {
		maxRead = length - h.offset
	}

	count := int64(len(buf))
	if count > maxRead {
		count = maxRead
	}
	if count == 0 {
		return 0, nil
	}

	n, err := fs.eng.ReadFile(ctx, obj, h.offset, buf[:count])
	if err != nil {
		return n, fmt.Errorf("%w: %v", data.ErrNoSpace, err)
	}

	h.offset += int64(n)
	return n, nil
}

// writeFile forwards the request verbatim; the engine extends the
// file as needed.
func (fs *FileSystem) writeFile(ctx context.Context, h *Handle, buf []byte) (int, error) {
	if fs.dev.ReadOnly {
		return 0, data.ErrReadOnly
	}

	obj := h.loc.obj

	fs.dev.Lock()
	defer fs.dev.Unlock()

	n, err := fs.eng.WriteFile(ctx, obj, h.offset, buf)
	if err != nil {
		if errors.Is(err, data.ErrNoSpace) {
			return n, err
		}
		return n, fmt.Errorf("%w: %v", data.ErrNoSpace, err)
	}

	h.offset += int64(n)
	if h.offset > h.size {
		h.size = h.offset
	}

	return n, nil
}

// seekFile repositions the offset. SeekEnd reads the length under the
// device lock because it may be concurrently mutated.
func (fs *FileSystem) seekFile(h *Handle, offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		h.offset = offset
	case io.SeekCurrent:
		h.offset += offset
	case io.SeekEnd:
		fs.dev.Lock()
		h.offset = h.loc.obj.Length() + offset
		fs.dev.Unlock()
	default:
		return 0, data.ErrInvalid
	}

	return h.offset, nil
}

// truncateFile resizes through the engine. On success the
// caller-visible size follows the requested length exactly, whatever
// the engine rounds internally.
func (fs *FileSystem) truncateFile(ctx context.Context, h *Handle, length int64) error {
	fs.dev.Lock()
	defer fs.dev.Unlock()

	if err := fs.eng.ResizeFile(ctx, h.loc.obj, length); err != nil {
		return fmt.Errorf("%w: %v", data.ErrIO, err)
	}

	h.size = length
	return nil
}
