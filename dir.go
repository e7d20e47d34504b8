package flashfs

import (
	"context"
	"io"

	"github.com/mwantia/flashfs/data"
)

// readDirectory yields up to count/DirentSize entries, advancing the
// handle's cursor along the sibling list. A read at offset zero
// positions the cursor at the first child; reaching the end of the
// list sets it to none, so the next call yields zero entries.
func (fs *FileSystem) readDirectory(ctx context.Context, h *Handle, count int) ([]data.Dirent, error) {
	obj := h.loc.obj
	if obj.Type != data.ObjectTypeDirectory {
		return nil, data.ErrNotDirectory
	}

	maxCount := count / data.DirentSize

	fs.dev.Lock()
	defer fs.dev.Unlock()

	if h.offset == 0 {
		h.next = obj.Dir.FirstChild()
	}

	entries := make([]data.Dirent, 0, maxCount)
	for len(entries) < maxCount && h.next != nil {
		target := h.next.Object().Equivalent()
		entries = append(entries, data.NewDirent(target.ID, h.next.Name()))

		h.next = h.next.NextSibling()
	}

	h.offset += int64(len(entries) * data.DirentSize)
	return entries, nil
}

// seekDirectory supports nothing but an explicit rewind to the start.
func (fs *FileSystem) seekDirectory(h *Handle, offset int64, whence int) (int64, error) {
	if whence != io.SeekStart || offset != 0 {
		return 0, data.ErrNotSupported
	}

	h.offset = 0
	return 0, nil
}
