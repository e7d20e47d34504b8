package engine

import (
	"context"
	"time"

	"github.com/mwantia/flashfs/data"
	"github.com/mwantia/flashfs/object"
)

// ReadFile reads into buf starting at offset. The request is clipped
// to the current length; chunks that were never written read as
// zeroes.
func (fe *FlashEngine) ReadFile(ctx context.Context, obj *object.Object, offset int64, buf []byte) (int, error) {
	eq := obj.Equivalent()
	if eq == nil || eq.File == nil {
		return 0, data.ErrInvalid
	}
	if offset < 0 {
		return 0, data.ErrInvalid
	}

	length := eq.File.Length
	if offset >= length {
		return 0, nil
	}

	n := int64(len(buf))
	if remaining := length - offset; n > remaining {
		n = remaining
	}

	cs := fe.dev.ChunkSize
	var pos int64
	for pos < n {
		abs := offset + pos
		index := abs / cs
		within := abs % cs

		span := cs - within
		if span > n-pos {
			span = n - pos
		}

		dst := buf[pos : pos+span]
		clear(dst)

		chunk, err := fe.st.ReadChunk(ctx, eq.ID, index)
		if err != nil {
			fe.log.Error("ReadFile: chunk %d/%d failed - %v", eq.ID, index, err)
			return int(pos), err
		}
		if chunk != nil && within < int64(len(chunk)) {
			copy(dst, chunk[within:])
		}

		pos += span
	}

	return int(n), nil
}

// WriteFile writes buf at offset, extending the file as needed.
// Partial chunk spans are merged read-modify-write.
func (fe *FlashEngine) WriteFile(ctx context.Context, obj *object.Object, offset int64, buf []byte) (int, error) {
	eq := obj.Equivalent()
	if eq == nil || eq.File == nil {
		return 0, data.ErrInvalid
	}
	if offset < 0 {
		return 0, data.ErrInvalid
	}
	if len(buf) == 0 {
		return 0, nil
	}

	end := offset + int64(len(buf))
	if max := fe.st.Capabilities().MaxObjectSize; max > 0 && end > max {
		return 0, data.ErrNoSpace
	}

	cs := fe.dev.ChunkSize
	var pos int64
	n := int64(len(buf))

	for pos < n {
		abs := offset + pos
		index := abs / cs
		within := abs % cs

		span := cs - within
		if span > n-pos {
			span = n - pos
		}

		src := buf[pos : pos+span]

		if within == 0 && span == cs {
			// Full chunk, no merge needed.
			if err := fe.st.WriteChunk(ctx, eq.ID, index, src); err != nil {
				return int(pos), err
			}
			pos += span
			continue
		}

		chunk, err := fe.st.ReadChunk(ctx, eq.ID, index)
		if err != nil {
			return int(pos), err
		}
		if int64(len(chunk)) < cs {
			merged := make([]byte, cs)
			copy(merged, chunk)
			chunk = merged
		}
		copy(chunk[within:], src)

		if err := fe.st.WriteChunk(ctx, eq.ID, index, chunk); err != nil {
			fe.log.Error("WriteFile: chunk %d/%d failed - %v", eq.ID, index, err)
			return int(pos), err
		}

		pos += span
	}

	if end > eq.File.Length {
		eq.File.Length = end
	}
	eq.Touch(time.Now())

	if err := fe.st.PutRecord(ctx, fe.record(eq)); err != nil {
		return int(n), err
	}

	return int(n), nil
}

// ResizeFile sets the byte length exactly. Shrinking trims dead
// chunks and zeroes the tail of the last surviving chunk so a later
// extension reads zeroes, not stale bytes. Growing is sparse.
func (fe *FlashEngine) ResizeFile(ctx context.Context, obj *object.Object, length int64) error {
	eq := obj.Equivalent()
	if eq == nil || eq.File == nil {
		return data.ErrInvalid
	}
	if length < 0 {
		return data.ErrInvalid
	}

	if max := fe.st.Capabilities().MaxObjectSize; max > 0 && length > max {
		return data.ErrNoSpace
	}

	cs := fe.dev.ChunkSize
	if length < eq.File.Length {
		firstDead := (length + cs - 1) / cs
		if err := fe.st.TrimChunks(ctx, eq.ID, firstDead); err != nil {
			return err
		}

		if rem := length % cs; rem != 0 {
			index := length / cs
			chunk, err := fe.st.ReadChunk(ctx, eq.ID, index)
			if err != nil {
				return err
			}
			if int64(len(chunk)) > rem {
				clear(chunk[rem:])
				if err := fe.st.WriteChunk(ctx, eq.ID, index, chunk); err != nil {
					return err
				}
			}
		}
	}

	eq.File.Length = length
	eq.Touch(time.Now())

	return fe.st.PutRecord(ctx, fe.record(eq))
}
