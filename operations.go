package flashfs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mwantia/flashfs/data"
	"github.com/mwantia/flashfs/object"
)

// EvalPath resolves path starting at start (the device root when start
// is nil) and attaches the handler set matching the resolved variant.
// A resolution that walks past this filesystem's root re-dispatches at
// the mount point above, reproducing the caller's flags unchanged.
func (fs *FileSystem) EvalPath(ctx context.Context, start *Location, path string, flags EvalFlags) (*Location, error) {
	var startObj *object.Object
	if start != nil {
		startObj = start.obj
	}

	fs.dev.Lock()
	res := fs.findObject(startObj, path, 0)
	fs.dev.Unlock()

	switch res.kind {
	case resolutionNotFound:
		return nil, fmt.Errorf("%w: %s", data.ErrNotExist, path)
	case resolutionBoundary:
		if fs.host == nil {
			return nil, fmt.Errorf("%w: %s", data.ErrNotExist, path)
		}
		return fs.host.redispatch(ctx, fs, res.remainder, flags)
	}

	return fs.location(res.obj)
}

// location wraps a resolved object with its handler table. Symlinks
// and hardlinks can only come out of resolution through the
// single-component short-circuit; they carry no handler set.
func (fs *FileSystem) location(obj *object.Object) (*Location, error) {
	loc := &Location{fs: fs, obj: obj}

	switch obj.Type {
	case data.ObjectTypeDirectory:
		loc.handlers = directoryHandlers{defaultHandlers{fs}}
	case data.ObjectTypeFile, data.ObjectTypeSpecial:
		loc.handlers = fileHandlers{defaultHandlers{fs}}
	default:
		return nil, fmt.Errorf("%w: cannot open %s object", data.ErrNotImplemented, obj.Type)
	}

	return loc, nil
}

// EvalPathForMake splits path into a resolved parent directory and the
// unresolved leaf name for a subsequent creation call. Trailing
// separators are stripped before the split.
func (fs *FileSystem) EvalPathForMake(ctx context.Context, start *Location, path string, flags EvalFlags) (*Location, string, error) {
	trimmed := strings.TrimRight(path, "/")

	i := strings.LastIndexByte(trimmed, '/')
	if i < 0 {
		parent, err := fs.EvalPath(ctx, start, ".", flags)
		if err != nil {
			return nil, "", err
		}
		if parent.obj.Type != data.ObjectTypeDirectory {
			return nil, "", fmt.Errorf("%w: not a directory", data.ErrInvalid)
		}
		return parent, trimmed, nil
	}

	parent, err := fs.EvalPath(ctx, start, trimmed[:i], flags)
	if err != nil {
		return nil, "", err
	}
	if parent.obj.Type != data.ObjectTypeDirectory {
		return nil, "", fmt.Errorf("%w: %s is not a directory", data.ErrInvalid, trimmed[:i])
	}

	return parent, trimmed[i+1:], nil
}

// Mknod creates a directory or regular file named name under the
// resolved parent. Any other type bit in mode is unsupported; link
// and special objects are created through the engine primitives.
//
// Resolution can hand back a location owned by the filesystem mounted
// above this one; the operation then runs on that device, not here.
func (fs *FileSystem) Mknod(ctx context.Context, parent *Location, name string, mode data.FileMode, rdev uint64) error {
	if parent.fs != fs {
		return parent.fs.Mknod(ctx, parent, name, mode, rdev)
	}

	if i := strings.IndexByte(name, '/'); i >= 0 {
		name = name[:i]
	}

	if fs.dev.ReadOnly {
		return data.ErrReadOnly
	}

	fs.dev.Lock()
	defer fs.dev.Unlock()

	dir := parent.obj
	if dir.Type != data.ObjectTypeDirectory {
		return data.ErrNotDirectory
	}
	if dir.Dir.Find(name) != nil {
		return fmt.Errorf("%w: %s", data.ErrExist, name)
	}

	switch {
	case mode.IsDir():
		if _, err := fs.eng.CreateDirectory(ctx, dir, name, mode); err != nil {
			// Assume the engine ran out of space.
			return fmt.Errorf("%w: %v", data.ErrNoSpace, err)
		}
	case mode.IsRegular():
		if _, err := fs.eng.CreateFile(ctx, dir, name, mode); err != nil {
			return fmt.Errorf("%w: %v", data.ErrNoSpace, err)
		}
	default:
		fs.log.Warn("Mknod: unsupported type bits %o for %q", mode.Type(), name)
		return data.ErrNotImplemented
	}

	return nil
}

// MakeNode resolves the parent of path and creates the leaf with the
// given mode.
func (fs *FileSystem) MakeNode(ctx context.Context, path string, mode data.FileMode, rdev uint64) error {
	parent, name, err := fs.EvalPathForMake(ctx, nil, path, 0)
	if err != nil {
		return err
	}
	return fs.Mknod(ctx, parent, name, mode, rdev)
}

// RemoveNode removes the object at loc from the tree. Engine refusal
// without a clearer cause reads as a non-empty directory to the host.
func (fs *FileSystem) RemoveNode(ctx context.Context, loc *Location) error {
	if loc.fs != fs {
		return loc.fs.RemoveNode(ctx, loc)
	}
	if fs.dev.ReadOnly {
		return data.ErrReadOnly
	}

	fs.dev.Lock()
	defer fs.dev.Unlock()

	if err := fs.eng.DeleteObject(ctx, loc.obj); err != nil {
		if errors.Is(err, data.ErrNotEmpty) || errors.Is(err, data.ErrBusy) || errors.Is(err, data.ErrNotExist) {
			return err
		}
		return fmt.Errorf("%w: %v", data.ErrNotEmpty, err)
	}

	return nil
}

// Unlink removes one name; hardlink-resolved targets that still carry
// other names survive inside the engine.
func (fs *FileSystem) Unlink(ctx context.Context, parent, loc *Location) error {
	return fs.RemoveNode(ctx, loc)
}

// Rename moves the object at oldLoc under newParent with the given
// name. Both locations must live on the same device; engine failure
// surfaces as an I/O error.
func (fs *FileSystem) Rename(ctx context.Context, oldLoc, newParent *Location, name string) error {
	if oldLoc.fs != newParent.fs {
		return fmt.Errorf("%w: cross-device rename", data.ErrNotSupported)
	}
	if oldLoc.fs != fs {
		return oldLoc.fs.Rename(ctx, oldLoc, newParent, name)
	}

	if fs.dev.ReadOnly {
		return data.ErrReadOnly
	}

	fs.dev.Lock()
	defer fs.dev.Unlock()

	obj := oldLoc.obj
	if obj.Parent == nil {
		return data.ErrBusy
	}

	oldName := obj.Name()
	if err := fs.eng.RenameObject(ctx, obj.Parent, oldName, newParent.obj, name); err != nil {
		if errors.Is(err, data.ErrNotEmpty) {
			return err
		}
		return fmt.Errorf("%w: rename %q: %v", data.ErrIO, oldName, err)
	}

	return nil
}

// Stat reports the status record of the hardlink-resolved object.
func (fs *FileSystem) Stat(ctx context.Context, loc *Location) (*data.Stat, error) {
	if loc.fs != fs {
		return loc.fs.Stat(ctx, loc)
	}

	fs.dev.Lock()
	defer fs.dev.Unlock()

	obj := loc.obj.Equivalent()
	if obj == nil {
		return nil, data.ErrNotExist
	}

	size := obj.Length()
	blockSize := fs.dev.ChunkSize

	return &data.Stat{
		ID:        obj.ID,
		Mode:      obj.Mode.Perm().WithType(obj.Type),
		Rdev:      obj.Rdev,
		LinkCount: obj.LinkCount(),
		Size:      size,
		BlockSize: blockSize,
		Blocks:    (size + blockSize - 1) / blockSize,

		AccessTime: obj.AccessTime,
		ModifyTime: obj.ModifyTime,
		ChangeTime: obj.ChangeTime,
	}, nil
}

// Chmod replaces the permission bits. Bits outside the permission
// range are rejected; the change persists through the engine.
func (fs *FileSystem) Chmod(ctx context.Context, loc *Location, mode data.FileMode) error {
	if loc.fs != fs {
		return loc.fs.Chmod(ctx, loc, mode)
	}
	if mode&^data.ModePerm != 0 {
		return fmt.Errorf("%w: mode bits outside permission range", data.ErrInvalid)
	}
	if fs.dev.ReadOnly {
		return data.ErrReadOnly
	}

	fs.dev.Lock()
	defer fs.dev.Unlock()

	obj := loc.obj.Equivalent()
	if obj == nil {
		return data.ErrIO
	}

	obj.Mode = obj.Mode&^data.ModePerm | mode
	obj.Dirty = true

	if err := fs.eng.FlushObject(ctx, obj); err != nil {
		return fmt.Errorf("%w: %v", data.ErrIO, err)
	}

	return nil
}

// UpdateTimes sets the access and modify timestamps. The status-change
// time follows the access time. Never fails once the lock is held.
func (fs *FileSystem) UpdateTimes(ctx context.Context, loc *Location, atime, mtime time.Time) error {
	if loc.fs != fs {
		return loc.fs.UpdateTimes(ctx, loc, atime, mtime)
	}

	fs.dev.Lock()
	defer fs.dev.Unlock()

	if obj := loc.obj.Equivalent(); obj != nil {
		obj.Dirty = true
		obj.AccessTime = atime
		obj.ChangeTime = atime
		obj.ModifyTime = mtime
	}

	return nil
}

// Chown is accepted and does nothing; ownership is not implemented.
func (fs *FileSystem) Chown(ctx context.Context, loc *Location, uid, gid int) error {
	return nil
}

// NodeType reports the variant of the resolved object.
func (fs *FileSystem) NodeType(loc *Location) (data.ObjectType, error) {
	if loc.obj.Type == data.ObjectTypeUnknown {
		return data.ObjectTypeUnknown, data.ErrInvalid
	}
	return loc.obj.Type, nil
}

// FreeNode releases host-side resolution state. Locations hold no
// host resources, so there is nothing to do.
func (fs *FileSystem) FreeNode(loc *Location) error {
	return nil
}

// MakeSymlink creates a symlink at path through the engine primitive.
// The bridge's own symlink table entry stays unimplemented. The link
// is created on the device owning the resolved parent.
func (fs *FileSystem) MakeSymlink(ctx context.Context, path, alias string) error {
	parent, name, err := fs.EvalPathForMake(ctx, nil, path, 0)
	if err != nil {
		return err
	}

	owner := parent.fs
	if owner.dev.ReadOnly {
		return data.ErrReadOnly
	}

	owner.dev.Lock()
	defer owner.dev.Unlock()

	_, err = owner.eng.CreateSymlink(ctx, parent.obj, name, 0777, alias)
	return err
}

// MakeHardlink creates a hardlink at path aliasing the object at
// target, through the engine primitive. Path and target must resolve
// onto the same device.
func (fs *FileSystem) MakeHardlink(ctx context.Context, path, target string) error {
	parent, name, err := fs.EvalPathForMake(ctx, nil, path, 0)
	if err != nil {
		return err
	}
	targetLoc, err := fs.EvalPath(ctx, nil, target, 0)
	if err != nil {
		return err
	}
	if parent.fs != targetLoc.fs {
		return fmt.Errorf("%w: cross-device link", data.ErrNotSupported)
	}

	owner := parent.fs
	if owner.dev.ReadOnly {
		return data.ErrReadOnly
	}

	owner.dev.Lock()
	defer owner.dev.Unlock()

	_, err = owner.eng.CreateHardlink(ctx, parent.obj, name, targetLoc.obj)
	return err
}

// The remaining operation-table entries exist in the surface but are
// not implemented by this bridge. Symlink and hardlink objects are
// created through the engine primitives directly.

func (fs *FileSystem) Link(ctx context.Context, to, parent *Location, name string) error {
	return data.ErrNotImplemented
}

func (fs *FileSystem) Symlink(ctx context.Context, parent *Location, linkName, nodeName string) error {
	return data.ErrNotImplemented
}

func (fs *FileSystem) Readlink(ctx context.Context, loc *Location) (string, error) {
	return "", data.ErrNotImplemented
}

func (fs *FileSystem) EvalLink(ctx context.Context, loc *Location, flags EvalFlags) (*Location, error) {
	return nil, data.ErrNotImplemented
}

func (fs *FileSystem) StatVFS(ctx context.Context, loc *Location) error {
	return data.ErrNotImplemented
}
