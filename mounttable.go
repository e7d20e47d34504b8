package flashfs

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mwantia/flashfs/data"
	"github.com/mwantia/flashfs/log"
)

// MountTable is the host-side mount bookkeeping: filesystems mounted
// at paths, longest-prefix resolution of request paths, and the
// re-dispatch of resolutions that walk past a filesystem's root.
type MountTable struct {
	mu     sync.RWMutex
	mounts map[string]*mountEntry
	log    *log.Logger
}

type mountEntry struct {
	fs   *FileSystem
	info MountInfo
}

// MountInfo describes one active mount.
type MountInfo struct {
	Path      string
	Device    string
	ReadOnly  bool
	MountedAt time.Time
}

func NewMountTable() *MountTable {
	return &MountTable{
		mounts: make(map[string]*mountEntry),
		log:    log.NewLogger("flashfs/mounts", log.Error, "", false),
	}
}

// Mount initialises fs and publishes it at path. Returns
// ErrAlreadyMounted if the path is taken and ErrMountFailed when the
// engine refuses to initialise.
func (mt *MountTable) Mount(ctx context.Context, path string, fs *FileSystem) error {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	path = cleanPath(path)

	if _, exists := mt.mounts[path]; exists {
		return fmt.Errorf("%w: /%s", data.ErrAlreadyMounted, path)
	}

	if err := fs.Mount(ctx); err != nil {
		return err
	}

	fs.host = mt
	fs.mountPoint = path

	mt.mounts[path] = &mountEntry{
		fs: fs,
		info: MountInfo{
			Path:      "/" + path,
			Device:    fs.dev.Name,
			ReadOnly:  fs.dev.ReadOnly,
			MountedAt: time.Now(),
		},
	}

	mt.log.Info("Mount: %s at /%s", fs.dev.Name, path)
	return nil
}

// Unmount tears down the filesystem at path. Returns ErrMountBusy
// while child mounts exist below it.
func (mt *MountTable) Unmount(ctx context.Context, path string) error {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	path = cleanPath(path)

	entry, exists := mt.mounts[path]
	if !exists {
		return fmt.Errorf("%w: /%s", data.ErrNotMounted, path)
	}
	if mt.hasChildMounts(path) {
		return fmt.Errorf("%w: /%s has child mounts", data.ErrMountBusy, path)
	}

	err := entry.fs.Unmount(ctx)

	entry.fs.host = nil
	entry.fs.mountPoint = ""
	delete(mt.mounts, path)

	mt.log.Info("Unmount: /%s", path)
	return err
}

// Mounts returns information about every active mount, ordered by
// path.
func (mt *MountTable) Mounts() []MountInfo {
	mt.mu.RLock()
	defer mt.mu.RUnlock()

	infos := make([]MountInfo, 0, len(mt.mounts))
	for _, entry := range mt.mounts {
		infos = append(infos, entry.info)
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Path < infos[j].Path
	})

	return infos
}

// hasChildMounts reports whether any mount lies strictly below
// parent. Must be called with the table lock held.
func (mt *MountTable) hasChildMounts(parent string) bool {
	for mountPoint := range mt.mounts {
		if mountPoint != parent && hasPrefix(mountPoint, parent) {
			return true
		}
	}
	return false
}

// resolve maps a table path to the longest-prefix mount and the
// remaining path relative to it.
func (mt *MountTable) resolve(path string) (*FileSystem, string, error) {
	mt.mu.RLock()
	defer mt.mu.RUnlock()

	path = cleanPath(path)

	best := ""
	matched := false
	for mountPoint := range mt.mounts {
		if hasPrefix(path, mountPoint) && (!matched || len(mountPoint) > len(best)) {
			best = mountPoint
			matched = true
		}
	}

	if !matched {
		return nil, "", fmt.Errorf("%w: no mount for /%s", data.ErrNotMounted, path)
	}

	return mt.mounts[best].fs, trimPrefix(path, best), nil
}

// parentOf finds the filesystem holding a mount point: the longest
// mount that is a strict prefix of path.
func (mt *MountTable) parentOf(path string) (*FileSystem, string, error) {
	mt.mu.RLock()
	defer mt.mu.RUnlock()

	best := ""
	matched := false
	for mountPoint := range mt.mounts {
		if mountPoint != path && hasPrefix(path, mountPoint) && (!matched || len(mountPoint) > len(best)) {
			best = mountPoint
			matched = true
		}
	}

	if !matched {
		return nil, "", fmt.Errorf("%w: nothing mounted above /%s", data.ErrNotExist, path)
	}

	return mt.mounts[best].fs, trimPrefix(path, best), nil
}

// redispatch continues a resolution that walked past fs's root: it
// restores the ".." that crossed the boundary and evaluates it from
// the mount point location in the parent filesystem, with the
// caller's flags unchanged.
func (mt *MountTable) redispatch(ctx context.Context, fs *FileSystem, remainder string, flags EvalFlags) (*Location, error) {
	parent, mountRel, err := mt.parentOf(fs.mountPoint)
	if err != nil {
		return nil, err
	}

	at, err := parent.EvalPath(ctx, nil, mountRel, flags)
	if err != nil {
		return nil, err
	}

	path := ".."
	if remainder != "" {
		path = "../" + remainder
	}

	return parent.EvalPath(ctx, at, path, flags)
}

// EvalPath resolves a table path through the responsible filesystem.
func (mt *MountTable) EvalPath(ctx context.Context, path string, flags EvalFlags) (*Location, error) {
	fs, rel, err := mt.resolve(path)
	if err != nil {
		return nil, err
	}
	return fs.EvalPath(ctx, nil, rel, flags)
}

// Open resolves a table path and opens a handle on the result.
func (mt *MountTable) Open(ctx context.Context, path string, flags EvalFlags, mode data.FileMode) (*Handle, error) {
	loc, err := mt.EvalPath(ctx, path, flags)
	if err != nil {
		return nil, err
	}
	return loc.Open(ctx, flags, mode)
}

// Stat resolves a table path and reports its status record.
func (mt *MountTable) Stat(ctx context.Context, path string) (*data.Stat, error) {
	loc, err := mt.EvalPath(ctx, path, 0)
	if err != nil {
		return nil, err
	}
	return loc.fs.Stat(ctx, loc)
}

// MakeNode creates a directory or regular file at a table path.
func (mt *MountTable) MakeNode(ctx context.Context, path string, mode data.FileMode, rdev uint64) error {
	fs, rel, err := mt.resolve(path)
	if err != nil {
		return err
	}
	return fs.MakeNode(ctx, rel, mode, rdev)
}

// Remove removes the object at a table path.
func (mt *MountTable) Remove(ctx context.Context, path string) error {
	loc, err := mt.EvalPath(ctx, path, 0)
	if err != nil {
		return err
	}
	return loc.fs.RemoveNode(ctx, loc)
}

// MakeSymlink creates a symlink at a table path. The alias is
// interpreted inside the owning filesystem.
func (mt *MountTable) MakeSymlink(ctx context.Context, path, alias string) error {
	fs, rel, err := mt.resolve(path)
	if err != nil {
		return err
	}
	return fs.MakeSymlink(ctx, rel, alias)
}

// MakeHardlink creates a hardlink at a table path. Path and target
// must resolve to the same mounted filesystem.
func (mt *MountTable) MakeHardlink(ctx context.Context, path, target string) error {
	fs, rel, err := mt.resolve(path)
	if err != nil {
		return err
	}
	targetFs, targetRel, err := mt.resolve(target)
	if err != nil {
		return err
	}
	if fs != targetFs {
		return fmt.Errorf("%w: cross-device link", data.ErrNotSupported)
	}
	return fs.MakeHardlink(ctx, rel, targetRel)
}

// Rename moves oldPath to newPath. Both must resolve to the same
// mounted filesystem; cross-device renames are not supported.
func (mt *MountTable) Rename(ctx context.Context, oldPath, newPath string) error {
	oldFs, oldRel, err := mt.resolve(oldPath)
	if err != nil {
		return err
	}
	newFs, newRel, err := mt.resolve(newPath)
	if err != nil {
		return err
	}
	if oldFs != newFs {
		return fmt.Errorf("%w: cross-device rename", data.ErrNotSupported)
	}

	oldLoc, err := oldFs.EvalPath(ctx, nil, oldRel, 0)
	if err != nil {
		return err
	}
	newParent, name, err := newFs.EvalPathForMake(ctx, nil, newRel, 0)
	if err != nil {
		return err
	}

	// Resolution may have crossed a boundary; the owner of the source
	// location carries the rename.
	return oldLoc.fs.Rename(ctx, oldLoc, newParent, name)
}
