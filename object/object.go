package object

import (
	"time"

	"github.com/mwantia/flashfs/data"
)

// Object is a node in the filesystem tree. Exactly one variant field
// matching Type is populated. The node does not store its own name;
// the name lives in the parent's child list and is re-derived on
// demand (see Name).
//
// No Object may be read or mutated without the owning Device's lock
// held. The only exceptions are the engine's rebuild phase before the
// device is published and handle-local bookkeeping.
type Object struct {
	ID     uint64
	Device *Device
	Parent *Object

	Type data.ObjectType
	Mode data.FileMode
	Rdev uint64

	AccessTime time.Time
	ModifyTime time.Time
	ChangeTime time.Time

	// Dirty marks in-memory state not yet persisted by the engine.
	Dirty bool

	Dir      *DirectoryVariant
	File     *FileVariant
	Symlink  *SymlinkVariant
	Hardlink *HardlinkVariant

	// entry is this object's position in its parent's child list.
	// Nil for the root and for detached objects.
	entry *ChildEntry

	// hardlinks lists the hardlink objects whose Equivalent points
	// at this object. Maintained by the engine.
	hardlinks []*Object
}

// FileVariant carries the byte length of a regular file or special
// node. The chunk content itself lives in the engine's store.
type FileVariant struct {
	Length int64
}

// SymlinkVariant holds the alias string of a symbolic link, resolved
// lazily by the path walker.
type SymlinkVariant struct {
	Alias string
}

// HardlinkVariant holds a non-owning reference to the object this
// hardlink aliases. Equivalent never points at another hardlink;
// indirection is resolved once, at creation.
type HardlinkVariant struct {
	Equivalent *Object
}

// New creates a detached object of the given variant. The caller (the
// engine) attaches it to a parent directory afterwards.
func New(dev *Device, id uint64, typ data.ObjectType, mode data.FileMode) *Object {
	now := time.Now()
	obj := &Object{
		ID:         id,
		Device:     dev,
		Type:       typ,
		Mode:       mode.WithType(typ),
		AccessTime: now,
		ModifyTime: now,
		ChangeTime: now,
	}

	switch typ {
	case data.ObjectTypeDirectory:
		obj.Dir = newDirectoryVariant()
	case data.ObjectTypeFile, data.ObjectTypeSpecial:
		obj.File = &FileVariant{}
	case data.ObjectTypeSymlink:
		obj.Symlink = &SymlinkVariant{}
	case data.ObjectTypeHardlink:
		obj.Hardlink = &HardlinkVariant{}
	}

	return obj
}

// Name re-derives this object's name from its position in the parent's
// child list. The root (and any detached object) has the empty name.
func (o *Object) Name() string {
	if o == nil || o.entry == nil {
		return ""
	}
	return o.entry.name
}

// Equivalent resolves hardlink indirection. For a hardlink it returns
// the aliased object; for every other variant it returns the object
// itself. The result is never another hardlink. Must be called with
// the device lock already held; it never re-acquires it.
func (o *Object) Equivalent() *Object {
	if o == nil {
		return nil
	}
	if o.Type == data.ObjectTypeHardlink && o.Hardlink != nil {
		return o.Hardlink.Equivalent
	}
	return o
}

// LinkCount reports the number of names referring to this object:
// itself plus every hardlink aliasing it.
func (o *Object) LinkCount() int {
	return 1 + len(o.hardlinks)
}

// Hardlinks returns the hardlink objects aliasing this object.
func (o *Object) Hardlinks() []*Object {
	return o.hardlinks
}

// AddHardlink registers a hardlink object as aliasing this object.
func (o *Object) AddHardlink(link *Object) {
	o.hardlinks = append(o.hardlinks, link)
}

// RemoveHardlink unregisters a hardlink object.
func (o *Object) RemoveHardlink(link *Object) {
	for i, hl := range o.hardlinks {
		if hl == link {
			o.hardlinks = append(o.hardlinks[:i], o.hardlinks[i+1:]...)
			return
		}
	}
}

// Length returns the byte length for file and special variants,
// resolving hardlink indirection first. Directories and symlinks
// report zero.
func (o *Object) Length() int64 {
	eq := o.Equivalent()
	if eq != nil && eq.File != nil {
		return eq.File.Length
	}
	return 0
}

// Touch updates the modify and change timestamps and marks the object
// dirty. Setting the dirty flag is idempotent.
func (o *Object) Touch(t time.Time) {
	o.ModifyTime = t
	o.ChangeTime = t
	o.Dirty = true
}
