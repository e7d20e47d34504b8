package object

import (
	"github.com/mwantia/flashfs/data"
	"github.com/tidwall/btree"
)

// ChildEntry is one slot in a directory's child list. Entries form a
// doubly-linked ring around an unnamed sentinel so that insertion
// order is preserved for enumeration, while a btree index provides
// exact-name lookup.
type ChildEntry struct {
	name string
	obj  *Object

	prev, next *ChildEntry
	sentinel   bool
}

// Name returns the child's name as stored in the parent's list.
func (e *ChildEntry) Name() string {
	return e.name
}

// Object returns the child object occupying this slot.
func (e *ChildEntry) Object() *Object {
	return e.obj
}

// NextSibling returns the next entry in insertion order, or nil when
// the end of the list is reached.
func (e *ChildEntry) NextSibling() *ChildEntry {
	if e.next == nil || e.next.sentinel {
		return nil
	}
	return e.next
}

// DirectoryVariant owns the ordered child list and name index of a
// directory object.
type DirectoryVariant struct {
	head  *ChildEntry
	index *btree.Map[string, *ChildEntry]
	count int
}

func newDirectoryVariant() *DirectoryVariant {
	head := &ChildEntry{sentinel: true}
	head.prev = head
	head.next = head

	return &DirectoryVariant{
		head:  head,
		index: btree.NewMap[string, *ChildEntry](0),
	}
}

// FirstChild returns the oldest entry, or nil for an empty directory.
func (d *DirectoryVariant) FirstChild() *ChildEntry {
	if d.head.next.sentinel {
		return nil
	}
	return d.head.next
}

// Empty reports whether the directory has no children.
func (d *DirectoryVariant) Empty() bool {
	return d.count == 0
}

// Count returns the number of children.
func (d *DirectoryVariant) Count() int {
	return d.count
}

// Find looks up a child by exact name. Names are unique among
// siblings.
func (d *DirectoryVariant) Find(name string) *Object {
	entry, exists := d.index.Get(name)
	if !exists {
		return nil
	}
	return entry.obj
}

// Attach appends child under the given name to parent's list.
// Returns ErrExist if the name is already taken and ErrNotDirectory
// if parent is not a directory.
func Attach(parent *Object, name string, child *Object) error {
	if parent.Type != data.ObjectTypeDirectory || parent.Dir == nil {
		return data.ErrNotDirectory
	}

	d := parent.Dir
	if _, exists := d.index.Get(name); exists {
		return data.ErrExist
	}

	entry := &ChildEntry{name: name, obj: child}

	// Insert before the sentinel to keep insertion order.
	tail := d.head.prev
	entry.prev = tail
	entry.next = d.head
	tail.next = entry
	d.head.prev = entry

	d.index.Set(name, entry)
	d.count++

	child.Parent = parent
	child.entry = entry

	return nil
}

// Detach removes child from its parent's list. Detached objects keep
// their variant data but have no name until re-attached.
func Detach(child *Object) {
	if child.Parent == nil || child.entry == nil {
		return
	}

	d := child.Parent.Dir
	entry := child.entry

	entry.prev.next = entry.next
	entry.next.prev = entry.prev
	d.index.Delete(entry.name)
	d.count--

	child.Parent = nil
	child.entry = nil
}

// Replace swaps the object occupying an existing slot, keeping the
// slot's name and list position. Used when a deleted object is
// re-homed into one of its hardlinks' places.
func Replace(slot *ChildEntry, obj *Object, parent *Object) {
	slot.obj.Parent = nil
	slot.obj.entry = nil

	slot.obj = obj
	obj.Parent = parent
	obj.entry = slot
}

// Entry returns this object's slot in its parent's child list, or nil
// for the root and detached objects.
func (o *Object) Entry() *ChildEntry {
	return o.entry
}
