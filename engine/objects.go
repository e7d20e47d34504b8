package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/mwantia/flashfs/data"
	"github.com/mwantia/flashfs/object"
)

// createRoot builds a fresh root directory for an empty store.
func (fe *FlashEngine) createRoot(ctx context.Context) error {
	root := object.New(fe.dev, fe.dev.AllocateID(), data.ObjectTypeDirectory, 0755)
	fe.dev.Root = root

	if err := fe.st.PutRecord(ctx, fe.record(root)); err != nil {
		fe.dev.Root = nil
		return err
	}

	return nil
}

// create allocates an identifier, attaches the object under parent
// and persists its record. On persistence failure the attachment is
// rolled back.
func (fe *FlashEngine) create(ctx context.Context, parent *object.Object, name string, obj *object.Object) (*object.Object, error) {
	if err := object.Attach(parent, name, obj); err != nil {
		return nil, err
	}

	if err := fe.st.PutRecord(ctx, fe.record(obj)); err != nil {
		object.Detach(obj)
		fe.log.Error("create: failed to persist %s %q - %v", obj.Type, name, err)
		return nil, err
	}

	parent.Touch(time.Now())
	fe.log.Debug("create: %s %q (id=%d) under %d", obj.Type, name, obj.ID, parent.ID)

	return obj, nil
}

func (fe *FlashEngine) CreateDirectory(ctx context.Context, parent *object.Object, name string, mode data.FileMode) (*object.Object, error) {
	obj := object.New(fe.dev, fe.dev.AllocateID(), data.ObjectTypeDirectory, mode)
	return fe.create(ctx, parent, name, obj)
}

func (fe *FlashEngine) CreateFile(ctx context.Context, parent *object.Object, name string, mode data.FileMode) (*object.Object, error) {
	obj := object.New(fe.dev, fe.dev.AllocateID(), data.ObjectTypeFile, mode)
	return fe.create(ctx, parent, name, obj)
}

func (fe *FlashEngine) CreateSymlink(ctx context.Context, parent *object.Object, name string, mode data.FileMode, alias string) (*object.Object, error) {
	if alias == "" {
		return nil, data.ErrInvalid
	}

	obj := object.New(fe.dev, fe.dev.AllocateID(), data.ObjectTypeSymlink, mode)
	obj.Symlink.Alias = alias

	return fe.create(ctx, parent, name, obj)
}

func (fe *FlashEngine) CreateSpecial(ctx context.Context, parent *object.Object, name string, mode data.FileMode, rdev uint64) (*object.Object, error) {
	obj := object.New(fe.dev, fe.dev.AllocateID(), data.ObjectTypeSpecial, mode)
	obj.Rdev = rdev

	return fe.create(ctx, parent, name, obj)
}

func (fe *FlashEngine) CreateHardlink(ctx context.Context, parent *object.Object, name string, target *object.Object) (*object.Object, error) {
	// Resolve indirection eagerly so the equivalent reference never
	// points at another hardlink.
	target = target.Equivalent()
	if target == nil {
		return nil, data.ErrNotExist
	}

	obj := object.New(fe.dev, fe.dev.AllocateID(), data.ObjectTypeHardlink, target.Mode)
	obj.Hardlink.Equivalent = target

	created, err := fe.create(ctx, parent, name, obj)
	if err != nil {
		return nil, err
	}

	target.AddHardlink(created)
	target.ChangeTime = time.Now()
	target.Dirty = true

	return created, nil
}

// DeleteObject removes one name from the tree.
func (fe *FlashEngine) DeleteObject(ctx context.Context, obj *object.Object) error {
	if obj == fe.dev.Root {
		return data.ErrBusy
	}
	parent := obj.Parent
	if parent == nil {
		return data.ErrNotExist
	}

	if obj.Type == data.ObjectTypeDirectory && !obj.Dir.Empty() {
		return data.ErrNotEmpty
	}

	if obj.Type == data.ObjectTypeHardlink {
		return fe.deleteHardlink(ctx, obj, parent)
	}

	if len(obj.Hardlinks()) > 0 {
		return fe.promoteHardlink(ctx, obj, parent)
	}

	object.Detach(obj)

	errs := data.Errors{}
	if obj.File != nil {
		errs.Add(fe.st.TrimChunks(ctx, obj.ID, 0))
	}
	errs.Add(fe.st.DeleteRecord(ctx, obj.ID))
	parent.Touch(time.Now())

	fe.log.Debug("DeleteObject: removed %s %q (id=%d)", obj.Type, obj.Name(), obj.ID)
	return errs.Errors()
}

// deleteHardlink unlinks one alias of an object; the target survives.
func (fe *FlashEngine) deleteHardlink(ctx context.Context, obj, parent *object.Object) error {
	if target := obj.Hardlink.Equivalent; target != nil {
		target.RemoveHardlink(obj)
		target.ChangeTime = time.Now()
		target.Dirty = true
	}

	object.Detach(obj)
	parent.Touch(time.Now())

	return fe.st.DeleteRecord(ctx, obj.ID)
}

// promoteHardlink re-homes a deleted object into its first hardlink's
// slot, so the remaining links keep working.
func (fe *FlashEngine) promoteHardlink(ctx context.Context, obj, parent *object.Object) error {
	link := obj.Hardlinks()[0]
	obj.RemoveHardlink(link)

	object.Detach(obj)
	object.Replace(link.Entry(), obj, link.Parent)

	errs := data.Errors{}
	errs.Add(fe.st.DeleteRecord(ctx, link.ID))
	errs.Add(fe.st.PutRecord(ctx, fe.record(obj)))

	now := time.Now()
	parent.Touch(now)
	obj.ChangeTime = now
	obj.Dirty = true

	fe.log.Debug("DeleteObject: promoted hardlink %d into place of %d", link.ID, obj.ID)
	return errs.Errors()
}

// RenameObject moves (old parent, old name) to (new parent, new name).
func (fe *FlashEngine) RenameObject(ctx context.Context, oldParent *object.Object, oldName string, newParent *object.Object, newName string) error {
	if newParent.Type != data.ObjectTypeDirectory {
		return data.ErrNotDirectory
	}
	if len(newName) > data.MaxNameLength {
		return fmt.Errorf("%w: name too long", data.ErrInvalid)
	}

	obj := oldParent.Dir.Find(oldName)
	if obj == nil {
		return data.ErrNotExist
	}

	if existing := newParent.Dir.Find(newName); existing != nil {
		if existing == obj {
			return nil
		}
		if err := fe.DeleteObject(ctx, existing); err != nil {
			return err
		}
	}

	object.Detach(obj)
	if err := object.Attach(newParent, newName, obj); err != nil {
		// Re-attach under the old name; the slot was free a moment
		// ago and the device lock is held.
		object.Attach(oldParent, oldName, obj)
		return err
	}

	if err := fe.st.PutRecord(ctx, fe.record(obj)); err != nil {
		fe.log.Error("RenameObject: failed to persist %d - %v", obj.ID, err)
		return err
	}

	now := time.Now()
	oldParent.Touch(now)
	newParent.Touch(now)
	obj.ChangeTime = now
	obj.Dirty = true

	fe.log.Debug("RenameObject: %q -> %q (id=%d)", oldName, newName, obj.ID)
	return nil
}

var _ Engine = (*FlashEngine)(nil)
