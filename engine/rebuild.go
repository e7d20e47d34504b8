package engine

import (
	"fmt"

	"github.com/mwantia/flashfs/data"
	"github.com/mwantia/flashfs/engine/store"
	"github.com/mwantia/flashfs/object"
)

// rebuild reconstructs the object graph from persisted records. The
// records arrive ordered by identifier, so children re-attach in a
// deterministic order (creation order, since identifiers are handed
// out monotonically).
func (fe *FlashEngine) rebuild(records []*store.Record) error {
	objects := make(map[uint64]*object.Object, len(records))

	for _, rec := range records {
		obj := object.New(fe.dev, rec.ID, rec.Type, rec.Mode)
		obj.Mode = rec.Mode
		obj.Rdev = rec.Rdev
		obj.AccessTime = rec.AccessTime
		obj.ModifyTime = rec.ModifyTime
		obj.ChangeTime = rec.ChangeTime

		if obj.File != nil {
			obj.File.Length = rec.Length
		}
		if obj.Symlink != nil {
			obj.Symlink.Alias = rec.Alias
		}

		fe.dev.ReserveID(rec.ID)
		objects[rec.ID] = obj
	}

	root, exists := objects[object.RootObjectID]
	if !exists || root.Type != data.ObjectTypeDirectory {
		return fmt.Errorf("%w: store has no root directory", data.ErrMountFailed)
	}

	for _, rec := range records {
		if rec.ID == object.RootObjectID {
			continue
		}

		obj := objects[rec.ID]
		parent, exists := objects[rec.ParentID]
		if !exists {
			return fmt.Errorf("%w: object %d references missing parent %d", data.ErrMountFailed, rec.ID, rec.ParentID)
		}

		if err := object.Attach(parent, rec.Name, obj); err != nil {
			return fmt.Errorf("%w: object %d (%q): %v", data.ErrMountFailed, rec.ID, rec.Name, err)
		}
	}

	// Resolve hardlink indirection after the whole tree exists, so
	// forward references work. Indirection collapses through chained
	// hardlink records to keep the equivalent reference direct.
	for _, rec := range records {
		if rec.Type != data.ObjectTypeHardlink {
			continue
		}

		target, exists := objects[rec.EquivalentID]
		if !exists {
			return fmt.Errorf("%w: hardlink %d references missing object %d", data.ErrMountFailed, rec.ID, rec.EquivalentID)
		}

		// The engine never persists a hardlink pointing at another
		// hardlink; a record that does is a corrupt store, not a
		// resolvable chain.
		eq := target.Equivalent()
		if eq == nil {
			return fmt.Errorf("%w: hardlink %d chains through hardlink %d", data.ErrMountFailed, rec.ID, rec.EquivalentID)
		}

		link := objects[rec.ID]
		link.Hardlink.Equivalent = eq
		eq.AddHardlink(link)
	}

	fe.dev.Root = root
	return nil
}
