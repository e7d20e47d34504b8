package flashfs_test

import (
	"context"
	"errors"
	"testing"

	"github.com/mwantia/flashfs"
	"github.com/mwantia/flashfs/data"
)

func TestMountLifecycle(t *testing.T) {
	ctx := context.Background()

	fs := newTestFileSystem(t)
	mt := flashfs.NewMountTable()

	if err := mt.Mount(ctx, "/", fs); err != nil {
		t.Fatalf("Mount failed: %v", err)
	}

	other := newTestFileSystem(t)
	if err := mt.Mount(ctx, "/", other); !errors.Is(err, data.ErrAlreadyMounted) {
		t.Errorf("Second mount = %v, want ErrAlreadyMounted", err)
	}

	if err := mt.Unmount(ctx, "/"); err != nil {
		t.Fatalf("Unmount failed: %v", err)
	}
	if err := mt.Unmount(ctx, "/"); !errors.Is(err, data.ErrNotMounted) {
		t.Errorf("Second unmount = %v, want ErrNotMounted", err)
	}

	if _, err := mt.Stat(ctx, "/"); !errors.Is(err, data.ErrNotMounted) {
		t.Errorf("Stat without mounts = %v, want ErrNotMounted", err)
	}
}

func TestUnmountWithChildMounts(t *testing.T) {
	ctx := context.Background()
	mt, _ := newTestTable(t)

	mustMkdir(t, ctx, mt, "/mnt")

	child := newTestFileSystem(t)
	if err := mt.Mount(ctx, "/mnt", child); err != nil {
		t.Fatalf("Failed to mount child: %v", err)
	}

	if err := mt.Unmount(ctx, "/"); !errors.Is(err, data.ErrMountBusy) {
		t.Errorf("Unmount with child = %v, want ErrMountBusy", err)
	}

	if err := mt.Unmount(ctx, "/mnt"); err != nil {
		t.Fatalf("Unmount child failed: %v", err)
	}
}

// TestLongestPrefixResolution verifies that a nested mount shadows the
// parent's subtree.
func TestLongestPrefixResolution(t *testing.T) {
	ctx := context.Background()
	mt, _ := newTestTable(t)

	mustMkdir(t, ctx, mt, "/mnt")
	mustCreate(t, ctx, mt, "/mnt/parent-side")

	child := newTestFileSystem(t)
	if err := mt.Mount(ctx, "/mnt", child); err != nil {
		t.Fatalf("Failed to mount child: %v", err)
	}
	defer mt.Unmount(context.Background(), "/mnt")

	// The parent's file is shadowed; the child's root is empty.
	if _, err := mt.Stat(ctx, "/mnt/parent-side"); !errors.Is(err, data.ErrNotExist) {
		t.Errorf("Stat through child mount = %v, want ErrNotExist", err)
	}

	mustCreate(t, ctx, mt, "/mnt/child-side")
	if _, err := mt.Stat(ctx, "/mnt/child-side"); err != nil {
		t.Errorf("Stat(/mnt/child-side) failed: %v", err)
	}

	// The parent's copy is reachable again after unmounting the child.
	if err := mt.Unmount(ctx, "/mnt"); err != nil {
		t.Fatalf("Unmount child failed: %v", err)
	}
	if _, err := mt.Stat(ctx, "/mnt/parent-side"); err != nil {
		t.Errorf("Stat(/mnt/parent-side) after unmount failed: %v", err)
	}
}

// TestBoundaryFlagsPreserved verifies that a resolve-for-open crossing
// the boundary behaves like resolving the collapsed path directly.
func TestBoundaryCrossingEquivalence(t *testing.T) {
	ctx := context.Background()
	mt, _ := newTestTable(t)

	mustMkdir(t, ctx, mt, "/mnt")
	mustMkdir(t, ctx, mt, "/data")
	mustCreate(t, ctx, mt, "/data/file")

	child := newTestFileSystem(t)
	if err := mt.Mount(ctx, "/mnt", child); err != nil {
		t.Fatalf("Failed to mount child: %v", err)
	}
	defer mt.Unmount(context.Background(), "/mnt")

	direct := mustStat(t, ctx, mt, "/data/file")
	crossed := mustStat(t, ctx, mt, "/mnt/../data/file")
	if crossed.ID != direct.ID {
		t.Errorf("Boundary crossing resolved to id %d, want %d", crossed.ID, direct.ID)
	}

	// Deep crossings walk out of the child and back down the parent.
	mustMkdir(t, ctx, mt, "/mnt/sub")
	deep := mustStat(t, ctx, mt, "/mnt/sub/../../data/file")
	if deep.ID != direct.ID {
		t.Errorf("Deep boundary crossing resolved to id %d, want %d", deep.ID, direct.ID)
	}
}

// TestMutationsThroughBoundary verifies that creating, linking and
// renaming through a parent path that walks out of a nested mount
// mutate the parent device, not the filesystem the path was routed
// to: no foreign records, no identifier reuse.
func TestMutationsThroughBoundary(t *testing.T) {
	ctx := context.Background()
	mt, _ := newTestTable(t)

	mustMkdir(t, ctx, mt, "/mnt")
	mustMkdir(t, ctx, mt, "/data")
	mustCreate(t, ctx, mt, "/data/file")

	child := newTestFileSystem(t)
	if err := mt.Mount(ctx, "/mnt", child); err != nil {
		t.Fatalf("Failed to mount child: %v", err)
	}
	defer mt.Unmount(context.Background(), "/mnt")

	if err := mt.MakeNode(ctx, "/mnt/../made", data.ModeTypeRegular|0644, 0); err != nil {
		t.Fatalf("MakeNode through boundary failed: %v", err)
	}
	if err := mt.MakeSymlink(ctx, "/mnt/../sym", "/data/file"); err != nil {
		t.Fatalf("MakeSymlink through boundary failed: %v", err)
	}
	if err := mt.MakeHardlink(ctx, "/mnt/../hard", "/mnt/../data/file"); err != nil {
		t.Fatalf("MakeHardlink through boundary failed: %v", err)
	}
	if err := mt.Rename(ctx, "/mnt/../made", "/mnt/../moved"); err != nil {
		t.Fatalf("Rename through boundary failed: %v", err)
	}

	// Nothing landed inside the child.
	handle, err := mt.Open(ctx, "/mnt", 0, 0)
	if err != nil {
		t.Fatalf("Open(/mnt) failed: %v", err)
	}
	entries, err := handle.ReadDirectory(ctx, 8*data.DirentSize)
	handle.Close(ctx)
	if err != nil {
		t.Fatalf("ReadDirectory failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Child root holds %d entries, want none", len(entries))
	}

	target := mustStat(t, ctx, mt, "/data/file")
	if got := mustStat(t, ctx, mt, "/hard"); got.ID != target.ID {
		t.Errorf("Hardlink through boundary has id %d, want %d", got.ID, target.ID)
	}
	if got := mustStat(t, ctx, mt, "/sym"); got.ID != target.ID {
		t.Errorf("Symlink through boundary resolves to id %d, want %d", got.ID, target.ID)
	}

	// Identifiers on the parent device stay unique: the created file
	// must not carry an id handed out by the child's counter.
	if err := mt.Unmount(ctx, "/mnt"); err != nil {
		t.Fatalf("Unmount child failed: %v", err)
	}
	seen := map[uint64]string{}
	for _, path := range []string{"/", "/mnt", "/data", "/data/file", "/moved"} {
		stat := mustStat(t, ctx, mt, path)
		if prev, taken := seen[stat.ID]; taken {
			t.Errorf("%s and %s share id %d", prev, path, stat.ID)
		}
		seen[stat.ID] = path
	}
}

// TestCreateThroughReadOnlyChild verifies the read-only check runs on
// the device that ends up mutated, not the one the path was routed to.
func TestCreateThroughReadOnlyChild(t *testing.T) {
	ctx := context.Background()
	mt, _ := newTestTable(t)

	mustMkdir(t, ctx, mt, "/ro")

	child := newTestFileSystem(t, flashfs.WithReadOnly())
	if err := mt.Mount(ctx, "/ro", child); err != nil {
		t.Fatalf("Failed to mount child: %v", err)
	}
	defer mt.Unmount(context.Background(), "/ro")

	// The routed filesystem is read-only but the object lands on the
	// writable parent.
	if err := mt.MakeNode(ctx, "/ro/../on-parent", data.ModeTypeRegular|0644, 0); err != nil {
		t.Fatalf("MakeNode through read-only child failed: %v", err)
	}
	if _, err := mt.Stat(ctx, "/on-parent"); err != nil {
		t.Errorf("Stat(/on-parent) failed: %v", err)
	}

	// Creating inside the child still refuses.
	if err := mt.MakeNode(ctx, "/ro/inside", data.ModeTypeRegular|0644, 0); !errors.Is(err, data.ErrReadOnly) {
		t.Errorf("MakeNode inside read-only child = %v, want ErrReadOnly", err)
	}
}

func TestCrossDeviceRename(t *testing.T) {
	ctx := context.Background()
	mt, _ := newTestTable(t)

	mustMkdir(t, ctx, mt, "/mnt")
	mustCreate(t, ctx, mt, "/f")

	child := newTestFileSystem(t)
	if err := mt.Mount(ctx, "/mnt", child); err != nil {
		t.Fatalf("Failed to mount child: %v", err)
	}
	defer mt.Unmount(context.Background(), "/mnt")

	if err := mt.Rename(ctx, "/f", "/mnt/f"); !errors.Is(err, data.ErrNotSupported) {
		t.Errorf("Cross-device rename = %v, want ErrNotSupported", err)
	}
}

func TestMountsListing(t *testing.T) {
	ctx := context.Background()
	mt, _ := newTestTable(t)

	mustMkdir(t, ctx, mt, "/mnt")

	child := newTestFileSystem(t, flashfs.WithReadOnly())
	if err := mt.Mount(ctx, "/mnt", child); err != nil {
		t.Fatalf("Failed to mount child: %v", err)
	}
	defer mt.Unmount(context.Background(), "/mnt")

	infos := mt.Mounts()
	if len(infos) != 2 {
		t.Fatalf("Expected 2 mounts, got %d", len(infos))
	}
	if infos[0].Path != "/" || infos[1].Path != "/mnt" {
		t.Errorf("Mounts ordered %q, %q; want /, /mnt", infos[0].Path, infos[1].Path)
	}
	if !infos[1].ReadOnly {
		t.Errorf("Child mount not reported read-only")
	}
}
