package flashfs_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mwantia/flashfs"
	"github.com/mwantia/flashfs/data"
	"github.com/mwantia/flashfs/engine/store/memory"
	"github.com/mwantia/flashfs/engine/store/sqlite"
	"github.com/mwantia/flashfs/log"
)

type TestStoreFactory func(tst *testing.T) (*flashfs.FileSystem, error)

func GetTestStoreFactories() map[string]TestStoreFactory {
	return map[string]TestStoreFactory{
		"memory": func(tst *testing.T) (*flashfs.FileSystem, error) {
			return flashfs.New("flash0", memory.NewMemoryStore(), flashfs.WithLogLevel(log.Error))
		},
		"sqlite": func(tst *testing.T) (*flashfs.FileSystem, error) {
			st, err := sqlite.NewSQLiteStore(":memory:")
			if err != nil {
				return nil, err
			}
			return flashfs.New("flash0", st, flashfs.WithLogLevel(log.Error))
		},
	}
}

// TestAllStores_CreateThenLookup verifies create-then-lookup and the
// duplicate-create failure across store implementations.
func TestAllStores_CreateThenLookup(t *testing.T) {
	for name, factory := range GetTestStoreFactories() {
		t.Run(name, func(tst *testing.T) {
			ctx := context.Background()

			fs, err := factory(tst)
			if err != nil {
				tst.Fatalf("Failed to initialize filesystem: %v", err)
			}

			mt := flashfs.NewMountTable()
			if err := mt.Mount(ctx, "/", fs); err != nil {
				tst.Fatalf("Failed to mount: %v", err)
			}
			defer mt.Unmount(ctx, "/")

			mustMkdir(tst, ctx, mt, "/d")
			mustCreate(tst, ctx, mt, "/d/f")

			stat := mustStat(tst, ctx, mt, "/d/f")
			if !stat.Mode.IsRegular() {
				tst.Errorf("Expected regular file mode, got %s", stat.Mode)
			}

			err = mt.MakeNode(ctx, "/d/f", data.ModeTypeRegular|0644, 0)
			if !errors.Is(err, data.ErrExist) {
				tst.Errorf("Second create = %v, want ErrExist", err)
			}
		})
	}
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	mt, _ := newTestTable(t)

	mustMkdir(t, ctx, mt, "/d")
	mustCreate(t, ctx, mt, "/d/f")

	if err := mt.Remove(ctx, "/d"); !errors.Is(err, data.ErrNotEmpty) {
		t.Errorf("Remove(/d) = %v, want ErrNotEmpty", err)
	}

	if err := mt.Remove(ctx, "/d/f"); err != nil {
		t.Fatalf("Remove(/d/f) failed: %v", err)
	}
	if _, err := mt.Stat(ctx, "/d/f"); !errors.Is(err, data.ErrNotExist) {
		t.Errorf("Stat after remove = %v, want ErrNotExist", err)
	}

	if err := mt.Remove(ctx, "/d"); err != nil {
		t.Fatalf("Remove of emptied directory failed: %v", err)
	}
	if _, err := mt.Stat(ctx, "/d"); !errors.Is(err, data.ErrNotExist) {
		t.Errorf("Stat after remove = %v, want ErrNotExist", err)
	}
}

func TestRename(t *testing.T) {
	ctx := context.Background()
	mt, _ := newTestTable(t)

	mustMkdir(t, ctx, mt, "/d1")
	mustMkdir(t, ctx, mt, "/d2")
	mustCreate(t, ctx, mt, "/d1/a")

	want := mustStat(t, ctx, mt, "/d1/a")

	if err := mt.Rename(ctx, "/d1/a", "/d2/b"); err != nil {
		t.Fatalf("Rename failed: %v", err)
	}

	if _, err := mt.Stat(ctx, "/d1/a"); !errors.Is(err, data.ErrNotExist) {
		t.Errorf("Stat(/d1/a) after rename = %v, want ErrNotExist", err)
	}

	got := mustStat(t, ctx, mt, "/d2/b")
	if got.ID != want.ID {
		t.Errorf("Renamed object has id %d, want %d", got.ID, want.ID)
	}
}

func TestRenameOverExistingTarget(t *testing.T) {
	ctx := context.Background()
	mt, _ := newTestTable(t)

	mustCreate(t, ctx, mt, "/a")
	mustCreate(t, ctx, mt, "/b")
	mustMkdir(t, ctx, mt, "/full")
	mustCreate(t, ctx, mt, "/full/x")

	want := mustStat(t, ctx, mt, "/a")

	// A plain file at the destination gets replaced.
	if err := mt.Rename(ctx, "/a", "/b"); err != nil {
		t.Fatalf("Rename over file failed: %v", err)
	}
	got := mustStat(t, ctx, mt, "/b")
	if got.ID != want.ID {
		t.Errorf("Rename target has id %d, want %d", got.ID, want.ID)
	}

	// A non-empty directory at the destination refuses.
	if err := mt.Rename(ctx, "/b", "/full"); !errors.Is(err, data.ErrNotEmpty) {
		t.Errorf("Rename over non-empty directory = %v, want ErrNotEmpty", err)
	}
}

func TestChmod(t *testing.T) {
	ctx := context.Background()
	mt, fs := newTestTable(t)

	mustCreate(t, ctx, mt, "/f")

	loc, err := fs.EvalPath(ctx, nil, "f", 0)
	if err != nil {
		t.Fatalf("EvalPath failed: %v", err)
	}

	if err := fs.Chmod(ctx, loc, 0712|data.ModeTypeDirectory); !errors.Is(err, data.ErrInvalid) {
		t.Errorf("Chmod with type bits = %v, want ErrInvalid", err)
	}

	if err := fs.Chmod(ctx, loc, 0600); err != nil {
		t.Fatalf("Chmod failed: %v", err)
	}

	stat := mustStat(t, ctx, mt, "/f")
	if stat.Mode.Perm() != 0600 {
		t.Errorf("Mode after chmod = %04o, want 0600", stat.Mode.Perm())
	}
	if !stat.Mode.IsRegular() {
		t.Errorf("Chmod lost the type tag: %s", stat.Mode)
	}
}

func TestUpdateTimes(t *testing.T) {
	ctx := context.Background()
	mt, fs := newTestTable(t)

	mustCreate(t, ctx, mt, "/f")

	loc, err := fs.EvalPath(ctx, nil, "f", 0)
	if err != nil {
		t.Fatalf("EvalPath failed: %v", err)
	}

	atime := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	mtime := time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC)

	if err := fs.UpdateTimes(ctx, loc, atime, mtime); err != nil {
		t.Fatalf("UpdateTimes failed: %v", err)
	}

	stat := mustStat(t, ctx, mt, "/f")
	if !stat.AccessTime.Equal(atime) {
		t.Errorf("AccessTime = %v, want %v", stat.AccessTime, atime)
	}
	if !stat.ChangeTime.Equal(atime) {
		t.Errorf("ChangeTime = %v, want %v (follows access time)", stat.ChangeTime, atime)
	}
	if !stat.ModifyTime.Equal(mtime) {
		t.Errorf("ModifyTime = %v, want %v", stat.ModifyTime, mtime)
	}
}

func TestMknodUnsupportedType(t *testing.T) {
	ctx := context.Background()
	mt, _ := newTestTable(t)

	err := mt.MakeNode(ctx, "/dev0", data.ModeTypeCharDev|0600, 42)
	if !errors.Is(err, data.ErrNotImplemented) {
		t.Errorf("MakeNode with device mode = %v, want ErrNotImplemented", err)
	}
}

func TestReadOnlyDevice(t *testing.T) {
	ctx := context.Background()
	mt, fs := newTestTable(t, flashfs.WithReadOnly())

	if err := mt.MakeNode(ctx, "/f", data.ModeTypeRegular|0644, 0); !errors.Is(err, data.ErrReadOnly) {
		t.Errorf("MakeNode = %v, want ErrReadOnly", err)
	}
	if err := mt.MakeSymlink(ctx, "/s", "/f"); !errors.Is(err, data.ErrReadOnly) {
		t.Errorf("MakeSymlink = %v, want ErrReadOnly", err)
	}

	root, err := fs.EvalPath(ctx, nil, "", 0)
	if err != nil {
		t.Fatalf("EvalPath failed: %v", err)
	}
	if err := fs.Chmod(ctx, root, 0700); !errors.Is(err, data.ErrReadOnly) {
		t.Errorf("Chmod = %v, want ErrReadOnly", err)
	}
	if err := fs.Rename(ctx, root, root, "x"); !errors.Is(err, data.ErrReadOnly) {
		t.Errorf("Rename = %v, want ErrReadOnly", err)
	}
}

func TestUnimplementedOperations(t *testing.T) {
	ctx := context.Background()
	mt, fs := newTestTable(t)

	mustCreate(t, ctx, mt, "/f")

	loc, err := fs.EvalPath(ctx, nil, "f", 0)
	if err != nil {
		t.Fatalf("EvalPath failed: %v", err)
	}

	if err := fs.Link(ctx, loc, loc, "x"); !errors.Is(err, data.ErrNotImplemented) {
		t.Errorf("Link = %v, want ErrNotImplemented", err)
	}
	if err := fs.Symlink(ctx, loc, "x", "y"); !errors.Is(err, data.ErrNotImplemented) {
		t.Errorf("Symlink = %v, want ErrNotImplemented", err)
	}
	if _, err := fs.Readlink(ctx, loc); !errors.Is(err, data.ErrNotImplemented) {
		t.Errorf("Readlink = %v, want ErrNotImplemented", err)
	}
	if _, err := fs.EvalLink(ctx, loc, 0); !errors.Is(err, data.ErrNotImplemented) {
		t.Errorf("EvalLink = %v, want ErrNotImplemented", err)
	}
	if err := fs.StatVFS(ctx, loc); !errors.Is(err, data.ErrNotImplemented) {
		t.Errorf("StatVFS = %v, want ErrNotImplemented", err)
	}
}

// TestHardlinkStat verifies that attribute queries resolve hardlink
// indirection: the link reports the target's identity and the link
// count covers both names.
func TestHardlinkStat(t *testing.T) {
	ctx := context.Background()
	mt, _ := newTestTable(t)

	mustCreate(t, ctx, mt, "/f")
	if err := mt.MakeHardlink(ctx, "/h", "/f"); err != nil {
		t.Fatalf("MakeHardlink failed: %v", err)
	}

	want := mustStat(t, ctx, mt, "/f")
	got := mustStat(t, ctx, mt, "/h")

	if got.ID != want.ID {
		t.Errorf("Hardlink stat id = %d, want %d", got.ID, want.ID)
	}
	if want.LinkCount != 2 {
		t.Errorf("LinkCount = %d, want 2", want.LinkCount)
	}
}
