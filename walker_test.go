package flashfs_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mwantia/flashfs"
	"github.com/mwantia/flashfs/data"
	"github.com/mwantia/flashfs/engine/store/memory"
	"github.com/mwantia/flashfs/log"
)

func newTestFileSystem(tst *testing.T, opts ...flashfs.FileSystemOption) *flashfs.FileSystem {
	opts = append([]flashfs.FileSystemOption{flashfs.WithLogLevel(log.Error)}, opts...)

	fs, err := flashfs.New("flash0", memory.NewMemoryStore(), opts...)
	if err != nil {
		tst.Fatalf("Failed to initialize filesystem: %v", err)
	}

	return fs
}

func newTestTable(tst *testing.T, opts ...flashfs.FileSystemOption) (*flashfs.MountTable, *flashfs.FileSystem) {
	ctx := context.Background()

	fs := newTestFileSystem(tst, opts...)
	mt := flashfs.NewMountTable()

	if err := mt.Mount(ctx, "/", fs); err != nil {
		tst.Fatalf("Failed to mount: %v", err)
	}
	tst.Cleanup(func() {
		mt.Unmount(context.Background(), "/")
	})

	return mt, fs
}

func mustMkdir(tst *testing.T, ctx context.Context, mt *flashfs.MountTable, path string) {
	tst.Helper()
	if err := mt.MakeNode(ctx, path, data.ModeTypeDirectory|0755, 0); err != nil {
		tst.Fatalf("Failed to create directory %s: %v", path, err)
	}
}

func mustCreate(tst *testing.T, ctx context.Context, mt *flashfs.MountTable, path string) {
	tst.Helper()
	if err := mt.MakeNode(ctx, path, data.ModeTypeRegular|0644, 0); err != nil {
		tst.Fatalf("Failed to create file %s: %v", path, err)
	}
}

func mustStat(tst *testing.T, ctx context.Context, mt *flashfs.MountTable, path string) *data.Stat {
	tst.Helper()
	stat, err := mt.Stat(ctx, path)
	if err != nil {
		tst.Fatalf("Failed to stat %s: %v", path, err)
	}
	return stat
}

// TestWalker_DotPaths verifies that paths composed solely of dot
// components resolve to the starting node unchanged.
func TestWalker_DotPaths(t *testing.T) {
	ctx := context.Background()
	mt, fs := newTestTable(t)

	mustMkdir(t, ctx, mt, "/a")
	want := mustStat(t, ctx, mt, "/a")

	for _, path := range []string{"a/.", "a/./.", "a/././."} {
		loc, err := fs.EvalPath(ctx, nil, path, 0)
		if err != nil {
			t.Fatalf("EvalPath(%q) failed: %v", path, err)
		}

		stat, err := fs.Stat(ctx, loc)
		if err != nil {
			t.Fatalf("Stat(%q) failed: %v", path, err)
		}
		if stat.ID != want.ID {
			t.Errorf("EvalPath(%q) = id %d, want %d", path, stat.ID, want.ID)
		}
	}
}

// TestWalker_RepeatedSeparators verifies that runs of separators
// collapse: "a///b" resolves like "a/b".
func TestWalker_RepeatedSeparators(t *testing.T) {
	ctx := context.Background()
	mt, _ := newTestTable(t)

	mustMkdir(t, ctx, mt, "/a")
	mustCreate(t, ctx, mt, "/a/b")

	plain := mustStat(t, ctx, mt, "/a/b")
	squashed := mustStat(t, ctx, mt, "/a///b")

	if plain.ID != squashed.ID {
		t.Errorf("a///b resolved to id %d, a/b to %d", squashed.ID, plain.ID)
	}
}

// TestWalker_RootBoundary verifies that ".." at the root of a nested
// mount continues resolution in the parent filesystem instead of
// failing.
func TestWalker_RootBoundary(t *testing.T) {
	ctx := context.Background()
	mt, _ := newTestTable(t)

	mustMkdir(t, ctx, mt, "/mnt")
	mustCreate(t, ctx, mt, "/tag.txt")

	child := newTestFileSystem(t)
	if err := mt.Mount(ctx, "/mnt", child); err != nil {
		t.Fatalf("Failed to mount child: %v", err)
	}
	defer mt.Unmount(context.Background(), "/mnt")

	want := mustStat(t, ctx, mt, "/tag.txt")

	// Crossing with a remainder lands on the parent's file.
	got := mustStat(t, ctx, mt, "/mnt/../tag.txt")
	if got.ID != want.ID {
		t.Errorf("/mnt/../tag.txt resolved to id %d, want %d", got.ID, want.ID)
	}

	// Crossing without a remainder lands on the parent's root.
	root := mustStat(t, ctx, mt, "/")
	up := mustStat(t, ctx, mt, "/mnt/..")
	if up.ID != root.ID {
		t.Errorf("/mnt/.. resolved to id %d, want root id %d", up.ID, root.ID)
	}
}

// TestWalker_SymlinkAliases verifies both alias forms: an absolute
// alias re-resolves from the tree root, a relative alias from the
// symlink's own parent.
func TestWalker_SymlinkAliases(t *testing.T) {
	ctx := context.Background()
	mt, _ := newTestTable(t)

	mustMkdir(t, ctx, mt, "/x")
	mustMkdir(t, ctx, mt, "/x/y")
	mustMkdir(t, ctx, mt, "/a")
	mustCreate(t, ctx, mt, "/d")

	if err := mt.MakeSymlink(ctx, "/abs", "/x/y"); err != nil {
		t.Fatalf("Failed to create absolute symlink: %v", err)
	}
	if err := mt.MakeSymlink(ctx, "/a/rel", "../d"); err != nil {
		t.Fatalf("Failed to create relative symlink: %v", err)
	}

	wantAbs := mustStat(t, ctx, mt, "/x/y")
	gotAbs := mustStat(t, ctx, mt, "/abs")
	if gotAbs.ID != wantAbs.ID {
		t.Errorf("absolute alias resolved to id %d, want %d", gotAbs.ID, wantAbs.ID)
	}

	wantRel := mustStat(t, ctx, mt, "/d")
	gotRel := mustStat(t, ctx, mt, "/a/rel")
	if gotRel.ID != wantRel.ID {
		t.Errorf("relative alias resolved to id %d, want %d", gotRel.ID, wantRel.ID)
	}

	// A symlink to a symlink keeps following.
	if err := mt.MakeSymlink(ctx, "/abs2", "/abs"); err != nil {
		t.Fatalf("Failed to create chained symlink: %v", err)
	}
	gotChain := mustStat(t, ctx, mt, "/abs2")
	if gotChain.ID != wantAbs.ID {
		t.Errorf("chained alias resolved to id %d, want %d", gotChain.ID, wantAbs.ID)
	}
}

// TestWalker_SymlinkLoop verifies that alias cycles terminate as not
// found instead of recursing forever.
func TestWalker_SymlinkLoop(t *testing.T) {
	ctx := context.Background()
	mt, _ := newTestTable(t)

	if err := mt.MakeSymlink(ctx, "/loop", "/loop"); err != nil {
		t.Fatalf("Failed to create symlink: %v", err)
	}
	if err := mt.MakeSymlink(ctx, "/ping", "/pong"); err != nil {
		t.Fatalf("Failed to create symlink: %v", err)
	}
	if err := mt.MakeSymlink(ctx, "/pong", "/ping"); err != nil {
		t.Fatalf("Failed to create symlink: %v", err)
	}

	for _, path := range []string{"/loop", "/ping", "/pong"} {
		if _, err := mt.Stat(ctx, path); !errors.Is(err, data.ErrNotExist) {
			t.Errorf("Stat(%q) = %v, want ErrNotExist", path, err)
		}
	}
}

// TestWalker_LongComponentTruncated verifies that components past the
// maximum name length are truncated but still consumed, so an
// oversized spelling finds the truncated entry.
func TestWalker_LongComponentTruncated(t *testing.T) {
	ctx := context.Background()
	mt, _ := newTestTable(t)

	name := strings.Repeat("a", data.MaxNameLength)
	mustCreate(t, ctx, mt, "/"+name)

	oversized := strings.Repeat("a", data.MaxNameLength+45)
	want := mustStat(t, ctx, mt, "/"+name)
	got := mustStat(t, ctx, mt, "/"+oversized)

	if got.ID != want.ID {
		t.Errorf("oversized component resolved to id %d, want %d", got.ID, want.ID)
	}
}

// TestWalker_NotFound verifies the difference between a missing leaf
// and traversal through a non-directory.
func TestWalker_NotFound(t *testing.T) {
	ctx := context.Background()
	mt, _ := newTestTable(t)

	mustCreate(t, ctx, mt, "/f")

	if _, err := mt.Stat(ctx, "/missing"); !errors.Is(err, data.ErrNotExist) {
		t.Errorf("Stat(/missing) = %v, want ErrNotExist", err)
	}
	if _, err := mt.Stat(ctx, "/f/below"); !errors.Is(err, data.ErrNotExist) {
		t.Errorf("Stat(/f/below) = %v, want ErrNotExist", err)
	}
}
