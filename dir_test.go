package flashfs_test

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/mwantia/flashfs/data"
)

// TestDirectoryEnumeration verifies insertion order across chunked
// reads and the rewind behavior of the cursor.
func TestDirectoryEnumeration(t *testing.T) {
	ctx := context.Background()
	mt, _ := newTestTable(t)

	mustMkdir(t, ctx, mt, "/d")
	mustCreate(t, ctx, mt, "/d/c1")
	mustCreate(t, ctx, mt, "/d/c2")
	mustCreate(t, ctx, mt, "/d/c3")

	handle, err := mt.Open(ctx, "/d", 0, 0)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer handle.Close(ctx)

	want := []string{"c1", "c2", "c3"}

	collect := func(count int) []string {
		var names []string
		for {
			entries, err := handle.ReadDirectory(ctx, count)
			if err != nil {
				t.Fatalf("ReadDirectory failed: %v", err)
			}
			if len(entries) == 0 {
				return names
			}
			for _, entry := range entries {
				names = append(names, entry.Name)
			}
		}
	}

	// One entry per call.
	got := collect(data.DirentSize)
	if len(got) != len(want) {
		t.Fatalf("Enumeration yielded %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Entry %d = %q, want %q", i, got[i], want[i])
		}
	}

	// Rewind restarts the same sequence with a larger chunking.
	if _, err := handle.Seek(0, io.SeekStart); err != nil {
		t.Fatalf("Rewind failed: %v", err)
	}
	got = collect(2 * data.DirentSize)
	if len(got) != len(want) {
		t.Fatalf("Enumeration after rewind yielded %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Entry %d after rewind = %q, want %q", i, got[i], want[i])
		}
	}
}

// TestDirectorySeek verifies that the only supported repositioning is
// an explicit rewind to offset zero.
func TestDirectorySeek(t *testing.T) {
	ctx := context.Background()
	mt, _ := newTestTable(t)

	mustMkdir(t, ctx, mt, "/d")

	handle, err := mt.Open(ctx, "/d", 0, 0)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer handle.Close(ctx)

	if _, err := handle.Seek(0, io.SeekStart); err != nil {
		t.Errorf("Rewind = %v, want success", err)
	}
	if _, err := handle.Seek(1, io.SeekStart); !errors.Is(err, data.ErrNotSupported) {
		t.Errorf("Seek(1, start) = %v, want ErrNotSupported", err)
	}
	if _, err := handle.Seek(0, io.SeekCurrent); !errors.Is(err, data.ErrNotSupported) {
		t.Errorf("Seek(0, current) = %v, want ErrNotSupported", err)
	}
	if _, err := handle.Seek(0, io.SeekEnd); !errors.Is(err, data.ErrNotSupported) {
		t.Errorf("Seek(0, end) = %v, want ErrNotSupported", err)
	}
}

// TestDirectoryEntryRecords verifies the record fields: zero offset,
// fixed record length and hardlink-resolved identifiers.
func TestDirectoryEntryRecords(t *testing.T) {
	ctx := context.Background()
	mt, _ := newTestTable(t)

	mustMkdir(t, ctx, mt, "/d")
	mustCreate(t, ctx, mt, "/d/f")
	if err := mt.MakeHardlink(ctx, "/d/h", "/d/f"); err != nil {
		t.Fatalf("MakeHardlink failed: %v", err)
	}

	target := mustStat(t, ctx, mt, "/d/f")

	handle, err := mt.Open(ctx, "/d", 0, 0)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer handle.Close(ctx)

	entries, err := handle.ReadDirectory(ctx, 8*data.DirentSize)
	if err != nil {
		t.Fatalf("ReadDirectory failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}

	for _, entry := range entries {
		if entry.Off != 0 {
			t.Errorf("Entry %q has offset %d, want 0", entry.Name, entry.Off)
		}
		if entry.Reclen != data.DirentSize {
			t.Errorf("Entry %q has reclen %d, want %d", entry.Name, entry.Reclen, data.DirentSize)
		}
		if entry.NameLen != len(entry.Name) {
			t.Errorf("Entry %q has namelen %d, want %d", entry.Name, entry.NameLen, len(entry.Name))
		}
		if entry.Ino != target.ID {
			t.Errorf("Entry %q has ino %d, want hardlink-resolved %d", entry.Name, entry.Ino, target.ID)
		}
	}
}

// TestDirectoryReadOnFile verifies that enumeration is a directory
// affair only.
func TestDirectoryReadOnFile(t *testing.T) {
	ctx := context.Background()
	mt, _ := newTestTable(t)

	mustCreate(t, ctx, mt, "/f")

	handle, err := mt.Open(ctx, "/f", 0, 0)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer handle.Close(ctx)

	if _, err := handle.ReadDirectory(ctx, data.DirentSize); !errors.Is(err, data.ErrNotDirectory) {
		t.Errorf("ReadDirectory on file = %v, want ErrNotDirectory", err)
	}
}
