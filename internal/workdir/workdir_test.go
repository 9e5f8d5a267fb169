package workdir

import (
	"os"
	"path/filepath"
	"testing"
)

func TestForDerivesFromBaseName(t *testing.T) {
	root := t.TempDir()
	dir, err := For(root, "/videos/family tape 03.mkv")
	if err != nil {
		t.Fatalf("For: %v", err)
	}
	if dir.Root != filepath.Join(root, "family tape 03") {
		t.Fatalf("root = %q", dir.Root)
	}

	// Keyed by base name, not by job parameters: same source, same dir.
	again, err := For(root, "/other/mount/family tape 03.mkv")
	if err != nil {
		t.Fatalf("For: %v", err)
	}
	if again.Root != dir.Root {
		t.Fatalf("same base name mapped to different roots: %q vs %q", again.Root, dir.Root)
	}
}

func TestForRejectsUnusablePaths(t *testing.T) {
	if _, err := For("", "/videos/tape.mkv"); err == nil {
		t.Fatal("expected error for empty work root")
	}
	if _, err := For(t.TempDir(), "/"); err == nil {
		t.Fatal("expected error for unusable source path")
	}
}

func TestEnsureCreatesLayout(t *testing.T) {
	dir, err := For(t.TempDir(), "tape.mkv")
	if err != nil {
		t.Fatalf("For: %v", err)
	}
	if err := dir.Ensure(); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	for _, path := range []string{dir.Root, dir.CheckpointsDir()} {
		info, err := os.Stat(path)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory at %q: %v", path, err)
		}
	}
	if filepath.Dir(dir.RecordPath()) != dir.Root {
		t.Fatalf("record path %q not inside work dir", dir.RecordPath())
	}
}

func TestLockRefusesSecondHolder(t *testing.T) {
	root := t.TempDir()
	first, err := For(root, "tape.mkv")
	if err != nil {
		t.Fatalf("For: %v", err)
	}
	if err := first.Ensure(); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if err := first.Acquire(); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer first.Release()

	second, err := For(root, "tape.mkv")
	if err != nil {
		t.Fatalf("For: %v", err)
	}
	if err := second.Acquire(); err == nil {
		second.Release()
		t.Fatal("second invocation acquired the lock")
	}

	first.Release()
	if err := second.Acquire(); err != nil {
		t.Fatalf("lock not reacquirable after release: %v", err)
	}
	second.Release()
}

func TestSegmentScratchIsFreshPerAttempt(t *testing.T) {
	dir, err := For(t.TempDir(), "tape.mkv")
	if err != nil {
		t.Fatalf("For: %v", err)
	}
	if err := dir.Ensure(); err != nil {
		t.Fatalf("Ensure: %v", err)
	}

	scratch, err := dir.SegmentScratch(2)
	if err != nil {
		t.Fatalf("SegmentScratch: %v", err)
	}
	stale := filepath.Join(scratch.FramesIn, "frame_000001.png")
	if err := os.WriteFile(stale, []byte("old"), 0o644); err != nil {
		t.Fatalf("write stale frame: %v", err)
	}

	// A new attempt for the same index must not see the stale frame.
	fresh, err := dir.SegmentScratch(2)
	if err != nil {
		t.Fatalf("SegmentScratch again: %v", err)
	}
	if _, err := os.Stat(filepath.Join(fresh.FramesIn, "frame_000001.png")); !os.IsNotExist(err) {
		t.Fatal("stale frame survived scratch recreation")
	}

	fresh.Remove()
	if _, err := os.Stat(fresh.Dir); !os.IsNotExist(err) {
		t.Fatal("scratch not removed")
	}
	fresh.Remove() // idempotent
}
