package checkpoint

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "checkpoints"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return store
}

func writeCheckpoint(t *testing.T, store *Store, index int) {
	t.Helper()
	if err := os.WriteFile(store.Path(index), []byte("video"), 0o644); err != nil {
		t.Fatalf("write checkpoint %d: %v", index, err)
	}
}

func TestPathNamingIsFixedWidth(t *testing.T) {
	store := newStore(t)
	if base := filepath.Base(store.Path(7)); base != "seg_00007.mkv" {
		t.Fatalf("checkpoint name = %q", base)
	}
	if base := filepath.Base(store.Path(12345)); base != "seg_12345.mkv" {
		t.Fatalf("checkpoint name = %q", base)
	}
	if base := filepath.Base(store.TempPath(7)); base != ".seg_00007.mkv.tmp" {
		t.Fatalf("temp name = %q", base)
	}
}

func TestExistsRequiresNonEmpty(t *testing.T) {
	store := newStore(t)
	if store.Exists(0) {
		t.Fatal("missing checkpoint reported as existing")
	}
	if err := os.WriteFile(store.Path(0), nil, 0o644); err != nil {
		t.Fatalf("write empty: %v", err)
	}
	if store.Exists(0) {
		t.Fatal("empty checkpoint reported as existing")
	}
	writeCheckpoint(t, store, 0)
	if !store.Exists(0) {
		t.Fatal("valid checkpoint not detected")
	}
}

func TestListOrdersByIndexNotCreationTime(t *testing.T) {
	store := newStore(t)
	// Create out of numeric order on purpose.
	for _, index := range []int{2, 0, 1} {
		writeCheckpoint(t, store, index)
	}

	entries, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("len = %d", len(entries))
	}
	for i, entry := range entries {
		if entry.Index != i {
			t.Fatalf("entry %d has index %d", i, entry.Index)
		}
	}
}

func TestListIgnoresForeignAndPartialFiles(t *testing.T) {
	store := newStore(t)
	writeCheckpoint(t, store, 0)
	for _, name := range []string{".seg_00001.mkv.tmp", "notes.txt", "seg_2.mkv", "seg_00003.txt"} {
		if err := os.WriteFile(filepath.Join(store.Dir(), name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	// Empty checkpoint must be excluded.
	if err := os.WriteFile(store.Path(4), nil, 0o644); err != nil {
		t.Fatalf("write empty: %v", err)
	}

	entries, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 || entries[0].Index != 0 {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestPublishRenamesTempIntoPlace(t *testing.T) {
	store := newStore(t)
	if err := os.WriteFile(store.TempPath(3), []byte("encoded"), 0o644); err != nil {
		t.Fatalf("write temp: %v", err)
	}
	if err := store.Publish(3); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if !store.Exists(3) {
		t.Fatal("published checkpoint missing")
	}
	if _, err := os.Stat(store.TempPath(3)); !os.IsNotExist(err) {
		t.Fatal("temp file still present after publish")
	}
}

func TestPublishRefusesEmptyTemp(t *testing.T) {
	store := newStore(t)
	if err := os.WriteFile(store.TempPath(3), nil, 0o644); err != nil {
		t.Fatalf("write temp: %v", err)
	}
	if err := store.Publish(3); err == nil {
		t.Fatal("expected publish of empty temp to fail")
	}
	if store.Exists(3) {
		t.Fatal("empty artifact published as checkpoint")
	}
}

func TestWriteManifestOrderAndEscaping(t *testing.T) {
	store := newStore(t)
	writeCheckpoint(t, store, 1)
	writeCheckpoint(t, store, 0)

	entries, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	manifest := filepath.Join(t.TempDir(), "concat.txt")
	if err := WriteManifest(manifest, entries); err != nil {
		t.Fatalf("WriteManifest: %v", err)
	}
	content, err := os.ReadFile(manifest)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(content), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("manifest lines = %d", len(lines))
	}
	if !strings.Contains(lines[0], "seg_00000.mkv") || !strings.Contains(lines[1], "seg_00001.mkv") {
		t.Fatalf("manifest order wrong: %v", lines)
	}
}

func TestWriteManifestRejectsEmpty(t *testing.T) {
	if err := WriteManifest(filepath.Join(t.TempDir(), "concat.txt"), nil); err == nil {
		t.Fatal("expected error for empty manifest")
	}
}
