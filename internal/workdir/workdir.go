// Package workdir owns the per-source work directory layout. A work
// directory is keyed by the source artifact's base name, shared across
// repeated invocations against the same source, and is the only state
// permitted to outlive a process invocation.
package workdir

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"

	"upres/internal/fingerprint"
)

// Dir describes one source's work directory.
type Dir struct {
	// Root is <work_root>/<source base name>.
	Root string

	lock *flock.Flock
}

// For derives the work directory for a source path. Distinct sources with
// the same base name under the same work root would collide; the operator
// chooses the work root, so this mirrors the keying contract rather than
// defending against it.
func For(workRoot, sourcePath string) (*Dir, error) {
	workRoot = strings.TrimSpace(workRoot)
	if workRoot == "" {
		return nil, fmt.Errorf("work root required")
	}
	base := filepath.Base(strings.TrimSpace(sourcePath))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." || base == string(filepath.Separator) {
		return nil, fmt.Errorf("cannot derive work directory from source path %q", sourcePath)
	}

	root := filepath.Join(workRoot, base)
	return &Dir{
		Root: root,
		lock: flock.New(filepath.Join(root, ".lock")),
	}, nil
}

// Ensure creates the work directory and its checkpoints subdirectory.
func (d *Dir) Ensure() error {
	for _, dir := range []string{d.Root, d.CheckpointsDir(), d.scratchRoot()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create work directory %q: %w", dir, err)
		}
	}
	return nil
}

// CheckpointsDir returns the directory holding completed segment artifacts.
func (d *Dir) CheckpointsDir() string {
	return filepath.Join(d.Root, "checkpoints")
}

// RecordPath returns the run configuration record location.
func (d *Dir) RecordPath() string {
	return filepath.Join(d.Root, fingerprint.RecordFileName)
}

// ManifestPath returns the concat manifest location.
func (d *Dir) ManifestPath() string {
	return filepath.Join(d.Root, "concat.txt")
}

// VideoOnlyPath returns the intermediate concatenated video-only artifact.
func (d *Dir) VideoOnlyPath() string {
	return filepath.Join(d.Root, "concat_video.mkv")
}

func (d *Dir) scratchRoot() string {
	return filepath.Join(d.Root, "scratch")
}

// Acquire takes the advisory lock guarding the work directory. Concurrent
// invocations against the same source are refused rather than left as
// undefined behavior. The lock is advisory; it does not protect network
// filesystems that drop flock semantics.
func (d *Dir) Acquire() error {
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire work directory lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("work directory %q is locked by another invocation", d.Root)
	}
	return nil
}

// Release drops the advisory lock.
func (d *Dir) Release() {
	_ = d.lock.Unlock()
}
