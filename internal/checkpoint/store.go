// Package checkpoint manages the durable directory of completed segment
// artifacts. Existence of a non-empty checkpoint file is the sole truth of
// "this segment is done"; the store is re-derivable by directory scan alone,
// which is what makes resume possible after an unclean kill.
package checkpoint

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"upres/internal/fileutil"
)

const (
	// nameWidth is the zero-padded index width. Lexicographic directory
	// order equals numeric order for any plausible segment count.
	nameWidth  = 5
	namePrefix = "seg_"
	nameSuffix = ".mkv"
)

// Entry is one completed checkpoint discovered by a directory scan.
type Entry struct {
	Index int
	Path  string
}

// Store exposes the checkpoint directory for one work directory.
type Store struct {
	dir string
}

// New returns a store rooted at dir, creating the directory if needed.
func New(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("checkpoint directory required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create checkpoint directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the checkpoint directory path.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the final checkpoint location for a segment index.
func (s *Store) Path(index int) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s%0*d%s", namePrefix, nameWidth, index, nameSuffix))
}

// TempPath returns the in-directory temporary encode target for a segment.
// Writing here and renaming into Path on success keeps partial files from
// ever being visible under the final checkpoint name.
func (s *Store) TempPath(index int) string {
	return filepath.Join(s.dir, fmt.Sprintf(".%s%0*d%s.tmp", namePrefix, nameWidth, index, nameSuffix))
}

// Exists reports whether a non-empty checkpoint is present for the index.
func (s *Store) Exists(index int) bool {
	return fileutil.NonEmptyFile(s.Path(index))
}

// Publish renames the temporary encode target into the final checkpoint path.
func (s *Store) Publish(index int) error {
	tmp := s.TempPath(index)
	if !fileutil.NonEmptyFile(tmp) {
		return fmt.Errorf("refusing to publish empty segment artifact %q", tmp)
	}
	if err := os.Rename(tmp, s.Path(index)); err != nil {
		return fmt.Errorf("publish checkpoint %d: %w", index, err)
	}
	return nil
}

// DiscardTemp removes any leftover temporary encode target for the index.
func (s *Store) DiscardTemp(index int) {
	_ = os.Remove(s.TempPath(index))
}

// List scans the directory and returns all non-empty checkpoints sorted
// ascending by index.
func (s *Store) List() ([]Entry, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("scan checkpoint directory: %w", err)
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		index, ok := parseName(de.Name())
		if !ok {
			continue
		}
		path := filepath.Join(s.dir, de.Name())
		if !fileutil.NonEmptyFile(path) {
			continue
		}
		entries = append(entries, Entry{Index: index, Path: path})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Index < entries[j].Index })
	return entries, nil
}

// Count returns the number of valid checkpoints present.
func (s *Store) Count() (int, error) {
	entries, err := s.List()
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// Any reports whether at least one valid checkpoint exists.
func (s *Store) Any() (bool, error) {
	count, err := s.Count()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func parseName(name string) (int, bool) {
	if !strings.HasPrefix(name, namePrefix) || !strings.HasSuffix(name, nameSuffix) {
		return 0, false
	}
	digits := strings.TrimSuffix(strings.TrimPrefix(name, namePrefix), nameSuffix)
	if len(digits) != nameWidth {
		return 0, false
	}
	index, err := strconv.Atoi(digits)
	if err != nil || index < 0 {
		return 0, false
	}
	return index, true
}
