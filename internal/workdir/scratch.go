package workdir

import (
	"fmt"
	"os"
	"path/filepath"
)

// Scratch is the transient frame workspace for one segment. It is created
// fresh for each attempt and removed on every exit path, so stale frames
// from a prior partial attempt can never leak into an upscale input.
type Scratch struct {
	Dir       string
	FramesIn  string
	FramesOut string
}

// SegmentScratch creates a fresh scratch workspace for a segment, wiping any
// remains of an earlier attempt for the same index first.
func (d *Dir) SegmentScratch(index int) (*Scratch, error) {
	dir := filepath.Join(d.scratchRoot(), fmt.Sprintf("seg_%05d", index))
	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("clear segment scratch %q: %w", dir, err)
	}

	scratch := &Scratch{
		Dir:       dir,
		FramesIn:  filepath.Join(dir, "frames_in"),
		FramesOut: filepath.Join(dir, "frames_out"),
	}
	for _, sub := range []string{scratch.FramesIn, scratch.FramesOut} {
		if err := os.MkdirAll(sub, 0o755); err != nil {
			return nil, fmt.Errorf("create segment scratch %q: %w", sub, err)
		}
	}
	return scratch, nil
}

// Remove deletes the scratch workspace. Safe to call multiple times.
func (s *Scratch) Remove() {
	_ = os.RemoveAll(s.Dir)
}
