// Package fingerprint guards a work directory against configuration drift.
// Segment checkpoints carry no embedded provenance, so the persisted run
// configuration record is the only thing preventing segments encoded under
// different settings from being concatenated into one corrupted output.
package fingerprint

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"upres/internal/services"
)

// RecordFileName is the run configuration record inside a work directory.
const RecordFileName = "upscale.conf"

// Record captures every parameter that affects segment output bytes.
type Record struct {
	Model         string
	InternalScale int
	FinalScale    int
	Quality       int
	Preset        string
	PixelFormat   string
	PreFilter     string
	FrameRate     string
	TargetDAR     string
	SegmentLength int
}

// Canonical returns the order-stable plain-text serialization of the record:
// sorted key=value lines with a trailing newline, compared byte-for-byte.
func (r Record) Canonical() string {
	pairs := map[string]string{
		"model":          strings.TrimSpace(r.Model),
		"internal_scale": fmt.Sprintf("%d", r.InternalScale),
		"final_scale":    fmt.Sprintf("%d", r.FinalScale),
		"quality":        fmt.Sprintf("%d", r.Quality),
		"preset":         strings.TrimSpace(r.Preset),
		"pixel_format":   strings.TrimSpace(r.PixelFormat),
		"pre_filter":     strings.TrimSpace(r.PreFilter),
		"frame_rate":     strings.TrimSpace(r.FrameRate),
		"target_dar":     strings.TrimSpace(r.TargetDAR),
		"segment_length": fmt.Sprintf("%d", r.SegmentLength),
	}

	keys := make([]string, 0, len(pairs))
	for key := range pairs {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, key := range keys {
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(pairs[key])
		b.WriteByte('\n')
	}
	return b.String()
}

// Enforce applies the consistency check against the record persisted at path.
//
// The persisted record only gates when checkpoints already exist: with no
// completed work there is nothing the new configuration could be mixed with,
// so the record is rewritten unconditionally. A mismatch with checkpoints
// present fails unless allowOverride is set, in which case the operator has
// accepted the risk of a mixed-configuration output and the record is
// silently overwritten.
func Enforce(path string, current Record, checkpointsExist, allowOverride bool) error {
	canonical := current.Canonical()

	if checkpointsExist {
		persisted, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// Checkpoints without a record: treat as match-unknown and rewrite.
		case err != nil:
			return services.Wrap(services.ErrConfigMismatch, "fingerprint", "read record", path, err)
		case string(persisted) != canonical:
			if !allowOverride {
				return services.Wrap(services.ErrConfigMismatch, "fingerprint", "verify",
					fmt.Sprintf("configuration differs from the one that produced existing checkpoints; delete the checkpoints under %q to re-process, or pass --allow-mixed-config to proceed anyway", path), nil)
			}
		}
	}

	if err := os.WriteFile(path, []byte(canonical), 0o644); err != nil {
		return services.Wrap(services.ErrConfigMismatch, "fingerprint", "write record", path, err)
	}
	return nil
}
