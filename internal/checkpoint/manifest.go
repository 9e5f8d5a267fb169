package checkpoint

import (
	"fmt"
	"os"
	"strings"
)

// WriteManifest writes an ffmpeg concat-demuxer manifest listing the given
// checkpoints in order. The manifest is regenerated for each assembly run and
// is not authoritative; the directory scan is.
func WriteManifest(path string, entries []Entry) error {
	if len(entries) == 0 {
		return fmt.Errorf("refusing to write empty concat manifest")
	}

	var b strings.Builder
	for _, entry := range entries {
		b.WriteString("file '")
		// Single quotes inside paths follow the concat demuxer escape rule.
		b.WriteString(strings.ReplaceAll(entry.Path, "'", `'\''`))
		b.WriteString("'\n")
	}

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write concat manifest: %w", err)
	}
	return nil
}
