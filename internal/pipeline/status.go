package pipeline

import (
	"errors"
	"io/fs"
	"os"

	"upres/internal/checkpoint"
	"upres/internal/config"
	"upres/internal/services"
	"upres/internal/workdir"
)

// Status is a read-only snapshot of one source's resumable state.
type Status struct {
	Source       string
	WorkDir      string
	Exists       bool
	Checkpoints  int
	HighestIndex int
	Record       string
	Segments     []SegmentFile
}

// SegmentFile describes one present checkpoint.
type SegmentFile struct {
	Index int
	Bytes int64
}

// Inspect reports the work directory state for a source without touching it.
// It never probes the source, so it works even when the source file is gone.
func Inspect(cfg *config.Config, source string) (Status, error) {
	dir, err := workdir.For(cfg.Paths.WorkRoot, source)
	if err != nil {
		return Status{}, services.Wrap(services.ErrConfiguration, "pipeline", "status", source, err)
	}

	status := Status{
		Source:       source,
		WorkDir:      dir.Root,
		HighestIndex: -1,
	}

	if _, err := os.Stat(dir.Root); errors.Is(err, fs.ErrNotExist) {
		return status, nil
	} else if err != nil {
		return Status{}, services.Wrap(services.ErrConfiguration, "pipeline", "status", dir.Root, err)
	}
	status.Exists = true

	store, err := checkpoint.New(dir.CheckpointsDir())
	if err != nil {
		return Status{}, services.Wrap(services.ErrConfiguration, "pipeline", "status", dir.Root, err)
	}
	entries, err := store.List()
	if err != nil {
		return Status{}, services.Wrap(services.ErrConfiguration, "pipeline", "status", store.Dir(), err)
	}
	status.Checkpoints = len(entries)
	if len(entries) > 0 {
		status.HighestIndex = entries[len(entries)-1].Index
	}
	for _, entry := range entries {
		segment := SegmentFile{Index: entry.Index}
		if info, err := os.Stat(entry.Path); err == nil {
			segment.Bytes = info.Size()
		}
		status.Segments = append(status.Segments, segment)
	}

	if record, err := os.ReadFile(dir.RecordPath()); err == nil {
		status.Record = string(record)
	}

	return status, nil
}
