// Package plan converts a source duration into the ordered segment windows
// the worker processes. Planning is pure arithmetic so re-planning across
// runs is deterministic for the same source and segment length.
package plan

import "fmt"

// Entry is one contiguous time window of the source.
type Entry struct {
	// Index is the sole identity used for ordering and checkpoint naming.
	Index int
	// StartSeconds is the window offset from the start of the source.
	StartSeconds int
	// LengthSeconds is the window length. The final entry is clipped to the
	// remainder of the source duration.
	LengthSeconds int
}

// Segments partitions [0, totalDurationSeconds) into ceil(total/length)
// non-overlapping, gap-free windows. Non-positive input is a precondition
// violation reported to the caller.
func Segments(totalDurationSeconds, segmentLengthSeconds int) ([]Entry, error) {
	if totalDurationSeconds <= 0 {
		return nil, fmt.Errorf("total duration must be positive, got %d", totalDurationSeconds)
	}
	if segmentLengthSeconds <= 0 {
		return nil, fmt.Errorf("segment length must be positive, got %d", segmentLengthSeconds)
	}

	count := (totalDurationSeconds + segmentLengthSeconds - 1) / segmentLengthSeconds
	entries := make([]Entry, 0, count)
	for i := 0; i < count; i++ {
		start := i * segmentLengthSeconds
		length := segmentLengthSeconds
		if remaining := totalDurationSeconds - start; remaining < length {
			length = remaining
		}
		entries = append(entries, Entry{Index: i, StartSeconds: start, LengthSeconds: length})
	}
	return entries, nil
}
