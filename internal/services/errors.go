package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrProbe indicates the source could not be opened or reported no duration.
	// There is no safe default duration, so callers must treat this as fatal.
	ErrProbe = errors.New("probe error")
	// ErrConfigMismatch indicates the persisted run configuration record does
	// not match the current invocation while checkpoints already exist.
	ErrConfigMismatch = errors.New("config mismatch")
	// ErrNoFrames indicates a segment window yielded zero extracted frames.
	// This is the natural end of available content, not a failure.
	ErrNoFrames = errors.New("no frames in window")
	// ErrSegment indicates an extract/upscale/encode sub-step failed for a
	// specific segment. Completed checkpoints are preserved.
	ErrSegment = errors.New("segment processing error")
	// ErrReassembly indicates concatenation or the final mux failed, or no
	// checkpoints existed to assemble.
	ErrReassembly = errors.New("reassembly error")
	// ErrExternalTool indicates an external binary failed or is unavailable.
	ErrExternalTool = errors.New("external tool error")
	// ErrConfiguration indicates an invalid configuration or job parameter.
	ErrConfiguration = errors.New("configuration error")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrExternalTool
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// ExitCode maps an error to the process exit status reported by the CLI.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrConfiguration), errors.Is(err, ErrConfigMismatch):
		return 2
	default:
		return 1
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
