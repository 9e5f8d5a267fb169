// Package ffprobe wraps ffprobe invocations and interprets container
// metadata for the pipeline's source probe contract.
package ffprobe
