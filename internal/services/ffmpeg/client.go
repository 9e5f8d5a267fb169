// Package ffmpeg wraps the ffmpeg CLI invocations the pipeline needs:
// frame extraction, segment encoding, structural concatenation, and the
// final audio remux.
package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// FramePattern is the printf pattern for extracted and upscaled frames.
// Sequential numbering keeps frame order identical across extract, upscale,
// and encode.
const FramePattern = "frame_%06d.png"

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string) error
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string) error {
	cmd := exec.CommandContext(ctx, binary, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, tail(string(output), 2048))
	}
	return nil
}

func tail(s string, limit int) string {
	s = strings.TrimSpace(s)
	if len(s) <= limit {
		return s
	}
	return "..." + s[len(s)-limit:]
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// Client wraps ffmpeg CLI interactions.
type Client struct {
	binary string
	exec   Executor
}

// New constructs an ffmpeg client.
func New(binary string, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("ffmpeg binary required")
	}
	client := &Client{binary: binary, exec: commandExecutor{}}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Window is one segment's time range in the source.
type Window struct {
	StartSeconds  int
	LengthSeconds int
}

// Geometry is the target output frame size.
type Geometry struct {
	Width  int
	Height int
}

// ExtractFrames decodes the window into an ordered still-image sequence at
// the given frame rate, optionally applying a pre-filter chain first.
func (c *Client) ExtractFrames(ctx context.Context, source string, window Window, frameRate, preFilter, framesDir string) error {
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-ss", strconv.Itoa(window.StartSeconds),
		"-t", strconv.Itoa(window.LengthSeconds),
		"-i", source,
	}
	if strings.TrimSpace(preFilter) != "" {
		args = append(args, "-vf", preFilter)
	}
	args = append(args,
		"-r", frameRate,
		"-y", filepath.Join(framesDir, FramePattern),
	)
	if err := c.exec.Run(ctx, c.binary, args); err != nil {
		return fmt.Errorf("ffmpeg extract: %w", err)
	}
	return nil
}

// EncodeSegment encodes an ordered frame sequence into one playable segment
// artifact at the target frame rate and geometry. The scale filter performs
// the internal-to-final downsample and any display-aspect correction;
// setsar=1 keeps players from re-stretching the already corrected frames.
func (c *Client) EncodeSegment(ctx context.Context, framesDir, frameRate string, geometry Geometry, quality int, preset, pixelFormat, outPath string) error {
	scale := fmt.Sprintf("scale=%d:%d:flags=lanczos,setsar=1", geometry.Width, geometry.Height)
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-framerate", frameRate,
		"-i", filepath.Join(framesDir, FramePattern),
		"-vf", scale,
		"-c:v", "libx264",
		"-preset", preset,
		"-crf", strconv.Itoa(quality),
		"-pix_fmt", pixelFormat,
		"-y", outPath,
	}
	if err := c.exec.Run(ctx, c.binary, args); err != nil {
		return fmt.Errorf("ffmpeg encode: %w", err)
	}
	return nil
}

// Concat splices same-codec segment artifacts listed in the manifest into
// one video without re-encoding.
func (c *Client) Concat(ctx context.Context, manifestPath, outPath string) error {
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-f", "concat", "-safe", "0",
		"-i", manifestPath,
		"-c", "copy",
		"-y", outPath,
	}
	if err := c.exec.Run(ctx, c.binary, args); err != nil {
		return fmt.Errorf("ffmpeg concat: %w", err)
	}
	return nil
}

// Mux combines the concatenated video with the original source's first audio
// stream, copying video and re-encoding audio. -shortest truncates to the
// shorter stream, so planner round-up can not leave trailing silent video.
func (c *Client) Mux(ctx context.Context, videoPath, sourcePath, audioCodec, audioBitrate, outPath string) error {
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", videoPath,
		"-i", sourcePath,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", "copy",
		"-c:a", audioCodec,
		"-b:a", audioBitrate,
		"-shortest",
		"-y", outPath,
	}
	if err := c.exec.Run(ctx, c.binary, args); err != nil {
		return fmt.Errorf("ffmpeg mux: %w", err)
	}
	return nil
}
