// Package upscaler wraps the external per-frame AI upscaling binary
// (realesrgan-ncnn-vulkan or compatible). The service is treated as a pure,
// stateless batch transform over a frame directory and is invoked at most
// once at a time to bound GPU memory use.
package upscaler

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string) error
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string) error {
	cmd := exec.CommandContext(ctx, binary, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}

// Settings describe one batch upscale invocation.
type Settings struct {
	Model string
	// Scale is the model's internal factor (the geometry downsample to the
	// final factor happens at encode time).
	Scale int
	// TileSize bounds GPU memory. Zero lets the binary choose.
	TileSize int
	// Threads is the load:proc:save hint, passed through verbatim.
	Threads string
	// ModelDir optionally points at an alternate model directory.
	ModelDir string
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

// Client wraps upscaler CLI interactions.
type Client struct {
	binary string
	exec   Executor
}

// New constructs an upscaler client.
func New(binary string, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("upscaler binary required")
	}
	client := &Client{binary: binary, exec: commandExecutor{}}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Upscale transforms every frame in inputDir into a geometry-scaled frame of
// the same name in outputDir. Count and ordering are preserved because the
// binary mirrors input names.
func (c *Client) Upscale(ctx context.Context, inputDir, outputDir string, settings Settings) error {
	if settings.Scale <= 0 {
		return errors.New("upscale scale must be positive")
	}
	args := []string{
		"-i", inputDir,
		"-o", outputDir,
		"-n", settings.Model,
		"-s", strconv.Itoa(settings.Scale),
		"-f", "png",
	}
	if settings.TileSize > 0 {
		args = append(args, "-t", strconv.Itoa(settings.TileSize))
	}
	if threads := strings.TrimSpace(settings.Threads); threads != "" {
		args = append(args, "-j", threads)
	}
	if modelDir := strings.TrimSpace(settings.ModelDir); modelDir != "" {
		args = append(args, "-m", modelDir)
	}

	if err := c.exec.Run(ctx, c.binary, args); err != nil {
		return fmt.Errorf("upscale batch: %w", err)
	}
	return nil
}
