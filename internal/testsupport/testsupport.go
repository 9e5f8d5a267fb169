// Package testsupport centralizes fixtures shared by package tests.
package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"upres/internal/config"
)

// NewConfig returns a validated configuration rooted in a per-test temp
// directory. Tool commands default to binaries that exist on any test host so
// dependency checks pass without ffmpeg installed.
func NewConfig(t *testing.T, mutators ...func(*config.Config)) *config.Config {
	t.Helper()

	cfg := config.Default()
	base := t.TempDir()
	cfg.Paths.WorkRoot = filepath.Join(base, "work")
	cfg.Tools.FFmpeg = "sh"
	cfg.Tools.FFprobe = "sh"
	cfg.Tools.Upscaler = "sh"

	for _, mutate := range mutators {
		mutate(&cfg)
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return &cfg
}

// WriteSourceFile creates a small stand-in source artifact and returns its path.
func WriteSourceFile(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("not really a video"), 0o644); err != nil {
		t.Fatalf("write source file: %v", err)
	}
	return path
}
