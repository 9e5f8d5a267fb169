package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatal("expected missing config file")
	}
	if resolved != path {
		t.Fatalf("resolved path = %q, want %q", resolved, path)
	}
	if cfg.Segmenting.LengthSeconds != defaultSegmentLength {
		t.Fatalf("segment length = %d, want default %d", cfg.Segmenting.LengthSeconds, defaultSegmentLength)
	}
	if cfg.Tools.FFmpeg != defaultFFmpegBinary {
		t.Fatalf("ffmpeg binary = %q", cfg.Tools.FFmpeg)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[upscale]
model = "realesrgan-x4plus"
internal_scale = 4
final_scale = 4

[segment]
length_seconds = 60

[logging]
format = "json"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if cfg.Upscale.Model != "realesrgan-x4plus" {
		t.Fatalf("model = %q", cfg.Upscale.Model)
	}
	if cfg.Segmenting.LengthSeconds != 60 {
		t.Fatalf("segment length = %d", cfg.Segmenting.LengthSeconds)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("log format = %q", cfg.Logging.Format)
	}
}

func TestValidateRejectsUnevenScales(t *testing.T) {
	cfg := Default()
	cfg.Upscale.InternalScale = 4
	cfg.Upscale.FinalScale = 3
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error for 4/3 scales")
	}
	if !strings.Contains(err.Error(), "divisible") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRejectsBadQuality(t *testing.T) {
	cfg := Default()
	cfg.Encode.Quality = 99
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for quality 99")
	}
}

func TestValidateRejectsBadThreads(t *testing.T) {
	cfg := Default()
	cfg.Upscale.Threads = "2:2"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for malformed threads")
	}
}

func TestValidateRejectsBadDAR(t *testing.T) {
	cfg := Default()
	cfg.Video.TargetDAR = "wide"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for non-numeric DAR")
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	if _, _, exists, err := Load(path); err != nil || !exists {
		t.Fatalf("sample config did not load cleanly: exists=%v err=%v", exists, err)
	}
}
