package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	// WorkRoot holds one work directory per source, keyed by source base name.
	WorkRoot string `toml:"work_root"`
}

// Tools contains the external binaries the pipeline shells out to.
type Tools struct {
	FFmpeg   string `toml:"ffmpeg"`
	FFprobe  string `toml:"ffprobe"`
	Upscaler string `toml:"upscaler"`
	ModelDir string `toml:"model_dir"`
}

// Upscale contains settings for the external frame upscaler.
type Upscale struct {
	Model string `toml:"model"`
	// InternalScale is the factor the upscaler model produces.
	InternalScale int `toml:"internal_scale"`
	// FinalScale is the factor applied to the output geometry. Must divide
	// InternalScale evenly; the encoder downsamples the difference.
	FinalScale int `toml:"final_scale"`
	// TileSize bounds GPU memory use. Zero lets the upscaler choose.
	TileSize int `toml:"tile_size"`
	// Threads is the load:proc:save concurrency hint passed through verbatim.
	Threads string `toml:"threads"`
}

// Encode contains settings for segment re-encoding.
type Encode struct {
	Quality     int    `toml:"quality"`
	Preset      string `toml:"preset"`
	PixelFormat string `toml:"pixel_format"`
}

// Audio contains settings for the final audio remux.
type Audio struct {
	Codec   string `toml:"codec"`
	Bitrate string `toml:"bitrate"`
}

// Segmenting contains segment planning defaults.
type Segmenting struct {
	LengthSeconds int `toml:"length_seconds"`
}

// Video contains source interpretation settings.
type Video struct {
	// FallbackFrameRate is used when the source reports no frame rate.
	// Downstream encoding tolerates a wrong-but-plausible rate; an unknown
	// duration has no such fallback.
	FallbackFrameRate string `toml:"fallback_frame_rate"`
	// TargetDAR optionally overrides the source display aspect ratio
	// (analog captures often carry wrong or absent pixel-aspect metadata).
	TargetDAR string `toml:"target_dar"`
	// PreFilter is an optional ffmpeg filter chain applied before frame
	// extraction (denoise, color crush).
	PreFilter string `toml:"pre_filter"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for upres.
type Config struct {
	Paths      Paths      `toml:"paths"`
	Tools      Tools      `toml:"tools"`
	Upscale    Upscale    `toml:"upscale"`
	Encode     Encode     `toml:"encode"`
	Audio      Audio      `toml:"audio"`
	Segmenting Segmenting `toml:"segment"`
	Video      Video      `toml:"video"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/upres/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. The bool reports
// whether a file existed at the resolved path.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("upres.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the work root if it does not exist yet.
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.Paths.WorkRoot, 0o755); err != nil {
		return fmt.Errorf("create work root %q: %w", c.Paths.WorkRoot, err)
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
