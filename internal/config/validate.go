package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateUpscale(); err != nil {
		return err
	}
	if err := c.validateEncode(); err != nil {
		return err
	}
	if err := c.validateSegmenting(); err != nil {
		return err
	}
	if err := c.validateVideo(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateUpscale() error {
	if c.Upscale.InternalScale <= 0 {
		return errors.New("upscale.internal_scale must be positive")
	}
	if c.Upscale.FinalScale <= 0 {
		return errors.New("upscale.final_scale must be positive")
	}
	if c.Upscale.InternalScale%c.Upscale.FinalScale != 0 {
		return fmt.Errorf("upscale.internal_scale %d must be divisible by upscale.final_scale %d",
			c.Upscale.InternalScale, c.Upscale.FinalScale)
	}
	if c.Upscale.TileSize < 0 {
		return errors.New("upscale.tile_size must not be negative")
	}
	if threads := c.Upscale.Threads; threads != "" {
		if strings.Count(threads, ":") != 2 {
			return fmt.Errorf("upscale.threads must use load:proc:save form, got %q", threads)
		}
	}
	return nil
}

func (c *Config) validateEncode() error {
	// libx264 accepts CRF 0-51.
	if c.Encode.Quality < 0 || c.Encode.Quality > 51 {
		return fmt.Errorf("encode.quality must be within 0-51, got %d", c.Encode.Quality)
	}
	return nil
}

func (c *Config) validateSegmenting() error {
	if c.Segmenting.LengthSeconds <= 0 {
		return errors.New("segment.length_seconds must be positive")
	}
	return nil
}

func (c *Config) validateVideo() error {
	if dar := c.Video.TargetDAR; dar != "" {
		if err := validateRatio(dar); err != nil {
			return fmt.Errorf("video.target_dar: %w", err)
		}
	}
	if err := validateRatio(strings.ReplaceAll(c.Video.FallbackFrameRate, "/", ":")); err != nil {
		return fmt.Errorf("video.fallback_frame_rate: %w", err)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "auto", "console", "json":
	default:
		return fmt.Errorf("logging.format must be auto, console, or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}

func validateRatio(value string) error {
	parts := strings.Split(value, ":")
	if len(parts) == 1 {
		parts = []string{value, "1"}
	}
	if len(parts) != 2 {
		return fmt.Errorf("expected W:H form, got %q", value)
	}
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			return fmt.Errorf("expected W:H form, got %q", value)
		}
		for _, r := range trimmed {
			if (r < '0' || r > '9') && r != '.' {
				return fmt.Errorf("non-numeric component %q", part)
			}
		}
	}
	return nil
}
