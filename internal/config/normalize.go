package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	var err error
	if strings.TrimSpace(c.Paths.WorkRoot) == "" {
		c.Paths.WorkRoot = defaultWorkRoot
	}
	if c.Paths.WorkRoot, err = expandPath(c.Paths.WorkRoot); err != nil {
		return fmt.Errorf("paths.work_root: %w", err)
	}

	c.Tools.FFmpeg = fallbackTrim(c.Tools.FFmpeg, defaultFFmpegBinary)
	c.Tools.FFprobe = fallbackTrim(c.Tools.FFprobe, defaultFFprobeBinary)
	c.Tools.Upscaler = fallbackTrim(c.Tools.Upscaler, defaultUpscalerBinary)
	if strings.TrimSpace(c.Tools.ModelDir) != "" {
		if c.Tools.ModelDir, err = expandPath(c.Tools.ModelDir); err != nil {
			return fmt.Errorf("tools.model_dir: %w", err)
		}
	} else {
		c.Tools.ModelDir = ""
	}

	c.Upscale.Model = fallbackTrim(c.Upscale.Model, defaultUpscaleModel)
	c.Upscale.Threads = strings.TrimSpace(c.Upscale.Threads)
	c.Encode.Preset = fallbackTrim(c.Encode.Preset, defaultEncodePreset)
	c.Encode.PixelFormat = fallbackTrim(c.Encode.PixelFormat, defaultPixelFormat)
	c.Audio.Codec = fallbackTrim(c.Audio.Codec, defaultAudioCodec)
	c.Audio.Bitrate = fallbackTrim(c.Audio.Bitrate, defaultAudioBitrate)
	c.Video.FallbackFrameRate = fallbackTrim(c.Video.FallbackFrameRate, defaultFallbackFrameRate)
	c.Video.TargetDAR = strings.TrimSpace(c.Video.TargetDAR)
	c.Video.PreFilter = strings.TrimSpace(c.Video.PreFilter)

	c.Logging.Format = strings.ToLower(fallbackTrim(c.Logging.Format, defaultLogFormat))
	c.Logging.Level = strings.ToLower(fallbackTrim(c.Logging.Level, defaultLogLevel))

	return nil
}

func fallbackTrim(value, fallback string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	return trimmed
}
