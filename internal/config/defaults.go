package config

const (
	defaultWorkRoot          = "~/.local/share/upres/work"
	defaultFFmpegBinary      = "ffmpeg"
	defaultFFprobeBinary     = "ffprobe"
	defaultUpscalerBinary    = "realesrgan-ncnn-vulkan"
	defaultUpscaleModel      = "realesr-animevideov3"
	defaultInternalScale     = 4
	defaultFinalScale        = 2
	defaultUpscaleThreads    = "1:2:2"
	defaultEncodeQuality     = 18
	defaultEncodePreset      = "medium"
	defaultPixelFormat       = "yuv420p"
	defaultAudioCodec        = "aac"
	defaultAudioBitrate      = "192k"
	defaultSegmentLength     = 30
	defaultFallbackFrameRate = "30000/1001"
	defaultLogFormat         = "auto"
	defaultLogLevel          = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkRoot: defaultWorkRoot,
		},
		Tools: Tools{
			FFmpeg:   defaultFFmpegBinary,
			FFprobe:  defaultFFprobeBinary,
			Upscaler: defaultUpscalerBinary,
		},
		Upscale: Upscale{
			Model:         defaultUpscaleModel,
			InternalScale: defaultInternalScale,
			FinalScale:    defaultFinalScale,
			Threads:       defaultUpscaleThreads,
		},
		Encode: Encode{
			Quality:     defaultEncodeQuality,
			Preset:      defaultEncodePreset,
			PixelFormat: defaultPixelFormat,
		},
		Audio: Audio{
			Codec:   defaultAudioCodec,
			Bitrate: defaultAudioBitrate,
		},
		Segmenting: Segmenting{
			LengthSeconds: defaultSegmentLength,
		},
		Video: Video{
			FallbackFrameRate: defaultFallbackFrameRate,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
