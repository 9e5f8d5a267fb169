package ffprobe

import (
	"context"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"upres/internal/logging"
	"upres/internal/services"
)

// SourceInfo is the probe contract consumed by segment planning and encoding.
type SourceInfo struct {
	// DurationSeconds is the container duration rounded up to whole seconds.
	DurationSeconds int
	// FrameRate is a rational like "30000/1001", suitable for ffmpeg -framerate.
	FrameRate string
	Width     int
	Height    int
	HasAudio  bool
}

// ProbeSource runs ffprobe and interprets the result per the probe contract.
// An unreadable source or missing duration is fatal; a missing frame rate
// falls back to fallbackFrameRate and is only logged, because downstream
// re-encoding tolerates a wrong-but-plausible rate.
func ProbeSource(ctx context.Context, binary, path, fallbackFrameRate string, logger *slog.Logger) (SourceInfo, error) {
	result, err := Inspect(ctx, binary, path)
	if err != nil {
		return SourceInfo{}, services.Wrap(services.ErrProbe, "probe", "inspect", path, err)
	}
	return interpret(result, path, fallbackFrameRate, logger)
}

func interpret(result Result, path, fallbackFrameRate string, logger *slog.Logger) (SourceInfo, error) {
	duration := result.DurationSeconds()
	if duration <= 0 {
		return SourceInfo{}, services.Wrap(services.ErrProbe, "probe", "duration", "source reports no duration: "+path, nil)
	}

	stream, ok := result.FirstVideoStream()
	if !ok || stream.Width <= 0 || stream.Height <= 0 {
		return SourceInfo{}, services.Wrap(services.ErrProbe, "probe", "geometry", "source has no usable video stream: "+path, nil)
	}

	frameRate := stream.FrameRate
	if !validFrameRate(frameRate) {
		if logger != nil {
			logger.Warn("source frame rate unreadable, using fallback",
				logging.String(logging.FieldSource, path),
				logging.String("reported", frameRate),
				logging.String("fallback", fallbackFrameRate))
		}
		frameRate = fallbackFrameRate
	}

	return SourceInfo{
		DurationSeconds: int(math.Ceil(duration)),
		FrameRate:       frameRate,
		Width:           stream.Width,
		Height:          stream.Height,
		HasAudio:        result.AudioStreamCount() > 0,
	}, nil
}

// FrameRateValue converts a rational frame rate string to frames per second.
func FrameRateValue(frameRate string) float64 {
	if !validFrameRate(frameRate) {
		return 0
	}
	if num, den, ok := splitRational(frameRate); ok {
		return num / den
	}
	parsed, _ := strconv.ParseFloat(strings.TrimSpace(frameRate), 64)
	return parsed
}

func validFrameRate(frameRate string) bool {
	trimmed := strings.TrimSpace(frameRate)
	if trimmed == "" || trimmed == "0/0" || strings.EqualFold(trimmed, "N/A") {
		return false
	}
	if num, den, ok := splitRational(trimmed); ok {
		return num > 0 && den > 0
	}
	parsed, err := strconv.ParseFloat(trimmed, 64)
	return err == nil && parsed > 0
}

func splitRational(value string) (num, den float64, ok bool) {
	parts := strings.Split(value, "/")
	if len(parts) != 2 {
		return 0, 0, false
	}
	num, errNum := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	den, errDen := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if errNum != nil || errDen != nil {
		return 0, 0, false
	}
	return num, den, true
}
