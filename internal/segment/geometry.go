package segment

import (
	"fmt"
	"strconv"
	"strings"

	"upres/internal/services/ffmpeg"
)

// OutputGeometry derives the encode target size from the source geometry and
// final scale factor, with an optional display-aspect-ratio override for
// sources carrying wrong or absent pixel-aspect metadata. Width is rounded
// to the nearest even integer, which the encoder's chroma subsampling
// requires.
func OutputGeometry(sourceWidth, sourceHeight, finalScale int, targetDAR string) (ffmpeg.Geometry, error) {
	if sourceWidth <= 0 || sourceHeight <= 0 {
		return ffmpeg.Geometry{}, fmt.Errorf("source geometry must be positive, got %dx%d", sourceWidth, sourceHeight)
	}
	if finalScale <= 0 {
		return ffmpeg.Geometry{}, fmt.Errorf("final scale must be positive, got %d", finalScale)
	}

	height := sourceHeight * finalScale
	width := sourceWidth * finalScale

	if dar := strings.TrimSpace(targetDAR); dar != "" {
		ratio, err := parseRatio(dar)
		if err != nil {
			return ffmpeg.Geometry{}, fmt.Errorf("target display aspect ratio: %w", err)
		}
		width = int(float64(height)*ratio + 0.5)
	}

	return ffmpeg.Geometry{Width: roundEven(width), Height: height}, nil
}

func roundEven(value int) int {
	if value%2 == 0 {
		return value
	}
	return value + 1
}

func parseRatio(value string) (float64, error) {
	parts := strings.Split(value, ":")
	if len(parts) == 1 {
		parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil || parsed <= 0 {
			return 0, fmt.Errorf("invalid ratio %q", value)
		}
		return parsed, nil
	}
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid ratio %q", value)
	}
	num, errNum := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	den, errDen := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if errNum != nil || errDen != nil || num <= 0 || den <= 0 {
		return 0, fmt.Errorf("invalid ratio %q", value)
	}
	return num / den, nil
}
