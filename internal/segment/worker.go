// Package segment implements the worker that turns one planned time window
// into an immutable checkpoint: extract frames, run the external upscaler
// over the full ordered sequence, re-encode, and publish by rename. The
// worker is idempotent; a valid existing checkpoint short-circuits all work.
package segment

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"upres/internal/checkpoint"
	"upres/internal/logging"
	"upres/internal/plan"
	"upres/internal/services"
	"upres/internal/services/ffmpeg"
	"upres/internal/services/upscaler"
	"upres/internal/workdir"
)

// Outcome reports what Process did for an entry.
type Outcome int

const (
	// OutcomeProcessed means a new checkpoint was produced.
	OutcomeProcessed Outcome = iota
	// OutcomeSkipped means a valid checkpoint already existed.
	OutcomeSkipped
	// OutcomeEndOfContent means the window yielded zero frames; the source
	// ended before this window and planning should stop.
	OutcomeEndOfContent
)

// FrameExtractor extracts a window of the source into ordered still images.
type FrameExtractor interface {
	ExtractFrames(ctx context.Context, source string, window ffmpeg.Window, frameRate, preFilter, framesDir string) error
}

// FrameUpscaler batch-transforms a frame directory.
type FrameUpscaler interface {
	Upscale(ctx context.Context, inputDir, outputDir string, settings upscaler.Settings) error
}

// Encoder encodes a frame sequence into one segment artifact.
type Encoder interface {
	EncodeSegment(ctx context.Context, framesDir, frameRate string, geometry ffmpeg.Geometry, quality int, preset, pixelFormat, outPath string) error
}

// Params holds the per-job settings shared by every segment.
type Params struct {
	Source      string
	FrameRate   string
	PreFilter   string
	Geometry    ffmpeg.Geometry
	Quality     int
	Preset      string
	PixelFormat string
	Upscale     upscaler.Settings
}

// Worker processes segments sequentially for one job.
type Worker struct {
	dir       *workdir.Dir
	store     *checkpoint.Store
	extractor FrameExtractor
	upscaler  FrameUpscaler
	encoder   Encoder
	params    Params
	logger    *slog.Logger
}

// NewWorker wires a worker for one job.
func NewWorker(dir *workdir.Dir, store *checkpoint.Store, extractor FrameExtractor, upscalerClient FrameUpscaler, encoder Encoder, params Params, logger *slog.Logger) (*Worker, error) {
	if dir == nil || store == nil || extractor == nil || upscalerClient == nil || encoder == nil {
		return nil, fmt.Errorf("worker requires work dir, store, extractor, upscaler, and encoder")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Worker{
		dir:       dir,
		store:     store,
		extractor: extractor,
		upscaler:  upscalerClient,
		encoder:   encoder,
		params:    params,
		logger:    logger.With(logging.Component("segment")),
	}, nil
}

// Process handles one plan entry. Failures abort only this segment; prior
// checkpoints are untouched and a re-invocation will skip them.
func (w *Worker) Process(ctx context.Context, entry plan.Entry) (Outcome, error) {
	log := w.logger.With(logging.Segment(entry.Index))

	if w.store.Exists(entry.Index) {
		log.Info("checkpoint exists, skipping",
			logging.Int("start", entry.StartSeconds),
			logging.Int("length", entry.LengthSeconds))
		return OutcomeSkipped, nil
	}

	// A leftover temp from an interrupted attempt must never survive into
	// this attempt's publish step.
	w.store.DiscardTemp(entry.Index)

	scratch, err := w.dir.SegmentScratch(entry.Index)
	if err != nil {
		return OutcomeProcessed, services.Wrap(services.ErrSegment, "segment", "scratch", segmentLabel(entry), err)
	}
	defer scratch.Remove()

	window := ffmpeg.Window{StartSeconds: entry.StartSeconds, LengthSeconds: entry.LengthSeconds}
	if err := w.extractor.ExtractFrames(ctx, w.params.Source, window, w.params.FrameRate, w.params.PreFilter, scratch.FramesIn); err != nil {
		return OutcomeProcessed, services.Wrap(services.ErrSegment, "segment", "extract", segmentLabel(entry), err)
	}

	extracted, err := countFrames(scratch.FramesIn)
	if err != nil {
		return OutcomeProcessed, services.Wrap(services.ErrSegment, "segment", "extract", segmentLabel(entry), err)
	}
	if extracted == 0 {
		log.Info("window yielded no frames, treating as end of content",
			logging.Int("start", entry.StartSeconds))
		return OutcomeEndOfContent, nil
	}
	log.Debug("frames extracted", logging.Int("frames", extracted))

	if err := w.upscaler.Upscale(ctx, scratch.FramesIn, scratch.FramesOut, w.params.Upscale); err != nil {
		return OutcomeProcessed, services.Wrap(services.ErrSegment, "segment", "upscale", segmentLabel(entry), err)
	}

	upscaled, err := countFrames(scratch.FramesOut)
	if err != nil {
		return OutcomeProcessed, services.Wrap(services.ErrSegment, "segment", "upscale", segmentLabel(entry), err)
	}
	if upscaled != extracted {
		return OutcomeProcessed, services.Wrap(services.ErrSegment, "segment", "upscale",
			fmt.Sprintf("%s: frame count mismatch: extracted %d, upscaled %d", segmentLabel(entry), extracted, upscaled), nil)
	}

	tempPath := w.store.TempPath(entry.Index)
	if err := w.encoder.EncodeSegment(ctx, scratch.FramesOut, w.params.FrameRate, w.params.Geometry, w.params.Quality, w.params.Preset, w.params.PixelFormat, tempPath); err != nil {
		w.store.DiscardTemp(entry.Index)
		return OutcomeProcessed, services.Wrap(services.ErrSegment, "segment", "encode", segmentLabel(entry), err)
	}

	if err := w.store.Publish(entry.Index); err != nil {
		w.store.DiscardTemp(entry.Index)
		return OutcomeProcessed, services.Wrap(services.ErrSegment, "segment", "publish", segmentLabel(entry), err)
	}

	log.Info("checkpoint written",
		logging.Int("frames", extracted),
		logging.String("path", w.store.Path(entry.Index)))
	return OutcomeProcessed, nil
}

func segmentLabel(entry plan.Entry) string {
	return fmt.Sprintf("segment %d", entry.Index)
}

func countFrames(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("scan frame directory: %w", err)
	}
	count := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ".png") {
			count++
		}
	}
	return count, nil
}
