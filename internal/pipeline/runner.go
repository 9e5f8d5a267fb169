// Package pipeline orchestrates a full run: probe, plan, the sequential
// segment loop, and final reassembly. Resume needs no run state beyond the
// checkpoint directory, so the runner re-derives everything else on every
// invocation.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"upres/internal/assemble"
	"upres/internal/checkpoint"
	"upres/internal/config"
	"upres/internal/deps"
	"upres/internal/fingerprint"
	"upres/internal/logging"
	"upres/internal/media/ffprobe"
	"upres/internal/plan"
	"upres/internal/runlog"
	"upres/internal/segment"
	"upres/internal/services"
	"upres/internal/services/ffmpeg"
	"upres/internal/services/upscaler"
	"upres/internal/workdir"
)

// Job is one source-to-destination upscale request.
type Job struct {
	Source string
	Dest   string
	// AllowMixedConfig accepts a configuration mismatch against existing
	// checkpoints instead of refusing the run.
	AllowMixedConfig bool
}

// Prober inspects a media file per the probe contract.
type Prober interface {
	Probe(ctx context.Context, path string) (ffprobe.SourceInfo, error)
}

type commandProber struct {
	binary            string
	fallbackFrameRate string
	logger            *slog.Logger
}

func (p commandProber) Probe(ctx context.Context, path string) (ffprobe.SourceInfo, error) {
	return ffprobe.ProbeSource(ctx, p.binary, path, p.fallbackFrameRate, p.logger)
}

// Runner executes jobs against one configuration.
type Runner struct {
	cfg    *config.Config
	ledger *runlog.Store
	logger *slog.Logger

	prober    Prober
	extractor segment.FrameExtractor
	upscaler  segment.FrameUpscaler
	encoder   segment.Encoder
	concat    assemble.Concatenator
	mux       assemble.Muxer
}

// Option configures the runner.
type Option func(*Runner)

// WithProber injects a custom prober (primarily for tests).
func WithProber(p Prober) Option {
	return func(r *Runner) {
		if p != nil {
			r.prober = p
		}
	}
}

// WithFrameServices injects the per-segment services (primarily for tests).
func WithFrameServices(extractor segment.FrameExtractor, upscalerClient segment.FrameUpscaler, encoder segment.Encoder) Option {
	return func(r *Runner) {
		if extractor != nil {
			r.extractor = extractor
		}
		if upscalerClient != nil {
			r.upscaler = upscalerClient
		}
		if encoder != nil {
			r.encoder = encoder
		}
	}
}

// WithAssemblyServices injects the reassembly services (primarily for tests).
func WithAssemblyServices(concat assemble.Concatenator, mux assemble.Muxer) Option {
	return func(r *Runner) {
		if concat != nil {
			r.concat = concat
		}
		if mux != nil {
			r.mux = mux
		}
	}
}

// NewRunner wires a runner from configuration. The ledger is optional; a nil
// ledger disables run history without affecting pipeline behavior.
func NewRunner(cfg *config.Config, ledger *runlog.Store, logger *slog.Logger, opts ...Option) (*Runner, error) {
	if cfg == nil {
		return nil, errors.New("runner requires configuration")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	ffmpegClient, err := ffmpeg.New(cfg.Tools.FFmpeg)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg client: %w", err)
	}
	upscalerClient, err := upscaler.New(cfg.Tools.Upscaler)
	if err != nil {
		return nil, fmt.Errorf("upscaler client: %w", err)
	}

	runner := &Runner{
		cfg:    cfg,
		ledger: ledger,
		logger: logger.With(logging.Component("pipeline")),
		prober: commandProber{
			binary:            cfg.Tools.FFprobe,
			fallbackFrameRate: cfg.Video.FallbackFrameRate,
			logger:            logger,
		},
		extractor: ffmpegClient,
		upscaler:  upscalerClient,
		encoder:   ffmpegClient,
		concat:    ffmpegClient,
		mux:       ffmpegClient,
	}
	for _, opt := range opts {
		opt(runner)
	}
	return runner, nil
}

// Run executes one job end to end. A failed segment aborts the run but leaves
// every published checkpoint in place for the next invocation to resume from.
func (r *Runner) Run(ctx context.Context, job Job) error {
	if err := r.validateJob(job); err != nil {
		return err
	}
	if err := r.checkDependencies(); err != nil {
		return err
	}

	info, err := r.prober.Probe(ctx, job.Source)
	if err != nil {
		return err
	}
	r.logger.Info("source probed",
		logging.String(logging.FieldSource, job.Source),
		logging.Int("duration_seconds", info.DurationSeconds),
		logging.String("frame_rate", info.FrameRate),
		logging.String("geometry", fmt.Sprintf("%dx%d", info.Width, info.Height)),
		logging.Bool("has_audio", info.HasAudio))

	geometry, err := segment.OutputGeometry(info.Width, info.Height, r.cfg.Upscale.FinalScale, r.cfg.Video.TargetDAR)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "pipeline", "geometry", job.Source, err)
	}

	if err := r.cfg.EnsureDirectories(); err != nil {
		return services.Wrap(services.ErrConfiguration, "pipeline", "work root", r.cfg.Paths.WorkRoot, err)
	}
	dir, err := workdir.For(r.cfg.Paths.WorkRoot, job.Source)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "pipeline", "work directory", job.Source, err)
	}
	if err := dir.Ensure(); err != nil {
		return services.Wrap(services.ErrConfiguration, "pipeline", "work directory", dir.Root, err)
	}
	if err := dir.Acquire(); err != nil {
		return services.Wrap(services.ErrConfiguration, "pipeline", "lock", dir.Root, err)
	}
	defer dir.Release()

	store, err := checkpoint.New(dir.CheckpointsDir())
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "pipeline", "checkpoint store", dir.Root, err)
	}

	record := r.record(info.FrameRate)
	hasCheckpoints, err := store.Any()
	if err != nil {
		return services.Wrap(services.ErrConfigMismatch, "pipeline", "scan checkpoints", store.Dir(), err)
	}
	if err := fingerprint.Enforce(dir.RecordPath(), record, hasCheckpoints, job.AllowMixedConfig); err != nil {
		return err
	}
	if hasCheckpoints {
		count, _ := store.Count()
		r.logger.Info("resuming from existing checkpoints", logging.Int("checkpoints", count))
	}

	entries, err := plan.Segments(info.DurationSeconds, r.cfg.Segmenting.LengthSeconds)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "pipeline", "plan", job.Source, err)
	}

	runID := r.beginRun(ctx, job, record, len(entries))

	done, err := r.processSegments(ctx, job, runID, dir, store, geometry, info, entries)
	if err != nil {
		r.finishRun(ctx, runID, runlog.OutcomeFailed, done, err.Error())
		return err
	}

	assembler, err := assemble.New(dir, store, r.concat, r.mux, r.logger)
	if err != nil {
		r.finishRun(ctx, runID, runlog.OutcomeFailed, done, err.Error())
		return services.Wrap(services.ErrReassembly, "pipeline", "assembler", job.Dest, err)
	}
	request := assemble.Request{
		Source:       job.Source,
		Dest:         job.Dest,
		HasAudio:     info.HasAudio,
		AudioCodec:   r.cfg.Audio.Codec,
		AudioBitrate: r.cfg.Audio.Bitrate,
	}
	if err := assembler.Assemble(ctx, request); err != nil {
		r.finishRun(ctx, runID, runlog.OutcomeFailed, done, err.Error())
		return err
	}

	if err := r.verifyOutput(ctx, job.Dest, info.HasAudio); err != nil {
		r.finishRun(ctx, runID, runlog.OutcomeFailed, done, err.Error())
		return err
	}

	r.finishRun(ctx, runID, runlog.OutcomeCompleted, done, "")
	r.logger.Info("run complete",
		logging.String(logging.FieldSource, job.Source),
		logging.String("dest", job.Dest),
		logging.Int("segments", done))
	return nil
}

func (r *Runner) processSegments(ctx context.Context, job Job, runID string, dir *workdir.Dir, store *checkpoint.Store, geometry ffmpeg.Geometry, info ffprobe.SourceInfo, entries []plan.Entry) (int, error) {
	params := segment.Params{
		Source:      job.Source,
		FrameRate:   info.FrameRate,
		PreFilter:   r.cfg.Video.PreFilter,
		Geometry:    geometry,
		Quality:     r.cfg.Encode.Quality,
		Preset:      r.cfg.Encode.Preset,
		PixelFormat: r.cfg.Encode.PixelFormat,
		Upscale: upscaler.Settings{
			Model:    r.cfg.Upscale.Model,
			Scale:    r.cfg.Upscale.InternalScale,
			TileSize: r.cfg.Upscale.TileSize,
			Threads:  r.cfg.Upscale.Threads,
			ModelDir: r.cfg.Tools.ModelDir,
		},
	}
	worker, err := segment.NewWorker(dir, store, r.extractor, r.upscaler, r.encoder, params, r.logger)
	if err != nil {
		return 0, services.Wrap(services.ErrSegment, "pipeline", "worker", job.Source, err)
	}

	done := 0
	for _, entry := range entries {
		r.logger.Info(fmt.Sprintf("[%d/%d] segment", entry.Index+1, len(entries)),
			logging.Segment(entry.Index),
			logging.Int("start", entry.StartSeconds),
			logging.Int("length", entry.LengthSeconds))

		outcome, err := worker.Process(ctx, entry)
		if err != nil {
			return done, err
		}
		if outcome == segment.OutcomeEndOfContent {
			r.logger.Info("source ended before planned duration, stopping segment loop",
				logging.Segment(entry.Index))
			break
		}
		done++
		r.progressRun(ctx, runID, done)
	}
	if done == 0 {
		return 0, services.Wrap(services.ErrNoFrames, "pipeline", "segments",
			"source yielded no frames in any planned window: "+job.Source, nil)
	}
	return done, nil
}

// verifyOutput re-probes the final artifact; a destination ffprobe cannot
// read, or one with the wrong audio presence, means reassembly produced
// garbage even though every step reported success.
func (r *Runner) verifyOutput(ctx context.Context, dest string, wantAudio bool) error {
	info, err := r.prober.Probe(ctx, dest)
	if err != nil {
		return services.Wrap(services.ErrReassembly, "pipeline", "verify output", dest, err)
	}
	if info.HasAudio != wantAudio {
		return services.Wrap(services.ErrReassembly, "pipeline", "verify output",
			fmt.Sprintf("%s: audio present=%t, expected %t", dest, info.HasAudio, wantAudio), nil)
	}
	r.logger.Info("output verified",
		logging.String("dest", dest),
		logging.Int("duration_seconds", info.DurationSeconds),
		logging.String("geometry", fmt.Sprintf("%dx%d", info.Width, info.Height)),
		logging.Bool("has_audio", info.HasAudio))
	return nil
}

func (r *Runner) validateJob(job Job) error {
	if strings.TrimSpace(job.Source) == "" {
		return services.Wrap(services.ErrConfiguration, "pipeline", "job", "source path required", nil)
	}
	if strings.TrimSpace(job.Dest) == "" {
		return services.Wrap(services.ErrConfiguration, "pipeline", "job", "destination path required", nil)
	}
	info, err := os.Stat(job.Source)
	if errors.Is(err, fs.ErrNotExist) {
		return services.Wrap(services.ErrConfiguration, "pipeline", "job", "source does not exist: "+job.Source, nil)
	}
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "pipeline", "job", job.Source, err)
	}
	if info.IsDir() {
		return services.Wrap(services.ErrConfiguration, "pipeline", "job", "source is a directory: "+job.Source, nil)
	}
	return nil
}

func (r *Runner) checkDependencies() error {
	statuses := deps.CheckBinaries(deps.Requirements(r.cfg))
	if missing := deps.MissingRequired(statuses); len(missing) > 0 {
		return services.Wrap(services.ErrConfiguration, "pipeline", "dependencies",
			"missing required tools: "+strings.Join(missing, ", "), nil)
	}
	return nil
}

func (r *Runner) record(frameRate string) fingerprint.Record {
	return fingerprint.Record{
		Model:         r.cfg.Upscale.Model,
		InternalScale: r.cfg.Upscale.InternalScale,
		FinalScale:    r.cfg.Upscale.FinalScale,
		Quality:       r.cfg.Encode.Quality,
		Preset:        r.cfg.Encode.Preset,
		PixelFormat:   r.cfg.Encode.PixelFormat,
		PreFilter:     r.cfg.Video.PreFilter,
		FrameRate:     frameRate,
		TargetDAR:     r.cfg.Video.TargetDAR,
		SegmentLength: r.cfg.Segmenting.LengthSeconds,
	}
}

func (r *Runner) beginRun(ctx context.Context, job Job, record fingerprint.Record, total int) string {
	if r.ledger == nil {
		return ""
	}
	id, err := r.ledger.Begin(ctx, job.Source, job.Dest, record.Canonical(), total)
	if err != nil {
		r.logger.Warn("run ledger unavailable", logging.Error(err))
		return ""
	}
	return id
}

func (r *Runner) progressRun(ctx context.Context, id string, done int) {
	if r.ledger == nil || id == "" {
		return
	}
	if err := r.ledger.Progress(ctx, id, done); err != nil {
		r.logger.Warn("run ledger update failed", logging.Error(err))
	}
}

func (r *Runner) finishRun(ctx context.Context, id string, outcome runlog.Outcome, done int, message string) {
	if r.ledger == nil || id == "" {
		return
	}
	if err := r.ledger.Finish(ctx, id, outcome, done, message); err != nil {
		r.logger.Warn("run ledger update failed", logging.Error(err))
	}
}
