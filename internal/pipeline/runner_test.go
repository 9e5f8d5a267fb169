package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"upres/internal/checkpoint"
	"upres/internal/config"
	"upres/internal/logging"
	"upres/internal/media/ffprobe"
	"upres/internal/runlog"
	"upres/internal/services"
	"upres/internal/services/ffmpeg"
	"upres/internal/services/upscaler"
	"upres/internal/testsupport"
	"upres/internal/workdir"
)

type fakeProber struct {
	info   ffprobe.SourceInfo
	err    error
	probed []string
}

func (f *fakeProber) Probe(_ context.Context, path string) (ffprobe.SourceInfo, error) {
	f.probed = append(f.probed, path)
	if f.err != nil {
		return ffprobe.SourceInfo{}, f.err
	}
	return f.info, nil
}

type fakeExtractor struct {
	frames  int
	failAt  int
	calls   int
	windows []ffmpeg.Window
}

func (f *fakeExtractor) ExtractFrames(_ context.Context, _ string, window ffmpeg.Window, _, _, framesDir string) error {
	f.calls++
	f.windows = append(f.windows, window)
	if f.failAt > 0 && f.calls == f.failAt {
		return errors.New("extract blew up")
	}
	for i := 1; i <= f.frames; i++ {
		name := filepath.Join(framesDir, fmt.Sprintf("frame_%06d.png", i))
		if err := os.WriteFile(name, []byte("png"), 0o644); err != nil {
			return err
		}
	}
	return nil
}

type fakeUpscaler struct{ calls int }

func (f *fakeUpscaler) Upscale(_ context.Context, inputDir, outputDir string, _ upscaler.Settings) error {
	f.calls++
	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if err := os.WriteFile(filepath.Join(outputDir, entry.Name()), []byte("bigger"), 0o644); err != nil {
			return err
		}
	}
	return nil
}

type fakeEncoder struct{ calls int }

func (f *fakeEncoder) EncodeSegment(_ context.Context, _, _ string, _ ffmpeg.Geometry, _ int, _, _, outPath string) error {
	f.calls++
	return os.WriteFile(outPath, []byte("segment video"), 0o644)
}

type fakeConcat struct{ calls int }

func (f *fakeConcat) Concat(_ context.Context, _, outPath string) error {
	f.calls++
	return os.WriteFile(outPath, []byte("joined video"), 0o644)
}

type fakeMux struct{ calls int }

func (f *fakeMux) Mux(_ context.Context, _, _, _, _, outPath string) error {
	f.calls++
	return os.WriteFile(outPath, []byte("joined with audio"), 0o644)
}

type fixture struct {
	cfg       *config.Config
	prober    *fakeProber
	extractor *fakeExtractor
	upscaler  *fakeUpscaler
	encoder   *fakeEncoder
	concat    *fakeConcat
	mux       *fakeMux
	runner    *Runner
	source    string
	dest      string
}

func newFixture(t *testing.T, ledger *runlog.Store, mutators ...func(*config.Config)) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t, mutators...)

	f := &fixture{
		cfg: cfg,
		prober: &fakeProber{info: ffprobe.SourceInfo{
			DurationSeconds: 95,
			FrameRate:       "30000/1001",
			Width:           720,
			Height:          480,
			HasAudio:        true,
		}},
		extractor: &fakeExtractor{frames: 3},
		upscaler:  &fakeUpscaler{},
		encoder:   &fakeEncoder{},
		concat:    &fakeConcat{},
		mux:       &fakeMux{},
		source:    testsupport.WriteSourceFile(t, "tape.mkv"),
	}
	f.dest = filepath.Join(t.TempDir(), "tape_upscaled.mkv")

	runner, err := NewRunner(cfg, ledger, logging.NewNop(),
		WithProber(f.prober),
		WithFrameServices(f.extractor, f.upscaler, f.encoder),
		WithAssemblyServices(f.concat, f.mux))
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	f.runner = runner
	return f
}

func (f *fixture) job() Job {
	return Job{Source: f.source, Dest: f.dest}
}

func (f *fixture) store(t *testing.T) *checkpoint.Store {
	t.Helper()
	dir, err := workdir.For(f.cfg.Paths.WorkRoot, f.source)
	if err != nil {
		t.Fatalf("workdir.For: %v", err)
	}
	store, err := checkpoint.New(dir.CheckpointsDir())
	if err != nil {
		t.Fatalf("checkpoint.New: %v", err)
	}
	return store
}

func TestRunProcessesAllSegmentsAndAssembles(t *testing.T) {
	f := newFixture(t, nil)

	if err := f.runner.Run(context.Background(), f.job()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	// 95s at the default 30s segment length plans four windows.
	if f.extractor.calls != 4 {
		t.Fatalf("extract calls = %d, want 4", f.extractor.calls)
	}
	if last := f.extractor.windows[3]; last.StartSeconds != 90 || last.LengthSeconds != 5 {
		t.Fatalf("last window = %+v", last)
	}
	if f.concat.calls != 1 || f.mux.calls != 1 {
		t.Fatalf("concat=%d mux=%d", f.concat.calls, f.mux.calls)
	}
	if _, err := os.Stat(f.dest); err != nil {
		t.Fatalf("destination missing: %v", err)
	}
	// Final artifact gets re-probed.
	if len(f.prober.probed) != 2 || f.prober.probed[1] != f.dest {
		t.Fatalf("probed = %v", f.prober.probed)
	}
}

func TestRunResumesFromExistingCheckpoints(t *testing.T) {
	f := newFixture(t, nil)

	if err := f.runner.Run(context.Background(), f.job()); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	firstCalls := f.extractor.calls

	if err := f.runner.Run(context.Background(), f.job()); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if f.extractor.calls != firstCalls {
		t.Fatalf("resume re-extracted segments: %d calls, want %d", f.extractor.calls, firstCalls)
	}
	if f.concat.calls != 2 {
		t.Fatal("resume should still reassemble")
	}
}

func TestRunFailedSegmentKeepsPriorCheckpoints(t *testing.T) {
	f := newFixture(t, nil)
	f.extractor.failAt = 3

	err := f.runner.Run(context.Background(), f.job())
	if !errors.Is(err, services.ErrSegment) {
		t.Fatalf("expected ErrSegment, got %v", err)
	}

	store := f.store(t)
	count, err := store.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 2 {
		t.Fatalf("checkpoints = %d, want the 2 published before the failure", count)
	}
	if f.concat.calls != 0 {
		t.Fatal("failed run must not assemble")
	}

	// A rerun picks up after the survivors without repeating them.
	f.extractor.failAt = 0
	callsBefore := f.extractor.calls
	if err := f.runner.Run(context.Background(), f.job()); err != nil {
		t.Fatalf("rerun: %v", err)
	}
	if got := f.extractor.calls - callsBefore; got != 2 {
		t.Fatalf("rerun extracted %d segments, want the 2 missing ones", got)
	}
}

func TestRunConfigMismatchRefusesWithoutOverride(t *testing.T) {
	f := newFixture(t, nil)
	if err := f.runner.Run(context.Background(), f.job()); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	changed := *f.cfg
	changed.Encode.Quality = 23
	runner, err := NewRunner(&changed, nil, logging.NewNop(),
		WithProber(f.prober),
		WithFrameServices(f.extractor, f.upscaler, f.encoder),
		WithAssemblyServices(f.concat, f.mux))
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	err = runner.Run(context.Background(), f.job())
	if !errors.Is(err, services.ErrConfigMismatch) {
		t.Fatalf("expected ErrConfigMismatch, got %v", err)
	}

	if err := runner.Run(context.Background(), Job{Source: f.source, Dest: f.dest, AllowMixedConfig: true}); err != nil {
		t.Fatalf("override run: %v", err)
	}
}

func TestRunEndOfContentStopsLoopButAssembles(t *testing.T) {
	f := newFixture(t, nil)
	// The source claims 95s but frames run out after the second window.
	original := f.extractor
	f.extractor.frames = 3
	stopAfter := 2
	wrapped := &stopAfterExtractor{inner: original, stopAfter: stopAfter}
	runner, err := NewRunner(f.cfg, nil, logging.NewNop(),
		WithProber(f.prober),
		WithFrameServices(wrapped, f.upscaler, f.encoder),
		WithAssemblyServices(f.concat, f.mux))
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	if err := runner.Run(context.Background(), f.job()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	store := f.store(t)
	count, err := store.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != stopAfter {
		t.Fatalf("checkpoints = %d, want %d", count, stopAfter)
	}
	if f.concat.calls != 1 {
		t.Fatal("truncated source should still assemble the completed segments")
	}
}

type stopAfterExtractor struct {
	inner     *fakeExtractor
	stopAfter int
	calls     int
}

func (s *stopAfterExtractor) ExtractFrames(ctx context.Context, source string, window ffmpeg.Window, frameRate, preFilter, framesDir string) error {
	s.calls++
	if s.calls > s.stopAfter {
		return nil // no frames written: window past end of content
	}
	return s.inner.ExtractFrames(ctx, source, window, frameRate, preFilter, framesDir)
}

type dropAudioProber struct {
	inner *fakeProber
	calls int
}

func (p *dropAudioProber) Probe(ctx context.Context, path string) (ffprobe.SourceInfo, error) {
	p.calls++
	info, err := p.inner.Probe(ctx, path)
	if p.calls > 1 {
		info.HasAudio = false
	}
	return info, err
}

func TestRunOutputWithoutExpectedAudioFailsVerification(t *testing.T) {
	f := newFixture(t, nil)
	runner, err := NewRunner(f.cfg, nil, logging.NewNop(),
		WithProber(&dropAudioProber{inner: f.prober}),
		WithFrameServices(f.extractor, f.upscaler, f.encoder),
		WithAssemblyServices(f.concat, f.mux))
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	err = runner.Run(context.Background(), f.job())
	if !errors.Is(err, services.ErrReassembly) {
		t.Fatalf("expected ErrReassembly, got %v", err)
	}
}

func TestRunEmptySourceIsNoFramesError(t *testing.T) {
	f := newFixture(t, nil)
	f.extractor.frames = 0

	err := f.runner.Run(context.Background(), f.job())
	if !errors.Is(err, services.ErrNoFrames) {
		t.Fatalf("expected ErrNoFrames, got %v", err)
	}
}

func TestRunMissingSourceIsConfigurationError(t *testing.T) {
	f := newFixture(t, nil)
	err := f.runner.Run(context.Background(), Job{Source: "/nowhere/missing.mkv", Dest: f.dest})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestRunMissingToolIsConfigurationError(t *testing.T) {
	f := newFixture(t, nil, func(cfg *config.Config) {
		cfg.Tools.Upscaler = "definitely-not-installed-upscaler"
	})
	err := f.runner.Run(context.Background(), f.job())
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestRunRecordsLedgerHistory(t *testing.T) {
	ledger, err := runlog.Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("runlog.Open: %v", err)
	}
	defer ledger.Close()

	f := newFixture(t, ledger)
	if err := f.runner.Run(context.Background(), f.job()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	runs, err := ledger.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("runs = %d", len(runs))
	}
	run := runs[0]
	if run.Outcome != runlog.OutcomeCompleted || run.SegmentsDone != 4 || run.SegmentsTotal != 4 {
		t.Fatalf("unexpected run: %+v", run)
	}
}

func TestRunLedgerRecordsFailure(t *testing.T) {
	ledger, err := runlog.Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("runlog.Open: %v", err)
	}
	defer ledger.Close()

	f := newFixture(t, ledger)
	f.extractor.failAt = 1
	if err := f.runner.Run(context.Background(), f.job()); err == nil {
		t.Fatal("expected failure")
	}

	runs, err := ledger.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(runs) != 1 || runs[0].Outcome != runlog.OutcomeFailed || runs[0].Error == "" {
		t.Fatalf("unexpected runs: %+v", runs)
	}
}

func TestInspectReportsCheckpointState(t *testing.T) {
	f := newFixture(t, nil)

	status, err := Inspect(f.cfg, f.source)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if status.Exists {
		t.Fatal("work directory should not exist before the first run")
	}

	if err := f.runner.Run(context.Background(), f.job()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	status, err = Inspect(f.cfg, f.source)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if !status.Exists || status.Checkpoints != 4 || status.HighestIndex != 3 {
		t.Fatalf("unexpected status: %+v", status)
	}
	if status.Record == "" {
		t.Fatal("run configuration record missing from status")
	}
}
