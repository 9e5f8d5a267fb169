package main

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"upres/internal/config"
	"upres/internal/pipeline"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var (
		output           string
		allowMixedConfig bool
		workRoot         string
		segmentLength    int
		quality          int
		preset           string
		model            string
		internalScale    int
		finalScale       int
		tileSize         int
		upscaleThreads   string
		targetDAR        string
		preFilter        string
	)

	cmd := &cobra.Command{
		Use:   "run <source> [dest]",
		Short: "Upscale a video file, resuming any prior partial run",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			// Flag overrides apply to this invocation only; the persisted
			// run configuration record is what guards cross-run consistency.
			run := *cfg
			flags := cmd.Flags()
			if flags.Changed("work-root") {
				expanded, err := config.ExpandPath(workRoot)
				if err != nil {
					return fmt.Errorf("resolve work root: %w", err)
				}
				run.Paths.WorkRoot = expanded
			}
			if flags.Changed("segment-length") {
				run.Segmenting.LengthSeconds = segmentLength
			}
			if flags.Changed("quality") {
				run.Encode.Quality = quality
			}
			if flags.Changed("preset") {
				run.Encode.Preset = preset
			}
			if flags.Changed("model") {
				run.Upscale.Model = model
			}
			if flags.Changed("internal-scale") {
				run.Upscale.InternalScale = internalScale
			}
			if flags.Changed("final-scale") {
				run.Upscale.FinalScale = finalScale
			}
			if flags.Changed("tile-size") {
				run.Upscale.TileSize = tileSize
			}
			if flags.Changed("upscale-threads") {
				run.Upscale.Threads = upscaleThreads
			}
			if flags.Changed("target-dar") {
				run.Video.TargetDAR = targetDAR
			}
			if flags.Changed("pre-filter") {
				run.Video.PreFilter = preFilter
			}
			if err := run.Validate(); err != nil {
				return err
			}

			source, err := config.ExpandPath(args[0])
			if err != nil {
				return fmt.Errorf("resolve source path: %w", err)
			}
			dest := strings.TrimSpace(output)
			if dest == "" && len(args) == 2 {
				dest = strings.TrimSpace(args[1])
			}
			if dest == "" {
				dest = defaultDestination(source)
			} else if dest, err = config.ExpandPath(dest); err != nil {
				return fmt.Errorf("resolve output path: %w", err)
			}

			logger, err := ctx.newLogger(&run)
			if err != nil {
				return err
			}

			ledger, err := ctx.openLedger(&run)
			if err != nil {
				logger.Warn("run history unavailable", "error", err)
				ledger = nil
			} else {
				defer ledger.Close()
			}

			runner, err := pipeline.NewRunner(&run, ledger, logger)
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runner.Run(runCtx, pipeline.Job{
				Source:           source,
				Dest:             dest,
				AllowMixedConfig: allowMixedConfig,
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination file (default: <source>_upscaled.mkv)")
	cmd.Flags().BoolVar(&allowMixedConfig, "allow-mixed-config", false, "Proceed even if settings differ from existing checkpoints")
	cmd.Flags().StringVar(&workRoot, "work-root", "", "Root directory for work directories")
	cmd.Flags().IntVar(&segmentLength, "segment-length", 0, "Segment length in seconds")
	cmd.Flags().IntVar(&quality, "quality", 0, "Encoder CRF quality")
	cmd.Flags().StringVar(&preset, "preset", "", "Encoder preset")
	cmd.Flags().StringVar(&model, "model", "", "Upscaler model name")
	cmd.Flags().IntVar(&internalScale, "internal-scale", 0, "Scale factor the upscaler model produces")
	cmd.Flags().IntVar(&finalScale, "final-scale", 0, "Scale factor of the output geometry")
	cmd.Flags().IntVar(&tileSize, "tile-size", 0, "Upscaler tile size (bounds GPU memory)")
	cmd.Flags().StringVar(&upscaleThreads, "upscale-threads", "", "Upscaler load:proc:save concurrency hint")
	cmd.Flags().StringVar(&targetDAR, "target-dar", "", "Target display aspect ratio override, e.g. 4:3")
	cmd.Flags().StringVar(&preFilter, "pre-filter", "", "ffmpeg filter chain applied before extraction")

	return cmd
}

func defaultDestination(source string) string {
	ext := filepath.Ext(source)
	base := strings.TrimSuffix(source, ext)
	return base + "_upscaled.mkv"
}
