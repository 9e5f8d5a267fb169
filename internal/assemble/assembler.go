// Package assemble produces the final artifact from a complete checkpoint
// store: a structural (non-re-encoding) concatenation of every segment in
// index order, followed by an audio remux from the original source, or a
// plain copy when the source carries no audio.
package assemble

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"upres/internal/checkpoint"
	"upres/internal/fileutil"
	"upres/internal/logging"
	"upres/internal/services"
	"upres/internal/workdir"
)

// Concatenator splices same-codec video artifacts without re-encoding.
type Concatenator interface {
	Concat(ctx context.Context, manifestPath, outPath string) error
}

// Muxer combines concatenated video with the source's audio.
type Muxer interface {
	Mux(ctx context.Context, videoPath, sourcePath, audioCodec, audioBitrate, outPath string) error
}

// Request describes one final assembly.
type Request struct {
	Source       string
	Dest         string
	HasAudio     bool
	AudioCodec   string
	AudioBitrate string
}

// Assembler reassembles checkpoints into the final artifact.
type Assembler struct {
	dir    *workdir.Dir
	store  *checkpoint.Store
	concat Concatenator
	mux    Muxer
	logger *slog.Logger
}

// New wires an assembler for one work directory.
func New(dir *workdir.Dir, store *checkpoint.Store, concat Concatenator, mux Muxer, logger *slog.Logger) (*Assembler, error) {
	if dir == nil || store == nil || concat == nil || mux == nil {
		return nil, fmt.Errorf("assembler requires work dir, store, concatenator, and muxer")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Assembler{
		dir:    dir,
		store:  store,
		concat: concat,
		mux:    mux,
		logger: logger.With(logging.Component("assemble")),
	}, nil
}

// Assemble concatenates all checkpoints and writes the final artifact.
// Ordering comes from the store's index-sorted listing, never from
// filesystem creation order.
func (a *Assembler) Assemble(ctx context.Context, req Request) error {
	entries, err := a.store.List()
	if err != nil {
		return services.Wrap(services.ErrReassembly, "assemble", "list checkpoints", a.store.Dir(), err)
	}
	if len(entries) == 0 {
		return services.Wrap(services.ErrReassembly, "assemble", "list checkpoints",
			fmt.Sprintf("no checkpoints under %q; nothing to assemble", a.store.Dir()), nil)
	}

	manifestPath := a.dir.ManifestPath()
	if err := checkpoint.WriteManifest(manifestPath, entries); err != nil {
		return services.Wrap(services.ErrReassembly, "assemble", "manifest", manifestPath, err)
	}

	videoOnly := a.dir.VideoOnlyPath()
	defer func() {
		_ = os.Remove(videoOnly)
	}()

	a.logger.Info("concatenating segments",
		logging.Int("segments", len(entries)),
		logging.String("manifest", manifestPath))
	if err := a.concat.Concat(ctx, manifestPath, videoOnly); err != nil {
		return services.Wrap(services.ErrReassembly, "assemble", "concat", manifestPath, err)
	}
	if !fileutil.NonEmptyFile(videoOnly) {
		return services.Wrap(services.ErrReassembly, "assemble", "concat",
			fmt.Sprintf("concatenation produced no output at %q", videoOnly), nil)
	}

	if req.HasAudio {
		a.logger.Info("remuxing original audio",
			logging.String("codec", req.AudioCodec),
			logging.String("bitrate", req.AudioBitrate))
		if err := a.mux.Mux(ctx, videoOnly, req.Source, req.AudioCodec, req.AudioBitrate, req.Dest); err != nil {
			return services.Wrap(services.ErrReassembly, "assemble", "mux", req.Dest, err)
		}
	} else {
		a.logger.Info("source has no audio, copying video-only artifact")
		if err := fileutil.CopyFile(videoOnly, req.Dest); err != nil {
			return services.Wrap(services.ErrReassembly, "assemble", "copy", req.Dest, err)
		}
	}

	a.logger.Info("final artifact written", logging.String("path", req.Dest))
	return nil
}
