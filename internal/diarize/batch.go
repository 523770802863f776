package diarize

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/jonathan/transcript-pipeline/internal/fsutil"
	"github.com/jonathan/transcript-pipeline/internal/types"
)

// BatchOptions configures a reconstruct-all run.
type BatchOptions struct {
	// TranscriptsDir is where flat "<key>_raw.json" files are relocated from.
	TranscriptsDir string
	// Workers bounds concurrent reconstructions. Values below 1 mean sequential.
	Workers int
	// Force rebuilds conversations that already exist.
	Force bool
}

// Target is one raw transcript to reconstruct.
type Target struct {
	Key              string
	RawPath          string
	ConversationPath string
}

// Result reports what happened to one target.
type Result struct {
	Target
	Segments int
	Skipped  bool
	// Moved is set when the raw file was relocated into a per-key directory;
	// the caller persists the new paths into the index.
	Moved bool
	Err   error
}

// Batch reconstructs every transcript referenced by an index.
// Failures are reported per job and never stop the batch.
type Batch struct {
	rec    *Reconstructor
	opts   BatchOptions
	logger *slog.Logger
}

// NewBatch creates a Batch.
func NewBatch(rec *Reconstructor, opts BatchOptions, logger *slog.Logger) *Batch {
	if logger == nil {
		logger = slog.Default()
	}
	return &Batch{rec: rec, opts: opts, logger: logger}
}

// Resolve lists reconstruction targets for every record with a raw transcript, in key order.
func (b *Batch) Resolve(idx types.Index) []Target {
	var targets []Target
	for _, key := range idx.Keys() {
		rec := idx[key]
		if rec.RawTranscriptPath == "" {
			b.logger.Debug("no transcript info, skipping", "key", key)
			continue
		}
		conv := rec.ConversationPath
		if conv == "" {
			conv = ConversationPathFor(rec.RawTranscriptPath)
		}
		targets = append(targets, Target{Key: key, RawPath: rec.RawTranscriptPath, ConversationPath: conv})
	}
	return targets
}

// Run reconstructs all targets derived from idx.
// The returned error is only set when ctx is cancelled.
func (b *Batch) Run(ctx context.Context, idx types.Index) ([]Result, error) {
	targets := b.Resolve(idx)
	results := make([]Result, len(targets))

	// relocation touches shared directories, so it runs before the workers start
	for i, t := range targets {
		results[i].Target = t
		if moved, ok := b.relocate(t); ok {
			results[i].Target = moved
			results[i].Moved = true
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	workers := b.opts.Workers
	if workers < 1 {
		workers = 1
	}
	g.SetLimit(workers)

	for i := range results {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i].Err = err
				return err
			}
			b.reconstructOne(&results[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

func (b *Batch) reconstructOne(res *Result) {
	t := res.Target
	if !fsutil.Exists(t.RawPath) {
		res.Err = &Error{Path: t.RawPath, Message: "raw transcript missing"}
		b.logger.Debug("raw transcript missing", "key", t.Key, "path", t.RawPath)
		return
	}
	if !b.opts.Force && fsutil.Exists(t.ConversationPath) {
		res.Skipped = true
		b.logger.Info("conversation already exists", "key", t.Key, "path", t.ConversationPath)
		return
	}

	n, err := b.rec.ReconstructFile(t.RawPath, t.ConversationPath)
	if err != nil {
		res.Err = err
		b.logger.Warn("failed to reconstruct", "key", t.Key, "error", err)
		return
	}
	res.Segments = n
}

// relocate moves a flat "<dir>/<key>_raw.json" into "<dir>/<key>/".
func (b *Batch) relocate(t Target) (Target, bool) {
	if b.opts.TranscriptsDir == "" || !fsutil.Exists(t.RawPath) {
		return t, false
	}
	name := fsutil.SafeName(t.Key)
	if filepath.Base(t.RawPath) != name+"_raw.json" {
		return t, false
	}
	parent, err1 := filepath.Abs(filepath.Dir(t.RawPath))
	root, err2 := filepath.Abs(b.opts.TranscriptsDir)
	if err1 != nil || err2 != nil || parent != root {
		return t, false
	}

	keyDir := filepath.Join(b.opts.TranscriptsDir, name)
	newRaw := filepath.Join(keyDir, name+"_raw.json")
	if err := os.MkdirAll(keyDir, 0o755); err != nil {
		b.logger.Warn("failed to move raw file", "key", t.Key, "error", err)
		return t, false
	}
	if err := os.Rename(t.RawPath, newRaw); err != nil {
		b.logger.Warn("failed to move raw file", "key", t.Key, "error", fmt.Errorf("rename: %w", err))
		return t, false
	}

	moved := Target{Key: t.Key, RawPath: newRaw, ConversationPath: filepath.Join(keyDir, name+"_conversation.json")}
	// an existing flat conversation follows the raw file
	if fsutil.Exists(t.ConversationPath) && !fsutil.Exists(moved.ConversationPath) {
		if err := os.Rename(t.ConversationPath, moved.ConversationPath); err != nil {
			b.logger.Warn("failed to move conversation file", "key", t.Key, "error", err)
		}
	}
	b.logger.Info("moved raw transcript", "key", t.Key, "dir", keyDir)
	return moved, true
}
