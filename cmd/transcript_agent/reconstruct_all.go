package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/transcript-pipeline/internal/diarize"
	"github.com/jonathan/transcript-pipeline/internal/fsutil"
	"github.com/jonathan/transcript-pipeline/internal/observability"
	"github.com/jonathan/transcript-pipeline/internal/store"
	"github.com/jonathan/transcript-pipeline/internal/types"
)

var reconstructAllCommand = &cobra.Command{
	Use:   "reconstruct-all",
	Short: "Rebuild conversations for every transcript in the index",
	Long: `Reconstructs a conversation for each indexed job that has a raw transcript.
Existing conversations are skipped unless --force is given. Flat "<key>_raw.json"
files in the transcripts directory are moved into per-key directories and the
index is updated with the new paths.`,
	Args: cobra.NoArgs,
	RunE: runReconstructAll,
}

var (
	reconstructAllWorkers int
	reconstructAllForce   bool
)

func init() {
	reconstructAllCommand.Flags().IntVarP(&reconstructAllWorkers, "workers", "w", 0, "Concurrent reconstructions (default from config, 1)")
	reconstructAllCommand.Flags().BoolVarP(&reconstructAllForce, "force", "f", false, "Rebuild conversations that already exist")

	rootCmd.AddCommand(reconstructAllCommand)
}

func runReconstructAll(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	logger := newLogger(os.Stderr)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("workers") {
		cfg.Workers = reconstructAllWorkers
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	st, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	idx, err := st.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load index: %w", err)
	}

	batch := diarize.NewBatch(diarize.NewReconstructor(logger), diarize.BatchOptions{
		TranscriptsDir: cfg.TranscriptsDir,
		Workers:        cfg.Workers,
		Force:          reconstructAllForce,
	}, logger)

	results, runErr := batch.Run(ctx, idx)
	if err := saveReconstruction(ctx, st, idx, results); err != nil {
		return err
	}

	observability.NewPrinter(cmd.OutOrStdout()).PrintReconstruction(results)
	return runErr
}

// saveReconstruction persists index updates from a batch. Relocated raw files
// must be recorded even when the batch was interrupted, so cancellation of ctx
// does not stop the save.
func saveReconstruction(ctx context.Context, st store.Store, idx types.Index, results []diarize.Result) error {
	if !applyReconstruction(idx, results) {
		return nil
	}
	if err := st.Persist(context.WithoutCancel(ctx), idx); err != nil {
		return fmt.Errorf("failed to save index: %w", err)
	}
	return nil
}

// applyReconstruction records relocated raw files and written conversations.
// It reports whether any record changed.
func applyReconstruction(idx types.Index, results []diarize.Result) bool {
	changed := false
	for _, res := range results {
		rec := idx[res.Key]
		if rec == nil {
			continue
		}
		if res.Moved && rec.RawTranscriptPath != res.RawPath {
			rec.RawTranscriptPath = res.RawPath
			changed = true
		}
		if res.Err == nil && fsutil.Exists(res.ConversationPath) && rec.ConversationPath != res.ConversationPath {
			rec.ConversationPath = res.ConversationPath
			changed = true
		}
	}
	return changed
}
