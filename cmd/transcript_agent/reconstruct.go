package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/transcript-pipeline/internal/diarize"
	"github.com/jonathan/transcript-pipeline/internal/observability"
)

var reconstructCommand = &cobra.Command{
	Use:   "reconstruct <raw_transcript.json>",
	Short: "Rebuild the speaker-attributed conversation of one raw transcript",
	Long: `Reads a raw transcript document and rebuilds its conversation from utterances,
or from words grouped by speaker when utterances are missing.

Prints the conversation to stdout unless --out is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runReconstruct,
}

var (
	reconstructOut  string
	reconstructJSON bool
)

func init() {
	reconstructCommand.Flags().StringVarP(&reconstructOut, "out", "o", "", "Write the conversation JSON to this path")
	reconstructCommand.Flags().BoolVar(&reconstructJSON, "json", false, "Print JSON instead of readable lines")

	rootCmd.AddCommand(reconstructCommand)
}

func runReconstruct(cmd *cobra.Command, args []string) error {
	logger := newLogger(os.Stderr)
	rec := diarize.NewReconstructor(logger)

	conv, err := rec.Build(args[0])
	if err != nil {
		return err
	}

	if reconstructOut != "" {
		if err := diarize.WriteConversation(reconstructOut, conv); err != nil {
			return err
		}
		logger.Info("conversation written", "path", reconstructOut, "segments", len(conv.Segments))
		return nil
	}

	out := cmd.OutOrStdout()
	if reconstructJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(conv); err != nil {
			return fmt.Errorf("failed to encode conversation: %w", err)
		}
		return nil
	}
	observability.NewPrinter(out).PrintConversation(conv)
	return nil
}
