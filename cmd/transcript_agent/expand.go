package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/transcript-pipeline/internal/expand"
	"github.com/jonathan/transcript-pipeline/internal/fetch"
	"github.com/jonathan/transcript-pipeline/internal/pipeline"
)

var expandCommand = &cobra.Command{
	Use:   "expand [url...]",
	Short: "Print the videos a batch would process",
	Long: `Expands channel and playlist URLs into individual watch URLs and prints
one "<key> <url>" line per video, without downloading anything.`,
	RunE: runExpand,
}

var (
	expandInput      string
	expandUseBrowser bool
)

func init() {
	expandCommand.Flags().StringVarP(&expandInput, "input", "i", "", "Path to a source list file (JSON array or newline-separated)")
	expandCommand.Flags().BoolVar(&expandUseBrowser, "use-browser", false, "Render collection pages in headless Chrome when static HTML has no videos")

	rootCmd.AddCommand(expandCommand)
}

func runExpand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := newLogger(os.Stderr)

	sources, err := readSources(expandInput, args)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		return fmt.Errorf("%w: pass URLs as arguments or use --input", pipeline.ErrNoSources)
	}

	var renderer fetch.Renderer
	if expandUseBrowser {
		renderer = fetch.NewBrowser(logger)
	}
	expander := expand.New(expand.HTTPFetcher(fetch.DefaultOptions()), renderer, logger)

	out := cmd.OutOrStdout()
	seen := make(map[string]bool)
	for _, src := range sources {
		urls, err := expander.Expand(ctx, src)
		if err != nil {
			logger.Warn("failed to expand source", "source", src, "error", err)
			continue
		}
		for _, u := range urls {
			key := pipeline.DeriveKey(u)
			if seen[key] {
				continue
			}
			seen[key] = true
			_, _ = fmt.Fprintf(out, "%s %s\n", key, u)
		}
	}
	return nil
}
