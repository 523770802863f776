package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/transcript-pipeline/internal/assemblyai"
	"github.com/jonathan/transcript-pipeline/internal/config"
	"github.com/jonathan/transcript-pipeline/internal/diarize"
	"github.com/jonathan/transcript-pipeline/internal/expand"
	"github.com/jonathan/transcript-pipeline/internal/fetch"
	"github.com/jonathan/transcript-pipeline/internal/media"
	"github.com/jonathan/transcript-pipeline/internal/metrics"
	"github.com/jonathan/transcript-pipeline/internal/observability"
	"github.com/jonathan/transcript-pipeline/internal/pipeline"
	"github.com/jonathan/transcript-pipeline/internal/store"
)

var runCommand = &cobra.Command{
	Use:   "run [url...]",
	Short: "Download, transcribe and reconstruct every source in the batch",
	Long: `Processes each source through acquire -> submit -> poll -> store transcript -> reconstruct.

Sources come from --input (JSON array or one URL per line) and positional arguments.
Channel and playlist URLs are expanded into their videos. Jobs already completed in the
index are skipped, interrupted jobs resume, and failed jobs are retried.`,
	RunE: runPipelineCmd,
}

var (
	runInput          string
	runMaxJobs        int
	runDiarization    bool
	runAPIKey         string
	runDownloadDir    string
	runTranscriptsDir string
	runIndexPath      string
	runDatabaseURL    string
	runUseBrowser     bool
	runMetricsFile    string
)

func init() {
	runCommand.Flags().StringVarP(&runInput, "input", "i", "", "Path to a source list file (JSON array or newline-separated)")
	runCommand.Flags().IntVar(&runMaxJobs, "max-jobs", 0, "Maximum jobs to process this run (0 = unlimited)")
	runCommand.Flags().BoolVar(&runDiarization, "diarization", true, "Request speaker labels and write conversation files")
	runCommand.Flags().StringVar(&runAPIKey, "api-key", "", "Transcription API key (optional, defaults to ASSEMBLYAI_API_KEY env var)")
	runCommand.Flags().StringVar(&runDownloadDir, "download-dir", "", "Directory for downloaded audio")
	runCommand.Flags().StringVar(&runTranscriptsDir, "transcripts-dir", "", "Directory for transcripts and the default index")
	runCommand.Flags().StringVar(&runIndexPath, "index", "", "Path to the job index file")
	runCommand.Flags().StringVar(&runDatabaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")
	runCommand.Flags().BoolVar(&runUseBrowser, "use-browser", false, "Render collection pages in headless Chrome when static HTML has no videos")
	runCommand.Flags().StringVar(&runMetricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile after the run")

	rootCmd.AddCommand(runCommand)
}

func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("max-jobs") {
		cfg.MaxJobsPerRun = runMaxJobs
	}
	if cmd.Flags().Changed("diarization") {
		enabled := runDiarization
		cfg.DiarizationEnabled = &enabled
	}
	if cmd.Flags().Changed("api-key") {
		cfg.APIKey = runAPIKey
	}
	if cmd.Flags().Changed("download-dir") {
		cfg.DownloadDir = runDownloadDir
	}
	if cmd.Flags().Changed("transcripts-dir") {
		cfg.TranscriptsDir = runTranscriptsDir
	}
	if cmd.Flags().Changed("index") {
		cfg.IndexPath = runIndexPath
	}
	if cmd.Flags().Changed("db-url") {
		cfg.DatabaseURL = runDatabaseURL
	}
	if cmd.Flags().Changed("use-browser") {
		cfg.UseBrowser = runUseBrowser
	}
	if cmd.Flags().Changed("metrics-file") {
		cfg.MetricsFile = runMetricsFile
	}
}

func runPipelineCmd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := newLogger(os.Stderr)

	// Step 1: Resolve configuration
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyRunFlags(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.RequireAPIKey(); err != nil {
		return err
	}

	// Step 2: Collect sources
	sources, err := readSources(runInput, args)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		return fmt.Errorf("%w: pass URLs as arguments or use --input", pipeline.ErrNoSources)
	}

	// Step 3: Open the job index
	st, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	// Step 4: Wire collaborators
	ytdlp := media.NewYTDLP(cfg.YTDLPPath, cfg.DownloadDir, logger)
	client := assemblyai.NewClient(cfg.APIKey, cfg.APIBaseURL, logger)

	var renderer fetch.Renderer
	if cfg.UseBrowser {
		renderer = fetch.NewBrowser(logger)
	}
	expander := expand.New(expand.HTTPFetcher(fetch.DefaultOptions()), renderer, logger)

	m := metrics.New()
	printer := observability.NewPrinter(os.Stdout)

	layout := pipeline.Layout{DownloadDir: cfg.DownloadDir, TranscriptsDir: cfg.TranscriptsDir}
	collab := pipeline.Collaborators{
		Acquirer:  ytdlp,
		Metadata:  ytdlp,
		Submitter: client,
		Status:    client,
		Expander:  expander,
		Scanner:   store.NewScanner(cfg.TranscriptsDir, cfg.ResolvedIndexPath()),
		Observer:  m,
	}
	if cfg.Diarization() {
		collab.Conversations = diarize.NewReconstructor(logger)
	}

	orch, err := pipeline.NewOrchestrator(pipeline.Options{
		Layout:        layout,
		DownloadRetry: cfg.DownloadPolicy(),
		UploadRetry:   cfg.UploadPolicy(),
		Poll:          cfg.PollPolicy(),
		MaxJobsPerRun: cfg.MaxJobsPerRun,
		Diarization:   cfg.Diarization(),
		SpeechModel:   cfg.SpeechModel,
		OnProgress:    printer.PrintProgress,
	}, collab, st, logger)
	if err != nil {
		return err
	}

	// Step 5: Run the batch
	sum, runErr := orch.Run(ctx, sources)
	printer.PrintSummary(sum)

	m.RecordSummary(sum, time.Now())
	if cfg.MetricsFile != "" {
		if err := m.WriteTextfile(cfg.MetricsFile); err != nil {
			logger.Warn("failed to write metrics", "path", cfg.MetricsFile, "error", err)
		}
	}

	if runErr != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("run interrupted: %w", runErr)
		}
		return runErr
	}
	return nil
}
