// Package config provides configuration loading and validation for the CLI.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/transcript-pipeline/internal/poller"
	"github.com/jonathan/transcript-pipeline/internal/retry"
)

// Config represents the pipeline configuration. It can be loaded from a JSON
// file, overridden from the environment and finally from CLI flags.
// Zero values mean "not set" and are filled by MergeWithDefaults.
type Config struct {
	// Retry and polling
	DownloadRetries   int      `json:"download_retries,omitempty" validate:"gte=0"`
	UploadRetries     int      `json:"upload_retries,omitempty" validate:"gte=0"`
	RetryBaseDelay    Duration `json:"retry_base_delay,omitempty" validate:"gte=0"`
	PollInterval      Duration `json:"poll_interval,omitempty" validate:"gte=0"`
	PollBackoffFactor float64  `json:"poll_backoff_factor,omitempty" validate:"gte=0"`
	PollMaxDelay      Duration `json:"poll_max_delay,omitempty" validate:"gte=0"`
	MaxPollAttempts   int      `json:"max_poll_attempts,omitempty" validate:"gte=0"`

	// Batch
	MaxJobsPerRun      int   `json:"max_jobs_per_run,omitempty" validate:"gte=0"`
	DiarizationEnabled *bool `json:"diarization_enabled,omitempty"`
	Workers            int   `json:"workers,omitempty" validate:"gte=0,lte=64"` // reconstruct-all concurrency

	// Transcription service
	APIKey      string `json:"api_key,omitempty"`
	APIBaseURL  string `json:"api_base_url,omitempty" validate:"omitempty,url"`
	SpeechModel string `json:"speech_model,omitempty"`

	// Storage
	DownloadDir    string `json:"download_dir,omitempty"`
	TranscriptsDir string `json:"transcripts_dir,omitempty"`
	IndexPath      string `json:"index_path,omitempty"` // defaults to <transcripts_dir>/index.json
	DatabaseURL    string `json:"database_url,omitempty"`

	// Tools
	YTDLPPath   string `json:"ytdlp_path,omitempty"`
	UseBrowser  bool   `json:"use_browser,omitempty"` // render collection pages in headless Chrome when needed
	MetricsFile string `json:"metrics_file,omitempty"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	enabled := true
	return Config{
		DownloadRetries:    3,
		UploadRetries:      3,
		RetryBaseDelay:     Duration(2 * time.Second),
		PollInterval:       Duration(3 * time.Second),
		PollBackoffFactor:  1.5,
		PollMaxDelay:       Duration(30 * time.Second),
		MaxPollAttempts:    200,
		DiarizationEnabled: &enabled,
		Workers:            1,
		APIBaseURL:         "https://api.assemblyai.com",
		SpeechModel:        "universal",
		DownloadDir:        "downloads",
		TranscriptsDir:     "transcripts",
		YTDLPPath:          "yt-dlp",
	}
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration has valid values.
// Required fields are checked per command (see RequireAPIKey).
func (c *Config) Validate() error {
	if err := newValidator().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("'%s' failed '%s'", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("config error: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("config error: %w", err)
	}
	if c.PollBackoffFactor != 0 && c.PollBackoffFactor < 1 {
		return fmt.Errorf("config error: 'poll_backoff_factor' must be at least 1")
	}
	return nil
}

// RequireAPIKey fails when no transcription API key is configured.
func (c *Config) RequireAPIKey() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("config error: API key is required (set ASSEMBLYAI_API_KEY or 'api_key')")
	}
	return nil
}

// MergeWithDefaults returns a new Config with unset fields filled from defaults.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// Int fields: use default if zero
	fillInt(&result.DownloadRetries, defaults.DownloadRetries)
	fillInt(&result.UploadRetries, defaults.UploadRetries)
	fillInt(&result.MaxPollAttempts, defaults.MaxPollAttempts)
	fillInt(&result.MaxJobsPerRun, defaults.MaxJobsPerRun)
	fillInt(&result.Workers, defaults.Workers)

	if result.RetryBaseDelay == 0 {
		result.RetryBaseDelay = defaults.RetryBaseDelay
	}
	if result.PollInterval == 0 {
		result.PollInterval = defaults.PollInterval
	}
	if result.PollMaxDelay == 0 {
		result.PollMaxDelay = defaults.PollMaxDelay
	}
	if result.PollBackoffFactor == 0 {
		result.PollBackoffFactor = defaults.PollBackoffFactor
	}
	if result.DiarizationEnabled == nil {
		result.DiarizationEnabled = defaults.DiarizationEnabled
	}

	// String fields: use default if empty
	fillString(&result.APIKey, defaults.APIKey)
	fillString(&result.APIBaseURL, defaults.APIBaseURL)
	fillString(&result.SpeechModel, defaults.SpeechModel)
	fillString(&result.DownloadDir, defaults.DownloadDir)
	fillString(&result.TranscriptsDir, defaults.TranscriptsDir)
	fillString(&result.IndexPath, defaults.IndexPath)
	fillString(&result.DatabaseURL, defaults.DatabaseURL)
	fillString(&result.YTDLPPath, defaults.YTDLPPath)
	fillString(&result.MetricsFile, defaults.MetricsFile)

	// UseBrowser cannot distinguish unset from false, so it is not merged

	return result
}

// Diarization reports whether speaker labels and conversation files are enabled.
func (c *Config) Diarization() bool {
	return c.DiarizationEnabled == nil || *c.DiarizationEnabled
}

// ResolvedIndexPath is IndexPath or <transcripts_dir>/index.json.
func (c *Config) ResolvedIndexPath() string {
	if c.IndexPath != "" {
		return c.IndexPath
	}
	return filepath.Join(c.TranscriptsDir, "index.json")
}

// DownloadPolicy is the retry policy for audio acquisition.
func (c *Config) DownloadPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: c.DownloadRetries, BaseDelay: c.RetryBaseDelay.Std()}
}

// UploadPolicy is the retry policy for transcription submission.
func (c *Config) UploadPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: c.UploadRetries, BaseDelay: c.RetryBaseDelay.Std()}
}

// PollPolicy is the backoff policy for status polling.
func (c *Config) PollPolicy() poller.Policy {
	return poller.Policy{
		Interval:    c.PollInterval.Std(),
		Factor:      c.PollBackoffFactor,
		MaxDelay:    c.PollMaxDelay.Std(),
		MaxAttempts: c.MaxPollAttempts,
	}
}

func fillInt(dst *int, def int) {
	if *dst == 0 {
		*dst = def
	}
}

func fillString(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}

func newValidator() *validator.Validate {
	v := validator.New()
	// report fields by their JSON key
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}
