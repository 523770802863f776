package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// LookupFunc returns the value of an environment variable.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides fields from environment variables. lookup defaults to os.LookupEnv.
// Empty variables are ignored.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"DOWNLOAD_RETRIES", &c.DownloadRetries},
		{"UPLOAD_RETRIES", &c.UploadRetries},
		{"MAX_POLL_ATTEMPTS", &c.MaxPollAttempts},
		{"MAX_JOBS_PER_RUN", &c.MaxJobsPerRun},
		{"RECONSTRUCT_WORKERS", &c.Workers},
	}
	for _, e := range ints {
		if v, ok := get(e.key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("config error: %s: invalid integer %q", e.key, v)
			}
			*e.dst = n
		}
	}

	durations := []struct {
		key string
		dst *Duration
	}{
		{"RETRY_BASE_DELAY", &c.RetryBaseDelay},
		{"POLL_INTERVAL", &c.PollInterval},
		{"POLL_MAX_DELAY", &c.PollMaxDelay},
	}
	for _, e := range durations {
		if v, ok := get(e.key); ok {
			d, err := ParseDuration(v)
			if err != nil {
				return fmt.Errorf("config error: %s: %w", e.key, err)
			}
			*e.dst = d
		}
	}

	if v, ok := get("POLL_BACKOFF_FACTOR"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("config error: POLL_BACKOFF_FACTOR: invalid number %q", v)
		}
		c.PollBackoffFactor = f
	}

	if v, ok := get("DIARIZATION_ENABLED"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config error: DIARIZATION_ENABLED: invalid boolean %q", v)
		}
		c.DiarizationEnabled = &b
	}

	strs := []struct {
		key string
		dst *string
	}{
		{"ASSEMBLYAI_API_KEY", &c.APIKey},
		{"ASSEMBLYAI_BASE_URL", &c.APIBaseURL},
		{"SPEECH_MODEL", &c.SpeechModel},
		{"DOWNLOAD_DIR", &c.DownloadDir},
		{"TRANSCRIPTS_DIR", &c.TranscriptsDir},
		{"INDEX_PATH", &c.IndexPath},
		{"DATABASE_URL", &c.DatabaseURL},
		{"YTDLP_PATH", &c.YTDLPPath},
		{"METRICS_FILE", &c.MetricsFile},
	}
	for _, e := range strs {
		if v, ok := get(e.key); ok {
			*e.dst = v
		}
	}
	return nil
}
