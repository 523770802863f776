// Package media downloads source audio and metadata with yt-dlp.
package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jonathan/transcript-pipeline/internal/pipeline"
)

// CommandRunner runs an external program and returns its stdout and stderr.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run executes name with args.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// YTDLP extracts audio and metadata through the yt-dlp binary.
type YTDLP struct {
	Binary      string
	Dir         string
	AudioFormat string
	Runner      CommandRunner
	logger      *slog.Logger
}

// NewYTDLP creates a downloader writing into dir.
func NewYTDLP(binary, dir string, logger *slog.Logger) *YTDLP {
	if binary == "" {
		binary = "yt-dlp"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &YTDLP{Binary: binary, Dir: dir, AudioFormat: "wav", Runner: ExecRunner{}, logger: logger}
}

// Acquire downloads the audio track of source as <dir>/<name>.<ext> and returns its path.
func (y *YTDLP) Acquire(ctx context.Context, source, name string) (string, error) {
	if err := os.MkdirAll(y.Dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create download directory: %w", err)
	}

	template := filepath.Join(y.Dir, name+".%(ext)s")
	args := []string{"-x", "--audio-format", y.AudioFormat, "--no-playlist", "-o", template, source}
	y.logger.Debug("running yt-dlp", "args", args)

	_, stderr, err := y.Runner.Run(ctx, y.Binary, args...)
	if err != nil {
		return "", &CommandError{
			Message:   fmt.Sprintf("yt-dlp failed for %s", source),
			LogOutput: string(stderr),
			Cause:     err,
		}
	}

	path, err := y.locate(name)
	if err != nil {
		return "", err
	}
	return path, nil
}

// locate finds the file yt-dlp produced, preferring the requested audio format.
func (y *YTDLP) locate(name string) (string, error) {
	want := filepath.Join(y.Dir, name+"."+y.AudioFormat)
	if info, err := os.Stat(want); err == nil && !info.IsDir() {
		return want, nil
	}

	matches, err := filepath.Glob(filepath.Join(y.Dir, globEscape(name)+".*"))
	if err != nil {
		return "", fmt.Errorf("failed to search for output: %w", err)
	}
	var candidates []string
	for _, m := range matches {
		// partial downloads
		if strings.HasSuffix(m, ".part") || strings.HasSuffix(m, ".ytdl") {
			continue
		}
		candidates = append(candidates, m)
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("%w: %s.*", ErrOutputNotFound, filepath.Join(y.Dir, name))
	}
	sort.Strings(candidates)
	return candidates[0], nil
}

type videoInfo struct {
	Title    string   `json:"title"`
	Duration *float64 `json:"duration"`
}

// FetchMetadata reads the title and duration of source without downloading it.
func (y *YTDLP) FetchMetadata(ctx context.Context, source string) (pipeline.Metadata, error) {
	stdout, stderr, err := y.Runner.Run(ctx, y.Binary, "--dump-single-json", "--skip-download", "--no-playlist", source)
	if err != nil {
		return pipeline.Metadata{}, &CommandError{
			Message:   fmt.Sprintf("yt-dlp metadata failed for %s", source),
			LogOutput: string(stderr),
			Cause:     err,
		}
	}

	var info videoInfo
	if err := json.Unmarshal(stdout, &info); err != nil {
		return pipeline.Metadata{}, fmt.Errorf("failed to decode metadata: %w", err)
	}
	return pipeline.Metadata{Title: info.Title, Duration: info.Duration}, nil
}

func globEscape(s string) string {
	r := strings.NewReplacer(`*`, `\*`, `?`, `\?`, `[`, `\[`, `\`, `\\`)
	return r.Replace(s)
}
