// Package assemblyai is a minimal client for the AssemblyAI transcription API.
package assemblyai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jonathan/transcript-pipeline/internal/pipeline"
	"github.com/jonathan/transcript-pipeline/internal/poller"
)

// DefaultBaseURL is the public API endpoint.
const DefaultBaseURL = "https://api.assemblyai.com"

// DefaultTimeout bounds a single request; uploads of long recordings can be slow.
const DefaultTimeout = 10 * time.Minute

// Client talks to the upload, transcript and status endpoints.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Client. An empty baseURL selects DefaultBaseURL.
func NewClient(apiKey, baseURL string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     logger,
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

type uploadResponse struct {
	UploadURL string `json:"upload_url"`
}

type transcriptRequest struct {
	AudioURL      string `json:"audio_url"`
	SpeakerLabels bool   `json:"speaker_labels"`
	SpeechModel   string `json:"speech_model,omitempty"`
}

type transcriptResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error"`
}

// Upload sends the audio file and returns the URL the API stores it under.
func (c *Client) Upload(ctx context.Context, audioPath string) (string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return "", fmt.Errorf("failed to open audio: %w", err)
	}
	defer func() { _ = f.Close() }()

	var out uploadResponse
	if err := c.do(ctx, "upload", http.MethodPost, "/v2/upload", "application/octet-stream", f, &out); err != nil {
		return "", err
	}
	if out.UploadURL == "" {
		return "", fmt.Errorf("assemblyai upload: response has no upload_url")
	}
	return out.UploadURL, nil
}

// Transcribe starts a transcription of audioURL and returns the job id.
func (c *Client) Transcribe(ctx context.Context, audioURL string, opts pipeline.SubmitOptions) (string, error) {
	body, err := json.Marshal(transcriptRequest{
		AudioURL:      audioURL,
		SpeakerLabels: opts.SpeakerLabels,
		SpeechModel:   opts.SpeechModel,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode transcript request: %w", err)
	}

	var out transcriptResponse
	if err := c.do(ctx, "transcript", http.MethodPost, "/v2/transcript", "application/json", bytes.NewReader(body), &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("assemblyai transcript: response has no id")
	}
	return out.ID, nil
}

// Submit uploads audioPath and starts its transcription. Client errors are
// marked permanent; server errors, throttling and network failures are not.
func (c *Client) Submit(ctx context.Context, audioPath string, opts pipeline.SubmitOptions) (string, error) {
	uploadURL, err := c.Upload(ctx, audioPath)
	if err != nil {
		return "", classify(err)
	}
	c.logger.Debug("audio uploaded", "path", audioPath)

	id, err := c.Transcribe(ctx, uploadURL, opts)
	if err != nil {
		return "", classify(err)
	}
	c.logger.Info("transcription submitted", "remote_job_id", id)
	return id, nil
}

// GetStatus fetches the current state of a transcription. The full response
// body is returned as the payload.
func (c *Client) GetStatus(ctx context.Context, jobID string) (*poller.Status, error) {
	var raw json.RawMessage
	if err := c.do(ctx, "status", http.MethodGet, "/v2/transcript/"+jobID, "", nil, &raw); err != nil {
		return nil, err
	}

	var out transcriptResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode status: %w", err)
	}
	return &poller.Status{
		JobID:   jobID,
		State:   mapState(out.Status),
		Error:   out.Error,
		Payload: raw,
	}, nil
}

func mapState(s string) poller.RemoteState {
	switch s {
	case "completed":
		return poller.StateCompleted
	case "error":
		return poller.StateFailed
	case "processing":
		return poller.StateProcessing
	default:
		return poller.StateQueued
	}
}

func (c *Client) do(ctx context.Context, op, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("assemblyai %s: failed to create request: %w", op, err)
	}
	req.Header.Set("Authorization", c.apiKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("assemblyai %s: request failed: %w", op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("assemblyai %s: failed to read response: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var msg struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(data, &msg)
		if msg.Error == "" {
			msg.Error = strings.TrimSpace(string(data))
		}
		return &APIError{Op: op, StatusCode: resp.StatusCode, Message: msg.Error}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("assemblyai %s: failed to decode response: %w", op, err)
	}
	return nil
}
