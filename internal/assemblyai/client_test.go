package assemblyai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/transcript-pipeline/internal/pipeline"
	"github.com/jonathan/transcript-pipeline/internal/poller"
	"github.com/jonathan/transcript-pipeline/internal/retry"
)

func writeAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "a.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFFdata"), 0644))
	return path
}

func TestSubmit_UploadsThenStartsTranscript(t *testing.T) {
	var gotUpload []byte
	var gotRequest transcriptRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/v2/upload":
			assert.Equal(t, http.MethodPost, r.Method)
			gotUpload, _ = io.ReadAll(r.Body)
			_, _ = w.Write([]byte(`{"upload_url": "https://cdn.example/abc"}`))
		case "/v2/transcript":
			assert.Equal(t, http.MethodPost, r.Method)
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotRequest))
			_, _ = w.Write([]byte(`{"id": "tr_123", "status": "queued"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient("secret", srv.URL+"/", nil)
	id, err := c.Submit(context.Background(), writeAudio(t), pipeline.SubmitOptions{SpeakerLabels: true, SpeechModel: "universal"})

	require.NoError(t, err)
	assert.Equal(t, "tr_123", id)
	assert.Equal(t, []byte("RIFFdata"), gotUpload)
	assert.Equal(t, transcriptRequest{AudioURL: "https://cdn.example/abc", SpeakerLabels: true, SpeechModel: "universal"}, gotRequest)
}

func TestSubmit_ClientErrorIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": "Authentication error, API token missing/invalid"}`))
	}))
	defer srv.Close()

	_, err := NewClient("bad", srv.URL, nil).Submit(context.Background(), writeAudio(t), pipeline.SubmitOptions{})

	require.Error(t, err)
	assert.True(t, retry.IsPermanent(err))
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "Authentication error")
}

func TestSubmit_ServerErrorAndThrottlingAreTransient(t *testing.T) {
	for _, code := range []int{http.StatusInternalServerError, http.StatusServiceUnavailable, http.StatusTooManyRequests} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
		}))

		_, err := NewClient("k", srv.URL, nil).Submit(context.Background(), writeAudio(t), pipeline.SubmitOptions{})
		srv.Close()

		require.Error(t, err, "status %d", code)
		assert.False(t, retry.IsPermanent(err), "status %d", code)
	}
}

func TestSubmit_MissingAudioFile(t *testing.T) {
	_, err := NewClient("k", "http://127.0.0.1:0", nil).Submit(context.Background(), filepath.Join(t.TempDir(), "none.wav"), pipeline.SubmitOptions{})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestGetStatus_MapsStatesAndKeepsPayload(t *testing.T) {
	bodies := map[string]string{
		"q":    `{"id": "q", "status": "queued"}`,
		"p":    `{"id": "p", "status": "processing"}`,
		"done": `{"id": "done", "status": "completed", "text": "hi", "utterances": []}`,
		"err":  `{"id": "err", "status": "error", "error": "Download error"}`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := filepath.Base(r.URL.Path)
		_, _ = w.Write([]byte(bodies[id]))
	}))
	defer srv.Close()

	c := NewClient("k", srv.URL, nil)
	ctx := context.Background()

	st, err := c.GetStatus(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, poller.StateQueued, st.State)

	st, err = c.GetStatus(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, poller.StateProcessing, st.State)

	st, err = c.GetStatus(ctx, "done")
	require.NoError(t, err)
	assert.Equal(t, poller.StateCompleted, st.State)
	assert.JSONEq(t, bodies["done"], string(st.Payload))

	st, err = c.GetStatus(ctx, "err")
	require.NoError(t, err)
	assert.Equal(t, poller.StateFailed, st.State)
	assert.Equal(t, "Download error", st.Error)
}

func TestGetStatus_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient("k", srv.URL, nil).GetStatus(context.Background(), "x")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.Temporary())
	assert.Equal(t, "upstream down", apiErr.Message)
}
