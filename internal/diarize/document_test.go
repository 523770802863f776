package diarize

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/transcript-pipeline/internal/types"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

const utteranceDoc = `{
	"status": "completed",
	"id": "tr_1",
	"raw": {"utterances": [
		{"speaker": "Speaker 1", "text": " later ", "start": 500, "end": 900},
		{"speaker": "Speaker 0", "text": "earlier", "start": 0, "end": 400}
	]}
}`

func TestReconstructFile_WritesConversation(t *testing.T) {
	dir := t.TempDir()
	raw := filepath.Join(dir, "abc", "abc_raw.json")
	out := filepath.Join(dir, "abc", "abc_conversation.json")
	writeFile(t, raw, utteranceDoc)

	n, err := NewReconstructor(quietLogger()).ReconstructFile(raw, out)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var conv types.Conversation
	require.NoError(t, json.Unmarshal(data, &conv))
	assert.Equal(t, raw, conv.Source)
	require.Len(t, conv.Segments, 2)
	assert.Equal(t, "A", conv.Segments[0].Speaker)
	assert.Equal(t, "earlier", conv.Segments[0].Text)
	assert.Equal(t, "B", conv.Segments[1].Speaker)
	assert.Equal(t, "later", conv.Segments[1].Text)
}

func TestLoadRaw_Missing(t *testing.T) {
	_, err := LoadRaw(filepath.Join(t.TempDir(), "nope.json"))

	var recErr *Error
	require.ErrorAs(t, err, &recErr)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadRaw_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad_raw.json")
	writeFile(t, path, `{"status": "completed", "raw": {"utterances": "oops"}}`)

	_, err := LoadRaw(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed raw transcript")
}

func TestConversationPathFor(t *testing.T) {
	assert.Equal(t, filepath.Join("t", "k", "k_conversation.json"), ConversationPathFor(filepath.Join("t", "k", "k_raw.json")))
	assert.Equal(t, filepath.Join("t", "k_conversation.json"), ConversationPathFor(filepath.Join("t", "k.json")))
}
