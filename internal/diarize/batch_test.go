package diarize

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/transcript-pipeline/internal/fsutil"
	"github.com/jonathan/transcript-pipeline/internal/types"
)

func TestBatch_ReconstructsSkipsAndIsolatesFailures(t *testing.T) {
	dir := t.TempDir()

	goodRaw := filepath.Join(dir, "good", "good_raw.json")
	writeFile(t, goodRaw, utteranceDoc)

	doneRaw := filepath.Join(dir, "done", "done_raw.json")
	writeFile(t, doneRaw, utteranceDoc)
	writeFile(t, filepath.Join(dir, "done", "done_conversation.json"), `{"source":"x","segments":[]}`)

	badRaw := filepath.Join(dir, "bad", "bad_raw.json")
	writeFile(t, badRaw, `not json`)

	idx := types.Index{
		"bad":     {Key: "bad", Status: types.StatusCompleted, RawTranscriptPath: badRaw},
		"done":    {Key: "done", Status: types.StatusCompleted, RawTranscriptPath: doneRaw},
		"good":    {Key: "good", Status: types.StatusCompleted, RawTranscriptPath: goodRaw},
		"missing": {Key: "missing", Status: types.StatusCompleted, RawTranscriptPath: filepath.Join(dir, "missing", "missing_raw.json")},
		"pending": {Key: "pending", Status: types.StatusNew},
	}

	b := NewBatch(NewReconstructor(quietLogger()), BatchOptions{TranscriptsDir: dir, Workers: 2}, quietLogger())
	results, err := b.Run(context.Background(), idx)
	require.NoError(t, err)
	require.Len(t, results, 4)

	byKey := map[string]Result{}
	for _, r := range results {
		byKey[r.Key] = r
	}

	assert.Error(t, byKey["bad"].Err)
	assert.True(t, byKey["done"].Skipped)
	assert.NoError(t, byKey["good"].Err)
	assert.Equal(t, 2, byKey["good"].Segments)
	assert.True(t, fsutil.Exists(filepath.Join(dir, "good", "good_conversation.json")))
	assert.Error(t, byKey["missing"].Err)
}

func TestBatch_ForceRebuildsExisting(t *testing.T) {
	dir := t.TempDir()
	raw := filepath.Join(dir, "k", "k_raw.json")
	writeFile(t, raw, utteranceDoc)
	writeFile(t, filepath.Join(dir, "k", "k_conversation.json"), `{"source":"x","segments":[]}`)

	idx := types.Index{"k": {Key: "k", RawTranscriptPath: raw}}
	results, err := NewBatch(NewReconstructor(quietLogger()), BatchOptions{Force: true}, quietLogger()).Run(context.Background(), idx)

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Skipped)
	assert.Equal(t, 2, results[0].Segments)
}

func TestBatch_MovesFlatRawIntoKeyDirectory(t *testing.T) {
	dir := t.TempDir()
	flat := filepath.Join(dir, "vid_raw.json")
	writeFile(t, flat, utteranceDoc)

	idx := types.Index{"vid": {Key: "vid", RawTranscriptPath: flat}}
	results, err := NewBatch(NewReconstructor(quietLogger()), BatchOptions{TranscriptsDir: dir}, quietLogger()).Run(context.Background(), idx)

	require.NoError(t, err)
	require.Len(t, results, 1)
	res := results[0]
	assert.True(t, res.Moved)
	assert.Equal(t, filepath.Join(dir, "vid", "vid_raw.json"), res.RawPath)
	assert.Equal(t, filepath.Join(dir, "vid", "vid_conversation.json"), res.ConversationPath)
	assert.False(t, fsutil.Exists(flat))
	assert.True(t, fsutil.Exists(res.ConversationPath))
}

func TestBatch_CancelledContext(t *testing.T) {
	dir := t.TempDir()
	raw := filepath.Join(dir, "k", "k_raw.json")
	writeFile(t, raw, utteranceDoc)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := NewBatch(NewReconstructor(quietLogger()), BatchOptions{}, quietLogger()).Run(ctx, types.Index{"k": {Key: "k", RawTranscriptPath: raw}})
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, context.Canceled)
	assert.False(t, fsutil.Exists(results[0].ConversationPath))
}
