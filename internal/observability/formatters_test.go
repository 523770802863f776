package observability

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/transcript-pipeline/internal/diarize"
	"github.com/jonathan/transcript-pipeline/internal/pipeline"
	"github.com/jonathan/transcript-pipeline/internal/types"
)

func f(v float64) *float64 { return &v }

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintSummary(pipeline.Summary{
		RunID:     "run-1",
		Total:     4,
		Processed: 2,
		Completed: 1,
		Skipped:   1,
		Failed:    1,
		Deferred:  1,
		Failures: []pipeline.JobFailure{
			{Key: "bad", Stage: pipeline.StagePoll, Error: "poll timeout"},
		},
	})
	output := buf.String()

	assert.Contains(t, output, "RUN SUMMARY")
	assert.Contains(t, output, "Processed:  2")
	assert.Contains(t, output, "Skipped:    1")
	assert.Contains(t, output, "Failed:     1")
	assert.Contains(t, output, "Deferred:   1")
	assert.Contains(t, output, "bad [poll] poll timeout")
	assert.NotContains(t, output, "Healed")
}

func TestPrintSummary_TruncatesFailures(t *testing.T) {
	var buf bytes.Buffer
	sum := pipeline.Summary{}
	for i := 0; i < 7; i++ {
		sum.Failures = append(sum.Failures, pipeline.JobFailure{Key: "k"})
	}

	NewPrinter(&buf).PrintSummary(sum)
	assert.Contains(t, buf.String(), "... and 2 more")
}

func TestPrintIndex(t *testing.T) {
	var buf bytes.Buffer
	idx := types.Index{
		"a": {Key: "a", Status: types.StatusCompleted, Title: "Done talk"},
		"b": {Key: "b", Status: types.StatusTranscriptFailed, LastError: "remote failure"},
		"c": {Key: "c", Status: types.StatusNew},
	}

	NewPrinter(&buf).PrintIndex(idx, false)
	output := buf.String()

	assert.Contains(t, output, "JOB INDEX")
	assert.Contains(t, output, "Jobs: 3")
	assert.Contains(t, output, "completed")
	assert.Contains(t, output, "remote failure")
	assert.NotContains(t, output, "Done talk")

	buf.Reset()
	NewPrinter(&buf).PrintIndex(idx, true)
	assert.Contains(t, buf.String(), "Done talk")
}

func TestPrintConversation(t *testing.T) {
	var buf bytes.Buffer
	conv := &types.Conversation{Segments: []types.Segment{
		{Speaker: "A", Text: "Hello", Start: f(0)},
		{Speaker: "B", Text: "Hi", Start: f(65_500)},
		{Speaker: "A", Text: "Later", Start: f(3_725_000)},
		{Speaker: "UNKNOWN", Text: "?"},
	}}

	NewPrinter(&buf).PrintConversation(conv)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")

	assert.Equal(t, []string{
		"[00:00] A: Hello",
		"[01:05] B: Hi",
		"[1:02:05] A: Later",
		"[--:--] UNKNOWN: ?",
	}, lines)
}

func TestPrintProgress(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintProgress(pipeline.ProgressEvent{Index: 1, Total: 2, Key: "a", Message: "processing"})
	p.PrintProgress(pipeline.ProgressEvent{Index: 2, Total: 2, Key: "b", Stage: pipeline.StageAcquire, Status: types.StatusAudioDownloadFailed})

	assert.Equal(t, "Job 1/2: a processing\nJob 2/2: b failed at acquire (audio-download-failed)\n", buf.String())
}

func TestPrintReconstruction(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintReconstruction([]diarize.Result{
		{Target: diarize.Target{Key: "a"}, Segments: 3, Moved: true},
		{Target: diarize.Target{Key: "b"}, Skipped: true},
		{Target: diarize.Target{Key: "c"}, Err: errors.New("raw transcript missing")},
	})
	output := buf.String()

	assert.Contains(t, output, "RECONSTRUCTION")
	assert.Contains(t, output, "Built:       1")
	assert.Contains(t, output, "Skipped:     1")
	assert.Contains(t, output, "Failed:      1")
	assert.Contains(t, output, "Relocated:   1")
	assert.Contains(t, output, "c raw transcript missing")
}
