package diarize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/transcript-pipeline/internal/types"
)

func f(v float64) *float64 { return &v }

func TestReconstruct_UtterancesSortedByStart(t *testing.T) {
	doc := &types.RawTranscript{Raw: &types.RawContents{Utterances: []types.Utterance{
		{Speaker: "A", Text: "third", Start: f(5), End: f(6)},
		{Speaker: "B", Text: "first", Start: f(1), End: f(2)},
		{Speaker: "A", Text: "second", Start: f(3), End: f(4)},
	}}}

	segments := Reconstruct(doc)

	require.Len(t, segments, 3)
	assert.Equal(t, []string{"first", "second", "third"}, texts(segments))
	assert.Equal(t, 1.0, *segments[0].Start)
	assert.Equal(t, 3.0, *segments[1].Start)
	assert.Equal(t, 5.0, *segments[2].Start)
}

func TestReconstruct_UtteranceTiesKeepInputOrder(t *testing.T) {
	doc := &types.RawTranscript{Raw: &types.RawContents{Utterances: []types.Utterance{
		{Speaker: "A", Text: "one", Start: f(2)},
		{Speaker: "B", Text: "two", Start: f(2)},
		{Speaker: "C", Text: "zero", Start: f(1)},
		{Speaker: "D", Text: "three", Start: f(2)},
	}}}

	assert.Equal(t, []string{"zero", "one", "two", "three"}, texts(Reconstruct(doc)))
}

func TestReconstruct_UtterancesVerbatimNotMerged(t *testing.T) {
	doc := &types.RawTranscript{Raw: &types.RawContents{Utterances: []types.Utterance{
		{Speaker: "A", Text: "hello", Start: f(0), End: f(1)},
		{Speaker: "A", Text: "again", Start: f(1), End: f(2)},
	}}}

	segments := Reconstruct(doc)
	require.Len(t, segments, 2)
	assert.Equal(t, "A", segments[1].Speaker)
}

func TestReconstruct_WordsGroupedBySpeaker(t *testing.T) {
	doc := &types.RawTranscript{Raw: &types.RawContents{Words: []types.Word{
		{Speaker: "A", Text: "hi", Start: f(0), End: f(1)},
		{Speaker: "A", Text: "there", Start: f(1), End: f(2)},
		{Speaker: "B", Text: "hey", Start: f(2), End: f(3)},
	}}}

	segments := Reconstruct(doc)

	require.Len(t, segments, 2)
	assert.Equal(t, "A", segments[0].Speaker)
	assert.Equal(t, "hi there", segments[0].Text)
	assert.Equal(t, 0.0, *segments[0].Start)
	assert.Equal(t, 2.0, *segments[0].End)
	assert.Equal(t, "B", segments[1].Speaker)
	assert.Equal(t, "hey", segments[1].Text)
	assert.Equal(t, 2.0, *segments[1].Start)
	assert.Equal(t, 3.0, *segments[1].End)
}

func TestReconstruct_WordsSortedBeforeGrouping(t *testing.T) {
	doc := &types.RawTranscript{Raw: &types.RawContents{Words: []types.Word{
		{Speaker: "B", Text: "yo", Start: f(30), End: f(31)},
		{Speaker: "A", Text: "good", Start: f(10), End: f(11)},
		{Speaker: "A", Text: "morning", Start: f(20), End: f(21)},
	}}}

	segments := Reconstruct(doc)
	require.Len(t, segments, 2)
	assert.Equal(t, "good morning", segments[0].Text)
	assert.Equal(t, "yo", segments[1].Text)
}

func TestReconstruct_SpeakerReturnsStartsNewTurn(t *testing.T) {
	doc := &types.RawTranscript{Raw: &types.RawContents{Words: []types.Word{
		{Speaker: "A", Text: "a1", Start: f(0)},
		{Speaker: "B", Text: "b1", Start: f(1)},
		{Speaker: "A", Text: "a2", Start: f(2)},
	}}}

	segments := Reconstruct(doc)
	assert.Equal(t, []string{"A", "B", "A"}, speakers(segments))
}

func TestReconstruct_EmptyInputs(t *testing.T) {
	assert.Empty(t, Reconstruct(&types.RawTranscript{Raw: &types.RawContents{}}))
	assert.Empty(t, Reconstruct(&types.RawTranscript{Raw: &types.RawContents{Utterances: []types.Utterance{}, Words: []types.Word{}}}))
	assert.Empty(t, Reconstruct(&types.RawTranscript{}))
	assert.Empty(t, Reconstruct(nil))
}

func TestReconstruct_FallsBackToWordsWhenUtterancesEmpty(t *testing.T) {
	doc := &types.RawTranscript{Raw: &types.RawContents{
		Utterances: []types.Utterance{},
		Words:      []types.Word{{Speaker: "speaker 1", Text: " solo ", Start: f(0)}},
	}}

	segments := Reconstruct(doc)
	require.Len(t, segments, 1)
	assert.Equal(t, "B", segments[0].Speaker)
	assert.Equal(t, "solo", segments[0].Text)
}

func TestReconstruct_LabelFallbacks(t *testing.T) {
	doc := &types.RawTranscript{Raw: &types.RawContents{Utterances: []types.Utterance{
		{SpeakerLabel: "Speaker 2", Text: "legacy", Start: f(0)},
		{Text: "anonymous", Start: f(1)},
	}}}

	assert.Equal(t, []string{"C", UnknownSpeaker}, speakers(Reconstruct(doc)))
}

func TestReconstruct_TrimsText(t *testing.T) {
	doc := &types.RawTranscript{Raw: &types.RawContents{Utterances: []types.Utterance{
		{Speaker: "A", Text: "  padded text \n", Start: f(0)},
	}}}

	assert.Equal(t, "padded text", Reconstruct(doc)[0].Text)
}

func TestNormalizeLabel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Speaker 0", "A"},
		{"Speaker 11", "L"},
		{"speaker 3", "D"},
		{"SPEAKER_1", "B"},
		{"Speaker25", "Z"},
		{"Speaker 26", "Speaker 26"},
		{"A", "A"},
		{"Speaker x", "Speaker x"},
		{"Speaker", "Speaker"},
		{"Speaker -1", "Speaker -1"},
		{"Host", "Host"},
		{" B ", "B"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeLabel(tt.in))
		})
	}
}

func texts(segments []types.Segment) []string {
	out := make([]string, len(segments))
	for i, s := range segments {
		out[i] = s.Text
	}
	return out
}

func speakers(segments []types.Segment) []string {
	out := make([]string, len(segments))
	for i, s := range segments {
		out[i] = s.Speaker
	}
	return out
}
