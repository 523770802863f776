// Package diarize rebuilds an ordered, speaker-segmented conversation from a raw transcript.
package diarize

import (
	"sort"
	"strconv"
	"strings"

	"github.com/jonathan/transcript-pipeline/internal/types"
)

// UnknownSpeaker labels entries that carry no speaker tag.
const UnknownSpeaker = "UNKNOWN"

// Reconstruct converts a raw transcript into conversational turns.
// Utterances are preferred; word entries are grouped by consecutive speaker otherwise.
// The result preserves turn order and is never aggregated per speaker.
func Reconstruct(doc *types.RawTranscript) []types.Segment {
	if doc == nil || doc.Raw == nil {
		return []types.Segment{}
	}

	segments := fromUtterances(doc.Raw.Utterances)
	if len(segments) == 0 {
		segments = fromWords(doc.Raw.Words)
	}

	for i := range segments {
		segments[i].Speaker = NormalizeLabel(segments[i].Speaker)
		segments[i].Text = strings.TrimSpace(segments[i].Text)
	}
	return segments
}

func fromUtterances(utterances []types.Utterance) []types.Segment {
	if len(utterances) == 0 {
		return nil
	}

	sorted := make([]types.Utterance, len(utterances))
	copy(sorted, utterances)
	sort.SliceStable(sorted, func(i, j int) bool {
		return startOf(sorted[i].Start) < startOf(sorted[j].Start)
	})

	segments := make([]types.Segment, 0, len(sorted))
	for _, u := range sorted {
		segments = append(segments, types.Segment{
			Speaker: speakerOf(u.Speaker, u.SpeakerLabel),
			Text:    u.Text,
			Start:   u.Start,
			End:     u.End,
		})
	}
	return segments
}

func fromWords(words []types.Word) []types.Segment {
	if len(words) == 0 {
		return []types.Segment{}
	}

	sorted := make([]types.Word, len(words))
	copy(sorted, words)
	sort.SliceStable(sorted, func(i, j int) bool {
		return startOf(sorted[i].Start) < startOf(sorted[j].Start)
	})

	var segments []types.Segment
	var current *types.Segment
	var texts []string

	closeCurrent := func() {
		if current == nil {
			return
		}
		current.Text = strings.Join(texts, " ")
		segments = append(segments, *current)
	}

	for _, w := range sorted {
		speaker := speakerOf(w.Speaker, w.SpeakerLabel)
		if current != nil && speaker == current.Speaker {
			texts = append(texts, w.Text)
			current.End = w.End
			continue
		}
		closeCurrent()
		current = &types.Segment{Speaker: speaker, Start: w.Start, End: w.End}
		texts = []string{w.Text}
	}
	closeCurrent()

	return segments
}

// NormalizeLabel maps "Speaker <n>" (case-insensitive) to the (n+1)-th uppercase
// letter. Labels with a non-numeric suffix, single characters, numbers past 'Z'
// and every other label are returned trimmed but otherwise unchanged.
func NormalizeLabel(label string) string {
	label = strings.TrimSpace(label)
	if len(label) <= 1 {
		return label
	}

	const prefix = "speaker"
	if len(label) <= len(prefix) || !strings.EqualFold(label[:len(prefix)], prefix) {
		return label
	}

	suffix := strings.TrimLeft(label[len(prefix):], " _#")
	if suffix == "" || strings.TrimLeft(suffix, "0123456789") != "" {
		return label
	}
	n, err := strconv.Atoi(suffix)
	if err != nil || n < 0 || n >= 26 {
		return label
	}
	return string(rune('A' + n))
}

func speakerOf(speaker, speakerLabel string) string {
	if speaker != "" {
		return speaker
	}
	if speakerLabel != "" {
		return speakerLabel
	}
	return UnknownSpeaker
}

func startOf(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
