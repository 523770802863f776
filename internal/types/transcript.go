package types

// RawTranscript is the per-job document written when remote transcription completes.
type RawTranscript struct {
	Status string       `json:"status"`
	Text   string       `json:"text,omitempty"`
	ID     string       `json:"id,omitempty"`
	Raw    *RawContents `json:"raw,omitempty"`
}

// RawContents holds the speaker-tagged parts of a vendor transcript.
// Unknown vendor fields are ignored.
type RawContents struct {
	Utterances []Utterance `json:"utterances,omitempty"`
	Words      []Word      `json:"words,omitempty"`
}

// Utterance is one speaker turn as grouped by the vendor.
type Utterance struct {
	Speaker      string   `json:"speaker,omitempty"`
	SpeakerLabel string   `json:"speaker_label,omitempty"`
	Text         string   `json:"text"`
	Start        *float64 `json:"start,omitempty"`
	End          *float64 `json:"end,omitempty"`
}

// Word is a single token with its speaker tag.
type Word struct {
	Speaker      string   `json:"speaker,omitempty"`
	SpeakerLabel string   `json:"speaker_label,omitempty"`
	Text         string   `json:"text"`
	Start        *float64 `json:"start,omitempty"`
	End          *float64 `json:"end,omitempty"`
}

// Segment is one contiguous speaker turn in a reconstructed conversation.
type Segment struct {
	Speaker string   `json:"speaker"`
	Text    string   `json:"text"`
	Start   *float64 `json:"start"`
	End     *float64 `json:"end"`
}

// Conversation is the reconstructed, turn-ordered transcript of one job.
type Conversation struct {
	Source   string    `json:"source"`
	Segments []Segment `json:"segments"`
}
