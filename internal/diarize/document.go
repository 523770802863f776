package diarize

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonathan/transcript-pipeline/internal/fsutil"
	"github.com/jonathan/transcript-pipeline/internal/schemas"
	"github.com/jonathan/transcript-pipeline/internal/types"
)

// LoadRaw reads and validates a raw transcript document.
func LoadRaw(path string) (*types.RawTranscript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Path: path, Message: "failed to read raw transcript", Cause: err}
	}
	if err := schemas.Validate(schemas.RawTranscript, data); err != nil {
		return nil, &Error{Path: path, Message: "malformed raw transcript", Cause: err}
	}

	var doc types.RawTranscript
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &Error{Path: path, Message: "failed to decode raw transcript", Cause: err}
	}
	return &doc, nil
}

// WriteConversation atomically writes a conversation document.
func WriteConversation(path string, conv *types.Conversation) error {
	if err := fsutil.WriteJSONAtomic(path, conv); err != nil {
		return &Error{Path: path, Message: "failed to write conversation", Cause: err}
	}
	return nil
}

// ConversationPathFor derives the conversation file that sits next to a raw transcript:
// "<key>_raw.json" becomes "<key>_conversation.json", "<key>.json" becomes "<key>_conversation.json".
func ConversationPathFor(rawPath string) string {
	dir := filepath.Dir(rawPath)
	stem := strings.TrimSuffix(filepath.Base(rawPath), filepath.Ext(rawPath))
	stem = strings.TrimSuffix(stem, "_raw")
	return filepath.Join(dir, stem+"_conversation.json")
}

// Reconstructor turns raw transcript files into conversation files.
type Reconstructor struct {
	logger *slog.Logger
}

// NewReconstructor creates a Reconstructor.
func NewReconstructor(logger *slog.Logger) *Reconstructor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconstructor{logger: logger}
}

// Build loads rawPath and returns its conversation without writing anything.
func (r *Reconstructor) Build(rawPath string) (*types.Conversation, error) {
	doc, err := LoadRaw(rawPath)
	if err != nil {
		return nil, err
	}
	return &types.Conversation{
		Source:   rawPath,
		Segments: Reconstruct(doc),
	}, nil
}

// ReconstructFile builds the conversation for rawPath, writes it to outPath and
// returns the number of segments.
func (r *Reconstructor) ReconstructFile(rawPath, outPath string) (int, error) {
	conv, err := r.Build(rawPath)
	if err != nil {
		return 0, err
	}
	if err := WriteConversation(outPath, conv); err != nil {
		return 0, err
	}
	r.logger.Info("wrote conversation", "raw", rawPath, "out", outPath, "segments", len(conv.Segments))
	return len(conv.Segments), nil
}
