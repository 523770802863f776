package pipeline

import "path/filepath"

// Layout decides where per-job artifacts live.
type Layout struct {
	DownloadDir    string
	TranscriptsDir string
}

// AudioName is the base name handed to the acquirer; the extension is chosen by the downloader.
func (l Layout) AudioName(key string) string {
	return SafeName(key)
}

// JobDir is the per-job transcript directory.
func (l Layout) JobDir(key string) string {
	return filepath.Join(l.TranscriptsDir, SafeName(key))
}

// RawTranscriptPath is <transcripts>/<key>/<key>_raw.json.
func (l Layout) RawTranscriptPath(key string) string {
	name := SafeName(key)
	return filepath.Join(l.TranscriptsDir, name, name+"_raw.json")
}

// ConversationPath is <transcripts>/<key>/<key>_conversation.json.
func (l Layout) ConversationPath(key string) string {
	name := SafeName(key)
	return filepath.Join(l.TranscriptsDir, name, name+"_conversation.json")
}

// IndexPath is the default index location.
func (l Layout) IndexPath() string {
	return filepath.Join(l.TranscriptsDir, "index.json")
}
