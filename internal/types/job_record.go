// Package types provides type definitions for structured data used throughout the transcript pipeline.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"fmt"
	"sort"
	"time"
)

// Status is the lifecycle state of a single job.
type Status string

// Job statuses. Failure states are terminal for a run but resumable: the next
// run restarts them from StatusNew.
const (
	StatusNew                 Status = "new"
	StatusDownloading         Status = "downloading"
	StatusDownloaded          Status = "downloaded"
	StatusUploading           Status = "uploading"
	StatusPolling             Status = "polling"
	StatusCompleted           Status = "completed"
	StatusAudioDownloadFailed Status = "audio-download-failed"
	StatusTranscriptFailed    Status = "transcript-failed"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []Status{
	StatusNew,
	StatusDownloading,
	StatusDownloaded,
	StatusUploading,
	StatusPolling,
	StatusCompleted,
	StatusAudioDownloadFailed,
	StatusTranscriptFailed,
}

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// IsTerminal reports whether s ends processing for the current run.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusAudioDownloadFailed, StatusTranscriptFailed:
		return true
	default:
		return false
	}
}

// IsFailed reports whether s is one of the failure states.
func (s Status) IsFailed() bool {
	return s == StatusAudioDownloadFailed || s == StatusTranscriptFailed
}

// CanTransition enforces the job state machine edges.
func (s Status) CanTransition(to Status) bool {
	switch s {
	case StatusNew:
		// downloaded: the audio artifact already exists and acquisition is skipped
		return to == StatusDownloading || to == StatusDownloaded
	case StatusDownloading:
		return to == StatusDownloaded || to == StatusAudioDownloadFailed
	case StatusDownloaded:
		return to == StatusUploading
	case StatusUploading:
		return to == StatusPolling || to == StatusTranscriptFailed
	case StatusPolling:
		return to == StatusCompleted || to == StatusTranscriptFailed
	case StatusCompleted, StatusAudioDownloadFailed, StatusTranscriptFailed:
		return to == StatusNew
	default:
		return false
	}
}

// JobRecord is the persisted state of one media source.
type JobRecord struct {
	Key               string     `json:"key"`
	SourceURL         string     `json:"source_url"`
	Title             string     `json:"title,omitempty"`
	Duration          *float64   `json:"duration,omitempty"` // seconds
	Status            Status     `json:"status"`
	AudioFilePath     string     `json:"audio_file_path,omitempty"`
	RawTranscriptPath string     `json:"raw_transcript_path,omitempty"`
	ConversationPath  string     `json:"conversation_path,omitempty"`
	RemoteJobID       string     `json:"remote_job_id,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	TranscribedAt     *time.Time `json:"transcribed_at,omitempty"`
	LastError         string     `json:"last_error,omitempty"`
}

// NewJobRecord creates a record in StatusNew.
func NewJobRecord(key, sourceURL string, now time.Time) *JobRecord {
	return &JobRecord{
		Key:       key,
		SourceURL: sourceURL,
		Status:    StatusNew,
		CreatedAt: now.UTC(),
	}
}

// Transition moves the record to the given status, rejecting illegal edges.
func (r *JobRecord) Transition(to Status) error {
	if r.Status == to {
		return nil
	}
	if !r.Status.CanTransition(to) {
		return fmt.Errorf("job %s: invalid transition: %s -> %s", r.Key, r.Status, to)
	}
	r.Status = to
	return nil
}

// Reset returns the record to StatusNew and drops the transcript reference.
// The audio artifact is kept so it can be reused.
func (r *JobRecord) Reset() {
	r.Status = StatusNew
	r.RawTranscriptPath = ""
	r.TranscribedAt = nil
}

// Clone returns a deep copy of the record.
func (r *JobRecord) Clone() *JobRecord {
	if r == nil {
		return nil
	}
	c := *r
	if r.Duration != nil {
		d := *r.Duration
		c.Duration = &d
	}
	if r.TranscribedAt != nil {
		t := *r.TranscribedAt
		c.TranscribedAt = &t
	}
	return &c
}

// Index maps job key to job record. It is persisted as a whole document.
type Index map[string]*JobRecord

// NewIndex returns an empty index.
func NewIndex() Index {
	return make(Index)
}

// Clone returns a deep copy of the index.
func (idx Index) Clone() Index {
	out := make(Index, len(idx))
	for k, rec := range idx {
		out[k] = rec.Clone()
	}
	return out
}

// Keys returns the index keys sorted lexically.
func (idx Index) Keys() []string {
	keys := make([]string, 0, len(idx))
	for k := range idx {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CountByStatus tallies records per status.
func (idx Index) CountByStatus() map[Status]int {
	counts := make(map[Status]int)
	for _, rec := range idx {
		counts[rec.Status]++
	}
	return counts
}
