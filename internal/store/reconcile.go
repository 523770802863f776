package store

import (
	"time"

	"github.com/jonathan/transcript-pipeline/internal/fsutil"
	"github.com/jonathan/transcript-pipeline/internal/types"
)

// Artifact is a transcript found on disk outside the index.
// Key is the file-name form of the job key (see fsutil.SafeName).
type Artifact struct {
	Key              string
	RawPath          string
	ConversationPath string
}

// Reconcile merges found artifacts into idx and returns it.
// Artifacts are matched to records by key or by the safe file name of a key.
// Existing non-empty fields are never overwritten. A record whose raw
// transcript was found is marked completed.
func Reconcile(idx types.Index, found []Artifact) types.Index {
	return reconcileAt(idx, found, time.Now().UTC())
}

func reconcileAt(idx types.Index, found []Artifact, now time.Time) types.Index {
	if idx == nil {
		idx = types.NewIndex()
	}
	names := safeNames(idx)
	for _, a := range found {
		if a.Key == "" {
			continue
		}
		rec, ok := idx[a.Key]
		if !ok {
			rec, ok = idx[names[a.Key]]
		}
		if !ok {
			rec = types.NewJobRecord(a.Key, "", now)
			idx[a.Key] = rec
		}
		if rec.RawTranscriptPath == "" {
			rec.RawTranscriptPath = a.RawPath
		}
		if rec.ConversationPath == "" {
			rec.ConversationPath = a.ConversationPath
		}
		if rec.RawTranscriptPath != "" && rec.Status != types.StatusCompleted {
			rec.Status = types.StatusCompleted
			rec.LastError = ""
			if rec.TranscribedAt == nil {
				t := now
				rec.TranscribedAt = &t
			}
		}
	}
	return idx
}

// safeNames maps the file-name form of each key to the key. Keys that are
// already safe are left out; the first key in sorted order wins a collision.
func safeNames(idx types.Index) map[string]string {
	names := make(map[string]string)
	for _, key := range idx.Keys() {
		name := fsutil.SafeName(key)
		if name == key {
			continue
		}
		if _, taken := names[name]; !taken {
			names[name] = key
		}
	}
	return names
}

// Heal resets completed records whose raw transcript no longer exists and
// returns their keys in sorted order.
func Heal(idx types.Index, exists func(string) bool) []string {
	var healed []string
	for _, key := range idx.Keys() {
		rec := idx[key]
		if rec.Status != types.StatusCompleted {
			continue
		}
		if rec.RawTranscriptPath != "" && exists(rec.RawTranscriptPath) {
			continue
		}
		rec.Reset()
		healed = append(healed, key)
	}
	return healed
}
