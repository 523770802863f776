package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jonathan/transcript-pipeline/internal/fsutil"
)

const (
	rawSuffix          = "_raw.json"
	conversationSuffix = "_conversation.json"
)

// Scanner discovers transcripts under a directory. It understands three layouts:
//
//	<dir>/<key>/<key>_raw.json
//	<dir>/<key>_raw.json
//	<dir>/<key>.json
//
// each optionally accompanied by <key>_conversation.json in the same directory.
type Scanner struct {
	Dir string
	// Skip lists file names ignored in the top-level directory (the index itself).
	Skip []string
}

// NewScanner creates a Scanner for dir that ignores the index file at indexPath.
func NewScanner(dir, indexPath string) *Scanner {
	s := &Scanner{Dir: dir}
	if indexPath != "" {
		if abs, err := filepath.Abs(filepath.Dir(indexPath)); err == nil {
			if root, err := filepath.Abs(dir); err == nil && abs == root {
				s.Skip = append(s.Skip, filepath.Base(indexPath))
			}
		}
	}
	return s
}

// Scan returns the artifacts found, sorted by key. A missing directory yields nothing.
// When two layouts report the same key the nested one wins.
func (s *Scanner) Scan() ([]Artifact, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan %s: %w", s.Dir, err)
	}

	found := make(map[string]Artifact)
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		raw := filepath.Join(s.Dir, name, name+rawSuffix)
		if fsutil.Exists(raw) {
			found[name] = Artifact{
				Key:              name,
				RawPath:          raw,
				ConversationPath: s.conversation(filepath.Join(s.Dir, name), name),
			}
		}
	}

	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || s.skipped(name) {
			continue
		}
		if !strings.HasSuffix(name, ".json") || strings.HasSuffix(name, conversationSuffix) {
			continue
		}
		key := strings.TrimSuffix(name, rawSuffix)
		if key == name {
			key = strings.TrimSuffix(name, ".json")
		}
		if _, ok := found[key]; ok || key == "" {
			continue
		}
		found[key] = Artifact{
			Key:              key,
			RawPath:          filepath.Join(s.Dir, name),
			ConversationPath: s.conversation(s.Dir, key),
		}
	}

	out := make([]Artifact, 0, len(found))
	for _, a := range found {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *Scanner) conversation(dir, key string) string {
	p := filepath.Join(dir, key+conversationSuffix)
	if fsutil.Exists(p) {
		return p
	}
	return ""
}

func (s *Scanner) skipped(name string) bool {
	for _, n := range s.Skip {
		if n == name {
			return true
		}
	}
	return false
}
