package pipeline

import (
	"net/url"
	"strings"

	"github.com/jonathan/transcript-pipeline/internal/fsutil"
)

// DeriveKey maps a source reference to its stable job key.
// YouTube watch, short-link, shorts and live URLs map to the video id;
// anything else maps to the trimmed source itself.
func DeriveKey(source string) string {
	source = strings.TrimSpace(source)
	u, err := url.Parse(source)
	if err != nil || u.Host == "" {
		return source
	}

	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	host = strings.TrimPrefix(host, "m.")

	var id string
	switch host {
	case "youtu.be":
		id = firstSegment(u.Path)
	case "youtube.com", "music.youtube.com":
		switch {
		case u.Path == "/watch":
			id = u.Query().Get("v")
		case strings.HasPrefix(u.Path, "/shorts/"):
			id = firstSegment(strings.TrimPrefix(u.Path, "/shorts/"))
		case strings.HasPrefix(u.Path, "/live/"):
			id = firstSegment(strings.TrimPrefix(u.Path, "/live/"))
		}
	}
	if id == "" {
		return source
	}
	return id
}

// SafeName returns the file-name form of a key.
func SafeName(key string) string {
	return fsutil.SafeName(key)
}

func firstSegment(p string) string {
	p = strings.TrimPrefix(p, "/")
	if i := strings.IndexByte(p, '/'); i >= 0 {
		p = p[:i]
	}
	return p
}
