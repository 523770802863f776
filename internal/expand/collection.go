package expand

import (
	"net/url"
	"strings"
)

// Kind identifies what a source reference points at.
type Kind string

const (
	// KindVideo is a single item
	KindVideo Kind = "video"
	// KindChannel is a YouTube channel (/@handle, /channel/, /c/, /user/)
	KindChannel Kind = "channel"
	// KindPlaylist is a YouTube playlist (/playlist?list=)
	KindPlaylist Kind = "playlist"
)

// Detect classifies a source URL.
func Detect(source string) Kind {
	u, err := url.Parse(strings.TrimSpace(source))
	if err != nil || u.Host == "" {
		return KindVideo
	}

	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	host = strings.TrimPrefix(host, "m.")
	if host != "youtube.com" && host != "music.youtube.com" {
		return KindVideo
	}

	path := u.Path
	switch {
	case path == "/playlist" && u.Query().Get("list") != "":
		return KindPlaylist
	case strings.HasPrefix(path, "/@"),
		strings.HasPrefix(path, "/channel/"),
		strings.HasPrefix(path, "/c/"),
		strings.HasPrefix(path, "/user/"):
		return KindChannel
	}
	return KindVideo
}

// listingURL returns the page that lists the items of a collection.
// Channel roots redirect to a featured tab, so their /videos tab is used.
func listingURL(source string, kind Kind) string {
	if kind != KindChannel {
		return source
	}
	u, err := url.Parse(strings.TrimSpace(source))
	if err != nil {
		return source
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	// /@handle or /channel/<id>, /c/<name>, /user/<name>
	rootLen := 2
	if strings.HasPrefix(segments[0], "@") {
		rootLen = 1
	}
	if len(segments) > rootLen {
		return source
	}
	u.Path = "/" + strings.Join(segments, "/") + "/videos"
	u.RawQuery = ""
	return u.String()
}
