// Package expand turns channel and playlist references into individual video URLs.
package expand

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/jonathan/transcript-pipeline/internal/fetch"
	"github.com/jonathan/transcript-pipeline/internal/pipeline"
)

var (
	// ids embedded in the page's initial data script
	videoIDPattern = regexp.MustCompile(`"videoId"\s*:\s*"([A-Za-z0-9_-]{11})"`)
	validID        = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
)

// Fetcher retrieves the HTML of a page.
type Fetcher func(ctx context.Context, url string) (string, error)

// HTTPFetcher fetches pages with fetch.URL.
func HTTPFetcher(opts *fetch.Options) Fetcher {
	return func(ctx context.Context, url string) (string, error) {
		res, err := fetch.URL(ctx, url, opts)
		if err != nil {
			return "", err
		}
		return res.HTML, nil
	}
}

// Expander resolves YouTube collections into watch URLs.
type Expander struct {
	fetch   Fetcher
	browser fetch.Renderer
	logger  *slog.Logger
}

// New creates an Expander. browser may be nil to disable rendering fallback.
func New(fetcher Fetcher, browser fetch.Renderer, logger *slog.Logger) *Expander {
	if logger == nil {
		logger = slog.Default()
	}
	return &Expander{fetch: fetcher, browser: browser, logger: logger}
}

// IsCollection reports whether source is a channel or playlist.
func (e *Expander) IsCollection(source string) bool {
	return Detect(source) != KindVideo
}

// Expand lists the videos of a collection as watch URLs, de-duplicated in page order.
// When the static page yields nothing and a browser is configured, the page is rendered.
func (e *Expander) Expand(ctx context.Context, source string) ([]string, error) {
	kind := Detect(source)
	if kind == KindVideo {
		return []string{source}, nil
	}
	page := listingURL(source, kind)

	html, err := e.fetch(ctx, page)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s %s: %w", kind, page, err)
	}
	ids, err := VideoIDs(html, page)
	if err != nil {
		return nil, err
	}

	if len(ids) == 0 && e.browser != nil {
		e.logger.Info("no videos in static page, rendering", "url", page)
		rendered, err := e.browser.Render(ctx, page)
		if err != nil {
			return nil, err
		}
		if ids, err = VideoIDs(rendered, page); err != nil {
			return nil, err
		}
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no videos found in %s %s", kind, source)
	}

	e.logger.Debug("expanded collection", "kind", kind, "title", fetch.ExtractTitle(html), "videos", len(ids))
	urls := make([]string, len(ids))
	for i, id := range ids {
		urls[i] = "https://www.youtube.com/watch?v=" + id
	}
	return urls, nil
}

// VideoIDs collects video ids from anchor links and embedded script data, in order of first appearance.
func VideoIDs(html, base string) ([]string, error) {
	links, err := fetch.ExtractLinks(html, base)
	if err != nil {
		return nil, err
	}

	var ids []string
	seen := make(map[string]bool)
	add := func(id string) {
		if !validID.MatchString(id) || seen[id] {
			return
		}
		seen[id] = true
		ids = append(ids, id)
	}

	for _, link := range links {
		if Detect(link) != KindVideo {
			continue
		}
		if id := pipeline.DeriveKey(link); id != link {
			add(id)
		}
	}
	for _, m := range videoIDPattern.FindAllStringSubmatch(html, -1) {
		add(m[1])
	}
	return ids, nil
}
