// Package extractor defines the external collaborator contract for turning
// a URL into body text, with its own internal caching of the last fetched
// body. The url provider never re-fetches on the extractor's behalf; it
// asks for the cached body through Cached.
package extractor

import "context"

// Extractor fetches and caches the text content behind a URL.
type Extractor interface {
	// Fetch retrieves text for url. When force is false, implementations
	// may serve a cached copy; the url provider always passes force=true
	// since it has already decided, via conditional HTTP validators, that a
	// fetch is warranted. ok is false when nothing could be extracted.
	Fetch(ctx context.Context, url string, force bool) (text string, ok bool, err error)

	// Cached returns the last text extracted for url without fetching.
	Cached(ctx context.Context, url string) (text string, ok bool)
}
