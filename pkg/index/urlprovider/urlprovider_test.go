package urlprovider_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lukewwww/community-intern/pkg/index"
	"github.com/lukewwww/community-intern/pkg/index/urlprovider"
)

// fakeExtractor hands back a canned body per URL and records the fetched
// text so the url provider's hash and load_text behavior can be verified
// without a second real HTTP round trip.
type fakeExtractor struct {
	mu    sync.Mutex
	texts map[string]string
}

func newFakeExtractor() *fakeExtractor {
	return &fakeExtractor{texts: make(map[string]string)}
}

func (f *fakeExtractor) Fetch(_ context.Context, url string, _ bool) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	text, ok := f.texts[url]

	return text, ok, nil
}

func (f *fakeExtractor) Cached(_ context.Context, url string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	text, ok := f.texts[url]

	return text, ok
}

func (f *fakeExtractor) set(url, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.texts[url] = text
}

func writeLinksFile(t *testing.T, path string, urls ...string) {
	t.Helper()

	content := ""
	for _, u := range urls {
		content += u + "\n"
	}

	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestProvider_DiscoverDedupesAndSkipsComments(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "links.txt")
	writeLinksFile(t, path, "https://a.example", "# comment", "", "https://b.example", "https://a.example")

	p, err := urlprovider.New(path, newFakeExtractor(), urlprovider.Options{})
	require.NoError(t, err)

	discovered, err := p.Discover(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Len(t, discovered, 2)
	assert.Contains(t, discovered, "https://a.example")
	assert.Contains(t, discovered, "https://b.example")
}

func TestProvider_InitRecordFetchesUnconditionally(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "links.txt")
	writeLinksFile(t, path, "https://a.example")

	ext := newFakeExtractor()
	ext.set("https://a.example", "hello")

	p, err := urlprovider.New(path, ext, urlprovider.Options{RefreshMinInterval: time.Hour})
	require.NoError(t, err)

	rec, err := p.InitRecord(context.Background(), "https://a.example", time.Now())
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.True(t, rec.SummaryPending)
	assert.Equal(t, index.FetchStatusSuccess, rec.URL.FetchStatus)
	assert.NotEmpty(t, rec.ContentHash)
}

func TestProvider_InitRecordEmptyBodySkips(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "links.txt")
	writeLinksFile(t, path, "https://a.example")

	p, err := urlprovider.New(path, newFakeExtractor(), urlprovider.Options{})
	require.NoError(t, err)

	rec, err := p.InitRecord(context.Background(), "https://a.example", time.Now())
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestProvider_RefreshHandlesNotModified(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == "E1" {
			w.WriteHeader(http.StatusNotModified)

			return
		}

		w.Header().Set("ETag", "E1")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "links.txt")
	writeLinksFile(t, path, srv.URL)

	ext := newFakeExtractor()
	ext.set(srv.URL, "X")

	p, err := urlprovider.New(path, ext, urlprovider.Options{RefreshMinInterval: time.Hour})
	require.NoError(t, err)

	now := time.Now()

	cache := index.NewCacheState()
	etag := "E1"
	cache.Sources[srv.URL] = &index.CacheRecord{
		SourceType:  index.SourceTypeURL,
		SummaryText: "S",
		URL: &index.URLMetadata{
			URL:         srv.URL,
			ETag:        &etag,
			NextCheckAt: "2000-01-01T00:00:00Z",
		},
	}

	changed, err := p.Refresh(context.Background(), cache, now)
	require.NoError(t, err)
	assert.True(t, changed)

	rec := cache.Sources[srv.URL]
	assert.Equal(t, index.FetchStatusNotModified, rec.URL.FetchStatus)
	assert.Equal(t, "S", rec.SummaryText)
	assert.False(t, rec.SummaryPending)
}

func TestProvider_RefreshHandlesOKAndSetsPending(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", "E2")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "links.txt")
	writeLinksFile(t, path, srv.URL)

	ext := newFakeExtractor()
	ext.set(srv.URL, "new body")

	p, err := urlprovider.New(path, ext, urlprovider.Options{RefreshMinInterval: time.Hour})
	require.NoError(t, err)

	now := time.Now()

	cache := index.NewCacheState()
	cache.Sources[srv.URL] = &index.CacheRecord{
		SourceType:  index.SourceTypeURL,
		ContentHash: "stale",
		SummaryText: "old",
		URL: &index.URLMetadata{
			URL:         srv.URL,
			NextCheckAt: "2000-01-01T00:00:00Z",
		},
	}

	changed, err := p.Refresh(context.Background(), cache, now)
	require.NoError(t, err)
	assert.True(t, changed)

	rec := cache.Sources[srv.URL]
	assert.True(t, rec.SummaryPending)
	assert.Equal(t, index.FetchStatusSuccess, rec.URL.FetchStatus)
	require.NotNil(t, rec.URL.ETag)
	assert.Equal(t, "E2", *rec.URL.ETag)
}

func TestProvider_RefreshHandlesFailureWithBackoff(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "links.txt")
	writeLinksFile(t, path, srv.URL)

	p, err := urlprovider.New(path, newFakeExtractor(), urlprovider.Options{RetryBackoff: time.Minute})
	require.NoError(t, err)

	now := time.Now()

	cache := index.NewCacheState()
	cache.Sources[srv.URL] = &index.CacheRecord{
		SourceType: index.SourceTypeURL,
		URL:        &index.URLMetadata{URL: srv.URL, NextCheckAt: "2000-01-01T00:00:00Z"},
	}

	changed, err := p.Refresh(context.Background(), cache, now)
	require.NoError(t, err)
	assert.True(t, changed)

	rec := cache.Sources[srv.URL]
	assert.Equal(t, index.FetchStatusError, rec.URL.FetchStatus)
}

func TestProvider_RefreshSkipsNotYetEligible(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "links.txt")
	writeLinksFile(t, path, "https://a.example")

	p, err := urlprovider.New(path, newFakeExtractor(), urlprovider.Options{})
	require.NoError(t, err)

	now := time.Now()

	cache := index.NewCacheState()
	cache.Sources["https://a.example"] = &index.CacheRecord{
		SourceType: index.SourceTypeURL,
		URL: &index.URLMetadata{
			URL:         "https://a.example",
			NextCheckAt: now.Add(time.Hour).Format(time.RFC3339),
		},
	}

	changed, err := p.Refresh(context.Background(), cache, now)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestProvider_LoadTextDelegatesToExtractorCache(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "links.txt")
	writeLinksFile(t, path, "https://a.example")

	ext := newFakeExtractor()
	ext.set("https://a.example", "cached body")

	p, err := urlprovider.New(path, ext, urlprovider.Options{})
	require.NoError(t, err)

	text, ok, err := p.LoadText(context.Background(), "https://a.example")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "cached body", text)
}
