// Package urlprovider implements index.Provider over a flat list of URLs
// read from a links file, change-detected via conditional HTTP GET
// (If-None-Match / If-Modified-Since) and a per-host circuit breaker.
package urlprovider

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/semaphore"

	"github.com/lukewwww/community-intern/pkg/circuitbreaker"
	"github.com/lukewwww/community-intern/pkg/extractor"
	"github.com/lukewwww/community-intern/pkg/index"
	"github.com/lukewwww/community-intern/pkg/textid"
)

// ErrTransportCastError is returned if the process default transport is not
// an *http.Transport, which would make it impossible to clone and tighten.
var ErrTransportCastError = errors.New("urlprovider: http.DefaultTransport is not *http.Transport")

const (
	defaultBreakerThreshold = circuitbreaker.DefaultThreshold
	defaultBreakerTimeout   = circuitbreaker.DefaultTimeout
)

// Provider discovers URLs listed one-per-line in a links file and refreshes
// them with conditional GETs, bounded by a shared download semaphore and a
// per-host circuit breaker.
type Provider struct {
	linksFilePath      string
	extractor          extractor.Extractor
	httpClient         *http.Client
	downloadSem        *semaphore.Weighted
	refreshMinInterval time.Duration
	retryBackoff       time.Duration
	fetchTimeout       time.Duration

	parseMu       sync.Mutex
	lastLinksSize int64
	lastLinksMtNs int64
	lastLinks     map[string]struct{}

	breakersMu sync.Mutex
	breakers   map[string]*circuitbreaker.CircuitBreaker
}

// Options configures a Provider beyond its required collaborators.
type Options struct {
	// DownloadConcurrency bounds HTTP operations across this provider.
	// Defaults to 1.
	DownloadConcurrency int
	// RefreshMinInterval is the minimum gap between successful checks of
	// the same URL (spec's url_refresh_min_interval).
	RefreshMinInterval time.Duration
	// RetryBackoff is the short backoff applied on fetch failure
	// (spec's runtime_refresh_tick).
	RetryBackoff time.Duration
	// FetchTimeout bounds a single conditional GET (web_fetch_timeout).
	FetchTimeout time.Duration
}

// New returns a Provider reading urls from linksFilePath, fetching bodies
// through ext, and rate-limiting network I/O per opts.
func New(linksFilePath string, ext extractor.Extractor, opts Options) (*Provider, error) {
	if opts.DownloadConcurrency <= 0 {
		opts.DownloadConcurrency = 1
	}

	if opts.RefreshMinInterval <= 0 {
		opts.RefreshMinInterval = time.Hour
	}

	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = time.Minute
	}

	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 30 * time.Second
	}

	client, err := newHTTPClient(opts.FetchTimeout)
	if err != nil {
		return nil, err
	}

	return &Provider{
		linksFilePath:      linksFilePath,
		extractor:          ext,
		httpClient:         client,
		downloadSem:        semaphore.NewWeighted(int64(opts.DownloadConcurrency)),
		refreshMinInterval: opts.RefreshMinInterval,
		retryBackoff:       opts.RetryBackoff,
		fetchTimeout:       opts.FetchTimeout,
		breakers:           make(map[string]*circuitbreaker.CircuitBreaker),
	}, nil
}

// newHTTPClient mirrors the upstream cache's client: a cloned default
// transport with a tighter dialer timeout and a response-header timeout,
// wrapped in an OTel-instrumented transport, so conditional GETs show up as
// spans without us writing span plumbing by hand.
func newHTTPClient(responseHeaderTimeout time.Duration) (*http.Client, error) {
	dtP, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		return nil, ErrTransportCastError
	}

	dt := dtP.Clone()

	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	dt.DialContext = dialer.DialContext
	dt.ResponseHeaderTimeout = responseHeaderTimeout

	return &http.Client{
		Transport: otelhttp.NewTransport(dt),
	}, nil
}

// SourceType implements index.Provider.
func (p *Provider) SourceType() index.SourceType { return index.SourceTypeURL }

// Discover re-parses the links file only when its (size, mtime) changed
// since the last call.
func (p *Provider) Discover(ctx context.Context, _ time.Time) (map[string]index.SourceType, error) {
	p.parseMu.Lock()
	defer p.parseMu.Unlock()

	info, err := os.Stat(p.linksFilePath)
	if err != nil {
		if os.IsNotExist(err) {
			p.lastLinks = nil
			p.lastLinksSize, p.lastLinksMtNs = 0, 0

			return map[string]index.SourceType{}, nil
		}

		return nil, err
	}

	size, mtNs := info.Size(), info.ModTime().UnixNano()

	if p.lastLinks != nil && size == p.lastLinksSize && mtNs == p.lastLinksMtNs {
		return p.toSourceMap(p.lastLinks), nil
	}

	links, err := parseLinksFile(p.linksFilePath)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("path", p.linksFilePath).Msg("failed to parse links file")

		return p.toSourceMap(p.lastLinks), nil
	}

	p.lastLinks = links
	p.lastLinksSize = size
	p.lastLinksMtNs = mtNs

	return p.toSourceMap(links), nil
}

func (p *Provider) toSourceMap(links map[string]struct{}) map[string]index.SourceType {
	out := make(map[string]index.SourceType, len(links))
	for u := range links {
		out[u] = index.SourceTypeURL
	}

	return out
}

// parseLinksFile reads one URL per line, skipping blank lines and
// '#'-prefixed comments, deduplicating while preserving first occurrence.
func parseLinksFile(path string) (map[string]struct{}, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	links := make(map[string]struct{})

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		links[line] = struct{}{}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning links file %q: %w", path, err)
	}

	return links, nil
}

// InitRecord performs an unconditional fetch via the extractor; an empty
// result means "skip, retry next cycle".
func (p *Provider) InitRecord(ctx context.Context, sourceID string, now time.Time) (*index.CacheRecord, error) {
	if err := p.downloadSem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer p.downloadSem.Release(1)

	text, ok, err := p.extractor.Fetch(ctx, sourceID, true)
	if err != nil || !ok || text == "" {
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("url", sourceID).Msg("initial fetch failed, skipping")
		}

		return nil, nil //nolint:nilnil
	}

	hash := textid.ContentHash(textid.Normalize(text))

	return &index.CacheRecord{
		SourceType:     index.SourceTypeURL,
		ContentHash:    hash,
		SummaryPending: true,
		LastIndexedAt:  textid.FormatTime(now),
		URL: &index.URLMetadata{
			URL:           sourceID,
			LastFetchedAt: textid.FormatTime(now),
			FetchStatus:   index.FetchStatusSuccess,
			NextCheckAt:   textid.FormatTime(now.Add(p.refreshMinInterval)),
		},
	}, nil
}

// Refresh conditionally re-checks every eligible URL record concurrently,
// bounded by the shared download semaphore.
func (p *Provider) Refresh(ctx context.Context, cache *index.CacheState, now time.Time) (bool, error) {
	cache.Lock()
	var eligible []string

	for id, rec := range cache.Sources {
		if rec.SourceType != index.SourceTypeURL {
			continue
		}

		if p.isEligible(rec, now) {
			eligible = append(eligible, id)
		}
	}

	cache.Unlock()

	var (
		mu      sync.Mutex
		changed bool
		wg      sync.WaitGroup
	)

	for _, id := range eligible {
		id := id

		wg.Add(1)

		go func() {
			defer wg.Done()

			if p.refreshOne(ctx, cache, id, now) {
				mu.Lock()
				changed = true
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	return changed, nil
}

func (p *Provider) isEligible(rec *index.CacheRecord, now time.Time) bool {
	if rec.URL == nil {
		return true
	}

	next, err := textid.ParseTime(rec.URL.NextCheckAt)
	if err != nil {
		return true
	}

	return !next.After(now)
}

func (p *Provider) refreshOne(ctx context.Context, cache *index.CacheState, sourceID string, now time.Time) bool {
	if err := p.downloadSem.Acquire(ctx, 1); err != nil {
		return false
	}
	defer p.downloadSem.Release(1)

	breaker := p.breakerFor(sourceID)
	if breaker != nil && !breaker.AllowRequest() {
		return p.markFailure(cache, sourceID, index.FetchStatusError, now)
	}

	cache.Lock()
	rec, ok := cache.Sources[sourceID]
	var etag, lastModified *string
	if ok && rec.URL != nil {
		etag = rec.URL.ETag
		lastModified = rec.URL.LastModified
	}
	cache.Unlock()

	if !ok {
		return false
	}

	fetchCtx, cancel := context.WithTimeout(ctx, p.fetchTimeout)
	defer cancel()

	status, newETag, newLastModified, err := p.conditionalGet(fetchCtx, sourceID, etag, lastModified)
	if err != nil {
		if breaker != nil {
			breaker.RecordFailure()
		}

		fs := index.FetchStatusError
		if errors.Is(err, context.DeadlineExceeded) {
			fs = index.FetchStatusTimeout
		}

		return p.markFailure(cache, sourceID, fs, now)
	}

	if breaker != nil {
		breaker.RecordSuccess()
	}

	switch status {
	case http.StatusNotModified:
		return p.markNotModified(cache, sourceID, now)
	case http.StatusOK:
		return p.commitFetched(ctx, cache, sourceID, newETag, newLastModified, now)
	default:
		return p.markFailure(cache, sourceID, index.FetchStatusError, now)
	}
}

// conditionalGet issues the validating GET used only to learn whether the
// resource changed and to capture fresh validators; the actual body used
// for hashing and summarization always comes from the extractor.
func (p *Provider) conditionalGet(
	ctx context.Context, rawURL string, etag, lastModified *string,
) (status int, newETag, newLastModified *string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, nil, nil, err
	}

	if etag != nil {
		req.Header.Set("If-None-Match", *etag)
	}

	if lastModified != nil {
		req.Header.Set("If-Modified-Since", *lastModified)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return 0, nil, nil, err
	}
	defer resp.Body.Close()

	if v := resp.Header.Get("ETag"); v != "" {
		newETag = &v
	}

	if v := resp.Header.Get("Last-Modified"); v != "" {
		newLastModified = &v
	}

	return resp.StatusCode, newETag, newLastModified, nil
}

func (p *Provider) markNotModified(cache *index.CacheState, sourceID string, now time.Time) bool {
	cache.Lock()
	defer cache.Unlock()

	rec, ok := cache.Sources[sourceID]
	if !ok || rec.SourceType != index.SourceTypeURL {
		return false
	}

	var etag, lastModified *string
	if rec.URL != nil {
		etag, lastModified = rec.URL.ETag, rec.URL.LastModified
	}

	rec.URL = &index.URLMetadata{
		URL:           sourceID,
		LastFetchedAt: textid.FormatTime(now),
		ETag:          etag,
		LastModified:  lastModified,
		FetchStatus:   index.FetchStatusNotModified,
		NextCheckAt:   textid.FormatTime(now.Add(p.refreshMinInterval)),
	}

	return true
}

func (p *Provider) markFailure(cache *index.CacheState, sourceID string, status index.FetchStatus, now time.Time) bool {
	cache.Lock()
	defer cache.Unlock()

	rec, ok := cache.Sources[sourceID]
	if !ok || rec.SourceType != index.SourceTypeURL {
		return false
	}

	if rec.URL == nil {
		rec.URL = &index.URLMetadata{URL: sourceID}
	}

	rec.URL.FetchStatus = status
	rec.URL.NextCheckAt = textid.FormatTime(now.Add(p.retryBackoff))

	return true
}

func (p *Provider) commitFetched(
	ctx context.Context, cache *index.CacheState, sourceID string, etag, lastModified *string, now time.Time,
) bool {
	text, ok, err := p.extractor.Fetch(ctx, sourceID, true)
	if err != nil || !ok {
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("url", sourceID).Msg("extractor fetch failed after 200 OK")
		}

		return p.markFailure(cache, sourceID, index.FetchStatusError, now)
	}

	hash := textid.ContentHash(textid.Normalize(text))

	cache.Lock()
	defer cache.Unlock()

	rec, ok := cache.Sources[sourceID]
	if !ok || rec.SourceType != index.SourceTypeURL {
		return false
	}

	if hash != rec.ContentHash || rec.SummaryPending || rec.SummaryText == "" {
		rec.SummaryPending = true
	}

	rec.ContentHash = hash
	rec.URL = &index.URLMetadata{
		URL:           sourceID,
		LastFetchedAt: textid.FormatTime(now),
		ETag:          etag,
		LastModified:  lastModified,
		FetchStatus:   index.FetchStatusSuccess,
		NextCheckAt:   textid.FormatTime(now.Add(p.refreshMinInterval)),
	}
	rec.LastIndexedAt = textid.FormatTime(now)

	return true
}

// breakerFor returns the per-host circuit breaker for rawURL, creating one
// on first use. A malformed URL yields no breaker; the caller then allows
// every request (failures still surface via markFailure).
func (p *Provider) breakerFor(rawURL string) *circuitbreaker.CircuitBreaker {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil
	}

	p.breakersMu.Lock()
	defer p.breakersMu.Unlock()

	cb, ok := p.breakers[u.Host]
	if !ok {
		cb = circuitbreaker.New(defaultBreakerThreshold, defaultBreakerTimeout)
		p.breakers[u.Host] = cb
	}

	return cb
}

// LoadText asks the extractor for its cached body without fetching.
func (p *Provider) LoadText(ctx context.Context, sourceID string) (string, bool, error) {
	text, ok := p.extractor.Cached(ctx, sourceID)

	return text, ok, nil
}
