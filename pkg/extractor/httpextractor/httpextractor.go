// Package httpextractor is the default, minimal Extractor implementation:
// it GETs a URL with an OTel-instrumented HTTP client, strips HTML tags
// with a naive pass when the response looks like HTML, and keeps the last
// extracted body per URL in memory. It exists so the module can run
// end-to-end without wiring an external content-extraction service; it is
// not a production-grade readability pipeline.
package httpextractor

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var htmlTagPattern = regexp.MustCompile(`(?is)<script.*?</script>|<style.*?</style>|<[^>]+>`)

// Extractor fetches URLs over HTTP and caches the last extracted body.
type Extractor struct {
	client *http.Client

	mu    sync.Mutex
	cache map[string]string
}

// New returns an Extractor whose requests time out after timeout.
func New(timeout time.Duration) *Extractor {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	dt, ok := http.DefaultTransport.(*http.Transport)
	transport := http.RoundTripper(http.DefaultTransport)

	if ok {
		clone := dt.Clone()
		clone.DialContext = (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext
		clone.ResponseHeaderTimeout = timeout
		transport = clone
	}

	return &Extractor{
		client: &http.Client{Transport: otelhttp.NewTransport(transport)},
		cache:  make(map[string]string),
	}
}

// Fetch retrieves url and extracts its text body. force is accepted for
// interface compatibility; this implementation always performs a live
// fetch, since it has no freshness signal of its own beyond the caller's
// decision to call it.
func (e *Extractor) Fetch(ctx context.Context, url string, _ bool) (string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", false, err
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return "", false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", false, fmt.Errorf("httpextractor: unexpected status %d for %q", resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", false, err
	}

	text := string(body)
	if isHTML(resp.Header.Get("Content-Type"), text) {
		text = stripHTML(text)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", false, nil
	}

	e.mu.Lock()
	e.cache[url] = text
	e.mu.Unlock()

	return text, true, nil
}

// Cached returns the last text Fetch extracted for url, if any.
func (e *Extractor) Cached(_ context.Context, url string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	text, ok := e.cache[url]

	return text, ok
}

func isHTML(contentType, body string) bool {
	if strings.Contains(strings.ToLower(contentType), "html") {
		return true
	}

	return strings.Contains(strings.ToLower(body[:min(len(body), 512)]), "<html")
}

func stripHTML(body string) string {
	stripped := htmlTagPattern.ReplaceAllString(body, " ")

	return strings.Join(strings.Fields(stripped), " ")
}
