// Package httpsummarizer is the default Summarizer implementation: it POSTs
// the system prompt and source text as JSON to a configured HTTP endpoint
// and expects a JSON body of the form {"text": "..."} back. It exists so
// the CLI entrypoint has something to wire the Summarizer Gate to without
// this module taking a position on any particular LLM provider's API.
package httpsummarizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type request struct {
	SystemPrompt string `json:"system_prompt"`
	Text         string `json:"text"`
}

type response struct {
	Text string `json:"text"`
}

// Summarizer calls a single HTTP endpoint to turn (system_prompt, text)
// into a summary.
type Summarizer struct {
	endpoint string
	client   *http.Client
}

// New returns a Summarizer that POSTs to endpoint, bounded by timeout.
func New(endpoint string, timeout time.Duration) *Summarizer {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Summarizer{
		endpoint: endpoint,
		client:   &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport), Timeout: timeout},
	}
}

// Summarize implements summarizer.Summarizer.
func (s *Summarizer) Summarize(ctx context.Context, systemPrompt, text string) (string, error) {
	body, err := json.Marshal(request{SystemPrompt: systemPrompt, Text: text})
	if err != nil {
		return "", fmt.Errorf("encoding summarizer request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building summarizer request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling summarizer endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("summarizer endpoint returned status %d", resp.StatusCode)
	}

	var decoded response
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decoding summarizer response: %w", err)
	}

	return decoded.Text, nil
}
