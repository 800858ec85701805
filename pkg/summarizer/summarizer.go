// Package summarizer defines the external collaborator contract for
// turning source text into a short summary. The only implementation in
// this module is httpsummarizer, which POSTs to a configured endpoint.
package summarizer

import "context"

// Summarizer maps a system prompt and source text to a summary.
//
// Any error is treated as transient: the caller leaves the owning record
// pending and retries on the next cycle.
type Summarizer interface {
	Summarize(ctx context.Context, systemPrompt, text string) (string, error)
}
