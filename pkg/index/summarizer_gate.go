package index

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/lukewwww/community-intern/pkg/summarizer"
	"github.com/lukewwww/community-intern/pkg/textid"
)

// SummarizerGate drives bounded-concurrency summarization of every record
// left summary_pending after discovery and provider refresh.
type SummarizerGate struct {
	summarizer   summarizer.Summarizer
	store        *Store
	writer       *Writer
	concurrency  int
	basePrompt   string
	projectIntro string
}

// NewSummarizerGate returns a gate bounded to concurrency concurrent
// summarizer calls (minimum 1).
func NewSummarizerGate(
	s summarizer.Summarizer,
	store *Store,
	writer *Writer,
	concurrency int,
	basePrompt, projectIntro string,
) *SummarizerGate {
	if concurrency < 1 {
		concurrency = 1
	}

	return &SummarizerGate{
		summarizer:   s,
		store:        store,
		writer:       writer,
		concurrency:  concurrency,
		basePrompt:   basePrompt,
		projectIntro: projectIntro,
	}
}

// Run summarizes every summary_pending record in cache, up to
// g.concurrency at a time. Providers is keyed by SourceType so each
// record's text can be loaded from its owning provider. A per-record
// failure is logged and leaves that record pending for the next cycle; it
// never fails the whole run.
func (g *SummarizerGate) Run(ctx context.Context, cache *CacheState, providers map[SourceType]Provider) error {
	cache.Lock()

	pending := make([]string, 0, len(cache.Sources))

	for id, rec := range cache.Sources {
		if rec.SummaryPending {
			pending = append(pending, id)
		}
	}

	cache.Unlock()

	if len(pending) == 0 {
		return nil
	}

	systemPrompt := buildSystemPrompt(g.basePrompt, g.projectIntro)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.concurrency)

	for _, id := range pending {
		eg.Go(func() error {
			g.summarizeOne(egCtx, cache, providers, id, systemPrompt)

			return nil
		})
	}

	return eg.Wait()
}

func (g *SummarizerGate) summarizeOne(
	ctx context.Context,
	cache *CacheState,
	providers map[SourceType]Provider,
	sourceID, systemPrompt string,
) {
	cache.Lock()
	rec, ok := cache.Sources[sourceID]

	var st SourceType
	if ok {
		st = rec.SourceType
	}

	cache.Unlock()

	if !ok {
		return
	}

	provider, ok := providers[st]
	if !ok {
		return
	}

	text, ok, err := provider.LoadText(ctx, sourceID)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("source_id", sourceID).Msg("failed to load text for summarization")

		return
	}

	if !ok || strings.TrimSpace(text) == "" {
		return
	}

	summary, err := g.summarizer.Summarize(ctx, systemPrompt, text)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("source_id", sourceID).Msg("summarizer call failed")

		return
	}

	if err := g.commit(ctx, cache, sourceID, summary); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("source_id", sourceID).Msg("failed to commit summary")
	}
}

// commit re-reads the record and only writes if it still exists and is
// still summary_pending, then persists cache and index while still holding
// the lock so no two commits interleave their disk writes.
func (g *SummarizerGate) commit(ctx context.Context, cache *CacheState, sourceID, summary string) error {
	cache.Lock()
	defer cache.Unlock()

	rec, ok := cache.Sources[sourceID]
	if !ok || !rec.SummaryPending {
		return nil
	}

	now := time.Now().UTC()

	rec.SummaryText = strings.TrimSpace(summary)
	rec.LastIndexedAt = textid.FormatTime(now)
	rec.SummaryPending = false
	cache.GeneratedAt = textid.FormatTime(now)

	if err := g.store.Save(cache); err != nil {
		return fmt.Errorf("persisting cache: %w", err)
	}

	if err := g.writer.Write(cache); err != nil {
		return fmt.Errorf("persisting index: %w", err)
	}

	recordSummarization(ctx, rec.SourceType)

	return nil
}

// buildSystemPrompt composes the summarizer system prompt from the two
// optional configured parts, skipping whichever is empty.
func buildSystemPrompt(basePrompt, projectIntro string) string {
	base := strings.TrimSpace(basePrompt)
	intro := strings.TrimSpace(projectIntro)

	switch {
	case base == "" && intro == "":
		return ""
	case base == "":
		return "Project introduction:\n" + intro
	case intro == "":
		return base
	default:
		return base + "\n\n" + "Project introduction:\n" + intro
	}
}
