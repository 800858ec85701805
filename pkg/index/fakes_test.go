package index_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/lukewwww/community-intern/pkg/index"
	"github.com/lukewwww/community-intern/pkg/textid"
)

// fakeProvider is a minimal in-memory Provider used to exercise the
// orchestrator's discover/reconcile/refresh/summarize wiring without a
// real filesystem or network dependency.
type fakeProvider struct {
	st   index.SourceType
	text map[string]string // source_id -> text, also defines what's discovered

	mu           sync.Mutex
	refreshN     int
	refreshFails bool
}

func newFakeProvider(st index.SourceType, text map[string]string) *fakeProvider {
	return &fakeProvider{st: st, text: text}
}

func (p *fakeProvider) SourceType() index.SourceType { return p.st }

func (p *fakeProvider) Discover(context.Context, time.Time) (map[string]index.SourceType, error) {
	out := make(map[string]index.SourceType, len(p.text))
	for id := range p.text {
		out[id] = p.st
	}

	return out, nil
}

func (p *fakeProvider) InitRecord(_ context.Context, sourceID string, now time.Time) (*index.CacheRecord, error) {
	text, ok := p.text[sourceID]
	if !ok {
		return nil, nil
	}

	normalized := textid.Normalize(text)

	return &index.CacheRecord{
		SourceType:     p.st,
		ContentHash:    textid.ContentHash(normalized),
		SummaryPending: true,
		LastIndexedAt:  textid.FormatTime(now),
	}, nil
}

func (p *fakeProvider) Refresh(_ context.Context, cache *index.CacheState, now time.Time) (bool, error) {
	p.mu.Lock()
	p.refreshN++
	fails := p.refreshFails
	p.mu.Unlock()

	if fails {
		return false, errors.New("provider refresh unavailable")
	}

	changed := false

	cache.Lock()
	defer cache.Unlock()

	for id, rec := range cache.Sources {
		if rec.SourceType != p.st {
			continue
		}

		text, ok := p.text[id]
		if !ok {
			continue
		}

		hash := textid.ContentHash(textid.Normalize(text))
		if hash != rec.ContentHash {
			rec.ContentHash = hash
			rec.SummaryPending = true
			rec.LastIndexedAt = textid.FormatTime(now)

			changed = true
		}
	}

	return changed, nil
}

func (p *fakeProvider) LoadText(_ context.Context, sourceID string) (string, bool, error) {
	text, ok := p.text[sourceID]

	return text, ok, nil
}

// fakeSummarizer returns a canned summary (or an error when failing is
// set), counting calls.
type fakeSummarizer struct {
	mu      sync.Mutex
	reply   string
	calls   int
	failing bool
}

func (s *fakeSummarizer) Summarize(context.Context, string, string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++

	if s.failing {
		return "", errors.New("summarizer unavailable")
	}

	return s.reply, nil
}

func (s *fakeSummarizer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.calls
}
