package index

import (
	"context"
	"time"
)

// Provider is the capability set every source family implements: file and
// url sources are polymorphic over these four operations rather than a
// class hierarchy, per the discriminated CacheRecord.SourceType.
type Provider interface {
	// SourceType identifies which records this provider owns.
	SourceType() SourceType

	// Discover enumerates the source ids this provider currently sees.
	// It must be cheap to call repeatedly and idempotent.
	Discover(ctx context.Context, now time.Time) (map[string]SourceType, error)

	// InitRecord builds the initial CacheRecord for a newly discovered
	// source id. A nil record with a nil error means "skip this cycle,
	// retry later."
	InitRecord(ctx context.Context, sourceID string, now time.Time) (*CacheRecord, error)

	// Refresh examines and mutates records it owns within cache, reporting
	// whether any record changed. Implementations that mutate cache.Sources
	// from more than one goroutine must hold cache.Lock() around each
	// mutation.
	Refresh(ctx context.Context, cache *CacheState, now time.Time) (bool, error)

	// LoadText returns the text to summarize for sourceID. ok is false
	// when there is nothing to summarize this cycle.
	LoadText(ctx context.Context, sourceID string) (text string, ok bool, err error)
}
