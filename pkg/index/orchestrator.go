package index

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/lukewwww/community-intern/pkg/lock"
	"github.com/lukewwww/community-intern/pkg/textid"
)

// writerLockKey is the single key used to serialize RunOnce executions.
// Multi-index coordination is out of scope, so one fixed key is enough.
const writerLockKey = "index"

// Orchestrator drives one refresh cycle: load, discover, reconcile,
// refresh, persist, summarize, all under a single writer lock.
type Orchestrator struct {
	store     *Store
	writer    *Writer
	providers []Provider
	gate      *SummarizerGate
	locker    lock.Locker
}

// NewOrchestrator wires a Store, Writer, the providers in the order they
// are refreshed each cycle, and a SummarizerGate, behind the given Locker.
// Grouping in the index artifact follows the Writer's order, not this one.
func NewOrchestrator(
	store *Store,
	writer *Writer,
	providers []Provider,
	gate *SummarizerGate,
	locker lock.Locker,
) *Orchestrator {
	return &Orchestrator{
		store:     store,
		writer:    writer,
		providers: providers,
		gate:      gate,
		locker:    locker,
	}
}

// RunOnce executes a full cycle. It never returns an error for transient,
// per-record faults; only a failure to acquire the writer lock, a provider's
// Discover failure, a duplicate source id, or a failure to persist is
// surfaced to the caller.
func (o *Orchestrator) RunOnce(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "RunOnce")
	defer span.End()

	start := time.Now()

	if err := o.locker.Lock(ctx, writerLockKey); err != nil {
		return fmt.Errorf("acquiring writer lock: %w", err)
	}
	defer o.locker.Unlock(ctx, writerLockKey)

	now := time.Now().UTC()

	cache := o.loadCache(ctx)

	discovered, owners, err := o.discover(ctx, now)
	if err != nil {
		return err
	}

	changed := o.reconcile(ctx, cache, discovered, owners, now)

	if o.refreshProviders(ctx, cache, now) {
		changed = true
	}

	if changed {
		if err := o.persist(ctx, cache, now); err != nil {
			return err
		}
	}

	if err := o.summarize(ctx, cache); err != nil {
		return err
	}

	recordCycleDuration(ctx, time.Since(start))
	recordCycleChanged(ctx, changed)

	return nil
}

func (o *Orchestrator) loadCache(ctx context.Context) *CacheState {
	ctx, span := tracer.Start(ctx, "RunOnce.Load")
	defer span.End()

	return o.store.Load(ctx)
}

func (o *Orchestrator) discover(
	ctx context.Context,
	now time.Time,
) (map[string]SourceType, map[string]Provider, error) {
	ctx, span := tracer.Start(ctx, "RunOnce.Discover")
	defer span.End()

	discovered := make(map[string]SourceType)
	owners := make(map[string]Provider)

	for _, p := range o.providers {
		found, err := p.Discover(ctx, now)
		if err != nil {
			return nil, nil, fmt.Errorf("discovering sources: %w", err)
		}

		for id, st := range found {
			if _, dup := discovered[id]; dup {
				return nil, nil, fmt.Errorf("%w: %s", ErrDuplicateSourceID, id)
			}

			discovered[id] = st
			owners[id] = p
		}
	}

	span.SetAttributes(attribute.Int("discovered_count", len(discovered)))

	return discovered, owners, nil
}

func (o *Orchestrator) reconcile(
	ctx context.Context,
	cache *CacheState,
	discovered map[string]SourceType,
	owners map[string]Provider,
	now time.Time,
) bool {
	ctx, span := tracer.Start(ctx, "RunOnce.Reconcile")
	defer span.End()

	changed := false

	for id := range cache.Sources {
		if _, ok := discovered[id]; !ok {
			delete(cache.Sources, id)

			changed = true
		}
	}

	for id, st := range discovered {
		existing, ok := cache.Sources[id]
		if ok && existing.SourceType == st {
			continue
		}

		rec, err := owners[id].InitRecord(ctx, id, now)
		if err != nil {
			zerolog.Ctx(ctx).Warn().
				Err(err).
				Str("source_id", id).
				Msg("failed to initialize record, will retry next cycle")

			continue
		}

		if rec == nil {
			continue
		}

		cache.Sources[id] = rec
		changed = true
	}

	return changed
}

func (o *Orchestrator) refreshProviders(ctx context.Context, cache *CacheState, now time.Time) bool {
	ctx, span := tracer.Start(ctx, "RunOnce.Refresh")
	defer span.End()

	changed := false

	for _, p := range o.providers {
		refreshed, err := p.Refresh(ctx, cache, now)
		if err != nil {
			zerolog.Ctx(ctx).Warn().
				Err(err).
				Str("source_type", string(p.SourceType())).
				Msg("provider refresh failed, will retry next cycle")

			continue
		}

		changed = changed || refreshed
	}

	return changed
}

func (o *Orchestrator) persist(ctx context.Context, cache *CacheState, now time.Time) error {
	_, span := tracer.Start(ctx, "RunOnce.Persist", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	cache.Lock()
	cache.GeneratedAt = textid.FormatTime(now)
	err := o.store.Save(cache)
	cache.Unlock()

	if err != nil {
		return fmt.Errorf("persisting cache: %w", err)
	}

	cache.Lock()
	err = o.writer.Write(cache)
	cache.Unlock()

	if err != nil {
		return fmt.Errorf("persisting index: %w", err)
	}

	return nil
}

func (o *Orchestrator) summarize(ctx context.Context, cache *CacheState) error {
	ctx, span := tracer.Start(ctx, "RunOnce.Summarize")
	defer span.End()

	providerByType := make(map[SourceType]Provider, len(o.providers))
	for _, p := range o.providers {
		providerByType[p.SourceType()] = p
	}

	if err := o.gate.Run(ctx, cache, providerByType); err != nil {
		return fmt.Errorf("summarizing pending records: %w", err)
	}

	return nil
}
