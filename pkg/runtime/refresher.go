// Package runtime drives the background refresh loop: a single task that
// calls the orchestrator's RunOnce on a cadence, either a fixed tick or an
// optional cron schedule, and never lets one failed cycle kill the loop.
package runtime

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Orchestrator is the single method the refresher needs from
// index.Orchestrator; declared locally to keep this package free of a
// direct dependency on pkg/index.
type Orchestrator interface {
	RunOnce(ctx context.Context) error
}

// Refresher runs Orchestrator.RunOnce on a cadence until stopped.
type Refresher struct {
	orch     Orchestrator
	tick     time.Duration
	schedule cron.Schedule

	onCycle func()

	mu      sync.Mutex
	started bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New returns a Refresher that runs orch.RunOnce every tick. If schedule is
// non-nil, it governs the cadence instead of tick (D3: optional cron
// override). onCycle, if non-nil, is called after every completed cycle
// regardless of outcome; the ops server uses it to flip readiness.
func New(orch Orchestrator, tick time.Duration, schedule cron.Schedule, onCycle func()) *Refresher {
	return &Refresher{
		orch:     orch,
		tick:     tick,
		schedule: schedule,
		onCycle:  onCycle,
	}
}

// Start launches the background loop. Calling Start on an already-started
// Refresher is a no-op.
func (r *Refresher) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return
	}

	r.started = true
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})

	go r.loop(ctx)
}

// Stop signals the loop to exit and waits for the in-flight cycle, if any,
// to finish and persist before returning.
func (r *Refresher) Stop() {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()

		return
	}

	stopCh, doneCh := r.stopCh, r.doneCh
	r.started = false
	r.mu.Unlock()

	close(stopCh)
	<-doneCh
}

func (r *Refresher) loop(ctx context.Context) {
	defer close(r.doneCh)

	log := zerolog.Ctx(ctx)

	for {
		start := time.Now()

		if err := r.orch.RunOnce(ctx); err != nil {
			log.Error().Err(err).Msg("refresh cycle failed, will retry next tick")
		}

		if r.onCycle != nil {
			r.onCycle()
		}

		sleep := r.nextSleep(start)

		select {
		case <-r.stopCh:
			return
		case <-ctx.Done():
			return
		case <-time.After(sleep):
		}
	}
}

func (r *Refresher) nextSleep(cycleStart time.Time) time.Duration {
	if r.schedule != nil {
		return max(0, time.Until(r.schedule.Next(time.Now())))
	}

	elapsed := time.Since(cycleStart)

	return max(0, r.tick-elapsed)
}
