package simulator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"time"
)

// Engine is a pure tick-driven simulator with no concurrency primitives
// of its own. All state is accessed single-threaded via Tick(); the
// caller (cmd/server, cmd/portsim) manages pacing, pause/resume and
// threading. Virtual time advances one tick interval per Tick() call,
// independent of wall-clock pacing.
//
// The entity store is the sole source of truth. Each tick runs a fixed
// step sequence; a failing step is logged, counted and retried on the
// next tick without corrupting steps already committed this tick.
type Engine struct {
	config  SimConfig
	store   EntityStore
	gen     *ArrivalGenerator
	rng     *rand.Rand
	logger  *slog.Logger
	metrics *Metrics
	now     time.Time
	tick    uint64
}

// NewEngine creates an engine over the given store. The configuration is
// validated up front; range errors are fatal here, never at runtime.
// A nil logger discards engine output.
func NewEngine(config SimConfig, store EntityStore, logger *slog.Logger) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	var rng *rand.Rand
	if config.RandomSeed == 0 {
		rng = rand.New(rand.NewSource(rand.Int63()))
	} else {
		rng = rand.New(rand.NewSource(config.RandomSeed))
	}

	return &Engine{
		config:  config,
		store:   store,
		gen:     NewArrivalGenerator(rng, config),
		rng:     rng,
		logger:  logger,
		metrics: NewMetrics(),
		now:     time.Now().Truncate(time.Second),
	}, nil
}

// SetNow overrides the engine's virtual clock. Intended for tests and
// for replaying from a persisted store; call before the first Tick.
func (e *Engine) SetNow(now time.Time) {
	e.now = now
}

// Now returns the engine's current virtual time
func (e *Engine) Now() time.Time {
	return e.now
}

// TickCount returns the number of completed ticks
func (e *Engine) TickCount() uint64 {
	return e.tick
}

// Config returns a copy of the engine configuration
func (e *Engine) Config() SimConfig {
	return e.config
}

// Metrics returns a copy of current metrics
func (e *Engine) Metrics() *Metrics {
	return e.metrics.Clone()
}

// Stats reads the aggregate port view from the store
func (e *Engine) Stats(ctx context.Context) (*PortStats, error) {
	return e.store.Stats(ctx, e.now)
}

// Bootstrap seeds the berth pool. Must run once before the first tick;
// a bootstrap failure is fatal, unlike tick-step failures.
func (e *Engine) Bootstrap(ctx context.Context) error {
	return e.store.EnsureBerths(ctx, e.config.BerthCount, e.now)
}

// tickStep names one entry in the fixed per-tick sequence
type tickStep struct {
	name string
	fn   func(context.Context) error
}

// steps returns the per-tick sequence in its fixed order. Berths are
// freed (maintenance release, operation completion) strictly before the
// allocation pass, so a berth freed this tick is reusable this tick.
func (e *Engine) steps() []tickStep {
	return []tickStep{
		{"release_maintenance", e.releaseMaintenance},
		{"finalize_operations", e.finalizeOperations},
		{"allocate", e.allocate},
		{"start_maintenance", e.maybeStartMaintenance},
		{"spawn_vessel", e.maybeSpawnVessel},
	}
}

// Tick executes one full tick: the fixed step sequence, then a
// best-effort refresh of the store aggregates, then the virtual clock
// advance. Step failures never abort the tick; each remaining step still
// runs so one flaky store call cannot stall the whole port.
func (e *Engine) Tick(ctx context.Context) {
	for _, step := range e.steps() {
		if err := step.fn(ctx); err != nil {
			e.metrics.StepFailures++
			e.logger.Error("tick step failed",
				"step", step.name,
				"tick", e.tick,
				"error", &StepError{Step: step.name, Err: err},
			)
		}
	}

	if stats, err := e.store.Stats(ctx, e.now); err != nil {
		e.logger.Debug("stats refresh failed", "tick", e.tick, "error", err)
	} else {
		e.metrics.absorbStats(stats)
	}

	e.tick++
	e.metrics.Tick = e.tick
	e.now = e.now.Add(time.Duration(e.config.TickSeconds) * time.Second)
}

// Run drives ticks at the configured wall-clock interval until the
// context is cancelled. Shutdown is graceful: the in-flight tick always
// completes before Run returns.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.Bootstrap(ctx); err != nil {
		return err
	}

	interval := time.Duration(e.config.TickSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.logger.Info("simulation started",
		"berths", e.config.BerthCount,
		"tickSeconds", e.config.TickSeconds,
		"seed", e.config.RandomSeed,
	)

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("simulation stopped", "ticks", e.tick)
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			e.Tick(ctx)
		}
	}
}

// RunTicks executes n ticks back to back with no wall-clock pacing.
// Used by the headless runner and tests.
func (e *Engine) RunTicks(ctx context.Context, n int) error {
	if err := e.Bootstrap(ctx); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		e.Tick(ctx)
	}
	return nil
}
