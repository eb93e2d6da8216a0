package simulator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// End-to-end: one berth, empty queue. A vessel spawns and is allocated;
// once virtual time passes start+duration the operation completes, the
// berth frees and the queue entry closes out.
func TestEngine_EndToEndSingleBerth(t *testing.T) {
	config := quietConfig()
	config.BerthCount = 1
	config.TickSeconds = 5
	eng, store := newTestEngine(t, config)

	vesselID := seedWaiting(t, store, "MV Atlantic 1", 2, 10*time.Second, testEpoch)

	// Tick 1: allocation happens in the same tick the entry is visible.
	eng.Tick(context.Background())
	require.Equal(t, QueueInService, findEntry(t, store, vesselID).State)
	stats, err := store.Stats(context.Background(), eng.Now())
	require.NoError(t, err)
	require.Equal(t, 1, stats.BerthsOccupied)

	// Two more ticks put now at start+10s; the finalize step closes the
	// operation before the allocator runs.
	eng.Tick(context.Background())
	eng.Tick(context.Background())

	entry := findEntry(t, store, vesselID)
	require.Equal(t, QueueCompleted, entry.State)
	stats, err = store.Stats(context.Background(), eng.Now())
	require.NoError(t, err)
	require.Equal(t, 1, stats.BerthsAvailable)
	require.Equal(t, 1, stats.CompletedOperations)

	metrics := eng.Metrics()
	require.Equal(t, 1, metrics.OperationsCompleted)
	require.Equal(t, uint64(3), metrics.Tick)
}

// A berth freed by completion this tick is rebound to the next waiting
// vessel in the same tick: completion runs strictly before allocation.
func TestEngine_FreedBerthReusedSameTick(t *testing.T) {
	config := quietConfig()
	config.BerthCount = 1
	config.TickSeconds = 30
	eng, store := newTestEngine(t, config)

	first := seedWaiting(t, store, "MV Baltic 1", 2, 20*time.Second, testEpoch)
	second := seedWaiting(t, store, "MV Nordic 2", 1, 20*time.Second, testEpoch)

	eng.Tick(context.Background())
	require.Equal(t, QueueInService, findEntry(t, store, first).State)
	require.Equal(t, QueueWaiting, findEntry(t, store, second).State)

	// Next tick: now = +30s, past the first operation's end. The berth
	// frees and the second vessel starts service in one tick.
	eng.Tick(context.Background())
	require.Equal(t, QueueCompleted, findEntry(t, store, first).State)
	require.Equal(t, QueueInService, findEntry(t, store, second).State)
}

// A failing step is logged and counted, later steps in the same tick
// still run, and the step succeeds once the store recovers.
func TestEngine_StepFailureDoesNotStallTick(t *testing.T) {
	config := quietConfig()
	config.SpawnProbability = 1.0
	mem := NewMemStore()
	flaky := &failingStore{EntityStore: mem, failWaiting: true}
	eng, err := NewEngine(config, flaky, nil)
	require.NoError(t, err)
	eng.SetNow(testEpoch)
	require.NoError(t, eng.Bootstrap(context.Background()))

	eng.Tick(context.Background())

	metrics := eng.Metrics()
	require.Equal(t, 1, metrics.StepFailures, "allocate step fails while listing the queue")
	require.Equal(t, 1, metrics.VesselsSpawned, "spawn step still ran after the failure")

	flaky.failWaiting = false
	eng.Tick(context.Background())
	require.Equal(t, 1, eng.Metrics().StepFailures, "recovered store clears the failure")
}

// Invariants from the data model, checked after a long randomized run:
// no berth occupied+maintenance at once, occupied berths own exactly one
// in-progress operation, and an entry is in service iff such an
// operation exists for its vessel.
func TestEngine_InvariantsHoldUnderChurn(t *testing.T) {
	config := DefaultConfig()
	config.RandomSeed = 99
	config.ArrivalBackdateMinutes = [2]int{0, 2}
	store := NewMemStore()
	eng, err := NewEngine(config, store, nil)
	require.NoError(t, err)
	eng.SetNow(testEpoch)
	require.NoError(t, eng.RunTicks(context.Background(), 500))

	store.mu.Lock()
	defer store.mu.Unlock()

	opsByBerth := make(map[int64]int)
	opsByVessel := make(map[int64]int)
	for _, op := range store.operations {
		if op.State == OperationInProgress {
			opsByBerth[op.BerthID]++
			opsByVessel[op.VesselID]++
		}
	}

	for _, b := range store.berths {
		switch b.State {
		case BerthOccupied:
			require.Equal(t, 1, opsByBerth[b.ID], "occupied berth %d must own exactly one in-progress operation", b.Number)
			require.Nil(t, b.Maintenance)
		case BerthMaintenance:
			require.Zero(t, opsByBerth[b.ID])
			require.NotNil(t, b.Maintenance)
		case BerthAvailable:
			require.Zero(t, opsByBerth[b.ID])
		}
		require.LessOrEqual(t, opsByBerth[b.ID], 1)
	}

	for _, e := range store.entries {
		if e.State == QueueInService {
			require.Equal(t, 1, opsByVessel[e.VesselID],
				"in-service entry %d needs exactly one in-progress operation", e.ID)
		} else {
			require.Zero(t, opsByVessel[e.VesselID])
		}
	}
}

// The same seed produces the same simulation.
func TestEngine_SeedReproducibility(t *testing.T) {
	run := func() *Metrics {
		config := DefaultConfig()
		config.RandomSeed = 321
		store := NewMemStore()
		eng, err := NewEngine(config, store, nil)
		require.NoError(t, err)
		eng.SetNow(testEpoch)
		require.NoError(t, eng.RunTicks(context.Background(), 200))
		return eng.Metrics()
	}

	first := run()
	second := run()
	require.Equal(t, first, second)
}

// Run honors cancellation: the loop exits cleanly and the in-flight
// tick is never cut short.
func TestEngine_RunGracefulShutdown(t *testing.T) {
	config := quietConfig()
	config.TickSeconds = 1
	store := NewMemStore()
	eng, err := NewEngine(config, store, nil)
	require.NoError(t, err)
	eng.SetNow(testEpoch)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- eng.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err, "cancellation is a clean shutdown, not an error")
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
}

// Invalid configuration is rejected at construction, before any store
// traffic.
func TestEngine_InvalidConfigFatal(t *testing.T) {
	config := DefaultConfig()
	config.MaintenanceMinutes = [2]int{10, 5}

	_, err := NewEngine(config, NewMemStore(), nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "maintenanceMinutes")
}
