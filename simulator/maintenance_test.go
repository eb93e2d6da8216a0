package simulator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// An occupied berth is never selected for maintenance regardless of the
// random draw: run many trials against a port where the only berth is
// occupied and assert zero violations.
func TestMaintenance_NeverInterruptsOccupiedBerth(t *testing.T) {
	config := quietConfig()
	config.BerthCount = 1
	config.MaintenanceProbability = 1.0 // Force the draw every trial
	eng, store := newTestEngine(t, config)

	allocateOne(t, eng, store, time.Hour)

	for trial := 0; trial < 500; trial++ {
		require.NoError(t, eng.maybeStartMaintenance(context.Background()))
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	for _, b := range store.berths {
		require.Equal(t, BerthOccupied, b.State, "berth %d left occupied state during maintenance trials", b.Number)
		require.Nil(t, b.Maintenance)
	}
}

// A forced maintenance draw withdraws exactly one available berth with a
// window inside the configured bounds.
func TestMaintenance_WindowWithinBounds(t *testing.T) {
	config := quietConfig()
	config.BerthCount = 2
	config.MaintenanceProbability = 1.0
	config.MaintenanceMinutes = [2]int{5, 10}
	eng, store := newTestEngine(t, config)

	require.NoError(t, eng.maybeStartMaintenance(context.Background()))

	store.mu.Lock()
	defer store.mu.Unlock()
	withdrawn := 0
	for _, b := range store.berths {
		if b.State != BerthMaintenance {
			continue
		}
		withdrawn++
		require.NotNil(t, b.Maintenance)
		require.Equal(t, testEpoch, b.Maintenance.Start)
		window := b.Maintenance.End.Sub(b.Maintenance.Start)
		require.GreaterOrEqual(t, window, 5*time.Minute)
		require.LessOrEqual(t, window, 10*time.Minute)
	}
	require.Equal(t, 1, withdrawn)
}

// Release restores a berth once its window elapses and clears the
// window fields; an unexpired window stays untouched.
func TestMaintenance_ReleaseAfterWindow(t *testing.T) {
	config := quietConfig()
	config.BerthCount = 1
	eng, store := newTestEngine(t, config)

	berths, err := store.ListAvailableBerths(context.Background())
	require.NoError(t, err)
	window := &MaintenanceWindow{Start: testEpoch, End: testEpoch.Add(5 * time.Minute)}
	require.NoError(t, store.UpdateBerth(context.Background(), berths[0].ID, BerthMaintenance, window, testEpoch))

	// Window not yet elapsed: nothing released.
	eng.SetNow(testEpoch.Add(4 * time.Minute))
	require.NoError(t, eng.releaseMaintenance(context.Background()))
	available, err := store.ListAvailableBerths(context.Background())
	require.NoError(t, err)
	require.Empty(t, available)

	eng.SetNow(testEpoch.Add(5 * time.Minute))
	require.NoError(t, eng.releaseMaintenance(context.Background()))
	available, err = store.ListAvailableBerths(context.Background())
	require.NoError(t, err)
	require.Len(t, available, 1)
	require.Nil(t, available[0].Maintenance, "release must clear the window fields")
}

// Maintenance on one berth has no effect on queue ordering or on the
// other berths' allocability.
func TestMaintenance_DoesNotTouchQueue(t *testing.T) {
	config := quietConfig()
	config.BerthCount = 2
	config.MaintenanceProbability = 1.0
	eng, store := newTestEngine(t, config)

	vesselID := seedWaiting(t, store, "MV Navigator 1", 3, 40*time.Second, testEpoch.Add(-time.Minute))

	require.NoError(t, eng.maybeStartMaintenance(context.Background()))
	require.NoError(t, eng.allocate(context.Background()))

	require.Equal(t, QueueInService, findEntry(t, store, vesselID).State,
		"the remaining available berth still serves the queue")
}
