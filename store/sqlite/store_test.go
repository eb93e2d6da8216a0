package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gsimoes/portsim/simulator"
)

var testEpoch = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db)
}

func seedVessel(t *testing.T, store *Store, name string, priority int, duration time.Duration, arrival time.Time) (vesselID, entryID int64) {
	t.Helper()
	ctx := context.Background()
	vesselID, err := store.CreateVessel(ctx, &simulator.Vessel{
		Name:              name,
		Class:             "Container",
		Kind:              simulator.KindImport,
		Priority:          priority,
		EstimatedDuration: duration,
		Customs:           simulator.CustomsApproved,
		Arrival:           arrival,
	})
	require.NoError(t, err)
	entryID, err = store.CreateQueueEntry(ctx, vesselID, arrival)
	require.NoError(t, err)
	return vesselID, entryID
}

func TestStore_EnsureBerthsIdempotent(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.EnsureBerths(ctx, 4, testEpoch))
	require.NoError(t, store.EnsureBerths(ctx, 10, testEpoch))

	berths, err := store.ListAvailableBerths(ctx)
	require.NoError(t, err)
	require.Len(t, berths, 4)
	for i, b := range berths {
		require.Equal(t, i+1, b.Number)
		require.Equal(t, simulator.BerthAvailable, b.State)
	}
}

func TestStore_WaitingOrder(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	lowID, _ := seedVessel(t, store, "low", 1, time.Hour, testEpoch.Add(-3*time.Hour))
	highLateID, _ := seedVessel(t, store, "high-late", 3, time.Hour, testEpoch.Add(-time.Minute))
	highEarlyID, _ := seedVessel(t, store, "high-early", 3, time.Hour, testEpoch.Add(-2*time.Hour))

	waiting, err := store.ListWaitingEntries(ctx)
	require.NoError(t, err)
	require.Len(t, waiting, 3)
	require.Equal(t, highEarlyID, waiting[0].VesselID)
	require.Equal(t, highLateID, waiting[1].VesselID)
	require.Equal(t, lowID, waiting[2].VesselID)
	require.Equal(t, "high-early", waiting[0].VesselName)
	require.Equal(t, time.Hour, waiting[0].EstimatedDuration)
}

func TestStore_BindAllocation(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.EnsureBerths(ctx, 1, testEpoch))

	vesselID, entryID := seedVessel(t, store, "MV Atlantic 1", 2, 100*time.Second, testEpoch.Add(-time.Hour))

	berths, err := store.ListAvailableBerths(ctx)
	require.NoError(t, err)
	require.Len(t, berths, 1)

	opID, err := store.BindAllocation(ctx, simulator.AllocationBinding{
		EntryID:         entryID,
		VesselID:        vesselID,
		BerthID:         berths[0].ID,
		Kind:            simulator.KindImport,
		Start:           testEpoch,
		PlannedDuration: 100 * time.Second,
		ScheduledEnd:    testEpoch.Add(103 * time.Second),
	})
	require.NoError(t, err)
	require.NotZero(t, opID)

	// Berth is gone from the available list and the queue is drained
	berths, err = store.ListAvailableBerths(ctx)
	require.NoError(t, err)
	require.Empty(t, berths)
	waiting, err := store.ListWaitingEntries(ctx)
	require.NoError(t, err)
	require.Empty(t, waiting)

	// Not due before the scheduled end, due at it
	due, err := store.ListOperationsDue(ctx, testEpoch.Add(102*time.Second))
	require.NoError(t, err)
	require.Empty(t, due)
	due, err = store.ListOperationsDue(ctx, testEpoch.Add(103*time.Second))
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.Equal(t, opID, due[0].ID)
	require.Equal(t, "MV Atlantic 1", due[0].VesselName)
	require.Equal(t, 1, due[0].BerthNumber)
	require.Equal(t, 100*time.Second, due[0].PlannedDuration)
}

func TestStore_BindAllocationRejectsOccupiedBerth(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.EnsureBerths(ctx, 1, testEpoch))

	vesselA, entryA := seedVessel(t, store, "first", 2, time.Hour, testEpoch)
	vesselB, entryB := seedVessel(t, store, "second", 2, time.Hour, testEpoch)

	berths, err := store.ListAvailableBerths(ctx)
	require.NoError(t, err)
	berthID := berths[0].ID

	binding := simulator.AllocationBinding{
		EntryID: entryA, VesselID: vesselA, BerthID: berthID,
		Kind: simulator.KindImport, Start: testEpoch,
		PlannedDuration: time.Hour, ScheduledEnd: testEpoch.Add(time.Hour),
	}
	_, err = store.BindAllocation(ctx, binding)
	require.NoError(t, err)

	binding.EntryID = entryB
	binding.VesselID = vesselB
	_, err = store.BindAllocation(ctx, binding)
	require.Error(t, err)

	// The failed binding rolled back whole: the second entry still waits
	// and no second operation exists.
	waiting, err := store.ListWaitingEntries(ctx)
	require.NoError(t, err)
	require.Len(t, waiting, 1)
	require.Equal(t, vesselB, waiting[0].VesselID)

	var ops int
	require.NoError(t, store.DB().QueryRow("SELECT COUNT(*) FROM operations").Scan(&ops))
	require.Equal(t, 1, ops)
}

func TestStore_BindAllocationRejectsNonWaitingEntry(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.EnsureBerths(ctx, 2, testEpoch))

	vesselID, entryID := seedVessel(t, store, "MV Baltic 1", 1, time.Hour, testEpoch)

	berths, err := store.ListAvailableBerths(ctx)
	require.NoError(t, err)

	binding := simulator.AllocationBinding{
		EntryID: entryID, VesselID: vesselID, BerthID: berths[0].ID,
		Kind: simulator.KindImport, Start: testEpoch,
		PlannedDuration: time.Hour, ScheduledEnd: testEpoch.Add(time.Hour),
	}
	_, err = store.BindAllocation(ctx, binding)
	require.NoError(t, err)

	binding.BerthID = berths[1].ID
	_, err = store.BindAllocation(ctx, binding)
	require.Error(t, err)

	// The rollback must also release the second berth's occupation
	available, err := store.ListAvailableBerths(ctx)
	require.NoError(t, err)
	require.Len(t, available, 1)
	require.Equal(t, berths[1].ID, available[0].ID)
}

func TestStore_FinalizeOperation(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.EnsureBerths(ctx, 1, testEpoch))

	vesselID, entryID := seedVessel(t, store, "MT Harbor 1", 3, 100*time.Second, testEpoch.Add(-10*time.Minute))
	berths, err := store.ListAvailableBerths(ctx)
	require.NoError(t, err)

	opID, err := store.BindAllocation(ctx, simulator.AllocationBinding{
		EntryID: entryID, VesselID: vesselID, BerthID: berths[0].ID,
		Kind: simulator.KindImport, Start: testEpoch,
		PlannedDuration: 100 * time.Second, ScheduledEnd: testEpoch.Add(100 * time.Second),
	})
	require.NoError(t, err)

	end := testEpoch.Add(125 * time.Second)
	completion := simulator.OperationCompletion{
		OperationID: opID, VesselID: vesselID, BerthID: berths[0].ID,
		End: end, ActualDuration: 125 * time.Second,
	}
	require.NoError(t, store.FinalizeOperation(ctx, completion))

	// Berth released, nothing due anymore, finalizing again fails
	available, err := store.ListAvailableBerths(ctx)
	require.NoError(t, err)
	require.Len(t, available, 1)
	due, err := store.ListOperationsDue(ctx, end.Add(time.Hour))
	require.NoError(t, err)
	require.Empty(t, due)
	require.Error(t, store.FinalizeOperation(ctx, completion))

	stats, err := store.Stats(ctx, end)
	require.NoError(t, err)
	require.Equal(t, 1, stats.CompletedOperations)
	require.Equal(t, 1, stats.Throughput24h)
	require.InDelta(t, 80.0, stats.AvgEfficiencyPct, 0.001)
	require.InDelta(t, 600.0, stats.AvgWaitSeconds, 0.001)
}

func TestStore_UpdateBerthMaintenance(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.EnsureBerths(ctx, 2, testEpoch))

	berths, err := store.ListAvailableBerths(ctx)
	require.NoError(t, err)

	window := &simulator.MaintenanceWindow{Start: testEpoch, End: testEpoch.Add(7 * time.Minute)}
	require.NoError(t, store.UpdateBerth(ctx, berths[0].ID, simulator.BerthMaintenance, window, testEpoch))

	// Not due while the window runs, due once it has elapsed
	due, err := store.ListMaintenanceDue(ctx, testEpoch.Add(6*time.Minute))
	require.NoError(t, err)
	require.Empty(t, due)
	due, err = store.ListMaintenanceDue(ctx, testEpoch.Add(7*time.Minute))
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.Equal(t, berths[0].ID, due[0].ID)
	require.NotNil(t, due[0].Maintenance)
	require.Equal(t, window.End, due[0].Maintenance.End)

	release := testEpoch.Add(8 * time.Minute)
	require.NoError(t, store.UpdateBerth(ctx, due[0].ID, simulator.BerthAvailable, nil, release))

	all, err := store.Berths(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, simulator.BerthAvailable, all[0].State)
	require.Nil(t, all[0].Maintenance)
	require.Equal(t, release, all[0].UpdatedAt)

	require.Error(t, store.UpdateBerth(ctx, 9999, simulator.BerthAvailable, nil, release))
}

func TestStore_StatsEmptyDatabase(t *testing.T) {
	store := setupTestStore(t)

	stats, err := store.Stats(context.Background(), testEpoch)
	require.NoError(t, err)
	require.Equal(t, &simulator.PortStats{}, stats)
}

func TestStore_CustomsCounts(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	statuses := []simulator.CustomsStatus{
		simulator.CustomsApproved, simulator.CustomsApproved,
		simulator.CustomsPending, simulator.CustomsUnderReview,
	}
	for i, status := range statuses {
		_, err := store.CreateVessel(ctx, &simulator.Vessel{
			Name: "v", Class: "Tanker", Kind: simulator.KindExport,
			Priority: 1, EstimatedDuration: time.Hour, Customs: status,
			Arrival: testEpoch.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	stats, err := store.Stats(ctx, testEpoch)
	require.NoError(t, err)
	require.Equal(t, 4, stats.TotalVessels)
	require.Equal(t, 2, stats.CustomsApproved)
	require.Equal(t, 1, stats.CustomsPending)
	require.Equal(t, 1, stats.CustomsUnderReview)
}

func TestStore_DrivesEngine(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	config := simulator.DefaultConfig()
	config.BerthCount = 1
	config.TickSeconds = 5
	config.SpawnProbability = 0
	config.MaintenanceProbability = 0
	config.ServiceJitterSeconds = 0
	config.RandomSeed = 1

	eng, err := simulator.NewEngine(config, store, nil)
	require.NoError(t, err)
	eng.SetNow(testEpoch)
	require.NoError(t, eng.Bootstrap(ctx))

	_, _ = seedVessel(t, store, "MV Atlantic 1", 2, 10*time.Second, testEpoch.Add(-time.Hour))

	require.NoError(t, eng.RunTicks(ctx, 3))

	stats, err := store.Stats(ctx, eng.Now())
	require.NoError(t, err)
	require.Equal(t, 1, stats.CompletedOperations)
	require.Equal(t, 1, stats.BerthsAvailable)
	require.Equal(t, 0, stats.QueueLength)

	metrics := eng.Metrics()
	require.Equal(t, 1, metrics.OperationsCompleted)
}
