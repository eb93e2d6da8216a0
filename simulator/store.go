package simulator

import (
	"context"
	"time"
)

// AllocationBinding is the single atomic transition that binds one
// waiting vessel to one available berth: berth -> occupied, queue entry
// -> in_service, operation created in_progress. Either every part
// commits or none of it does.
type AllocationBinding struct {
	EntryID         int64
	VesselID        int64
	BerthID         int64
	Kind            OperationKind
	Start           time.Time
	PlannedDuration time.Duration
	ScheduledEnd    time.Time // Start + planned duration + one-shot jitter
}

// OperationCompletion is the single atomic transition that finalizes an
// operation: operation -> completed with the measured duration, queue
// entry -> completed, berth -> available.
type OperationCompletion struct {
	OperationID    int64
	VesselID       int64
	BerthID        int64
	End            time.Time
	ActualDuration time.Duration
}

// PortStats is the aggregate view downstream consumers (dashboards,
// metrics exporters) read from the store.
type PortStats struct {
	QueueLength         int     `json:"queueLength"`
	InService           int     `json:"inService"`
	TotalVessels        int     `json:"totalVessels"`
	CompletedOperations int     `json:"completedOperations"`
	Throughput24h       int     `json:"throughput24h"` // Operations completed in the trailing 24 hours
	AvgWaitSeconds      float64 `json:"avgWaitSeconds"`
	AvgEfficiencyPct    float64 `json:"avgEfficiencyPct"`
	BerthsAvailable     int     `json:"berthsAvailable"`
	BerthsOccupied      int     `json:"berthsOccupied"`
	BerthsMaintenance   int     `json:"berthsMaintenance"`
	CustomsApproved     int     `json:"customsApproved"`
	CustomsPending      int     `json:"customsPending"`
	CustomsUnderReview  int     `json:"customsUnderReview"`
}

// EntityStore is the durable record of vessels, berths, queue entries
// and operations. It is the sole source of truth: the engine keeps no
// authoritative state in memory, so a failed call aborts the current
// tick step and the step simply runs again next tick.
//
// Every method either fully applies or fully fails. The compound
// transitions (BindAllocation, FinalizeOperation) must be transactional:
// a berth marked occupied while its queue entry stays waiting is an
// invariant violation the store must make impossible.
type EntityStore interface {
	// EnsureBerths seeds the berth pool on first use. Idempotent.
	EnsureBerths(ctx context.Context, count int, now time.Time) error

	// CreateVessel persists an immutable vessel descriptor together
	// with its customs clearance record, returning the assigned ID.
	CreateVessel(ctx context.Context, v *Vessel) (int64, error)

	// CreateQueueEntry appends a waiting queue entry for a vessel.
	CreateQueueEntry(ctx context.Context, vesselID int64, arrival time.Time) (int64, error)

	// ListWaitingEntries returns waiting entries joined with vessel
	// fields, ordered by priority descending then arrival ascending.
	ListWaitingEntries(ctx context.Context) ([]*WaitingEntry, error)

	// ListAvailableBerths returns available berths ordered by ascending
	// berth number, so allocation passes are deterministic.
	ListAvailableBerths(ctx context.Context) ([]*Berth, error)

	// ListMaintenanceDue returns berths whose maintenance window has
	// elapsed (end <= now).
	ListMaintenanceDue(ctx context.Context, now time.Time) ([]*Berth, error)

	// UpdateBerth transitions a berth's state. A nil window clears any
	// stored maintenance window.
	UpdateBerth(ctx context.Context, berthID int64, state BerthState, window *MaintenanceWindow, now time.Time) error

	// BindAllocation applies one allocation atomically and returns the
	// new operation's ID. It must fail without side effects if the
	// berth is no longer available or the entry is no longer waiting.
	BindAllocation(ctx context.Context, b AllocationBinding) (int64, error)

	// ListOperationsDue returns in-progress operations whose scheduled
	// end has been reached (scheduled end <= now).
	ListOperationsDue(ctx context.Context, now time.Time) ([]*Operation, error)

	// FinalizeOperation applies one completion atomically.
	FinalizeOperation(ctx context.Context, c OperationCompletion) error

	// Stats returns the aggregate port view at the given instant.
	Stats(ctx context.Context, now time.Time) (*PortStats, error)
}
