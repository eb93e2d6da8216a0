package simulator

import (
	"context"
	"fmt"
	"time"
)

// allocate runs one allocation pass: every available berth, in ascending
// berth-number order, is bound to the head of the waiting queue under the
// work-conserving priority-then-FCFS policy (priority descending, arrival
// ascending). No berth-to-vessel affinity, no preemption.
//
// An empty queue or an empty berth pool is a no-op, not an error. A store
// failure mid-pass aborts the pass; bindings already committed stay
// committed and the remainder is retried next tick.
func (e *Engine) allocate(ctx context.Context) error {
	waiting, err := e.store.ListWaitingEntries(ctx)
	if err != nil {
		return fmt.Errorf("list waiting entries: %w", err)
	}
	if len(waiting) == 0 {
		return nil
	}

	berths, err := e.store.ListAvailableBerths(ctx)
	if err != nil {
		return fmt.Errorf("list available berths: %w", err)
	}

	for _, berth := range berths {
		if len(waiting) == 0 {
			return nil
		}
		// Pop the head candidate. The slice is already in policy order,
		// so consuming from the front guarantees no entry is offered to
		// two berths within the same pass.
		head := waiting[0]
		waiting = waiting[1:]

		start := e.now
		scheduledEnd := start.Add(head.EstimatedDuration + e.drawServiceJitter())
		if scheduledEnd.Before(start) {
			scheduledEnd = start
		}

		opID, err := e.store.BindAllocation(ctx, AllocationBinding{
			EntryID:         head.EntryID,
			VesselID:        head.VesselID,
			BerthID:         berth.ID,
			Kind:            head.Kind,
			Start:           start,
			PlannedDuration: head.EstimatedDuration,
			ScheduledEnd:    scheduledEnd,
		})
		if err != nil {
			return fmt.Errorf("bind vessel %d to berth %d: %w", head.VesselID, berth.ID, err)
		}

		waitSeconds := start.Sub(head.Arrival).Seconds()
		e.metrics.recordAllocation(waitSeconds)
		e.logger.Info("vessel allocated",
			"vessel", head.VesselName,
			"berth", berth.Number,
			"operation", opID,
			"waitSeconds", int(waitSeconds),
			"planned", head.EstimatedDuration,
		)
	}
	return nil
}

// drawServiceJitter returns the one-shot variance folded into the
// scheduled end at allocation time. Finalization stays a pure time
// comparison; the jitter surfaces later as planned-vs-actual variance.
func (e *Engine) drawServiceJitter() time.Duration {
	j := e.config.ServiceJitterSeconds
	if j <= 0 {
		return 0
	}
	return time.Duration(e.rng.Intn(2*j+1)-j) * time.Second
}
