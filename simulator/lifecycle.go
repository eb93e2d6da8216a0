package simulator

import (
	"context"
	"fmt"
)

// finalizeOperations completes every in-progress operation whose
// scheduled end has been reached. Completion and berth release are one
// atomic store transition, so a berth is never left occupied once its
// operation is completed.
func (e *Engine) finalizeOperations(ctx context.Context) error {
	due, err := e.store.ListOperationsDue(ctx, e.now)
	if err != nil {
		return fmt.Errorf("list due operations: %w", err)
	}

	for _, op := range due {
		actual := e.now.Sub(op.Start)
		if err := e.store.FinalizeOperation(ctx, OperationCompletion{
			OperationID:    op.ID,
			VesselID:       op.VesselID,
			BerthID:        op.BerthID,
			End:            e.now,
			ActualDuration: actual,
		}); err != nil {
			return fmt.Errorf("finalize operation %d: %w", op.ID, err)
		}

		completed := *op
		completed.ActualDuration = actual
		completed.State = OperationCompleted
		e.metrics.recordCompletion(&completed)
		e.logger.Info("operation completed",
			"vessel", op.VesselName,
			"berth", op.BerthNumber,
			"operation", op.ID,
			"planned", op.PlannedDuration,
			"actual", actual,
			"efficiencyPct", fmt.Sprintf("%.1f", completed.Efficiency()),
		)
	}
	return nil
}
