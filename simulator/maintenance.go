package simulator

import (
	"context"
	"fmt"
	"time"
)

// releaseMaintenance restores every berth whose maintenance window has
// elapsed. Runs first in the tick so a freed berth is allocatable within
// the same tick rather than waiting a full extra one.
func (e *Engine) releaseMaintenance(ctx context.Context) error {
	due, err := e.store.ListMaintenanceDue(ctx, e.now)
	if err != nil {
		return fmt.Errorf("list maintenance due: %w", err)
	}

	for _, berth := range due {
		if err := e.store.UpdateBerth(ctx, berth.ID, BerthAvailable, nil, e.now); err != nil {
			return fmt.Errorf("release berth %d: %w", berth.ID, err)
		}
		e.logger.Info("berth released from maintenance", "berth", berth.Number)
	}
	return nil
}

// maybeStartMaintenance rolls the per-tick maintenance probability and,
// on a hit, withdraws one random available berth for a bounded window.
// Occupied berths are never candidates: maintenance cannot interrupt an
// in-progress operation.
func (e *Engine) maybeStartMaintenance(ctx context.Context) error {
	if e.rng.Float64() >= e.config.MaintenanceProbability {
		return nil
	}

	available, err := e.store.ListAvailableBerths(ctx)
	if err != nil {
		return fmt.Errorf("list available berths: %w", err)
	}
	if len(available) == 0 {
		return nil
	}

	berth := available[e.rng.Intn(len(available))]
	minutes := e.config.MaintenanceMinutes[0]
	if spread := e.config.MaintenanceMinutes[1] - e.config.MaintenanceMinutes[0]; spread > 0 {
		minutes += e.rng.Intn(spread + 1)
	}
	window := &MaintenanceWindow{
		Start: e.now,
		End:   e.now.Add(time.Duration(minutes) * time.Minute),
	}

	if err := e.store.UpdateBerth(ctx, berth.ID, BerthMaintenance, window, e.now); err != nil {
		return fmt.Errorf("start maintenance on berth %d: %w", berth.ID, err)
	}

	e.metrics.MaintenanceWindows++
	e.logger.Info("berth under maintenance", "berth", berth.Number, "minutes", minutes)
	return nil
}
