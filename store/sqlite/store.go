package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/gsimoes/portsim/simulator"
)

// Store implements simulator.EntityStore on a SQLite database.
type Store struct {
	db *sql.DB
}

// NewStore wraps an opened database
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for reporting queries
func (s *Store) DB() *sql.DB {
	return s.db
}

// EnsureBerths seeds the berth pool on first use. Idempotent.
func (s *Store) EnsureBerths(ctx context.Context, count int, now time.Time) error {
	var existing int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM berths").Scan(&existing)
	if err != nil {
		return fmt.Errorf("failed to count berths: %w", err)
	}
	if existing > 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i := 1; i <= count; i++ {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO berths (number, state, updated_at) VALUES (?, 'available', ?)",
			i, now.Unix(),
		)
		if err != nil {
			return fmt.Errorf("failed to seed berth %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// CreateVessel persists a vessel and its customs clearance record.
func (s *Store) CreateVessel(ctx context.Context, v *simulator.Vessel) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO vessels (name, class, kind, priority, estimated_duration_s, arrival)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		v.Name, v.Class, v.Kind.String(), v.Priority,
		int64(v.EstimatedDuration.Seconds()), v.Arrival.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create vessel: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get vessel ID: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO customs_clearance (vessel_id, status) VALUES (?, ?)",
		id, v.Customs.String(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create customs record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit vessel: %w", err)
	}
	return id, nil
}

// CreateQueueEntry appends a waiting queue entry for a vessel
func (s *Store) CreateQueueEntry(ctx context.Context, vesselID int64, arrival time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO vessel_queue (vessel_id, arrival, state) VALUES (?, ?, 'waiting')",
		vesselID, arrival.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create queue entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get queue entry ID: %w", err)
	}
	return id, nil
}

// ListWaitingEntries returns waiting entries joined with vessel fields,
// ordered by priority descending, arrival ascending, entry ID ascending.
func (s *Store) ListWaitingEntries(ctx context.Context) ([]*simulator.WaitingEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT q.id, v.id, v.name, v.priority, v.kind, v.estimated_duration_s, q.arrival
		 FROM vessel_queue q
		 JOIN vessels v ON v.id = q.vessel_id
		 WHERE q.state = 'waiting'
		 ORDER BY v.priority DESC, q.arrival ASC, q.id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list waiting entries: %w", err)
	}
	defer rows.Close()

	var waiting []*simulator.WaitingEntry
	for rows.Next() {
		var (
			e         simulator.WaitingEntry
			kind      string
			durationS int64
			arrival   int64
		)
		if err := rows.Scan(&e.EntryID, &e.VesselID, &e.VesselName, &e.Priority, &kind, &durationS, &arrival); err != nil {
			return nil, fmt.Errorf("failed to scan waiting entry: %w", err)
		}
		e.Kind, err = simulator.ParseOperationKind(kind)
		if err != nil {
			return nil, fmt.Errorf("queue entry %d: %w", e.EntryID, err)
		}
		e.EstimatedDuration = time.Duration(durationS) * time.Second
		e.Arrival = time.Unix(arrival, 0).UTC()
		waiting = append(waiting, &e)
	}
	return waiting, rows.Err()
}

// ListAvailableBerths returns available berths by ascending number
func (s *Store) ListAvailableBerths(ctx context.Context) ([]*simulator.Berth, error) {
	return s.listBerths(ctx,
		"SELECT id, number, state, maintenance_start, maintenance_end, updated_at FROM berths WHERE state = 'available' ORDER BY number ASC")
}

// ListMaintenanceDue returns berths whose maintenance window has elapsed
func (s *Store) ListMaintenanceDue(ctx context.Context, now time.Time) ([]*simulator.Berth, error) {
	return s.listBerths(ctx,
		"SELECT id, number, state, maintenance_start, maintenance_end, updated_at FROM berths WHERE state = 'maintenance' AND maintenance_end <= ? ORDER BY number ASC",
		now.Unix())
}

// Berths returns every berth ordered by number, for reporting
func (s *Store) Berths(ctx context.Context) ([]*simulator.Berth, error) {
	return s.listBerths(ctx,
		"SELECT id, number, state, maintenance_start, maintenance_end, updated_at FROM berths ORDER BY number ASC")
}

func (s *Store) listBerths(ctx context.Context, query string, args ...any) ([]*simulator.Berth, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list berths: %w", err)
	}
	defer rows.Close()

	var berths []*simulator.Berth
	for rows.Next() {
		var (
			b         simulator.Berth
			state     string
			mStart    sql.NullInt64
			mEnd      sql.NullInt64
			updatedAt int64
		)
		if err := rows.Scan(&b.ID, &b.Number, &state, &mStart, &mEnd, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan berth: %w", err)
		}
		b.State, err = simulator.ParseBerthState(state)
		if err != nil {
			return nil, fmt.Errorf("berth %d: %w", b.ID, err)
		}
		if mStart.Valid && mEnd.Valid {
			b.Maintenance = &simulator.MaintenanceWindow{
				Start: time.Unix(mStart.Int64, 0).UTC(),
				End:   time.Unix(mEnd.Int64, 0).UTC(),
			}
		}
		b.UpdatedAt = time.Unix(updatedAt, 0).UTC()
		berths = append(berths, &b)
	}
	return berths, rows.Err()
}

// UpdateBerth transitions a berth's state. A nil window clears any
// stored maintenance window.
func (s *Store) UpdateBerth(ctx context.Context, berthID int64, state simulator.BerthState, window *simulator.MaintenanceWindow, now time.Time) error {
	var mStart, mEnd any
	if window != nil {
		mStart = window.Start.Unix()
		mEnd = window.End.Unix()
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE berths SET state = ?, maintenance_start = ?, maintenance_end = ?, updated_at = ? WHERE id = ?",
		state.String(), mStart, mEnd, now.Unix(), berthID,
	)
	if err != nil {
		return fmt.Errorf("failed to update berth: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check berth update: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("berth %d not found", berthID)
	}
	return nil
}

// BindAllocation applies one allocation in a single transaction. The
// state guards in the WHERE clauses make a stale binding fail as a
// whole: a berth that is no longer available, or an entry that is no
// longer waiting, affects zero rows and the transaction rolls back.
func (s *Store) BindAllocation(ctx context.Context, b simulator.AllocationBinding) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"UPDATE berths SET state = 'occupied', updated_at = ? WHERE id = ? AND state = 'available'",
		b.Start.Unix(), b.BerthID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to occupy berth: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return 0, fmt.Errorf("failed to check berth occupation: %w", err)
	} else if n == 0 {
		return 0, fmt.Errorf("berth %d is not available", b.BerthID)
	}

	res, err = tx.ExecContext(ctx,
		"UPDATE vessel_queue SET state = 'in_service', service_start = ? WHERE id = ? AND state = 'waiting'",
		b.Start.Unix(), b.EntryID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to move queue entry to service: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return 0, fmt.Errorf("failed to check queue update: %w", err)
	} else if n == 0 {
		return 0, fmt.Errorf("queue entry %d is not waiting", b.EntryID)
	}

	res, err = tx.ExecContext(ctx,
		`INSERT INTO operations (vessel_id, berth_id, kind, start, planned_duration_s, scheduled_end, state)
		 VALUES (?, ?, ?, ?, ?, ?, 'in_progress')`,
		b.VesselID, b.BerthID, b.Kind.String(), b.Start.Unix(),
		int64(b.PlannedDuration.Seconds()), b.ScheduledEnd.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create operation: %w", err)
	}
	opID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get operation ID: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit allocation: %w", err)
	}
	return opID, nil
}

// ListOperationsDue returns in-progress operations past their scheduled end
func (s *Store) ListOperationsDue(ctx context.Context, now time.Time) ([]*simulator.Operation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT o.id, o.vessel_id, o.berth_id, v.name, b.number, o.kind, o.start, o.planned_duration_s, o.scheduled_end
		 FROM operations o
		 JOIN vessels v ON v.id = o.vessel_id
		 JOIN berths b ON b.id = o.berth_id
		 WHERE o.state = 'in_progress' AND o.scheduled_end <= ?
		 ORDER BY o.id ASC`,
		now.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to list due operations: %w", err)
	}
	defer rows.Close()

	var due []*simulator.Operation
	for rows.Next() {
		var (
			op           simulator.Operation
			kind         string
			start        int64
			plannedS     int64
			scheduledEnd int64
		)
		if err := rows.Scan(&op.ID, &op.VesselID, &op.BerthID, &op.VesselName, &op.BerthNumber,
			&kind, &start, &plannedS, &scheduledEnd); err != nil {
			return nil, fmt.Errorf("failed to scan operation: %w", err)
		}
		op.Kind, err = simulator.ParseOperationKind(kind)
		if err != nil {
			return nil, fmt.Errorf("operation %d: %w", op.ID, err)
		}
		op.Start = time.Unix(start, 0).UTC()
		op.PlannedDuration = time.Duration(plannedS) * time.Second
		op.ScheduledEnd = time.Unix(scheduledEnd, 0).UTC()
		op.State = simulator.OperationInProgress
		due = append(due, &op)
	}
	return due, rows.Err()
}

// FinalizeOperation applies one completion in a single transaction,
// with the same state-guard discipline as BindAllocation.
func (s *Store) FinalizeOperation(ctx context.Context, c simulator.OperationCompletion) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"UPDATE operations SET state = 'completed', actual_duration_s = ? WHERE id = ? AND state = 'in_progress'",
		int64(c.ActualDuration.Seconds()), c.OperationID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete operation: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("failed to check operation update: %w", err)
	} else if n == 0 {
		return fmt.Errorf("operation %d is not in progress", c.OperationID)
	}

	res, err = tx.ExecContext(ctx,
		"UPDATE vessel_queue SET state = 'completed', service_end = ? WHERE vessel_id = ? AND state = 'in_service'",
		c.End.Unix(), c.VesselID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete queue entry: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("failed to check queue update: %w", err)
	} else if n == 0 {
		return fmt.Errorf("no in-service queue entry for vessel %d", c.VesselID)
	}

	res, err = tx.ExecContext(ctx,
		"UPDATE berths SET state = 'available', maintenance_start = NULL, maintenance_end = NULL, updated_at = ? WHERE id = ?",
		c.End.Unix(), c.BerthID,
	)
	if err != nil {
		return fmt.Errorf("failed to release berth: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("failed to check berth release: %w", err)
	} else if n == 0 {
		return fmt.Errorf("berth %d not found", c.BerthID)
	}

	return tx.Commit()
}

// Stats returns the aggregate port view at the given instant
func (s *Store) Stats(ctx context.Context, now time.Time) (*simulator.PortStats, error) {
	stats := &simulator.PortStats{}

	err := s.db.QueryRowContext(ctx,
		`SELECT
			COUNT(CASE WHEN state = 'waiting' THEN 1 END),
			COUNT(CASE WHEN state = 'in_service' THEN 1 END),
			COALESCE(AVG(CASE WHEN service_start IS NOT NULL THEN service_start - arrival END), 0)
		 FROM vessel_queue`,
	).Scan(&stats.QueueLength, &stats.InService, &stats.AvgWaitSeconds)
	if err != nil {
		return nil, fmt.Errorf("failed to query queue stats: %w", err)
	}

	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM vessels").Scan(&stats.TotalVessels)
	if err != nil {
		return nil, fmt.Errorf("failed to count vessels: %w", err)
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT
			COUNT(*),
			COUNT(CASE WHEN start > ? THEN 1 END),
			COALESCE(AVG(CASE WHEN actual_duration_s > 0 THEN 100.0 * planned_duration_s / actual_duration_s END), 0)
		 FROM operations WHERE state = 'completed'`,
		now.Add(-24*time.Hour).Unix(),
	).Scan(&stats.CompletedOperations, &stats.Throughput24h, &stats.AvgEfficiencyPct)
	if err != nil {
		return nil, fmt.Errorf("failed to query operation stats: %w", err)
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT
			COUNT(CASE WHEN state = 'available' THEN 1 END),
			COUNT(CASE WHEN state = 'occupied' THEN 1 END),
			COUNT(CASE WHEN state = 'maintenance' THEN 1 END)
		 FROM berths`,
	).Scan(&stats.BerthsAvailable, &stats.BerthsOccupied, &stats.BerthsMaintenance)
	if err != nil {
		return nil, fmt.Errorf("failed to query berth stats: %w", err)
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT
			COUNT(CASE WHEN status = 'approved' THEN 1 END),
			COUNT(CASE WHEN status = 'pending' THEN 1 END),
			COUNT(CASE WHEN status = 'under_review' THEN 1 END)
		 FROM customs_clearance`,
	).Scan(&stats.CustomsApproved, &stats.CustomsPending, &stats.CustomsUnderReview)
	if err != nil {
		return nil, fmt.Errorf("failed to query customs stats: %w", err)
	}

	return stats, nil
}

// Ensure Store implements the interface
var _ simulator.EntityStore = (*Store)(nil)
