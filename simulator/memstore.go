package simulator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemStore is an in-memory EntityStore. It backs the live dashboard
// server and the engine tests; the sqlite store is the durable
// implementation. All compound transitions hold the single mutex for
// their whole duration, so atomicity is trivial here.
type MemStore struct {
	mu         sync.Mutex
	vessels    map[int64]*Vessel
	berths     map[int64]*Berth
	entries    map[int64]*QueueEntry
	operations map[int64]*Operation
	nextID     int64
}

// NewMemStore creates an empty in-memory store
func NewMemStore() *MemStore {
	return &MemStore{
		vessels:    make(map[int64]*Vessel),
		berths:     make(map[int64]*Berth),
		entries:    make(map[int64]*QueueEntry),
		operations: make(map[int64]*Operation),
		nextID:     1,
	}
}

func (m *MemStore) allocID() int64 {
	id := m.nextID
	m.nextID++
	return id
}

// EnsureBerths seeds the berth pool on first use. Idempotent.
func (m *MemStore) EnsureBerths(_ context.Context, count int, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.berths) > 0 {
		return nil
	}
	for i := 1; i <= count; i++ {
		id := m.allocID()
		m.berths[id] = &Berth{
			ID:        id,
			Number:    i,
			State:     BerthAvailable,
			UpdatedAt: now,
		}
	}
	return nil
}

// CreateVessel persists a vessel descriptor and returns its ID
func (m *MemStore) CreateVessel(_ context.Context, v *Vessel) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *v
	stored.ID = m.allocID()
	m.vessels[stored.ID] = &stored
	return stored.ID, nil
}

// CreateQueueEntry appends a waiting queue entry for a vessel
func (m *MemStore) CreateQueueEntry(_ context.Context, vesselID int64, arrival time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.vessels[vesselID]; !ok {
		return 0, fmt.Errorf("vessel %d not found", vesselID)
	}
	id := m.allocID()
	m.entries[id] = &QueueEntry{
		ID:       id,
		VesselID: vesselID,
		Arrival:  arrival,
		State:    QueueWaiting,
	}
	return id, nil
}

// ListWaitingEntries returns waiting entries ordered by priority
// descending, then arrival ascending, then entry ID for a stable order.
func (m *MemStore) ListWaitingEntries(_ context.Context) ([]*WaitingEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var waiting []*WaitingEntry
	for _, e := range m.entries {
		if e.State != QueueWaiting {
			continue
		}
		v, ok := m.vessels[e.VesselID]
		if !ok {
			return nil, fmt.Errorf("queue entry %d references missing vessel %d", e.ID, e.VesselID)
		}
		waiting = append(waiting, &WaitingEntry{
			EntryID:           e.ID,
			VesselID:          v.ID,
			VesselName:        v.Name,
			Priority:          v.Priority,
			Kind:              v.Kind,
			EstimatedDuration: v.EstimatedDuration,
			Arrival:           e.Arrival,
		})
	}
	sort.Slice(waiting, func(i, j int) bool {
		if waiting[i].Priority != waiting[j].Priority {
			return waiting[i].Priority > waiting[j].Priority
		}
		if !waiting[i].Arrival.Equal(waiting[j].Arrival) {
			return waiting[i].Arrival.Before(waiting[j].Arrival)
		}
		return waiting[i].EntryID < waiting[j].EntryID
	})
	return waiting, nil
}

// ListAvailableBerths returns available berths by ascending number
func (m *MemStore) ListAvailableBerths(_ context.Context) ([]*Berth, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var available []*Berth
	for _, b := range m.berths {
		if b.State == BerthAvailable {
			cp := *b
			available = append(available, &cp)
		}
	}
	sort.Slice(available, func(i, j int) bool { return available[i].Number < available[j].Number })
	return available, nil
}

// ListMaintenanceDue returns berths whose maintenance window has elapsed
func (m *MemStore) ListMaintenanceDue(_ context.Context, now time.Time) ([]*Berth, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var due []*Berth
	for _, b := range m.berths {
		if b.State == BerthMaintenance && b.Maintenance != nil && !b.Maintenance.End.After(now) {
			cp := *b
			due = append(due, &cp)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].Number < due[j].Number })
	return due, nil
}

// UpdateBerth transitions a berth's state
func (m *MemStore) UpdateBerth(_ context.Context, berthID int64, state BerthState, window *MaintenanceWindow, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.berths[berthID]
	if !ok {
		return fmt.Errorf("berth %d not found", berthID)
	}
	b.State = state
	b.Maintenance = window
	b.UpdatedAt = now
	return nil
}

// BindAllocation applies one allocation atomically
func (m *MemStore) BindAllocation(_ context.Context, binding AllocationBinding) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	berth, ok := m.berths[binding.BerthID]
	if !ok {
		return 0, fmt.Errorf("berth %d not found", binding.BerthID)
	}
	if berth.State != BerthAvailable {
		return 0, fmt.Errorf("berth %d is %s, not available", binding.BerthID, berth.State)
	}
	entry, ok := m.entries[binding.EntryID]
	if !ok {
		return 0, fmt.Errorf("queue entry %d not found", binding.EntryID)
	}
	if entry.State != QueueWaiting {
		return 0, fmt.Errorf("queue entry %d is %s, not waiting", binding.EntryID, entry.State)
	}

	berth.State = BerthOccupied
	berth.UpdatedAt = binding.Start
	start := binding.Start
	entry.State = QueueInService
	entry.ServiceStart = &start

	opID := m.allocID()
	m.operations[opID] = &Operation{
		ID:              opID,
		VesselID:        binding.VesselID,
		BerthID:         binding.BerthID,
		Kind:            binding.Kind,
		Start:           binding.Start,
		PlannedDuration: binding.PlannedDuration,
		ScheduledEnd:    binding.ScheduledEnd,
		State:           OperationInProgress,
	}
	return opID, nil
}

// ListOperationsDue returns in-progress operations past their scheduled end
func (m *MemStore) ListOperationsDue(_ context.Context, now time.Time) ([]*Operation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var due []*Operation
	for _, op := range m.operations {
		if op.State != OperationInProgress || op.ScheduledEnd.After(now) {
			continue
		}
		cp := *op
		if v, ok := m.vessels[op.VesselID]; ok {
			cp.VesselName = v.Name
		}
		if b, ok := m.berths[op.BerthID]; ok {
			cp.BerthNumber = b.Number
		}
		due = append(due, &cp)
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ID < due[j].ID })
	return due, nil
}

// FinalizeOperation applies one completion atomically
func (m *MemStore) FinalizeOperation(_ context.Context, c OperationCompletion) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	op, ok := m.operations[c.OperationID]
	if !ok {
		return fmt.Errorf("operation %d not found", c.OperationID)
	}
	if op.State != OperationInProgress {
		return fmt.Errorf("operation %d is %s, not in progress", c.OperationID, op.State)
	}
	berth, ok := m.berths[c.BerthID]
	if !ok {
		return fmt.Errorf("berth %d not found", c.BerthID)
	}

	var entry *QueueEntry
	for _, e := range m.entries {
		if e.VesselID == c.VesselID && e.State == QueueInService {
			entry = e
			break
		}
	}
	if entry == nil {
		return fmt.Errorf("no in-service queue entry for vessel %d", c.VesselID)
	}

	op.State = OperationCompleted
	op.ActualDuration = c.ActualDuration
	end := c.End
	entry.State = QueueCompleted
	entry.ServiceEnd = &end
	berth.State = BerthAvailable
	berth.Maintenance = nil
	berth.UpdatedAt = c.End
	return nil
}

// Stats returns the aggregate port view at the given instant
func (m *MemStore) Stats(_ context.Context, now time.Time) (*PortStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := &PortStats{TotalVessels: len(m.vessels)}

	var waitTotal float64
	var waitCount int
	for _, e := range m.entries {
		switch e.State {
		case QueueWaiting:
			stats.QueueLength++
		case QueueInService:
			stats.InService++
		}
		if e.ServiceStart != nil {
			waitTotal += e.ServiceStart.Sub(e.Arrival).Seconds()
			waitCount++
		}
	}
	if waitCount > 0 {
		stats.AvgWaitSeconds = waitTotal / float64(waitCount)
	}

	var effTotal float64
	var effCount int
	dayAgo := now.Add(-24 * time.Hour)
	for _, op := range m.operations {
		if op.State != OperationCompleted {
			continue
		}
		stats.CompletedOperations++
		if op.Start.After(dayAgo) {
			stats.Throughput24h++
		}
		if op.ActualDuration > 0 {
			effTotal += op.Efficiency()
			effCount++
		}
	}
	if effCount > 0 {
		stats.AvgEfficiencyPct = effTotal / float64(effCount)
	}

	for _, b := range m.berths {
		switch b.State {
		case BerthAvailable:
			stats.BerthsAvailable++
		case BerthOccupied:
			stats.BerthsOccupied++
		case BerthMaintenance:
			stats.BerthsMaintenance++
		}
	}

	for _, v := range m.vessels {
		switch v.Customs {
		case CustomsApproved:
			stats.CustomsApproved++
		case CustomsPending:
			stats.CustomsPending++
		case CustomsUnderReview:
			stats.CustomsUnderReview++
		}
	}
	return stats, nil
}

// Berths returns a snapshot of every berth, ordered by number.
// Used by the dashboard state feed.
func (m *MemStore) Berths() []*Berth {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*Berth, 0, len(m.berths))
	for _, b := range m.berths {
		cp := *b
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}
