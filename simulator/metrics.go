package simulator

// Metrics tracks cumulative simulation counters and the latest store
// aggregates. The engine owns the single instance; callers get copies
// via Engine.Metrics().
type Metrics struct {
	Tick uint64 `json:"tick"`

	// Cumulative counters
	VesselsSpawned      int `json:"vesselsSpawned"`
	OperationsCompleted int `json:"operationsCompleted"`
	MaintenanceWindows  int `json:"maintenanceWindows"`
	StepFailures        int `json:"stepFailures"`

	// Wait and efficiency aggregates over allocations/completions seen
	// by this engine instance
	AvgWaitSeconds    float64 `json:"avgWaitSeconds"`
	AvgEfficiencyPct  float64 `json:"avgEfficiencyPct"`
	LastEfficiencyPct float64 `json:"lastEfficiencyPct"`

	// Latest store aggregates (refreshed best-effort each tick)
	QueueLength       int `json:"queueLength"`
	InService         int `json:"inService"`
	BerthsAvailable   int `json:"berthsAvailable"`
	BerthsOccupied    int `json:"berthsOccupied"`
	BerthsMaintenance int `json:"berthsMaintenance"`

	// Internal accumulators
	totalWaitSeconds float64
	allocations      int
	totalEfficiency  float64
	measured         int
}

// NewMetrics creates an empty metrics tracker
func NewMetrics() *Metrics {
	return &Metrics{}
}

// recordAllocation folds one allocation's wait time into the average
func (m *Metrics) recordAllocation(waitSeconds float64) {
	m.totalWaitSeconds += waitSeconds
	m.allocations++
	m.AvgWaitSeconds = m.totalWaitSeconds / float64(m.allocations)
}

// recordCompletion folds one completed operation into the efficiency
// averages. Operations with an unmeasurable actual duration are counted
// but excluded from the efficiency aggregate.
func (m *Metrics) recordCompletion(op *Operation) {
	m.OperationsCompleted++
	eff := op.Efficiency()
	if eff <= 0 {
		return
	}
	m.LastEfficiencyPct = eff
	m.totalEfficiency += eff
	m.measured++
	m.AvgEfficiencyPct = m.totalEfficiency / float64(m.measured)
}

// absorbStats copies the store aggregates into the snapshot fields
func (m *Metrics) absorbStats(stats *PortStats) {
	m.QueueLength = stats.QueueLength
	m.InService = stats.InService
	m.BerthsAvailable = stats.BerthsAvailable
	m.BerthsOccupied = stats.BerthsOccupied
	m.BerthsMaintenance = stats.BerthsMaintenance
}

// Clone returns a copy of the metrics
func (m *Metrics) Clone() *Metrics {
	cp := *m
	return &cp
}
