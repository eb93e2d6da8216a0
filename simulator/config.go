package simulator

// SimConfig holds all simulation parameters.
// Defaults reproduce a small commercial port: four berths, a five second
// tick, and service times measured in tens of seconds so a full vessel
// lifecycle is observable within a minute or two of wall time.
type SimConfig struct {
	// Port layout
	BerthCount int `json:"berthCount"` // Number of berths seeded into the store (default 4)

	// Clock
	TickSeconds int `json:"tickSeconds"` // Virtual seconds advanced per tick, and wall pacing for Run (default 5)

	// Arrivals
	SpawnProbability       float64 `json:"spawnProbability"`       // Per-tick chance a new vessel arrives (default 0.4)
	ArrivalBackdateMinutes [2]int  `json:"arrivalBackdateMinutes"` // Arrival timestamp is backdated uniformly within [min,max] minutes

	// Service
	ServiceJitterSeconds int `json:"serviceJitterSeconds"` // +/- jitter folded into the scheduled end at allocation time (default 5)

	// Maintenance
	MaintenanceProbability float64 `json:"maintenanceProbability"` // Per-tick chance an idle berth is withdrawn (default 0.3)
	MaintenanceMinutes     [2]int  `json:"maintenanceMinutes"`     // Window duration drawn uniformly within [min,max] minutes (default [5,10])

	// Reproducibility
	RandomSeed int64 `json:"randomSeed"` // Random seed (0 = time-based seed)
}

// DefaultConfig returns the configuration matching the reference port:
// four berths, 5s ticks, 40% spawn chance, 30% maintenance chance with
// 5-10 minute windows.
func DefaultConfig() SimConfig {
	return SimConfig{
		BerthCount:             4,
		TickSeconds:            5,
		SpawnProbability:       0.4,
		ArrivalBackdateMinutes: [2]int{5, 120},
		ServiceJitterSeconds:   5,
		MaintenanceProbability: 0.3,
		MaintenanceMinutes:     [2]int{5, 10},
		RandomSeed:             0,
	}
}

// Validate checks if configuration values are reasonable.
// Range errors here are fatal at startup, not recoverable at runtime.
func (c *SimConfig) Validate() error {
	if c.BerthCount < 1 {
		return ErrInvalidConfig("berthCount must be >= 1")
	}
	if c.TickSeconds < 1 {
		return ErrInvalidConfig("tickSeconds must be >= 1")
	}
	if c.SpawnProbability < 0 || c.SpawnProbability > 1 {
		return ErrInvalidConfig("spawnProbability must be between 0 and 1")
	}
	if c.ArrivalBackdateMinutes[0] < 0 {
		return ErrInvalidConfig("arrivalBackdateMinutes min must be >= 0")
	}
	if c.ArrivalBackdateMinutes[1] < c.ArrivalBackdateMinutes[0] {
		return ErrInvalidConfig("arrivalBackdateMinutes max must be >= min")
	}
	if c.ServiceJitterSeconds < 0 {
		return ErrInvalidConfig("serviceJitterSeconds must be >= 0")
	}
	if c.MaintenanceProbability < 0 || c.MaintenanceProbability > 1 {
		return ErrInvalidConfig("maintenanceProbability must be between 0 and 1")
	}
	if c.MaintenanceMinutes[0] < 1 {
		return ErrInvalidConfig("maintenanceMinutes min must be >= 1")
	}
	if c.MaintenanceMinutes[1] < c.MaintenanceMinutes[0] {
		return ErrInvalidConfig("maintenanceMinutes max must be >= min")
	}
	return nil
}
