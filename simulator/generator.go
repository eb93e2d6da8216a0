package simulator

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// vesselClassSpec ties one vessel class to its scheduling priority,
// realistic service-time bounds (seconds) and cargo direction.
type vesselClassSpec struct {
	class         string
	priority      int
	minServiceSec int
	maxServiceSec int
	kind          OperationKind
}

var vesselClasses = []vesselClassSpec{
	{"General Cargo", 1, 30, 60, KindImport},
	{"Container", 2, 40, 80, KindImport},
	{"Tanker", 3, 50, 90, KindImport},
	{"Bulk Carrier", 1, 30, 70, KindExport},
	{"RoRo", 2, 20, 40, KindExport},
	{"Reefer", 3, 45, 55, KindImport},
}

var shipPrefixes = []string{"MV", "MS", "MT", "SS"}

var shipNames = []string{
	"Atlantic", "Pacific", "Mediterranean", "Baltic", "Nordic", "Iberian",
	"Phoenix", "Titan", "Neptune", "Poseidon", "Explorer", "Navigator",
}

// ArrivalGenerator produces vessel descriptors at stochastic intervals.
// It has no scheduling logic; it is a data-generation utility whose only
// contract is that produced values stay within the declared bounds.
type ArrivalGenerator struct {
	rng     *rand.Rand
	config  SimConfig
	counter int
}

// NewArrivalGenerator creates a generator sharing the engine's seeded RNG
func NewArrivalGenerator(rng *rand.Rand, config SimConfig) *ArrivalGenerator {
	return &ArrivalGenerator{rng: rng, config: config}
}

// Generate returns a new vessel descriptor. The arrival timestamp is
// backdated a bounded random interval so wait times vary from the first
// allocation pass onward.
func (g *ArrivalGenerator) Generate(now time.Time) *Vessel {
	g.counter++
	spec := vesselClasses[g.rng.Intn(len(vesselClasses))]

	serviceSec := spec.minServiceSec + g.rng.Intn(spec.maxServiceSec-spec.minServiceSec+1)

	backdateRange := g.config.ArrivalBackdateMinutes[1] - g.config.ArrivalBackdateMinutes[0]
	backdateMin := g.config.ArrivalBackdateMinutes[0]
	if backdateRange > 0 {
		backdateMin += g.rng.Intn(backdateRange + 1)
	}

	name := fmt.Sprintf("%s %s %d",
		shipPrefixes[g.rng.Intn(len(shipPrefixes))],
		shipNames[g.rng.Intn(len(shipNames))],
		g.counter)

	return &Vessel{
		Name:              name,
		Class:             spec.class,
		Kind:              spec.kind,
		Priority:          spec.priority,
		EstimatedDuration: time.Duration(serviceSec) * time.Second,
		Customs:           g.drawCustomsStatus(),
		Arrival:           now.Add(-time.Duration(backdateMin) * time.Minute),
	}
}

// drawCustomsStatus draws approved 50%, pending 30%, under review 20%
func (g *ArrivalGenerator) drawCustomsStatus() CustomsStatus {
	r := g.rng.Float64()
	switch {
	case r < 0.5:
		return CustomsApproved
	case r < 0.8:
		return CustomsPending
	default:
		return CustomsUnderReview
	}
}

// maybeSpawnVessel rolls the per-tick spawn probability and, on a hit,
// persists a new vessel plus its waiting queue entry. Store failures
// propagate to the clock; there is no local retry.
func (e *Engine) maybeSpawnVessel(ctx context.Context) error {
	if e.rng.Float64() >= e.config.SpawnProbability {
		return nil
	}

	vessel := e.gen.Generate(e.now)
	vesselID, err := e.store.CreateVessel(ctx, vessel)
	if err != nil {
		return fmt.Errorf("create vessel: %w", err)
	}
	if _, err := e.store.CreateQueueEntry(ctx, vesselID, vessel.Arrival); err != nil {
		return fmt.Errorf("enqueue vessel %d: %w", vesselID, err)
	}

	e.metrics.VesselsSpawned++
	e.logger.Info("vessel arrived",
		"vessel", vessel.Name,
		"class", vessel.Class,
		"priority", vessel.Priority,
		"estimated", vessel.EstimatedDuration,
	)
	return nil
}
