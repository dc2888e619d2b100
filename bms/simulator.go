package bms

import (
	"math/rand"
	"time"
)

const (
	simCellJitterV = 0.005
	simTempJitterC = 0.5
)

// Simulator drifts the pack state by small bounded perturbations when
// no transceiver is present. It never runs concurrently with the
// decoder: only one acquisition path is active per process lifetime.
type Simulator struct {
	store *Store
	rng   *rand.Rand
}

// NewSimulator creates a simulator. seed 0 selects a time-based seed;
// any other value gives a reproducible sequence.
func NewSimulator(store *Store, seed int64) *Simulator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Simulator{
		store: store,
		rng:   rand.New(rand.NewSource(seed)),
	}
}

// Tick perturbs every active cell voltage and the temperature, each
// clamped to its plausible range.
func (s *Simulator) Tick() {
	count := s.store.CellCount()

	for i := 0; i < count; i++ {
		v := s.store.Cell(i) + s.jitter(simCellJitterV)
		s.store.SetCell(i, clamp(v, SimMinCellVoltage, SimMaxCellVoltage))
	}

	t := s.store.Temperature() + s.jitter(simTempJitterC)
	s.store.SetTemperature(clamp(t, SimMinTemperature, SimMaxTemperature))
}

// jitter returns a uniform delta in [-magnitude, magnitude).
func (s *Simulator) jitter(magnitude float64) float64 {
	return (s.rng.Float64()*2.0 - 1.0) * magnitude
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
