package bms

import (
	"math"
	"sync"
	"time"
)

// Store holds the shared pack telemetry. The acquisition scheduler is
// the only writer of cell data; the serving layer and the Redis mirror
// read value copies through Snapshot().
type Store struct {
	mu                 sync.RWMutex
	cells              [MaxCells]float64
	cellCount          int
	temperature        float64
	packVoltage        float64
	balanceCurrent     float64
	currentSetting     float64
	transceiverPresent bool
	lastFrame          time.Time
}

func NewStore(cellCount int) *Store {
	s := &Store{}
	s.cellCount = clampCellCount(cellCount)
	return s
}

func clampCellCount(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxCells {
		return MaxCells
	}
	return n
}

// SetCellCount clamps n into [1, MaxCells], zeroes entries beyond the
// new count and returns the applied value. Decode cursors must be
// reset by the caller (the decoder wraps this).
func (s *Store) SetCellCount(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cellCount = clampCellCount(n)
	for i := s.cellCount; i < MaxCells; i++ {
		s.cells[i] = 0
	}
	return s.cellCount
}

func (s *Store) CellCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cellCount
}

// SetCell writes one cell voltage. Writes beyond the active count are
// dropped: a concurrent shrink must never leave values past the bound.
func (s *Store) SetCell(idx int, volts float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if idx < 0 || idx >= s.cellCount {
		return
	}
	s.cells[idx] = volts
}

func (s *Store) Cell(idx int) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if idx < 0 || idx >= MaxCells {
		return 0
	}
	return s.cells[idx]
}

func (s *Store) SetTemperature(c float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.temperature = c
}

func (s *Store) Temperature() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.temperature
}

func (s *Store) SetPackVoltage(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.packVoltage = v
}

func (s *Store) SetBalanceCurrent(a float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balanceCurrent = a
}

// SetCurrentSetting stores the requested pack current. NaN and
// negative requests clamp to zero.
func (s *Store) SetCurrentSetting(a float64) float64 {
	if math.IsNaN(a) || a < 0 {
		a = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentSetting = a
	return a
}

func (s *Store) CurrentSetting() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentSetting
}

// MarkTransceiver records the startup probe result. The flag is set
// once and never reconfigured at runtime.
func (s *Store) MarkTransceiver(present bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transceiverPresent = present
}

func (s *Store) TransceiverPresent() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.transceiverPresent
}

// TouchFrame updates the timestamp used for stale-data detection.
func (s *Store) TouchFrame() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastFrame = time.Now()
}

// Stale reports whether no frame has been decoded within timeout.
// Always false before the first frame arrives.
func (s *Store) Stale(timeout time.Duration) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.lastFrame.IsZero() {
		return false
	}
	return time.Since(s.lastFrame) > timeout
}

// Snapshot returns a value copy of the full pack state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Snapshot{
		CellVoltages:       s.cells,
		CellCount:          s.cellCount,
		TemperatureC:       s.temperature,
		PackVoltageV:       s.packVoltage,
		BalanceCurrentA:    s.balanceCurrent,
		CurrentSettingA:    s.currentSetting,
		TransceiverPresent: s.transceiverPresent,
	}
}
