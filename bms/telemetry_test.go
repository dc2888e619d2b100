package bms

import (
	"math"
	"testing"
	"time"
)

func TestStore_CellCountClamp(t *testing.T) {
	tests := []struct {
		in       int
		expected int
	}{
		{0, 1},
		{-3, 1},
		{1, 1},
		{16, 16},
		{32, 32},
		{40, 32},
	}

	for _, tt := range tests {
		store := NewStore(8)
		if got := store.SetCellCount(tt.in); got != tt.expected {
			t.Errorf("SetCellCount(%d): expected %d, got %d", tt.in, tt.expected, got)
		}
	}
}

func TestStore_ShrinkZeroesTail(t *testing.T) {
	store := NewStore(8)
	for i := 0; i < 8; i++ {
		store.SetCell(i, 3.7)
	}

	store.SetCellCount(4)

	snap := store.Snapshot()
	for i := 0; i < 4; i++ {
		if snap.CellVoltages[i] != 3.7 {
			t.Errorf("cell %d: expected 3.7, got %f", i, snap.CellVoltages[i])
		}
	}
	for i := 4; i < MaxCells; i++ {
		if snap.CellVoltages[i] != 0 {
			t.Errorf("cell %d should be zeroed, got %f", i, snap.CellVoltages[i])
		}
	}
}

func TestStore_SetCellOutOfBounds(t *testing.T) {
	store := NewStore(4)

	store.SetCell(4, 3.7)
	store.SetCell(-1, 3.7)

	snap := store.Snapshot()
	for i := range snap.CellVoltages {
		if snap.CellVoltages[i] != 0 {
			t.Errorf("cell %d: out-of-bounds write landed: %f", i, snap.CellVoltages[i])
		}
	}
}

func TestStore_CurrentSettingClamp(t *testing.T) {
	store := NewStore(4)

	if got := store.SetCurrentSetting(5.5); got != 5.5 {
		t.Errorf("expected 5.5, got %f", got)
	}
	if got := store.SetCurrentSetting(-3); got != 0 {
		t.Errorf("negative should clamp to 0, got %f", got)
	}
	if got := store.SetCurrentSetting(math.NaN()); got != 0 {
		t.Errorf("NaN should clamp to 0, got %f", got)
	}
}

func TestSnapshot_Stats(t *testing.T) {
	store := NewStore(4)
	store.SetCell(0, 3.6)
	store.SetCell(1, 3.8)
	store.SetCell(2, 4.0)
	store.SetCell(3, 3.7)

	snap := store.Snapshot()

	if total := snap.Total(); math.Abs(total-15.1) > 1e-9 {
		t.Errorf("total: expected 15.1, got %f", total)
	}
	if avg := snap.Average(); math.Abs(avg-3.775) > 1e-9 {
		t.Errorf("avg: expected 3.775, got %f", avg)
	}
	min, max := snap.MinMax()
	if min != 3.6 || max != 4.0 {
		t.Errorf("min/max: expected 3.6/4.0, got %f/%f", min, max)
	}
	if diff := snap.Diff(); math.Abs(diff-0.4) > 1e-9 {
		t.Errorf("diff: expected 0.4, got %f", diff)
	}
}

func TestStore_TransceiverFlag(t *testing.T) {
	store := NewStore(4)

	if store.Snapshot().TransceiverPresent {
		t.Error("transceiver should default to absent")
	}

	store.MarkTransceiver(true)
	if !store.Snapshot().TransceiverPresent {
		t.Error("transceiver flag not reflected in snapshot")
	}
}

func TestStore_Stale(t *testing.T) {
	store := NewStore(4)

	// Never stale before the first frame.
	if store.Stale(time.Millisecond) {
		t.Error("store should not be stale before first frame")
	}

	store.TouchFrame()
	if store.Stale(time.Minute) {
		t.Error("store stale right after a frame")
	}
}
