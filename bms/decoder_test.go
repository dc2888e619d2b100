package bms

import (
	"encoding/binary"
	"testing"

	"github.com/brutella/can"
)

// testLogger implements Logger for testing
type testLogger struct{}

func (l *testLogger) Printf(format string, v ...interface{}) {}
func (l *testLogger) Debug(format string, v ...interface{})  {}
func (l *testLogger) Info(format string, v ...interface{})   {}
func (l *testLogger) Warn(format string, v ...interface{})   {}
func (l *testLogger) Error(format string, v ...interface{})  {}
func (l *testLogger) DebugCAN(direction string, id uint32, data []byte, length uint8) {
}

func makeCANFrame(id uint32, data []byte) can.Frame {
	f := can.Frame{
		ID:     id,
		Length: uint8(len(data)),
	}
	copy(f.Data[:], data)
	return f
}

func makeCellBurst(slave uint8, mv ...uint16) can.Frame {
	data := make([]byte, 2+2*len(mv))
	data[0] = slave
	data[1] = frameTypeCellVoltages
	for i, v := range mv {
		binary.LittleEndian.PutUint16(data[2+2*i:4+2*i], v)
	}
	return makeCANFrame(0x100, data)
}

func newTestDecoder(cellCount int) (*Decoder, *Store) {
	store := NewStore(cellCount)
	return NewDecoder(store, &testLogger{}), store
}

func TestDecoder_ShortFrame(t *testing.T) {
	d, store := newTestDecoder(12)
	before := store.Snapshot()

	for _, data := range [][]byte{{}, {0x05}} {
		if err := d.HandleFrame(makeCANFrame(0x100, data)); err != nil {
			t.Fatalf("HandleFrame error: %v", err)
		}
	}

	if store.Snapshot() != before {
		t.Error("short frame must not change the snapshot")
	}
	if d.Cursor(0x05) != 0 {
		t.Errorf("cursor should stay 0, got %d", d.Cursor(0x05))
	}
}

func TestDecoder_CellBurst(t *testing.T) {
	d, store := newTestDecoder(12)

	err := d.HandleFrame(makeCellBurst(5, 3712, 3698, 4012))
	if err != nil {
		t.Fatalf("HandleFrame error: %v", err)
	}

	want := []float64{3.712, 3.698, 4.012}
	for i, w := range want {
		if got := store.Cell(i); got != w {
			t.Errorf("cell %d: expected %f, got %f", i, w, got)
		}
	}
	if d.Cursor(5) != 3 {
		t.Errorf("cursor: expected 3, got %d", d.Cursor(5))
	}
}

func TestDecoder_CellBurstWrap(t *testing.T) {
	d, store := newTestDecoder(4)

	d.HandleFrame(makeCellBurst(2, 3600, 3610, 3620))
	d.HandleFrame(makeCellBurst(2, 3630, 3640, 3650))

	// Second burst writes index 3, then wraps to 0, 1.
	if got := store.Cell(3); got != 3.630 {
		t.Errorf("cell 3: expected 3.630, got %f", got)
	}
	if got := store.Cell(0); got != 3.640 {
		t.Errorf("cell 0: expected 3.640, got %f", got)
	}
	if got := store.Cell(1); got != 3.650 {
		t.Errorf("cell 1: expected 3.650, got %f", got)
	}
	if d.Cursor(2) != 2 {
		t.Errorf("cursor: expected 2, got %d", d.Cursor(2))
	}
}

func TestDecoder_TruncatedBurst(t *testing.T) {
	d, store := newTestDecoder(12)

	// Room for two readings only.
	frame := makeCellBurst(7, 3712, 3698, 4012)
	frame.Length = 6

	if err := d.HandleFrame(frame); err != nil {
		t.Fatalf("HandleFrame error: %v", err)
	}

	if got := store.Cell(0); got != 3.712 {
		t.Errorf("cell 0: expected 3.712, got %f", got)
	}
	if got := store.Cell(1); got != 3.698 {
		t.Errorf("cell 1: expected 3.698, got %f", got)
	}
	if got := store.Cell(2); got != 0 {
		t.Errorf("cell 2 should stay 0, got %f", got)
	}
	if d.Cursor(7) != 2 {
		t.Errorf("cursor: expected 2, got %d", d.Cursor(7))
	}
}

func TestDecoder_BalanceCurrent(t *testing.T) {
	d, store := newTestDecoder(12)

	data := []byte{0x01, frameTypeBalanceCurrent, 0, 0}
	binary.LittleEndian.PutUint16(data[2:4], 2500)

	if err := d.HandleFrame(makeCANFrame(0x100, data)); err != nil {
		t.Fatalf("HandleFrame error: %v", err)
	}

	if got := store.Snapshot().BalanceCurrentA; got != 2.5 {
		t.Errorf("balance current: expected 2.5, got %f", got)
	}
}

func TestDecoder_BalanceCurrentShort(t *testing.T) {
	d, store := newTestDecoder(12)

	if err := d.HandleFrame(makeCANFrame(0x100, []byte{0x01, frameTypeBalanceCurrent, 0xFF})); err != nil {
		t.Fatalf("HandleFrame error: %v", err)
	}

	if got := store.Snapshot().BalanceCurrentA; got != 0 {
		t.Errorf("short frame must not set balance current, got %f", got)
	}
}

func TestDecoder_PackVoltage(t *testing.T) {
	d, store := newTestDecoder(12)

	data := []byte{0x01, frameTypePackVoltage, 0, 0}
	binary.LittleEndian.PutUint16(data[2:4], 4815) // 10 mV units

	if err := d.HandleFrame(makeCANFrame(0x100, data)); err != nil {
		t.Fatalf("HandleFrame error: %v", err)
	}

	if got := store.Snapshot().PackVoltageV; got != 48.15 {
		t.Errorf("pack voltage: expected 48.15, got %f", got)
	}
}

func TestDecoder_Temperature(t *testing.T) {
	d, store := newTestDecoder(12)

	if err := d.HandleFrame(makeCANFrame(0x100, []byte{0x01, frameTypeTemperature, 42})); err != nil {
		t.Fatalf("HandleFrame error: %v", err)
	}

	if got := store.Temperature(); got != 42.0 {
		t.Errorf("temperature: expected 42, got %f", got)
	}
}

func TestDecoder_TemperatureShort(t *testing.T) {
	d, store := newTestDecoder(12)

	if err := d.HandleFrame(makeCANFrame(0x100, []byte{0x01, frameTypeTemperature})); err != nil {
		t.Fatalf("HandleFrame error: %v", err)
	}

	if got := store.Temperature(); got != 0 {
		t.Errorf("short frame must not set temperature, got %f", got)
	}
}

func TestDecoder_UnknownType(t *testing.T) {
	d, store := newTestDecoder(12)
	before := store.Snapshot()

	if err := d.HandleFrame(makeCANFrame(0x100, []byte{0x01, 0x7F, 1, 2, 3, 4})); err != nil {
		t.Fatalf("unknown type should not error, got: %v", err)
	}

	if store.Snapshot() != before {
		t.Error("unknown frame type must not change the snapshot")
	}
}

func TestDecoder_CellCountChangeResetsCursors(t *testing.T) {
	d, store := newTestDecoder(12)

	d.HandleFrame(makeCellBurst(9, 3700, 3700, 3700))
	if d.Cursor(9) != 3 {
		t.Fatalf("cursor: expected 3, got %d", d.Cursor(9))
	}

	if applied := d.SetCellCount(8); applied != 8 {
		t.Fatalf("SetCellCount: expected 8, got %d", applied)
	}
	if d.Cursor(9) != 0 {
		t.Errorf("cursor should reset to 0, got %d", d.Cursor(9))
	}

	// Cells beyond the new count read as zero.
	snap := store.Snapshot()
	for i := 8; i < MaxCells; i++ {
		if snap.CellVoltages[i] != 0 {
			t.Errorf("cell %d should be zeroed after shrink, got %f", i, snap.CellVoltages[i])
		}
	}

	// The next burst for the same slave starts at index 0.
	d.HandleFrame(makeCellBurst(9, 3800, 3810, 3820))
	if got := store.Cell(0); got != 3.800 {
		t.Errorf("cell 0: expected 3.800 after reset, got %f", got)
	}
}
