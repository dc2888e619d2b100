package bms

import (
	"encoding/binary"
	"sync"

	"github.com/brutella/can"
)

// Decoder reconstructs the pack reading from the multiplexed frame
// stream. Each slave reports up to 3 cells per frame; a per-slave
// cursor tracks where the next reading lands in the cell sequence.
// The protocol carries no sequence numbers, so dropped or reordered
// frames shift a slave's cursor until the next cell-count reset.
type Decoder struct {
	mu      sync.Mutex
	logger  Logger
	store   *Store
	cursors [MaxSlaves]int
}

func NewDecoder(store *Store, logger Logger) *Decoder {
	return &Decoder{
		logger: logger,
		store:  store,
	}
}

// HandleFrame decodes one received frame. Frames shorter than the
// slave/type header are discarded with no state change, as are
// unknown frame types.
func (d *Decoder) HandleFrame(frame can.Frame) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if frame.Length < 2 {
		return nil
	}

	slave := frame.Data[0]

	switch frame.Data[1] {
	case frameTypeCellVoltages:
		d.handleCellBurst(slave, frame)
	case frameTypeBalanceCurrent:
		d.handleBalanceCurrent(frame)
	case frameTypePackVoltage:
		d.handlePackVoltage(frame)
	case frameTypeTemperature:
		d.handleTemperature(frame)
	default:
		// Unknown frame types are a forward-compatible no-op.
		return nil
	}

	d.store.TouchFrame()
	return nil
}

func (d *Decoder) handleCellBurst(slave uint8, frame can.Frame) {
	count := d.store.CellCount()

	for i := 0; i < 3; i++ {
		off := 2 + 2*i
		if int(frame.Length) < off+2 {
			// Truncated burst: keep the readings already decoded.
			break
		}

		mv := binary.LittleEndian.Uint16(frame.Data[off : off+2])
		cursor := d.cursors[slave]
		if cursor >= count {
			cursor = 0
		}
		d.store.SetCell(cursor, float64(mv)/1000.0)
		d.cursors[slave] = (cursor + 1) % count
	}
}

func (d *Decoder) handleBalanceCurrent(frame can.Frame) {
	if frame.Length < 4 {
		return
	}

	mA := binary.LittleEndian.Uint16(frame.Data[2:4])
	d.store.SetBalanceCurrent(float64(mA) / 1000.0)
}

func (d *Decoder) handlePackVoltage(frame can.Frame) {
	if frame.Length < 4 {
		return
	}

	// 10 mV units
	raw := binary.LittleEndian.Uint16(frame.Data[2:4])
	d.store.SetPackVoltage(float64(raw) * 0.01)
}

func (d *Decoder) handleTemperature(frame can.Frame) {
	if frame.Length < 3 {
		return
	}

	d.store.SetTemperature(float64(frame.Data[2]))
}

// SetCellCount applies a new active cell count and resets every
// slave cursor. Stale cursors from a previous configuration must
// never write out of the new bounds.
func (d *Decoder) SetCellCount(n int) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	applied := d.store.SetCellCount(n)
	for i := range d.cursors {
		d.cursors[i] = 0
	}
	return applied
}

// Cursor returns a slave's current write position. Test hook.
func (d *Decoder) Cursor(slave uint8) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cursors[slave]
}
