package bms

const (
	// Pack geometry limits. Buffers are sized to these at allocation
	// time; cell count is configurable within [1, MaxCells].
	MaxCells  = 32
	MaxSlaves = 256

	// Frame type tags (payload byte 1). Byte 0 carries the slave id.
	frameTypeCellVoltages   = 0x00
	frameTypeBalanceCurrent = 0x08
	frameTypePackVoltage    = 0x09
	frameTypeTemperature    = 0x0A

	// Outbound set-current command
	CommandFrameID        = 0x2C0
	commandSlaveID        = 0x00
	commandTypeSetCurrent = 0x01

	// Simulated telemetry bounds
	SimMinCellVoltage = 3.60
	SimMaxCellVoltage = 4.20
	SimMinTemperature = 20.0
	SimMaxTemperature = 55.0
)

// Snapshot is a value copy of the pack state, safe to hand to the
// serving layer while acquisition continues.
type Snapshot struct {
	CellVoltages       [MaxCells]float64
	CellCount          int
	TemperatureC       float64
	PackVoltageV       float64
	BalanceCurrentA    float64
	CurrentSettingA    float64
	TransceiverPresent bool
}

// Total returns the summed voltage of the active cells.
func (s *Snapshot) Total() float64 {
	total := 0.0
	for i := 0; i < s.CellCount; i++ {
		total += s.CellVoltages[i]
	}
	return total
}

// Average returns the mean active-cell voltage.
func (s *Snapshot) Average() float64 {
	if s.CellCount == 0 {
		return 0
	}
	return s.Total() / float64(s.CellCount)
}

// MinMax returns the lowest and highest active-cell voltages.
func (s *Snapshot) MinMax() (min, max float64) {
	if s.CellCount == 0 {
		return 0, 0
	}
	min, max = s.CellVoltages[0], s.CellVoltages[0]
	for i := 1; i < s.CellCount; i++ {
		v := s.CellVoltages[i]
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}

// Diff returns the spread between the highest and lowest cell.
func (s *Snapshot) Diff() float64 {
	min, max := s.MinMax()
	return max - min
}
