package bms

import (
	"encoding/binary"
	"math"

	"github.com/brutella/can"
)

// Encoder builds and transmits outbound command frames.
type Encoder struct {
	logger Logger
	trx    Transceiver
}

func NewEncoder(trx Transceiver, logger Logger) *Encoder {
	return &Encoder{
		logger: logger,
		trx:    trx,
	}
}

// encodeCurrentFrame builds the 8-byte set-current command: fixed
// slave/type header, milliamp magnitude little-endian at bytes 2..3,
// remaining bytes zero. NaN encodes as 0; the magnitude saturates at
// the 16-bit maximum.
func encodeCurrentFrame(amps float64) can.Frame {
	var mA uint16
	if !math.IsNaN(amps) {
		v := math.Round(amps * 1000.0)
		if v < 0 {
			v = 0
		}
		if v > math.MaxUint16 {
			v = math.MaxUint16
		}
		mA = uint16(v)
	}

	frame := can.Frame{
		ID:     CommandFrameID,
		Length: 8,
	}
	frame.Data[0] = commandSlaveID
	frame.Data[1] = commandTypeSetCurrent
	binary.LittleEndian.PutUint16(frame.Data[2:4], mA)
	return frame
}

// SendCurrentSetpoint transmits a new pack current setpoint. Send
// failures are logged and dropped; the returned error is informative
// only and no retry is attempted.
func (e *Encoder) SendCurrentSetpoint(amps float64) error {
	if e.trx == nil {
		e.logger.Debug("No transceiver, setpoint %.3f A not transmitted", amps)
		return nil
	}

	frame := encodeCurrentFrame(amps)
	DebugCANFrame(e.logger, "TX", frame.ID, frame.Data, frame.Length)

	if err := e.trx.Send(frame); err != nil {
		e.logger.Error("Failed to send current setpoint: %v", err)
		return err
	}
	return nil
}
