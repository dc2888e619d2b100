package bms

import "github.com/brutella/can"

// Transceiver is the frame send/receive capability consumed by the
// scheduler and the encoder. Presence is decided once at startup: a
// transceiver that fails to open means the service runs simulated
// until restart.
type Transceiver interface {
	// ReceivePending reports whether at least one frame is queued.
	ReceivePending() bool

	// ReadFrame pops the next queued frame, if any.
	ReadFrame() (can.Frame, bool)

	// Send transmits one frame.
	Send(frame can.Frame) error
}
