package bms

import (
	"fmt"

	"github.com/brutella/can"
)

const rxQueueSize = 64

// CANTransceiver adapts a SocketCAN bus to the Transceiver capability.
// The bus callback plays the interrupt role: it only enqueues the
// frame and raises the availability signal, no decoding and no
// blocking happens there. The foreground scheduler drains the queue.
type CANTransceiver struct {
	logger Logger
	bus    *can.Bus
	frames chan can.Frame
	notify chan struct{}
}

// NewCANTransceiver opens the named CAN interface. An open failure is
// the startup probe result: the caller falls back to simulation.
func NewCANTransceiver(device string, logger Logger) (*CANTransceiver, error) {
	bus, err := can.NewBusForInterfaceWithName(device)
	if err != nil {
		return nil, fmt.Errorf("failed to open CAN interface %s: %v", device, err)
	}

	t := &CANTransceiver{
		logger: logger,
		bus:    bus,
		frames: make(chan can.Frame, rxQueueSize),
		notify: make(chan struct{}, 1),
	}

	bus.Subscribe(t)

	go func() {
		if err := bus.ConnectAndPublish(); err != nil {
			logger.Error("CAN bus receive loop ended: %v", err)
		}
	}()

	return t, nil
}

// Handle runs on the bus receive goroutine. A full queue drops the
// frame; the signal channel holds at most one pending notification
// since only "frames are available" matters, not how many.
func (t *CANTransceiver) Handle(frame can.Frame) {
	select {
	case t.frames <- frame:
	default:
		return
	}

	select {
	case t.notify <- struct{}{}:
	default:
	}
}

// FrameAvailable is the edge-triggered availability signal consumed
// by the scheduler.
func (t *CANTransceiver) FrameAvailable() <-chan struct{} {
	return t.notify
}

func (t *CANTransceiver) ReceivePending() bool {
	return len(t.frames) > 0
}

func (t *CANTransceiver) ReadFrame() (can.Frame, bool) {
	select {
	case frame := <-t.frames:
		return frame, true
	default:
		return can.Frame{}, false
	}
}

func (t *CANTransceiver) Send(frame can.Frame) error {
	return t.bus.Publish(frame)
}

func (t *CANTransceiver) Close() error {
	return t.bus.Disconnect()
}
