package bms

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/brutella/can"
)

// fakeTransceiver queues frames in memory and records sends.
type fakeTransceiver struct {
	frames  []can.Frame
	sent    []can.Frame
	sendErr error
}

func (f *fakeTransceiver) ReceivePending() bool {
	return len(f.frames) > 0
}

func (f *fakeTransceiver) ReadFrame() (can.Frame, bool) {
	if len(f.frames) == 0 {
		return can.Frame{}, false
	}
	frame := f.frames[0]
	f.frames = f.frames[1:]
	return frame, true
}

func (f *fakeTransceiver) Send(frame can.Frame) error {
	f.sent = append(f.sent, frame)
	return f.sendErr
}

func TestScheduler_DrainDecodesAllPending(t *testing.T) {
	d, store := newTestDecoder(12)
	trx := &fakeTransceiver{
		frames: []can.Frame{
			makeCellBurst(1, 3700, 3710, 3720),
			makeCellBurst(1, 3730, 3740, 3750),
		},
	}

	s := NewScheduler(store, d, nil, trx, nil, time.Second, nil, &testLogger{})
	s.drain()

	if trx.ReceivePending() {
		t.Error("drain left frames pending")
	}
	if got := store.Cell(5); got != 3.750 {
		t.Errorf("cell 5: expected 3.750, got %f", got)
	}
	if d.Cursor(1) != 6 {
		t.Errorf("cursor: expected 6, got %d", d.Cursor(1))
	}
}

func TestScheduler_SignalTriggersDrain(t *testing.T) {
	d, store := newTestDecoder(12)
	trx := &fakeTransceiver{
		frames: []can.Frame{makeCellBurst(2, 4012, 4013, 4014)},
	}

	signal := make(chan struct{}, 1)
	signal <- struct{}{}

	done := make(chan struct{})
	var updates int32
	onUpdate := func() {
		if atomic.AddInt32(&updates, 1) == 1 {
			close(done)
		}
	}

	// Long poll period: only the signal can cause the drain.
	s := NewScheduler(store, d, nil, trx, signal, time.Hour, onUpdate, &testLogger{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not react to the frame signal")
	}

	if got := store.Cell(0); got != 4.012 {
		t.Errorf("cell 0: expected 4.012, got %f", got)
	}
}

func TestScheduler_SimulatedWhenAbsent(t *testing.T) {
	store := NewStore(4)
	d := NewDecoder(store, &testLogger{})
	sim := NewSimulator(store, 1)

	done := make(chan struct{})
	var updates int32
	onUpdate := func() {
		if atomic.AddInt32(&updates, 1) == 3 {
			close(done)
		}
	}

	s := NewScheduler(store, d, sim, nil, nil, 5*time.Millisecond, onUpdate, &testLogger{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not tick the simulator")
	}

	snap := store.Snapshot()
	if snap.TransceiverPresent {
		t.Error("transceiver must read absent in simulated mode")
	}
	for c := 0; c < 4; c++ {
		if snap.CellVoltages[c] < SimMinCellVoltage {
			t.Errorf("cell %d not simulated: %f", c, snap.CellVoltages[c])
		}
	}
}

func TestScheduler_StopsOnCancel(t *testing.T) {
	store := NewStore(4)
	s := NewScheduler(store, NewDecoder(store, &testLogger{}), NewSimulator(store, 1),
		nil, nil, time.Millisecond, nil, &testLogger{})

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(stopped)
	}()

	cancel()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop on cancel")
	}
}
