package bms

import (
	"context"
	"time"
)

// Scheduler arbitrates between interrupt-triggered draining, periodic
// polling and simulation ticking. It is the single writer of the
// telemetry store: all mutation happens on its goroutine.
type Scheduler struct {
	logger    Logger
	store     *Store
	decoder   *Decoder
	simulator *Simulator
	trx       Transceiver
	signal    <-chan struct{}
	interval  time.Duration
	onUpdate  func()
}

// NewScheduler wires the acquisition loop. trx and signal are nil when
// no transceiver was detected; every tick then runs the simulator
// instead. onUpdate fires after each drain or tick and may be nil.
func NewScheduler(store *Store, decoder *Decoder, simulator *Simulator,
	trx Transceiver, signal <-chan struct{}, interval time.Duration,
	onUpdate func(), logger Logger) *Scheduler {

	return &Scheduler{
		logger:    logger,
		store:     store,
		decoder:   decoder,
		simulator: simulator,
		trx:       trx,
		signal:    signal,
		interval:  interval,
		onUpdate:  onUpdate,
	}
}

// Run executes the acquisition loop until ctx is cancelled. Receiving
// the availability signal drains all pending frames and resets the
// poll timer, so a burst of signalled drains does not also trigger a
// redundant poll right after.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-s.signal:
			s.drain()
			ticker.Reset(s.interval)
			s.notify()

		case <-ticker.C:
			if s.trx != nil {
				// Safety net for frames that arrived without a signal.
				s.drain()
			} else {
				s.simulator.Tick()
			}
			s.notify()
		}
	}
}

func (s *Scheduler) drain() {
	for s.trx.ReceivePending() {
		frame, ok := s.trx.ReadFrame()
		if !ok {
			return
		}

		DebugCANFrame(s.logger, "RX", frame.ID, frame.Data, frame.Length)

		if err := s.decoder.HandleFrame(frame); err != nil {
			s.logger.Error("Error decoding frame: %v", err)
		}
	}
}

func (s *Scheduler) notify() {
	if s.onUpdate != nil {
		s.onUpdate()
	}
}
