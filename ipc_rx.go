package main

import (
	"context"
	"strconv"
	"strings"

	"github.com/go-redis/redis/v8"
)

const ipcCommandChannel = "bms:commands"

// IPCRx accepts configuration commands over Redis pub/sub. Payloads
// are "cell-count <n>" and "current <amps>"; anything else is logged
// and ignored.
type IPCRx struct {
	log    *LeveledLogger
	redis  *redis.Client
	app    *MonitorApp
	ctx    context.Context
	cancel context.CancelFunc

	commandSubscription *redis.PubSub
}

func NewIPCRx(logger *LeveledLogger, redis *redis.Client, app *MonitorApp) *IPCRx {
	ctx, cancel := context.WithCancel(context.Background())

	rx := &IPCRx{
		log:    logger,
		redis:  redis,
		app:    app,
		ctx:    ctx,
		cancel: cancel,
	}

	rx.commandSubscription = rx.redis.Subscribe(rx.ctx, ipcCommandChannel)
	go rx.handleCommandSubscription()

	return rx
}

func (rx *IPCRx) handleCommandSubscription() {
	rx.log.Info("Starting command subscription handler")

	for {
		msg, err := rx.commandSubscription.Receive(rx.ctx)
		if err != nil {
			if err == context.Canceled {
				return
			}
			// Check for closed client - panic to trigger systemd restart
			if err.Error() == "redis: client is closed" {
				rx.log.Error("Redis connection lost on command subscription - restarting service")
				panic("Redis disconnected")
			}
			rx.log.Error("Command subscription error: %v", err)
			continue
		}

		switch m := msg.(type) {
		case *redis.Message:
			rx.log.Debug("Command received: %s", m.Payload)
			rx.handleCommand(m.Payload)

		case *redis.Subscription:
			rx.log.Debug("Command subscription event: %s %s", m.Channel, m.Kind)
		}
	}
}

func (rx *IPCRx) handleCommand(payload string) {
	fields := strings.Fields(payload)
	if len(fields) != 2 {
		rx.log.Warn("Malformed command: %q", payload)
		return
	}

	switch fields[0] {
	case "cell-count":
		n, err := strconv.Atoi(fields[1])
		if err != nil {
			rx.log.Warn("Invalid cell count %q: %v", fields[1], err)
			return
		}
		rx.app.SetCellCount(n)

	case "current":
		amps, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			rx.log.Warn("Invalid current %q: %v", fields[1], err)
			return
		}
		rx.app.SetCurrent(amps)

	default:
		rx.log.Warn("Unknown command: %q", fields[0])
	}
}

func (rx *IPCRx) Destroy() {
	if rx.cancel != nil {
		rx.cancel()
	}
	if rx.commandSubscription != nil {
		rx.commandSubscription.Close()
	}
}
