package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"

	"bms-service/bms"

	"github.com/go-redis/redis/v8"
)

const (
	ipcHashKey          = "bms"
	ipcTelemetryChannel = "bms telemetry"
)

type IPCTx struct {
	log   *LeveledLogger
	redis *redis.Client
	mu    sync.Mutex
	ctx   context.Context
}

func NewIPCTx(logger *LeveledLogger, redis *redis.Client) *IPCTx {
	return &IPCTx{
		log:   logger,
		redis: redis,
		ctx:   context.Background(),
	}
}

func (tx *IPCTx) Destroy() {}

// SendSnapshot mirrors the pack state into the bms hash and notifies
// subscribers.
func (tx *IPCTx) SendSnapshot(snap bms.Snapshot) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	cells := make([]float64, snap.CellCount)
	for i := range cells {
		cells[i] = round3(snap.CellVoltages[i])
	}
	cellsJSON, err := json.Marshal(cells)
	if err != nil {
		return fmt.Errorf("failed to encode cell voltages: %v", err)
	}

	min, max := snap.MinMax()

	pipe := tx.redis.Pipeline()

	pipe.HSet(tx.ctx, ipcHashKey, map[string]interface{}{
		"cells":            string(cellsJSON),
		"cell-count":       snap.CellCount,
		"pack-voltage":     round3(snap.PackVoltageV),
		"balance-current":  round3(snap.BalanceCurrentA),
		"temperature":      round1(snap.TemperatureC),
		"current-setpoint": round3(snap.CurrentSettingA),
		"cell-min":         round3(min),
		"cell-max":         round3(max),
		"can":              map[bool]string{true: "yes", false: "no"}[snap.TransceiverPresent],
	})

	pipe.Publish(tx.ctx, ipcTelemetryChannel, nil)

	_, err = pipe.Exec(tx.ctx)
	if err != nil {
		return fmt.Errorf("failed to send snapshot: %v", err)
	}

	return nil
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
