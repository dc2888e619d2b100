package main

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"bms-service/bms"

	"github.com/go-redis/redis/v8"
)

// Timeout for stale telemetry (no frames decoded in this time while a
// transceiver is present).
const TelemetryStaleTimeout = 2 * time.Second

type MonitorApp struct {
	log     *LeveledLogger
	redis   *redis.Client
	store   *bms.Store
	decoder *bms.Decoder
	encoder *bms.Encoder
	sim     *bms.Simulator
	sched   *bms.Scheduler
	trx     *bms.CANTransceiver
	config  *bms.ConfigStore
	ipcTx   *IPCTx
	ipcRx   *IPCRx
	diag    *Diag
	web     *WebServer
	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewMonitorApp(opts *Options) (*MonitorApp, error) {
	ctx, cancel := context.WithCancel(context.Background())

	app := &MonitorApp{
		log:    NewLeveledLogger(log.New(log.Writer(), fmt.Sprintf("BMS: %s ", ProjectName), log.LstdFlags), opts.LogLevel),
		ctx:    ctx,
		cancel: cancel,
	}

	// Initialize Redis client with timeouts
	app.redis = redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", opts.RedisServerAddr, opts.RedisServerPort),
		Password:     "",
		DB:           0,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	connectCtx, connectCancel := context.WithTimeout(ctx, 5*time.Second)
	defer connectCancel()

	app.log.Info("Connecting to Redis at %s:%d...", opts.RedisServerAddr, opts.RedisServerPort)

	if err := app.redis.Ping(connectCtx).Err(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to connect to Redis: %v", err)
	}
	app.log.Info("Successfully connected to Redis")

	// Telemetry store seeded with the configured default cell count,
	// then overridden by the persisted configuration if present.
	app.store = bms.NewStore(opts.CellCount)

	storage, err := bms.OpenFileStorage(opts.NVRAMPath)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open config region: %v", err)
	}
	app.config = bms.NewConfigStore(storage, app.log)
	if err := app.config.Load(app.store); err != nil {
		// Non-fatal: run with in-memory defaults.
		app.log.Error("Failed to load persisted config: %v", err)
	}

	// Startup transceiver probe. Failure here is permanent: the
	// service runs simulated until restart.
	var (
		trxIface bms.Transceiver
		signal   <-chan struct{}
	)
	trx, err := bms.NewCANTransceiver(opts.CANDevice, app.log)
	if err != nil {
		app.log.Warn("No CAN transceiver on %s (%v), running simulated", opts.CANDevice, err)
	} else {
		app.trx = trx
		trxIface = trx
		signal = trx.FrameAvailable()
		app.log.Info("CAN transceiver initialized on %s", opts.CANDevice)
	}
	app.store.MarkTransceiver(app.trx != nil)

	app.decoder = bms.NewDecoder(app.store, app.log)
	app.sim = bms.NewSimulator(app.store, opts.SimSeed)
	app.encoder = bms.NewEncoder(trxIface, app.log)

	app.ipcTx = NewIPCTx(app.log, app.redis)
	app.log.Info("IPC TX component initialized")

	app.diag = NewDiag(app.log, app.redis)
	app.log.Info("Diagnostics component initialized")

	// Write initial state to Redis before serving anything.
	if err := app.ipcTx.SendSnapshot(app.store.Snapshot()); err != nil {
		app.log.Error("Failed to write initial Redis state: %v", err)
	}

	// The web server must exist before the scheduler starts: the
	// update callback broadcasts to its subscribers.
	app.web = NewWebServer(app.log, app, opts.HTTPListen)
	go func() {
		if err := app.web.Serve(); err != nil {
			app.log.Error("Dashboard server stopped: %v", err)
		}
	}()
	app.log.Info("Dashboard listening on %s", opts.HTTPListen)

	app.sched = bms.NewScheduler(app.store, app.decoder, app.sim,
		trxIface, signal, opts.PollInterval, app.handleUpdate, app.log)
	go app.sched.Run(ctx)
	app.log.Info("Acquisition scheduler started (poll %v)", opts.PollInterval)

	app.ipcRx = NewIPCRx(app.log, app.redis, app)
	if app.ipcRx == nil {
		app.Destroy()
		return nil, fmt.Errorf("failed to initialize IPC RX")
	}
	app.log.Info("IPC RX component initialized")

	// Start health check goroutine
	go app.redisHealthCheck()

	return app, nil
}

// handleUpdate runs on the scheduler goroutine after every drain or
// simulation tick.
func (app *MonitorApp) handleUpdate() {
	snap := app.store.Snapshot()

	if err := app.ipcTx.SendSnapshot(snap); err != nil {
		app.log.Error("Failed to mirror snapshot: %v", err)
	}

	if snap.TransceiverPresent {
		app.diag.SetCondition(CondTelemetryStale, app.store.Stale(TelemetryStaleTimeout))
	}

	app.web.Broadcast()
}

// Snapshot returns the current pack state.
func (app *MonitorApp) Snapshot() bms.Snapshot {
	return app.store.Snapshot()
}

// SetCellCount applies a new active cell count (clamped to [1,32]),
// resets the decode cursors and persists the result.
func (app *MonitorApp) SetCellCount(n int) int {
	app.mu.Lock()
	defer app.mu.Unlock()

	applied := app.decoder.SetCellCount(n)
	app.log.Info("Active cell count set to %d", applied)

	if err := app.config.Save(applied, app.store.CurrentSetting()); err != nil {
		app.log.Error("Failed to persist cell count: %v", err)
	}
	return applied
}

// SetCurrent applies a new pack current setpoint, transmits it to the
// external controller and persists it. Send failures are logged and
// dropped.
func (app *MonitorApp) SetCurrent(amps float64) float64 {
	app.mu.Lock()
	defer app.mu.Unlock()

	applied := app.store.SetCurrentSetting(amps)
	app.log.Info("Current setpoint set to %.3f A", applied)

	if err := app.encoder.SendCurrentSetpoint(applied); err != nil {
		app.diag.SetCondition(CondSendFailure, true)
	} else {
		app.diag.SetCondition(CondSendFailure, false)
	}

	if err := app.config.Save(app.store.CellCount(), applied); err != nil {
		app.log.Error("Failed to persist current setpoint: %v", err)
	}
	return applied
}

func (app *MonitorApp) redisHealthCheck() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-app.ctx.Done():
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(app.ctx, 2*time.Second)
			if err := app.redis.Ping(ctx).Err(); err != nil {
				app.log.Error("Redis health check failed: %v", err)
			}
			cancel()
		}
	}
}

func (app *MonitorApp) Destroy() {
	app.mu.Lock()
	defer app.mu.Unlock()

	app.log.Info("Shutting down monitor application...")

	if app.cancel != nil {
		app.cancel()
	}

	if app.ipcRx != nil {
		app.ipcRx.Destroy()
		app.log.Info("IPC RX shutdown complete")
	}

	if app.web != nil {
		app.web.Shutdown()
		app.log.Info("Dashboard shutdown complete")
	}

	if app.trx != nil {
		if err := app.trx.Close(); err != nil {
			app.log.Error("Error closing CAN transceiver: %v", err)
		} else {
			app.log.Info("CAN transceiver closed")
		}
	}

	if app.diag != nil {
		app.diag.Destroy()
		app.log.Info("Diagnostics shutdown complete")
	}

	if app.ipcTx != nil {
		app.ipcTx.Destroy()
		app.log.Info("IPC TX shutdown complete")
	}

	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.log.Error("Error closing Redis connection: %v", err)
		} else {
			app.log.Info("Redis connection closed")
		}
	}

	app.log.Info("Monitor application shutdown complete")
}
