package main

import (
	"context"
	"sync"

	"github.com/go-redis/redis/v8"
)

const (
	diagGroupName           = "bms"
	diagConditionSetKey     = "bms:conditions"
	diagEventStream         = "events:bms"
	diagEventStreamMaxLen   = 1000
	diagNotificationChannel = "bms"
)

// Condition is a reportable operational condition.
type Condition int

const (
	CondNone Condition = iota
	CondTelemetryStale
	CondSendFailure
)

var conditionDescriptions = map[Condition]string{
	CondTelemetryStale: "No telemetry frames received",
	CondSendFailure:    "Command frame transmission failed",
}

// Diag tracks operational conditions and reports transitions to Redis
// (membership set, event stream, notification channel).
type Diag struct {
	log    *LeveledLogger
	redis  *redis.Client
	mu     sync.RWMutex
	states map[Condition]bool
	ctx    context.Context
}

func NewDiag(logger *LeveledLogger, redis *redis.Client) *Diag {
	return &Diag{
		log:    logger,
		redis:  redis,
		states: make(map[Condition]bool),
		ctx:    context.Background(),
	}
}

func (d *Diag) Destroy() {}

// SetCondition records a condition transition. Repeated reports of an
// unchanged state are dropped.
func (d *Diag) SetCondition(cond Condition, present bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if cond == CondNone {
		return
	}

	if d.states[cond] == present {
		return
	}
	d.states[cond] = present

	desc, ok := conditionDescriptions[cond]
	if !ok {
		d.log.Warn("Unknown condition code: %d", cond)
		return
	}

	if present {
		d.log.Warn("Condition set: code=%d, description=%s", cond, desc)
		d.reportConditionPresent(cond, desc)
	} else {
		d.log.Info("Condition cleared: code=%d, description=%s", cond, desc)
		d.reportConditionAbsent(cond)
	}
}

func (d *Diag) reportConditionPresent(cond Condition, desc string) {
	pipe := d.redis.Pipeline()

	pipe.SAdd(d.ctx, diagConditionSetKey, int(cond))

	pipe.XAdd(d.ctx, &redis.XAddArgs{
		Stream: diagEventStream,
		MaxLen: diagEventStreamMaxLen,
		Values: map[string]interface{}{
			"group":       diagGroupName,
			"code":        int(cond),
			"description": desc,
		},
	})

	pipe.Publish(d.ctx, diagNotificationChannel, "condition")

	if _, err := pipe.Exec(d.ctx); err != nil {
		d.log.Error("Failed to report condition present: %v", err)
	}
}

func (d *Diag) reportConditionAbsent(cond Condition) {
	pipe := d.redis.Pipeline()

	pipe.SRem(d.ctx, diagConditionSetKey, int(cond))

	pipe.XAdd(d.ctx, &redis.XAddArgs{
		Stream: diagEventStream,
		MaxLen: diagEventStreamMaxLen,
		Values: map[string]interface{}{
			"group": diagGroupName,
			"code":  -int(cond),
		},
	})

	pipe.Publish(d.ctx, diagNotificationChannel, "condition")

	if _, err := pipe.Exec(d.ctx); err != nil {
		d.log.Error("Failed to report condition absent: %v", err)
	}
}
