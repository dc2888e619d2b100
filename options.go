package main

import (
	"log"
	"time"
)

type LogLevel int

const (
	LogLevelNone  LogLevel = 0
	LogLevelError LogLevel = 1
	LogLevelWarn  LogLevel = 2
	LogLevelInfo  LogLevel = 3
	LogLevelDebug LogLevel = 4
)

type Options struct {
	LogLevel        LogLevel
	RedisServerAddr string
	RedisServerPort uint16
	CANDevice       string
	HTTPListen      string
	NVRAMPath       string
	CellCount       int
	PollInterval    time.Duration
	SimSeed         int64
	Logger          *log.Logger
}
