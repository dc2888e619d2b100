package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"
)

var (
	version     = flag.Bool("version", false, "Print version info")
	help        = flag.Bool("help", false, "Print help")
	logLevel    = flag.Int("log", 3, "Log level (0=NONE, 1=ERROR, 2=WARN, 3=INFO, 4=DEBUG)")
	configFile  = flag.String("config", "", "Optional YAML config file")
	redisServer = flag.String("redis_server", "127.0.0.1", "Redis server address")
	redisPort   = flag.Int("redis_port", 6379, "Redis server port")
	canDevice   = flag.String("can_device", "can0", "CAN device name")
	httpListen  = flag.String("http_listen", ":8080", "Dashboard listen address")
	nvramPath   = flag.String("nvram", "/var/lib/bms-service/config.bin", "Config region path")
	cellCount   = flag.Int("cells", 16, "Default active cell count (1-32)")
	pollMs      = flag.Int("poll_ms", 200, "Poll period in milliseconds")
	simSeed     = flag.Int64("sim_seed", 0, "Simulator seed (0 = time-based)")
)

const (
	ProjectName    = "bms-service"
	ProjectVersion = "1.0.0"
)

func printVersion() {
	fmt.Printf("%s v%s\n", ProjectName, ProjectVersion)
}

func printHelp() {
	printVersion()
	flag.PrintDefaults()
}

func main() {
	flag.Parse()

	if *version {
		printVersion()
		os.Exit(0)
	}

	if *help {
		printHelp()
		os.Exit(0)
	}

	// Validate log level
	if *logLevel < 0 || *logLevel > 4 {
		log.Fatalf("invalid log level %d", *logLevel)
	}

	opts := &Options{
		LogLevel:        LogLevel(*logLevel),
		RedisServerAddr: *redisServer,
		RedisServerPort: uint16(*redisPort),
		CANDevice:       *canDevice,
		HTTPListen:      *httpListen,
		NVRAMPath:       *nvramPath,
		CellCount:       *cellCount,
		PollInterval:    time.Duration(*pollMs) * time.Millisecond,
		SimSeed:         *simSeed,
	}

	if *configFile != "" {
		cfg, err := LoadConfig(*configFile)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
		if err := cfg.Validate(); err != nil {
			log.Fatalf("invalid config: %v", err)
		}
		cfg.Apply(opts)

		// Explicit flags win over the config file.
		applyFlagOverrides(opts)
	}

	if opts.CellCount < 1 || opts.CellCount > 32 {
		log.Fatalf("invalid cell count %d (must be 1-32)", opts.CellCount)
	}

	app, err := NewMonitorApp(opts)
	if err != nil {
		log.Fatalf("failed to create monitor app: %v", err)
	}
	defer app.Destroy()

	// Handle SIGINT and SIGTERM
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Run until signal received
	<-sigChan
}

func applyFlagOverrides(opts *Options) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "redis_server":
			opts.RedisServerAddr = *redisServer
		case "redis_port":
			opts.RedisServerPort = uint16(*redisPort)
		case "can_device":
			opts.CANDevice = *canDevice
		case "http_listen":
			opts.HTTPListen = *httpListen
		case "nvram":
			opts.NVRAMPath = *nvramPath
		case "cells":
			opts.CellCount = *cellCount
		case "poll_ms":
			opts.PollInterval = time.Duration(*pollMs) * time.Millisecond
		case "sim_seed":
			opts.SimSeed = *simSeed
		}
	})
}
