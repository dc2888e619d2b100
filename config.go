package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// FileConfig is the optional YAML configuration. Zero values mean
// "not set"; Apply only overrides options that are present.
type FileConfig struct {
	Monitor MonitorConfig `yaml:"monitor"`
}

type MonitorConfig struct {
	CANDevice      string `yaml:"can_device"`
	Listen         string `yaml:"listen"`
	RedisServer    string `yaml:"redis_server"`
	RedisPort      int    `yaml:"redis_port"`
	NVRAMPath      string `yaml:"nvram_path"`
	Cells          int    `yaml:"cells"`
	PollIntervalMs int    `yaml:"poll_interval_ms"`
	SimSeed        int64  `yaml:"sim_seed"`
}

func LoadConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %v", path, err)
	}

	cfg := &FileConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %v", path, err)
	}
	return cfg, nil
}

// Validate checks configuration correctness. It does not mutate the
// configuration.
func (c *FileConfig) Validate() error {
	m := &c.Monitor

	if m.Cells != 0 && (m.Cells < 1 || m.Cells > 32) {
		return fmt.Errorf("cells must be in [1,32], got %d", m.Cells)
	}
	if m.PollIntervalMs < 0 {
		return fmt.Errorf("poll_interval_ms must be positive, got %d", m.PollIntervalMs)
	}
	if m.RedisPort < 0 || m.RedisPort > 65535 {
		return fmt.Errorf("redis_port out of range: %d", m.RedisPort)
	}
	return nil
}

// Apply copies the set fields into opts.
func (c *FileConfig) Apply(opts *Options) {
	m := &c.Monitor

	if m.CANDevice != "" {
		opts.CANDevice = m.CANDevice
	}
	if m.Listen != "" {
		opts.HTTPListen = m.Listen
	}
	if m.RedisServer != "" {
		opts.RedisServerAddr = m.RedisServer
	}
	if m.RedisPort != 0 {
		opts.RedisServerPort = uint16(m.RedisPort)
	}
	if m.NVRAMPath != "" {
		opts.NVRAMPath = m.NVRAMPath
	}
	if m.Cells != 0 {
		opts.CellCount = m.Cells
	}
	if m.PollIntervalMs != 0 {
		opts.PollInterval = time.Duration(m.PollIntervalMs) * time.Millisecond
	}
	if m.SimSeed != 0 {
		opts.SimSeed = m.SimSeed
	}
}
