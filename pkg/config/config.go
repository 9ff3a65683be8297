// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads the imulink YAML configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level imulink configuration
type Config struct {
	Connection ConnectionConfig `yaml:"connection"`
	Poll       PollConfig       `yaml:"poll"`
	Stats      StatsConfig      `yaml:"stats"`
}

// ConnectionConfig selects the serial port or WebSocket bridge
type ConnectionConfig struct {
	Port        string `yaml:"port"`
	Baud        int    `yaml:"baud"`
	URL         string `yaml:"url"`
	Username    string `yaml:"username"`
	NoSSLVerify bool   `yaml:"no_ssl_verify"`
}

// PollConfig holds the request/response loop settings for poll
type PollConfig struct {
	Command  int           `yaml:"command"`
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
	Count    int           `yaml:"count"`
}

// StatsConfig controls the periodic statistics summary
type StatsConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	cfg := Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads and validates the configuration file at path.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(b)
}

// Parse decodes YAML configuration and fills in defaults.
func Parse(b []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}

	cfg.applyDefaults()

	if cfg.Connection.Baud < 0 {
		return Config{}, fmt.Errorf("connection.baud must be positive")
	}
	if cfg.Poll.Command < 0 || cfg.Poll.Command > 0xFF {
		return Config{}, fmt.Errorf("poll.command must fit in a byte (got %d)", cfg.Poll.Command)
	}
	if cfg.Poll.Count < 0 {
		return Config{}, fmt.Errorf("poll.count must be >= 0")
	}
	if cfg.Poll.Interval < 0 || cfg.Poll.Timeout < 0 || cfg.Stats.Interval < 0 {
		return Config{}, fmt.Errorf("durations must be >= 0")
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Connection.Baud == 0 {
		c.Connection.Baud = 115200
	}
	if c.Poll.Command == 0 {
		c.Poll.Command = 0xA0
	}
	if c.Poll.Interval == 0 {
		c.Poll.Interval = 5 * time.Millisecond
	}
	if c.Poll.Timeout == 0 {
		c.Poll.Timeout = 5 * time.Millisecond
	}
	if c.Stats.Interval == 0 {
		c.Stats.Interval = 10 * time.Second
	}
}
