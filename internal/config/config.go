// Package config loads the server configuration from a YAML file.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Launch   LaunchConfig   `yaml:"launch"`
}

type ServerConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	PathPrefix string `yaml:"path_prefix"`
	APIToken   string `yaml:"api_token"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type LaunchConfig struct {
	RangeLo             int   `yaml:"range_lo"`
	RangeHi             int   `yaml:"range_hi"`
	BasePort            int   `yaml:"base_port"`
	PortOffset          int   `yaml:"port_offset"`
	TimeoutSeconds      int   `yaml:"timeout_seconds"`
	StartupGraceSeconds int   `yaml:"startup_grace_seconds"`
	KillOnRollback      bool  `yaml:"kill_on_rollback"`
	UsePTY              bool  `yaml:"use_pty"`
	ReservedPorts       []int `yaml:"reserved_ports"`
}

// Timeout returns the per-instance launch timeout.
func (c *LaunchConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// StartupGrace returns how long a process must survive to count as started.
func (c *LaunchConfig) StartupGrace() time.Duration {
	return time.Duration(c.StartupGraceSeconds) * time.Second
}

func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	}

	setDefaults(&cfg)

	return &cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 7700
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./data/launches.db"
	}
	if cfg.Launch.RangeLo == 0 {
		cfg.Launch.RangeLo = 8000
	}
	if cfg.Launch.RangeHi == 0 {
		cfg.Launch.RangeHi = 9000
	}
	if cfg.Launch.BasePort == 0 {
		cfg.Launch.BasePort = 8000
	}
	if cfg.Launch.PortOffset == 0 {
		cfg.Launch.PortOffset = 10
	}
	if cfg.Launch.TimeoutSeconds == 0 {
		cfg.Launch.TimeoutSeconds = 120
	}
	if cfg.Launch.StartupGraceSeconds == 0 {
		cfg.Launch.StartupGraceSeconds = 3
	}
}
