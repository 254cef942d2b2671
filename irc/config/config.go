// Copyright (c) 2016-2017 Daniel Oaks <daniel@danieloaks.net>
// released under the MIT license

// Package config loads the daemon's TOML configuration file: the
// single uplink it dials and the plugins it loads at startup (spec §6).
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config is the top-level shape of etc/nero.toml.
type Config struct {
	Uplink  Uplink         `toml:"uplink"`
	Plugins []PluginConfig `toml:"plugins"`
}

// Uplink describes the single server this daemon links to.
type Uplink struct {
	IP          string `toml:"ip"`
	Port        int    `toml:"port"`
	Protocol    string `toml:"protocol"`
	Hostname    string `toml:"hostname"`
	Description string `toml:"description"`
	SendPass    string `toml:"send_pass"`
	RecvPass    string `toml:"recv_pass"`
	Numeric     string `toml:"numeric"`
}

// PluginConfig names a plugin shared object to load at startup.
type PluginConfig struct {
	File string `toml:"file"`
	Load bool   `toml:"load"`
}

// DefaultPath is where the daemon looks for its config file if none is
// given explicitly on the command line.
const DefaultPath = "etc/nero.toml"

// Load reads and parses the TOML config file at path.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	var cfg Config
	if _, err := toml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if cfg.Uplink.Numeric == "" {
		return nil, fmt.Errorf("config: %s: uplink.numeric is required", path)
	}

	return &cfg, nil
}

// Protocol returns the configured uplink's wire protocol name (only
// "p10" is implemented). It loads and validates the whole file through
// Load, so it fails wherever Load does.
func Protocol(path string) (string, error) {
	cfg, err := Load(path)
	if err != nil {
		return "", err
	}
	return cfg.Uplink.Protocol, nil
}
