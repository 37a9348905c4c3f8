// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"errors"
	"fmt"
	"os"

	"brawtl/pkg/log"

	"gopkg.in/yaml.v3"
)

// Config run configuration.
type Config struct {
	Stride       int    `yaml:"stride"`
	Start        int    `yaml:"start"`
	LogDB        string `yaml:"logDB"`
	Verify       bool   `yaml:"verify"`
	MinFreeBytes uint64 `yaml:"minFreeBytes"`
	LogLevel     string `yaml:"logLevel"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Stride:   1,
		Start:    0,
		Verify:   true,
		LogLevel: "info",
	}
}

// Errors.
var (
	ErrInvalidStride = errors.New("stride must be at least 1")
	ErrInvalidStart  = errors.New("start must be in [0, stride)")
)

// Parse unmarshals configYAML on top of the defaults and validates the result.
func Parse(configYAML []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(configYAML, &c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Load reads the config file at path. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		c := Default()
		return &c, nil
	}
	configYAML, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	c, err := Parse(configYAML)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", path, err)
	}
	return c, nil
}

// Validate checks the selection parameters and the log level.
func (c Config) Validate() error {
	if c.Stride < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidStride, c.Stride)
	}
	if c.Start < 0 || c.Start >= c.Stride {
		return fmt.Errorf("%w: start=%d stride=%d", ErrInvalidStart, c.Start, c.Stride)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Level returns the parsed log level.
func (c Config) Level() log.Level {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.LevelInfo
	}
	return level
}
