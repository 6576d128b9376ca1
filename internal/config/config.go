// Package config holds runtime limits and the optional per-project
// configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// GCMode selects the collector scheduling strategy.
type GCMode string

const (
	GCSync        GCMode = "sync"
	GCIncremental GCMode = "incremental"
	GCConcurrent  GCMode = "concurrent"
)

// GCConfig tunes the garbage collector.
type GCConfig struct {
	Mode       GCMode `yaml:"mode"`
	Trigger    int    `yaml:"trigger"`     // first collection threshold, bytes
	Floor      int    `yaml:"floor"`       // adaptive threshold floor, bytes
	Ceiling    int    `yaml:"ceiling"`     // adaptive threshold ceiling, bytes
	StepBudget int    `yaml:"step_budget"` // incremental trace steps per pulse
}

// Config is the runtime configuration, loadable from sable.yaml.
type Config struct {
	GC          GCConfig `yaml:"gc"`
	Registers   int      `yaml:"registers"`    // initial register file size
	MaxFrames   int      `yaml:"max_frames"`   // call depth limit
	ModulePaths []string `yaml:"module_paths"` // import search path, relative to project root
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		GC: GCConfig{
			Mode:       GCSync,
			Trigger:    DefaultGCTrigger,
			Floor:      GCFloor,
			Ceiling:    GCCeiling,
			StepBudget: DefaultGCStepBudget,
		},
		Registers: DefaultRegisterFileSize,
		MaxFrames: DefaultMaxFrames,
	}
}

// Load reads a YAML configuration file, filling unset fields with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.normalize()
	return cfg, nil
}

// Discover looks for ProjectFileName in dir and its parents. Returns the
// default configuration when no file is found.
func Discover(dir string) (*Config, error) {
	for {
		path := filepath.Join(dir, ProjectFileName)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return Default(), nil
		}
		dir = parent
	}
}

func (c *Config) normalize() {
	if c.GC.Mode == "" {
		c.GC.Mode = GCSync
	}
	if c.GC.Trigger <= 0 {
		c.GC.Trigger = DefaultGCTrigger
	}
	if c.GC.Floor <= 0 {
		c.GC.Floor = GCFloor
	}
	if c.GC.Ceiling < c.GC.Floor {
		c.GC.Ceiling = GCCeiling
	}
	if c.GC.StepBudget <= 0 {
		c.GC.StepBudget = DefaultGCStepBudget
	}
	if c.Registers <= 0 {
		c.Registers = DefaultRegisterFileSize
	}
	if c.MaxFrames <= 0 {
		c.MaxFrames = DefaultMaxFrames
	}
}

// TrimSourceExt removes a recognized source extension from a path.
func TrimSourceExt(path string) string {
	for _, ext := range SourceFileExtensions {
		if filepath.Ext(path) == ext {
			return path[:len(path)-len(ext)]
		}
	}
	return path
}
