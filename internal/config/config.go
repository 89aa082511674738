// Package config provides unified configuration loading for tensionflow.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nvandessel/tensionflow/internal/tension"
	"gopkg.in/yaml.v3"
)

// DirName is the per-user directory holding config and data.
const DirName = ".tensionflow"

// Config contains all tensionflow configuration settings.
type Config struct {
	// Engine contains settings for the propagation engine.
	Engine EngineConfig `json:"engine" yaml:"engine"`

	// Simulation contains defaults for multi-step runs.
	Simulation SimulationConfig `json:"simulation" yaml:"simulation"`

	// Storage configures where networks and step logs are kept.
	Storage StorageConfig `json:"storage" yaml:"storage"`

	// Logging contains settings for operational and step logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// EngineConfig configures the tension engine.
type EngineConfig struct {
	// Damping scales summed edge weights on every step. Default: 0.9.
	Damping float64 `json:"damping" yaml:"damping"`
}

// SimulationConfig configures repeated propagation.
type SimulationConfig struct {
	// Steps is the number of propagation steps when a scenario does not set one.
	Steps int `json:"steps" yaml:"steps"`

	// FlowIterations is the number of update passes for the flow model.
	FlowIterations int `json:"flow_iterations" yaml:"flow_iterations"`
}

// StorageConfig configures on-disk state.
type StorageConfig struct {
	// DataDir holds networks.db and steps.jsonl. Supports ${VAR} expansion.
	DataDir string `json:"data_dir" yaml:"data_dir"`
}

// LoggingConfig configures logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables step logging to <data_dir>/steps.jsonl.
	Level string `json:"level" yaml:"level"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			Damping: tension.DefaultDamping,
		},
		Simulation: SimulationConfig{
			Steps:          5,
			FlowIterations: 3,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns ~/.tensionflow/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, DirName, "config.yaml"), nil
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DirName
	}
	return filepath.Join(home, DirName)
}

// Load loads configuration from path, or from the default location when
// path is empty, and then applies environment variable overrides.
// Order: defaults -> config file -> environment variables.
// A missing default file is not an error; a missing explicit path is.
func Load(path string) (*Config, error) {
	config := Default()

	if path == "" {
		if p, err := DefaultPath(); err == nil {
			if _, statErr := os.Stat(p); statErr == nil {
				path = p
			}
		}
	}

	if path != "" {
		fileConfig, err := LoadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
		config = fileConfig
	}

	applyEnvOverrides(config)

	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	config.Storage.DataDir = expandEnvVars(config.Storage.DataDir)

	return config, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if math.IsNaN(c.Engine.Damping) || math.IsInf(c.Engine.Damping, 0) {
		return fmt.Errorf("damping must be a finite number, got %v", c.Engine.Damping)
	}

	if c.Simulation.Steps < 0 || c.Simulation.Steps > tension.MaxSteps {
		return fmt.Errorf("steps must be between 0 and %d, got %d", tension.MaxSteps, c.Simulation.Steps)
	}

	if c.Simulation.FlowIterations < 0 || c.Simulation.FlowIterations > tension.MaxSteps {
		return fmt.Errorf("flow_iterations must be between 0 and %d, got %d", tension.MaxSteps, c.Simulation.FlowIterations)
	}

	if c.Storage.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("TENSIONFLOW_DAMPING"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Engine.Damping = f
		}
	}

	if v := os.Getenv("TENSIONFLOW_STEPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Simulation.Steps = n
		}
	}

	if v := os.Getenv("TENSIONFLOW_DATA_DIR"); v != "" {
		config.Storage.DataDir = expandEnvVars(v)
	}

	if v := os.Getenv("TENSIONFLOW_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
