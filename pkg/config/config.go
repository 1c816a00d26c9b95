// Package config provides configuration loading and management for tvdenoise.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"tvdenoise/pkg/bilateral"
	"tvdenoise/pkg/tv"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Filter selects the denoising algorithm, either "tv" or "bilateral"
	Filter string `yaml:"filter"`

	// Processing parameters shared by both filters
	Processing struct {
		// Workers specifies how many goroutines process image bands in parallel
		Workers int `yaml:"workers"`

		// Verbose enables debug level logging
		Verbose bool `yaml:"verbose"`
	} `yaml:"processing"`

	// Total variation filter parameters
	TV struct {
		// Weight controls the denoising strength, larger values smooth more
		Weight float64 `yaml:"weight"`

		// Eps is the relative energy tolerance that stops the iteration
		Eps float64 `yaml:"eps"`

		// MaxIterations caps the iteration count when Eps is never reached
		MaxIterations int `yaml:"maxIterations"`
	} `yaml:"tv"`

	// Bilateral filter parameters
	Bilateral struct {
		// WinSize is the odd window edge length in samples
		WinSize int `yaml:"winSize"`

		// SigmaColor is the radiometric standard deviation
		SigmaColor float64 `yaml:"sigmaColor"`

		// SigmaRange is the spatial standard deviation
		SigmaRange float64 `yaml:"sigmaRange"`

		// Bins sets the resolution of the color difference weight table
		Bins int `yaml:"bins"`

		// Mode selects the border handling: constant, wrap, reflect or nearest
		Mode string `yaml:"mode"`

		// CVal is the padding intensity used by the constant border mode
		CVal float64 `yaml:"cval"`
	} `yaml:"bilateral"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Filter = "tv"

	// Set default processing parameters
	cfg.Processing.Workers = runtime.NumCPU() // Use all available cores by default
	cfg.Processing.Verbose = false

	// Mirror the filter package defaults so the config file and the API
	// cannot drift apart.
	tvDefaults := tv.DefaultOptions()
	cfg.TV.Weight = tvDefaults.Weight
	cfg.TV.Eps = tvDefaults.Eps
	cfg.TV.MaxIterations = tvDefaults.MaxIterations

	bilateralDefaults := bilateral.DefaultOptions()
	cfg.Bilateral.WinSize = bilateralDefaults.WinSize
	cfg.Bilateral.SigmaColor = bilateralDefaults.SigmaColor
	cfg.Bilateral.SigmaRange = bilateralDefaults.SigmaRange
	cfg.Bilateral.Bins = bilateralDefaults.Bins
	cfg.Bilateral.Mode = bilateralDefaults.Mode.String()
	cfg.Bilateral.CVal = bilateralDefaults.CVal

	return cfg
}

// TVOptions converts the configuration into total variation filter options.
func (c *Config) TVOptions() tv.Options {
	opts := tv.DefaultOptions()
	opts.Weight = c.TV.Weight
	opts.Eps = c.TV.Eps
	opts.MaxIterations = c.TV.MaxIterations
	opts.Workers = c.Processing.Workers
	return opts
}

// BilateralOptions converts the configuration into bilateral filter options.
// The border mode string is validated here.
func (c *Config) BilateralOptions() (bilateral.Options, error) {
	mode, err := bilateral.ParseMode(c.Bilateral.Mode)
	if err != nil {
		return bilateral.Options{}, err
	}

	opts := bilateral.DefaultOptions()
	opts.WinSize = c.Bilateral.WinSize
	opts.SigmaColor = c.Bilateral.SigmaColor
	opts.SigmaRange = c.Bilateral.SigmaRange
	opts.Bins = c.Bilateral.Bins
	opts.Mode = mode
	opts.CVal = c.Bilateral.CVal
	opts.Workers = c.Processing.Workers
	return opts, nil
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
