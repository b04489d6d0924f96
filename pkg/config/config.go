// Package config provides configuration loading and management for skysim.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Rendering parameters
	Rendering struct {
		// Seed initializes the session's random stream
		Seed uint64 `yaml:"seed"`

		// Bands lists the filters to realize and draw, in order
		Bands []string `yaml:"bands"`

		// ConservativeFactor scales the dispatch bounding box
		ConservativeFactor float64 `yaml:"conservativeFactor"`

		// PixelScale is the plate scale in arcseconds per pixel
		PixelScale float64 `yaml:"pixelScale"`

		// MaxStampSide caps postage-stamp sides in pixels
		MaxStampSide int `yaml:"maxStampSide"`

		// ApplySensorModel enables the per-photon silicon draw strategy
		ApplySensorModel bool `yaml:"applySensorModel"`
	} `yaml:"rendering"`

	// Sky background parameters
	Sky struct {
		// LevelPerPixel is the mean sky level in electrons per pixel, per band
		LevelPerPixel map[string]float64 `yaml:"levelPerPixel"`

		// ShotNoise replaces the flat level with per-pixel Poisson draws
		ShotNoise bool `yaml:"shotNoise"`
	} `yaml:"sky"`

	// Checkpoint parameters
	Checkpoint struct {
		// Path is the checkpoint file; empty disables checkpointing
		Path string `yaml:"path"`

		// Cadence is the drawn-object count between periodic checkpoints
		Cadence int `yaml:"cadence"`
	} `yaml:"checkpoint"`

	// Output parameters
	Output struct {
		// Dir receives the FITS images
		Dir string `yaml:"dir"`

		// NameRoot prefixes output image file names; may be empty
		NameRoot string `yaml:"nameRoot"`

		// CentroidBase enables per-source centroid logs with this prefix
		CentroidBase string `yaml:"centroidBase"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Rendering.Seed = 42
	cfg.Rendering.Bands = []string{"u", "g", "r", "i", "z", "y"}
	cfg.Rendering.ConservativeFactor = 10.0
	cfg.Rendering.PixelScale = 0.2
	cfg.Rendering.MaxStampSide = 1400
	cfg.Rendering.ApplySensorModel = false

	cfg.Sky.LevelPerPixel = map[string]float64{}
	cfg.Sky.ShotNoise = false

	cfg.Checkpoint.Path = ""
	cfg.Checkpoint.Cadence = 1000

	cfg.Output.Dir = "output"
	cfg.Output.NameRoot = ""
	cfg.Output.CentroidBase = ""
	cfg.Output.Verbose = true

	return cfg
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
