// Package config provides configuration loading and management for the
// segmentation pipeline. It handles loading configuration from YAML files
// and provides default values matching the published experiment settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the pipeline configuration loaded from YAML.
type Config struct {
	// Tiling parameters
	Tiling struct {
		// TileSize is the side length of each inference tile in pixels.
		TileSize int `yaml:"tileSize"`

		// OverlapFactor is the fraction of each tile shared with its
		// neighbor, 0 <= overlapFactor < 1.
		OverlapFactor float64 `yaml:"overlapFactor"`

		// ReduceFactor is the integer downscale divisor applied before
		// threshold tuning. 1 disables downscaling.
		ReduceFactor int `yaml:"reduceFactor"`
	} `yaml:"tiling"`

	// Inference parameters
	Inference struct {
		// BatchSize is the number of tiles grouped into one model call.
		BatchSize int `yaml:"batchSize"`

		// UseTTA averages predictions over flip augmentations.
		UseTTA bool `yaml:"useTTA"`

		// UseFullSize scores on full-resolution masks instead of the
		// downscaled threshold-search path.
		UseFullSize bool `yaml:"useFullSize"`

		// GlobalThreshold, when set, overrides per-image threshold
		// tuning with a fixed binarization cutoff.
		GlobalThreshold *float64 `yaml:"globalThreshold"`

		// ThresholdStep is the grid spacing of the threshold search.
		ThresholdStep float64 `yaml:"thresholdStep"`
	} `yaml:"inference"`

	// Model identity, used to key the weights artifacts.
	Model struct {
		// Decoder is the decoder architecture name, e.g. "Unet".
		Decoder string `yaml:"decoder"`

		// Encoder is the pretrained encoder name, e.g. "efficientnet-b1".
		Encoder string `yaml:"encoder"`
	} `yaml:"model"`

	// Cross-validation parameters
	CrossValidation struct {
		// FoldColumn is the metadata column holding fold assignments.
		FoldColumn string `yaml:"foldColumn"`

		// SelectedFolds lists the fold indices to run, ascending.
		SelectedFolds []int `yaml:"selectedFolds"`

		// Epochs is forwarded to the training collaborator.
		Epochs int `yaml:"epochs"`
	} `yaml:"crossValidation"`

	// Paths to dataset inputs and run outputs.
	Paths struct {
		// DataDir holds the metadata and ground-truth CSVs.
		DataDir string `yaml:"dataDir"`

		// SlideDir holds the whole-slide images.
		SlideDir string `yaml:"slideDir"`

		// LogDir receives weights, prediction artifacts and previews.
		// Empty disables artifact output.
		LogDir string `yaml:"logDir"`
	} `yaml:"paths"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Tiling.TileSize = 256
	cfg.Tiling.OverlapFactor = 0.5
	cfg.Tiling.ReduceFactor = 4

	cfg.Inference.BatchSize = 32
	cfg.Inference.UseTTA = false
	cfg.Inference.UseFullSize = false
	cfg.Inference.ThresholdStep = 0.05

	cfg.Model.Decoder = "Unet"
	cfg.Model.Encoder = "efficientnet-b1"

	cfg.CrossValidation.FoldColumn = "fold"
	cfg.CrossValidation.SelectedFolds = []int{0, 1, 2, 3, 4}
	cfg.CrossValidation.Epochs = 50

	cfg.Paths.DataDir = "data"
	cfg.Paths.SlideDir = "data/tiff"
	cfg.Paths.LogDir = "logs"

	return cfg
}

// Validate rejects configurations the tiling planner or orchestrator could
// not honor.
func (c *Config) Validate() error {
	if c.Tiling.TileSize <= 0 {
		return fmt.Errorf("tileSize %d must be positive", c.Tiling.TileSize)
	}
	if c.Tiling.OverlapFactor < 0 || c.Tiling.OverlapFactor >= 1 {
		return fmt.Errorf("overlapFactor %.3f must be in [0,1)", c.Tiling.OverlapFactor)
	}
	if c.Tiling.ReduceFactor < 1 {
		return fmt.Errorf("reduceFactor %d must be at least 1", c.Tiling.ReduceFactor)
	}
	if c.Inference.ThresholdStep <= 0 || c.Inference.ThresholdStep >= 1 {
		return fmt.Errorf("thresholdStep %.3f must be in (0,1)", c.Inference.ThresholdStep)
	}
	if t := c.Inference.GlobalThreshold; t != nil && (*t < 0 || *t > 1) {
		return fmt.Errorf("globalThreshold %.3f must be in [0,1]", *t)
	}
	if len(c.CrossValidation.SelectedFolds) == 0 {
		return fmt.Errorf("selectedFolds must name at least one fold")
	}
	return nil
}

// ThresholdGrid expands the configured step into the ascending candidate
// set used by the threshold search. Candidates are computed by integer
// index, not by accumulating the step, so float drift cannot emit a
// spurious candidate just under 1.
func (c *Config) ThresholdGrid() []float64 {
	step := c.Inference.ThresholdStep
	grid := []float64{}
	for i := 1; ; i++ {
		t := float64(i) * step
		if t >= 1 {
			break
		}
		grid = append(grid, t)
	}
	return grid
}

// LoadConfig loads configuration from a YAML file. If the file doesn't
// exist, it returns the default configuration.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file.
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}
