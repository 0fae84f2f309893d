package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

type LabelingConfig struct {
	// Redundancy is the number of distinct annotators required before an
	// item counts as covered (ANNOTATION_REDUNDANCY).
	Redundancy int `toml:"redundancy"`
	// Margin is the vote-count lead the majority label needs over the
	// runner-up to resolve (CONSENSUS_MARGIN).
	Margin int `toml:"margin"`
	// MaxExtraAnnotators caps how far redundancy may grow while a tie
	// persists before the plurality fallback kicks in.
	MaxExtraAnnotators int `toml:"max_extra_annotators"`
}

type StoreConfig struct {
	Path string `toml:"path"`
}

type DatasetConfig struct {
	Path string `toml:"path"`
}

type MemgraphConfig struct {
	URI      string `toml:"uri"`
	User     string `toml:"user"`
	Password string `toml:"password"`
}

type Config struct {
	Labeling LabelingConfig `toml:"labeling"`
	Store    StoreConfig    `toml:"store"`
	Dataset  DatasetConfig  `toml:"dataset"`
	Memgraph MemgraphConfig `toml:"memgraph"`
}

// Default returns the configuration used when no config file is present.
func Default() *Config {
	return &Config{
		Labeling: LabelingConfig{
			Redundancy:         2,
			Margin:             1,
			MaxExtraAnnotators: 2,
		},
		Store:   StoreConfig{Path: ".conflator/labels"},
		Dataset: DatasetConfig{Path: "labeling-dataset.json"},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}

	if cfg.Labeling.Redundancy < 1 {
		return nil, fmt.Errorf("labeling.redundancy must be >= 1, got %d", cfg.Labeling.Redundancy)
	}
	if cfg.Labeling.Margin < 1 {
		return nil, fmt.Errorf("labeling.margin must be >= 1, got %d", cfg.Labeling.Margin)
	}
	if cfg.Labeling.MaxExtraAnnotators < 1 {
		return nil, fmt.Errorf("labeling.max_extra_annotators must be >= 1, got %d", cfg.Labeling.MaxExtraAnnotators)
	}

	return cfg, nil
}
