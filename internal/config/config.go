// Package config loads and validates applyrag configuration.
//
// Precedence, lowest to highest:
//  1. Built-in defaults (the hand-tuned constants from the original model)
//  2. Config file (.applyrag.yaml in the data root)
//  3. Environment variables (APPLYRAG_*)
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ConfigFileName is the per-project configuration file name.
const ConfigFileName = ".applyrag.yaml"

// Config represents the complete applyrag configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Paths      PathsConfig      `yaml:"paths" json:"paths"`
	Retrieval  RetrievalConfig  `yaml:"retrieval" json:"retrieval"`
	Fusion     FusionConfig     `yaml:"fusion" json:"fusion"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Memory     MemoryConfig     `yaml:"memory" json:"memory"`
}

// PathsConfig configures data locations.
type PathsConfig struct {
	// DataDir is the root for the index, arm map, and memory logs.
	// Default: ~/.applyrag
	DataDir string `yaml:"data_dir" json:"data_dir"`
	// TrackerCSV is the application tracker spreadsheet to ingest.
	TrackerCSV string `yaml:"tracker_csv" json:"tracker_csv"`
}

// RetrievalConfig configures the hybrid retrieval stage.
type RetrievalConfig struct {
	// RRFConstant is the smoothing constant k in 1/(k+rank).
	// Default: 60 (industry standard; preserved from the original model).
	RRFConstant int `yaml:"rrf_constant" json:"rrf_constant"`

	// OverfetchFactor scales k into candidate_k = max(k*factor, OverfetchFloor).
	// The over-fetch absorbs post-fusion filtering.
	OverfetchFactor int `yaml:"overfetch_factor" json:"overfetch_factor"`
	OverfetchFloor  int `yaml:"overfetch_floor" json:"overfetch_floor"`
}

// FusionConfig holds the final ranking weights. The defaults are hand-tuned
// constants carried over verbatim from the original model; they must sum
// to exactly 1.0.
type FusionConfig struct {
	BaseWeight        float64 `yaml:"base_weight" json:"base_weight"`
	LexicalWeight     float64 `yaml:"lexical_weight" json:"lexical_weight"`
	BanditWeight      float64 `yaml:"bandit_weight" json:"bandit_weight"`
	MemoryShortWeight float64 `yaml:"memory_short_weight" json:"memory_short_weight"`
	MemoryLongWeight  float64 `yaml:"memory_long_weight" json:"memory_long_weight"`
}

// EmbeddingsConfig configures the hashing embedder.
type EmbeddingsConfig struct {
	// Dimensions is the embedding width. Default: 1536.
	Dimensions int `yaml:"dimensions" json:"dimensions"`
	// CacheSize is the query-embedding LRU size. Default: 1000.
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// MemoryConfig configures episodic memory decay.
type MemoryConfig struct {
	// HalfLifeDays is the episodic recency half-life. Default: 14.
	HalfLifeDays float64 `yaml:"half_life_days" json:"half_life_days"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			DataDir: defaultDataDir(),
		},
		Retrieval: RetrievalConfig{
			RRFConstant:     60,
			OverfetchFactor: 8,
			OverfetchFloor:  40,
		},
		Fusion: FusionConfig{
			BaseWeight:        0.48,
			LexicalWeight:     0.22,
			BanditWeight:      0.20,
			MemoryShortWeight: 0.06,
			MemoryLongWeight:  0.04,
		},
		Embeddings: EmbeddingsConfig{
			Dimensions: 1536,
			CacheSize:  1000,
		},
		Memory: MemoryConfig{
			HalfLifeDays: 14.0,
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".applyrag")
	}
	return filepath.Join(home, ".applyrag")
}

// Load reads configuration, merging file and environment overrides onto
// the defaults. A missing config file is not an error.
func Load(dir string) (*Config, error) {
	cfg := DefaultConfig()

	path := filepath.Join(dir, ConfigFileName)
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// defaults only
	case err != nil:
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies APPLYRAG_* environment variables.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("APPLYRAG_DATA_DIR"); v != "" {
		c.Paths.DataDir = v
	}
	if v := os.Getenv("APPLYRAG_TRACKER_CSV"); v != "" {
		c.Paths.TrackerCSV = v
	}
	if v, ok := envInt("APPLYRAG_RRF_CONSTANT"); ok {
		c.Retrieval.RRFConstant = v
	}
	if v, ok := envFloat("APPLYRAG_HALF_LIFE_DAYS"); ok {
		c.Memory.HalfLifeDays = v
	}
	if v, ok := envInt("APPLYRAG_DIMENSIONS"); ok {
		c.Embeddings.Dimensions = v
	}
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envFloat(key string) (float64, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Retrieval.RRFConstant <= 0 {
		return fmt.Errorf("retrieval.rrf_constant must be positive, got %d", c.Retrieval.RRFConstant)
	}
	if c.Retrieval.OverfetchFactor < 1 {
		return fmt.Errorf("retrieval.overfetch_factor must be >= 1, got %d", c.Retrieval.OverfetchFactor)
	}
	if c.Embeddings.Dimensions <= 0 {
		return fmt.Errorf("embeddings.dimensions must be positive, got %d", c.Embeddings.Dimensions)
	}
	if c.Memory.HalfLifeDays <= 0 {
		return fmt.Errorf("memory.half_life_days must be positive, got %g", c.Memory.HalfLifeDays)
	}

	w := c.Fusion
	for name, v := range map[string]float64{
		"base_weight":         w.BaseWeight,
		"lexical_weight":      w.LexicalWeight,
		"bandit_weight":       w.BanditWeight,
		"memory_short_weight": w.MemoryShortWeight,
		"memory_long_weight":  w.MemoryLongWeight,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("fusion.%s must be in [0,1], got %g", name, v)
		}
	}
	sum := w.BaseWeight + w.LexicalWeight + w.BanditWeight + w.MemoryShortWeight + w.MemoryLongWeight
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("fusion weights must sum to 1.0, got %g", sum)
	}
	return nil
}

// Save writes the config file into dir.
func (c *Config) Save(dir string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, ConfigFileName), data, 0o644)
}
