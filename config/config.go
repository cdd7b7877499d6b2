// Package config loads the YAML configuration of a masterdb deployment.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/poiesic/masterdb/ai"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// Config is the root of the configuration file.
type Config struct {
	Database      DatabaseConfig      `yaml:"database"`
	Vectors       VectorsConfig       `yaml:"vectors"`
	Clustering    ClusteringConfig    `yaml:"clustering"`
	Consolidation ConsolidationConfig `yaml:"consolidation"`
	Tagging       TaggingConfig       `yaml:"tagging"`
	AI            AIConfig            `yaml:"ai"`
}

// DatabaseConfig locates the stores.
type DatabaseConfig struct {
	// Path is the SQLite database file.
	Path string `yaml:"path" validate:"required"`

	// EmbeddingsBackend selects where vectors live: "sqlite" or "badger".
	EmbeddingsBackend string `yaml:"embeddings_backend" validate:"oneof=sqlite badger"`

	// BadgerDir is the badger directory, required with the badger backend.
	BadgerDir string `yaml:"badger_dir,omitempty" validate:"required_if=EmbeddingsBackend badger"`
}

// VectorsConfig configures the vector cache.
type VectorsConfig struct {
	// Dimension is the expected vector length. 0 infers it from the first vector.
	Dimension int `yaml:"dimension" validate:"gte=0"`
}

// ClusteringConfig configures the cluster engine and the pipeline pool.
type ClusteringConfig struct {
	Threshold float64 `yaml:"threshold" validate:"gte=0,lte=2"`
	Workers   int     `yaml:"workers" validate:"gte=1,lte=64"`
	// MaxPoints caps one category's size. 0 means no cap.
	MaxPoints int `yaml:"max_points" validate:"gte=0"`
}

// ConsolidationConfig configures representative election.
type ConsolidationConfig struct {
	Policy string `yaml:"policy" validate:"oneof=first medoid"`
}

// TaggingConfig configures the auto-tagger.
type TaggingConfig struct {
	TopK              int     `yaml:"top_k" validate:"gte=1"`
	MinSimilarity     float64 `yaml:"min_similarity" validate:"gte=-1,lte=1"`
	ClusterConfidence float64 `yaml:"cluster_confidence" validate:"gte=0,lte=1"`
	MaxSuggestions    int     `yaml:"max_suggestions" validate:"gte=1"`
}

// AIConfig configures the embedding and classification services.
type AIConfig struct {
	EmbeddingHost   string `yaml:"embedding_host" validate:"required"`
	ClassifierHost  string `yaml:"classifier_host"`
	EmbeddingModel  string `yaml:"embedding_model" validate:"required"`
	ClassifierModel string `yaml:"classifier_model"`
	APIKey          string `yaml:"api_key,omitempty"`
	BatchSize       int    `yaml:"batch_size" validate:"gte=1,lte=50"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	aiDefaults := ai.DefaultConfig()
	return &Config{
		Database: DatabaseConfig{
			Path:              "masterdb.sqlite",
			EmbeddingsBackend: "sqlite",
		},
		Clustering: ClusteringConfig{
			Threshold: 0.15,
			Workers:   4,
		},
		Consolidation: ConsolidationConfig{
			Policy: "first",
		},
		Tagging: TaggingConfig{
			TopK:              5,
			MinSimilarity:     0.7,
			ClusterConfidence: 0.9,
			MaxSuggestions:    5,
		},
		AI: AIConfig{
			EmbeddingHost:   aiDefaults.EmbeddingHost,
			ClassifierHost:  aiDefaults.ClassifierHost,
			EmbeddingModel:  aiDefaults.EmbeddingModel,
			ClassifierModel: aiDefaults.ClassifierModel,
			BatchSize:       aiDefaults.BatchSize,
		},
	}
}

// Load reads a YAML file over the defaults and validates the result.
// Relative database paths are resolved against the file's directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	cfg.resolvePaths(filepath.Dir(path))
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: parsing YAML: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

func (c *Config) resolvePaths(base string) {
	if c.Database.Path != ":memory:" && !filepath.IsAbs(c.Database.Path) {
		c.Database.Path = filepath.Join(base, c.Database.Path)
	}
	if c.Database.BadgerDir != "" && !filepath.IsAbs(c.Database.BadgerDir) {
		c.Database.BadgerDir = filepath.Join(base, c.Database.BadgerDir)
	}
}

// AIServices converts the ai section into an ai.Config.
func (c *Config) AIServices() *ai.Config {
	opts := []ai.ConfigOption{
		ai.WithEmbeddingHost(c.AI.EmbeddingHost),
		ai.WithEmbeddingModel(c.AI.EmbeddingModel),
		ai.WithAPIKey(c.AI.APIKey),
		ai.WithBatchSize(c.AI.BatchSize),
		ai.WithDimension(c.Vectors.Dimension),
	}
	if c.AI.ClassifierHost != "" {
		opts = append(opts, ai.WithClassifierHost(c.AI.ClassifierHost))
	} else {
		opts = append(opts, ai.WithClassifierHost(c.AI.EmbeddingHost))
	}
	if c.AI.ClassifierModel != "" {
		opts = append(opts, ai.WithClassifierModel(c.AI.ClassifierModel))
	}
	return ai.NewConfig(opts...)
}
