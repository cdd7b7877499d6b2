package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		EmbeddingHost:   "http://localhost:11434",
		ClassifierHost:  "http://localhost:11434",
		EmbeddingModel:  "bge-m3",
		ClassifierModel: "qwen2.5:7b",
		BatchSize:       10,
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, DefaultHost, cfg.EmbeddingHost)
	assert.Equal(t, DefaultHost, cfg.ClassifierHost)
	assert.Equal(t, "bge-m3", cfg.EmbeddingModel)
	assert.Equal(t, 10, cfg.BatchSize)
	assert.Equal(t, 64, cfg.EmbeddingBatchSize)
	assert.Zero(t, cfg.Dimension)
	require.NoError(t, cfg.Validate())
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig(
		WithHost("http://gpu:8080"),
		WithEmbeddingModel("text-embedding-3-small"),
		WithClassifierModel("gpt-4o-mini"),
		WithAPIKey("secret"),
		WithBatchSize(20),
		WithEmbeddingBatchSize(16),
		WithDimension(1024),
	)

	assert.Equal(t, "http://gpu:8080", cfg.EmbeddingHost)
	assert.Equal(t, "http://gpu:8080", cfg.ClassifierHost)
	assert.Equal(t, "text-embedding-3-small", cfg.EmbeddingModel)
	assert.Equal(t, "gpt-4o-mini", cfg.ClassifierModel)
	assert.Equal(t, "secret", cfg.APIKey)
	assert.Equal(t, 20, cfg.BatchSize)
	assert.Equal(t, 16, cfg.EmbeddingBatchSize)
	assert.Equal(t, 1024, cfg.Dimension)

	t.Run("separate hosts", func(t *testing.T) {
		cfg := NewConfig(
			WithEmbeddingHost("http://embed:8080/v1"),
			WithClassifierHost("http://classify:9090/v1"),
		)
		assert.Equal(t, "http://embed:8080/v1", cfg.EmbeddingHost)
		assert.Equal(t, "http://classify:9090/v1", cfg.ClassifierHost)
	})
}

func TestConfigNormalize(t *testing.T) {
	tests := []struct {
		host string
		want string
	}{
		{"http://localhost:11434/v1", "http://localhost:11434/v1"},
		{"http://localhost:11434", "http://localhost:11434/v1"},
		{"http://localhost:11434/", "http://localhost:11434/v1"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			cfg := &Config{EmbeddingHost: tt.host, ClassifierHost: tt.host}
			cfg.Normalize()

			assert.Equal(t, tt.want, cfg.EmbeddingHost)
			assert.Equal(t, tt.want, cfg.ClassifierHost)
			assert.Equal(t, "none", cfg.APIKey)
			assert.Equal(t, 64, cfg.EmbeddingBatchSize)
		})
	}
}

func TestConfigValidate(t *testing.T) {
	t.Run("valid config is normalized", func(t *testing.T) {
		cfg := validConfig()
		require.NoError(t, cfg.Validate())
		assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
		assert.Equal(t, "http://localhost:11434/v1", cfg.ClassifierHost)
	})

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"missing embedding host", func(c *Config) { c.EmbeddingHost = "" }, "EmbeddingHost"},
		{"missing classifier host", func(c *Config) { c.ClassifierHost = "" }, "ClassifierHost"},
		{"missing embedding model", func(c *Config) { c.EmbeddingModel = "" }, "EmbeddingModel"},
		{"missing classifier model", func(c *Config) { c.ClassifierModel = "" }, "ClassifierModel"},
		{"batch size too low", func(c *Config) { c.BatchSize = 0 }, "BatchSize"},
		{"batch size too high", func(c *Config) { c.BatchSize = 51 }, "BatchSize"},
		{"negative embedding batch", func(c *Config) { c.EmbeddingBatchSize = -1 }, "EmbeddingBatchSize"},
		{"negative dimension", func(c *Config) { c.Dimension = -3 }, "Dimension"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.field)
		})
	}

	t.Run("batch size boundaries", func(t *testing.T) {
		cfg := validConfig()
		cfg.BatchSize = 1
		assert.NoError(t, cfg.Validate())
		cfg.BatchSize = 50
		assert.NoError(t, cfg.Validate())
	})
}
