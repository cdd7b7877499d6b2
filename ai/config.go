// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ai

import (
	"fmt"
	"strings"
)

// DefaultHost is the local OpenAI-compatible server used when no host is configured.
const DefaultHost = "http://localhost:11434/v1"

// Config holds configuration for the embedding and classification services.
type Config struct {
	// EmbeddingHost is the base URL of the embedding API.
	EmbeddingHost string

	// ClassifierHost is the base URL of the chat model that assigns legacy categories.
	ClassifierHost string

	// EmbeddingModel identifies the model that produced stored vectors.
	// Changing it requires re-embedding every question.
	EmbeddingModel string

	// ClassifierModel identifies the chat model, e.g. "qwen2.5:7b" or "gpt-4o-mini".
	ClassifierModel string

	// APIKey is sent as the bearer token. Local servers accept any value.
	APIKey string

	// BatchSize is the number of questions sent in one classification prompt.
	BatchSize int

	// EmbeddingBatchSize is the number of texts sent in one embedding request.
	EmbeddingBatchSize int

	// Dimension is the expected vector length. 0 accepts any length.
	Dimension int
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

func WithClassifierHost(host string) ConfigOption {
	return func(c *Config) {
		c.ClassifierHost = host
	}
}

// WithHost points both services at the same server.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
		c.ClassifierHost = host
	}
}

func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

func WithClassifierModel(model string) ConfigOption {
	return func(c *Config) {
		c.ClassifierModel = model
	}
}

func WithAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithBatchSize sets the number of questions per classification prompt.
func WithBatchSize(size int) ConfigOption {
	return func(c *Config) {
		c.BatchSize = size
	}
}

// WithEmbeddingBatchSize sets the number of texts per embedding request.
func WithEmbeddingBatchSize(size int) ConfigOption {
	return func(c *Config) {
		c.EmbeddingBatchSize = size
	}
}

// WithDimension makes the embedder reject vectors of any other length.
func WithDimension(dim int) ConfigOption {
	return func(c *Config) {
		c.Dimension = dim
	}
}

// DefaultConfig returns the configuration for a local Ollama server running
// bge-m3 for embeddings and qwen2.5 for classification.
func DefaultConfig() *Config {
	return &Config{
		EmbeddingHost:      DefaultHost,
		ClassifierHost:     DefaultHost,
		EmbeddingModel:     "bge-m3",
		ClassifierModel:    "qwen2.5:7b",
		APIKey:             "none",
		BatchSize:          10,
		EmbeddingBatchSize: 64,
	}
}

// NewConfig applies opts over DefaultConfig.
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize appends the /v1 suffix OpenAI-compatible servers expect and
// fills an empty API key.
func (c *Config) Normalize() {
	c.EmbeddingHost = withVersionSuffix(c.EmbeddingHost)
	c.ClassifierHost = withVersionSuffix(c.ClassifierHost)
	if c.APIKey == "" {
		c.APIKey = "none"
	}
	if c.EmbeddingBatchSize == 0 {
		c.EmbeddingBatchSize = 64
	}
}

func withVersionSuffix(host string) string {
	if host == "" || strings.HasSuffix(host, "/v1") {
		return host
	}
	return strings.TrimSuffix(host, "/") + "/v1"
}

// Validate normalizes the configuration and checks that it is complete.
func (c *Config) Validate() error {
	c.Normalize()

	switch {
	case c.EmbeddingHost == "":
		return fmt.Errorf("%w: EmbeddingHost is required", ErrInvalidConfig)
	case c.ClassifierHost == "":
		return fmt.Errorf("%w: ClassifierHost is required", ErrInvalidConfig)
	case c.EmbeddingModel == "":
		return fmt.Errorf("%w: EmbeddingModel is required", ErrInvalidConfig)
	case c.ClassifierModel == "":
		return fmt.Errorf("%w: ClassifierModel is required", ErrInvalidConfig)
	case c.BatchSize < 1 || c.BatchSize > 50:
		return fmt.Errorf("%w: BatchSize must be between 1 and 50, got %d", ErrInvalidConfig, c.BatchSize)
	case c.EmbeddingBatchSize < 1:
		return fmt.Errorf("%w: EmbeddingBatchSize must be positive, got %d", ErrInvalidConfig, c.EmbeddingBatchSize)
	case c.Dimension < 0:
		return fmt.Errorf("%w: Dimension must not be negative, got %d", ErrInvalidConfig, c.Dimension)
	}
	return nil
}
