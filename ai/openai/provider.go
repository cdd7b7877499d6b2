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


package openai

import (
	"fmt"
	"log/slog"

	"github.com/poiesic/masterdb/ai"
)

// Provider bundles the embedder and the classifier built from one ai.Config.
type Provider struct {
	config     ai.Config
	embedder   *Embedder
	classifier *Classifier
	logger     *slog.Logger
}

var _ ai.AIProvider = (*Provider)(nil)

// NewProvider validates config and builds both services from it.
func NewProvider(config *ai.Config) (ai.AIProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	embedder, err := newEmbedder(config)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}

	classifier, err := newClassifier(config)
	if err != nil {
		return nil, fmt.Errorf("classifier: %w", err)
	}

	p := &Provider{
		config:     *config,
		embedder:   embedder,
		classifier: classifier,
		logger:     slog.Default().With("component", "openai-provider"),
	}
	p.logger.Debug("provider ready",
		"embedding_host", config.EmbeddingHost, "embedding_model", config.EmbeddingModel,
		"classifier_host", config.ClassifierHost, "classifier_model", config.ClassifierModel)
	return p, nil
}

func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

func (p *Provider) Classifier() ai.Classifier {
	return p.classifier
}

// Config returns a copy of the normalized configuration.
func (p *Provider) Config() ai.Config {
	return p.config
}

// Close is a no-op; the HTTP clients hold no resources.
func (p *Provider) Close() error {
	p.logger.Debug("closing provider")
	return nil
}
