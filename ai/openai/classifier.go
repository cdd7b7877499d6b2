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
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/poiesic/masterdb/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

const maxParseAttempts = 3

// Classifier implements ai.Classifier using OpenAI-compatible chat APIs.
type Classifier struct {
	client    llms.Model
	batchSize int
	logger    *slog.Logger
}

// labeled is one entry of a batch response.
type labeled struct {
	Index int    `json:"index"`
	Mid   string `json:"mid"`
	Sub   string `json:"sub"`
}

// batchResponse is the wrapper structure for the model's JSON response.
type batchResponse struct {
	Results []labeled `json:"results"`
}

// newClassifier is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newClassifier(config *ai.Config) (*Classifier, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.ClassifierHost),
		openai.WithToken(config.APIKey),
		openai.WithModel(config.ClassifierModel),
	)
	if err != nil {
		return nil, err
	}

	return &Classifier{
		client:    client,
		batchSize: config.BatchSize,
		logger:    slog.Default().With("component", "openai-classifier"),
	}, nil
}

// NewClassifier creates a new classifier using the provided configuration.
//
// Returns ai.Classifier interface to enforce abstraction.
func NewClassifier(config *ai.Config) (ai.Classifier, error) {
	return newClassifier(config)
}

// Classify labels a single question.
func (c *Classifier) Classify(ctx context.Context, text string) (ai.Classification, error) {
	out, err := c.ClassifyTexts(ctx, []string{text})
	if err != nil {
		return ai.Classification{}, err
	}
	return out[0], nil
}

// ClassifyTexts labels questions in prompts of at most BatchSize questions.
// Entries missing from a response are returned as unclassified.
func (c *Classifier) ClassifyTexts(ctx context.Context, texts []string) ([]ai.Classification, error) {
	out := make([]ai.Classification, 0, len(texts))
	for start := 0; start < len(texts); start += c.batchSize {
		end := min(start+c.batchSize, len(texts))
		labels, err := c.classifyBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, labels...)
	}
	return out, nil
}

func (c *Classifier) classifyBatch(ctx context.Context, texts []string) ([]ai.Classification, error) {
	content := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(buildSystemPrompt())},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(buildBatchPrompt(texts))},
		},
	}

	// Retry in case of malformed JSON
	var result batchResponse
	var lastErr error
	for attempt := 0; attempt < maxParseAttempts; attempt++ {
		response, err := c.client.GenerateContent(ctx, content, llms.WithTemperature(0.0), llms.WithJSONMode())
		if err != nil {
			c.logger.Error("failed to generate content", "attempt", attempt+1, "err", err)
			return nil, err
		}

		if len(response.Choices) < 1 {
			c.logger.Debug("no choices returned from model")
			return fill(nil, len(texts)), nil
		}

		responseText := repairJSON(extractJSON(response.Choices[0].Content))
		result = batchResponse{}
		if err := json.Unmarshal([]byte(responseText), &result); err != nil {
			lastErr = err
			c.logger.Warn("error parsing classifier response",
				"attempt", attempt+1,
				"response", responseText,
				"err", err)
			continue
		}

		lastErr = nil
		break
	}

	if lastErr != nil {
		c.logger.Error("failed to parse classifier response after retries", "err", lastErr)
		return nil, fmt.Errorf("classifier response: %w", lastErr)
	}

	labels := fill(result.Results, len(texts))
	c.logger.Debug("classified batch", "size", len(texts), "returned", len(result.Results))
	return labels, nil
}

// fill places each response entry at its 1-based index and canonicalizes it.
// Missing or out-of-range entries become unclassified.
func fill(results []labeled, n int) []ai.Classification {
	out := make([]ai.Classification, n)
	for i := range out {
		out[i] = ai.Classification{Mid: ai.Unclassified, Sub: ai.Unclassified}
	}
	for _, r := range results {
		if r.Index < 1 || r.Index > n {
			continue
		}
		out[r.Index-1] = ai.Canonical(ai.Classification{Mid: r.Mid, Sub: r.Sub})
	}
	return out
}
