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


package masterdb

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/masterdb/ai"
	"github.com/poiesic/masterdb/ai/openai"
	"github.com/poiesic/masterdb/cluster"
	"github.com/poiesic/masterdb/config"
	"github.com/poiesic/masterdb/consolidate"
	"github.com/poiesic/masterdb/ingestion"
	"github.com/poiesic/masterdb/pipeline"
	"github.com/poiesic/masterdb/reembed"
	"github.com/poiesic/masterdb/search"
	"github.com/poiesic/masterdb/storage"
	"github.com/poiesic/masterdb/storage/badger"
	"github.com/poiesic/masterdb/storage/sqlite"
	"github.com/poiesic/masterdb/tagging"
	"github.com/poiesic/masterdb/taxonomy"
	"github.com/poiesic/masterdb/vectors"
)

// Database owns the stores, the vector cache and the AI provider of one
// deployment and builds the components that work on them.
type Database struct {
	config     *config.Config
	store      *sqlite.Store
	badger     *badger.Backend
	embeddings storage.EmbeddingRepository
	vectors    *vectors.Store
	provider   ai.AIProvider
	logger     *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	provider ai.AIProvider
	logger   *slog.Logger
}

// WithAIProvider uses provider instead of building an OpenAI-compatible one
// from the configuration. The Database closes it on Close.
func WithAIProvider(provider ai.AIProvider) DatabaseOption {
	return func(o *databaseOptions) {
		o.provider = provider
	}
}

// WithLogger sets the logger handed to every component.
func WithLogger(logger *slog.Logger) DatabaseOption {
	return func(o *databaseOptions) {
		o.logger = logger
	}
}

// NewDatabase opens the stores described by cfg. A nil cfg uses config.Default().
func NewDatabase(cfg *config.Config, opts ...DatabaseOption) (*Database, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options := &databaseOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	store, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	db := &Database{
		config:     cfg,
		store:      store,
		embeddings: store.Embeddings,
		logger:     options.logger,
	}

	if cfg.Database.EmbeddingsBackend == "badger" {
		backend, err := badger.OpenBackend(cfg.Database.BadgerDir, false, badger.WithLogger(options.logger))
		if err != nil {
			store.Close()
			return nil, err
		}
		embeddings, err := badger.NewEmbeddingRepository(backend)
		if err != nil {
			backend.Close()
			store.Close()
			return nil, err
		}
		db.badger = backend
		db.embeddings = embeddings
	}

	db.vectors, err = vectors.NewStore(db.embeddings,
		vectors.WithDimension(cfg.Vectors.Dimension),
		vectors.WithLogger(db.logger))
	if err != nil {
		db.closeStores()
		return nil, err
	}

	db.provider = options.provider
	if db.provider == nil {
		db.provider, err = openai.NewProvider(cfg.AIServices())
		if err != nil {
			db.closeStores()
			return nil, err
		}
	}

	return db, nil
}

// Close releases the provider and the stores.
func (db *Database) Close() error {
	if err := db.provider.Close(); err != nil {
		db.logger.Error("error closing AI provider", "err", err)
	}
	return db.closeStores()
}

func (db *Database) closeStores() error {
	var errs []error
	if db.badger != nil {
		if err := db.badger.Close(); err != nil {
			db.logger.Error("error closing badger backend", "err", err)
			errs = append(errs, fmt.Errorf("badger: %w", err))
		}
	}
	if err := db.store.Close(); err != nil {
		db.logger.Error("error closing sqlite store", "err", err)
		errs = append(errs, fmt.Errorf("sqlite: %w", err))
	}
	return errors.Join(errs...)
}

func (db *Database) Config() *config.Config {
	return db.config
}

func (db *Database) Questions() storage.QuestionRepository {
	return db.store.Questions
}

func (db *Database) Embeddings() storage.EmbeddingRepository {
	return db.embeddings
}

func (db *Database) Masters() storage.MasterRepository {
	return db.store.Masters
}

func (db *Database) Taxonomy() storage.TaxonomyRepository {
	return db.store.Taxonomy
}

func (db *Database) Tags() storage.TagRepository {
	return db.store.Tags
}

// Vectors returns the shared vector cache. Writers built by the Database
// invalidate it after storing embeddings.
func (db *Database) Vectors() *vectors.Store {
	return db.vectors
}

func (db *Database) Provider() ai.AIProvider {
	return db.provider
}

// NewIngestionPipeline builds an ingestion pipeline that embeds and classifies
// new questions. Options are applied after the configured defaults.
func (db *Database) NewIngestionPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	base := []ingestion.Option{
		ingestion.WithBatchSize(db.config.AI.BatchSize),
		ingestion.WithEmbeddingModel(db.config.AI.EmbeddingModel),
		ingestion.WithInvalidator(db.vectors),
		ingestion.WithLogger(db.logger),
	}
	return ingestion.NewPipeline(db.store.Questions, db.embeddings, db.provider, append(base, opts...)...)
}

// NewSearcher builds a searcher with query embedding and tag lookup enabled.
func (db *Database) NewSearcher(opts ...search.Option) (*search.Searcher, error) {
	base := []search.Option{
		search.WithEmbedder(db.provider.Embedder()),
		search.WithTags(db.store.Tags, db.store.Taxonomy),
		search.WithLogger(db.logger),
	}
	return search.NewSearcher(db.vectors, db.store.Questions, db.store.Masters, append(base, opts...)...)
}

// NewAutoTagger builds an auto-tagger using a searcher for neighbour votes.
func (db *Database) NewAutoTagger(opts ...tagging.Option) (*tagging.AutoTagger, error) {
	searcher, err := db.NewSearcher()
	if err != nil {
		return nil, err
	}
	t := db.config.Tagging
	base := []tagging.Option{
		tagging.WithTopK(t.TopK),
		tagging.WithMinSimilarity(t.MinSimilarity),
		tagging.WithClusterConfidence(t.ClusterConfidence),
		tagging.WithMaxSuggestions(t.MaxSuggestions),
		tagging.WithLogger(db.logger),
	}
	return tagging.NewAutoTagger(db.store.Questions, db.store.Masters, db.store.Tags, searcher, append(base, opts...)...)
}

// NewClusterEngine builds an engine with the configured threshold.
func (db *Database) NewClusterEngine(opts ...cluster.Option) (*cluster.Engine, error) {
	base := []cluster.Option{
		cluster.WithThreshold(db.config.Clustering.Threshold),
		cluster.WithMaxPoints(db.config.Clustering.MaxPoints),
		cluster.WithLogger(db.logger),
	}
	return cluster.NewEngine(append(base, opts...)...)
}

// NewConsolidator builds a consolidator with the configured policy.
func (db *Database) NewConsolidator(opts ...consolidate.Option) (*consolidate.Consolidator, error) {
	policy, err := consolidate.ParsePolicy(db.config.Consolidation.Policy)
	if err != nil {
		return nil, err
	}
	base := []consolidate.Option{
		consolidate.WithPolicy(policy),
		consolidate.WithThreshold(db.config.Clustering.Threshold),
		consolidate.WithLogger(db.logger),
	}
	return consolidate.NewConsolidator(db.store.Masters, append(base, opts...)...)
}

// NewClusterPipeline builds the per-category cluster and consolidate pipeline.
func (db *Database) NewClusterPipeline(opts ...pipeline.Option) (*pipeline.Pipeline, error) {
	engine, err := db.NewClusterEngine()
	if err != nil {
		return nil, err
	}
	consolidator, err := db.NewConsolidator()
	if err != nil {
		return nil, err
	}
	base := []pipeline.Option{
		pipeline.WithWorkers(db.config.Clustering.Workers),
		pipeline.WithRunHistory(db.store.Masters),
		pipeline.WithLogger(db.logger),
	}
	return pipeline.NewPipeline(db.vectors, db.store.Questions, engine, consolidator, append(base, opts...)...)
}

// NewReembedder builds a bulk re-embedder that invalidates the vector cache.
func (db *Database) NewReembedder(opts ...reembed.Option) (*reembed.Reembedder, error) {
	rc := reembed.DefaultConfig()
	rc.BatchSize = db.config.AI.BatchSize
	base := []reembed.Option{
		reembed.WithConfig(rc),
		reembed.WithModel(db.config.AI.EmbeddingModel),
		reembed.WithInvalidator(db.vectors),
		reembed.WithLogger(db.logger),
	}
	return reembed.NewReembedder(db.store.Questions, db.embeddings, db.provider.Embedder(), append(base, opts...)...)
}

// NewReclassifier builds a bulk legacy classifier.
func (db *Database) NewReclassifier(opts ...reembed.ReclassifierOption) (*reembed.Reclassifier, error) {
	rc := reembed.DefaultConfig()
	rc.BatchSize = db.config.AI.BatchSize
	base := []reembed.ReclassifierOption{
		reembed.WithClassifyConfig(rc),
		reembed.WithClassifyLogger(db.logger),
	}
	return reembed.NewReclassifier(db.store.Questions, db.provider.Classifier(), append(base, opts...)...)
}

// NewTaxonomyManager builds a taxonomy manager with legacy tagging enabled.
func (db *Database) NewTaxonomyManager(opts ...taxonomy.Option) (*taxonomy.Manager, error) {
	base := []taxonomy.Option{
		taxonomy.WithLegacyTagging(db.store.Questions, db.store.Tags),
		taxonomy.WithLogger(db.logger),
	}
	return taxonomy.NewManager(db.store.Taxonomy, append(base, opts...)...)
}
