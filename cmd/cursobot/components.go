package main

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/hyperjump/cursobot/internal/catalog"
	"github.com/hyperjump/cursobot/internal/chat"
	"github.com/hyperjump/cursobot/internal/config"
	"github.com/hyperjump/cursobot/internal/dialogue"
	"github.com/hyperjump/cursobot/internal/embedding"
	"github.com/hyperjump/cursobot/internal/ranking"
	"github.com/hyperjump/cursobot/internal/recommend"
	"github.com/hyperjump/cursobot/internal/server"
	"github.com/hyperjump/cursobot/internal/storage"
)

// Components holds the wired application.
type Components struct {
	Catalogs *catalog.Provider
	Ranker   *ranking.Ranker
	Storage  storage.Storage
	States   dialogue.Store
	Chat     *chat.Service
	Tagger   server.TaggerStatus

	closers []io.Closer
}

// Close releases the stores and the embedding model.
func (c *Components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		_ = c.closers[i].Close()
	}
}

// newRanker builds the ranker from config.
func newRanker(cfg *config.Config, logger *zap.Logger) (*ranking.Ranker, error) {
	variant, err := ranking.ParseVariant(cfg.Ranking.Variant)
	if err != nil {
		return nil, err
	}
	return ranking.NewRanker(ranking.Options{
		Variant:         variant,
		EmbeddingWeight: cfg.Ranking.EmbeddingWeightOrDefault(),
		NameFeatures:    cfg.Ranking.NameFeatures,
		ContextFeatures: cfg.Ranking.ContextFeatures,
		SeedSize:        cfg.Ranking.SeedSize,
		TypoCorrection:  cfg.Ranking.TypoCorrectionOrDefault(),
		MaxEditDistance: cfg.Ranking.MaxEditDistance,
	}, logger)
}

// newProvider creates the catalog provider and attempts a first load. A failed
// load is logged and leaves the provider empty; requests get 503 until a reload succeeds.
func newProvider(cfg *config.Config, logger *zap.Logger) *catalog.Provider {
	p := catalog.NewProvider(catalog.Source{
		CoursesPath:    cfg.Catalog.CoursesPath,
		EmbeddingsPath: cfg.Catalog.EmbeddingsPath,
		Sheet:          cfg.Catalog.Sheet,
	}, logger)
	if _, err := p.Reload(); err != nil {
		logger.Warn("catalog not loaded; recommendations are unavailable until a reload succeeds", zap.Error(err))
	}
	return p
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	c := &Components{}
	ok := false
	defer func() {
		if !ok {
			c.Close()
		}
	}()

	c.Catalogs = newProvider(cfg, logger)

	var err error
	if c.Ranker, err = newRanker(cfg, logger); err != nil {
		return nil, fmt.Errorf("failed to initialize ranker: %w", err)
	}

	assembler := recommend.NewAssembler(c.Ranker, c.Catalogs, recommend.Options{
		PageSize:        cfg.Dialogue.PageSize,
		CandidatePool:   cfg.Dialogue.CandidatePool,
		Alternatives:    cfg.Dialogue.Alternatives,
		EmbeddingWeight: cfg.Ranking.EmbeddingWeightOrDefault(),
		ExtensionCodes:  cfg.Dialogue.ExtensionCodes,
		ExtensionLabels: cfg.Dialogue.ExtensionLabels,
	}, logger)
	machine := dialogue.NewMachine(
		dialogue.NewClassifier(dialogue.DefaultKeywords()),
		assembler,
		dialogue.WithResetOnRestart(cfg.Dialogue.ResetOnRestart),
		dialogue.WithLogger(logger),
	)

	states, statesCloser, err := dialogue.OpenStore(dialogue.StoreType(cfg.Dialogue.Store), cfg.Dialogue.StatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize dialogue state store: %w", err)
	}
	c.States = states
	c.closers = append(c.closers, statesCloser)

	if c.Storage, err = storage.Open(ctx, cfg.Storage, logger); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.closers = append(c.closers, c.Storage)

	opts := []chat.Option{chat.WithLogger(logger)}
	tagger, embedder, status := newTagger(cfg.Tagging, logger)
	c.Tagger = status
	if tagger != nil {
		opts = append(opts, chat.WithTagger(tagger))
		c.closers = append(c.closers, embedder)
	}
	c.Chat = chat.NewService(c.Storage, c.States, machine, c.Catalogs, opts...)

	ok = true
	return c, nil
}

// newTagger builds the message tagger. Tagging is optional: any failure is
// reported in the status and the server runs without it.
func newTagger(cfg config.TaggingConfig, logger *zap.Logger) (*embedding.Tagger, embedding.Embedder, server.TaggerStatus) {
	status := server.TaggerStatus{Enabled: cfg.Enabled, Embedder: cfg.Embedder}
	if !cfg.Enabled {
		return nil, nil, status
	}
	fail := func(err error) (*embedding.Tagger, embedding.Embedder, server.TaggerStatus) {
		logger.Warn("message tagging disabled", zap.Error(err))
		status.Error = err.Error()
		return nil, nil, status
	}

	centroids, err := embedding.LoadCentroids(cfg.CentroidsPath)
	if err != nil {
		return fail(err)
	}

	var e embedding.Embedder
	switch cfg.Embedder {
	case config.EmbedderHash:
		e = embedding.NewHashEmbedder(cfg.Dimensions)
	default:
		onnx, err := embedding.NewONNXEmbedder(embedding.ONNXConfig{
			ModelPath:  cfg.ModelPath,
			Dimensions: cfg.Dimensions,
			MaxTokens:  cfg.MaxTokens,
		})
		if err != nil {
			return fail(err)
		}
		e = onnx
	}
	cached := embedding.WithCache(e, cfg.CacheSize)

	tagger, err := embedding.NewTagger(cached, centroids)
	if err != nil {
		_ = e.Close()
		return fail(err)
	}
	status.Ready = true
	status.Clusters = tagger.Clusters()
	logger.Info("message tagging enabled",
		zap.String("embedder", cfg.Embedder),
		zap.Int("clusters", tagger.Clusters()),
		zap.Int("dimensions", cached.Dimensions()))
	return tagger, e, status
}
