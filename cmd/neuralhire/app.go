package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/nursmen/neuralhire/internal/config"
	"github.com/nursmen/neuralhire/internal/embcache"
	"github.com/nursmen/neuralhire/internal/embedder"
	"github.com/nursmen/neuralhire/internal/jobtext"
	"github.com/nursmen/neuralhire/internal/llm"
	"github.com/nursmen/neuralhire/internal/logger"
	"github.com/nursmen/neuralhire/internal/memory"
	"github.com/nursmen/neuralhire/internal/metrics"
	"github.com/nursmen/neuralhire/internal/ranking"
	"github.com/nursmen/neuralhire/internal/repository"
	badgerstore "github.com/nursmen/neuralhire/internal/repository/badger"
	"github.com/nursmen/neuralhire/internal/repository/postgres"
	"github.com/nursmen/neuralhire/internal/reranker"
	"github.com/nursmen/neuralhire/internal/service"
	"github.com/nursmen/neuralhire/internal/validator"
	"github.com/nursmen/neuralhire/internal/vectorstore"
)

// application holds the components shared by every command.
type application struct {
	cfg     *config.Config
	logger  *zap.Logger
	repo    repository.JobRepository
	embed   *embedder.Provider
	index   vectorstore.VectorStore // nil for the brute-force backend
	closers []func()

	client    llm.LLM
	clientErr error
	clientSet bool
}

func newApplication(ctx context.Context, cfg *config.Config, log *zap.Logger) (*application, error) {
	a := &application{cfg: cfg, logger: log}

	if err := a.openStore(ctx); err != nil {
		a.close()
		return nil, err
	}
	if err := a.openEmbedder(); err != nil {
		a.close()
		return nil, err
	}
	if cfg.IndexBackend == "qdrant" {
		store, err := vectorstore.NewQdrantStore(cfg.QdrantGRPCURL, cfg.QdrantCollection)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("failed to connect to Qdrant: %w", err)
		}
		a.index = store
		a.closers = append(a.closers, func() { _ = store.Close() })
		log.Info("connected to Qdrant", zap.String("collection", cfg.QdrantCollection))
	}
	return a, nil
}

func (a *application) openStore(ctx context.Context) error {
	switch a.cfg.StoreDriver {
	case "badger":
		db, err := badgerstore.Open(a.cfg.BadgerPath, false, a.logger)
		if err != nil {
			return fmt.Errorf("failed to open badger: %w", err)
		}
		a.closers = append(a.closers, func() { _ = db.Close() })
		repo, err := badgerstore.NewJobRepo(db)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() { _ = repo.Close() })
		a.repo = repo
		a.logger.Info("opened badger store", zap.String("path", a.cfg.BadgerPath))
	default:
		db, err := postgres.New(ctx, a.cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		if err := db.EnsureSchema(ctx); err != nil {
			return err
		}
		a.repo = postgres.NewJobRepo(db)
		a.logger.Info("connected to PostgreSQL")
	}
	return nil
}

func (a *application) openEmbedder() error {
	cfg := a.cfg

	var base embedder.Embedder
	switch cfg.EmbeddingProvider {
	case "openai":
		base = embedder.NewOpenAIEmbedder(embedder.OpenAIConfig{
			APIKey:    cfg.EmbeddingAPIKey,
			BaseURL:   cfg.EmbeddingBaseURL,
			Model:     cfg.EmbeddingModel,
			Dimension: cfg.EmbeddingDimension,
		})
	default:
		baseURL := cfg.EmbeddingBaseURL
		if baseURL == "" {
			baseURL = cfg.OllamaURL
		}
		base = embedder.NewOllamaEmbedder(embedder.OllamaConfig{
			BaseURL:          baseURL,
			Model:            cfg.EmbeddingModel,
			Dimension:        cfg.EmbeddingDimension,
			BatchConcurrency: cfg.EmbeddingConcurrency,
		})
	}

	pcfg := embedder.ProviderConfig{
		Dimension:           cfg.EmbeddingDimension,
		DocumentInstruction: cfg.DocumentInstruction,
		QueryInstruction:    cfg.QueryInstruction,
	}
	if len(cfg.RedisAddrs) > 0 {
		store, err := embcache.NewRedisStore(embcache.RedisConfig{
			Addrs:    cfg.RedisAddrs,
			Password: cfg.RedisPassword,
			TTL:      cfg.CacheTTL,
		})
		if err != nil {
			return err
		}
		a.closers = append(a.closers, store.Close)
		pcfg.QueryEmbedder = embcache.New(base, store, metrics.EmbeddingCacheTotal, a.logger)
	} else if cfg.MemoryCache > 0 {
		store, err := memory.NewStore(cfg.MemoryCache, cfg.CacheTTL)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, store.Close)
		pcfg.QueryEmbedder = embcache.New(base, store, metrics.EmbeddingCacheTotal, a.logger)
	}

	a.embed = embedder.NewProvider(base, pcfg)
	a.logger.Info("initialized embedder",
		logger.CommonFields(cfg.EmbeddingProvider, cfg.EmbeddingModel)...)
	return nil
}

// llmClient returns the configured LLM client, creating it on first use.
func (a *application) llmClient(ctx context.Context) (llm.LLM, error) {
	if a.clientSet {
		return a.client, a.clientErr
	}
	a.clientSet = true

	cfg := a.cfg
	switch cfg.LLMProvider {
	case "openai":
		c, err := llm.NewOpenAIClient(cfg.LLMAPIKey, cfg.LLMBaseURL, cfg.LLMModelName())
		if err != nil {
			a.clientErr = err
			return nil, err
		}
		a.client = c
	case "gemini":
		c, err := llm.NewGeminiClient(ctx, cfg.LLMAPIKey, cfg.LLMModelName())
		if err != nil {
			a.clientErr = err
			return nil, err
		}
		a.client = c
	default:
		a.client = llm.NewOllamaClient(
			llm.WithBaseURL(cfg.OllamaURL),
			llm.WithModel(cfg.LLMModelName()),
		)
	}
	a.logger.Info("initialized LLM", logger.CommonFields(a.client.Name(), cfg.LLMModelName())...)
	return a.client, nil
}

// pipeline assembles the ranking pipeline.
func (a *application) pipeline(ctx context.Context) (*ranking.Pipeline, error) {
	cfg := a.cfg

	var retriever ranking.Retriever
	if a.index != nil {
		retriever = ranking.NewIndexRetriever(a.index, a.repo, cfg.QdrantLimit)
	} else {
		scorer, err := ranking.NewVectorScorer(cfg.ScoreWorkers, 0)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, scorer.Release)
		retriever = ranking.NewBruteForceRetriever(a.repo, scorer)
	}

	var client llm.LLM
	if cfg.LLMValidation || cfg.RerankProvider == "llm" {
		c, err := a.llmClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create LLM client: %w", err)
		}
		client = c
	}

	opts := []ranking.Option{ranking.WithLogger(a.logger)}
	switch cfg.RerankProvider {
	case "http":
		opts = append(opts, ranking.WithReranker(reranker.NewCrossEncoder(reranker.NewHTTPScorer(cfg.RerankURL,
			reranker.WithModel(cfg.RerankModel),
			reranker.WithBatchSize(cfg.RerankBatchSize),
		))))
	case "llm":
		opts = append(opts, ranking.WithReranker(reranker.NewCrossEncoder(
			reranker.NewLLMScorer(client, reranker.WithLLMModel(cfg.LLMModelName())),
		)))
	}
	if cfg.LLMValidation {
		opts = append(opts, ranking.WithValidator(validator.New(client, validator.Options{
			Model:    cfg.LLMModelName(),
			MaxItems: cfg.LLMMaxItems,
			Timeout:  cfg.LLMTimeout,
			Logger:   a.logger,
		})))
	}

	return ranking.NewPipeline(a.embed, retriever, a.repo, ranking.Config{
		CandidatePool:  cfg.CandidatePool,
		RerankPool:     cfg.RerankPool,
		TopK:           cfg.TopK,
		BoostWeight:    cfg.BoostWeight,
		ScorePrecision: cfg.ScorePrecision,
		RerankFallback: cfg.RerankFallback,
		LLMValidation:  cfg.LLMValidation,
	}, opts...), nil
}

// matchService wraps the pipeline with tag validation and explanations.
// Explanations are disabled when no LLM client can be created.
func (a *application) matchService(ctx context.Context) (*service.MatchService, error) {
	p, err := a.pipeline(ctx)
	if err != nil {
		return nil, err
	}
	catalog, err := jobtext.LoadCatalog(a.cfg.TagCatalogFile)
	if err != nil {
		return nil, err
	}

	opts := []service.MatchOption{service.WithMatchLogger(a.logger)}
	if client, err := a.llmClient(ctx); err != nil {
		a.logger.Warn("explanations disabled", zap.Error(err))
	} else {
		opts = append(opts, service.WithExplainer(client, a.cfg.LLMModelName()))
	}
	return service.NewMatchService(p, a.repo, catalog, opts...), nil
}

func (a *application) jobService() *service.JobService {
	opts := []service.JobOption{
		service.WithWorkers(a.cfg.EmbeddingConcurrency),
		service.WithJobLogger(a.logger),
	}
	if a.index != nil {
		opts = append(opts, service.WithIndex(a.index))
	}
	return service.NewJobService(a.repo, a.embed, opts...)
}

// close releases resources in reverse order of acquisition.
func (a *application) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
