package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/prism-answer/internal/config"
	"github.com/kirillkom/prism-answer/internal/core/domain"
	"github.com/kirillkom/prism-answer/internal/core/ports"
	"github.com/kirillkom/prism-answer/internal/core/usecase"
	"github.com/kirillkom/prism-answer/internal/infrastructure/cache"
	"github.com/kirillkom/prism-answer/internal/infrastructure/llm/failover"
	"github.com/kirillkom/prism-answer/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/prism-answer/internal/infrastructure/llm/openai"
	"github.com/kirillkom/prism-answer/internal/infrastructure/queue/nats"
	"github.com/kirillkom/prism-answer/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/prism-answer/internal/infrastructure/rerank/tei"
	"github.com/kirillkom/prism-answer/internal/infrastructure/resilience"
	"github.com/kirillkom/prism-answer/internal/infrastructure/vector/chromem"
	"github.com/kirillkom/prism-answer/internal/infrastructure/vector/qdrant"
	"github.com/kirillkom/prism-answer/internal/observability/metrics"
)

const (
	localCacheCleanupInterval = 10 * time.Minute
	cachePurgeInterval        = time.Hour
)

type App struct {
	Config       config.Config
	SectionRules []domain.SectionBoostRule
	Metrics      *metrics.HTTPServerMetrics

	AnswerUC ports.AnswerService
	CacheUC  ports.CacheAdmin
	IndexUC  ports.ChunkIndexer

	closeFns []func()
}

func New(ctx context.Context, cfg config.Config) (_ *App, err error) {
	app := &App{Config: cfg}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	rules, err := config.LoadSectionRules(cfg.RAGSectionRulesPath)
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		rules = usecase.DefaultSectionRules()
	}
	app.SectionRules = rules

	app.Metrics = metrics.NewHTTPServerMetrics(cfg.ServiceName)
	observer := app.Metrics.RAG

	executor := resilience.NewExecutor(resilience.DefaultConfig()).OnStateChange(observer.ObserveBreakerState)

	ollamaClient := ollama.NewWithOptions(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, ollama.Options{
		JSONFormat:         true,
		Timeout:            cfg.LLMRequestTimeout,
		ResilienceExecutor: executor,
	})
	embedder := ollama.NewEmbedder(ollamaClient)

	store, err := openChunkStore(cfg, executor)
	if err != nil {
		return nil, err
	}

	var scorer ports.CrossEncoder
	if cfg.RerankURL != "" {
		scorer = tei.New(cfg.RerankURL, tei.Options{
			MaxBatchSize:       cfg.RerankBatchSize,
			Parallelism:        cfg.RerankParallelism,
			ResilienceExecutor: executor,
		})
	} else {
		slog.Info("rerank_disabled", "reason", "rerank_url is empty")
	}

	completer, err := newCompleter(cfg, ollamaClient, observer)
	if err != nil {
		return nil, err
	}

	responseCache, err := app.openResponseCache(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var publisher ports.CacheInvalidationPublisher
	if cfg.NATSURL != "" {
		bus, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{ResilienceExecutor: executor})
		if err != nil {
			return nil, fmt.Errorf("init cache invalidation bus: %w", err)
		}
		app.closeFns = append(app.closeFns, bus.Close)

		err = bus.SubscribeCacheCleared(ctx, cfg.InstanceID, func(ctx context.Context, event nats.CacheInvalidation) {
			deleted := responseCache.ClearLocal(ctx)
			slog.Info("cache_invalidation_applied", "origin", event.Origin, "deleted", deleted)
		})
		if err != nil {
			return nil, fmt.Errorf("subscribe cache invalidation: %w", err)
		}
		publisher = bus
	}

	classifier := usecase.NewIntentClassifier(rules)
	ranker := usecase.NewCandidateRanker(classifier, embedder, store, scorer, observer, usecase.RankerConfig{
		RerankTopK:          cfg.RAGRerankTopK,
		FinalTopK:           cfg.RAGFinalTopK,
		MaxCandidatePool:    cfg.RAGMaxCandidatePool,
		ExactSectionBoost:   cfg.RAGExactSectionBoost,
		RelatedSectionBoost: cfg.RAGRelatedSectionBoost,
		RecallTimeout:       cfg.RAGRecallTimeout,
		RerankTimeout:       cfg.RAGRerankTimeout,
	})

	genCfg := usecase.DefaultGeneratorConfig()
	genCfg.DraftTemperature = cfg.DraftTemperature
	genCfg.ValidateTemperature = cfg.ValidateTemperature
	genCfg.DraftMaxTokens = cfg.DraftMaxTokens
	genCfg.ValidateMaxTokens = cfg.ValidateMaxTokens
	genCfg.CacheTTL = cfg.CacheTTL
	generator := usecase.NewGroundedAnswerGenerator(completer, responseCache, observer, genCfg)

	app.AnswerUC = usecase.NewAnswerUseCase(ranker, generator, observer)
	app.CacheUC = usecase.NewCacheAdminUseCase(responseCache, publisher, cfg.InstanceID)
	app.IndexUC = usecase.NewIndexUseCase(embedder, store)
	return app, nil
}

func (a *App) Close() {
	for i := len(a.closeFns) - 1; i >= 0; i-- {
		a.closeFns[i]()
	}
	a.closeFns = nil
}

func openChunkStore(cfg config.Config, executor *resilience.Executor) (ports.ChunkStore, error) {
	switch cfg.VectorBackend {
	case "chromem":
		store, err := chromem.Open(cfg.ChromemPath, cfg.ChromemCollection)
		if err != nil {
			return nil, fmt.Errorf("open chromem store: %w", err)
		}
		return store, nil
	default:
		return qdrant.NewWithOptions(cfg.QdrantURL, cfg.QdrantCollection, qdrant.Options{
			ResilienceExecutor: executor,
		}), nil
	}
}

// newCompleter builds the provider failover chain in configured order.
// Hosted providers without an API key are skipped.
func newCompleter(cfg config.Config, ollamaClient *ollama.Client, observer *metrics.RAGMetrics) (ports.Completer, error) {
	var providers []failover.Provider
	for _, name := range cfg.LLMProviders {
		var (
			completer ports.Completer
			err       error
		)
		switch name {
		case "gemini":
			if cfg.GeminiAPIKey == "" {
				slog.Info("llm_provider_skipped", "provider", name, "reason", "missing api key")
				continue
			}
			completer, err = openai.New(openai.Config{
				Name:    name,
				APIKey:  cfg.GeminiAPIKey,
				BaseURL: cfg.GeminiBaseURL,
				Model:   cfg.GeminiModel,
			})
		case "groq":
			if cfg.GroqAPIKey == "" {
				slog.Info("llm_provider_skipped", "provider", name, "reason", "missing api key")
				continue
			}
			completer, err = openai.New(openai.Config{
				Name:    name,
				APIKey:  cfg.GroqAPIKey,
				BaseURL: cfg.GroqBaseURL,
				Model:   cfg.GroqModel,
			})
		case "ollama":
			completer = ollama.NewCompleter(ollamaClient)
		default:
			slog.Warn("llm_provider_unknown", "provider", name)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("init llm provider %s: %w", name, err)
		}
		providers = append(providers, failover.Provider{
			Name:        name,
			Completer:   completer,
			MinInterval: cfg.LLMMinInterval,
		})
	}

	completer, err := failover.New(providers, failover.Options{
		QuotaCooldown: cfg.LLMQuotaCooldown,
		OnFailover:    observer.ObserveFailover,
	})
	if err != nil {
		return nil, fmt.Errorf("init llm failover: %w", err)
	}
	return completer, nil
}

func (a *App) openResponseCache(ctx context.Context, cfg config.Config) (*cache.Layered, error) {
	local := cache.NewMemory(cfg.CacheTTL, localCacheCleanupInterval)
	if cfg.CacheBackend != "postgres" {
		return cache.NewLayered(local, nil, cfg.CacheTTL), nil
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	a.closeFns = append(a.closeFns, func() { _ = db.Close() })

	repo := postgres.NewResponseCacheRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure cache schema: %w", err)
	}

	purgeCtx, cancel := context.WithCancel(context.Background())
	a.closeFns = append(a.closeFns, cancel)
	go purgeExpiredLoop(purgeCtx, repo)

	return cache.NewLayered(local, repo, cfg.CacheTTL), nil
}

func purgeExpiredLoop(ctx context.Context, repo *postgres.ResponseCacheRepository) {
	ticker := time.NewTicker(cachePurgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := repo.PurgeExpired(ctx)
			if err != nil {
				slog.Warn("response_cache_purge_failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("response_cache_purged", "deleted", n)
			}
		}
	}
}
