package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/shubhsaxena/directory-assistant/internal/api"
	"github.com/shubhsaxena/directory-assistant/internal/cache"
	"github.com/shubhsaxena/directory-assistant/internal/clickhouse"
	"github.com/shubhsaxena/directory-assistant/internal/config"
	"github.com/shubhsaxena/directory-assistant/internal/elasticsearch"
	"github.com/shubhsaxena/directory-assistant/internal/fuzzy"
	"github.com/shubhsaxena/directory-assistant/internal/model"
	"github.com/shubhsaxena/directory-assistant/internal/nlu"
	"github.com/shubhsaxena/directory-assistant/internal/observability"
	"github.com/shubhsaxena/directory-assistant/internal/orchestrator"
	"github.com/shubhsaxena/directory-assistant/internal/resilience"
	"github.com/shubhsaxena/directory-assistant/internal/store"
)

// app holds the loaded configuration and everything that must be closed on
// exit, in reverse order of opening.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	closers []func() error
}

func newApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if errors.Is(err, fs.ErrNotExist) {
		cfg, err = config.DefaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger, err := observability.NewLogger(cfg.Observability.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	return &app{cfg: cfg, logger: logger}, nil
}

func (a *app) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

// backend is the directory the router reads, plus what readiness and
// reindexing need to know about it.
type backend struct {
	dir    store.Directory
	health api.HealthChecker
	index  *elasticsearch.Client
	cache  *cache.Directory
}

// openDirectory opens the configured store and, when enabled, puts the
// Redis cache in front of it.
func (a *app) openDirectory(ctx context.Context) (*backend, error) {
	b, err := a.openStore(ctx, a.cfg.Store)
	if err != nil {
		return nil, err
	}

	if a.cfg.Redis.Enabled {
		c, err := cache.NewRedisCache(a.cfg.Redis, b.dir, a.logger)
		if err != nil {
			// Lookups still work uncached.
			a.logger.Warn("redis initialization failed, continuing without cache", zap.Error(err))
		} else {
			a.onClose(c.Close)
			b.cache = c
			b.dir = c
		}
	}
	return b, nil
}

func (a *app) openStore(ctx context.Context, cfg config.StoreConfig) (*backend, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		var ds *store.Dataset
		if cfg.Seed {
			ds = store.SeedData(time.Now())
		}
		m := store.NewMemory(ds)
		return &backend{dir: m, health: m}, nil

	case config.DriverSQLite, config.DriverPostgres:
		s, err := store.OpenSQL(cfg, a.logger)
		if err != nil {
			return nil, fmt.Errorf("opening %s store: %w", cfg.Driver, err)
		}
		a.onClose(s.Close)
		if err := s.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensuring schema: %w", err)
		}
		if cfg.Seed {
			seeded, err := s.SeedIfEmpty(ctx, store.SeedData(time.Now()))
			if err != nil {
				return nil, fmt.Errorf("seeding store: %w", err)
			}
			if seeded {
				a.logger.Info("store seeded", zap.String("driver", cfg.Driver))
			}
		}
		return &backend{dir: s, health: s}, nil

	case config.DriverElasticsearch:
		es, err := a.openIndex(ctx)
		if err != nil {
			return nil, err
		}
		return &backend{dir: es, index: es}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}

func (a *app) openIndex(ctx context.Context) (*elasticsearch.Client, error) {
	es, err := elasticsearch.NewClient(a.cfg.Elasticsearch, a.cfg.Search, a.logger)
	if err != nil {
		return nil, fmt.Errorf("initializing elasticsearch: %w", err)
	}
	if err := es.EnsureIndices(ctx); err != nil {
		return nil, fmt.Errorf("ensuring indices: %w", err)
	}
	return es, nil
}

// openAnalytics returns nil when ClickHouse is disabled or unreachable;
// answers never depend on it.
func (a *app) openAnalytics(ctx context.Context) *clickhouse.Client {
	if !a.cfg.ClickHouse.Enabled {
		return nil
	}
	ch, err := clickhouse.NewClient(a.cfg.ClickHouse, a.logger)
	if err != nil {
		a.logger.Warn("clickhouse initialization failed, analytics will be unavailable", zap.Error(err))
		return nil
	}
	a.onClose(ch.Close)
	if err := ch.EnsureTables(ctx); err != nil {
		a.logger.Warn("clickhouse table creation failed", zap.Error(err))
	}
	return ch
}

func (a *app) buildResolver() (*nlu.Resolver, error) {
	p := a.cfg.Pipeline

	ncfg := nlu.DefaultNormalizerConfig()
	ncfg.PreserveChars = p.PreserveChars
	if p.Language != "" {
		tag, err := language.Parse(p.Language)
		if err != nil {
			return nil, fmt.Errorf("pipeline language %q: %w", p.Language, err)
		}
		ncfg.Language = tag
	}
	if p.Stemming {
		stemmer, err := nlu.NewSnowballStemmer(p.StemmerLanguage)
		if err != nil {
			return nil, err
		}
		ncfg.Stemmer = stemmer
	}

	fallback, err := a.buildModelFallback()
	if err != nil {
		return nil, err
	}

	return nlu.NewResolver(
		nlu.NewNormalizer(ncfg),
		nlu.DefaultLexicon(),
		fallback,
		nlu.ResolverConfig{
			MinConfidence:     p.MinConfidence,
			LocalMinScore:     p.LocalMinScore,
			TriggerConfidence: p.TriggerConfidence,
		},
		a.logger,
	), nil
}

// buildModelFallback wires the embedding classifier when a provider is
// configured. Without one the fallback answers with the pinned pair.
func (a *app) buildModelFallback() (*nlu.ModelFallback, error) {
	fcfg := nlu.DefaultModelFallbackConfig()
	fcfg.Timeout = a.cfg.Model.Timeout
	fcfg.PinnedAt = a.cfg.Pipeline.ModelFallbackConfidence

	var client nlu.Classifier
	embedder, err := model.NewEmbedder(a.cfg.Model)
	switch {
	case errors.Is(err, model.ErrDisabled):
		a.logger.Info("model fallback disabled")
	case err != nil:
		return nil, fmt.Errorf("initializing model: %w", err)
	default:
		client = model.NewClassifier(embedder, model.DefaultDescriptions(), a.logger)
		a.logger.Info("model fallback enabled",
			zap.String("provider", a.cfg.Model.Provider),
			zap.String("model", a.cfg.Model.Model),
		)
	}

	breaker := resilience.NewCircuitBreaker("model", a.cfg.Model.CircuitBreaker, a.logger)
	return nlu.NewModelFallback(client, breaker, fcfg, a.logger), nil
}

func (a *app) buildOrchestrator(dir store.Directory, analytics observability.AnalyticsWriter) (*orchestrator.Orchestrator, error) {
	resolver, err := a.buildResolver()
	if err != nil {
		return nil, err
	}

	router := orchestrator.NewRouter(
		dir,
		resolver.Lexicon(),
		resilience.NewCircuitBreaker("directory", a.cfg.Search.CircuitBreaker, a.logger),
		orchestrator.RouterConfig{
			QueryTimeout: a.cfg.Search.QueryTimeout,
			MaxResults:   a.cfg.Pipeline.MaxResults,
			Fuzzy: fuzzy.Options{
				TopK:       a.cfg.Pipeline.FuzzyTopK,
				Similarity: a.cfg.Pipeline.FuzzySimilarity,
			},
			Location: time.Local,
		},
		a.logger,
	)

	slow := observability.NewSlowPipelineDetector(
		a.cfg.Search.SlowQuery.WarningThreshold,
		a.cfg.Search.SlowQuery.CriticalThreshold,
		a.logger,
		analytics,
	)

	return orchestrator.New(resolver, router, slow, analytics, a.logger), nil
}
