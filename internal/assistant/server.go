// Package assistant wires the Moktashif chat assistant server.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/moktashif/internal/assistant/biz"
	"github.com/kart-io/moktashif/internal/assistant/handler"
	"github.com/kart-io/moktashif/internal/assistant/router"
	"github.com/kart-io/moktashif/internal/assistant/store"
	"github.com/kart-io/moktashif/internal/pkg/blob"
	"github.com/kart-io/moktashif/internal/pkg/websearch"
	"github.com/kart-io/moktashif/pkg/component"
	"github.com/kart-io/moktashif/pkg/component/milvus"
	"github.com/kart-io/moktashif/pkg/component/mongodb"
	"github.com/kart-io/moktashif/pkg/component/redis"
	"github.com/kart-io/moktashif/pkg/infra/app"
	"github.com/kart-io/moktashif/pkg/infra/pool"
	"github.com/kart-io/moktashif/pkg/llm"
	// 导入 LLM 供应商以自动注册
	_ "github.com/kart-io/moktashif/pkg/llm/gemini"
	_ "github.com/kart-io/moktashif/pkg/llm/huggingface"
	_ "github.com/kart-io/moktashif/pkg/llm/ollama"
	_ "github.com/kart-io/moktashif/pkg/llm/openai"
	"github.com/kart-io/moktashif/pkg/llm/resilience"
	"github.com/kart-io/moktashif/pkg/middleware"
	assistantopts "github.com/kart-io/moktashif/pkg/options/assistant"
	cacheopts "github.com/kart-io/moktashif/pkg/options/cache"
	httpopts "github.com/kart-io/moktashif/pkg/options/http"
	jwtopts "github.com/kart-io/moktashif/pkg/options/jwt"
	llmopts "github.com/kart-io/moktashif/pkg/options/llm"
	logopts "github.com/kart-io/moktashif/pkg/options/logger"
	milvusopts "github.com/kart-io/moktashif/pkg/options/milvus"
	mongoopts "github.com/kart-io/moktashif/pkg/options/mongodb"
	redisopts "github.com/kart-io/moktashif/pkg/options/redis"
	searchopts "github.com/kart-io/moktashif/pkg/options/search"
	storageopts "github.com/kart-io/moktashif/pkg/options/storage"
)

// Name is the name of the application.
const Name = "moktashif"

// Config contains application-related configurations.
type Config struct {
	HTTPOptions      *httpopts.Options
	LogOptions       *logopts.Options
	JWTOptions       *jwtopts.Options
	MongoOptions     *mongoopts.Options
	MilvusOptions    *milvusopts.Options
	RedisOptions     *redisopts.Options
	CacheOptions     *cacheopts.Options
	StorageOptions   *storageopts.Options
	SearchOptions    *searchopts.Options
	ChatOptions      *llmopts.ProviderOptions
	EmbeddingOptions *llmopts.ProviderOptions
	AssistantOptions *assistantopts.Options
}

// Server represents the assistant server.
type Server struct {
	http            *http.Server
	shutdownTimeout time.Duration
	closers         []func()
	// probes are the backend clients reported by /readyz.
	probes []component.Client
}

// readinessTimeout bounds each backend ping in /readyz.
const readinessTimeout = 2 * time.Second

// NewServer initializes and returns a new Server instance.
func (cfg *Config) NewServer(ctx context.Context) (_ *Server, err error) {
	// 1. 初始化日志
	cfg.LogOptions.AddInitialField("service.version", app.GetVersion())
	if err := cfg.LogOptions.Init(Name); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Info("Starting Moktashif service...")

	srv := &Server{shutdownTimeout: cfg.HTTPOptions.ShutdownTimeout}
	defer func() {
		if err != nil {
			srv.close()
		}
	}()

	// 2. 初始化文档存储
	factory, err := cfg.newFactory(ctx, srv)
	if err != nil {
		return nil, err
	}
	srv.closers = append(srv.closers, func() { _ = factory.Close() })

	// 3. 初始化向量存储
	vectors, err := cfg.newVectorStore(ctx, srv)
	if err != nil {
		return nil, err
	}
	logger.Infow("Vector store initialized", "backend", vectors.Name())

	// 4. 初始化 Redis（可选，用于摘要与向量缓存）
	redisClient := cfg.newRedis(ctx, srv)

	// 5. 初始化 LLM 供应商
	chatProvider, err := newChatProvider(cfg.ChatOptions)
	if err != nil {
		return nil, err
	}
	embedProvider, err := newEmbeddingProvider(cfg.EmbeddingOptions)
	if err != nil {
		return nil, err
	}
	if redisClient != nil {
		embedProvider = llm.NewCachedEmbeddingProvider(embedProvider, redisClient, &llm.EmbeddingCacheConfig{
			Enabled:   true,
			TTL:       cfg.CacheOptions.EmbeddingTTL,
			KeyPrefix: cfg.CacheOptions.KeyPrefix + "emb:",
		})
	}

	// 6. 初始化上传存储与网页搜索
	blobs, err := blob.New(ctx, cfg.StorageOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize upload storage: %w", err)
	}
	search, err := cfg.newSearchAgent(ctx, chatProvider)
	if err != nil {
		return nil, err
	}

	// 7. 后台任务池
	pools := pool.NewManager()
	srv.closers = append(srv.closers, func() {
		if err := pools.ReleaseAll(srv.shutdownTimeout); err != nil {
			logger.Warnw("worker pool release timed out", "error", err.Error())
		}
	})
	background, err := pools.Register("fact-extraction", pool.BackgroundPool, pool.BackgroundPoolConfig(cfg.AssistantOptions.FactWorkers))
	if err != nil {
		return nil, fmt.Errorf("failed to create background pool: %w", err)
	}

	// 8. 初始化 Biz 层
	var summaryCache *biz.SummaryCache
	if redisClient != nil {
		summaryCache = biz.NewSummaryCache(redisClient, &biz.SummaryCacheConfig{
			Enabled:   true,
			TTL:       cfg.CacheOptions.SummaryTTL,
			KeyPrefix: cfg.CacheOptions.KeyPrefix + "summary:",
		})
	}

	opts := cfg.AssistantOptions
	memory := biz.NewMemoryStore(factory.Memories(), embedProvider, opts.Memory)
	retriever := biz.NewRetriever(embedProvider, vectors)
	files := biz.NewFileService(blobs, factory, retriever, memory, biz.FileConfig{
		ChunkSize:        opts.ChunkSize,
		FileContentLimit: opts.FileContentLimit,
		FileImportance:   opts.Memory.FileImportance,
	})
	chat := biz.NewChatService(biz.ChatDeps{
		Conversations: factory.Conversations(),
		Files:         files,
		Memory:        memory,
		Facts:         biz.NewFactExtractor(chatProvider, memory, opts.Memory.FactImportance),
		Retriever:     retriever,
		Summarizer:    biz.NewSummarizer(summaryCache, opts.SummaryMaxDepth),
		Model:         chatProvider,
		Search:        search,
		Background:    background,
	}, biz.ChatConfig{
		HistoryWindow:   opts.HistoryWindow,
		TopK:            opts.TopK,
		ChunkSize:       opts.ChunkSize,
		SummaryMaxDepth: opts.SummaryMaxDepth,
		DocumentExcerpt: opts.DocumentExcerpt,
		SearchContext:   opts.SearchContext,
		FileImportance:  opts.Memory.FileImportance,
	})
	conversations := biz.NewConversationService(factory.Conversations())
	logger.Infow("Assistant services initialized",
		"store", opts.Store,
		"history_window", opts.HistoryWindow,
		"chunk_size", opts.ChunkSize,
		"summary_cache", summaryCache != nil,
	)

	// 9. 初始化 HTTP 服务
	gin.SetMode(cfg.HTTPOptions.Mode)
	engine := gin.New()
	engine.Use(
		middleware.Recovery(),
		middleware.RequestIDMiddleware(),
		middleware.Logger(),
		middleware.CORS(cfg.HTTPOptions.CORSOrigins...),
	)
	router.Register(engine, handler.New(conversations, chat, files), router.Options{
		Identity:      middleware.Identity(cfg.JWTOptions),
		MaxUploadSize: cfg.HTTPOptions.MaxUploadSize,
		Readiness:     srv.readiness,
	})
	if cfg.JWTOptions.DisableAuth {
		logger.Warn("Bearer token verification is disabled, trusting the X-User-ID header")
	}

	srv.http = &http.Server{
		Addr:         cfg.HTTPOptions.Addr,
		Handler:      engine,
		ReadTimeout:  cfg.HTTPOptions.ReadTimeout,
		WriteTimeout: cfg.HTTPOptions.WriteTimeout,
		IdleTimeout:  cfg.HTTPOptions.IdleTimeout,
	}

	logger.Infow("Moktashif service is ready", "addr", cfg.HTTPOptions.Addr)
	return srv, nil
}

func (cfg *Config) newFactory(ctx context.Context, srv *Server) (store.Factory, error) {
	if cfg.AssistantOptions.Store == assistantopts.StoreMemory {
		logger.Warn("Using in-memory document store, data is lost on restart")
		return store.NewMemoryFactory(), nil
	}

	client, err := mongodb.New(ctx, cfg.MongoOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize mongodb: %w", err)
	}
	factory, err := store.NewMongoFactory(ctx, client)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to initialize mongodb store: %w", err)
	}
	srv.probes = append(srv.probes, client)
	logger.Infow("MongoDB store initialized", "database", cfg.MongoOptions.Database)
	return factory, nil
}

func (cfg *Config) newVectorStore(ctx context.Context, srv *Server) (store.VectorStore, error) {
	if cfg.AssistantOptions.Vector == assistantopts.VectorMemory {
		return store.NewMemoryVectorStore(), nil
	}

	client, err := milvus.New(ctx, cfg.MilvusOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize milvus: %w", err)
	}
	srv.closers = append(srv.closers, func() { _ = client.Close(context.Background()) })
	srv.probes = append(srv.probes, client)

	vectors, err := store.NewMilvusVectorStore(ctx, client, cfg.MilvusOptions.Collection, cfg.MilvusOptions.Dimension)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize milvus collection: %w", err)
	}
	return vectors, nil
}

// newRedis 连接 Redis；缓存关闭或连接失败时返回 nil，服务在无缓存模式下运行。
func (cfg *Config) newRedis(ctx context.Context, srv *Server) goredis.UniversalClient {
	if !cfg.CacheOptions.Enabled {
		logger.Info("Cache is disabled")
		return nil
	}

	client, err := redis.New(ctx, cfg.RedisOptions)
	if err != nil {
		logger.Warnw("failed to connect to redis, cache will be disabled", "error", err.Error())
		return nil
	}
	srv.closers = append(srv.closers, func() { _ = client.Close() })
	srv.probes = append(srv.probes, client)
	logger.Infow("Redis cache initialized",
		"host", cfg.RedisOptions.Host,
		"port", cfg.RedisOptions.Port,
		"summary_ttl", cfg.CacheOptions.SummaryTTL,
	)
	return client.Client()
}

func (cfg *Config) newSearchAgent(ctx context.Context, chat llm.ChatProvider) (*websearch.Agent, error) {
	var searcher websearch.Searcher
	if cfg.SearchOptions.Configured() {
		google, err := websearch.NewGoogle(ctx, cfg.SearchOptions)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize web search: %w", err)
		}
		searcher = google
		logger.Infow("Web search initialized", "results", cfg.SearchOptions.Results)
	} else {
		logger.Warn("Web search is not configured, web questions are answered by the model alone")
	}
	return websearch.NewAgent(searcher, chat, websearch.Config{
		SystemPrompt: biz.WebSearchPersona,
		Results:      cfg.SearchOptions.Results,
	}), nil
}

func newChatProvider(opts *llmopts.ProviderOptions) (llm.ChatProvider, error) {
	p, err := llm.NewChatProvider(opts.Provider, opts.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat provider: %w", err)
	}
	logger.Infow("Chat provider initialized", "provider", opts.Provider, "model", opts.Model)
	if opts.BreakerMaxFailures <= 0 {
		return p, nil
	}
	return resilience.WrapChat(p, retryConfig(opts), breakerConfig(opts)), nil
}

func newEmbeddingProvider(opts *llmopts.ProviderOptions) (llm.EmbeddingProvider, error) {
	p, err := llm.NewEmbeddingProvider(opts.Provider, opts.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding provider: %w", err)
	}
	logger.Infow("Embedding provider initialized", "provider", opts.Provider, "model", opts.Model)
	if opts.BreakerMaxFailures <= 0 {
		return p, nil
	}
	return resilience.WrapEmbedding(p, retryConfig(opts), breakerConfig(opts)), nil
}

// retryConfig 默认只尝试一次，上游错误交由调用方重新发起。
func retryConfig(opts *llmopts.ProviderOptions) *resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	cfg.MaxAttempts = max(1, opts.RetryAttempts)
	return cfg
}

func breakerConfig(opts *llmopts.ProviderOptions) *resilience.BreakerConfig {
	cfg := resilience.DefaultBreakerConfig()
	cfg.MaxFailures = opts.BreakerMaxFailures
	if opts.BreakerOpenTimeout > 0 {
		cfg.OpenTimeout = opts.BreakerOpenTimeout
	}
	return cfg
}

func (s *Server) readiness(ctx context.Context) map[string]component.Status {
	return component.Check(ctx, readinessTimeout, s.probes...)
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	defer s.close()

	errCh := make(chan error, 1)
	go func() {
		logger.Infow("HTTP server listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down Moktashif service...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// close 逆序释放资源。
func (s *Server) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}
