// Package wire 在启动时集中装配所有组件。
// 组件全部显式构造、按依赖顺序传入，无进程级单例。
package wire

import (
	"context"
	"fmt"

	"rag-answer-api/internal/application/admission"
	"rag-answer-api/internal/application/answer"
	"rag-answer-api/internal/application/chat"
	"rag-answer-api/internal/application/rerank"
	"rag-answer-api/internal/application/retrieval"
	"rag-answer-api/internal/config"
	"rag-answer-api/internal/infrastructure/citation"
	"rag-answer-api/internal/infrastructure/embedding"
	"rag-answer-api/internal/infrastructure/graph"
	"rag-answer-api/internal/infrastructure/insight"
	"rag-answer-api/internal/infrastructure/llm"
	"rag-answer-api/internal/infrastructure/persistence/milvus"
	"rag-answer-api/internal/infrastructure/persistence/postgres"
	"rag-answer-api/internal/infrastructure/persistence/redis"
	"rag-answer-api/internal/infrastructure/reranker"
	"rag-answer-api/internal/infrastructure/translate"
	"rag-answer-api/internal/interfaces/http/handler"
	"rag-answer-api/internal/interfaces/http/middleware"
	"rag-answer-api/internal/interfaces/http/router"
	"rag-answer-api/pkg/logger"
)

// InitializeApp 装配完整应用，返回路由器与资源清理函数
func InitializeApp(ctx context.Context, cfg *config.Config) (*router.Router, func(), error) {
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	// 数据层
	pgClient, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init postgres: %w", err)
	}
	cleanups = append(cleanups, func() { _ = pgClient.Close() })

	if err := pgClient.AutoMigrate(); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	redisClient, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to init redis: %w", err)
	}
	cleanups = append(cleanups, func() { _ = redisClient.Close() })
	redisCache := redis.NewCache(redisClient)

	milvusClient, err := milvus.NewClient(ctx, &cfg.Vector.Milvus)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to init milvus: %w", err)
	}
	cleanups = append(cleanups, func() { _ = milvusClient.Close() })

	for _, coll := range []string{milvus.CollectionDocChunks, milvus.CollectionDocSummaries} {
		// 集合缺失、维度不符或未就绪时检索层按单源失败降级，不阻塞启动
		if err := milvusClient.EnsureCollection(ctx, coll, cfg.Embedding.Dimension); err != nil {
			logger.Warn(ctx, "milvus collection check failed", "collection", coll, "error", err.Error())
			continue
		}
		if err := milvusClient.LoadCollection(ctx, coll); err != nil {
			logger.Warn(ctx, "failed to load milvus collection", "collection", coll, "error", err.Error())
		}
	}

	sessionRepo := postgres.NewChatSessionRepository(pgClient)
	turnRepo := postgres.NewChatTurnRepository(pgClient)

	// 准入闸门
	gate := admission.NewGate(&cfg.Admission)

	// 检索链路
	einoEmbedder, err := embedding.NewEinoEmbedder(ctx, &cfg.Embedding)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to init embedder: %w", err)
	}
	embedder := embedding.NewClient(einoEmbedder, cfg.Embedding.Dimension)
	if cfg.Embedding.ValidateOnStart {
		if err := embedder.Validate(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("embedding validation failed: %w", err)
		}
	}

	embCache := retrieval.NewCache[[]float32](
		cfg.Retrieval.EmbeddingCache.MaxEntries,
		cfg.Retrieval.EmbeddingCache.TTL,
	)
	outCache := retrieval.NewCache[*retrieval.Outcome](
		cfg.Retrieval.OutcomeCache.MaxEntries,
		cfg.Retrieval.OutcomeCache.TTL,
	)

	retriever := retrieval.NewRetriever(
		embedder,
		milvus.NewChunkSearcher(milvusClient),
		milvus.NewSummarySearcher(milvusClient),
		graph.NewClient(&cfg.Services.Graph),
		gate,
		embCache,
		outCache,
		cfg.Retrieval,
	)

	combiner := rerank.NewCombiner(reranker.NewClient(&cfg.Services.Reranker), cfg.Retrieval.TopK)

	// 生成链路
	llmFactory := llm.NewEinoFactory(cfg)
	generator := answer.NewGenerator(llmFactory, gate, cfg.Answer)
	summarizer := chat.NewSummarizer(llmFactory, gate, sessionRepo, turnRepo, cfg.Answer.SummarizeEvery)

	// 外围服务
	translator := translate.NewClient(&cfg.Services.Translate, gate)
	insightClient := insight.NewClient(&cfg.Services.Insight, gate)
	citationResolver := citation.NewResolver(&cfg.Services.Citation, redisCache)

	orchestrator := chat.NewOrchestrator(
		gate,
		translator,
		retriever,
		combiner,
		generator,
		insightClient,
		citationResolver,
		sessionRepo,
		turnRepo,
		summarizer,
		cfg.Answer,
	)

	handlers := &router.Handlers{
		Chat:   handler.NewChatHandler(orchestrator),
		Health: handler.NewHealthHandler(pgClient, redisClient, milvusClient),
		RateLimit: middleware.NewRateLimitMiddleware(middleware.RateLimitConfig{
			Enabled:           cfg.Security.RateLimit.Enabled,
			RequestsPerSecond: cfg.Security.RateLimit.RequestsPerSecond,
			Burst:             cfg.Security.RateLimit.Burst,
		}, redisClient.Redis()),
	}

	return router.New(cfg, handlers), cleanup, nil
}
