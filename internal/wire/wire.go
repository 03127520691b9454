// Package wire 负责应用依赖的装配
package wire

import (
	"context"
	"fmt"

	"event-discovery-api/internal/application/conversation"
	"event-discovery-api/internal/application/events"
	"event-discovery-api/internal/application/extraction"
	"event-discovery-api/internal/application/matching"
	"event-discovery-api/internal/application/preference"
	"event-discovery-api/internal/config"
	"event-discovery-api/internal/domain/entity"
	"event-discovery-api/internal/infrastructure/embedding"
	"event-discovery-api/internal/infrastructure/llm"
	"event-discovery-api/internal/infrastructure/persistence/milvus"
	"event-discovery-api/internal/infrastructure/persistence/postgres"
	"event-discovery-api/internal/infrastructure/persistence/redis"
	"event-discovery-api/internal/interfaces/http/handler"
	"event-discovery-api/internal/interfaces/http/router"
	"event-discovery-api/pkg/logger"

	"github.com/gin-gonic/gin"
)

// App 装配完成的应用
type App struct {
	router *router.Router
}

// Engine 返回 HTTP 引擎
func (a *App) Engine() *gin.Engine {
	return a.router.Engine()
}

// InitializeApp 装配应用依赖
// 返回的 cleanup 负责按依赖逆序关闭基础设施连接。
func InitializeApp(ctx context.Context, cfg *config.Config) (*App, func(), error) {
	var closers []func() error
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logger.Warn(context.Background(), "cleanup error", "error", err.Error())
			}
		}
	}

	fail := func(err error) (*App, func(), error) {
		cleanup()
		return nil, nil, err
	}

	// 基础设施客户端
	pgClient, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		return fail(fmt.Errorf("postgres: %w", err))
	}
	closers = append(closers, pgClient.Close)

	if err := pgClient.DB().AutoMigrate(
		&entity.Event{},
		&entity.UserPreferenceProfile{},
		&entity.ConversationSession{},
		&entity.ConversationTurn{},
	); err != nil {
		return fail(fmt.Errorf("migrate: %w", err))
	}

	redisClient, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		return fail(fmt.Errorf("redis: %w", err))
	}
	closers = append(closers, redisClient.Close)

	milvusClient, err := milvus.NewClient(ctx, &cfg.Vector.Milvus)
	if err != nil {
		return fail(fmt.Errorf("milvus: %w", err))
	}
	closers = append(closers, milvusClient.Close)

	vectorRepo := milvus.NewRepository(milvusClient, cfg.Embedding.Dimension)
	if err := vectorRepo.EnsureEventsCollection(ctx); err != nil {
		return fail(fmt.Errorf("milvus collection: %w", err))
	}

	// 仓储
	eventRepo := postgres.NewEventRepo(pgClient)
	prefRepo := postgres.NewPreferenceRepo(pgClient)
	sessionRepo := postgres.NewConversationSessionRepo(pgClient)
	turnRepo := postgres.NewConversationTurnRepo(pgClient)
	txManager := postgres.NewTxManager(pgClient)

	cache := redis.NewCache(redisClient)
	sessionLock := redis.NewSessionLock(redisClient, cfg.Conversation.SessionLockTTL)
	rateLimiter := redis.NewRateLimiter(redisClient)

	// LLM 与向量化
	llmFactory := llm.NewEinoFactory(cfg)
	embedder, err := embedding.NewEinoEmbedder(ctx, &cfg.Embedding)
	if err != nil {
		return fail(fmt.Errorf("embedder: %w", err))
	}
	embedService := embedding.NewService(embedder, &cfg.Embedding)

	// 应用服务
	extractor := extraction.NewService(llmFactory, &cfg.LLM)
	tracker := preference.NewTracker(prefRepo, cfg.Preference.LearningRate)
	engine := matching.NewEngine(eventRepo, milvus.NewRetrievalAdapter(vectorRepo), embedService, &cfg.Matching)
	// extraction.Service 同时承担草稿抽取与摘要生成两个端口
	eventSvc := events.NewService(eventRepo, milvus.NewEventStoreAdapter(vectorRepo), embedService, cache, extractor, extractor, tracker)
	conversationSvc := conversation.NewService(
		sessionRepo, turnRepo, txManager,
		extractor, engine, eventSvc, tracker, embedService,
		sessionLock, cache,
		&cfg.Conversation,
	)

	// HTTP 层
	handlers := &router.Handlers{
		Health: handler.NewHealthHandler(pgClient, redisClient, milvusClient),
		Event:  handler.NewEventHandler(eventSvc, engine, tracker),
		Chat:   handler.NewChatHandler(conversationSvc),
	}
	r := router.New(cfg, handlers, rateLimiter)

	return &App{router: r}, cleanup, nil
}
