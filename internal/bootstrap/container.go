package bootstrap

import (
	"context"
	"log"

	"ai-workflowgen-be/internal/config"
	"ai-workflowgen-be/internal/controller"
	"ai-workflowgen-be/internal/pkg/logger"
	"ai-workflowgen-be/internal/repository/memory"
	"ai-workflowgen-be/internal/repository/unitofwork"
	"ai-workflowgen-be/internal/service"
	"ai-workflowgen-be/internal/websocket"
	"ai-workflowgen-be/pkg/llm/factory"

	pktNats "ai-workflowgen-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	RequirementController controller.IRequirementController

	// Background Services (Exposed for main.go to run)
	AuditConsumerService service.IAuditConsumerService

	// WebSockets
	WebSocketHub *websocket.Hub
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// Initialize LLM Provider based on Config
	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		cfg.Ai.LLMBaseURL,
		cfg.Ai.LLMAPIKey,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	// Per-session turn locks
	turnLocks := memory.NewTurnLockRepository()

	// 2.5 Infrastructure
	// NATS
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}

	// Redis
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
	}

	// WebSocket Hub
	wsLogger := logger.NewIsolatedLogger(cfg.App.AuditLogFilePath)
	wsHub := websocket.NewHub(rdb, wsLogger)
	go wsHub.Run()

	// 3. Services
	publisherService := service.NewPublisherService(cfg.App.TurnAuditTopic, pubSub)
	auditConsumerService := service.NewAuditConsumerService(
		pubSub,
		cfg.App.TurnAuditTopic,
		uowFactory,
	)

	requirementService := service.NewRequirementService(
		uowFactory,
		llmProvider,
		turnLocks,
		publisherService,
		natsPub,
		wsHub,
		sysLogger,
		cfg.Ai.HistoryWindow,
	)

	// 4. Controllers
	return &Container{
		RequirementController: controller.NewRequirementController(requirementService, wsHub, sysLogger),
		AuditConsumerService:  auditConsumerService,
		WebSocketHub:          wsHub,
	}
}
