package bootstrap

import (
	"context"
	"log"

	"content-pipeline-be/internal/config"
	"content-pipeline-be/internal/constant"
	"content-pipeline-be/internal/controller"
	"content-pipeline-be/internal/handler"
	"content-pipeline-be/internal/pkg/logger"
	"content-pipeline-be/internal/repository/memory"
	"content-pipeline-be/internal/service"
	"content-pipeline-be/internal/websocket"
	"content-pipeline-be/pkg/agent/foundry"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
)

type Container struct {
	// Controllers
	PipelineController controller.IPipelineController

	// Background services (exposed for main.go to run)
	EventBridgeService service.IEventBridgeService

	// WebSockets
	PipelineEventsHandler *handler.PipelineEventsHandler
	WebSocketHub          *websocket.Hub
}

func NewContainer(cfg *config.Config) *Container {
	// 1. Core facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	transcriptLogger := logger.NewIsolatedLogger(cfg.App.TranscriptLogPath)

	// 2. Event bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. Infrastructure
	// Redis is optional: only used for cross-instance websocket fan-out
	var rdb *redis.Client
	if cfg.App.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.App.RedisURL)
		if err != nil {
			log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
			opt = &redis.Options{Addr: cfg.App.RedisURL}
		}
		rdb = redis.NewClient(opt)
		if _, err := rdb.Ping(context.Background()).Result(); err != nil {
			log.Printf("[WARN] Failed to connect to Redis: %v", err)
		}
	}

	// WebSocket hub
	wsHub := websocket.NewHub(rdb, sysLogger)
	go wsHub.Run()

	// 4. Domain wiring
	sessionRepo := memory.NewSessionRepository()

	executor := foundry.NewExecutor(cfg.Agent.Endpoint, cfg.Agent.APIKey)
	log.Printf("[INFO] Using agent service at %s (model: %s)", cfg.Agent.Endpoint, cfg.Agent.ModelDeployment)

	pipelineService := service.NewPipelineService(
		sessionRepo,
		executor,
		service.AgentSettings{
			Model:              cfg.Agent.ModelDeployment,
			SearchConnectionID: cfg.Agent.SearchConnectionID,
		},
		pubSub,
		sysLogger,
		transcriptLogger,
	)

	eventBridge := service.NewEventBridgeService(pubSub, constant.PipelineEventTopic, wsHub, sysLogger)

	return &Container{
		PipelineController:    controller.NewPipelineController(pipelineService),
		EventBridgeService:    eventBridge,
		PipelineEventsHandler: handler.NewPipelineEventsHandler(wsHub),
		WebSocketHub:          wsHub,
	}
}
