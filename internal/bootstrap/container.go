package bootstrap

import (
	"context"
	"log"
	"os"

	"legal-review-client/internal/api"
	"legal-review-client/internal/channel"
	"legal-review-client/internal/config"
	"legal-review-client/internal/console"
	"legal-review-client/internal/controller"
	"legal-review-client/internal/pkg/logger"
	"legal-review-client/internal/repository"
	"legal-review-client/internal/repository/implementation"
	"legal-review-client/internal/repository/memory"
	"legal-review-client/internal/service"
	"legal-review-client/internal/session"
	"legal-review-client/internal/websocket"
	pktNats "legal-review-client/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const stateTopic = "review.state"

type Container struct {
	// Controllers
	ReviewController controller.IReviewController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService
	AuditService    service.IAuditService

	Session      *session.Client
	WebSocketHub *websocket.Hub
	Console      *console.Printer
	Logger       *logger.ZapLogger

	closers []func()
}

// NewContainer wires the review session and its bridge. db may be nil, in
// which case decision batches are only logged and published.
func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	c := &Container{Logger: sysLogger}

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermillLogger)
	c.closers = append(c.closers, func() { _ = pubSub.Close() })

	// 3. Infrastructure
	var auditPublisher service.EventPublisher
	if cfg.App.NatsURL != "" {
		natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		} else {
			auditPublisher = natsPub
			c.closers = append(c.closers, natsPub.Close)
		}
	}

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
		c.closers = append(c.closers, func() { _ = rdb.Close() })
	}

	wsLogger := logger.NewIsolatedLogger(cfg.App.HubLogFilePath)
	c.WebSocketHub = websocket.NewHub(rdb, wsLogger)

	// 4. Backend
	backend := api.NewClient(cfg.Backend.APIBaseURL, cfg.Backend.RequestTimeout, sysLogger,
		api.WithRetries(cfg.Backend.FetchRetries),
	)
	ch := channel.NewManager(cfg.Backend.WSBaseURL, sysLogger,
		channel.WithReconnect(cfg.Channel.MaxReconnectAttempts, cfg.Channel.ReconnectBaseDelay),
		channel.WithPingInterval(cfg.Channel.PingInterval),
	)

	// 5. Services
	var auditRepo repository.DecisionAuditRepository
	if db != nil {
		auditRepo = implementation.NewDecisionAuditRepository(db)
	}
	c.AuditService = service.NewAuditService(auditRepo, auditPublisher, sysLogger)

	publisherService := service.NewPublisherService(stateTopic, pubSub, sysLogger)
	c.Session = session.New(backend, ch, sysLogger,
		session.WithNotifier(publisherService),
		session.WithAuditSink(c.AuditService),
		session.WithStrictBatch(cfg.Bridge.StrictBatch),
		session.WithDocumentStore(memory.NewDocumentCache(cfg.Bridge.DocumentCacheTTL)),
	)

	var printer service.SnapshotPrinter
	if cfg.App.ConsoleEcho {
		c.Console = console.NewPrinter(os.Stdout, cfg.App.Environment == "production")
		printer = c.Console
	}
	c.ConsumerService = service.NewConsumerService(pubSub, stateTopic, c.Session, c.WebSocketHub, printer, sysLogger)

	// 6. Controllers
	reviewService := service.NewReviewService(c.Session, c.AuditService)
	c.ReviewController = controller.NewReviewController(reviewService, c.WebSocketHub, sysLogger)

	return c
}

// Close releases the infrastructure connections in reverse order.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	_ = c.Logger.Sync()
}
