package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"legal-review-client/internal/bootstrap"
	"legal-review-client/internal/config"
	"legal-review-client/internal/server"
	"legal-review-client/internal/tracer"
	"legal-review-client/pkg/database"

	"gorm.io/gorm"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()

	// Tracing (exporter off unless OTEL_ENABLED=true)
	shutdownTracer, err := tracer.Init(context.Background(), cfg.Tracing, cfg.App.Environment)
	if err != nil {
		log.Printf("[WARN] Tracing disabled: %v", err)
	}
	defer shutdownTracer(context.Background())

	// 2. Audit database (optional)
	var gormDB *gorm.DB
	if cfg.Database.Connection != "" {
		db, err := database.NewGormDBFromDSN(cfg.Database.Connection)
		if err != nil {
			log.Printf("[WARN] Decision audit disabled, unable to connect to database: %v", err)
		} else {
			gormDB = db
		}
	}

	// 3. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(gormDB, cfg)
	defer container.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Start Background Services
	go container.WebSocketHub.Run(ctx)
	if err := container.ConsumerService.Consume(ctx); err != nil {
		log.Fatalf("Unable to start state consumer: %v", err)
	}

	// 5. Review session
	bootCtx, cancel := context.WithTimeout(ctx, cfg.Backend.RequestTimeout)
	err = container.Session.Bootstrap(bootCtx)
	cancel()
	if err != nil {
		log.Fatalf("Unable to start review session: %v", err)
	}

	// 6. Bridge server
	srv := server.New(cfg, container)
	if container.Console != nil {
		container.Console.Banner(container.Session.SessionID(), srv.Addr())
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run() }()

	select {
	case err := <-errCh:
		log.Printf("Server stopped: %v", err)
	case <-ctx.Done():
	}

	// 7. Shutdown
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	sessionID := container.Session.SessionID()
	if err := container.Session.Close(shutdownCtx); err != nil {
		log.Printf("Session close error: %v", err)
	}
	if err := container.AuditService.RecordSessionClosed(shutdownCtx, sessionID); err != nil {
		log.Printf("Failed to publish session close: %v", err)
	}
}
