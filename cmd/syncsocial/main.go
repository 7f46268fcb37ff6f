// Package main is the SyncSocial control plane: the HTTP/WebSocket API,
// the schedule dispatcher, and the account-run executor in one binary.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/syncsocial/syncsocial/internal/automation/artifacts"
	"github.com/syncsocial/syncsocial/internal/automation/capture"
	"github.com/syncsocial/syncsocial/internal/automation/cluster"
	"github.com/syncsocial/syncsocial/internal/automation/executor"
	"github.com/syncsocial/syncsocial/internal/automation/handlers"
	"github.com/syncsocial/syncsocial/internal/automation/scheduler"
	"github.com/syncsocial/syncsocial/internal/automation/service"
	"github.com/syncsocial/syncsocial/internal/automation/store"
	"github.com/syncsocial/syncsocial/internal/browsernode"
	"github.com/syncsocial/syncsocial/internal/common/config"
	"github.com/syncsocial/syncsocial/internal/common/httpmw"
	"github.com/syncsocial/syncsocial/internal/common/logger"
	"github.com/syncsocial/syncsocial/internal/common/tracing"
	"github.com/syncsocial/syncsocial/internal/crypto"
	"github.com/syncsocial/syncsocial/internal/db"
	"github.com/syncsocial/syncsocial/internal/events"
	gateways "github.com/syncsocial/syncsocial/internal/gateway/websocket"
	"github.com/syncsocial/syncsocial/internal/subscription"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(logger.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		OutputPath: cfg.Logging.OutputPath,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetDefault(log)

	log.Info("Starting SyncSocial control plane...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Event bus: NATS when configured, in-memory otherwise.
	provided, busCleanup, err := events.Provide(cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize event bus", zap.Error(err))
	}
	defer func() { _ = busCleanup() }()
	eventBus := provided.Bus

	// Database: SQLite unless a PostgreSQL host is configured.
	var pool *db.Pool
	if cfg.Database.Host == "" {
		pool, err = db.NewSQLitePool(cfg.Database.Path)
		if err != nil {
			log.Fatal("Failed to open SQLite database", zap.Error(err), zap.String("path", cfg.Database.Path))
		}
		log.Info("SQLite database initialized", zap.String("path", cfg.Database.Path))
	} else {
		pool, err = db.NewPostgresPool(cfg.Database.DSN())
		if err != nil {
			log.Fatal("Failed to open PostgreSQL database", zap.Error(err))
		}
		log.Info("PostgreSQL database initialized", zap.String("host", cfg.Database.Host))
	}
	defer func() { _ = pool.Close() }()

	st, err := store.New(pool)
	if err != nil {
		log.Fatal("Failed to initialize store", zap.Error(err))
	}

	// Credential vault. Without a key, runs and login capture are refused
	// at execution time rather than at startup.
	var vault *crypto.Vault
	if cfg.Automation.CredentialEncryptionKey != "" {
		vault, err = crypto.NewVault(cfg.Automation.CredentialEncryptionKey)
		if err != nil {
			log.Fatal("Failed to initialize credential vault", zap.Error(err))
		}
	} else {
		log.Warn("No credential encryption key configured - automation runs will fail until one is set")
	}

	// Browser cluster: embedded node in local mode, HTTP client in remote.
	var browserCluster cluster.BrowserCluster
	var localNode *browsernode.Node
	if cfg.Automation.BrowserClusterMode == "local" {
		localNode = browsernode.New(false, cfg.Automation.NoVNCPublicURL, log)
		browserCluster = localNode
		log.Info("Using embedded browser node (local mode)")
	} else {
		browserCluster = cluster.NewRemoteCluster(
			cfg.Automation.BrowserNodeAPIBaseURL,
			cfg.Automation.BrowserNodeInternalToken,
			log,
		)
		log.Info("Using remote browser node",
			zap.String("base_url", cfg.Automation.BrowserNodeAPIBaseURL))
	}

	// Run pipeline: executor drains account runs, scheduler fires schedules.
	exec := executor.New(st, browserCluster, vault, eventBus, log, executor.Config{
		MaxConcurrent: cfg.Automation.ExecutorWorkers,
		ArtifactsDir:  cfg.Automation.ArtifactsDir,
	})
	sched := scheduler.New(st, exec, eventBus, log, scheduler.Config{
		TickInterval: cfg.Automation.TickInterval(),
	})
	if err := sched.Start(ctx); err != nil {
		log.Fatal("Failed to start scheduler", zap.Error(err))
	}

	watcher := capture.NewWatcher(st, browserCluster, vault, eventBus, log,
		cfg.Automation.LoginSessionAutoCapture)

	sweeper := artifacts.NewSweeper(st, log, cfg.Automation.ArtifactsDir, cfg.Automation.CleanupInterval())
	sweeper.Start(ctx)

	gate := subscription.NewGate(st)
	svc := service.New(st, sched, gate, browserCluster, watcher, eventBus,
		cfg.Automation.ArtifactsDir, log)

	// HTTP server: REST API plus the WebSocket notification gateway.
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(httpmw.OtelTracing("syncsocial"))
	router.Use(httpmw.RequestLogger(log, "syncsocial"))

	gateway := gateways.NewGateway(log)
	go gateway.Hub.Run(ctx)
	broadcaster := gateway.ConnectEventBus(ctx, eventBus)
	gateway.SetupRoutes(router)

	handlers.RegisterRoutes(router, svc, log)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "syncsocial",
		})
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	go func() {
		log.Info("API server listening",
			zap.String("host", cfg.Server.Host),
			zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	log.Info("API configured",
		zap.String("http", "/api/v1"),
		zap.String("websocket", "/ws"),
		zap.String("health", "/health"))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down SyncSocial...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}

	if err := sched.Stop(); err != nil {
		log.Error("Scheduler stop error", zap.Error(err))
	}
	exec.Wait()
	sweeper.Stop()
	broadcaster.Close()

	if localNode != nil {
		localNode.Close()
	}

	if err := tracing.Shutdown(shutdownCtx); err != nil {
		log.Error("Tracing shutdown error", zap.Error(err))
	}

	log.Info("SyncSocial stopped")
}
