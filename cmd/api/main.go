package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"collabgraph-backend/application/collab"
	"collabgraph-backend/infrastructure/config"
	"collabgraph-backend/infrastructure/persistence/memory"
	"collabgraph-backend/infrastructure/persistence/sqlite"
	"collabgraph-backend/interfaces/http/rest"
	ws "collabgraph-backend/interfaces/websocket"
	"collabgraph-backend/pkg/observability"
)

func main() {
	// Missing .env is fine; the environment may be set another way.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := buildLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := sqlite.Open(cfg.DatabasePath, logger)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}
	defer db.Close()

	users := sqlite.NewUserRepository(db)
	diagrams := sqlite.NewDiagramRepository(db)
	sessions := sqlite.NewSessionRepository(db)

	presence := memory.NewPresenceCache(users, logger)
	presence.StartSweep(ctx)
	defer presence.StopSweep()

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	maxConnections := config.DefaultDynamicConfig().WebSocket.MaxConnections
	if cfg.DynamicConfigPath != "" {
		watcher, err := config.NewWatcher(cfg.DynamicConfigPath, logger)
		if err != nil {
			logger.Fatal("Failed to watch dynamic config", zap.Error(err))
		}
		defer watcher.Stop()
		maxConnections = watcher.Current().WebSocket.MaxConnections
	}

	hub := ws.NewHub(maxConnections, metrics, logger)
	go hub.Run()
	defer hub.Stop()

	coordinator := collab.NewCoordinator(sessions, users, diagrams, hub, logger)
	coordinator.StartSweep(ctx)
	defer coordinator.StopSweep()

	wsServer := ws.NewServer(
		hub, coordinator, presence, users, diagrams, metrics,
		cfg.JWTSecret, originChecker(cfg), logger,
	)

	router := rest.NewRouter(cfg, db.Conn(), users, diagrams, coordinator, wsServer, registry, logger)

	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      router.Setup(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Starting server",
			zap.String("address", cfg.ServerAddress),
			zap.String("environment", cfg.Environment))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}
}

func buildLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.IsDevelopment() {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}

// originChecker allows the configured origins on websocket upgrades.
func originChecker(cfg *config.Config) func(*http.Request) bool {
	if cfg.AllowedOrigins == "*" {
		return func(*http.Request) bool { return true }
	}
	allowed := strings.Split(cfg.AllowedOrigins, ",")
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, candidate := range allowed {
			if strings.TrimSpace(candidate) == origin {
				return true
			}
		}
		return false
	}
}
