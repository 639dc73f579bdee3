// Package main provides the agent proxy server.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/advisorkit/advisor-proxy-go/internal/auth"
	"github.com/advisorkit/advisor-proxy-go/internal/config"
	apperrors "github.com/advisorkit/advisor-proxy-go/internal/errors"
	"github.com/advisorkit/advisor-proxy-go/internal/history"
	"github.com/advisorkit/advisor-proxy-go/internal/modules"
	"github.com/advisorkit/advisor-proxy-go/internal/server"
	"github.com/advisorkit/advisor-proxy-go/internal/utils"
	"github.com/advisorkit/advisor-proxy-go/internal/vertex"
	"github.com/advisorkit/advisor-proxy-go/pkg/redis"
)

const version = "1.0.0"

func main() {
	var (
		debugMode bool
		port      int
		host      string
	)

	flag.BoolVar(&debugMode, "debug", false, "Enable debug mode")
	flag.IntVar(&port, "port", 0, "Server port (default: 8080)")
	flag.StringVar(&host, "host", "", "Bind address (default: 0.0.0.0)")
	flag.Parse()

	// Load .env before reading any environment variables
	if err := godotenv.Load(); err == nil {
		utils.Debug("[Startup] Loaded environment from .env")
	}

	if os.Getenv("DEBUG") == "true" {
		debugMode = true
	}
	utils.SetDebug(debugMode)

	cfg := config.DefaultConfig()
	if err := cfg.Load(); err != nil {
		utils.Warn("[Startup] Failed to load config: %v", err)
	}
	if debugMode {
		cfg.Debug = true
		utils.SetDebug(true)
		utils.Debug("Debug mode enabled")
	}

	// Flags win over config and environment
	if port == 0 {
		port = cfg.Port
	}
	if host == "" {
		host = cfg.Host
	}

	if cfg.ServiceAccountJSON == "" {
		utils.Error("[Startup] %s is not set", config.EnvServiceAccountJSON)
		os.Exit(1)
	}
	if cfg.Engine.ProjectID == "" || cfg.Engine.EngineID == "" {
		utils.Error("[Startup] VERTEX_PROJECT_ID and VERTEX_REASONING_ENGINE_ID must be set")
		os.Exit(1)
	}

	// Validate the credential bundle up front so a malformed key fails fast
	if _, err := auth.ParseServiceAccount(cfg.ServiceAccountJSON); err != nil {
		utils.Error("[Startup] Invalid service account: %v", err)
		os.Exit(1)
	}

	minter := auth.NewMinter(cfg.ServiceAccountJSON)

	engine := vertex.Engine{
		ProjectID: cfg.Engine.ProjectID,
		Location:  cfg.Engine.Location,
		EngineID:  cfg.Engine.EngineID,
	}
	vertexClient := vertex.NewClient(engine, minter)

	// Initialize Redis client
	redisClient, err := redis.NewClient(redis.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		utils.Warn("[Startup] Failed to connect to Redis: %v", err)
		utils.Warn("[Startup] Starting without Redis - usage stats kept in memory")
		redisClient = nil
	}

	// Initialize history store
	var historyStore *history.Store
	if cfg.HistoryDBPath != "" {
		historyStore, err = history.Open(cfg.HistoryDBPath)
		if err != nil {
			utils.Warn("[Startup] %v", apperrors.ErrorWithContext(err, "failed to open history store"))
			utils.Warn("[Startup] Starting without history persistence")
			historyStore = nil
		}
	}

	// Initialize usage stats
	usageStats := modules.NewUsageStats(redisClient)
	usageStats.Initialize()

	var redisUp func() bool
	if redisClient != nil {
		redisUp = func() bool {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return redisClient.Ping(ctx) == nil
		}
	}

	srv := server.New(cfg, vertexClient, historyStore, usageStats, server.Options{
		Debug:   debugMode,
		RedisUp: redisUp,
	})
	srv.SetupRoutes()

	printBanner(port, host, cfg, historyStore != nil, redisClient != nil)

	addr := fmt.Sprintf("%s:%d", host, port)
	httpServer := srv.HTTPServer(addr)

	go func() {
		utils.Info("[Server] Starting on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			utils.Error("[Server] Failed to start: %v", err)
			os.Exit(1)
		}
	}()

	utils.Success("Server started successfully on port %d", port)
	if debugMode {
		utils.Warn("Running in DEBUG mode - verbose logs enabled")
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	utils.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	usageStats.Shutdown()

	if err := httpServer.Shutdown(ctx); err != nil {
		utils.Error("Server forced to shutdown: %v", err)
		os.Exit(1)
	}

	if historyStore != nil {
		historyStore.Close()
	}
	if redisClient != nil {
		redisClient.Close()
	}

	utils.Success("Server stopped")
}

// printBanner prints the startup banner
func printBanner(port int, host string, cfg *config.Config, historyEnabled, redisEnabled bool) {
	displayHost := host
	if host == "0.0.0.0" {
		displayHost = "localhost"
	}

	utils.GetLogger().Header(fmt.Sprintf("Advisor Agent Proxy v%s", version))
	utils.Info("Listening on http://%s:%d (bound to %s:%d)", displayHost, port, host, port)
	utils.Info("Engine: projects/%s/locations/%s/reasoningEngines/%s",
		cfg.Engine.ProjectID, cfg.Engine.Location, cfg.Engine.EngineID)

	if cfg.APIKey != "" {
		utils.Info("API key authentication enabled for /v1/*")
	} else {
		utils.Warn("API key authentication disabled (set API_KEY to enable)")
	}
	if historyEnabled {
		utils.Info("History persistence: %s", cfg.HistoryDBPath)
	} else {
		utils.Info("History persistence disabled")
	}
	if redisEnabled {
		utils.Info("Usage stats: redis (%s)", cfg.RedisAddr)
	} else {
		utils.Info("Usage stats: in-memory")
	}

	utils.Info("Endpoints:")
	utils.Info("  POST   /v1/agent                  - Agent operations")
	utils.Info("  GET    /v1/sessions               - List stored sessions")
	utils.Info("  GET    /v1/history/:sessionId     - Session transcript")
	utils.Info("  DELETE /v1/sessions/:sessionId    - Delete a session")
	utils.Info("  GET    /v1/stats                  - Usage statistics")
	utils.Info("  GET    /v1/config                 - Redacted runtime config")
	utils.Info("  GET    /v1/logs                   - Recent server logs")
	utils.Info("  GET    /health                    - Health check")
}
