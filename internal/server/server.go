// Package server provides the main HTTP server implementation.
package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/advisorkit/advisor-proxy-go/internal/config"
	"github.com/advisorkit/advisor-proxy-go/internal/history"
	"github.com/advisorkit/advisor-proxy-go/internal/modules"
	"github.com/advisorkit/advisor-proxy-go/internal/server/handlers"
	"github.com/advisorkit/advisor-proxy-go/internal/utils"
	"github.com/advisorkit/advisor-proxy-go/internal/vertex"
)

// Server represents the main HTTP server
type Server struct {
	engine       *gin.Engine
	vertexClient *vertex.Client
	historyStore *history.Store
	usageStats   *modules.UsageStats
	cfg          *config.Config
	redisUp      func() bool
}

// Options holds server configuration options
type Options struct {
	Debug bool

	// RedisUp reports whether the Redis connection is healthy. May be nil.
	RedisUp func() bool
}

// New creates a new Server instance. historyStore may be nil when history
// persistence is disabled.
func New(cfg *config.Config, vertexClient *vertex.Client, historyStore *history.Store, usageStats *modules.UsageStats, opts Options) *Server {
	if opts.Debug || cfg.IsDebug() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.SetTrustedProxies(nil)
	engine.Use(gin.Recovery())

	return &Server{
		engine:       engine,
		vertexClient: vertexClient,
		historyStore: historyStore,
		usageStats:   usageStats,
		cfg:          cfg,
		redisUp:      opts.RedisUp,
	}
}

// SetupRoutes sets up all HTTP routes
func (s *Server) SetupRoutes() {
	s.engine.Use(CORSMiddleware())
	s.engine.Use(RequestLoggingMiddleware())

	// Request body limit
	s.engine.Use(func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, config.RequestBodyLimit)
		c.Next()
	})

	healthHandler := handlers.NewHealthHandler(s.vertexClient.Engine(), s.redisUp, s.historyStore != nil)
	agentHandler := handlers.NewAgentHandler(s.vertexClient, s.historyStore, s.usageStats)
	sessionsHandler := handlers.NewSessionsHandler(s.historyStore)
	statsHandler := handlers.NewStatsHandler(s.usageStats)
	logsHandler := handlers.NewLogsHandler()
	configHandler := handlers.NewConfigHandler(s.cfg)

	s.engine.GET("/health", healthHandler.Health)

	// API v1 routes with authentication
	v1 := s.engine.Group("/v1")
	v1.Use(APIKeyAuthMiddleware(s.cfg))
	{
		v1.POST("/agent", agentHandler.Agent)

		v1.GET("/sessions", sessionsHandler.ListSessions)
		v1.GET("/history/:sessionId", sessionsHandler.GetHistory)
		v1.DELETE("/sessions/:sessionId", sessionsHandler.DeleteSession)

		v1.GET("/stats", statsHandler.GetStats)
		v1.GET("/config", configHandler.GetConfig)
		v1.GET("/logs", logsHandler.GetLogs)
		v1.GET("/logs/stream", logsHandler.StreamLogs)
	}

	// Catch-all for unsupported endpoints
	s.engine.NoRoute(func(c *gin.Context) {
		if utils.IsDebug() {
			utils.Debug("[API] 404 Not Found: %s %s", c.Request.Method, c.Request.URL.Path)
		}
		c.JSON(http.StatusNotFound, gin.H{
			"type": "error",
			"error": gin.H{
				"type":    "not_found_error",
				"message": fmt.Sprintf("Endpoint %s %s not found", c.Request.Method, c.Request.URL.Path),
			},
		})
	})
}

// HTTPServer builds the configured http.Server for the given address
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute, // Long timeout for AI responses
		IdleTimeout:  120 * time.Second,
	}
}

// Run starts the HTTP server
func (s *Server) Run(addr string) error {
	s.SetupRoutes()

	utils.Info("[Server] Starting on %s", addr)
	return s.HTTPServer(addr).ListenAndServe()
}

// Engine returns the Gin engine for testing or custom configuration
func (s *Server) Engine() *gin.Engine {
	return s.engine
}
