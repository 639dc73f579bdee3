// Package handlers provides HTTP request handlers for the server.
// This file handles health check endpoints.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/advisorkit/advisor-proxy-go/internal/utils"
	"github.com/advisorkit/advisor-proxy-go/internal/vertex"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	engine    vertex.Engine
	startedAt time.Time
	redisUp   func() bool
	historyUp bool
}

// NewHealthHandler creates a new HealthHandler. redisUp may be nil when no
// Redis connection was configured.
func NewHealthHandler(engine vertex.Engine, redisUp func() bool, historyUp bool) *HealthHandler {
	return &HealthHandler{
		engine:    engine,
		startedAt: time.Now(),
		redisUp:   redisUp,
		historyUp: historyUp,
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	redisStatus := "disabled"
	if h.redisUp != nil {
		if h.redisUp() {
			redisStatus = "ok"
		} else {
			redisStatus = "unreachable"
		}
	}

	historyStatus := "disabled"
	if h.historyUp {
		historyStatus = "ok"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptimeSec": int64(time.Since(h.startedAt).Seconds()),
		"uptime":    utils.FormatDuration(time.Since(h.startedAt)),
		"engine": gin.H{
			"projectId": h.engine.ProjectID,
			"location":  h.engine.Location,
			"engineId":  h.engine.EngineID,
		},
		"components": gin.H{
			"redis":   redisStatus,
			"history": historyStatus,
		},
	})
}
