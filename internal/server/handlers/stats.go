// Package handlers provides HTTP request handlers for the server.
// This file handles usage statistics endpoints.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/advisorkit/advisor-proxy-go/internal/modules"
	"github.com/advisorkit/advisor-proxy-go/internal/utils"
)

// StatsHandler handles usage statistics endpoints
type StatsHandler struct {
	usageStats *modules.UsageStats
}

// NewStatsHandler creates a new StatsHandler
func NewStatsHandler(usageStats *modules.UsageStats) *StatsHandler {
	return &StatsHandler{usageStats: usageStats}
}

// GetStats handles GET /v1/stats
func (h *StatsHandler) GetStats(c *gin.Context) {
	hours := 24
	if v := c.Query("hours"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 24*30 {
			hours = n
		}
	}

	stats, err := h.usageStats.Recent(c.Request.Context(), hours)
	if err != nil {
		utils.Error("[API] Failed to load usage stats: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Failed to load usage statistics",
		})
		return
	}

	var total int64
	for _, s := range stats {
		total += s.Total
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"hours":  hours,
		"total":  total,
		"hourly": stats,
	})
}
