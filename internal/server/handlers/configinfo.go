// Package handlers provides HTTP request handlers for the server.
// This file handles the config inspection endpoint.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/advisorkit/advisor-proxy-go/internal/config"
)

// ConfigHandler exposes the running configuration with secrets redacted
type ConfigHandler struct {
	cfg *config.Config
}

// NewConfigHandler creates a new ConfigHandler
func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{cfg: cfg}
}

// GetConfig handles GET /v1/config
func (h *ConfigHandler) GetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"config": h.cfg.GetPublic(),
	})
}
