// Package handlers provides HTTP request handlers for the server.
// This file handles conversation history endpoints.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/advisorkit/advisor-proxy-go/internal/history"
	"github.com/advisorkit/advisor-proxy-go/internal/utils"
)

// SessionsHandler handles locally persisted conversation history
type SessionsHandler struct {
	store *history.Store
}

// NewSessionsHandler creates a new SessionsHandler
func NewSessionsHandler(store *history.Store) *SessionsHandler {
	return &SessionsHandler{store: store}
}

func (h *SessionsHandler) storeUnavailable(c *gin.Context) bool {
	if h.store != nil {
		return false
	}
	c.JSON(http.StatusServiceUnavailable, gin.H{
		"status": "error",
		"error":  "History persistence is disabled",
	})
	return true
}

// ListSessions handles GET /v1/sessions
func (h *SessionsHandler) ListSessions(c *gin.Context) {
	if h.storeUnavailable(c) {
		return
	}

	sessions, err := h.store.ListSessions(c.Request.Context())
	if err != nil {
		utils.Error("[API] Failed to list sessions: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Failed to list sessions",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"sessions": sessions,
	})
}

// GetHistory handles GET /v1/history/:sessionId
func (h *SessionsHandler) GetHistory(c *gin.Context) {
	if h.storeUnavailable(c) {
		return
	}

	sessionID := c.Param("sessionId")
	turns, err := h.store.History(c.Request.Context(), sessionID)
	if err != nil {
		utils.Error("[API] Failed to load history for %s: %v", sessionID, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Failed to load history",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"sessionId": sessionID,
		"messages":  turns,
	})
}

// DeleteSession handles DELETE /v1/sessions/:sessionId
func (h *SessionsHandler) DeleteSession(c *gin.Context) {
	if h.storeUnavailable(c) {
		return
	}

	sessionID := c.Param("sessionId")
	if err := h.store.DeleteSession(c.Request.Context(), sessionID); err != nil {
		utils.Error("[API] Failed to delete session %s: %v", sessionID, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Failed to delete session",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"sessionId": sessionID,
	})
}
