// Package handlers provides HTTP request handlers for the server.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/advisorkit/advisor-proxy-go/internal/config"
	apperrors "github.com/advisorkit/advisor-proxy-go/internal/errors"
	"github.com/advisorkit/advisor-proxy-go/internal/history"
	"github.com/advisorkit/advisor-proxy-go/internal/modules"
	"github.com/advisorkit/advisor-proxy-go/internal/server/stream"
	"github.com/advisorkit/advisor-proxy-go/internal/utils"
	"github.com/advisorkit/advisor-proxy-go/internal/vertex"
)

// AgentRequest is the body of POST /v1/agent
type AgentRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
	Operation string `json:"operation"`
}

// AgentHandler handles the /v1/agent endpoint
type AgentHandler struct {
	client     *vertex.Client
	store      *history.Store
	usageStats *modules.UsageStats
}

// NewAgentHandler creates a new AgentHandler. store may be nil when history
// persistence is disabled.
func NewAgentHandler(client *vertex.Client, store *history.Store, usageStats *modules.UsageStats) *AgentHandler {
	return &AgentHandler{
		client:     client,
		store:      store,
		usageStats: usageStats,
	}
}

// Agent handles POST /v1/agent
func (h *AgentHandler) Agent(c *gin.Context) {
	var req AgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.sendError(c, http.StatusBadRequest, "invalid_request_error",
			"Invalid request body: "+err.Error())
		return
	}

	if req.Operation == "" {
		req.Operation = string(vertex.OpStreamQuery)
	}

	op, err := vertex.ParseOperation(req.Operation, req.Message, req.SessionID)
	if err != nil {
		h.sendError(c, http.StatusBadRequest, "invalid_request_error", err.Error())
		return
	}

	if h.usageStats != nil {
		h.usageStats.Track(req.Operation)
	}

	utils.Info("[API] Agent request: operation=%s, session=%s", req.Operation, req.SessionID)

	if op.Streaming() {
		h.handleStreamingOperation(c, op)
	} else {
		h.handleQueryOperation(c, op)
	}
}

// handleStreamingOperation relays the upstream stream chunk by chunk
func (h *AgentHandler) handleStreamingOperation(c *gin.Context, op vertex.Operation) {
	ctx := c.Request.Context()

	chunks, errs, err := h.client.StreamQuery(ctx, op)
	if err != nil {
		utils.Error("[API] Failed to open stream: %v", err)
		h.sendProxyError(c, err)
		return
	}

	// Buffer strategy: pull the first chunk before committing response
	// headers, so upstream failures still produce a proper error status.
	var firstChunk []byte
	var firstErr error

	select {
	case chunk, ok := <-chunks:
		if !ok {
			select {
			case err := <-errs:
				firstErr = err
			default:
			}
		} else {
			firstChunk = chunk
		}
	case err := <-errs:
		firstErr = err
	case <-ctx.Done():
		return
	}

	if firstErr != nil {
		utils.Error("[API] Initial stream error: %v", firstErr)
		h.sendProxyError(c, firstErr)
		return
	}

	writer, err := stream.NewWriter(c.Writer)
	if err != nil {
		utils.Error("[API] Failed to create stream writer: %v", err)
		h.sendError(c, http.StatusInternalServerError, "api_error", "Streaming not supported")
		return
	}

	c.Status(http.StatusOK)
	writer.SetHeaders()
	writer.Flush()

	// Capture a bounded copy of the stream for history persistence
	captured := make([]byte, 0, len(firstChunk))
	capture := func(chunk []byte) {
		if h.store == nil || op.SessionID() == "" {
			return
		}
		if len(captured) < config.HistoryCaptureLimit {
			captured = append(captured, chunk...)
		}
	}

	if firstChunk != nil {
		if err := writer.WriteChunk(firstChunk); err != nil {
			utils.Error("[API] Error writing first chunk: %v", err)
			return
		}
		capture(firstChunk)
	}

	for {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				// Both channels close once the relay finishes, so
				// distinguish a clean end from a mid-stream failure
				// before persisting.
				select {
				case err := <-errs:
					if err != nil {
						utils.Error("[API] Mid-stream error: %v", err)
						return
					}
				default:
				}
				h.persistTurns(c, op, captured)
				return
			}
			if err := writer.WriteChunk(chunk); err != nil {
				utils.Error("[API] Error writing chunk: %v", err)
				return
			}
			capture(chunk)
		case err := <-errs:
			if err == nil {
				// The error channel closes ahead of the chunk channel
				// on a clean shutdown; disable it and keep draining.
				errs = nil
				continue
			}
			// Headers are committed; log and close the connection
			utils.Error("[API] Mid-stream error: %v", err)
			return
		case <-ctx.Done():
			return
		}
	}
}

// handleQueryOperation passes the upstream JSON response through unmodified
func (h *AgentHandler) handleQueryOperation(c *gin.Context, op vertex.Operation) {
	ctx := c.Request.Context()

	body, err := h.client.Query(ctx, op)
	if err != nil {
		utils.Error("[API] Query error: %v", err)
		h.sendProxyError(c, err)
		return
	}

	if op.Kind() == vertex.OpDeleteSession && h.store != nil {
		if err := h.store.DeleteSession(ctx, op.SessionID()); err != nil {
			utils.Warn("[API] Failed to delete local history for %s: %v", op.SessionID(), err)
		}
	}

	c.Data(http.StatusOK, "application/json", body)
}

// persistTurns saves the user message and the normalized assistant reply
func (h *AgentHandler) persistTurns(c *gin.Context, op vertex.Operation, captured []byte) {
	if h.store == nil || op.SessionID() == "" {
		return
	}

	ctx := c.Request.Context()

	if op.Text() != "" {
		if err := h.store.SaveTurn(ctx, op.SessionID(), history.RoleUser, op.Text()); err != nil {
			utils.Warn("[API] Failed to save user turn: %v", err)
		}
	}

	reply := vertex.Normalize(captured)
	if reply != "" {
		if err := h.store.SaveTurn(ctx, op.SessionID(), history.RoleAssistant, reply); err != nil {
			utils.Warn("[API] Failed to save assistant turn: %v", err)
		}
	}
}

// sendProxyError maps a typed error to an HTTP response
func (h *AgentHandler) sendProxyError(c *gin.Context, err error) {
	status := apperrors.HTTPStatusFromError(err)
	formatted := apperrors.FormatAPIError(err)
	c.JSON(status, formatted)
}

// sendError sends an error JSON response
func (h *AgentHandler) sendError(c *gin.Context, statusCode int, errorType, message string) {
	c.JSON(statusCode, gin.H{
		"type": "error",
		"error": gin.H{
			"type":    errorType,
			"message": message,
		},
	})
}
