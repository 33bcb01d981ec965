package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"visamonk/gateway/fallback"
	"visamonk/gateway/models"
	"visamonk/gateway/store"
	"visamonk/gateway/worker"
)

// historyWindow bounds both the worker payload size and the model's
// context window.
const historyWindow = 5

// RegisterChatRoutes wires the conversational endpoint.
func RegisterChatRoutes(rg *gin.RouterGroup, pool worker.Pool, fb *fallback.Responder, st *store.Store, logger *slog.Logger) {
	rg.POST("/chat", func(c *gin.Context) { chat(c, pool, fb, st, logger) })
}

// chat always answers 200 with a usable payload. Worker failure is not the
// caller's problem; the fallback responder stands in.
func chat(c *gin.Context, pool worker.Pool, fb *fallback.Responder, st *store.Store, logger *slog.Logger) {
	var req models.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.History) > historyWindow {
		req.History = req.History[len(req.History)-historyWindow:]
	}

	resp := askWorker(c, pool, req, logger)
	if resp == nil {
		out := fb.Respond(req.Message)
		resp = &out
	}

	// Analytics write is best effort and off the request path.
	go func(query, answer string, followUps []string) {
		if err := st.SaveConversation(query, answer, followUps); err != nil {
			logger.Warn("conversation record failed", "error", err)
		}
	}(req.Message, resp.Text, resp.FollowUps)

	c.JSON(http.StatusOK, resp)
}

// askWorker returns nil whenever the outcome is unusable, which routes the
// request to the fallback responder.
func askWorker(c *gin.Context, pool worker.Pool, req models.ChatRequest, logger *slog.Logger) *models.ChatResponse {
	outcome, err := pool.Invoke(c.Request.Context(), worker.OpChat, req, worker.Options{})
	if err != nil {
		logger.Warn("chat invocation error", "error", err)
		return nil
	}
	if outcome.Status != worker.StatusOK {
		logger.Warn("chat worker unavailable", "status", outcome.Status, "stderr", outcome.Stderr)
		return nil
	}
	var resp models.ChatResponse
	if err := json.Unmarshal(outcome.Payload, &resp); err != nil || resp.Text == "" {
		logger.Warn("chat worker returned unusable payload")
		return nil
	}
	resp.Success = true
	return &resp
}
