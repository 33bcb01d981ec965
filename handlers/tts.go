package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru/v2"

	"visamonk/gateway/worker"
)

// ttsCacheSize bounds the synthesized-audio cache. Entries are small mp3
// buffers keyed by language and text.
const ttsCacheSize = 128

// RegisterTTSRoutes wires speech synthesis. There is no fallback here:
// synthetic audio cannot substitute meaningfully, so failure is a 500.
func RegisterTTSRoutes(rg *gin.RouterGroup, pool worker.Pool, logger *slog.Logger) {
	cache, err := lru.New[string, []byte](ttsCacheSize)
	if err != nil {
		panic(err)
	}
	rg.POST("/tts", func(c *gin.Context) { tts(c, pool, cache, logger) })
}

func tts(c *gin.Context, pool worker.Pool, cache *lru.Cache[string, []byte], logger *slog.Logger) {
	var req struct {
		Text     string `json:"text" binding:"required"`
		Language string `json:"language"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	key := req.Language + "\x00" + req.Text
	if audio, ok := cache.Get(key); ok {
		c.Data(http.StatusOK, "audio/mpeg", audio)
		return
	}

	outcome, err := pool.Invoke(c.Request.Context(), worker.OpTTS, req, worker.Options{ExpectBinary: true})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate audio"})
		return
	}
	if outcome.Status != worker.StatusOK || len(outcome.Raw) == 0 {
		logger.Warn("tts worker failed", "stderr", outcome.Stderr)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate audio"})
		return
	}

	cache.Add(key, outcome.Raw)
	c.Data(http.StatusOK, "audio/mpeg", outcome.Raw)
}
