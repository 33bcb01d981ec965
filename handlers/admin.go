package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"visamonk/gateway/auth"
	"visamonk/gateway/store"
)

// RegisterAdminRoutes wires the pipeline-mutating endpoints. Every route
// requires a verified admin session: 401 without a token, 403 without the
// admin claim.
func RegisterAdminRoutes(rg *gin.RouterGroup, gw *auth.Gateway, st *store.Store) {
	admin := rg.Group("/admin", gw.RequireAuth(), auth.RequireAdmin())

	admin.POST("/scrape", func(c *gin.Context) { scrape(c, st) })
	admin.POST("/upload", func(c *gin.Context) { upload(c, st) })
	admin.GET("/files", func(c *gin.Context) { listFiles(c, st) })
	admin.POST("/delete-files", func(c *gin.Context) { deleteFiles(c, st) })
	admin.POST("/reindex", func(c *gin.Context) { reindex(c, st) })
	admin.POST("/clear-database", func(c *gin.Context) { clearDatabase(c, st) })
}

func scrape(c *gin.Context, st *store.Store) {
	var req struct {
		URL         string `json:"url" binding:"required"`
		KeepOldData bool   `json:"keepOldData"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pages, err := st.Scrape(c.Request.Context(), req.URL, req.KeepOldData)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scrape website"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"pages":   pages,
		"message": fmt.Sprintf("Successfully scraped %d pages from %s", pages, req.URL),
	})
}

func upload(c *gin.Context, st *store.Store) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file provided"})
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upload file"})
		return
	}
	defer f.Close()

	asset, result, err := st.Upload(c.Request.Context(), fileHeader.Filename, f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upload file"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"filename": asset.Name,
		"size":     asset.Size,
		"message":  "File uploaded and processed successfully",
		"result":   result,
	})
}

func listFiles(c *gin.Context, st *store.Store) {
	assets, err := st.ListAssets()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list files"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"files": assets})
}

func deleteFiles(c *gin.Context, st *store.Store) {
	var req struct {
		Files []string `json:"files"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Files == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid files array"})
		return
	}

	deleted, errs := st.DeleteAssets(req.Files)
	resp := gin.H{
		"success":      true,
		"deletedCount": deleted,
		"message":      fmt.Sprintf("Deleted %d file(s) successfully", deleted),
	}
	if len(errs) > 0 {
		resp["errors"] = errs
	}
	c.JSON(http.StatusOK, resp)
}

func reindex(c *gin.Context, st *store.Store) {
	state, err := st.Reindex(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reindex data"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Data reindexed successfully",
		"chunks":  state.Chunks,
		"files":   state.Files,
	})
}

func clearDatabase(c *gin.Context, st *store.Store) {
	warnings := st.ClearAll()
	resp := gin.H{
		"success": true,
		"message": "Database and all data cleared successfully",
	}
	if len(warnings) > 0 {
		resp["warnings"] = warnings
	}
	c.JSON(http.StatusOK, resp)
}
