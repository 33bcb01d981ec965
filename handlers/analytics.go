package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"visamonk/gateway/auth"
	"visamonk/gateway/store"
)

// RegisterAnalyticsRoutes wires the query-frequency report.
func RegisterAnalyticsRoutes(rg *gin.RouterGroup, gw *auth.Gateway, st *store.Store) {
	rg.GET("/analytics", gw.RequireAuth(), func(c *gin.Context) { analytics(c, st) })
}

func analytics(c *gin.Context, st *store.Store) {
	rows, err := st.TopQueries(10)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch analytics"})
		return
	}
	c.JSON(http.StatusOK, rows)
}
