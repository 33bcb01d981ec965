package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"visamonk/gateway/store"
)

// RegisterContactRoutes wires the contact form endpoint.
func RegisterContactRoutes(rg *gin.RouterGroup, st *store.Store) {
	rg.POST("/contact", func(c *gin.Context) { contact(c, st) })
}

func contact(c *gin.Context, st *store.Store) {
	var req struct {
		Name    string `json:"name"`
		Email   string `json:"email"`
		Message string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Name == "" || req.Email == "" || req.Message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "All fields are required"})
		return
	}

	if err := st.RecordContactMessage(req.Name, req.Email, req.Message); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save message"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Contact message saved successfully"})
}
