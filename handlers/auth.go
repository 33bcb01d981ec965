package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"visamonk/gateway/auth"
)

// RegisterAuthRoutes wires login and token verification.
func RegisterAuthRoutes(rg *gin.RouterGroup, gw *auth.Gateway) {
	rg.POST("/auth/login", func(c *gin.Context) { login(c, gw) })
	rg.GET("/auth/verify", gw.RequireAuth(), verifyToken)
}

func login(c *gin.Context, gw *auth.Gateway) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, sess, err := gw.Issue(req.Email, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"token":   token,
		"user": gin.H{
			"id":      sess.SubjectID,
			"email":   sess.Email,
			"isAdmin": sess.IsAdmin,
		},
	})
}

func verifyToken(c *gin.Context) {
	sess, ok := auth.SessionFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"email":   sess.Email,
		"isAdmin": sess.IsAdmin,
	})
}
