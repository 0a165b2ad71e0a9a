package handler

import (
	"github.com/gin-gonic/gin"
)

// Failures always serialize as {"error": "..."}; internal detail stays in
// the logs, never in the body.
func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}
