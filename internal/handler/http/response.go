package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorResponse 返回 {"error": message}
func ErrorResponse(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{"error": message})
}

// ValidationErrorResponse 返回 400，details 里带上绑定失败的原因
func ValidationErrorResponse(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "details": err.Error()})
}

func SuccessResponse(c *gin.Context, code int, data interface{}) {
	c.JSON(code, data)
}
