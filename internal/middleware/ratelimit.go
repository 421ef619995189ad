package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"wine-tasting/internal/repository"
)

// RateLimit 返回按客户端 IP 限流的中间件，计数保存在 StateRepository 中。
// 计数存储不可用时放行请求，只记录错误。
func RateLimit(state repository.StateRepository, maxRequests int, window time.Duration) gin.HandlerFunc {
	if state == nil {
		panic("StateRepository cannot be nil for RateLimit middleware")
	}
	if maxRequests <= 0 {
		panic("maxRequests must be positive for RateLimit middleware")
	}
	if window <= 0 {
		panic("window duration must be positive for RateLimit middleware")
	}

	return func(c *gin.Context) {
		key := "ratelimit:" + c.ClientIP()
		exceeded, err := state.CheckRateLimit(c.Request.Context(), key, maxRequests, window)
		if err != nil {
			logrus.WithError(err).WithField("client_ip", c.ClientIP()).Error("RateLimit: Counter store failed")
			c.Next()
			return
		}
		if exceeded {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			c.Abort()
			return
		}
		c.Next()
	}
}
