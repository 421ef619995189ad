package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/sirupsen/logrus"
)

// ErrMissingAuthHeader 表示请求中没有携带 token
var ErrMissingAuthHeader = errors.New("missing Authorization header")

// Auth 返回要求导演 JWT 的中间件，通过后在上下文中写入 user_id (uint)。
func Auth(jwtSecret string) gin.HandlerFunc {
	if jwtSecret == "" {
		panic("JWT secret cannot be empty for Auth middleware")
	}

	return func(c *gin.Context) {
		tokenStr, err := extractToken(c)
		if err != nil {
			if errors.Is(err, ErrMissingAuthHeader) {
				logrus.Warn("Auth middleware: Missing Authorization header")
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required"})
			} else {
				logrus.WithError(err).Warn("Auth middleware: Malformed token format")
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token format"})
			}
			c.Abort()
			return
		}

		userID, err := authenticate(tokenStr, jwtSecret)
		if err != nil {
			logCtx := logrus.WithError(err)
			logCtx.Warn("Auth middleware: Invalid token")
			var validationError *jwt.ValidationError
			if errors.As(err, &validationError) && validationError.Errors&jwt.ValidationErrorExpired != 0 {
				logCtx.Warn("Reason: Token is expired")
			}
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		c.Set("user_id", userID)
		logrus.WithField("user_id", userID).Debug("Auth middleware: User authenticated via JWT")
		c.Next()
	}
}

// OptionalAuth 在携带有效 token 时写入 user_id，否则按匿名玩家放行。
// token 无效时同样按匿名处理，导演专属的操作会在房间内被拒绝。
func OptionalAuth(jwtSecret string) gin.HandlerFunc {
	if jwtSecret == "" {
		panic("JWT secret cannot be empty for OptionalAuth middleware")
	}

	return func(c *gin.Context) {
		tokenStr, err := extractToken(c)
		if err != nil {
			c.Next()
			return
		}
		userID, err := authenticate(tokenStr, jwtSecret)
		if err != nil {
			logrus.WithError(err).Debug("OptionalAuth middleware: Ignoring invalid token")
			c.Next()
			return
		}
		c.Set("user_id", userID)
		c.Next()
	}
}

// extractToken 依次从 Authorization: Bearer 头和 ?token= 查询参数读取 token。
// 浏览器的 WebSocket 握手无法设置请求头，只能走查询参数。
func extractToken(c *gin.Context) (string, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		if token := strings.TrimSpace(c.Query("token")); token != "" {
			return token, nil
		}
		return "", ErrMissingAuthHeader
	}
	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", jwt.ErrTokenMalformed
	}
	return parts[1], nil
}

// authenticate 校验 token 并返回其中的 user_id
func authenticate(tokenStr, secret string) (uint, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return 0, fmt.Errorf("token validation failed: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return 0, errors.New("invalid token or claims type")
	}

	// JWT 数字默认解析为 float64
	userIDFloat, ok := claims["user_id"].(float64)
	if !ok || userIDFloat <= 0 || userIDFloat != float64(uint(userIDFloat)) {
		return 0, fmt.Errorf("invalid user_id claim: %v", claims["user_id"])
	}
	return uint(userIDFloat), nil
}
