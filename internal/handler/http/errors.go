package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"wine-tasting/internal/service"
)

// HandleServiceError 把 service 层错误映射为 HTTP 状态码
func HandleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrAuthenticationFailed):
		ErrorResponse(c, http.StatusUnauthorized, service.ErrAuthenticationFailed.Error())
	case errors.Is(err, service.ErrRegistrationFailed):
		ErrorResponse(c, http.StatusConflict, service.ErrRegistrationFailed.Error())
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrInvalidGameConfig):
		ErrorResponse(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrGameNotFound), errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrPlayerNotFound):
		ErrorResponse(c, http.StatusNotFound, err.Error())
	default:
		logrus.WithError(err).WithField("path", c.FullPath()).Error("Unhandled internal server error")
		ErrorResponse(c, http.StatusInternalServerError, "An unexpected error occurred")
	}
}

// currentUserID 读取 Auth 中间件写入的 user_id
func currentUserID(c *gin.Context) (uint, bool) {
	v, exists := c.Get("user_id")
	if !exists {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok && id != 0
}
