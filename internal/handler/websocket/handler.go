package websocket

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"wine-tasting/internal/hub"
)

// WebSocketHandler 负责升级连接并把客户端注册到 Hub。
// 房间由客户端随后发送的 join-game 决定，握手阶段不校验邀请码。
type WebSocketHandler struct {
	upgrader websocket.Upgrader
	hub      *hub.Hub
}

// NewWebSocketHandler 创建 WebSocketHandler 实例。
// allowedOrigins 为空或包含 "*" 时接受任意来源。
func NewWebSocketHandler(h *hub.Hub, allowedOrigins []string) *WebSocketHandler {
	if h == nil {
		panic("Hub cannot be nil for WebSocketHandler")
	}
	return &WebSocketHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		hub: h,
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		if o != "" {
			set[strings.ToLower(o)] = true
		}
	}
	if len(set) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		// 非浏览器客户端不带 Origin
		return origin == "" || set[strings.ToLower(strings.TrimRight(origin, "/"))]
	}
}

// HandleConnection 处理 GET /ws，前面应挂 OptionalAuth 中间件。
// 匿名玩家的 user_id 为 0。
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	var userID uint
	if v, exists := c.Get("user_id"); exists {
		userID, _ = v.(uint)
	}
	logCtx := logrus.WithFields(logrus.Fields{"user_id": userID, "client_ip": c.ClientIP()})

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 已经写回了 HTTP 错误
		logCtx.WithError(err).Warn("WS Handler: Failed to upgrade connection")
		return
	}

	client := hub.NewClient(h.hub, conn, userID)
	if !h.hub.QueueMessage(hub.HubMessage{Type: "register", Client: client}) {
		logCtx.Error("WS Handler: Hub message channel full, failed to register client")
		client.CloseConn()
		return
	}
	logCtx.WithField("conn_id", client.ID()).Info("WS Handler: Connection upgraded and registered")

	go client.Run()
}
