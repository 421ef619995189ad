package hub

import (
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"wine-tasting/internal/dto"
	"wine-tasting/internal/session"
)

// Client 代表一个连接到 Hub 的 WebSocket 客户端。
// room 和 closed 由 Hub.mu 保护。
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	id     string // 连接 ID，重连后会变化
	userID uint   // 认证用户 ID，匿名玩家为 0
	send   chan []byte

	room   string
	closed bool
}

// NewClient 创建一个新的 Client 实例
func NewClient(hub *Hub, conn *websocket.Conn, userID uint) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		id:     uuid.NewString(),
		userID: userID,
		send:   make(chan []byte, 256),
	}
}

// Run 启动客户端的读写 goroutine
func (c *Client) Run() {
	go c.WritePump()
	go c.ReadPump()
}

func (c *Client) logCtx() *logrus.Entry {
	return logrus.WithFields(logrus.Fields{"conn_id": c.id, "user_id": c.userID})
}

func (c *Client) caller() session.Caller {
	return session.Caller{ConnID: c.id, UserID: c.userID}
}

// trySend 非阻塞地写入发送队列，调用方需要持有 Hub.mu
func (c *Client) trySend(data []byte) {
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		c.logCtx().Warn("Client send channel full, message dropped")
	}
}

// closeSend 关闭发送队列，调用方需要持有 Hub.mu 写锁
func (c *Client) closeSend() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// ReadPump 把 WebSocket 消息解码为命令并交给 Hub。
func (c *Client) ReadPump() {
	defer func() {
		select {
		case c.hub.messageChan <- HubMessage{Type: "unregister", Client: c}:
		case <-time.After(1 * time.Second):
			c.logCtx().Warn("Timeout sending unregister message to Hub channel")
		}
		c.conn.Close()
		c.logCtx().Info("readPump exited, unregistered client")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logCtx().WithError(err).Warn("WebSocket read error (unexpected close)")
			} else {
				c.logCtx().Debug("WebSocket connection closed normally or read error")
			}
			break
		}
		if messageType != websocket.TextMessage {
			c.logCtx().Debugf("Received non-text message type: %d", messageType)
			continue
		}

		cmd, err := dto.Decode(message, c.caller())
		if err != nil {
			c.logCtx().WithError(err).Debug("Rejected client message")
			c.reply(dto.EncodeError(err))
			continue
		}
		if !c.hub.QueueMessage(HubMessage{Type: "command", Client: c, Command: cmd}) {
			c.logCtx().Warn("Hub message channel full, dropping client message")
			c.reply(dto.EncodeError(session.ErrDependency))
		}
	}
}

func (c *Client) reply(data []byte) {
	c.hub.mu.RLock()
	c.trySend(data)
	c.hub.mu.RUnlock()
}

// WritePump 把发送队列中的消息写到 WebSocket 连接，并定期发送 Ping。
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.logCtx().Info("writePump exited")
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub 关闭了发送队列
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logCtx().WithError(err).Warn("Failed to write message to websocket")
				return
			}
			_ = c.conn.SetWriteDeadline(time.Time{})

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logCtx().WithError(err).Warn("Failed to send ping message")
				return
			}
			_ = c.conn.SetWriteDeadline(time.Time{})
		}
	}
}

func (c *Client) ID() string   { return c.id }
func (c *Client) UserID() uint { return c.userID }
func (c *Client) CloseConn() {
	if c.conn != nil {
		c.conn.Close()
	}
}
