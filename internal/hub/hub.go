package hub

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"wine-tasting/internal/dto"
	"wine-tasting/internal/session"
)

// 包级别的 WebSocket 常量，供 hub 和 client 使用
const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 8192

	// 房间 actor 空闲多久后退出
	actorIdleTimeout = time.Minute

	// 每个房间排队等待处理的命令上限
	roomInboxSize = 128
)

// StateMachine 是 Hub 依赖的房间状态机
type StateMachine interface {
	Apply(ctx context.Context, cmd session.Command) session.Result
}

// HubMessage 定义了在 Hub 内部通道传递的消息类型
type HubMessage struct {
	Type    string          // "register", "unregister", "command"
	Client  *Client         // 消息来源
	Command session.Command // 仅用于 command
}

// job 是排进房间 actor 的一条命令
type job struct {
	client *Client // 断线产生的命令没有可回复的客户端
	cmd    session.Command
}

// roomActor 顺序执行同一房间的命令，保证广播顺序与到达顺序一致
type roomActor struct {
	code  string
	inbox chan job
}

// Hub 维护活跃客户端，管理按邀请码划分的 topic，并把命令分发到房间 actor。
type Hub struct {
	messageChan chan HubMessage

	mu      sync.RWMutex
	clients map[*Client]bool
	topics  map[string]map[*Client]bool // map[code]clients
	actors  map[string]*roomActor

	engine StateMachine

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewHub 创建并返回一个新的 Hub 实例
func NewHub(engine StateMachine) *Hub {
	if engine == nil {
		panic("StateMachine cannot be nil for Hub")
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		messageChan: make(chan HubMessage, 512),
		clients:     make(map[*Client]bool),
		topics:      make(map[string]map[*Client]bool),
		actors:      make(map[string]*roomActor),
		engine:      engine,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Run 启动 Hub 的主事件处理循环，应在单独的 goroutine 中运行。
func (h *Hub) Run() {
	log := logrus.WithField("component", "hub")
	log.Info("Hub is running...")

	for {
		select {
		case <-h.ctx.Done():
			log.Info("Hub is shutting down...")
			return
		case msg := <-h.messageChan:
			switch msg.Type {
			case "register":
				h.registerClient(msg.Client)
			case "unregister":
				h.unregisterClient(msg.Client)
			case "command":
				h.dispatch(msg.Client, msg.Command)
			default:
				log.Warnf("Hub: Received unknown message type: %s", msg.Type)
			}
		}
	}
}

// QueueMessage 非阻塞地把消息放入 Hub 的处理通道，通道已满时返回 false
func (h *Hub) QueueMessage(msg HubMessage) bool {
	select {
	case h.messageChan <- msg:
		return true
	default:
		return false
	}
}

// Stop 停止主循环和所有房间 actor，并关闭所有连接
func (h *Hub) Stop() {
	// 与 enqueue 互斥，避免 wg.Add 与 wg.Wait 并发
	h.mu.Lock()
	h.cancel()
	h.mu.Unlock()
	h.wg.Wait()

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		client.closeSend()
		client.CloseConn()
	}
	h.clients = make(map[*Client]bool)
	h.topics = make(map[string]map[*Client]bool)
	logrus.WithField("component", "hub").Info("Hub stopped, all clients closed")
}

// ClientCount 返回当前连接数
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// TopicSize 返回订阅了某个房间的连接数
func (h *Hub) TopicSize(code string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[code])
}

func (h *Hub) registerClient(client *Client) {
	if client == nil {
		logrus.Error("Hub: Attempted to register a nil client")
		return
	}
	h.mu.Lock()
	h.clients[client] = true
	h.mu.Unlock()
	logrus.WithFields(logrus.Fields{
		"conn_id": client.ID(),
		"user_id": client.UserID(),
	}).Info("Client registered to Hub")
}

// unregisterClient 移除客户端并为它所在的房间生成一条 Disconnect 命令
func (h *Hub) unregisterClient(client *Client) {
	if client == nil {
		logrus.Error("Hub: Attempted to unregister a nil client")
		return
	}
	logCtx := logrus.WithFields(logrus.Fields{
		"conn_id": client.ID(),
		"user_id": client.UserID(),
	})

	h.mu.Lock()
	if !h.clients[client] {
		h.mu.Unlock()
		logCtx.Warn("Client not found during unregister")
		return
	}
	delete(h.clients, client)
	code := client.room
	h.leaveTopicLocked(client)
	client.closeSend()
	h.mu.Unlock()
	logCtx.WithField("code", code).Info("Client unregistered from Hub")

	if code != "" {
		h.enqueue(code, job{cmd: session.Disconnect{Caller: client.caller(), Code: code}})
	}
}

// leaveTopicLocked 需要持有 h.mu
func (h *Hub) leaveTopicLocked(client *Client) {
	code := client.room
	if code == "" {
		return
	}
	if members, ok := h.topics[code]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.topics, code)
		}
	}
	client.room = ""
}

// bind 把客户端加入房间 topic，返回之前所在的房间。
// 客户端已经注销时 ok 为 false。
func (h *Hub) bind(client *Client, code string) (previous string, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.clients[client] {
		return "", false
	}
	previous = client.room
	if previous == code {
		return "", true
	}
	h.leaveTopicLocked(client)
	if _, ok := h.topics[code]; !ok {
		h.topics[code] = make(map[*Client]bool)
	}
	h.topics[code][client] = true
	client.room = code
	return previous, true
}

func (h *Hub) dispatch(client *Client, cmd session.Command) {
	if cmd == nil {
		return
	}
	code := session.NormalizeCode(cmd.RoomCode())
	if !h.enqueue(code, job{client: client, cmd: cmd}) && client != nil {
		h.mu.RLock()
		client.trySend(dto.EncodeError(session.ErrDependency))
		h.mu.RUnlock()
	}
}

// enqueue 把命令交给房间 actor，actor 不存在时启动一个
func (h *Hub) enqueue(code string, j job) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ctx.Err() != nil {
		return false
	}
	actor, ok := h.actors[code]
	if !ok {
		actor = &roomActor{code: code, inbox: make(chan job, roomInboxSize)}
		h.actors[code] = actor
		h.wg.Add(1)
		go h.runActor(actor)
	}
	select {
	case actor.inbox <- j:
		return true
	default:
		logrus.WithField("code", code).Warn("Room inbox full, dropping command")
		return false
	}
}

func (h *Hub) runActor(actor *roomActor) {
	defer h.wg.Done()
	idle := time.NewTimer(actorIdleTimeout)
	defer idle.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return
		case j := <-actor.inbox:
			h.process(j)
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(actorIdleTimeout)
		case <-idle.C:
			// 在 h.mu 下退出，保证不会有命令被放进已经退出的 actor
			h.mu.Lock()
			if len(actor.inbox) == 0 {
				delete(h.actors, actor.code)
				h.mu.Unlock()
				return
			}
			h.mu.Unlock()
			idle.Reset(actorIdleTimeout)
		}
	}
}

func (h *Hub) process(j job) {
	res := h.engine.Apply(h.ctx, j.cmd)
	if j.client == nil || !res.Joined {
		h.deliver(j.client, res)
		return
	}

	previous, ok := h.bind(j.client, res.Code)
	if previous != "" {
		h.enqueue(previous, job{cmd: session.Disconnect{Caller: j.client.caller(), Code: previous}})
	}
	h.deliver(j.client, res)
	if !ok {
		// 连接在 join 排队期间断开，注销时还没有房间可离开，这里补上
		logrus.WithFields(logrus.Fields{"code": res.Code, "conn_id": j.client.ID()}).Info("Client left before join completed")
		left := h.engine.Apply(h.ctx, session.Disconnect{Caller: j.client.caller(), Code: res.Code})
		h.deliver(nil, left)
	}
}

// deliver 按事件顺序发送一次转换产生的所有事件
func (h *Hub) deliver(caller *Client, res session.Result) {
	if len(res.Events) == 0 {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ev := range res.Events {
		data, err := dto.Encode(ev.Event, ev.Payload)
		if err != nil {
			logrus.WithFields(logrus.Fields{"code": res.Code, "event": ev.Event}).WithError(err).Error("Failed to encode event")
			continue
		}
		switch ev.Target {
		case session.ToCaller:
			if caller != nil {
				caller.trySend(data)
			}
		case session.ToRoom, session.ToOthers:
			for client := range h.topics[res.Code] {
				if ev.Target == session.ToOthers && client == caller {
					continue
				}
				client.trySend(data)
			}
		}
	}
}
