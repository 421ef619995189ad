// Package session 实现房间的实时协调：房间注册表、状态机、评分和重连解析。
package session

import (
	"sort"
	"sync"
	"time"

	"wine-tasting/internal/domain"
)

// GameSnapshot 是房间内缓存的游戏持久化字段。
type GameSnapshot struct {
	ID         uint
	Code       string
	Status     domain.GameStatus
	Difficulty domain.Difficulty
	WineCount  int
	DirectorID uint
}

// RoomPlayer 是当前连接在房间里的玩家。
type RoomPlayer struct {
	ID         string
	Nickname   string
	Score      int
	SessionID  string
	IsDirector bool
}

// RoomState 是一个房间的全部实时状态。Players 按加入顺序排列。
type RoomState struct {
	Game           GameSnapshot
	CurrentWine    int
	CurrentPhase   domain.Phase
	IsGameStarted  bool
	IsGameFinished bool
	Players        []RoomPlayer
	LastActive     time.Time
}

// Pointer 返回需要镜像到缓存的进度指针
func (s *RoomState) Pointer() domain.RoomPointer {
	return domain.RoomPointer{
		CurrentWine:    s.CurrentWine,
		CurrentPhase:   s.CurrentPhase,
		IsGameStarted:  s.IsGameStarted,
		IsGameFinished: s.IsGameFinished,
	}
}

func (s *RoomState) applyPointer(p domain.RoomPointer) {
	s.CurrentWine = p.CurrentWine
	s.CurrentPhase = p.CurrentPhase
	s.IsGameStarted = p.IsGameStarted
	s.IsGameFinished = p.IsGameFinished
}

func (s *RoomState) findPlayer(id string) *RoomPlayer {
	for i := range s.Players {
		if s.Players[i].ID == id {
			return &s.Players[i]
		}
	}
	return nil
}

func (s *RoomState) findBySession(connID string) int {
	for i := range s.Players {
		if s.Players[i].SessionID == connID {
			return i
		}
	}
	return -1
}

func (s *RoomState) clone() RoomState {
	c := *s
	c.Players = append([]RoomPlayer(nil), s.Players...)
	return c
}

func (s *RoomState) playerViews() []PlayerView {
	views := make([]PlayerView, 0, len(s.Players))
	for _, p := range s.Players {
		views = append(views, p.view())
	}
	return views
}

// leaderboard 按分数降序排列，分数相同时保持加入顺序
func (s *RoomState) leaderboard() []PlayerView {
	views := s.playerViews()
	sort.SliceStable(views, func(i, j int) bool { return views[i].Score > views[j].Score })
	return views
}

func (s *RoomState) payload(players []PlayerView) StatePayload {
	return StatePayload{
		Game: GameView{
			ID:         s.Game.ID,
			Code:       s.Game.Code,
			Status:     s.Game.Status,
			Difficulty: s.Game.Difficulty,
			WineCount:  s.Game.WineCount,
		},
		CurrentWine:    s.CurrentWine,
		CurrentPhase:   s.CurrentPhase,
		IsGameStarted:  s.IsGameStarted,
		IsGameFinished: s.IsGameFinished,
		Players:        players,
	}
}

func (p RoomPlayer) view() PlayerView {
	return PlayerView{ID: p.ID, Nickname: p.Nickname, Score: p.Score}
}

// Room 持有一个房间的状态。mu 在整个状态转换期间 (包括存储调用) 被持有。
type Room struct {
	mu     sync.Mutex
	state  RoomState
	loaded bool
	closed bool // 已从注册表移除，持有者需要重新获取
}

// Snapshot 返回房间状态的副本
func (r *Room) Snapshot() RoomState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.clone()
}

// Registry 按邀请码保存进程内的房间。由组合根创建一次并注入到状态机。
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*Room)}
}

// Get 返回已存在的房间
func (r *Registry) Get(code string) (*Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[code]
	return room, ok
}

// Create 返回 code 对应的房间，不存在时创建一个尚未加载的空房间。
func (r *Registry) Create(code string) *Room {
	r.mu.Lock()
	defer r.mu.Unlock()
	if room, ok := r.rooms[code]; ok {
		return room
	}
	room := &Room{}
	r.rooms[code] = room
	return room
}

// Delete 移除房间
func (r *Registry) Delete(code string) {
	room, ok := r.Get(code)
	if !ok {
		return
	}
	room.mu.Lock()
	r.discard(code, room)
	room.mu.Unlock()
}

// acquire 返回已加锁且仍在注册表中的房间。调用方负责解锁。
func (r *Registry) acquire(code string) *Room {
	for {
		room := r.Create(code)
		room.mu.Lock()
		if !room.closed {
			return room
		}
		room.mu.Unlock()
	}
}

// discard 在持有 room.mu 时调用，只在房间仍是同一个实例时删除。
// 锁顺序固定为 room.mu -> r.mu。
func (r *Registry) discard(code string, room *Room) {
	room.closed = true
	r.mu.Lock()
	if current, ok := r.rooms[code]; ok && current == room {
		delete(r.rooms, code)
	}
	r.mu.Unlock()
}

// Snapshot 返回房间状态的副本，房间不存在或尚未加载时返回 false。
func (r *Registry) Snapshot(code string) (RoomState, bool) {
	room, ok := r.Get(code)
	if !ok {
		return RoomState{}, false
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	if !room.loaded {
		return RoomState{}, false
	}
	return room.state.clone(), true
}

// Codes 返回所有房间的邀请码
func (r *Registry) Codes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	codes := make([]string, 0, len(r.rooms))
	for code := range r.rooms {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Len 返回房间数量
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// FindBySession 返回连接 connID 所在房间的邀请码
func (r *Registry) FindBySession(connID string) (string, bool) {
	for _, code := range r.Codes() {
		room, ok := r.Get(code)
		if !ok {
			continue
		}
		room.mu.Lock()
		idx := room.state.findBySession(connID)
		room.mu.Unlock()
		if idx >= 0 {
			return code, true
		}
	}
	return "", false
}

// Sweep 删除没有在线玩家且空闲超过 idle 的房间，返回被删除的邀请码。
func (r *Registry) Sweep(idle time.Duration, now time.Time) []string {
	var removed []string
	for _, code := range r.Codes() {
		room, ok := r.Get(code)
		if !ok {
			continue
		}
		room.mu.Lock()
		if len(room.state.Players) == 0 && now.Sub(room.state.LastActive) > idle {
			r.discard(code, room)
			removed = append(removed, code)
		}
		room.mu.Unlock()
	}
	return removed
}
