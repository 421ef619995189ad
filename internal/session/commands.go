package session

import "wine-tasting/internal/domain"

// Caller 标识发出命令的连接。UserID 来自连接建立时的认证结果，0 表示匿名。
type Caller struct {
	ConnID string
	UserID uint
}

// Command 是房间状态机可以处理的命令，实现集合是封闭的。
type Command interface {
	RoomCode() string
	From() Caller
	command()
}

// Join 对应 join-game：新玩家加入、导演加入或重连。
type Join struct {
	Caller
	Code        string
	Nickname    string
	PlayerID    string
	IsReconnect bool
}

// Start 对应 start-game。
type Start struct {
	Caller
	Code string
}

// ChangePhase 对应 change-phase。
type ChangePhase struct {
	Caller
	Code  string
	Phase domain.Phase
}

// NextWine 对应 next-wine。
type NextWine struct {
	Caller
	Code string
}

// SubmitAnswer 对应 submit-answer。Answers 的 key 是特征，value 是玩家认为它属于的酒 ("Wine <n>")。
type SubmitAnswer struct {
	Caller
	Code               string
	PlayerID           string
	WineNumber         int
	CharacteristicType domain.Phase
	Answers            map[string]string
}

// UseHint 对应 use-hint。
type UseHint struct {
	Caller
	Code               string
	PlayerID           string
	WineNumber         int
	CharacteristicType domain.Phase
}

// Finish 对应 finish-game。
type Finish struct {
	Caller
	Code string
}

// Disconnect 在传输层连接断开时由连接管理器生成。Code 为空时按连接 ID 查找房间。
type Disconnect struct {
	Caller
	Code string
}

func (c Caller) From() Caller { return c }

func (c Join) RoomCode() string         { return c.Code }
func (c Start) RoomCode() string        { return c.Code }
func (c ChangePhase) RoomCode() string  { return c.Code }
func (c NextWine) RoomCode() string     { return c.Code }
func (c SubmitAnswer) RoomCode() string { return c.Code }
func (c UseHint) RoomCode() string      { return c.Code }
func (c Finish) RoomCode() string       { return c.Code }
func (c Disconnect) RoomCode() string   { return c.Code }

func (Join) command()         {}
func (Start) command()        {}
func (ChangePhase) command()  {}
func (NextWine) command()     {}
func (SubmitAnswer) command() {}
func (UseHint) command()      {}
func (Finish) command()       {}
func (Disconnect) command()   {}
