package session

import "wine-tasting/internal/domain"

// 服务端发出的事件名
const (
	EventJoinedAsPlayer     = "joined-as-player"
	EventJoinedAsDirector   = "joined-as-director"
	EventPlayerJoined       = "player-joined"
	EventGameState          = "game-state"
	EventGameStarted        = "game-started"
	EventPhaseChanged       = "phase-changed"
	EventWineChanged        = "wine-changed"
	EventSubmissionsCleared = "submissions-cleared"
	EventPlayerSubmitted    = "player-submitted"
	EventAnswerSubmitted    = "answer-submitted"
	EventScoreUpdated       = "score-updated"
	EventGameFinished       = "game-finished"
	EventPlayerLeft         = "player-left"
	EventHint               = "hint"
	EventError              = "error"
)

// Target 决定事件发给谁。
type Target int

const (
	ToRoom   Target = iota // 房间内所有连接，包括调用方
	ToOthers               // 房间内除调用方以外的连接
	ToCaller               // 只发给调用方
)

func (t Target) String() string {
	switch t {
	case ToRoom:
		return "room"
	case ToOthers:
		return "others"
	case ToCaller:
		return "caller"
	}
	return "unknown"
}

// Outbound 是一次状态转换产生的一条事件。同一次转换的事件按切片顺序发送。
type Outbound struct {
	Event   string
	Target  Target
	Payload any
}

// PlayerView 是玩家在事件中的公开视图。
type PlayerView struct {
	ID       string `json:"id"`
	Nickname string `json:"nickname"`
	Score    int    `json:"score"`
}

// GameView 是游戏持久化字段的公开视图。
type GameView struct {
	ID         uint              `json:"id"`
	Code       string            `json:"code"`
	Status     domain.GameStatus `json:"status"`
	Difficulty domain.Difficulty `json:"difficulty"`
	WineCount  int               `json:"wineCount"`
}

// StatePayload 是 game-state / game-started / wine-changed / game-finished 携带的完整房间状态。
type StatePayload struct {
	Game           GameView     `json:"game"`
	CurrentWine    int          `json:"currentWine"`
	CurrentPhase   domain.Phase `json:"currentPhase"`
	IsGameStarted  bool         `json:"isGameStarted"`
	IsGameFinished bool         `json:"isGameFinished"`
	Players        []PlayerView `json:"players"`
}

type JoinedPayload struct {
	PlayerID    string `json:"playerId"`
	Nickname    string `json:"nickname"`
	Score       int    `json:"score"`
	IsDirector  bool   `json:"isDirector"`
	IsReconnect bool   `json:"isReconnect"`
}

type PlayerJoinedPayload struct {
	Player  PlayerView   `json:"player"`
	Players []PlayerView `json:"players"`
}

type PhaseChangedPayload struct {
	Phase domain.Phase `json:"phase"`
}

type SubmissionsClearedPayload struct {
	WineNumber int `json:"wineNumber"`
}

type PlayerSubmittedPayload struct {
	PlayerID           string       `json:"playerId"`
	Nickname           string       `json:"nickname"`
	WineNumber         int          `json:"wineNumber"`
	CharacteristicType domain.Phase `json:"characteristicType"`
}

type AnswerSubmittedPayload struct {
	CorrectCount   int  `json:"correctCount"`
	TotalQuestions int  `json:"totalQuestions"`
	RoundScore     int  `json:"roundScore"`
	IsCorrect      bool `json:"isCorrect"`
}

type AnswerErrorPayload struct {
	Error string `json:"error"`
}

type ScoreUpdatedPayload struct {
	PlayerID       string `json:"playerId"`
	NewScore       int    `json:"newScore"`
	RoundScore     int    `json:"roundScore"`
	CorrectCount   int    `json:"correctCount"`
	TotalQuestions int    `json:"totalQuestions"`
}

type PlayerLeftPayload struct {
	Player           PlayerView   `json:"player"`
	RemainingPlayers []PlayerView `json:"remainingPlayers"`
}

type HintPayload struct {
	WineNumber         int          `json:"wineNumber"`
	CharacteristicType domain.Phase `json:"characteristicType"`
	Hint               string       `json:"hint"`
	HintsUsed          int          `json:"hintsUsed"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

func toRoom(event string, payload any) Outbound {
	return Outbound{Event: event, Target: ToRoom, Payload: payload}
}

func toOthers(event string, payload any) Outbound {
	return Outbound{Event: event, Target: ToOthers, Payload: payload}
}

func toCaller(event string, payload any) Outbound {
	return Outbound{Event: event, Target: ToCaller, Payload: payload}
}

func errorEvent(err error) Outbound {
	return toCaller(EventError, ErrorPayload{Message: ClientMessage(err)})
}
