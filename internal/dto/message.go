// Package dto 定义 WebSocket 协议的消息格式：{"event": "<name>", "data": {...}}。
package dto

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"wine-tasting/internal/domain"
	"wine-tasting/internal/session"
)

// 客户端发出的事件名
const (
	EventJoinGame     = "join-game"
	EventStartGame    = "start-game"
	EventChangePhase  = "change-phase"
	EventNextWine     = "next-wine"
	EventSubmitAnswer = "submit-answer"
	EventUseHint      = "use-hint"
	EventFinishGame   = "finish-game"
)

var (
	ErrMalformedMessage = errors.New("Malformed message")
	ErrUnknownEvent     = errors.New("Unknown event")
	ErrInvalidPayload   = errors.New("Invalid payload")
)

var validate = validator.New()

// IncomingMessage 是客户端消息的外层结构，Data 按 Event 再次解析
type IncomingMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// OutgoingMessage 是发送给客户端的消息
type OutgoingMessage struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// JoinGameRequest 中的 userId 只用于兼容旧客户端，服务端以连接的认证结果为准
type JoinGameRequest struct {
	Code        string `json:"code" validate:"required,max=16"`
	Nickname    string `json:"nickname" validate:"max=64"`
	UserID      any    `json:"userId,omitempty"`
	PlayerID    string `json:"playerId" validate:"max=191"`
	IsReconnect bool   `json:"isReconnect"`
}

// DirectorRequest 是 start-game / next-wine / finish-game 的载荷
type DirectorRequest struct {
	Code   string `json:"code" validate:"required,max=16"`
	UserID any    `json:"userId,omitempty"`
}

type ChangePhaseRequest struct {
	Code   string       `json:"code" validate:"required,max=16"`
	UserID any          `json:"userId,omitempty"`
	Phase  domain.Phase `json:"phase" validate:"required"`
}

type SubmitAnswerRequest struct {
	Code               string            `json:"code" validate:"required,max=16"`
	PlayerID           string            `json:"playerId" validate:"required,max=191"`
	WineNumber         int               `json:"wineNumber" validate:"required,min=1"`
	CharacteristicType domain.Phase      `json:"characteristicType" validate:"required"`
	Answers            map[string]string `json:"answers" validate:"max=64,dive,keys,required,max=128,endkeys,max=32"`
}

type UseHintRequest struct {
	Code               string       `json:"code" validate:"required,max=16"`
	PlayerID           string       `json:"playerId" validate:"required,max=191"`
	WineNumber         int          `json:"wineNumber" validate:"required,min=1"`
	CharacteristicType domain.Phase `json:"characteristicType" validate:"required"`
}

// ErrorDTO 是 error 事件的载荷
type ErrorDTO struct {
	Message string `json:"message"`
}

// PayloadError 表示某个事件的 data 无法解析或没有通过校验
type PayloadError struct {
	Event  string
	Reason string
}

func (e *PayloadError) Error() string {
	return fmt.Sprintf("%s for %s: %s", ErrInvalidPayload, e.Event, e.Reason)
}

func (e *PayloadError) Unwrap() error { return ErrInvalidPayload }

func decodePayload(event string, raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return &PayloadError{Event: event, Reason: "missing data"}
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return &PayloadError{Event: event, Reason: err.Error()}
	}
	if err := validate.Struct(dst); err != nil {
		return &PayloadError{Event: event, Reason: err.Error()}
	}
	return nil
}

// Decode 把一条客户端消息转换为状态机命令。caller 由连接提供，不信任载荷里的身份字段。
func Decode(raw []byte, caller session.Caller) (session.Command, error) {
	var msg IncomingMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	switch msg.Event {
	case EventJoinGame:
		var req JoinGameRequest
		if err := decodePayload(msg.Event, msg.Data, &req); err != nil {
			return nil, err
		}
		return session.Join{
			Caller:      caller,
			Code:        req.Code,
			Nickname:    req.Nickname,
			PlayerID:    req.PlayerID,
			IsReconnect: req.IsReconnect,
		}, nil

	case EventStartGame, EventNextWine, EventFinishGame:
		var req DirectorRequest
		if err := decodePayload(msg.Event, msg.Data, &req); err != nil {
			return nil, err
		}
		switch msg.Event {
		case EventStartGame:
			return session.Start{Caller: caller, Code: req.Code}, nil
		case EventNextWine:
			return session.NextWine{Caller: caller, Code: req.Code}, nil
		default:
			return session.Finish{Caller: caller, Code: req.Code}, nil
		}

	case EventChangePhase:
		var req ChangePhaseRequest
		if err := decodePayload(msg.Event, msg.Data, &req); err != nil {
			return nil, err
		}
		return session.ChangePhase{Caller: caller, Code: req.Code, Phase: req.Phase}, nil

	case EventSubmitAnswer:
		var req SubmitAnswerRequest
		if err := decodePayload(msg.Event, msg.Data, &req); err != nil {
			return nil, err
		}
		return session.SubmitAnswer{
			Caller:             caller,
			Code:               req.Code,
			PlayerID:           req.PlayerID,
			WineNumber:         req.WineNumber,
			CharacteristicType: req.CharacteristicType,
			Answers:            req.Answers,
		}, nil

	case EventUseHint:
		var req UseHintRequest
		if err := decodePayload(msg.Event, msg.Data, &req); err != nil {
			return nil, err
		}
		return session.UseHint{
			Caller:             caller,
			Code:               req.Code,
			PlayerID:           req.PlayerID,
			WineNumber:         req.WineNumber,
			CharacteristicType: req.CharacteristicType,
		}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, msg.Event)
}

// Encode 序列化一条服务端事件
func Encode(event string, payload any) ([]byte, error) {
	return json.Marshal(OutgoingMessage{Event: event, Data: payload})
}

// EncodeError 序列化 error 事件。消息来自已知的错误类型，不包含内部细节。
// submit-answer 的载荷错误按 answer-submitted{error} 回复。
func EncodeError(err error) []byte {
	var payloadErr *PayloadError
	if errors.As(err, &payloadErr) && payloadErr.Event == EventSubmitAnswer {
		data, _ := Encode(session.EventAnswerSubmitted, session.AnswerErrorPayload{Error: ErrInvalidPayload.Error()})
		return data
	}

	message := session.ClientMessage(err)
	for _, known := range []error{ErrMalformedMessage, ErrUnknownEvent, ErrInvalidPayload} {
		if errors.Is(err, known) {
			message = known.Error()
		}
	}
	data, _ := Encode(session.EventError, ErrorDTO{Message: message})
	return data
}
