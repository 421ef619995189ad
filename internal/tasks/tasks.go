package tasks

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

// 任务类型
const (
	TypeGameExpire = "game:expire-stale"
)

// GameExpirePayload 是过期清理任务的参数
type GameExpirePayload struct {
	StaleAfterSeconds int64 `json:"stale_after_seconds"`
}

// StaleAfter 返回超时时长
func (p GameExpirePayload) StaleAfter() time.Duration {
	return time.Duration(p.StaleAfterSeconds) * time.Second
}

// NewGameExpireTask 创建一个把超过 staleAfter 未更新的游戏标记为结束的任务
func NewGameExpireTask(staleAfter time.Duration) (*asynq.Task, error) {
	payload, err := json.Marshal(GameExpirePayload{StaleAfterSeconds: int64(staleAfter / time.Second)})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeGameExpire, payload), nil
}
