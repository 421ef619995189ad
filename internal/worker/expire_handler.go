package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"wine-tasting/internal/tasks"
)

// defaultStaleAfter 在任务参数缺失时使用
const defaultStaleAfter = 24 * time.Hour

// GameExpirer 由 service.GameService 实现
type GameExpirer interface {
	ExpireStaleGames(ctx context.Context, staleAfter time.Duration) (int, error)
}

// GameExpireHandler 处理周期性的过期游戏清理任务
type GameExpireHandler struct {
	expirer GameExpirer
}

// NewGameExpireHandler 创建 Handler 实例
func NewGameExpireHandler(expirer GameExpirer) *GameExpireHandler {
	return &GameExpireHandler{expirer: expirer}
}

// ProcessTask 实现 asynq.Handler 接口
func (h *GameExpireHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	taskID, _ := asynq.GetTaskID(ctx)
	logCtx := logrus.WithFields(logrus.Fields{
		"task_id":   taskID,
		"task_type": t.Type(),
	})

	payload := tasks.GameExpirePayload{}
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			logCtx.WithError(err).Error("Failed to unmarshal task payload")
			return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	staleAfter := payload.StaleAfter()
	if staleAfter <= 0 {
		staleAfter = defaultStaleAfter
	}

	n, err := h.expirer.ExpireStaleGames(ctx, staleAfter)
	if err != nil {
		logCtx.WithError(err).Error("Failed to expire stale games")
		return err
	}
	logCtx.WithFields(logrus.Fields{"expired": n, "stale_after": staleAfter.String()}).Debug("Stale game expiry task processed")
	return nil
}
