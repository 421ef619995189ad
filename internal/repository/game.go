package repository

import (
	"context"
	"time"

	"wine-tasting/internal/domain"
)

// GameRepository 定义了游戏记录的持久化操作。
type GameRepository interface {
	// FindByCode 根据邀请码查找游戏，不存在时返回 ErrGameNotFound。
	FindByCode(ctx context.Context, code string) (*domain.Game, error)

	// CreateWithWines 在同一个事务中创建游戏和它的酒款。
	// 成功后 game.ID 与每个 wine.GameID 都会被填充。
	CreateWithWines(ctx context.Context, game *domain.Game, wines []domain.Wine) error

	// UpdateStatus 更新游戏状态，游戏不存在时返回 ErrGameNotFound。
	UpdateStatus(ctx context.Context, code string, status domain.GameStatus) error

	// IsCodeExists 检查邀请码是否已被占用。
	IsCodeExists(ctx context.Context, code string) (bool, error)

	// FinishStale 把 cutoff 之前没有更新过的未结束游戏标记为 FINISHED，返回受影响的邀请码。
	FinishStale(ctx context.Context, cutoff time.Time) ([]string, error)
}
