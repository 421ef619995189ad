package repository

import (
	"context"

	"wine-tasting/internal/domain"
)

// WineRepository 定义了酒款的只读查询。酒款随游戏一起创建 (见 GameRepository.CreateWithWines)。
type WineRepository interface {
	// FindByNumber 根据游戏 ID 和序号 (从 1 开始) 查找，不存在时返回 ErrWineNotFound。
	FindByNumber(ctx context.Context, gameID uint, number int) (*domain.Wine, error)

	// ListByGame 按序号返回游戏的全部酒款。
	ListByGame(ctx context.Context, gameID uint) ([]domain.Wine, error)
}
