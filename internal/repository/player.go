package repository

import (
	"context"

	"wine-tasting/internal/domain"
)

// PlayerRepository 定义了玩家记录的持久化操作。
type PlayerRepository interface {
	// FindByID 根据玩家 ID 查找，不存在时返回 ErrPlayerNotFound。
	FindByID(ctx context.Context, id string) (*domain.Player, error)

	// ListByGame 按加入顺序返回某局游戏的全部玩家。
	ListByGame(ctx context.Context, gameID uint) ([]domain.Player, error)

	// Create 创建新玩家，同一局内昵称重复时返回 ErrDuplicateEntry。
	Create(ctx context.Context, player *domain.Player) error

	// Upsert 按 ID 插入玩家；已存在时只更新 SessionID，保留分数和昵称。
	// 返回持久化后的玩家记录，以及本次是否新建了记录。
	Upsert(ctx context.Context, player *domain.Player) (*domain.Player, bool, error)

	// UpdateSession 把玩家绑定到新的连接 ID。
	UpdateSession(ctx context.Context, playerID, sessionID string) error
}
