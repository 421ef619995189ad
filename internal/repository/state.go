package repository

import (
	"context"
	"time"

	"wine-tasting/internal/domain"
)

// StateRepository 定义了与房间实时状态相关的缓存操作，通常由 Redis 实现。
// 缓存不是权威数据，丢失后可以从数据库重建 (进度可能回到第 1 款酒的 VISUAL 阶段)。
type StateRepository interface {
	// GetRoomPointer 读取 game:<code>:state，未命中时返回 ErrCacheMiss。
	GetRoomPointer(ctx context.Context, code string) (*domain.RoomPointer, error)

	// SetRoomPointer 写入 game:<code>:state。
	SetRoomPointer(ctx context.Context, code string, pointer domain.RoomPointer) error

	// DeleteRoomPointer 删除房间的缓存指针。
	DeleteRoomPointer(ctx context.Context, code string) error

	// CheckRateLimit 递增 key 的计数，超过 limit 时返回 true。
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
