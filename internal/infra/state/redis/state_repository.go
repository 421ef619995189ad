package redisstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"wine-tasting/internal/domain"
	"wine-tasting/internal/repository"
)

// DefaultPointerTTL 是进度指针在 Redis 中的保留时间，每次写入都会刷新
const DefaultPointerTTL = 24 * time.Hour

// RedisStateRepository 是 StateRepository 接口的 Redis 实现
type RedisStateRepository struct {
	client     *redis.Client
	keyPrefix  string
	pointerTTL time.Duration
}

// NewRedisStateRepository 创建 RedisStateRepository 实例
func NewRedisStateRepository(client *redis.Client, keyPrefix string, pointerTTL time.Duration) *RedisStateRepository {
	if client == nil {
		panic("redis client cannot be nil for RedisStateRepository")
	}
	if keyPrefix == "" {
		keyPrefix = "wt:" // 默认前缀 "wt:" (wine tasting)
	}
	if pointerTTL <= 0 {
		pointerTTL = DefaultPointerTTL
	}
	return &RedisStateRepository{
		client:     client,
		keyPrefix:  keyPrefix,
		pointerTTL: pointerTTL,
	}
}

func (r *RedisStateRepository) gameStateKey(code string) string {
	return fmt.Sprintf("%sgame:%s:state", r.keyPrefix, code)
}

// GetRoomPointer 读取房间进度指针，key 不存在时返回 repository.ErrCacheMiss
func (r *RedisStateRepository) GetRoomPointer(ctx context.Context, code string) (*domain.RoomPointer, error) {
	key := r.gameStateKey(code)
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, repository.ErrCacheMiss
		}
		return nil, fmt.Errorf("redis: failed to get room pointer from %s: %w", key, err)
	}
	var pointer domain.RoomPointer
	if err := json.Unmarshal(data, &pointer); err != nil {
		return nil, fmt.Errorf("redis: failed to unmarshal room pointer from %s: %w", key, err)
	}
	return &pointer, nil
}

// SetRoomPointer 写入房间进度指针并刷新过期时间
func (r *RedisStateRepository) SetRoomPointer(ctx context.Context, code string, pointer domain.RoomPointer) error {
	key := r.gameStateKey(code)
	data, err := json.Marshal(pointer)
	if err != nil {
		return fmt.Errorf("redis: failed to marshal room pointer for %s: %w", key, err)
	}
	if err := r.client.Set(ctx, key, data, r.pointerTTL).Err(); err != nil {
		return fmt.Errorf("redis: failed to set room pointer %s: %w", key, err)
	}
	return nil
}

// DeleteRoomPointer 删除房间进度指针，key 不存在不视为错误
func (r *RedisStateRepository) DeleteRoomPointer(ctx context.Context, code string) error {
	key := r.gameStateKey(code)
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis: failed to delete room pointer %s: %w", key, err)
	}
	return nil
}

// CheckRateLimit 检查给定 key 的请求频率是否超限，并递增计数。
func (r *RedisStateRepository) CheckRateLimit(ctx context.Context, key string, limit int, duration time.Duration) (bool, error) {
	fullKey := r.keyPrefix + key
	// 使用 Pipeline 减少网络往返
	pipe := r.client.Pipeline()
	incrCmd := pipe.Incr(ctx, fullKey)
	pipe.Expire(ctx, fullKey, duration)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("redis: pipeline failed for rate limit check on key %s: %w", fullKey, err)
	}
	count, err := incrCmd.Result()
	if err != nil {
		return false, fmt.Errorf("redis: failed to get incr result for rate limit on key %s: %w", fullKey, err)
	}
	return count > int64(limit), nil
}
