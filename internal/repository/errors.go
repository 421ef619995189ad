package repository

import "errors"

// 通用的存储库错误
var (
	// ErrNotFound 表示请求的记录 (或缓存 key) 不存在
	ErrNotFound = errors.New("repository: record not found")
	// ErrDuplicateEntry 表示写入违反了唯一约束
	ErrDuplicateEntry = errors.New("repository: duplicate entry")
)

var (
	ErrUserNotFound   = ErrNotFound
	ErrGameNotFound   = ErrNotFound
	ErrPlayerNotFound = ErrNotFound
	ErrWineNotFound   = ErrNotFound
	ErrCacheMiss      = ErrNotFound
)
