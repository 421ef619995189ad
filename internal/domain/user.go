// Package domain 定义了持久化模型和共享的枚举类型。
package domain

import "time"

// User 是可以创建并主持游戏的导演账号。
type User struct {
	ID        uint      `gorm:"primaryKey"`
	Username  string    `gorm:"type:varchar(191);uniqueIndex:idx_username;not null"`
	Password  string    `gorm:"type:text;not null"` // bcrypt 哈希
	Email     string    `gorm:"type:varchar(191);index"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}
