package domain

import "time"

// Player 是加入某局游戏的玩家。ID 在重连之间保持不变，SessionID 指向当前的实时连接。
type Player struct {
	ID        string    `gorm:"primaryKey;size:191"`
	GameID    uint      `gorm:"not null;uniqueIndex:idx_players_game_nickname"`
	Nickname  string    `gorm:"size:64;not null;uniqueIndex:idx_players_game_nickname"`
	SessionID string    `gorm:"size:64;index"`
	Score     int       `gorm:"not null;default:0"`
	JoinedAt  time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}
