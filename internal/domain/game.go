package domain

import "time"

// GameStatus 表示游戏的整体生命周期状态。
type GameStatus string

const (
	GameStatusCreated    GameStatus = "CREATED"
	GameStatusInProgress GameStatus = "IN_PROGRESS"
	GameStatusFinished   GameStatus = "FINISHED"
)

// Difficulty 决定每个阶段需要辨认的特征数量。
type Difficulty string

const (
	DifficultyNovice       Difficulty = "NOVICE"
	DifficultyIntermediate Difficulty = "INTERMEDIATE"
	DifficultyExpert       Difficulty = "EXPERT"
)

// Valid 判断难度是否为已知取值
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyNovice, DifficultyIntermediate, DifficultyExpert:
		return true
	}
	return false
}

// Game 是一局品酒游戏的持久化记录。
type Game struct {
	ID         uint       `gorm:"primaryKey"`
	Code       string     `gorm:"uniqueIndex;size:16;not null"` // 5 位邀请码
	DirectorID uint       `gorm:"index;not null"`               // 创建者 (User.ID)
	Status     GameStatus `gorm:"size:20;not null;index"`
	Difficulty Difficulty `gorm:"size:20;not null"`
	WineCount  int        `gorm:"not null"`
	CreatedAt  time.Time  `gorm:"autoCreateTime"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime;index"`
}

// CharacteristicCount 返回每款酒每个阶段的特征数量
func (d Difficulty) CharacteristicCount() int {
	switch d {
	case DifficultyIntermediate:
		return 3
	case DifficultyExpert:
		return 4
	}
	return 2
}
