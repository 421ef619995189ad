package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Answer 记录玩家对某款酒某个阶段的最后一次提交。
// (PlayerID, WineID, CharacteristicType) 唯一。
type Answer struct {
	ID                 uint                                 `gorm:"primaryKey"`
	PlayerID           string                               `gorm:"size:191;not null;uniqueIndex:idx_answers_player_wine_type"`
	WineID             uint                                 `gorm:"not null;uniqueIndex:idx_answers_player_wine_type"`
	CharacteristicType Phase                                `gorm:"size:20;not null;uniqueIndex:idx_answers_player_wine_type"`
	Answer             string                               `gorm:"type:text"` // 逗号拼接的选择
	Selections         datatypes.JSONType[map[string]string]
	IsCorrect          bool                                 `gorm:"not null;default:false"`
	Points             int                                  `gorm:"not null;default:0"` // 已计入玩家总分的分数
	HintsUsed          int                                  `gorm:"not null;default:0"`
	CreatedAt          time.Time                            `gorm:"autoCreateTime"`
	UpdatedAt          time.Time                            `gorm:"autoUpdateTime"`
}
