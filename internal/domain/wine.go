package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Characteristics 是某款酒在三个阶段的标准答案。
type Characteristics struct {
	Visual []string `json:"visual"`
	Smell  []string `json:"smell"`
	Taste  []string `json:"taste"`
}

// For 返回指定阶段的标准答案
func (c Characteristics) For(phase Phase) []string {
	switch phase {
	case PhaseVisual:
		return c.Visual
	case PhaseSmell:
		return c.Smell
	case PhaseTaste:
		return c.Taste
	}
	return nil
}

// Wine 在生成后不再修改。
type Wine struct {
	ID              uint                                `gorm:"primaryKey"`
	GameID          uint                                `gorm:"not null;uniqueIndex:idx_wines_game_number"`
	Number          int                                 `gorm:"not null;uniqueIndex:idx_wines_game_number"` // 从 1 开始
	Name            string                              `gorm:"size:191;not null"`
	Year            int                                 `gorm:"not null"`
	Characteristics datatypes.JSONType[Characteristics] `gorm:"not null"`
	CreatedAt       time.Time                           `gorm:"autoCreateTime"`
}
