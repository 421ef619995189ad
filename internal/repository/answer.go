package repository

import (
	"context"

	"wine-tasting/internal/domain"
)

// AnswerSubmission 是一次评分后的提交，写入 (PlayerID, WineID, CharacteristicType) 对应的唯一记录。
type AnswerSubmission struct {
	PlayerID           string
	WineID             uint
	CharacteristicType domain.Phase
	Answer             string
	Selections         map[string]string
	IsCorrect          bool
	Points             int
}

// SubmitOutcome 是 SubmitAnswer 事务提交后的结果。
type SubmitOutcome struct {
	Credited int // 本次实际加到总分上的分数
	NewScore int // 玩家提交后的总分
}

// AnswerRepository 定义了答案的持久化操作。
type AnswerRepository interface {
	// SubmitAnswer 在一个事务中 upsert 答案并增加玩家总分。
	// 同一条答案重复提交时只补足分差，总分不会减少。
	SubmitAnswer(ctx context.Context, sub AnswerSubmission) (SubmitOutcome, error)

	// IncrementHints 为 (playerID, wineID, phase) 的答案记录增加一次提示计数，
	// 记录不存在时先创建空答案。返回增加后的提示次数。
	IncrementHints(ctx context.Context, playerID string, wineID uint, phase domain.Phase) (int, error)

	// ListByPlayer 返回玩家的全部答案。
	ListByPlayer(ctx context.Context, playerID string) ([]domain.Answer, error)
}
