package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"wine-tasting/internal/domain"
	"wine-tasting/internal/repository"
)

// GormAnswerRepository 是 AnswerRepository 接口的 GORM 实现
type GormAnswerRepository struct {
	db *gorm.DB
}

func NewGormAnswerRepository(db *gorm.DB) *GormAnswerRepository {
	if db == nil {
		panic("database connection cannot be nil for GormAnswerRepository")
	}
	return &GormAnswerRepository{db: db}
}

// lockAnswer 以 SELECT ... FOR UPDATE 读取答案记录，未找到时返回 gorm.ErrRecordNotFound
func lockAnswer(tx *gorm.DB, playerID string, wineID uint, phase domain.Phase) (domain.Answer, error) {
	var answer domain.Answer
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("player_id = ? AND wine_id = ? AND characteristic_type = ?", playerID, wineID, phase).
		First(&answer).Error
	return answer, err
}

// SubmitAnswer 在同一个事务中写入答案和分数，崩溃时两者要么都生效要么都不生效
func (r *GormAnswerRepository) SubmitAnswer(ctx context.Context, sub repository.AnswerSubmission) (repository.SubmitOutcome, error) {
	var outcome repository.SubmitOutcome
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		answer, err := lockAnswer(tx, sub.PlayerID, sub.WineID, sub.CharacteristicType)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		previous := answer.Points
		credited := sub.Points - previous
		if credited < 0 {
			credited = 0
		}

		answer.PlayerID = sub.PlayerID
		answer.WineID = sub.WineID
		answer.CharacteristicType = sub.CharacteristicType
		answer.Answer = sub.Answer
		answer.Selections = datatypes.NewJSONType(sub.Selections)
		answer.IsCorrect = sub.IsCorrect
		answer.Points = previous + credited
		if err := tx.Save(&answer).Error; err != nil {
			return err
		}

		if credited > 0 {
			result := tx.Model(&domain.Player{}).
				Where("id = ?", sub.PlayerID).
				UpdateColumn("score", gorm.Expr("score + ?", credited))
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return repository.ErrPlayerNotFound
			}
		}

		var player domain.Player
		if err := tx.Select("score").Where("id = ?", sub.PlayerID).First(&player).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return repository.ErrPlayerNotFound
			}
			return err
		}
		outcome = repository.SubmitOutcome{Credited: credited, NewScore: player.Score}
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return repository.SubmitOutcome{}, err
		}
		if isDuplicateEntryError(err) {
			return repository.SubmitOutcome{}, repository.ErrDuplicateEntry
		}
		return repository.SubmitOutcome{}, fmt.Errorf("gorm: submit answer (player %s, wine %d, %s): %w",
			sub.PlayerID, sub.WineID, sub.CharacteristicType, err)
	}
	return outcome, nil
}

func (r *GormAnswerRepository) IncrementHints(ctx context.Context, playerID string, wineID uint, phase domain.Phase) (int, error) {
	var hints int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		answer, err := lockAnswer(tx, playerID, wineID, phase)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			answer = domain.Answer{
				PlayerID:           playerID,
				WineID:             wineID,
				CharacteristicType: phase,
				Selections:         datatypes.NewJSONType(map[string]string{}),
				HintsUsed:          1,
			}
			hints = 1
			return tx.Create(&answer).Error
		}
		if err != nil {
			return err
		}
		hints = answer.HintsUsed + 1
		return tx.Model(&domain.Answer{}).Where("id = ?", answer.ID).UpdateColumn("hints_used", hints).Error
	})
	if err != nil {
		return 0, fmt.Errorf("gorm: increment hints (player %s, wine %d, %s): %w", playerID, wineID, phase, err)
	}
	return hints, nil
}

func (r *GormAnswerRepository) ListByPlayer(ctx context.Context, playerID string) ([]domain.Answer, error) {
	var answers []domain.Answer
	err := r.db.WithContext(ctx).Where("player_id = ?", playerID).Order("id ASC").Find(&answers).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list answers of player %s: %w", playerID, err)
	}
	return answers, nil
}
