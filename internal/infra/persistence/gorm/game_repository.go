package gormpersistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"wine-tasting/internal/domain"
	"wine-tasting/internal/repository"
)

// GormGameRepository 是 GameRepository 接口的 GORM 实现
type GormGameRepository struct {
	db *gorm.DB
}

// NewGormGameRepository 创建 GormGameRepository 实例
func NewGormGameRepository(db *gorm.DB) *GormGameRepository {
	if db == nil {
		panic("database connection cannot be nil for GormGameRepository")
	}
	return &GormGameRepository{db: db}
}

// FindByCode 根据邀请码查找游戏
func (r *GormGameRepository) FindByCode(ctx context.Context, code string) (*domain.Game, error) {
	var game domain.Game
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&game).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrGameNotFound
		}
		return nil, fmt.Errorf("gorm: find game by code '%s': %w", code, err)
	}
	return &game, nil
}

// CreateWithWines 在一个事务中写入游戏和全部酒款
func (r *GormGameRepository) CreateWithWines(ctx context.Context, game *domain.Game, wines []domain.Wine) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(game).Error; err != nil {
			return err
		}
		if len(wines) == 0 {
			return nil
		}
		for i := range wines {
			wines[i].GameID = game.ID
		}
		return tx.Create(&wines).Error
	})
	if err != nil {
		if isDuplicateEntryError(err) {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: create game '%s' with %d wines: %w", game.Code, len(wines), err)
	}
	return nil
}

// UpdateStatus 更新游戏状态
func (r *GormGameRepository) UpdateStatus(ctx context.Context, code string, status domain.GameStatus) error {
	result := r.db.WithContext(ctx).Model(&domain.Game{}).Where("code = ?", code).Update("status", status)
	if result.Error != nil {
		return fmt.Errorf("gorm: update status of game '%s' to %s: %w", code, status, result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrGameNotFound
	}
	return nil
}

// IsCodeExists 检查邀请码是否已存在
func (r *GormGameRepository) IsCodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Game{}).Where("code = ?", code).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("gorm: count games by code '%s': %w", code, err)
	}
	return count > 0, nil
}

// FinishStale 结束长时间没有活动的游戏
func (r *GormGameRepository) FinishStale(ctx context.Context, cutoff time.Time) ([]string, error) {
	var codes []string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		open := []domain.GameStatus{domain.GameStatusCreated, domain.GameStatusInProgress}
		if err := tx.Model(&domain.Game{}).
			Where("status IN ? AND updated_at < ?", open, cutoff).
			Pluck("code", &codes).Error; err != nil {
			return err
		}
		if len(codes) == 0 {
			return nil
		}
		return tx.Model(&domain.Game{}).
			Where("code IN ?", codes).
			Update("status", domain.GameStatusFinished).Error
	})
	if err != nil {
		return nil, fmt.Errorf("gorm: finish games stale since %s: %w", cutoff.Format(time.RFC3339), err)
	}
	return codes, nil
}
