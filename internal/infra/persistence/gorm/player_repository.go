package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"wine-tasting/internal/domain"
	"wine-tasting/internal/repository"
)

// GormPlayerRepository 是 PlayerRepository 接口的 GORM 实现
type GormPlayerRepository struct {
	db *gorm.DB
}

// NewGormPlayerRepository 创建 GormPlayerRepository 实例
func NewGormPlayerRepository(db *gorm.DB) *GormPlayerRepository {
	if db == nil {
		panic("database connection cannot be nil for GormPlayerRepository")
	}
	return &GormPlayerRepository{db: db}
}

func (r *GormPlayerRepository) FindByID(ctx context.Context, id string) (*domain.Player, error) {
	var player domain.Player
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&player).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrPlayerNotFound
		}
		return nil, fmt.Errorf("gorm: find player by id '%s': %w", id, err)
	}
	return &player, nil
}

func (r *GormPlayerRepository) ListByGame(ctx context.Context, gameID uint) ([]domain.Player, error) {
	var players []domain.Player
	err := r.db.WithContext(ctx).
		Where("game_id = ?", gameID).
		Order("joined_at ASC").
		Find(&players).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list players of game %d: %w", gameID, err)
	}
	return players, nil
}

func (r *GormPlayerRepository) Create(ctx context.Context, player *domain.Player) error {
	if err := r.db.WithContext(ctx).Create(player).Error; err != nil {
		if isDuplicateEntryError(err) {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: create player '%s' in game %d: %w", player.Nickname, player.GameID, err)
	}
	return nil
}

// Upsert 按主键插入或重新绑定会话。
// 不使用 ON CONFLICT，因为 MySQL 的 ON DUPLICATE KEY 也会命中 (game_id, nickname) 索引。
func (r *GormPlayerRepository) Upsert(ctx context.Context, player *domain.Player) (*domain.Player, bool, error) {
	var stored domain.Player
	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("id = ?", player.ID).First(&stored).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			stored = *player
			created = true
			return tx.Create(&stored).Error
		}
		if err != nil {
			return err
		}
		stored.SessionID = player.SessionID
		return tx.Model(&domain.Player{}).Where("id = ?", stored.ID).Update("session_id", player.SessionID).Error
	})
	if err != nil {
		if isDuplicateEntryError(err) {
			return nil, false, repository.ErrDuplicateEntry
		}
		return nil, false, fmt.Errorf("gorm: upsert player '%s': %w", player.ID, err)
	}
	return &stored, created, nil
}

func (r *GormPlayerRepository) UpdateSession(ctx context.Context, playerID, sessionID string) error {
	result := r.db.WithContext(ctx).Model(&domain.Player{}).Where("id = ?", playerID).Update("session_id", sessionID)
	if result.Error != nil {
		return fmt.Errorf("gorm: update session of player '%s': %w", playerID, result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}
	// 未开启 clientFoundRows 的 MySQL 只统计真正变化的行，重复绑定同一个会话会得到 0
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Player{}).Where("id = ?", playerID).Count(&count).Error; err != nil {
		return fmt.Errorf("gorm: check player '%s': %w", playerID, err)
	}
	if count == 0 {
		return repository.ErrPlayerNotFound
	}
	return nil
}
