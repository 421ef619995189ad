package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"wine-tasting/internal/domain"
	"wine-tasting/internal/repository"
)

// GormWineRepository 是 WineRepository 接口的 GORM 实现
type GormWineRepository struct {
	db *gorm.DB
}

func NewGormWineRepository(db *gorm.DB) *GormWineRepository {
	if db == nil {
		panic("database connection cannot be nil for GormWineRepository")
	}
	return &GormWineRepository{db: db}
}

func (r *GormWineRepository) FindByNumber(ctx context.Context, gameID uint, number int) (*domain.Wine, error) {
	var wine domain.Wine
	err := r.db.WithContext(ctx).
		Where("game_id = ? AND number = ?", gameID, number).
		First(&wine).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrWineNotFound
		}
		return nil, fmt.Errorf("gorm: find wine %d of game %d: %w", number, gameID, err)
	}
	return &wine, nil
}

func (r *GormWineRepository) ListByGame(ctx context.Context, gameID uint) ([]domain.Wine, error) {
	var wines []domain.Wine
	err := r.db.WithContext(ctx).Where("game_id = ?", gameID).Order("number ASC").Find(&wines).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list wines of game %d: %w", gameID, err)
	}
	return wines, nil
}
