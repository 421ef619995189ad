package setup

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"wine-tasting/internal/domain"
)

// MigrateDB 使用 GORM AutoMigrate 创建或更新全部表结构
func MigrateDB(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("cannot migrate database with nil DB connection")
	}

	models := []any{
		&domain.User{},
		&domain.Game{},
		&domain.Player{},
		&domain.Wine{},
		&domain.Answer{},
	}
	for _, model := range models {
		if err := db.AutoMigrate(model); err != nil {
			logrus.Errorf("Failed to auto-migrate %T: %v", model, err)
			return fmt.Errorf("failed to auto-migrate %T: %w", model, err)
		}
	}

	logrus.Info("Database migration completed successfully")
	return nil
}
