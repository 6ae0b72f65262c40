package db

import (
	"fmt"

	"github.com/miky-rola/signals-backend/internal/models"
	"gorm.io/gorm"
)

// Migrate runs database migrations for all models.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	if errAutoMigrate := conn.AutoMigrate(
		&models.User{},
		&models.Profile{},
		&models.MarketData{},
		&models.Signal{},
		&models.UserInteraction{},
	); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}
	return nil
}
