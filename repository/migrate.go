package repository

import (
	"fmt"

	"github.com/anchorchat/anchor/models"
	"gorm.io/gorm"
)

// Migrate creates or updates every table the service owns
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Account{},
		&models.PaymentAttempt{},
		&models.PaymentCallbackEvent{},
		&models.AuditLog{},
	); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}
