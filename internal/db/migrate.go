package db

import (
	_ "embed"
	"fmt"

	"github.com/mercadito/storefront-backend/internal/app/model"
	"github.com/mercadito/storefront-backend/pkg/logger"
	"gorm.io/gorm"
)

//go:embed sql/procedures.sql
var proceduresSQL string

// Migrate runs database migrations on the global connection
func Migrate() error {
	return MigrateDB(DB)
}

// MigrateDB creates or updates the tables the cart procedures operate on.
func MigrateDB(conn *gorm.DB) error {
	logger.Info("Running database migrations...")

	models := []interface{}{
		&model.Product{},
		&model.Cart{},
		&model.CartLine{},
		&model.Order{},
		&model.OrderItem{},
		&model.ErrorLog{},
	}

	if err := conn.AutoMigrate(models...); err != nil {
		logger.Error("Failed to run migrations", err)
		return err
	}

	logger.Info("Database migrations completed successfully", map[string]interface{}{
		"models_count": len(models),
	})
	return nil
}

// InstallProcedures (re)creates the PostgreSQL functions behind the native
// procedure executor. It must run after MigrateDB.
func InstallProcedures(conn *gorm.DB) error {
	if name := conn.Dialector.Name(); name != "postgres" {
		return fmt.Errorf("stored procedures require postgres, got %s", name)
	}

	logger.Info("Installing cart stored procedures...")
	if err := conn.Exec(proceduresSQL).Error; err != nil {
		logger.Error("Failed to install stored procedures", err)
		return fmt.Errorf("install procedures: %w", err)
	}

	logger.Info("Cart stored procedures installed", map[string]interface{}{
		"procedures": AllProcedures,
	})
	return nil
}
