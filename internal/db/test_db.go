package db

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/mercadito/storefront-backend/internal/app/model"
	appLogger "github.com/mercadito/storefront-backend/pkg/logger"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB creates an in-memory SQLite database for testing
func SetupTestDB() (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to test database: %w", err)
	}

	// every connection to :memory: is a fresh database
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get test database instance: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := MigrateDB(db); err != nil {
		return nil, fmt.Errorf("failed to migrate test database: %w", err)
	}

	return db, nil
}

// CleanupTestDB cleans up the test database
func CleanupTestDB(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		appLogger.Warn("Failed to get DB instance", map[string]interface{}{"error": err.Error()})
		return
	}
	sqlDB.Close()
}

// TruncateAllTables removes all data from tables
func TruncateAllTables(db *gorm.DB) error {
	tables := []string{"order_items", "orders", "cart_items", "carts", "products", "error_logs"}
	for _, table := range tables {
		if err := db.Exec(fmt.Sprintf("DELETE FROM %s", table)).Error; err != nil {
			return err
		}
	}
	return nil
}

// SeedTestProduct inserts a product priced at price with the given stock.
func SeedTestProduct(db *gorm.DB, name, price string, stock int) (*model.Product, error) {
	product := &model.Product{
		SKU:      fmt.Sprintf("TEST-%s", name),
		Name:     name,
		Price:    decimal.RequireFromString(price),
		Stock:    stock,
		ImageURL: "https://cdn.example.com/" + name + ".jpg",
	}
	if err := db.Create(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}
