package db

import (
	"fmt"

	types "github.com/yungbote/marketplace-backend/internal/domain"
	"gorm.io/gorm"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		// =========================
		// Account store
		// =========================
		&types.Account{},

		// =========================
		// Canonical store
		// =========================
		&types.Product{},
		&types.Order{},

		// =========================
		// Coordinator ledgers
		// =========================
		&types.SyncRun{},
		&types.CheckRun{},
	)
}

// EnsureMarketplaceIndexes creates the composite indexes the checker and the
// owner listings scan rely on. Plain CREATE INDEX works on both backends.
func EnsureMarketplaceIndexes(db *gorm.DB) error {
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_product_owner_created ON product(owner_id, created_at);`).Error; err != nil {
		return fmt.Errorf("create idx_product_owner_created: %w", err)
	}
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_order_record_owner_placed ON order_record(owner_id, placed_at);`).Error; err != nil {
		return fmt.Errorf("create idx_order_record_owner_placed: %w", err)
	}
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_sync_run_status_updated ON sync_run(status, updated_at);`).Error; err != nil {
		return fmt.Errorf("create idx_sync_run_status_updated: %w", err)
	}
	return nil
}

// Migrate runs AutoMigrateAll followed by the index helpers.
func Migrate(db *gorm.DB) error {
	if err := AutoMigrateAll(db); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return EnsureMarketplaceIndexes(db)
}
