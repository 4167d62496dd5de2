package db

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/bgrizzle97/socialMedia/internal/logging"
	"github.com/bgrizzle97/socialMedia/internal/model"
)

// Migrate creates or updates the schema. When reset is set, existing tables
// are dropped first.
func Migrate(ctx context.Context, gormDB *gorm.DB, reset bool, log logging.Logger) error {
	tables := model.All()

	if reset {
		log.Warn(ctx, "RESET_DB=true detected, dropping all tables")
		for i := len(tables) - 1; i >= 0; i-- {
			if err := gormDB.Migrator().DropTable(tables[i]); err != nil {
				log.Warn(ctx, "drop table failed", "error", err)
			}
		}
	}

	if err := gormDB.WithContext(ctx).AutoMigrate(tables...); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}
