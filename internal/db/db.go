package db

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Windi-Fikriyansyah/freelancehub/internal/models"
)

// Connect opens a gorm connection for the given driver ("postgres" or "sqlite").
func Connect(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres", "":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if driver == "sqlite" {
		// a single connection keeps in-memory databases shared
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	log.Debug("database connected", "driver", driver)
	return gdb, nil
}

// UsernameLowerIndex makes usernames unique regardless of case.
const UsernameLowerIndex = "idx_users_username_lower"

func Migrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(&models.User{}, &models.Skill{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	// same statement on postgres and sqlite
	stmt := "CREATE UNIQUE INDEX IF NOT EXISTS " + UsernameLowerIndex + " ON users (LOWER(username))"
	if err := gdb.Exec(stmt).Error; err != nil {
		return fmt.Errorf("failed to create %s: %w", UsernameLowerIndex, err)
	}
	return nil
}
