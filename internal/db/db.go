package db

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"activity-booking-backend/config"
	"activity-booking-backend/internal/model"
)

// Init initializes the database connection and runs migrations.
func Init(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)

	log.Println("Running database migrations...")
	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("automigrate failed: %w", err)
	}

	if err := applyConstraints(db); err != nil {
		return nil, fmt.Errorf("constraint DDL failed: %w", err)
	}

	log.Println("Database initialization complete.")
	return db, nil
}

// Migrate creates or updates the schema for all models. Split out of
// Init so tests can run it against SQLite.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Period{},
		&model.Activity{},
		&model.Tag{},
		&model.Occasion{},
		&model.OccasionDate{},
		&model.Attendee{},
		&model.Booking{},
		&model.PushSubscription{},
	)
}

// applyConstraints adds the checks that GORM tags cannot express.
// Violations of these are integrity bugs, not user errors.
func applyConstraints(db *gorm.DB) error {
	ddls := []string{
		// date ranges must be valid
		"ALTER TABLE occasion_dates ADD CONSTRAINT occasion_date_order CHECK (start < \"end\");",

		// wishlist before execution
		"ALTER TABLE periods ADD CONSTRAINT period_date_order CHECK (" +
			"prebooking_start <= prebooking_end AND " +
			"prebooking_end <= execution_start AND " +
			"execution_start <= execution_end);",

		// at most one active period
		"CREATE UNIQUE INDEX IF NOT EXISTS only_one_active_period ON periods (active) WHERE active;",
	}

	for _, ddl := range ddls {
		if err := db.Exec(ddl).Error; err != nil {
			log.Printf("DDL execution warning (query: %q): %v", ddl, err)
		}
	}
	return nil
}
