package db

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"calendar-booking-backend/config"
	"calendar-booking-backend/internal/model"
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
		return nil, err
	}

	if err := applyPostgresDDL(db); err != nil {
		return nil, err
	}

	log.Println("Database initialization complete.")
	return db, nil
}

// Migrate runs AutoMigrate for every engine model. Exposed separately so
// tests can migrate an in-memory database.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Calendar{},
		&model.ScheduleRule{},
		&model.TimeSlotConfiguration{},
		&model.DurationOption{},
		&model.BlockedPeriod{},
		&model.SlotLedger{},
		&model.Booking{},
		&model.BookingHistory{},
		&model.PushSubscription{},
	); err != nil {
		return fmt.Errorf("automigrate failed: %w", err)
	}
	return nil
}

// applyPostgresDDL adds constraints AutoMigrate cannot express: the partial
// unique index that makes idempotency-key replays lose the insert race
// instead of double-booking.
func applyPostgresDDL(db *gorm.DB) error {
	ddls := []string{
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_bookings_idempotency " +
			"ON bookings (calendar_id, idempotency_key) WHERE idempotency_key <> '';",
		"ALTER TABLE slot_ledgers ADD CONSTRAINT slot_ledgers_capacity_valid " +
			"CHECK (places_booked >= 0 AND places_booked <= places_available);",
	}

	for _, ddl := range ddls {
		if err := db.Exec(ddl).Error; err != nil {
			// The CHECK constraint already existing on restart is expected.
			log.Printf("DDL warning (query: %q): %v", ddl, err)
		}
	}
	return nil
}
