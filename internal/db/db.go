package db

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"uptime-report-backend/config"
	"uptime-report-backend/internal/model"
)

// Models lists every table the service owns, in migration order.
var Models = []any{
	&model.Site{},
	&model.StatusSample{},
	&model.BusinessHours{},
	&model.Report{},
}

// Init initializes the database connection and runs migrations.
func Init(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	level := logger.Warn
	if cfg.LogSQL {
		level = logger.Info
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(level),
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

	if err := Migrate(db); err != nil {
		return nil, err
	}

	if cfg.EnableTimescale {
		if cfg.Driver != "postgres" {
			log.Printf("Warning: enable_timescale ignored for driver %q", cfg.Driver)
		} else {
			log.Println("TimescaleDB is enabled, applying TimescaleDB-specific DDL...")
			if err := applyTimescaleDDL(db); err != nil {
				log.Printf("Warning: failed to apply some TimescaleDB DDL: %v. Continuing without them.", err)
			}
		}
	}

	log.Println("Database initialization complete.")
	return db, nil
}

// Migrate creates or updates every table in Models.
func Migrate(db *gorm.DB) error {
	log.Println("Running database migrations...")
	if err := db.AutoMigrate(Models...); err != nil {
		return fmt.Errorf("automigrate failed: %w", err)
	}
	return nil
}

func dialectorFor(cfg *config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "postgres":
		return postgres.Open(cfg.DSN), nil
	case "sqlite", "":
		// A single writer avoids "database is locked" under concurrent jobs.
		cfg.MaxOpenConns = 1
		return sqlite.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func applyTimescaleDDL(db *gorm.DB) error {
	ddls := []string{
		"CREATE EXTENSION IF NOT EXISTS timescaledb;",

		// status_samples becomes a hypertable on observed_at. The surrogate id
		// must be part of every unique index, so the primary key is widened.
		"ALTER TABLE status_samples DROP CONSTRAINT IF EXISTS status_samples_pkey;",
		"ALTER TABLE status_samples ADD PRIMARY KEY (id, observed_at);",
		"SELECT create_hypertable('status_samples', 'observed_at', if_not_exists => TRUE, migrate_data => TRUE);",

		// Per-site scans walk samples newest first.
		"CREATE INDEX IF NOT EXISTS idx_status_samples_site_observed ON status_samples (site_id, observed_at DESC);",
	}

	for _, ddl := range ddls {
		if err := db.Exec(ddl).Error; err != nil {
			return fmt.Errorf("DDL failed on %q: %w", ddl, err)
		}
	}
	return nil
}
