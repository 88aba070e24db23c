package db

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Connect opens the shared Postgres handle used by every module.
func Connect(dsn string) error {
	if dsn == "" {
		return fmt.Errorf("database url is empty")
	}

	// Surface slow queries without echoing every statement.
	lg := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: lg,
	})
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return fmt.Errorf("getting sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	DB = conn
	slog.Info("connected to database", "component", "db")
	return nil
}

// MustInit runs a module's schema setup and aborts the process on failure.
func MustInit(schema string, models ...interface{}) {
	if err := EnsureSchema(DB, schema); err != nil {
		log.Fatalf("Failed to ensure schema %s: %v", schema, err)
	}
	if err := DB.AutoMigrate(models...); err != nil {
		log.Fatalf("Failed to auto-migrate %s tables: %v", schema, err)
	}
	slog.Info("schema ready", "component", "db", "schema", schema)
}
