package database

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/noah-isme/gema-enrollment-api/internal/models"
)

// PostgresOptions tunes the connection pool and startup retries.
type PostgresOptions struct {
	MaxOpenConns    int
	ConnectAttempts int
	RetryDelay      time.Duration
}

// ConnectPostgres opens the enrollment database, retrying while the server
// comes up. Seat changes run in short transactions, so the pool stays small.
func ConnectPostgres(dsn string, opts PostgresOptions, logger zerolog.Logger) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn must not be empty")
	}
	if opts.ConnectAttempts <= 0 {
		opts.ConnectAttempts = 1
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 2 * time.Second
	}

	logger = logger.With().Str("component", "postgres").Logger()
	var lastErr error
	for attempt := 1; attempt <= opts.ConnectAttempts; attempt++ {
		db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Warn),
		})
		if err == nil {
			if err = configurePool(db, opts); err == nil {
				logger.Info().Int("attempt", attempt).Msg("connected")
				return db, nil
			}
		}
		lastErr = err
		logger.Warn().Err(err).Int("attempt", attempt).Int("max_attempts", opts.ConnectAttempts).Msg("postgres not ready")
		if attempt < opts.ConnectAttempts {
			time.Sleep(opts.RetryDelay)
		}
	}

	return nil, fmt.Errorf("failed to connect to postgres: %w", lastErr)
}

func configurePool(db *gorm.DB, opts PostgresOptions) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	if opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
		sqlDB.SetMaxIdleConns(opts.MaxOpenConns / 2)
	}
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx)
}

// Migrate creates or updates every enrollment table.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Student{},
		&models.Course{},
		&models.PrerequisiteTerm{},
		&models.CompletedCourse{},
		&models.Equivalency{},
		&models.Enrollment{},
		&models.WaitlistEntry{},
		&models.CourseOffering{},
		&models.CapacitySnapshot{},
		&models.Notification{},
		&models.ActivityLog{},
	); err != nil {
		return fmt.Errorf("migrate enrollment schema: %w", err)
	}
	return nil
}

// PingPostgres reports whether the pool can reach the server.
func PingPostgres(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
