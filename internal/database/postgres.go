package database

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Aidin1998/tradebook/pkg/metrics"
	"github.com/Aidin1998/tradebook/pkg/models"
)

// NewPostgresDB creates a new PostgreSQL database connection with pooling
func NewPostgresDB(dsn string, maxOpen, maxIdle, connMaxLife int) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:      logger.Default.LogMode(logger.Warn),
		PrepareStmt: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database connection: %w", err)
	}

	if maxOpen == 0 {
		maxOpen = 50
	}
	if maxIdle == 0 {
		maxIdle = 10
	}
	if connMaxLife == 0 {
		connMaxLife = 3600
	}

	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetConnMaxLifetime(time.Duration(connMaxLife) * time.Second)
	sqlDB.SetConnMaxIdleTime(15 * time.Minute)

	return db, nil
}

// SamplePoolStats copies the current connection pool counters into the
// exported gauges
func SamplePoolStats(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	stats := sqlDB.Stats()
	metrics.DBOpenConns.Set(float64(stats.OpenConnections))
	metrics.DBInUseConns.Set(float64(stats.InUse))
	return nil
}

// MonitorPool samples the pool gauges on the given interval until the
// context is cancelled
func MonitorPool(ctx context.Context, db *gorm.DB, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = SamplePoolStats(db)
		}
	}
}

// Migrate creates or updates the booking schema
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Book{},
		&models.Counterparty{},
		&models.User{},
		&models.Trade{},
		&models.TradeLeg{},
		&models.Cashflow{},
	)
}
