// Package database archives accepted flow events to PostgreSQL through GORM.
//
// The archive is write-only from the point of view of the tracker: the live feed is served
// from memory, and the flow_events table exists for later analysis.
package database

import (
	"context"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Database holds the GORM database connection
type Database struct {
	db *gorm.DB
}

// DB returns the underlying GORM database instance for direct access when needed.
func (d *Database) DB() *gorm.DB {
	return d.db
}

// Connect establishes database connection using GORM
func Connect(host string, port int, dbname, user, password string) (*Database, error) {
	dsn := fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=disable",
		host, port, dbname, user, password)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent), // Silent logging for production
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &Database{db: db}, nil
}

// AutoMigrate creates or updates the archive tables
func (d *Database) AutoMigrate() error {
	if err := d.db.AutoMigrate(&FlowEventRecord{}); err != nil {
		return &DBError{Operation: "migrate", Table: FlowEventRecord{}.TableName(), Err: err}
	}
	return nil
}

// WriteFlows inserts a batch of flow records
func (d *Database) WriteFlows(ctx context.Context, records []FlowEventRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := d.db.WithContext(ctx).CreateInBatches(records, 100).Error; err != nil {
		return &DBError{Operation: "insert", Table: FlowEventRecord{}.TableName(), Err: err}
	}
	return nil
}

// Close closes the database connection
func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
