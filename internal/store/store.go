// Package store owns database access: driver selection, migration, and the
// generic record repository the engine reads and writes through.
package store

import (
	"context"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Dmccarty30/Journeyman-Jobs-sub014/internal/models"
)

// Open selects the gorm driver by name. An empty DSN on the sqlite default
// gives an in-memory database, which the tests rely on.
func Open(driver, dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)}
	switch driver {
	case "mysql":
		return gorm.Open(mysql.Open(dsn), cfg)
	case "pg":
		return gorm.Open(postgres.Open(dsn), cfg)
	}
	if dsn == "" {
		dsn = "file::memory:"
	}
	return gorm.Open(sqlite.Open(dsn), cfg)
}

// AutoMigrate creates the engine's tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Crew{},
		&models.CrewMembership{},
		&models.MemberLocation{},
		&models.SafetyAlert{},
		&models.AlertTarget{},
		&models.Acknowledgment{},
		&models.AlertAcknowledger{},
		&models.SystemChannel{},
	)
}

// Records is the generic repository contract: get, put, find-by-predicate.
// Write paths needing conflict clauses or conditional updates go through
// gorm directly, below this contract.
type Records[T any] struct {
	db *gorm.DB
}

func NewRecords[T any](db *gorm.DB) *Records[T] { return &Records[T]{db: db} }

// Get returns the first record matching the predicate, or
// gorm.ErrRecordNotFound.
func (r *Records[T]) Get(ctx context.Context, query any, args ...any) (*T, error) {
	var v T
	if err := r.db.WithContext(ctx).Where(query, args...).First(&v).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

// Put inserts or updates the record by primary key.
func (r *Records[T]) Put(ctx context.Context, v *T) error {
	return r.db.WithContext(ctx).Save(v).Error
}

// Find returns all records matching the predicate.
func (r *Records[T]) Find(ctx context.Context, query any, args ...any) ([]T, error) {
	var vs []T
	if err := r.db.WithContext(ctx).Where(query, args...).Find(&vs).Error; err != nil {
		return nil, err
	}
	return vs, nil
}

// Delete removes all records matching the predicate.
func (r *Records[T]) Delete(ctx context.Context, query any, args ...any) error {
	var v T
	return r.db.WithContext(ctx).Where(query, args...).Delete(&v).Error
}
