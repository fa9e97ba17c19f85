package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chartmark/chartmark/core"
	"github.com/samber/lo"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// SQLStorage implements the core.DrawingStorage interface using a SQL
// database via GORM
type SQLStorage struct {
	db *gorm.DB
}

// Config holds the configuration for SQL database connections
type Config struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// DefaultConfig returns a default configuration for SQL connections
func DefaultConfig() Config {
	return Config{
		MaxIdleConns:    5,
		MaxOpenConns:    10,
		ConnMaxLifetime: time.Hour,
	}
}

// NewFromSQLite creates a new SQLite storage instance
func NewFromSQLite(dbPath string, config Config, opts ...gorm.Option) (core.DrawingStorage, error) {
	dialect := sqlite.Open(dbPath)
	return newFromSQL(dialect, config, opts...)
}

// newFromSQL creates a new SQL storage instance with the specified configuration
func newFromSQL(dialect gorm.Dialector, config Config, opts ...gorm.Option) (core.DrawingStorage, error) {
	db, err := gorm.Open(dialect, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)

	// Auto migrate the drawing model
	if err = db.AutoMigrate(&core.Annotation{}); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLStorage{db: db}, nil
}

// SaveDrawing creates or replaces a drawing in the SQL database
func (s *SQLStorage) SaveDrawing(ctx context.Context, a *core.Annotation) error {
	tx := s.db.WithContext(ctx)
	if result := tx.Save(a); result.Error != nil {
		return fmt.Errorf("failed to save drawing: %w", result.Error)
	}
	return nil
}

// DeleteDrawing removes a drawing by id
func (s *SQLStorage) DeleteDrawing(ctx context.Context, id string) error {
	tx := s.db.WithContext(ctx)

	result := tx.Delete(&core.Annotation{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete drawing: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return core.ErrDrawingNotFound
	}

	return nil
}

// Drawings retrieves every drawing stored for a (symbol, interval) scope,
// ordered by update timestamp
func (s *SQLStorage) Drawings(ctx context.Context, symbol string, interval core.Interval) ([]*core.Annotation, error) {
	tx := s.db.WithContext(ctx)

	var drawings []*core.Annotation
	result := tx.
		Where("symbol = ? AND interval = ?", symbol, interval).
		Order("updated_at asc").
		Find(&drawings)
	if result.Error != nil && !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to fetch drawings: %w", result.Error)
	}

	// The column filter is authoritative; the in-memory pass only drops rows
	// whose payload no longer round-trips to a drawable shape
	drawings = lo.Filter(drawings, func(a *core.Annotation, _ int) bool {
		return a.ID != "" && a.Kind != ""
	})

	return drawings, nil
}

// DeleteAllDrawings removes every drawing in a (symbol, interval) scope and
// returns how many were deleted
func (s *SQLStorage) DeleteAllDrawings(ctx context.Context, symbol string, interval core.Interval) (int, error) {
	tx := s.db.WithContext(ctx)

	result := tx.Where("symbol = ? AND interval = ?", symbol, interval).Delete(&core.Annotation{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete drawings: %w", result.Error)
	}

	return int(result.RowsAffected), nil
}

// DrawingsWithQuery allows for more customized querying using GORM's query builder
func (s *SQLStorage) DrawingsWithQuery(ctx context.Context, queryFn func(*gorm.DB) *gorm.DB) ([]*core.Annotation, error) {
	tx := s.db.WithContext(ctx)

	var drawings []*core.Annotation
	result := queryFn(tx).Find(&drawings)
	if result.Error != nil && !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to execute query: %w", result.Error)
	}

	return drawings, nil
}

// WithTransaction executes the given function within a database transaction
func (s *SQLStorage) WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return s.db.WithContext(ctx).Transaction(fn)
}

// Close closes the database connection
func (s *SQLStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.Close()
}

// FromSQLite creates a new SQLite storage instance with default pooling
func FromSQLite(dbPath string, opts ...gorm.Option) (core.DrawingStorage, error) {
	return NewFromSQLite(dbPath, DefaultConfig(), opts...)
}
