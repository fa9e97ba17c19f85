package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/chartmark/chartmark/core"
	"github.com/tidwall/buntdb"
)

const (
	// DefaultIndexName orders drawings by their last update timestamp
	DefaultIndexName = "update_index"

	keySeparator = ":"
)

// BuntStorage implements the core.DrawingStorage interface using BuntDB
type BuntStorage struct {
	db *buntdb.DB
}

// BuntConfig holds configuration options for BuntDB
type BuntConfig struct {
	// Additional indexes to create beyond the default update_index
	AdditionalIndexes map[string]string
	// SyncPolicy determines how often data is synchronized to disk
	SyncPolicy buntdb.SyncPolicy
}

// DefaultBuntConfig returns the default configuration for BuntDB
func DefaultBuntConfig() BuntConfig {
	return BuntConfig{
		AdditionalIndexes: make(map[string]string),
		SyncPolicy:        buntdb.EverySecond,
	}
}

// NewFromMemory creates an in-memory storage with default configuration
func NewFromMemory() (core.DrawingStorage, error) {
	return NewBuntStorage(":memory:", DefaultBuntConfig())
}

// NewFromFile creates a file-based storage with default configuration
func NewFromFile(file string) (core.DrawingStorage, error) {
	return NewBuntStorage(file, DefaultBuntConfig())
}

// NewBuntStorage creates a new BuntDB storage instance with the specified configuration
func NewBuntStorage(sourceFile string, config BuntConfig) (core.DrawingStorage, error) {
	db, err := buntdb.Open(sourceFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open buntdb: %w", err)
	}

	if err := db.SetConfig(buntdb.Config{
		SyncPolicy: config.SyncPolicy,
	}); err != nil {
		return nil, fmt.Errorf("failed to configure buntdb: %w", err)
	}

	// Default index for ordering by update timestamp
	if err := db.CreateIndex(DefaultIndexName, "*", buntdb.IndexJSON("updatedAt")); err != nil {
		return nil, fmt.Errorf("failed to create default index: %w", err)
	}

	for name, pattern := range config.AdditionalIndexes {
		if err := db.CreateIndex(name, "*", buntdb.IndexJSON(pattern)); err != nil {
			return nil, fmt.Errorf("failed to create index %s: %w", name, err)
		}
	}

	return &BuntStorage{db: db}, nil
}

// drawingKey builds the primary key for a drawing. Ids are uuids, so the
// separator cannot collide inside the id segment.
func drawingKey(symbol string, interval core.Interval, id string) string {
	return strings.Join([]string{symbol, string(interval), id}, keySeparator)
}

func scopePrefix(symbol string, interval core.Interval) string {
	return symbol + keySeparator + string(interval) + keySeparator
}

// SaveDrawing stores or replaces a drawing in the database
func (b *BuntStorage) SaveDrawing(_ context.Context, a *core.Annotation) error {
	// Use a context-aware version if BuntDB adds context support in future
	return b.db.Update(func(tx *buntdb.Tx) error {
		if a.ID == "" {
			return fmt.Errorf("drawing has no id")
		}

		content, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("failed to marshal drawing: %w", err)
		}

		key := drawingKey(a.Symbol, a.Interval, a.ID)
		if _, _, err := tx.Set(key, string(content), nil); err != nil {
			return fmt.Errorf("failed to store drawing: %w", err)
		}

		return nil
	})
}

// DeleteDrawing removes a drawing by id, searching across all scopes
func (b *BuntStorage) DeleteDrawing(_ context.Context, id string) error {
	found := false

	err := b.db.Update(func(tx *buntdb.Tx) error {
		var key string
		err := tx.Ascend("", func(k, _ string) bool {
			if strings.HasSuffix(k, keySeparator+id) {
				key = k
				return false
			}
			return true
		})
		if err != nil {
			return fmt.Errorf("failed to scan drawings: %w", err)
		}

		if key == "" {
			return nil
		}

		if _, err := tx.Delete(key); err != nil {
			return fmt.Errorf("failed to delete drawing: %w", err)
		}

		found = true
		return nil
	})
	if err != nil {
		return err
	}

	if !found {
		return core.ErrDrawingNotFound
	}
	return nil
}

// Drawings retrieves every drawing stored for a (symbol, interval) scope,
// ordered by update timestamp
func (b *BuntStorage) Drawings(_ context.Context, symbol string, interval core.Interval) ([]*core.Annotation, error) {
	drawings := make([]*core.Annotation, 0)
	prefix := scopePrefix(symbol, interval)

	err := b.db.View(func(tx *buntdb.Tx) error {
		err := tx.Ascend(DefaultIndexName, func(key, value string) bool {
			if !strings.HasPrefix(key, prefix) {
				return true
			}

			var a core.Annotation
			if err := json.Unmarshal([]byte(value), &a); err != nil {
				// Skip corrupt entries and keep iterating
				return true
			}

			drawings = append(drawings, &a)
			return true
		})
		if err != nil {
			return fmt.Errorf("failed to iterate over drawings: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query drawings: %w", err)
	}

	return drawings, nil
}

// DeleteAllDrawings removes every drawing in a (symbol, interval) scope and
// returns how many were deleted
func (b *BuntStorage) DeleteAllDrawings(_ context.Context, symbol string, interval core.Interval) (int, error) {
	prefix := scopePrefix(symbol, interval)
	deleted := 0

	err := b.db.Update(func(tx *buntdb.Tx) error {
		var keys []string
		err := tx.Ascend("", func(k, _ string) bool {
			if strings.HasPrefix(k, prefix) {
				keys = append(keys, k)
			}
			return true
		})
		if err != nil {
			return fmt.Errorf("failed to scan drawings: %w", err)
		}

		for _, k := range keys {
			if _, err := tx.Delete(k); err != nil {
				return fmt.Errorf("failed to delete drawing %s: %w", k, err)
			}
			deleted++
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	return deleted, nil
}

// Close closes the database connection
func (b *BuntStorage) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

// Legacy function aliases for backward compatibility

// FromMemory creates an in-memory storage (legacy function)
func FromMemory() (core.DrawingStorage, error) {
	return NewFromMemory()
}

// FromFile creates a file-based storage (legacy function)
func FromFile(file string) (core.DrawingStorage, error) {
	return NewFromFile(file)
}
