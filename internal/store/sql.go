package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// entryRow is the gorm model behind SQLStore.
type entryRow struct {
	Key      string    `gorm:"column:cache_key;primaryKey;size:512"`
	Value    []byte    `gorm:"column:value;not null"`
	StoredAt time.Time `gorm:"column:stored_at;not null;index"`
}

// TableName implements gorm's tabler interface.
func (entryRow) TableName() string {
	return "cache_entries"
}

// SQLStore keeps entries in a cache_entries table. Values are stored as JSON.
type SQLStore struct {
	db     *gorm.DB
	opts   options
	ownsDB bool
}

// NewSQLStore wraps an existing gorm connection and migrates the table.
// The caller keeps ownership of db.
func NewSQLStore(db *gorm.DB, opts ...Option) (*SQLStore, error) {
	if db == nil {
		return nil, errors.New("gorm database cannot be nil")
	}
	if err := db.AutoMigrate(&entryRow{}); err != nil {
		return nil, fmt.Errorf("migrating cache table: %w", err)
	}
	return &SQLStore{db: db, opts: newOptions(opts)}, nil
}

// OpenSQLite opens (or creates) a SQLite database at path using the pure Go
// driver and returns a store that owns the connection. ":memory:" is allowed.
func OpenSQLite(path string, opts ...Option) (*SQLStore, error) {
	if path == "" {
		return nil, errors.New("sqlite path cannot be empty")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database %s: %w", path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("accessing sqlite connection pool: %w", err)
	}
	// One connection serializes writers and keeps ":memory:" a single database.
	sqlDB.SetMaxOpenConns(1)

	s, err := NewSQLStore(db, opts...)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	s.ownsDB = true
	return s, nil
}

// Get implements Store.
func (s *SQLStore) Get(ctx context.Context, key string) (*Entry, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}

	var row entryRow
	err := s.db.WithContext(ctx).Where("cache_key = ?", key).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading cache entry: %w", err)
	}

	value, err := decodeGeneric(row.Value)
	if err != nil {
		return nil, err
	}
	return &Entry{Key: row.Key, Value: value, StoredAt: row.StoredAt.UTC()}, nil
}

// Put implements Store as a single upsert.
func (s *SQLStore) Put(ctx context.Context, key string, value any) error {
	if key == "" {
		return ErrInvalidKey
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding cache value: %w", err)
	}

	row := entryRow{Key: key, Value: data, StoredAt: s.opts.now()}
	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "cache_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "stored_at"}),
		}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	return nil
}

// Remove implements Store.
func (s *SQLStore) Remove(ctx context.Context, key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if err := s.db.WithContext(ctx).Where("cache_key = ?", key).Delete(&entryRow{}).Error; err != nil {
		return fmt.Errorf("deleting cache entry: %w", err)
	}
	return nil
}

// Keys implements Store.
func (s *SQLStore) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	err := s.db.WithContext(ctx).Model(&entryRow{}).Order("cache_key").Pluck("cache_key", &keys).Error
	if err != nil {
		return nil, fmt.Errorf("listing cache keys: %w", err)
	}
	return keys, nil
}

// NormalizesValues implements ValueNormalizer.
func (s *SQLStore) NormalizesValues() bool {
	return true
}

// Close implements Store. The connection is closed only when the store
// opened it.
func (s *SQLStore) Close() error {
	if !s.ownsDB {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
