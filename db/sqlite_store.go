package db

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SQLiteStore is a GORM-backed key-value store. Use OpenSQLite, or
// NewSQLiteStore with an already migrated *gorm.DB.
type SQLiteStore struct{ db *gorm.DB }

// NewSQLiteStore wraps gdb. Accepts *gorm.DB to avoid global access.
func NewSQLiteStore(gdb *gorm.DB) *SQLiteStore { return &SQLiteStore{db: gdb} }

func (s *SQLiteStore) GetItem(key string) (string, bool, error) {
	if s.db == nil {
		return "", false, fmt.Errorf("store not initialized")
	}
	var item Item
	err := s.db.First(&item, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return item.Value, true, nil
}

func (s *SQLiteStore) SetItem(key, value string) error {
	if s.db == nil {
		return fmt.Errorf("store not initialized")
	}
	item := Item{Key: key, Value: value, UpdatedAt: time.Now()}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&item).Error
}

func (s *SQLiteStore) RemoveItem(key string) error {
	if s.db == nil {
		return fmt.Errorf("store not initialized")
	}
	return s.db.Where("key = ?", key).Delete(&Item{}).Error
}

// Keys returns all stored keys in ascending order.
func (s *SQLiteStore) Keys() ([]string, error) {
	if s.db == nil {
		return nil, fmt.Errorf("store not initialized")
	}
	var keys []string
	if err := s.db.Model(&Item{}).Order("key").Pluck("key", &keys).Error; err != nil {
		return nil, err
	}
	return keys, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return closeDatabase(s.db)
}
