package db

import "time"

// Item is one row of the key-value table backing SQLiteStore.
type Item struct {
	Key       string `gorm:"primaryKey"`
	Value     string `gorm:"not null"`
	UpdatedAt time.Time
}
