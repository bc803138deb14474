package db

import (
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Path is the default location of the SQLite token store.
var Path = filepath.Join(os.Getenv("HOME"), ".gotok/tokens.db")

// OpenSQLite opens (creating if needed) the database at path, migrates the
// items table and returns a store over it.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if err := createDBDirectory(path); err != nil {
		return nil, err
	}

	gdb, err := openDatabase(path)
	if err != nil {
		return nil, err
	}

	if err := migrateTables(gdb); err != nil {
		_ = closeDatabase(gdb)
		return nil, err
	}

	// Configure the GORM logger
	configureLogger(gdb)

	log.Debug().Str("path", path).Msg("Database initialized successfully")
	return NewSQLiteStore(gdb), nil
}

// createDBDirectory creates the parent directory of path if it doesn't exist.
func createDBDirectory(path string) error {
	if path == ":memory:" {
		return nil
	}
	if _, err := os.Stat(filepath.Dir(path)); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			log.Error().Err(err).Msg("Failed to create database directory")
			return err
		}
	}
	return nil
}

func openDatabase(path string) (*gorm.DB, error) {
	gdb, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize database")
		return nil, err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	// SQLite allows one writer; a single connection avoids SQLITE_BUSY between goroutines.
	sqlDB.SetMaxOpenConns(1)
	return gdb, nil
}

func migrateTables(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(&Item{}); err != nil {
		log.Error().Err(err).Msg("Failed to auto-migrate database")
		return err
	}
	return nil
}

// configureLogger silences GORM unless zerolog logging is enabled (DEBUG_GOTOK).
func configureLogger(gdb *gorm.DB) {
	if zerolog.GlobalLevel() == zerolog.Disabled {
		gdb.Logger = gdb.Logger.LogMode(logger.Silent)
	} else {
		gdb.Logger = gdb.Logger.LogMode(logger.Info)
	}
}

func closeDatabase(gdb *gorm.DB) error {
	sqlDB, err := gdb.DB()
	if err != nil {
		log.Error().Err(err).Msg("Failed to get raw database connection")
		return err
	}
	return sqlDB.Close()
}
