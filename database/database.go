package database

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"visamonk/gateway/models"
)

// Init opens the sqlite store, creating the parent directory if needed.
func Init(dbPath string) (*gorm.DB, error) {
	if dbPath == "" {
		dbPath = filepath.Join("data", "chatbot.db")
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", dir, err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", dbPath, err)
	}
	// Workers open the same file concurrently; WAL keeps readers unblocked.
	if err := db.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
		return nil, fmt.Errorf("enable WAL on %s: %w", dbPath, err)
	}
	return db, nil
}

// Migrate creates the tables shared with the worker scripts.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.University{},
		&models.ConversationRecord{},
		&models.ContactMessage{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
