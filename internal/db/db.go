package db

import (
	"log"
	"time"

	"github.com/CijeTheCreator/consultify-assemblyai/internal/consultation"
	"github.com/CijeTheCreator/consultify-assemblyai/internal/translation"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// Connect opens the MySQL connection and configures the pool.
// Fatal on failure: neither the server nor the worker can run without it.
func Connect(dsn string) *gorm.DB {
	gdb, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		log.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return gdb
}

// Migrate creates/updates the schema for every persisted model.
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&consultation.Consultation{},
		&consultation.Message{},
		&consultation.MessageRead{},
		&consultation.Prescription{},
		&consultation.EmailJob{},
		&translation.CacheEntry{},
		&translation.MessageTranslation{},
	)
}
