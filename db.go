package main

import (
	"log"
	"os"

	"gorm.io/gorm"

	"crucible/pkg/store"
)

var db *gorm.DB

func initDB() {
	var err error
	db, err = store.Open(os.Getenv("DB_DSN"), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to open database: ", err)
	}
	// Migration failures are logged and ignored so a read-only role can still serve.
	if store.AutoMigrateEnabled() {
		if err := store.Migrate(db); err != nil {
			log.Printf("migration finished with warnings: %v", err)
		}
	}
	seedDB()
}

func seedDB() {
	if err := store.Seed(db, os.Getenv("ADMIN_PASSWORD")); err != nil {
		log.Printf("seed failed: %v", err)
	}
	ensureUploadBase()
}

// ensureUploadBase creates the base uploads directory.
func ensureUploadBase() {
	base := uploadBaseDir()
	if err := os.MkdirAll(base, 0755); err != nil {
		log.Printf("failed to create upload base dir %s: %v", base, err)
	}
}

// uploadBaseDir returns the base directory for stored screenshots (configurable via UPLOAD_BASE env)
func uploadBaseDir() string {
	if v := os.Getenv("UPLOAD_BASE"); v != "" {
		return v
	}
	return "uploads"
}
