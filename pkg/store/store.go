// Package store opens the database and keeps its schema current. Postgres is
// the production backend; a "sqlite:" DSN selects an embedded SQLite file.
package store

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/glebarez/sqlite"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"crucible/models"
)

const sqlitePrefix = "sqlite:"

// ErrNoDSN is returned when no database is configured.
var ErrNoDSN = errors.New("DB_DSN is not set")

// IsSQLite reports whether dsn selects the embedded backend.
func IsSQLite(dsn string) bool {
	return strings.HasPrefix(dsn, sqlitePrefix)
}

// Open connects to dsn.
func Open(dsn string, cfg *gorm.Config) (*gorm.DB, error) {
	if dsn == "" {
		return nil, ErrNoDSN
	}
	if cfg == nil {
		cfg = &gorm.Config{}
	}
	if IsSQLite(dsn) {
		path := strings.TrimPrefix(dsn, sqlitePrefix)
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating db dir: %w", err)
			}
		}
		db, err := gorm.Open(sqlite.Open(path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"), cfg)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite db: %w", err)
		}
		return db, nil
	}
	db, err := gorm.Open(postgres.Open(dsn), cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting postgres: %w", err)
	}
	return db, nil
}

// AutoMigrateEnabled reads DB_AUTO_MIGRATE; anything but false/0/no enables it.
func AutoMigrateEnabled() bool {
	switch strings.ToLower(os.Getenv("DB_AUTO_MIGRATE")) {
	case "false", "0", "no":
		return false
	}
	return true
}

// Migrate creates or updates every table. Roles go first so the users
// foreign key can be applied. Each model is migrated on its own so one
// failure does not block the rest; failures are logged and joined.
func Migrate(db *gorm.DB) error {
	var errs []error
	for _, m := range []struct {
		table string
		model any
	}{
		{"roles", &models.Role{}},
		{"users", &models.User{}},
		{"refresh_tokens", &models.RefreshToken{}},
		{"screenshots", &models.Screenshot{}},
		{"match_records", &models.MatchRecord{}},
	} {
		if err := db.AutoMigrate(m.model); err != nil {
			log.Printf("migration warning (%s): %v", m.table, err)
			errs = append(errs, fmt.Errorf("%s: %w", m.table, err))
		}
	}
	return errors.Join(errs...)
}

// Seed ensures the master roles exist and creates the admin account on an
// empty database.
func Seed(db *gorm.DB, adminPassword string) error {
	for _, r := range models.SeedRoles() {
		if err := db.Where(models.Role{Name: r.Name}).Attrs(r).FirstOrCreate(&r).Error; err != nil {
			return fmt.Errorf("seed role %s: %w", r.Name, err)
		}
	}
	var count int64
	db.Model(&models.User{}).Where("username = ?", "admin").Count(&count)
	if count > 0 {
		return nil
	}
	var role models.Role
	if err := db.Where("name = ?", models.RoleAdministrator).First(&role).Error; err != nil {
		return fmt.Errorf("find administrator role: %w", err)
	}
	if adminPassword == "" {
		adminPassword = "admin123"
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	rid := role.ID
	admin := models.User{Username: "admin", HashedPassword: hashed, RoleID: &rid}
	if err := db.Create(&admin).Error; err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	log.Println("Seeded admin user: username=admin")
	return nil
}

// RoleID returns the id of the named role.
func RoleID(db *gorm.DB, name string) (uint, error) {
	var role models.Role
	if err := db.Where("name = ?", name).First(&role).Error; err != nil {
		return 0, fmt.Errorf("find role %s: %w", name, err)
	}
	return role.ID, nil
}
