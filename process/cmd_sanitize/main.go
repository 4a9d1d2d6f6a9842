package main

import (
	"flag"
	"log"
	"os"

	"github.com/joho/godotenv"
	"gorm.io/gorm"

	"crucible/pkg/store"
	"crucible/process/sanitize"
)

func main() {
	var (
		dryRun = flag.Bool("dry-run", true, "Don't perform destructive actions; show what would be done")
		yes    = flag.Bool("yes", false, "Confirm destructive action (required to actually truncate)")
		reseed = flag.Bool("reseed", false, "After truncation, reseed roles and the admin user")
		tables = flag.String("tables", sanitize.DefaultTables, "Comma-separated list of tables to truncate")
	)
	flag.Parse()
	_ = godotenv.Load()

	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatal("DB_DSN must be set to run db_sanitize")
	}
	gdb, err := store.Open(dsn, &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	err = sanitize.Run(gdb, os.Stdout, sanitize.Options{
		Tables:        *tables,
		DryRun:        *dryRun,
		Yes:           *yes,
		Reseed:        *reseed,
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
		SQLite:        store.IsSQLite(dsn),
	})
	if err != nil {
		log.Fatal(err)
	}
}
