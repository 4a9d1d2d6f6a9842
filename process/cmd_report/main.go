package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"crucible/pkg/store"
	"crucible/process/report"
)

func main() {
	username := flag.String("username", "", "only records of this user (default all)")
	season := flag.String("season", "", "only this season, e.g. \"Season 18\"")
	list := flag.Bool("list", false, "list matching rows")
	flag.Parse()

	_ = godotenv.Load()
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		fmt.Fprintln(os.Stderr, "DB_DSN not set; export DB_DSN and retry")
		os.Exit(2)
	}
	gdb, err := store.Open(dsn, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	if err := report.Run(gdb, os.Stdout, report.Options{Username: *username, Season: *season, List: *list}); err != nil {
		log.Fatal(err)
	}
}
