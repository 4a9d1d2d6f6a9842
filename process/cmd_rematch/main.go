package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"crucible/models"
	"crucible/pkg/config"
	"crucible/pkg/pipeline"
	"crucible/pkg/portrait"
	"crucible/pkg/store"
	"crucible/process/rematch"
)

func main() {
	username := flag.String("username", "", "only screenshots of this user (default all)")
	force := flag.Bool("force", false, "replace names that are already filled in")
	apply := flag.Bool("apply", false, "write changes (default is a dry run)")
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	gdb, err := store.Open(os.Getenv("DB_DSN"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	opts := rematch.Options{Base: os.Getenv("UPLOAD_BASE"), Force: *force, Apply: *apply}
	if opts.Base == "" {
		opts.Base = "uploads"
	}
	if *username != "" {
		var user models.User
		if err := gdb.Where("username = ?", *username).First(&user).Error; err != nil {
			log.Fatalf("user %q not found: %v", *username, err)
		}
		opts.UserID = user.ID
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	lctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	lib, err := portrait.LoadLibrary(lctx, cfg.References(), portrait.WithSize(cfg.FingerprintSize), portrait.WithWorkers(cfg.Workers))
	cancel()
	if err != nil {
		log.Fatalf("portrait library: %v", err)
	}

	sum, err := rematch.Run(ctx, gdb, pipeline.NewProcessor(cfg.Pipeline(), lib), opts)
	if err != nil {
		log.Fatal(err)
	}
	for _, c := range sum.Changes {
		fmt.Printf("record=%d slot=%s %q -> %q\n", c.RecordID, c.Slot, c.From, c.To)
	}
	fmt.Printf("scanned=%d skipped=%d updated=%d applied=%v\n", sum.Scanned, sum.Skipped, sum.Updated, *apply)
	if !*apply && sum.Updated > 0 {
		fmt.Println("dry run; pass -apply to write these changes")
	}
}
