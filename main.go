package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"crucible/pkg/config"
	"crucible/pkg/intake"
	"crucible/pkg/ocr"
	"crucible/pkg/pipeline"
	"crucible/pkg/portrait"
	"crucible/pkg/sheets"
)

var (
	jwtSecret []byte // loaded from env JWT_SECRET (fallback to dev default)
	cfg       config.Config
	analyzer  *intake.Analyzer
	sheet     *sheets.Client
)

func main() {
	// .env never overrides variables that are already set.
	_ = godotenv.Load()
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "dev-insecure-secret-change" // development fallback
	}
	jwtSecret = []byte(secret)

	// `crucible migrate` runs AutoMigrate and seeding then exits.
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		initDB()
		fmt.Println("migration and seeding completed")
		return
	}

	initDB()

	var err error
	cfg, err = config.FromEnv()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	warnings, err := cfg.Validate()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	for _, w := range warnings {
		log.Printf("config warning: %s", w)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	lib, err := portrait.LoadLibrary(ctx, cfg.References(), portrait.WithSize(cfg.FingerprintSize), portrait.WithWorkers(cfg.Workers))
	cancel()
	if err != nil {
		// Serve anyway: every slot comes back unnamed and can be edited.
		log.Printf("portrait library: %v", err)
	}

	analyzer = &intake.Analyzer{Processor: pipeline.NewProcessor(cfg.Pipeline(), lib)}
	if engine, err := ocr.NewEngine(cfg.OCRLanguages...); err != nil {
		log.Printf("ocr disabled: %v", err)
	} else {
		defer engine.Close()
		analyzer.Recognizer = engine
	}
	sheet = sheets.NewClient(cfg.SheetURL)

	r := gin.Default()
	setupRoutes(r)

	if err := r.Run(listenAddr()); err != nil {
		log.Fatal(err)
	}
}

func listenAddr() string {
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		return v
	}
	return ":8081"
}
