// cmd_debug_ocr reads one screenshot with tesseract and prints the raw text
// together with the fields and metrics parsed from it.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"

	"crucible/pkg/config"
	"crucible/pkg/fields"
	"crucible/pkg/imgload"
	"crucible/pkg/metrics"
	"crucible/pkg/ocr"
)

func main() {
	f := flag.String("file", "", "image file to OCR")
	textOnly := flag.Bool("text", false, "print only the recognised text")
	flag.Parse()
	if *f == "" {
		log.Fatalf("-file required")
	}
	_ = godotenv.Load()
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	data, err := os.ReadFile(*f)
	if err != nil {
		log.Fatalf("read: %v", err)
	}
	img, err := imgload.Decode(data)
	if err != nil {
		log.Fatalf("decode: %v", err)
	}
	engine, err := ocr.NewEngine(cfg.OCRLanguages...)
	if err != nil {
		log.Fatalf("ocr init: %v", err)
	}
	defer engine.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	start := time.Now()
	text, err := engine.Recognize(ctx, img)
	if err != nil {
		log.Fatalf("ocr error: %v", err)
	}
	if *textOnly {
		fmt.Println(text)
		return
	}
	fmt.Printf("--- text (%s, %d bytes) ---\n%s\n---\n", time.Since(start).Round(time.Millisecond), len(text), strings.TrimSpace(text))

	fl := fields.Extract(text, cfg.Defaults())
	m := metrics.Compute(fl.AttackPower, fl.DefensePower)
	fmt.Printf("season=%q stage=%q room=%d\n", fl.Season, fl.StageName, fl.RoomOrZero())
	fmt.Printf("attack=%s defense=%s vp=%s\n", humanize.Comma(fl.AttackPower), humanize.Comma(fl.DefensePower), humanize.Comma(fl.VictoryPoints))
	fmt.Printf("label=%s diff=%s pct=%s\n", m.Label, m.DifferentialText(), m.PercentageText())
}
