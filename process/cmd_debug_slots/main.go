// cmd_debug_slots crops every configured slot out of a screenshot, writes
// the crops as PNGs and prints the nearest portrait for each. Used when
// tuning the layout for a new screen resolution.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
	"github.com/joho/godotenv"

	"crucible/pkg/config"
	"crucible/pkg/fingerprint"
	"crucible/pkg/imgload"
	"crucible/pkg/pipeline"
	"crucible/pkg/portrait"
	"crucible/pkg/region"
)

func main() {
	f := flag.String("file", "", "screenshot to slice")
	out := flag.String("out", "tmp/slots", "directory for the cropped slots")
	noLib := flag.Bool("no-library", false, "only write crops; skip portrait matching")
	flag.Parse()
	if *f == "" {
		log.Fatalf("-file required")
	}
	_ = godotenv.Load()
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if warnings, err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	} else {
		for _, w := range warnings {
			log.Printf("config warning: %s", w)
		}
	}

	data, err := os.ReadFile(*f)
	if err != nil {
		log.Fatalf("read: %v", err)
	}
	img, err := imgload.Decode(data)
	if err != nil {
		log.Fatalf("decode: %v", err)
	}
	canvas := pipeline.Normalize(img, cfg.MaxWidth)
	if err := os.MkdirAll(*out, 0o755); err != nil {
		log.Fatalf("mkdir: %v", err)
	}
	b := canvas.Bounds()
	fmt.Printf("source=%dx%d canvas=%dx%d\n", img.Bounds().Dx(), img.Bounds().Dy(), b.Dx(), b.Dy())

	lib := portrait.NewLibrary(nil, cfg.FingerprintSize)
	if !*noLib {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		lib, err = portrait.LoadLibrary(ctx, cfg.References(), portrait.WithSize(cfg.FingerprintSize), portrait.WithWorkers(cfg.Workers))
		cancel()
		if err != nil {
			log.Printf("portrait library: %v", err)
		}
	}
	matcher := portrait.NewMatcher(cfg.Threshold)

	for _, s := range cfg.Layout.Slots() {
		crop := region.Extract(canvas, s.Rect)
		px := region.PixelBounds(b.Dx(), b.Dy(), s.Rect)
		name := filepath.Join(*out, s.Rect.ID+".png")
		if err := imaging.Save(crop, name); err != nil {
			log.Printf("save %s: %v", name, err)
		}
		m := matcher.Match(fingerprint.Build(crop, lib.Size()), lib)
		clamped := ""
		if !s.Rect.InUnitSquare() {
			clamped = " (clamped)"
		}
		fmt.Printf("%-3s %-7s px=%v%s nearest=%q distance=%.4f found=%v -> %s\n",
			s.Rect.ID, s.Side, px, clamped, m.Name, m.Distance, m.Found, name)
	}
}
