// fingerprint_dump prints the fingerprint of an image and its distance to
// every configured portrait, nearest first. Useful when a portrait keeps
// missing the match threshold.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/joho/godotenv"

	"crucible/pkg/config"
	"crucible/pkg/fingerprint"
	"crucible/pkg/imgload"
	"crucible/pkg/portrait"
)

func main() {
	path := flag.String("path", "", "image path or URL (a cropped slot or a portrait)")
	top := flag.Int("top", 10, "number of nearest portraits to print")
	grid := flag.Bool("grid", false, "print the fingerprint grid")
	flag.Parse()
	if *path == "" {
		log.Fatal("--path is required")
	}
	_ = godotenv.Load()
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal(err)
	}
	ctx := context.Background()
	img, err := imgload.Open(ctx, *path)
	if err != nil {
		log.Fatal(err)
	}
	fp := fingerprint.Build(img, cfg.FingerprintSize)
	if *grid {
		side := fp.Side()
		for y := 0; y < side; y++ {
			row := make([]string, side)
			for x := 0; x < side; x++ {
				row[x] = fmt.Sprintf("%.2f", fp[y*side+x])
			}
			fmt.Println(strings.Join(row, " "))
		}
	}

	lib, err := portrait.LoadLibrary(ctx, cfg.References(), portrait.WithSize(cfg.FingerprintSize), portrait.WithWorkers(cfg.Workers))
	if err != nil {
		log.Fatal(err)
	}
	type hit struct {
		name string
		d    float64
	}
	hits := make([]hit, 0, lib.Len())
	for i := 0; i < lib.Len(); i++ {
		e := lib.Entry(i)
		hits = append(hits, hit{e.Name, fingerprint.Distance(fp, e.Fingerprint)})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].d < hits[j].d })
	for i, h := range hits {
		if i >= *top {
			break
		}
		mark := ""
		if h.d <= cfg.Threshold {
			mark = " *"
		}
		fmt.Printf("%-32s %.4f%s\n", h.name, h.d, mark)
	}
	m := portrait.NewMatcher(cfg.Threshold).Match(fp, lib)
	fmt.Printf("match=%q found=%v distance=%.4f threshold=%.2f\n", m.Name, m.Found, m.Distance, cfg.Threshold)
}
