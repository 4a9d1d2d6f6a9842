package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"crucible/models"
	"crucible/pkg/config"
	"crucible/pkg/imgload"
	"crucible/pkg/intake"
	"crucible/pkg/ocr"
	"crucible/pkg/pipeline"
	"crucible/pkg/portrait"
	"crucible/pkg/sheets"
	"crucible/pkg/store"
)

// Global DB handle for helper funcs
var db *gorm.DB

// global flags (parsed in main)
var (
	verbose bool
	dryRun  bool
	send    bool
)

// batch carries what every worker needs.
type batch struct {
	dir      string
	user     models.User
	analyzer *intake.Analyzer
	sheet    *sheets.Client
	seen     *seenSet
}

// Main: scans a directory of result screenshots, reads each one into a
// match record and stores it for the chosen user. Optional watch mode.
func main() {
	dirFlag := flag.String("dir", "public/screens", "directory to scan for screenshots")
	username := flag.String("user", "admin", "user the screenshots are stored for")
	watch := flag.Bool("watch", false, "Watch directory for new files")
	workers := flag.Int("workers", 0, "Worker pool size (default NumCPU)")
	inspect := flag.Bool("inspect", false, "Print per-season counts from Postgres and exit")
	flag.BoolVar(&dryRun, "dry-run", false, "Skip all DB queries and writes; print parsed records")
	flag.BoolVar(&send, "send", false, "Append each new record to the sheet webhook")
	flag.BoolVar(&verbose, "verbose", false, "Verbose per-file logging")
	flag.Parse()

	_ = godotenv.Load()
	if *inspect {
		if err := RunInspect(os.Getenv("DB_DSN")); err != nil {
			log.Fatalf("inspect: %v", err)
		}
		return
	}

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	b := &batch{dir: *dirFlag, seen: newSeenSet(10000)}
	b.analyzer = mustAnalyzer(ctx, cfg)
	if send {
		b.sheet = sheets.NewClient(cfg.SheetURL)
		if !b.sheet.Configured() {
			log.Fatalf("-send requires SHEET_URL or sheet_url in the config")
		}
	}

	if !dryRun {
		db, err = store.Open(os.Getenv("DB_DSN"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
		if err != nil {
			log.Fatalf("failed to connect to database: %v", err)
		}
		if err := db.Preload("Role").Where("username = ?", *username).First(&b.user).Error; err != nil {
			log.Fatalf("user %q not found: %v", *username, err)
		}
		n := b.seen.preload(db, b.user.ID)
		log.Printf("Preloaded %d screenshot hashes for user=%s", n, b.user.Username)
	}

	files := listImageFiles(*dirFlag)
	log.Printf("Scanning %d files (workers=%d dry-run=%v)", len(files), effectiveWorkers(*workers), dryRun)
	ch := make(chan string, len(files))
	for _, f := range files {
		ch <- f
	}
	if !*watch {
		close(ch)
		runWorkerPool(ctx, b, ch, effectiveWorkers(*workers))
		return
	}
	go func() {
		if err := watchDirectory(ctx, *dirFlag, ch); err != nil {
			log.Printf("watch failed: %v", err)
			stop()
		}
	}()
	runWorkerPool(ctx, b, ch, effectiveWorkers(*workers))
}

func mustAnalyzer(ctx context.Context, cfg config.Config) *intake.Analyzer {
	lctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	lib, err := portrait.LoadLibrary(lctx, cfg.References(), portrait.WithSize(cfg.FingerprintSize), portrait.WithWorkers(cfg.Workers))
	if err != nil {
		log.Printf("portrait library: %v", err)
	}
	a := &intake.Analyzer{Processor: pipeline.NewProcessor(cfg.Pipeline(), lib)}
	engine, err := ocr.NewEngine(cfg.OCRLanguages...)
	if err != nil {
		log.Printf("ocr disabled: %v", err)
		return a
	}
	a.Recognizer = engine
	return a
}

func effectiveWorkers(w int) int {
	if w <= 0 {
		return runtime.NumCPU()
	}
	return w
}

func logV(format string, args ...any) {
	if verbose {
		log.Printf(format, args...)
	}
}

func listImageFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !imgload.IsSupportedExt(e.Name()) {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out
}

// watchDirectory feeds newly created files into fileCh once they have been
// quiet for a short while, so half-written files are not read. fileCh is
// closed on every return.
func watchDirectory(ctx context.Context, dir string, fileCh chan<- string) error {
	defer close(fileCh)
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return err
	}
	log.Printf("Watching %s (debounced) ...", dir)

	pending := map[string]time.Time{}
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				name := filepath.Base(ev.Name)
				if imgload.IsSupportedExt(name) {
					pending[name] = time.Now()
				}
			}
		case <-ticker.C:
			now := time.Now()
			for name, t := range pending {
				if now.Sub(t) > 300*time.Millisecond { // stable
					fileCh <- name
					delete(pending, name)
				}
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Printf("watch error: %v", err)
		}
	}
}

// runWorkerPool processes names from fileCh until it is closed.
func runWorkerPool(ctx context.Context, b *batch, fileCh <-chan string, workers int) {
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for name := range fileCh {
				if ctx.Err() != nil {
					continue
				}
				if err := processSingleFile(ctx, b, name); err != nil {
					log.Printf("ERROR %s: %v", name, err)
				}
			}
		}()
	}
	wg.Wait()
}

// processSingleFile reads one screenshot and stores its record. Duplicates
// are moved aside without a new record.
func processSingleFile(ctx context.Context, b *batch, name string) error {
	full := filepath.Join(b.dir, name)
	data, err := os.ReadFile(full)
	if err != nil {
		return err
	}
	sum := intake.Hash(data)
	if !dryRun && b.seen.check(db, b.user.ID, sum) {
		logV("SKIP duplicate %s sha=%s", name, sum[:12])
		if err := moveToProcessed(full, name); err != nil {
			log.Printf("WARN failed to move duplicate %s: %v", name, err)
		}
		return nil
	}

	an, err := b.analyzer.Analyze(ctx, data)
	if err != nil {
		return err
	}
	rec := an.Record
	if dryRun {
		fmt.Printf("%s\tattack=%s\tdefense=%s\t%s\tstage=%q\t%s\t%s\t%s\tvp=%d\n",
			name, strings.Join(rec.Attack, ","), strings.Join(rec.Defense, ","),
			rec.Fields.Season, rec.Fields.StageName, rec.Metrics.Label,
			rec.Metrics.DifferentialText(), rec.Metrics.PercentageText(), rec.Fields.VictoryPoints)
		return nil
	}

	rel, err := storeCopy(full, name, b.user.ID)
	if err != nil {
		return fmt.Errorf("store copy: %w", err)
	}
	shot, err := intake.Save(db, intake.Upload{UserID: b.user.ID, FileName: name, StorePath: rel, ContentType: imgload.MimeFromExt(name)}, an)
	if err != nil {
		return err
	}
	b.seen.add(sum)
	log.Printf("RECORD id=%d file=%s matched=%d/%d label=%s failed=%v", shot.Record.ID, name, rec.Matched(), len(rec.Slots), rec.Metrics.Label, shot.Failed)

	if b.sheet != nil && !shot.Failed {
		if err := sendRecord(ctx, b.sheet, shot, data); err != nil {
			log.Printf("WARN send %s: %v", name, err)
		}
	}
	if err := moveToProcessed(full, name); err != nil {
		log.Printf("WARN failed to move processed file %s: %v", name, err)
	} else {
		logV("moved processed %s", name)
	}
	return nil
}

func sendRecord(ctx context.Context, c *sheets.Client, shot models.Screenshot, data []byte) error {
	rec := shot.Record
	link, err := c.Append(ctx, rec.Record().Row(), sheets.DataURL(shot.ContentType, data))
	if err != nil {
		return err
	}
	now := time.Now()
	rec.SheetURL = link
	rec.SentAt = &now
	return db.Save(rec).Error
}

// seenSet answers "was this content stored already" with a bloom filter in
// front of the database. A filter miss is authoritative; a hit is confirmed
// against the screenshots table.
type seenSet struct {
	mu     sync.Mutex
	filter *bloom.BloomFilter
}

func newSeenSet(expected uint) *seenSet {
	return &seenSet{filter: bloom.NewWithEstimates(expected, 0.001)}
}

func (s *seenSet) add(sum string) {
	s.mu.Lock()
	s.filter.AddString(sum)
	s.mu.Unlock()
}

func (s *seenSet) mayContain(sum string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter.TestString(sum)
}

func (s *seenSet) preload(gdb *gorm.DB, userID uint) int {
	var sums []string
	if err := gdb.Model(&models.Screenshot{}).Where("user_id = ?", userID).Pluck("sha256", &sums).Error; err != nil {
		log.Printf("WARN preload hashes: %v", err)
		return 0
	}
	for _, sum := range sums {
		s.add(sum)
	}
	return len(sums)
}

func (s *seenSet) check(gdb *gorm.DB, userID uint, sum string) bool {
	if !s.mayContain(sum) {
		return false
	}
	dup, err := intake.FindDuplicate(gdb, userID, sum)
	return err == nil && dup != nil
}
