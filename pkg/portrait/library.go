// Package portrait holds the reference portrait library and the nearest
// neighbour matcher used to name the characters on a result screen.
package portrait

import (
	"context"
	"errors"
	"image"
	"log"
	"runtime"

	"golang.org/x/sync/errgroup"

	"crucible/pkg/fingerprint"
	"crucible/pkg/imgload"
)

// ErrEmptyLibrary is returned by LoadLibrary when references were configured
// but none of them could be loaded.
var ErrEmptyLibrary = errors.New("no reference portraits could be loaded")

// Reference is one configured portrait: the name written to the result row
// and the path or URL of its image.
type Reference struct {
	Name string `yaml:"name" json:"name"`
	URL  string `yaml:"url" json:"url"`
}

// Entry is a fingerprinted reference portrait.
type Entry struct {
	Name        string
	Source      string
	Fingerprint fingerprint.Fingerprint
}

// Library is an immutable, ordered set of entries. Order matters: the matcher
// breaks distance ties in favour of the earlier entry.
type Library struct {
	entries []Entry
	size    int
}

// NewLibrary builds a library from already fingerprinted entries. Entries
// whose fingerprint does not have size*size values are dropped.
func NewLibrary(entries []Entry, size int) *Library {
	if size <= 0 {
		size = fingerprint.DefaultSize
	}
	kept := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if len(e.Fingerprint) != size*size {
			log.Printf("portrait: dropping %q fingerprint len=%d want=%d", e.Name, len(e.Fingerprint), size*size)
			continue
		}
		fp := make(fingerprint.Fingerprint, len(e.Fingerprint))
		copy(fp, e.Fingerprint)
		kept = append(kept, Entry{Name: e.Name, Source: e.Source, Fingerprint: fp})
	}
	return &Library{entries: kept, size: size}
}

// Len returns the number of entries.
func (l *Library) Len() int {
	if l == nil {
		return 0
	}
	return len(l.entries)
}

// Size is the fingerprint grid side used by every entry.
func (l *Library) Size() int {
	if l == nil || l.size <= 0 {
		return fingerprint.DefaultSize
	}
	return l.size
}

// Entry returns the i-th entry.
func (l *Library) Entry(i int) Entry {
	return l.entries[i]
}

// Names lists entry names in library order.
func (l *Library) Names() []string {
	out := make([]string, 0, l.Len())
	for i := 0; i < l.Len(); i++ {
		out = append(out, l.entries[i].Name)
	}
	return out
}

// LoadOption customises LoadLibrary.
type LoadOption func(*loadConfig)

type loadConfig struct {
	size    int
	workers int
	open    func(ctx context.Context, src string) (image.Image, error)
}

// WithSize sets the fingerprint grid side.
func WithSize(size int) LoadOption {
	return func(c *loadConfig) { c.size = size }
}

// WithWorkers bounds how many references are decoded at once.
func WithWorkers(n int) LoadOption {
	return func(c *loadConfig) { c.workers = n }
}

// WithOpener replaces the image loader (tests, embedded assets).
func WithOpener(open func(ctx context.Context, src string) (image.Image, error)) LoadOption {
	return func(c *loadConfig) { c.open = open }
}

// LoadLibrary decodes and fingerprints every reference in parallel and
// assembles the library in configuration order. A reference that fails to
// load is logged and skipped. ErrEmptyLibrary is returned only when refs is
// non-empty and nothing loaded; the (empty) library is still usable.
func LoadLibrary(ctx context.Context, refs []Reference, opts ...LoadOption) (*Library, error) {
	cfg := &loadConfig{
		size:    fingerprint.DefaultSize,
		workers: runtime.NumCPU(),
		open:    imgload.Open,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.workers <= 0 {
		cfg.workers = 1
	}

	slots := make([]*Entry, len(refs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.workers)
	for i, ref := range refs {
		g.Go(func() error {
			img, err := cfg.open(gctx, ref.URL)
			if err != nil {
				log.Printf("portrait: failed to load %q from %s: %v", ref.Name, ref.URL, err)
				return nil
			}
			slots[i] = &Entry{Name: ref.Name, Source: ref.URL, Fingerprint: fingerprint.Build(img, cfg.size)}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(refs))
	for _, e := range slots {
		if e != nil {
			entries = append(entries, *e)
		}
	}
	lib := NewLibrary(entries, cfg.size)
	log.Printf("portrait: library ready entries=%d configured=%d size=%d", lib.Len(), len(refs), lib.Size())
	if len(refs) > 0 && lib.Len() == 0 {
		return lib, ErrEmptyLibrary
	}
	return lib, nil
}
