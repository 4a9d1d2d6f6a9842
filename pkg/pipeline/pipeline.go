// Package pipeline assembles a match record from a screenshot and its OCR
// text: every configured slot is cropped, fingerprinted and matched, and the
// text is parsed into fields and metrics.
package pipeline

import (
	"image"

	"github.com/disintegration/imaging"
	"golang.org/x/sync/errgroup"

	"crucible/pkg/fields"
	"crucible/pkg/fingerprint"
	"crucible/pkg/metrics"
	"crucible/pkg/portrait"
	"crucible/pkg/region"
)

// DefaultMaxWidth is the canvas width screenshots are reduced to before
// cropping; slot rectangles were tuned on that canvas.
const DefaultMaxWidth = 920

// SlotResult is the match for one slot.
type SlotResult struct {
	ID    string         `json:"id"`
	Side  region.Side    `json:"side"`
	Index int            `json:"index"`
	Match portrait.Match `json:"match"`
}

// Process runs the whole pipeline sequentially. It never fails: unmatched
// slots yield empty names and unparseable text yields default fields.
func Process(img image.Image, layout region.Layout, lib *portrait.Library, matcher portrait.Matcher, rawText string, defaults fields.Defaults) Record {
	slots := matchSlots(img, layout.Slots(), lib, matcher, 1)
	return assemble(layout, slots, fields.Extract(rawText, defaults))
}

// Config configures a Processor.
type Config struct {
	Layout   region.Layout
	Matcher  portrait.Matcher
	Defaults fields.Defaults
	// MaxWidth bounds the canvas width; 0 keeps the screenshot as is.
	MaxWidth int
	// Workers is the number of slots matched concurrently; <= 1 is sequential.
	Workers int
}

// Processor binds a configuration to an immutable portrait library. It is
// safe for concurrent use.
type Processor struct {
	cfg Config
	lib *portrait.Library
}

// NewProcessor returns a processor for lib.
func NewProcessor(cfg Config, lib *portrait.Library) *Processor {
	cfg.Matcher = portrait.NewMatcher(cfg.Matcher.Threshold)
	return &Processor{cfg: cfg, lib: lib}
}

// Library returns the portrait library the processor matches against.
func (p *Processor) Library() *portrait.Library { return p.lib }

// Config returns the processor configuration.
func (p *Processor) Config() Config { return p.cfg }

// Run normalises the screenshot onto the canvas and processes it.
func (p *Processor) Run(img image.Image, rawText string) Record {
	canvas := Normalize(img, p.cfg.MaxWidth)
	slots := matchSlots(canvas, p.cfg.Layout.Slots(), p.lib, p.cfg.Matcher, p.cfg.Workers)
	return assemble(p.cfg.Layout, slots, fields.Extract(rawText, p.cfg.Defaults))
}

// Match normalises the screenshot and matches every slot without reading
// any text.
func (p *Processor) Match(img image.Image) []SlotResult {
	return matchSlots(Normalize(img, p.cfg.MaxWidth), p.cfg.Layout.Slots(), p.lib, p.cfg.Matcher, p.cfg.Workers)
}

// Normalize scales img down so it is at most maxWidth wide, keeping the
// aspect ratio. Narrower images and maxWidth <= 0 return img unchanged.
func Normalize(img image.Image, maxWidth int) image.Image {
	if img == nil || maxWidth <= 0 || img.Bounds().Dx() <= maxWidth {
		return img
	}
	return imaging.Resize(img, maxWidth, 0, imaging.Linear)
}

// matchSlots crops, fingerprints and matches every slot. Results keep the
// order of slots regardless of how many workers run.
func matchSlots(img image.Image, slots []region.Slot, lib *portrait.Library, matcher portrait.Matcher, workers int) []SlotResult {
	out := make([]SlotResult, len(slots))
	size := lib.Size()
	one := func(i int) {
		s := slots[i]
		fp := fingerprint.Build(region.Extract(img, s.Rect), size)
		out[i] = SlotResult{ID: s.Rect.ID, Side: s.Side, Index: s.Index, Match: matcher.Match(fp, lib)}
	}
	if workers <= 1 || len(slots) < 2 {
		for i := range slots {
			one(i)
		}
		return out
	}
	var g errgroup.Group
	g.SetLimit(workers)
	for i := range slots {
		g.Go(func() error {
			one(i)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func assemble(layout region.Layout, slots []SlotResult, f fields.Fields) Record {
	attack, defense := Names(layout, slots)
	return Record{
		Attack:  attack,
		Defense: defense,
		Slots:   slots,
		Fields:  f,
		Metrics: metrics.Compute(f.AttackPower, f.DefensePower),
	}
}

// Names splits slot results into per-side name lists sized by layout.
// Unmatched slots are empty strings.
func Names(layout region.Layout, slots []SlotResult) (attack, defense []string) {
	attack = make([]string, len(layout.Attack))
	defense = make([]string, len(layout.Defense))
	for _, s := range slots {
		switch {
		case s.Side == region.Attack && s.Index < len(attack):
			attack[s.Index] = s.Match.Name
		case s.Side == region.Defense && s.Index < len(defense):
			defense[s.Index] = s.Match.Name
		}
	}
	return attack, defense
}
