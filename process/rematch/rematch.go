// Package rematch re-runs portrait matching over stored screenshots, for
// when the portrait library or the slot layout changed after upload.
package rematch

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"gorm.io/gorm"

	"crucible/models"
	"crucible/pkg/imgload"
	"crucible/pkg/intake"
	"crucible/pkg/pipeline"
	"crucible/pkg/portrait"
	"crucible/pkg/region"
)

// Options control a rematch run.
type Options struct {
	// Base is the directory stored paths are relative to (UPLOAD_BASE).
	Base string
	// UserID limits the run to one user; 0 means everyone.
	UserID uint
	// Force replaces every name, including ones already filled in.
	Force bool
	// Apply writes changes; otherwise the run only reports them.
	Apply bool
}

// Change is one slot whose name would change.
type Change struct {
	RecordID uint
	Slot     string
	From     string
	To       string
}

// Summary reports what a run looked at and changed.
type Summary struct {
	Scanned int
	Skipped int
	Updated int
	Changes []Change
}

// Run rematches every screenshot that has a record.
func Run(ctx context.Context, db *gorm.DB, proc *pipeline.Processor, opts Options) (Summary, error) {
	var sum Summary
	q := db.Preload("Record").Where("store_path <> ''")
	if opts.UserID != 0 {
		q = q.Where("user_id = ?", opts.UserID)
	}
	var shots []models.Screenshot
	if err := q.Order("id").Find(&shots).Error; err != nil {
		return sum, fmt.Errorf("query screenshots: %w", err)
	}

	for _, shot := range shots {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if shot.Record == nil {
			continue
		}
		sum.Scanned++
		data, err := os.ReadFile(filepath.Join(opts.Base, filepath.FromSlash(shot.StorePath)))
		if err != nil {
			log.Printf("rematch: screenshot %d: %v", shot.ID, err)
			sum.Skipped++
			continue
		}
		img, err := imgload.Decode(data)
		if err != nil {
			log.Printf("rematch: screenshot %d: %v", shot.ID, err)
			sum.Skipped++
			continue
		}

		current := shot.Record.Record()
		next, changes := Merge(proc.Config().Layout, current, proc.Match(img), opts.Force)
		if len(changes) == 0 {
			continue
		}
		for i := range changes {
			changes[i].RecordID = shot.Record.ID
		}
		sum.Changes = append(sum.Changes, changes...)
		sum.Updated++
		if opts.Apply {
			if err := intake.UpdateRecord(db, shot.Record, next); err != nil {
				return sum, fmt.Errorf("update record %d: %w", shot.Record.ID, err)
			}
		}
	}
	return sum, nil
}

// Merge folds fresh slot results into rec. Without force only empty names
// are filled, and only by confident matches. With force every slot takes
// the fresh result.
func Merge(layout region.Layout, rec pipeline.Record, fresh []pipeline.SlotResult, force bool) (pipeline.Record, []Change) {
	attack := padTo(rec.Attack, len(layout.Attack))
	defense := padTo(rec.Defense, len(layout.Defense))
	old := make(map[string]pipeline.SlotResult, len(rec.Slots))
	for _, s := range rec.Slots {
		old[s.ID] = s
	}

	var changes []Change
	slots := make([]pipeline.SlotResult, 0, len(fresh))
	for _, s := range fresh {
		names := attack
		if s.Side == region.Defense {
			names = defense
		}
		if s.Index >= len(names) {
			continue
		}
		take := force || (names[s.Index] == "" && s.Match.Found)
		if !take {
			if prev, ok := old[s.ID]; ok {
				s = prev
			} else {
				s.Match = portrait.Match{Name: names[s.Index]}
			}
			slots = append(slots, s)
			continue
		}
		if names[s.Index] != s.Match.Name {
			changes = append(changes, Change{Slot: s.ID, From: names[s.Index], To: s.Match.Name})
			names[s.Index] = s.Match.Name
		}
		slots = append(slots, s)
	}
	out := rec.WithNames(attack, defense)
	out.Slots = slots
	return out, changes
}

func padTo(names []string, n int) []string {
	out := make([]string, n)
	copy(out, names)
	return out
}
