// Package report summarises stored match records per season.
package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/dustin/go-humanize"
	"gorm.io/gorm"

	"crucible/models"
	"crucible/pkg/metrics"
)

// Season is the summary of one season's records.
type Season struct {
	Season        string
	Records       int
	Punchups      int
	Punchdowns    int
	AvgPercentage float64
	TotalVP       int64
	Unsent        int
}

// Summarize groups records by season, ordered by season name.
func Summarize(records []models.MatchRecord) []Season {
	by := map[string]*Season{}
	for _, r := range records {
		key := r.Season
		if key == "" {
			key = "(none)"
		}
		s, ok := by[key]
		if !ok {
			s = &Season{Season: key}
			by[key] = s
		}
		s.Records++
		if r.Label == string(metrics.Punchup) {
			s.Punchups++
		} else {
			s.Punchdowns++
		}
		s.AvgPercentage += r.Percentage
		s.TotalVP += r.VictoryPoints
		if r.SentAt == nil {
			s.Unsent++
		}
	}
	out := make([]Season, 0, len(by))
	for _, s := range by {
		s.AvgPercentage /= float64(s.Records)
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Season < out[j].Season })
	return out
}

// Options filter the records a report covers.
type Options struct {
	Username string
	Season   string
	List     bool
}

// Run prints the report for opts to w.
func Run(gdb *gorm.DB, w io.Writer, opts Options) error {
	q := gdb.Model(&models.MatchRecord{})
	label := "all users"
	if opts.Username != "" {
		var user models.User
		if err := gdb.Where("username = ?", opts.Username).First(&user).Error; err != nil {
			return fmt.Errorf("user not found: %w", err)
		}
		q = q.Where("user_id = ?", user.ID)
		label = "user=" + user.Username
	}
	if opts.Season != "" {
		q = q.Where("season = ?", opts.Season)
	}
	var records []models.MatchRecord
	if err := q.Order("id").Find(&records).Error; err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	fmt.Fprintf(w, "Report for %s (%d records):\n", label, len(records))
	for _, s := range Summarize(records) {
		fmt.Fprintf(w, "  %s: records=%d punchups=%d punchdowns=%d avg_pct=%.2f%% vp=%s unsent=%d\n",
			s.Season, s.Records, s.Punchups, s.Punchdowns, s.AvgPercentage, humanize.Comma(s.TotalVP), s.Unsent)
	}
	if opts.List {
		for _, r := range records {
			m := r.Record().Metrics
			fmt.Fprintf(w, "%d|%s|%s|%s,%s,%s,%s,%s|%s,%s,%s,%s,%s|%s|%s\n",
				r.ID, r.Season, r.StageName,
				r.Attack1, r.Attack2, r.Attack3, r.Attack4, r.Attack5,
				r.Defense1, r.Defense2, r.Defense3, r.Defense4, r.Defense5,
				m.DifferentialText(), m.PercentageText())
		}
	}
	return nil
}
