package models

import (
	"time"

	json "github.com/goccy/go-json"

	"crucible/pkg/fields"
	"crucible/pkg/metrics"
	"crucible/pkg/pipeline"
)

// MatchRecord is the persisted form of a processed screenshot, one column
// per character slot so it can be queried and exported as a sheet row.
type MatchRecord struct {
	ID            uint `gorm:"primaryKey"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
	PublicID      string `gorm:"size:36;uniqueIndex;not null"`
	ScreenshotID  uint   `gorm:"uniqueIndex;not null"`
	UserID        uint   `gorm:"index;not null"`
	Season        string `gorm:"size:64;index"`
	StageName     string `gorm:"size:255"`
	Room          *int
	Attack1       string `gorm:"size:128"`
	Attack2       string `gorm:"size:128"`
	Attack3       string `gorm:"size:128"`
	Attack4       string `gorm:"size:128"`
	Attack5       string `gorm:"size:128"`
	Defense1      string `gorm:"size:128"`
	Defense2      string `gorm:"size:128"`
	Defense3      string `gorm:"size:128"`
	Defense4      string `gorm:"size:128"`
	Defense5      string `gorm:"size:128"`
	AttackPower   int64
	DefensePower  int64
	VictoryPoints int64
	Label         string `gorm:"size:16;index"`
	Differential  int64
	Percentage    float64
	Matched       int
	// Slots holds the per-slot match details as JSON.
	Slots    string `gorm:"type:text"`
	SheetURL string `gorm:"size:512"`
	SentAt   *time.Time
}

// Apply copies rec into m, replacing every derived column.
func (m *MatchRecord) Apply(rec pipeline.Record) {
	a := padded(rec.Attack)
	d := padded(rec.Defense)
	m.Attack1, m.Attack2, m.Attack3, m.Attack4, m.Attack5 = a[0], a[1], a[2], a[3], a[4]
	m.Defense1, m.Defense2, m.Defense3, m.Defense4, m.Defense5 = d[0], d[1], d[2], d[3], d[4]
	m.Season = rec.Fields.Season
	m.StageName = rec.Fields.StageName
	m.Room = rec.Fields.Room
	m.AttackPower = rec.Fields.AttackPower
	m.DefensePower = rec.Fields.DefensePower
	m.VictoryPoints = rec.Fields.VictoryPoints
	m.Label = string(rec.Metrics.Label)
	m.Differential = rec.Metrics.Differential
	m.Percentage = rec.Metrics.Percentage
	m.Matched = rec.Matched()
	if b, err := json.Marshal(rec.Slots); err == nil {
		m.Slots = string(b)
	}
}

// Record rebuilds the pipeline record. Metrics are recomputed from the
// stored powers.
func (m MatchRecord) Record() pipeline.Record {
	rec := pipeline.Record{
		Attack:  []string{m.Attack1, m.Attack2, m.Attack3, m.Attack4, m.Attack5},
		Defense: []string{m.Defense1, m.Defense2, m.Defense3, m.Defense4, m.Defense5},
		Fields: fields.Fields{
			Season:        m.Season,
			StageName:     m.StageName,
			Room:          m.Room,
			AttackPower:   m.AttackPower,
			DefensePower:  m.DefensePower,
			VictoryPoints: m.VictoryPoints,
		},
		Metrics: metrics.Compute(m.AttackPower, m.DefensePower),
	}
	if m.Slots != "" {
		_ = json.Unmarshal([]byte(m.Slots), &rec.Slots)
	}
	return rec
}

func padded(names []string) [pipeline.TeamSize]string {
	var out [pipeline.TeamSize]string
	copy(out[:], names)
	return out
}
