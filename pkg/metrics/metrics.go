// Package metrics derives the punch direction and power gap of a match.
package metrics

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// Label says whether the attacker fought up or down in power.
type Label string

const (
	Punchup   Label = "Punchup"
	Punchdown Label = "Punchdown"
)

// Metrics compares the attack power against the defense power.
type Metrics struct {
	Label        Label   `json:"label"`
	Differential int64   `json:"differential"`
	Percentage   float64 `json:"percentage"`
}

// Compute derives the metrics for one match. Equal powers are a Punchdown,
// and a zero defense power gives a percentage of exactly 0.
func Compute(attack, defense int64) Metrics {
	m := Metrics{
		Label:        Punchdown,
		Differential: attack - defense,
	}
	if defense > attack {
		m.Label = Punchup
	}
	if defense != 0 {
		m.Percentage = float64(m.Differential) / float64(defense) * 100
	}
	return m
}

// DifferentialText formats the differential with thousands separators.
func (m Metrics) DifferentialText() string {
	return humanize.Comma(m.Differential)
}

// PercentageText formats the percentage with two decimals and a % sign.
func (m Metrics) PercentageText() string {
	return fmt.Sprintf("%.2f%%", m.Percentage)
}
