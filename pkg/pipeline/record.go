package pipeline

import (
	"crucible/pkg/fields"
	"crucible/pkg/metrics"
)

// TeamSize is the number of characters per side written to a result row.
const TeamSize = 5

// Record is the assembled result for one screenshot.
type Record struct {
	Attack  []string        `json:"attack"`
	Defense []string        `json:"defense"`
	Slots   []SlotResult    `json:"slots"`
	Fields  fields.Fields   `json:"fields"`
	Metrics metrics.Metrics `json:"metrics"`
}

// WithPowers returns a copy of r with new power totals and recomputed
// metrics.
func (r Record) WithPowers(attack, defense int64) Record {
	out := r.clone()
	out.Fields.AttackPower = attack
	out.Fields.DefensePower = defense
	out.Metrics = metrics.Compute(attack, defense)
	return out
}

// WithNames returns a copy of r with the given character names. Nil slices
// keep the current names.
func (r Record) WithNames(attack, defense []string) Record {
	out := r.clone()
	if attack != nil {
		out.Attack = append([]string(nil), attack...)
	}
	if defense != nil {
		out.Defense = append([]string(nil), defense...)
	}
	return out
}

// Matched counts slots that were confidently named.
func (r Record) Matched() int {
	n := 0
	for _, s := range r.Slots {
		if s.Match.Found {
			n++
		}
	}
	return n
}

// Row flattens the record into spreadsheet columns A through T:
//
//	A-E defense, F-J attack, K season, L room, M label, N attack power,
//	O defense power, P differential, Q victory points, R blank,
//	S percentage, T image link (filled in by the sheet).
//
// Name lists are padded or trimmed to TeamSize and an absent room is 0.
func (r Record) Row() []any {
	row := make([]any, 0, 2*TeamSize+10)
	for _, n := range fixed(r.Defense, TeamSize) {
		row = append(row, n)
	}
	for _, n := range fixed(r.Attack, TeamSize) {
		row = append(row, n)
	}
	return append(row,
		r.Fields.Season,
		r.Fields.RoomOrZero(),
		string(r.Metrics.Label),
		r.Fields.AttackPower,
		r.Fields.DefensePower,
		r.Metrics.Differential,
		r.Fields.VictoryPoints,
		"",
		r.Metrics.Percentage,
		"",
	)
}

func (r Record) clone() Record {
	out := r
	out.Attack = append([]string(nil), r.Attack...)
	out.Defense = append([]string(nil), r.Defense...)
	out.Slots = append([]SlotResult(nil), r.Slots...)
	if r.Fields.Room != nil {
		room := *r.Fields.Room
		out.Fields.Room = &room
	}
	return out
}

func fixed(names []string, n int) []string {
	out := make([]string, n)
	copy(out, names)
	return out
}
