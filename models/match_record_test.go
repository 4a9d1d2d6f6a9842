package models

import (
	"testing"

	"crucible/pkg/fields"
	"crucible/pkg/metrics"
	"crucible/pkg/pipeline"
	"crucible/pkg/portrait"
	"crucible/pkg/region"
)

func TestMatchRecordApply(t *testing.T) {
	room := 3
	rec := pipeline.Record{
		Attack:  []string{"Iron Fist", "", "Sword Master"},
		Defense: []string{"Omega Red", "Lady Deathstrike", "", "", ""},
		Slots: []pipeline.SlotResult{
			{ID: "A1", Side: region.Attack, Index: 0, Match: portrait.Match{Name: "Iron Fist", Distance: 0.05, Compared: true, Found: true}},
			{ID: "A2", Side: region.Attack, Index: 1, Match: portrait.Match{Distance: 0.3, Compared: true}},
		},
		Fields:  fields.Fields{Season: "Season 18", StageName: "Stage 3", Room: &room, AttackPower: 100, DefensePower: 200, VictoryPoints: 40},
		Metrics: metrics.Compute(100, 200),
	}
	var m MatchRecord
	m.Apply(rec)
	if m.Attack1 != "Iron Fist" || m.Attack3 != "Sword Master" || m.Attack5 != "" || m.Defense2 != "Lady Deathstrike" {
		t.Fatalf("names not flattened: %+v", m)
	}
	if m.Label != "Punchup" || m.Differential != -100 || m.Percentage != -50 || m.Matched != 1 {
		t.Fatalf("metrics not copied: %+v", m)
	}

	back := m.Record()
	if len(back.Attack) != 5 || back.Attack[2] != "Sword Master" {
		t.Fatalf("attack=%v", back.Attack)
	}
	if len(back.Slots) != 2 || back.Slots[0].Match.Name != "Iron Fist" || back.Slots[1].Match.Found {
		t.Fatalf("slots=%+v", back.Slots)
	}
	if back.Fields.RoomOrZero() != 3 || back.Metrics.Label != metrics.Punchup {
		t.Fatalf("fields=%+v metrics=%+v", back.Fields, back.Metrics)
	}
}
