package fields

import "testing"

const resultScreen = `CRUCIBLE  Season 18
Stage 3-2 Diamond
Power: 1,000,000
Power: 900,000
My Total Victory Points: 8,366VP`

func TestExtractFullScreen(t *testing.T) {
	f := Extract(resultScreen, Defaults{Season: "Season 1"})
	if f.Season != "Season 18" {
		t.Fatalf("season=%q", f.Season)
	}
	if f.StageName != "Stage 3-2 Diamond" {
		t.Fatalf("stage=%q", f.StageName)
	}
	if f.Room == nil || *f.Room != 3 {
		t.Fatalf("room=%v", f.Room)
	}
	if f.AttackPower != 1000000 || f.DefensePower != 900000 {
		t.Fatalf("powers=%d/%d", f.AttackPower, f.DefensePower)
	}
	if f.VictoryPoints != 8366 {
		t.Fatalf("vp=%d", f.VictoryPoints)
	}
}

func TestExtractElidedLines(t *testing.T) {
	text := "Season 18\n...\nStage 3-2\n...\nPower: 1,000,000 Power: 900,000\n...\nTotal Victory Points: 8,366VP"
	f := Extract(text, Defaults{Season: "Season 18"})
	if f.Season != "Season 18" || f.StageName != "Stage 3-2" || f.RoomOrZero() != 3 {
		t.Fatalf("unexpected %+v", f)
	}
	if f.AttackPower != 1000000 || f.DefensePower != 900000 || f.VictoryPoints != 8366 {
		t.Fatalf("unexpected numbers %+v", f)
	}
}

func TestExtractEmpty(t *testing.T) {
	f := Extract("", Defaults{Season: "Season 18"})
	if f.Season != "Season 18" {
		t.Fatalf("season=%q", f.Season)
	}
	if f.StageName != "" || f.Room != nil {
		t.Fatalf("expected empty stage and absent room, got %q %v", f.StageName, f.Room)
	}
	if f.AttackPower != 0 || f.DefensePower != 0 || f.VictoryPoints != 0 {
		t.Fatalf("expected zero numbers %+v", f)
	}
	if f.RoomOrZero() != 0 {
		t.Fatalf("RoomOrZero should be 0")
	}
}

func TestExtractSinglePowerIsIgnored(t *testing.T) {
	f := Extract("Power: 5,000", Defaults{})
	if f.AttackPower != 0 || f.DefensePower != 0 {
		t.Fatalf("one power figure should leave both at 0: %+v", f)
	}
}

func TestExtractPowersArePositional(t *testing.T) {
	f := Extract("TEAM POWER 700,000\nenemy power: 812,345\nPower: 1", Defaults{})
	if f.AttackPower != 700000 || f.DefensePower != 812345 {
		t.Fatalf("expected first two figures, got %+v", f)
	}
}

func TestExtractRomanSeason(t *testing.T) {
	f := Extract("season   XIV", Defaults{Season: "Season 18"})
	if f.Season != "Season XIV" {
		t.Fatalf("season=%q", f.Season)
	}
}

func TestExtractStageWithoutSpace(t *testing.T) {
	f := Extract("Stage7 Vibranium\r\nPower: 1", Defaults{})
	if f.StageName != "Stage 7 Vibranium" {
		t.Fatalf("stage=%q", f.StageName)
	}
	if f.RoomOrZero() != 7 {
		t.Fatalf("room=%v", f.Room)
	}
}

func TestExtractMalformedNumbers(t *testing.T) {
	f := Extract("Power: 99999999999999999999999 Power: 12\nTotal Victory Points: ,", Defaults{})
	if f.AttackPower != 0 {
		t.Fatalf("overflowing capture should fall back to 0, got %d", f.AttackPower)
	}
	if f.DefensePower != 12 {
		t.Fatalf("defense=%d", f.DefensePower)
	}
	if f.VictoryPoints != 0 {
		t.Fatalf("vp=%d", f.VictoryPoints)
	}
}

func TestRoomFromStage(t *testing.T) {
	cases := map[string]int{"Stage 3-2": 3, "stage 12": 12}
	for in, want := range cases {
		got := RoomFromStage(in)
		if got == nil || *got != want {
			t.Fatalf("%q: expected %d got %v", in, want, got)
		}
	}
	if RoomFromStage("") != nil || RoomFromStage("Stage X") != nil {
		t.Fatalf("expected nil room for stage without digits")
	}
}

func TestExtractSeparatorOnlyPowerKeepsPosition(t *testing.T) {
	f := Extract("Power: ,\nPower: 100\nPower: 200", Defaults{})
	if f.AttackPower != 0 || f.DefensePower != 100 {
		t.Fatalf("powers=%d/%d want 0/100", f.AttackPower, f.DefensePower)
	}
}

func TestExtractSingleLineStageRunsToEndOfLine(t *testing.T) {
	text := "Season 18 ... Stage 3-2 ... Power: 1,000,000 Power: 900,000 ... Total Victory Points: 8,366VP"
	f := Extract(text, Defaults{Season: "Season 1"})
	want := "Stage 3-2 ... Power: 1,000,000 Power: 900,000 ... Total Victory Points: 8,366VP"
	if f.StageName != want {
		t.Fatalf("stage=%q want %q", f.StageName, want)
	}
	if f.Season != "Season 18" || f.RoomOrZero() != 3 {
		t.Fatalf("unexpected %+v", f)
	}
	if f.AttackPower != 1000000 || f.DefensePower != 900000 || f.VictoryPoints != 8366 {
		t.Fatalf("unexpected numbers %+v", f)
	}
}
