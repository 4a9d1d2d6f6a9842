// Package fields turns the raw OCR text of a result screen into typed match
// fields. Extraction never fails: anything that cannot be parsed falls back
// to its default.
package fields

import (
	"regexp"
	"strconv"
	"strings"
)

// DefaultSeason is used when neither the text nor the caller supply one.
const DefaultSeason = "Season 18"

var (
	seasonRE = regexp.MustCompile(`(?i)Season\s+([0-9IVX]+)`)
	stageRE  = regexp.MustCompile(`(?i)Stage\s*([0-9]+[^\n]*)`)
	roomRE   = regexp.MustCompile(`(?i)Stage\s*(\d+)`)
	powerRE  = regexp.MustCompile(`(?i)Power[:\s]+([0-9,]+)`)
	vpRE     = regexp.MustCompile(`(?i)Total Victory Points[:\s]+([0-9,]+)`)
)

// Defaults are the fallbacks applied when a field is missing from the text.
type Defaults struct {
	Season string `yaml:"season" json:"season"`
}

// Fields are the values read off the result screen.
type Fields struct {
	Season        string `json:"season"`
	StageName     string `json:"stage_name"`
	Room          *int   `json:"room,omitempty"`
	AttackPower   int64  `json:"attack_power"`
	DefensePower  int64  `json:"defense_power"`
	VictoryPoints int64  `json:"victory_points"`
}

// RoomOrZero returns the room number or 0 when it is absent.
func (f Fields) RoomOrZero() int {
	if f.Room == nil {
		return 0
	}
	return *f.Room
}

// Extract applies the field patterns to text. Each field is independent;
// the first match of a pattern wins.
//
// Powers are positional: the first "Power" figure is taken as the attacker's
// and the second as the defender's. A figure made only of separators still
// takes its place and reads as 0. With fewer than two figures both are 0.
func Extract(text string, defaults Defaults) Fields {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	out := Fields{Season: defaults.Season}
	if m := seasonRE.FindStringSubmatch(text); len(m) >= 2 {
		out.Season = "Season " + m[1]
	}
	if m := stageRE.FindStringSubmatch(text); len(m) >= 2 {
		out.StageName = strings.TrimSpace("Stage " + m[1])
	}
	out.Room = RoomFromStage(out.StageName)

	if ms := powerRE.FindAllStringSubmatch(text, 2); len(ms) >= 2 {
		out.AttackPower = parseGrouped(ms[0][1])
		out.DefensePower = parseGrouped(ms[1][1])
	}
	if m := vpRE.FindStringSubmatch(text); len(m) >= 2 {
		out.VictoryPoints = parseGrouped(m[1])
	}
	return out
}

// RoomFromStage reads the room number out of a stage name such as
// "Stage 3-2". It returns nil when the name carries no stage digits.
func RoomFromStage(stage string) *int {
	m := roomRE.FindStringSubmatch(stage)
	if len(m) < 2 {
		return nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	return &n
}

// parseGrouped strips grouping separators and parses the remaining digits.
// Empty or out-of-range captures yield 0.
func parseGrouped(s string) int64 {
	digits := onlyDigits(s)
	if digits == "" {
		return 0
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// onlyDigits extracts decimal digits from a string.
func onlyDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}
