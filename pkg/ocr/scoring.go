package ocr

import (
	"regexp"
	"strings"
)

var (
	labelSeason = regexp.MustCompile(`(?i)Season\s+[0-9IVX]+`)
	labelStage  = regexp.MustCompile(`(?i)Stage\s*[0-9]`)
	labelPower  = regexp.MustCompile(`(?i)Power[:\s]+[0-9,]`)
	labelVP     = regexp.MustCompile(`(?i)Victory Points[:\s]+[0-9]`)
)

// scoreText rates how much of a result screen a pass recovered. Each power
// figure counts, so the best pass is the one the field parser can use.
func scoreText(text string) int {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	score := 0
	if labelSeason.MatchString(text) {
		score += 2
	}
	if labelStage.MatchString(text) {
		score += 2
	}
	powers := len(labelPower.FindAllStringIndex(text, -1))
	if powers > 2 {
		powers = 2
	}
	score += 3 * powers
	if labelVP.MatchString(text) {
		score += 2
	}
	return score
}

// fullScore is the score of a pass that found every field.
const fullScore = 2 + 2 + 3*2 + 2

// bestText returns the highest scoring candidate. Ties keep the earlier pass;
// when nothing scores, the longest text wins.
func bestText(candidates []string) (string, int) {
	best, bestScore := "", -1
	for _, c := range candidates {
		if s := scoreText(c); s > bestScore {
			best, bestScore = c, s
		}
	}
	if bestScore <= 0 {
		for _, c := range candidates {
			if len(c) > len(best) {
				best = c
			}
		}
	}
	return best, bestScore
}
