package portrait

import (
	"math"

	"crucible/pkg/fingerprint"
)

// DefaultThreshold is the largest distance still accepted as a match.
const DefaultThreshold = 0.12

// Match is the outcome of matching one fingerprint. Name is empty when no
// entry was close enough. Distance is the best distance seen and is only
// meaningful when Compared is true.
type Match struct {
	Name     string  `json:"name"`
	Distance float64 `json:"distance"`
	Compared bool    `json:"compared"`
	Found    bool    `json:"found"`
}

// Matcher accepts the nearest library entry when it is within Threshold.
type Matcher struct {
	Threshold float64
}

// NewMatcher returns a matcher; a non-positive or non-finite threshold uses
// the default.
func NewMatcher(threshold float64) Matcher {
	if !usable(threshold) {
		threshold = DefaultThreshold
	}
	return Matcher{Threshold: threshold}
}

// Match finds the nearest entry of lib. Ties go to the earliest entry.
func (m Matcher) Match(fp fingerprint.Fingerprint, lib *Library) Match {
	if lib.Len() == 0 {
		return Match{}
	}
	best := -1
	bestDist := math.Inf(1)
	for i := range lib.entries {
		d := fingerprint.Distance(fp, lib.entries[i].Fingerprint)
		if d < bestDist {
			bestDist = d
			best = i
		}
	}
	if best < 0 {
		// every comparison was a length mismatch
		return Match{}
	}
	threshold := m.Threshold
	if !usable(threshold) {
		threshold = DefaultThreshold
	}
	if bestDist > threshold {
		return Match{Distance: bestDist, Compared: true}
	}
	return Match{Name: lib.entries[best].Name, Distance: bestDist, Compared: true, Found: true}
}

// usable reports whether t can serve as a threshold. NaN compares false
// against every distance and would accept anything.
func usable(t float64) bool {
	return t > 0 && !math.IsInf(t, 1)
}
