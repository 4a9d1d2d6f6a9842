package ocr

import (
	"strings"
	"unicode/utf8"
)

// snippet returns a shortened version of text for logging. The cut never
// splits a rune.
func snippet(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}

// normalizeOCRText collapses runs of blanks inside each line and drops empty
// lines. Line breaks are kept: field patterns stop at the end of a line.
func normalizeOCRText(t string) string {
	t = strings.ReplaceAll(t, "\r\n", "\n")
	t = strings.ReplaceAll(t, "\t", " ")
	lines := strings.Split(t, "\n")
	out := lines[:0]
	for _, l := range lines {
		l = strings.Join(strings.Fields(l), " ")
		if l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}
