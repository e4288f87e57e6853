package main

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const keptSymbols = "$-+/%"

// CleanTitle strips characters that break fixed-width terminal rendering:
// anything outside the BMP is dropped, control, format and symbol runes
// (emoji included) become spaces, and whitespace is collapsed.
func CleanTitle(text string) string {
	if text == "" {
		return ""
	}
	text = norm.NFKC.String(text)
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r > 0xFFFF {
			continue
		}
		if isHostileRune(r) {
			if strings.ContainsRune(keptSymbols, r) {
				b.WriteRune(r)
			} else {
				b.WriteByte(' ')
			}
			continue
		}
		b.WriteRune(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func isHostileRune(r rune) bool {
	if unicode.In(r, unicode.C, unicode.S) {
		return true
	}
	// unassigned code points (category Cn) are not covered by unicode.C
	return !unicode.In(r, unicode.L, unicode.M, unicode.N, unicode.P, unicode.Z)
}
