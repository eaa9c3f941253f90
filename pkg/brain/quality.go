package brain

import (
	"strings"
	"unicode"
)

// LooksCorrupted applies cheap heuristics that catch degenerate
// generations from small local models: question-mark floods, symbol
// soup, and stuck repeated punctuation. A hit forces fallback to the
// secondary backend.
func LooksCorrupted(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return true
	}

	runes := []rune(trimmed)
	total := len(runes)

	questions := 0
	nonAlnum := 0
	maxRun := 1
	run := 1
	var prev rune
	for i, r := range runes {
		if r == '?' {
			questions++
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r) {
			nonAlnum++
		}
		if i > 0 && r == prev && unicode.IsPunct(r) {
			run++
			if run > maxRun {
				maxRun = run
			}
		} else {
			run = 1
		}
		prev = r
	}

	if float64(questions)/float64(total) > 0.2 {
		return true
	}
	if float64(nonAlnum)/float64(total) > 0.45 {
		return true
	}
	if maxRun >= 4 {
		return true
	}
	return false
}
