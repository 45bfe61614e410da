package services

import "unicode/utf8"

const unknownLanguage = "unknown"

type scriptRange struct {
	language string
	ranges   [][2]rune
}

// Order matters: on equal counts the later script wins.
var scriptRanges = []scriptRange{
	{"english", [][2]rune{{'a', 'z'}, {'A', 'Z'}}},
	{"chinese", [][2]rune{{0x4E00, 0x9FFF}}},
	{"japanese", [][2]rune{{0x3040, 0x309F}, {0x30A0, 0x30FF}}},
	{"korean", [][2]rune{{0xAC00, 0xD7AF}}},
	{"arabic", [][2]rune{{0x0600, 0x06FF}}},
	{"cyrillic", [][2]rune{{0x0400, 0x04FF}}},
}

// DetectLanguage is a best-effort script census. It reports the dominant
// script only when it covers more than 10% of the text.
func DetectLanguage(text string) string {
	length := utf8.RuneCountInString(text)
	if length < 10 {
		return unknownLanguage
	}

	counts := make([]int, len(scriptRanges))
	for _, r := range text {
		for i, script := range scriptRanges {
			if inRanges(r, script.ranges) {
				counts[i]++
				break
			}
		}
	}

	best := 0
	for i := 1; i < len(counts); i++ {
		if counts[i] >= counts[best] {
			best = i
		}
	}

	if float64(counts[best]) > float64(length)*0.1 {
		return scriptRanges[best].language
	}
	return unknownLanguage
}

func inRanges(r rune, ranges [][2]rune) bool {
	for _, rg := range ranges {
		if r >= rg[0] && r <= rg[1] {
			return true
		}
	}
	return false
}
