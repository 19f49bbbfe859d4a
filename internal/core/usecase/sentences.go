package usecase

import (
	"strings"
	"unicode"
)

// Abbreviations that end with a period but do not end a sentence.
var sentenceAbbreviations = map[string]struct{}{
	"e.g": {}, "i.e": {}, "vs": {}, "cf": {}, "al": {},
	"fig": {}, "figs": {}, "eq": {}, "eqs": {}, "tab": {}, "sec": {},
	"ref": {}, "refs": {}, "vol": {}, "approx": {}, "resp": {},
	"dr": {}, "mr": {}, "mrs": {}, "ms": {}, "prof": {},
}

// Abbreviations that commonly close a sentence: "etc." and "pp." end one
// when the next word is capitalised, and not before a lowercase word or a
// number ("pp. 12").
var closingAbbreviations = map[string]struct{}{
	"etc": {}, "pp": {},
}

const sentenceClosers = ".!?\"')]”’"

// splitSentences breaks generated prose into sentences. A boundary is a run
// of terminal punctuation followed by whitespace and then an uppercase
// letter, digit, quote or bracket. Citation markers that follow the
// punctuation stay with the sentence they close.
func splitSentences(text string) []string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}

	var out []string
	start := 0
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		end := i + 1
		for end < len(runes) && strings.ContainsRune(sentenceClosers, runes[end]) {
			end++
		}
		if end >= len(runes) {
			break
		}
		if !unicode.IsSpace(runes[end]) {
			i = end - 1
			continue
		}

		next := skipSpace(runes, end)
		for next < len(runes) {
			n := leadingCitationLen(runes[next:])
			if n == 0 {
				break
			}
			end = next + n
			next = skipSpace(runes, end)
		}
		if next >= len(runes) {
			break
		}
		if r == '.' && !periodEndsSentence(runes[start:i], runes[next]) {
			i = end - 1
			continue
		}
		if !opensSentence(runes[next]) {
			i = end - 1
			continue
		}

		out = append(out, strings.TrimSpace(string(runes[start:end])))
		start = next
		i = next - 1
	}
	if tail := strings.TrimSpace(string(runes[start:])); tail != "" {
		out = append(out, tail)
	}
	return out
}

func skipSpace(runes []rune, i int) int {
	for i < len(runes) && unicode.IsSpace(runes[i]) {
		i++
	}
	return i
}

func opensSentence(r rune) bool {
	switch {
	case unicode.IsUpper(r), unicode.IsDigit(r):
		return true
	case r == '"', r == '\'', r == '(', r == '[', r == '“', r == '‘':
		return true
	default:
		return false
	}
}

// periodEndsSentence reports whether the period after prefix is a boundary
// given the rune that opens the following text.
func periodEndsSentence(prefix []rune, following rune) bool {
	j := len(prefix)
	for j > 0 && (unicode.IsLetter(prefix[j-1]) || prefix[j-1] == '.') {
		j--
	}
	word := string(prefix[j:])
	if word == "" {
		return true
	}
	// Single capital initial, as in "J. Smith".
	if w := []rune(word); len(w) == 1 && unicode.IsUpper(w[0]) {
		return false
	}
	lower := strings.ToLower(word)
	if _, ok := closingAbbreviations[lower]; ok {
		return unicode.IsUpper(following)
	}
	_, ok := sentenceAbbreviations[lower]
	return !ok
}

func leadingCitationLen(runes []rune) int {
	if len(runes) == 0 || runes[0] != '[' {
		return 0
	}
	loc := citationMarkerPattern.FindStringIndex(string(runes))
	if loc == nil || loc[0] != 0 {
		return 0
	}
	return len([]rune(string(runes)[:loc[1]]))
}
