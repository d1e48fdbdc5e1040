package evaluator

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/clipperhouse/uax29/v2/words"
)

// namePlaceholder replaces "initials + surname" sequences so they count as a
// single word, per OGE grading conventions.
const namePlaceholder = "ФИО"

const edgePunctuation = ".,!?;:\"()[]{}«»-–—'"

var (
	initialsFull  = regexp.MustCompile(`[А-ЯЁ]\.\s*[А-ЯЁ]\.\s*[А-ЯЁ][а-яё]+`)
	initialsShort = regexp.MustCompile(`[А-ЯЁ]\.\s*[А-ЯЁ][а-яё]+`)
)

// CountEligibleWords counts orthographic words by OGE rules: initials with a
// surname ("А. С. Пушкин") form one word, hyphenated compounds ("кто-то")
// form one word, and a token survives edge-punctuation stripping only if it
// still contains at least one letter. Empty input yields 0.
func CountEligibleWords(text string) int {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}

	text = initialsFull.ReplaceAllString(text, namePlaceholder)
	text = initialsShort.ReplaceAllString(text, namePlaceholder)

	count := 0
	// The segmenter splits on hyphens, so a compound is rejoined when a "-"
	// token sits directly between two letter tokens.
	lastWasWord := false
	pendingJoin := false

	tokens := words.FromString(text)
	for tokens.Next() {
		raw := tokens.Value()

		if raw == "-" && lastWasWord {
			pendingJoin = true
			lastWasWord = false
			continue
		}

		token := strings.Trim(raw, edgePunctuation)
		if token == "" || !containsLetter(token) {
			lastWasWord = false
			pendingJoin = false
			continue
		}

		if pendingJoin {
			// Continuation of the previous word, already counted.
			pendingJoin = false
			lastWasWord = true
			continue
		}

		count++
		lastWasWord = true
	}

	return count
}

func containsLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
