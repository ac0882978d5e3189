// Package tokenizer turns document text into the set of terms that get
// posted to the index. It lower-cases input and keeps maximal runs of
// letters at least two characters long. There is no stemming and no
// stop-word removal; digits and punctuation only separate terms.
package tokenizer

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

const minTermLength = 2

// Tokenize returns the distinct terms of text. Empty input yields an empty,
// non-nil set.
func Tokenize(text string) map[string]struct{} {
	terms := make(map[string]struct{})
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	for _, word := range words {
		if utf8.RuneCountInString(word) < minTermLength {
			continue
		}
		terms[word] = struct{}{}
	}
	return terms
}

// Terms is Tokenize with the result sorted, for logging and stable output.
func Terms(text string) []string {
	return Sorted(Tokenize(text))
}

func Sorted(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for term := range set {
		out = append(out, term)
	}
	sort.Strings(out)
	return out
}
