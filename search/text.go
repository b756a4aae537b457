package search

import (
	"strings"
	"unicode"
)

// Words too common to signal a verbatim match.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "be": true, "is": true, "are": true,
	"was": true, "to": true, "of": true, "and": true, "in": true, "that": true,
	"have": true, "it": true, "for": true, "not": true, "on": true, "with": true,
	"as": true, "you": true, "do": true, "at": true, "this": true, "but": true,
	"by": true, "from": true,
}

// terms splits text into lowercased words, dropping punctuation and stop
// words.
func terms(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	kept := words[:0]
	for _, word := range words {
		if !stopWords[word] {
			kept = append(kept, word)
		}
	}
	return kept
}

// containsAllTerms reports whether every significant query term appears in
// text. A query with no significant terms matches nothing.
func containsAllTerms(text, query string) bool {
	queryTerms := terms(query)
	if len(queryTerms) == 0 {
		return false
	}

	seen := make(map[string]bool)
	for _, term := range terms(text) {
		seen[term] = true
	}

	for _, term := range queryTerms {
		if !seen[term] {
			return false
		}
	}
	return true
}
