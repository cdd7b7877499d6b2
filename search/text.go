package search

import "strings"

// Stop words to filter out of keyword queries
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "be": true, "is": true, "are": true,
	"was": true, "to": true, "of": true, "and": true, "in": true, "that": true,
	"have": true, "it": true, "for": true, "not": true, "on": true, "with": true,
	"as": true, "you": true, "do": true, "at": true, "this": true, "but": true,
	"by": true, "from": true,
}

// queryTerms splits a keyword query into lowercase words with punctuation and stop words removed.
func queryTerms(query string) []string {
	words := strings.Fields(query)
	terms := make([]string, 0, len(words))
	for _, word := range words {
		cleaned := strings.ToLower(strings.Trim(word, ".,!?;:'\"-()[]{}"))
		if cleaned != "" && !stopWords[cleaned] {
			terms = append(terms, cleaned)
		}
	}
	return terms
}

// containsAllTerms reports whether every term occurs in the document.
// Terms match as substrings so inflected words still match their stems.
func containsAllTerms(document string, terms []string) bool {
	if len(terms) == 0 {
		return false
	}
	doc := strings.ToLower(document)
	for _, term := range terms {
		if !strings.Contains(doc, term) {
			return false
		}
	}
	return true
}
