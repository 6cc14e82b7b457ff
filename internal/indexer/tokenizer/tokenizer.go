// Package tokenizer normalises ingredient strings for the inverted index and
// for incoming queries. Normalize keeps a whole ingredient as one token;
// Words splits ingredient text on non-letter boundaries.
package tokenizer

import (
	"strings"
	"unicode"
)

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "as": {}, "at": {}, "for": {},
	"from": {}, "in": {}, "into": {}, "of": {}, "on": {}, "or": {},
	"the": {}, "to": {}, "with": {}, "plus": {}, "more": {},
	"cup": {}, "cups": {}, "tbsp": {}, "tsp": {}, "oz": {}, "lb": {},
	"tablespoon": {}, "tablespoons": {}, "teaspoon": {}, "teaspoons": {},
	"ounce": {}, "ounces": {}, "pound": {}, "pounds": {}, "g": {}, "kg": {},
	"ml": {}, "large": {}, "small": {}, "medium": {}, "chopped": {},
	"sliced": {}, "diced": {}, "minced": {}, "fresh": {}, "finely": {},
	"divided": {}, "taste": {}, "about": {},
}

// Normalize lowercases and trims s. The result is empty for blank input.
func Normalize(s string) string {
	return strings.TrimSpace(strings.ToLower(s))
}

// NormalizeAll normalises each entry and discards empties, preserving order.
func NormalizeAll(raw []string) []string {
	tokens := make([]string, 0, len(raw))
	for _, r := range raw {
		if t := Normalize(r); t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

// SplitList splits a comma-separated query string such as the wizard sends
// ("cumin, turmeric,,onion") and normalises the parts.
func SplitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return NormalizeAll(strings.Split(s, ","))
}

// Words breaks ingredient text into distinct lowercase alphabetic words,
// dropping measurements and filler words. Order of first appearance is kept.
func Words(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	seen := make(map[string]struct{}, len(fields))
	words := make([]string, 0, len(fields))
	for _, w := range fields {
		if len(w) < 2 {
			continue
		}
		if _, isStop := stopWords[w]; isStop {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		words = append(words, w)
	}
	return words
}
