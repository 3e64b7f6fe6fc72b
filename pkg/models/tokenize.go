package models

import (
	"regexp"
	"sort"
	"strings"
)

var wordPattern = regexp.MustCompile(`[0-9A-Za-z_]+`)

// wordTokenize mirrors Python's re.findall(r"\w+", text) for the ASCII case
// the original source relies on.
func wordTokenize(text string) []string {
	return wordPattern.FindAllString(text, -1)
}

func sortStrings(s []string) {
	sort.Strings(s)
}

// TokenSet returns the set of word tokens in text, lowercased, with no
// minimum length filter — used by reflection's overlap scoring.
func TokenSet(text string) map[string]struct{} {
	tokens := wordTokenize(strings.ToLower(text))
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

// ExtractKeywordsNoMinLen tokenizes text on word-characters to a lowercased
// token list, with no minimum-length filter (used by the write-back
// client's local query filter, which differs from the >=4-char keyword
// extraction used to populate MemoryRecord metadata).
func ExtractKeywordsNoMinLen(text string) []string {
	return wordTokenize(strings.ToLower(text))
}
