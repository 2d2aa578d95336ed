package lexicon

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Normalize turns a raw label into a lookup key: Unicode NFC, lowercase, surrounding
// whitespace trimmed, and a plural "s" stripped from words longer than three characters.
// A doubled "ss" is left alone so that Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	// Casers keep state and are not safe to share between goroutines.
	s = norm.NFC.String(cases.Lower(language.Und).String(s))
	for {
		s = strings.TrimSpace(s)
		if !strippable(s) {
			return s
		}
		s = s[:len(s)-1]
	}
}

func strippable(s string) bool {
	return len([]rune(s)) > 3 && strings.HasSuffix(s, "s") && !strings.HasSuffix(s, "ss")
}

// tokenize splits a key on commas, underscores and whitespace.
func tokenize(key string) []string {
	return strings.FieldsFunc(key, func(r rune) bool {
		return r == ',' || r == '_' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
}
