package textutil

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

// Tokenize splits text into case-folded tokens of at least minLen runes.
// Apostrophes inside words are kept ("don't"); tokens made only of digits are
// dropped.
func Tokenize(text string, minLen int) []string {
	folded := cases.Fold().String(text)
	raw := strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\'' && r != '’'
	})
	tokens := make([]string, 0, len(raw))
	for _, token := range raw {
		token = strings.Trim(token, "'’")
		if token == "" || utf8.RuneCountInString(token) < minLen || isNumeric(token) {
			continue
		}
		tokens = append(tokens, token)
	}
	return tokens
}

func isNumeric(token string) bool {
	for _, r := range token {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
