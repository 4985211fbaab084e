// Package string holds small text helpers shared by request normalisation
// and validation error formatting.
package string

import (
	"strings"
	"unicode"
)

// TrimStrings trims surrounding whitespace from each referenced field in place.
func TrimStrings(fields ...*string) {
	for _, f := range fields {
		if f == nil {
			continue
		}
		*f = strings.TrimSpace(*f)
	}
}

// TrimSlice trims every element of list in place. Order and length are kept
// so batch responses line up with the request.
func TrimSlice(list []string) {
	for i, v := range list {
		list[i] = strings.TrimSpace(v)
	}
}

// ToSnakeCase converts a Go field name such as "EvidenceRef" or "DID" into
// its JSON form ("evidence_ref", "did"). Acronym runs stay together.
func ToSnakeCase(name string) string {
	runes := []rune(name)
	var b strings.Builder
	b.Grow(len(runes) + 4)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prevLower := unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevLower || (nextLower && unicode.IsUpper(runes[i-1])) {
				b.WriteByte('_')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
