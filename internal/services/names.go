package services

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// whitespaceRE collapses consecutive whitespace to a single space.
var whitespaceRE = regexp.MustCompile(`\s+`)

// nameParticles stay lowercase inside a title-cased name ("Maria da Silva").
var nameParticles = map[string]struct{}{
	"da": {}, "das": {}, "de": {}, "do": {}, "dos": {}, "e": {},
}

// normalizeName trims and collapses whitespace. Names typed entirely in one
// case ("JOÃO DA SILVA", "joão da silva") are title-cased for the given
// locale; mixed-case input is kept as written.
func normalizeName(s string, tag language.Tag) string {
	s = whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
	if s == "" {
		return s
	}
	lower := cases.Lower(tag).String(s)
	upper := cases.Upper(tag).String(s)
	if s != lower && s != upper {
		return s
	}

	title := cases.Title(tag)
	words := strings.Split(lower, " ")
	for i, w := range words {
		if _, ok := nameParticles[w]; ok && i > 0 {
			continue
		}
		words[i] = title.String(w)
	}
	return strings.Join(words, " ")
}

// normalizeEmail lowercases and trims an address for storage and lookups.
func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
