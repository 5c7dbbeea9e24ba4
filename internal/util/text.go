package util

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

const trimSet = " .-:"

var reSpaces = regexp.MustCompile(`\s+`)

// StripAccents decomposes s and drops the combining marks, so "Cláudia" becomes "Claudia".
// Characters without an ASCII base form are dropped as well.
func StripAccents(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range norm.NFKD.String(s) {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		if r > unicode.MaxASCII {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// NormalizeBase is the lookup form shared by technician matching and classification.
func NormalizeBase(s string) string {
	s = StripAccents(s)
	s = strings.TrimSpace(s)
	s = strings.Trim(s, trimSet)
	return strings.ToLower(s)
}

// TitleCase upper-cases the first letter of each word and lower-cases the rest.
// A letter following an apostrophe starts a word too, so "d'avila" becomes "D'Avila".
func TitleCase(s string) string {
	titled := []rune(cases.Title(language.Und).String(s))
	for i := 1; i < len(titled); i++ {
		if (titled[i-1] == '\'' || titled[i-1] == '’') && unicode.IsLetter(titled[i]) {
			titled[i] = unicode.ToUpper(titled[i])
		}
	}
	return string(titled)
}

func TrimPunct(s string, cutset string) string {
	return strings.Trim(strings.TrimSpace(s), cutset)
}

func NormalizeSpaces(input string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(input, " "))
}

func ContainsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func StringPtr(v string) *string {
	return &v
}

func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
