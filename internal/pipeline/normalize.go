package pipeline

import (
	"regexp"
	"strings"

	"supportlog/internal"
	"supportlog/internal/util"
)

var reTechSeparator = regexp.MustCompile(`(?i)\s+e\s+|\s*/\s*|\s*&\s*|\s*,\s*`)

// Normalizer turns a raw support field into the technicians it names.
type Normalizer struct {
	matcher *Matcher
}

func NewNormalizer(cat internal.TechnicianCatalog) *Normalizer {
	return &Normalizer{matcher: NewMatcher(cat.Rules)}
}

// Normalize always returns at least one name. Fragments keep their order and
// repeated mentions are kept. A fragment no rule matches is returned title-cased
// in its original spelling when the original text splits the same way.
func (n *Normalizer) Normalize(raw string) []string {
	if util.NormalizeBase(raw) == "" {
		return []string{internal.TechnicianNotInformed}
	}

	// Split after accent stripping: "é" and fullwidth "，" or "／" only become
	// separators once decomposed.
	fragments := splitTechnicians(util.StripAccents(raw))
	if len(fragments) == 0 {
		return []string{internal.TechnicianNotInformed}
	}
	display := splitTechnicians(raw)
	if len(display) != len(fragments) {
		display = fragments
	}

	names := make([]string, 0, len(fragments))
	for i, fragment := range fragments {
		names = append(names, n.resolve(fragment, display[i]))
	}
	return names
}

// resolve looks fragment up in the catalog; unknown names are shown as the
// title-cased display text.
func (n *Normalizer) resolve(fragment, display string) string {
	if canonical, ok := n.matcher.Resolve(util.NormalizeBase(fragment)); ok {
		return canonical
	}
	return util.TitleCase(display)
}

func splitTechnicians(raw string) []string {
	parts := reTechSeparator.Split(strings.Trim(strings.TrimSpace(raw), " .-:"), -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = util.TrimPunct(p, " .-:")
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
