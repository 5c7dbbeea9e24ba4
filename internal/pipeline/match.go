package pipeline

import (
	"strings"

	"supportlog/internal"
)

// Matcher resolves a normalized name fragment against the catalog rules.
// Rules are scanned in declared order and the first key contained in the
// fragment wins, so overlapping keys resolve to whichever was declared first.
type Matcher struct {
	rules []internal.NormalizationRule
}

func NewMatcher(rules []internal.NormalizationRule) *Matcher {
	cp := make([]internal.NormalizationRule, len(rules))
	copy(cp, rules)
	return &Matcher{rules: cp}
}

func (m *Matcher) Resolve(normalized string) (string, bool) {
	if normalized == "" {
		return "", false
	}
	for _, rule := range m.rules {
		if rule.Key == "" {
			continue
		}
		if strings.Contains(normalized, rule.Key) {
			return rule.Canonical, true
		}
	}
	return "", false
}

// Rules returns a copy of the rules in scan order.
func (m *Matcher) Rules() []internal.NormalizationRule {
	cp := make([]internal.NormalizationRule, len(m.rules))
	copy(cp, m.rules)
	return cp
}
