package domain

import (
	"fmt"
	"strings"
	"time"
)

// DomainRule is a canonical hostname. It matches a request hostname equal to
// it or any dot-bounded subdomain of it.
type DomainRule string

// PatternRule is a lowercase substring matched against the full lowercased URL.
type PatternRule string

// SelectorRule is a CSS selector identifying elements to suppress.
type SelectorRule string

// NewDomainRule validates an already-canonical hostname.
func NewDomainRule(name string) (DomainRule, error) {
	r := DomainRule(name)
	if err := r.Validate(); err != nil {
		return "", err
	}
	return r, nil
}

// Validate checks that the rule is a bare lowercase hostname.
func (r DomainRule) Validate() error {
	s := string(r)
	switch {
	case s == "":
		return fmt.Errorf("domain rule must not be empty")
	case strings.Contains(s, "://"):
		return fmt.Errorf("domain rule %q must not contain a scheme", s)
	case strings.ContainsAny(s, "/?# \t"):
		return fmt.Errorf("domain rule %q must be a bare hostname", s)
	case s != strings.ToLower(s):
		return fmt.Errorf("domain rule %q must be lowercase", s)
	case strings.HasPrefix(s, ".") || strings.HasSuffix(s, "."):
		return fmt.Errorf("domain rule %q must not start or end with a dot", s)
	}
	return nil
}

// Matches reports whether hostname equals the rule or is a subdomain of it.
// hostname is expected in canonical form.
func (r DomainRule) Matches(hostname string) bool {
	rule := string(r)
	if hostname == rule {
		return true
	}
	return len(hostname) > len(rule) &&
		strings.HasSuffix(hostname, rule) &&
		hostname[len(hostname)-len(rule)-1] == '.'
}

// NewPatternRule trims and lowercases raw and rejects empty patterns.
func NewPatternRule(raw string) (PatternRule, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return "", fmt.Errorf("pattern rule must not be empty")
	}
	return PatternRule(s), nil
}

// Matches reports whether the lowercased url contains the pattern.
func (p PatternRule) Matches(lowerURL string) bool {
	return strings.Contains(lowerURL, string(p))
}

// NewSelectorRule trims raw and rejects empty selectors. Selector grammar is
// checked by the element matcher, which skips selectors that fail to compile.
func NewSelectorRule(raw string) (SelectorRule, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("selector rule must not be empty")
	}
	return SelectorRule(s), nil
}

// RuleSet is an immutable snapshot of the three block-lists. Build one with
// NewRuleSet; the zero value is a valid empty set that blocks nothing.
type RuleSet struct {
	Domains   []DomainRule
	Patterns  []PatternRule
	Selectors []SelectorRule

	// Version increases with every successful load.
	Version uint64
	// LoadedAt records when the set was built.
	LoadedAt time.Time

	domainIndex map[string]struct{}
}

// NewRuleSet builds a RuleSet, dropping duplicates while preserving first-seen order.
func NewRuleSet(domains []DomainRule, patterns []PatternRule, selectors []SelectorRule, version uint64, loadedAt time.Time) *RuleSet {
	rs := &RuleSet{
		Domains:     dedup(domains),
		Patterns:    dedup(patterns),
		Selectors:   dedup(selectors),
		Version:     version,
		LoadedAt:    loadedAt,
		domainIndex: make(map[string]struct{}, len(domains)),
	}
	for _, d := range rs.Domains {
		rs.domainIndex[string(d)] = struct{}{}
	}
	return rs
}

// EmptyRuleSet returns the block-nothing set used before the first load.
func EmptyRuleSet() *RuleSet {
	return NewRuleSet(nil, nil, nil, 0, time.Time{})
}

// HasDomain reports whether name is itself a domain rule.
func (rs *RuleSet) HasDomain(name string) bool {
	if rs == nil {
		return false
	}
	if rs.domainIndex == nil {
		for _, d := range rs.Domains {
			if string(d) == name {
				return true
			}
		}
		return false
	}
	_, ok := rs.domainIndex[name]
	return ok
}

// Len returns the total number of rules across all lists.
func (rs *RuleSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.Domains) + len(rs.Patterns) + len(rs.Selectors)
}

// IsEmpty reports whether the set has no rules at all.
func (rs *RuleSet) IsEmpty() bool { return rs.Len() == 0 }

func dedup[T ~string](in []T) []T {
	out := make([]T, 0, len(in))
	seen := make(map[T]struct{}, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
